// Package testapp is a small web application used to exercise the harness
// end to end: account login, records persisted through gorm, and models
// resolved through plugin discovery.
package testapp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"gorm.io/gorm"

	"testbed/application"
	"testbed/database"
	"testbed/discovery"
	"testbed/domain"
	"testbed/logging"
	"testbed/ports"
)

// ModelsGroup is the discovery group listing the models to migrate.
const ModelsGroup = "testbed.models"

// Record is a piece of content users create.
type Record struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	OwnerID   *uint     `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// knownModels maps entry point values to models.
var knownModels = map[string]any{
	"testapp:User":   &domain.User{},
	"testapp:Record": &Record{},
}

// DefaultEntryPoints are used when discovery has nothing registered.
var DefaultEntryPoints = []domain.EntryPoint{
	{Group: ModelsGroup, Name: "users", Value: "testapp:User"},
	{Group: ModelsGroup, Name: "records", Value: "testapp:Record"},
}

// App is the application under test.
type App struct {
	router http.Handler
	db     *database.DB
	cfg    application.Config
	models []any
}

// Factory returns an application.Factory resolving models through resolver.
// A nil resolver means discovery.Default.
func Factory(resolver *discovery.Resolver) application.Factory {
	if resolver == nil {
		resolver = discovery.Default
	}
	return func(ctx context.Context, cfg application.Config) (ports.Application, error) {
		return New(ctx, cfg, resolver)
	}
}

// New creates the application.
func New(_ context.Context, cfg application.Config, resolver *discovery.Resolver) (*App, error) {
	models, err := resolveModels(resolver)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DatabaseURI)
	if err != nil {
		return nil, err
	}

	a := &App{db: db, cfg: cfg, models: models}
	a.router = a.routes()

	logging.Logger.Debug("Test application created", "name", cfg.Name, "models", len(models))
	return a, nil
}

func resolveModels(resolver *discovery.Resolver) ([]any, error) {
	eps, err := resolver.EntryPoints(ModelsGroup)
	if err != nil || len(eps) == 0 {
		eps = DefaultEntryPoints
	}

	models := make([]any, 0, len(eps))
	for _, ep := range eps {
		m, ok := knownModels[ep.Value]
		if !ok {
			return nil, fmt.Errorf("unknown model %q registered as %s", ep.Value, ep.Name)
		}
		models = append(models, m)
	}
	return models, nil
}

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.forceHTTPS)
	r.Use(a.csrf)
	r.Use(a.authenticate)

	r.Get("/", a.handleIndex)
	r.Post("/login", a.handleLogin)
	r.Get("/logout", a.handleLogout)
	r.With(a.requireUser).Get("/protected", a.handleProtected)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", a.handleAPIIndex)
		r.Post("/login", a.handleAPILogin)
		r.Post("/logout", a.handleAPILogout)
		r.Post("/register", a.handleRegister)
		r.With(a.requireUser).Get("/me", a.handleMe)
		r.Get("/records", a.handleListRecords)
		r.Post("/records", a.handleCreateRecord)
	})
	return r
}

// ServeHTTP implements http.Handler
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Name returns the configured application name
func (a *App) Name() string {
	return a.cfg.Name
}

// Database returns the application's database
func (a *App) Database() *database.DB {
	return a.db
}

// Models returns the models the application persists
func (a *App) Models() []any {
	return a.models
}

// CreateUser stores an account. It satisfies ports.UserDatastore.
func (a *App) CreateUser(ctx context.Context, tx *gorm.DB, email, passwordHash string, active bool) (*domain.User, error) {
	u := &domain.User{Email: email, PasswordHash: passwordHash, Active: true}
	tx = tx.WithContext(ctx)
	if err := tx.Create(u).Error; err != nil {
		return nil, err
	}
	if !active {
		// false is a zero value, so the column default wins on insert
		if err := tx.Model(u).Update("active", false).Error; err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Close closes the database
func (a *App) Close() error {
	return a.db.Close()
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><head><title>%s</title></head><body><h1>%s</h1></body></html>", a.cfg.Name, a.cfg.Name)
}

func (a *App) handleAPIIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"app_name": a.cfg.Name})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
