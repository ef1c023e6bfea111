// Package users creates accounts inside an isolation scope and logs the
// test client in and out as them.
package users

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"testbed/application"
	"testbed/domain"
	"testbed/isolation"
	"testbed/logging"
	"testbed/ports"
)

// HashPassword hashes password with the minimum bcrypt cost, which is all
// a test needs.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UniqueEmail returns an address no other call returns, for tests that
// create users without caring about the address.
func UniqueEmail(prefix string) string {
	if prefix == "" {
		prefix = "user"
	}
	return prefix + "-" + uuid.NewString()[:8] + "@example.org"
}

// gormDatastore stores domain.User rows directly.
type gormDatastore struct{}

func (gormDatastore) CreateUser(ctx context.Context, tx *gorm.DB, email, passwordHash string, active bool) (*domain.User, error) {
	u := &domain.User{Email: email, PasswordHash: passwordHash, Active: true}
	tx = tx.WithContext(ctx)
	if err := tx.Create(u).Error; err != nil {
		return nil, err
	}
	if !active {
		if err := tx.Model(u).Update("active", false).Error; err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Paths are the application endpoints the login helpers talk to, relative
// to the client's base URL.
type Paths struct {
	Login     string
	Logout    string
	APILogin  string
	APILogout string
}

// DefaultPaths returns the conventional endpoint layout.
func DefaultPaths() Paths {
	return Paths{
		Login:     "login",
		Logout:    "logout",
		APILogin:  "api/login",
		APILogout: "api/logout",
	}
}

// Fixture creates test users.
type Fixture struct {
	scope         *isolation.Scope
	store         ports.UserDatastore
	paths         Paths
	sessionCookie string
}

// Option configures a Fixture.
type Option func(*Fixture)

// WithDatastore creates users through store instead of inserting
// domain.User rows.
func WithDatastore(store ports.UserDatastore) Option {
	return func(f *Fixture) { f.store = store }
}

// WithPaths changes the login and logout endpoints.
func WithPaths(p Paths) Option {
	return func(f *Fixture) { f.paths = p }
}

// WithSessionCookie changes the name of the cookie a successful login sets.
func WithSessionCookie(name string) Option {
	return func(f *Fixture) { f.sessionCookie = name }
}

// NewFixture creates a fixture writing inside scope. The scope may be nil;
// creating a user then fails.
func NewFixture(scope *isolation.Scope, opts ...Option) *Fixture {
	f := &Fixture{
		scope:         scope,
		store:         gormDatastore{},
		paths:         DefaultPaths(),
		sessionCookie: "session",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create persists an active user. The returned user's ID is assigned.
func (f *Fixture) Create(ctx context.Context, email, password string) (*TestUser, error) {
	if f.scope == nil || f.scope.Closed() {
		return nil, fmt.Errorf("%w: users can only be created inside an open database isolation scope", domain.ErrUsage)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrUsage)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to hash password: %w", domain.ErrFixture, err)
	}

	var u *domain.User
	err = f.scope.Session().Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		u, err = f.store.CreateUser(ctx, tx, email, hash, true)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: user %s already exists", domain.ErrFixture, email)
		}
		return nil, fmt.Errorf("%w: failed to create user %s: %w", domain.ErrFixture, email, err)
	}
	if u == nil || u.ID == 0 {
		return nil, fmt.Errorf("%w: user %s has no identifier after commit", domain.ErrFixture, email)
	}

	logging.Logger.Debug("Test user created", "user_id", u.ID, "email", email)
	return &TestUser{fixture: f, user: u, password: password}, nil
}

// MustCreate is Create for tests: it fails tb on error.
func (f *Fixture) MustCreate(tb interface {
	Helper()
	Fatalf(format string, args ...any)
}, email, password string) *TestUser {
	tb.Helper()
	u, err := f.Create(context.Background(), email, password)
	if err != nil {
		tb.Fatalf("create user %s: %v", email, err)
	}
	return u
}

// TestUser is a persisted user plus the plain text password it was created with.
type TestUser struct {
	fixture  *Fixture
	user     *domain.User
	password string
}

// ID returns the user's identifier.
func (u *TestUser) ID() uint { return u.user.ID }

// Email returns the user's email.
func (u *TestUser) Email() string { return u.user.Email }

// Password returns the plain text password.
func (u *TestUser) Password() string { return u.password }

// User returns the stored record.
func (u *TestUser) User() *domain.User { return u.user }

// LoginOption configures Login and APILogin.
type LoginOption func(*loginOptions)

type loginOptions struct {
	logoutFirst bool
}

// LogoutFirst ends any existing session before logging in.
func LogoutFirst() LoginOption {
	return func(o *loginOptions) { o.logoutFirst = true }
}

// Login submits the login form as u and checks the client ends up with a
// session cookie for its own host.
func (u *TestUser) Login(ctx context.Context, client *application.Client, opts ...LoginOption) error {
	if err := u.prepareLogin(ctx, client, opts, u.Logout); err != nil {
		return err
	}
	form := url.Values{"email": {u.Email()}, "password": {u.password}}
	res, err := client.PostForm(ctx, u.fixture.paths.Login, form)
	if err != nil {
		return fmt.Errorf("%w: login request failed: %w", domain.ErrFixture, err)
	}
	return u.checkLoggedIn(client, res)
}

// APILogin logs u in through the JSON endpoint.
func (u *TestUser) APILogin(ctx context.Context, client *application.Client, opts ...LoginOption) error {
	if err := u.prepareLogin(ctx, client, opts, u.APILogout); err != nil {
		return err
	}
	body := map[string]string{"email": u.Email(), "password": u.password}
	res, err := client.PostJSON(ctx, u.fixture.paths.APILogin, body)
	if err != nil {
		return fmt.Errorf("%w: login request failed: %w", domain.ErrFixture, err)
	}
	return u.checkLoggedIn(client, res)
}

func (u *TestUser) prepareLogin(ctx context.Context, client *application.Client, opts []LoginOption, logout func(context.Context, *application.Client) error) error {
	var o loginOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logoutFirst {
		return logout(ctx, client)
	}
	return nil
}

func (u *TestUser) checkLoggedIn(client *application.Client, res *application.Response) error {
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: login as %s returned status %d", domain.ErrFixture, u.Email(), res.StatusCode)
	}
	if _, ok := client.Cookie(u.fixture.sessionCookie); !ok {
		return fmt.Errorf("%w: login as %s set no %q cookie for %s (check the application's cookie domain)",
			domain.ErrFixture, u.Email(), u.fixture.sessionCookie, client.BaseURL().Host)
	}
	logging.Logger.Debug("Test user logged in", "user_id", u.ID())
	return nil
}

// Logout ends the session and clears the client's cookies.
func (u *TestUser) Logout(ctx context.Context, client *application.Client) error {
	res, err := client.Get(ctx, u.fixture.paths.Logout)
	return u.finishLogout(client, res, err)
}

// APILogout ends the session through the JSON endpoint and clears the
// client's cookies.
func (u *TestUser) APILogout(ctx context.Context, client *application.Client) error {
	res, err := client.Request(ctx, http.MethodPost, u.fixture.paths.APILogout, nil, nil)
	return u.finishLogout(client, res, err)
}

func (u *TestUser) finishLogout(client *application.Client, res *application.Response, err error) error {
	client.ClearCookies()
	if err != nil {
		return fmt.Errorf("%w: logout request failed: %w", domain.ErrFixture, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: logout returned status %d", domain.ErrFixture, res.StatusCode)
	}
	return nil
}

// Activate marks the user active.
func (u *TestUser) Activate(ctx context.Context) error {
	return u.setActive(ctx, true)
}

// Deactivate marks the user inactive; it can no longer log in.
func (u *TestUser) Deactivate(ctx context.Context) error {
	return u.setActive(ctx, false)
}

func (u *TestUser) setActive(ctx context.Context, active bool) error {
	f := u.fixture
	if f.scope == nil || f.scope.Closed() {
		return fmt.Errorf("%w: users can only be changed inside an open database isolation scope", domain.ErrUsage)
	}
	err := f.scope.Session().Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Model(&domain.User{}).Where("id = ?", u.user.ID).Update("active", active).Error
	})
	if err != nil {
		return fmt.Errorf("%w: failed to update user %s: %w", domain.ErrFixture, u.Email(), err)
	}
	u.user.Active = active
	return nil
}
