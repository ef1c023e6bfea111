package testapp

import (
	"errors"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"testbed/domain"
	"testbed/logging"
)

func (a *App) handleListRecords(w http.ResponseWriter, r *http.Request) {
	var records []Record
	if err := a.db.Session().Handle(r.Context()).Order("id").Find(&records).Error; err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": records, "total": len(records)})
}

// handleCreateRecord commits the record in its own transaction, the way
// real handlers do.
func (a *App) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	rec := Record{Title: body.Title}
	if u := currentUser(r.Context()); u != nil {
		rec.OwnerID = &u.ID
	}

	err := a.db.Session().Transaction(r.Context(), func(tx *gorm.DB) error {
		return tx.Create(&rec).Error
	})
	if err != nil {
		logging.Logger.Error("Failed to create record", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create record")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleRegister creates an account and sends a welcome message
func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	var u *domain.User
	err = a.db.Session().Transaction(r.Context(), func(tx *gorm.DB) error {
		var err error
		u, err = a.CreateUser(r.Context(), tx, body.Email, string(hash), true)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		logging.Logger.Error("Failed to register user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	if a.cfg.Mailer != nil {
		err := a.cfg.Mailer.Send(r.Context(), domain.MailMessage{
			From:    "no-reply@localhost",
			To:      []string{u.Email},
			Subject: "Welcome to " + a.cfg.Name,
			Body:    "Your account has been created.",
		})
		if err != nil {
			logging.Logger.Warn("Failed to send welcome mail", "error", err, "user_id", u.ID)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": u.ID, "email": u.Email})
}
