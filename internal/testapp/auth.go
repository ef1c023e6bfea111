package testapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"testbed/domain"
	"testbed/logging"
)

const (
	// SessionCookie is the name of the login cookie.
	SessionCookie = "session"
	// CSRFHeader carries the CSRF token when protection is enabled.
	CSRFHeader = "X-CSRF-Token"
	// CookieDomainSetting names the extra setting that pins the cookie domain.
	CookieDomainSetting = "SESSION_COOKIE_DOMAIN"
)

type ctxKey struct{}

func currentUser(ctx context.Context) *domain.User {
	u, _ := ctx.Value(ctxKey{}).(*domain.User)
	return u
}

func (a *App) sign(value string) string {
	mac := hmac.New(sha256.New, []byte(a.cfg.SecretKey))
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// CSRFToken returns the token state changing requests must carry when
// CSRF protection is enabled.
func (a *App) CSRFToken() string {
	return a.sign("csrf")
}

func (a *App) sessionValue(id uint) string {
	v := strconv.FormatUint(uint64(id), 10)
	return v + "." + a.sign(v)
}

func (a *App) parseSession(value string) (uint, bool) {
	v, sig, ok := strings.Cut(value, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(a.sign(v))) {
		return 0, false
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func (a *App) setSession(w http.ResponseWriter, u *domain.User) {
	ck := &http.Cookie{
		Name:     SessionCookie,
		Value:    a.sessionValue(u.ID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.cfg.ForceHTTPS,
	}
	if domainSetting, ok := a.cfg.Get(CookieDomainSetting); ok {
		ck.Domain, _ = domainSetting.(string)
	}
	http.SetCookie(w, ck)
}

func clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
}

// forceHTTPS redirects plain HTTP requests when the application requires HTTPS
func (a *App) forceHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.ForceHTTPS && r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
			target := "https://" + r.Host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// csrf rejects state changing requests without a valid token when enabled
func (a *App) csrf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.CSRFEnabled && r.Method != http.MethodGet && r.Method != http.MethodHead {
			if !hmac.Equal([]byte(r.Header.Get(CSRFHeader)), []byte(a.CSRFToken())) {
				logging.Logger.Warn("CSRF token missing or invalid", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				writeError(w, http.StatusBadRequest, "The CSRF token is missing.")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate loads the logged in user, if any, into the request context
func (a *App) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(SessionCookie)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		id, ok := a.parseSession(ck.Value)
		if !ok {
			logging.Logger.Warn("Invalid session cookie", "remote_addr", r.RemoteAddr)
			next.ServeHTTP(w, r)
			return
		}

		var u domain.User
		if err := a.db.Session().Handle(r.Context()).First(&u, id).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				logging.Logger.Error("Failed to load session user", "error", err, "user_id", id)
			}
			next.ServeHTTP(w, r)
			return
		}
		if !u.Active {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, &u)))
	})
}

func (a *App) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkCredentials returns the active user matching email and password
func (a *App) checkCredentials(ctx context.Context, email, password string) (*domain.User, bool) {
	var u domain.User
	if err := a.db.Session().Handle(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, false
	}
	if !u.Active {
		return nil, false
	}
	return &u, true
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	u, ok := a.checkCredentials(r.Context(), r.FormValue("email"), r.FormValue("password"))
	if !ok {
		logging.Logger.Info("Login failed", "email", r.FormValue("email"), "remote_addr", r.RemoteAddr)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("<p>Invalid email or password</p>"))
		return
	}
	logging.Logger.Info("User logged in", "user_id", u.ID, "remote_addr", r.RemoteAddr)
	a.setSession(w, u)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearSession(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *App) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, ok := a.checkCredentials(r.Context(), body.Email, body.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	a.setSession(w, u)
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "email": u.Email})
}

func (a *App) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	clearSession(w)
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (a *App) handleProtected(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("hello " + currentUser(r.Context()).Email))
}

func (a *App) handleMe(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "email": u.Email, "active": u.Active})
}
