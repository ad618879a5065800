// Package auth manages the signed-in session and guards protected views.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/db"
	"github.com/tgienger/depplan/internal/models"
)

var (
	ErrUsernameRequired = errors.New("auth: username is required")
	ErrPasswordRequired = errors.New("auth: password is required")
	ErrEmailInvalid     = errors.New("auth: email address is invalid")
	ErrPasswordTooShort = errors.New("auth: password must be at least 6 characters")
	ErrNotSignedIn      = errors.New("auth: not signed in")
	ErrSessionExpired   = errors.New("auth: session expired")
)

// MinPasswordLength is the shortest password registration accepts.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// SessionStore persists the session. *db.DB satisfies it.
type SessionStore interface {
	SaveSession(s db.Session) error
	LoadSession() (*db.Session, error)
	ClearSession() error
}

// Authenticator performs the login and sign-up calls. *api.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) (*models.AuthResponse, error)
	Register(ctx context.Context, reg api.Registration) (string, error)
}

// ValidateLogin checks the login form before it is sent.
func ValidateLogin(c api.Credentials) error {
	if strings.TrimSpace(c.Username) == "" {
		return ErrUsernameRequired
	}
	if c.Password == "" {
		return ErrPasswordRequired
	}
	return nil
}

// ValidateRegistration checks the sign-up form before it is sent.
func ValidateRegistration(r api.Registration) error {
	if strings.TrimSpace(r.Username) == "" {
		return ErrUsernameRequired
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if len(r.Password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// ValidateEmail checks the loose address shape the backend accepts.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return ErrEmailInvalid
	}
	return nil
}

// Manager holds the current session. It implements api.TokenSource.
type Manager struct {
	store SessionStore
	now   func() time.Time

	mu      sync.RWMutex
	session *db.Session
}

// NewManager loads any persisted session from store.
func NewManager(store SessionStore) (*Manager, error) {
	s, err := store.LoadSession()
	if err != nil {
		return nil, fmt.Errorf("auth.NewManager: %w", err)
	}
	return &Manager{store: store, now: time.Now, session: s}, nil
}

// Login validates creds, signs in and persists the session.
func (m *Manager) Login(ctx context.Context, a Authenticator, creds api.Credentials) (*models.User, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if err := ValidateLogin(creds); err != nil {
		return nil, err
	}
	resp, err := a.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("auth.Login: %w", err)
	}

	s := db.Session{
		Token: resp.Token,
		User:  models.User{Username: resp.Username, Email: resp.Email, IsAdmin: resp.IsAdmin},
	}
	if err := m.store.SaveSession(s); err != nil {
		return nil, fmt.Errorf("auth.Login: %w", err)
	}

	m.mu.Lock()
	m.session = &s
	m.mu.Unlock()

	log.Info().Str("username", s.User.Username).Msg("auth.Login: signed in")
	return &s.User, nil
}

// Register validates and submits the sign-up form. It does not sign in:
// the account has to be verified by email first.
func (m *Manager) Register(ctx context.Context, a Authenticator, reg api.Registration) (string, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := ValidateRegistration(reg); err != nil {
		return "", err
	}
	msg, err := a.Register(ctx, reg)
	if err != nil {
		return "", fmt.Errorf("auth.Register: %w", err)
	}
	return msg, nil
}

// Logout forgets the session.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	if err := m.store.ClearSession(); err != nil {
		return fmt.Errorf("auth.Logout: %w", err)
	}
	return nil
}

// Current returns the session, or nil when signed out.
func (m *Manager) Current() *db.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// Check is the route guard: nil when a usable session exists.
func (m *Manager) Check() error {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()
	return m.usable(s)
}

func (m *Manager) usable(s *db.Session) error {
	if s == nil || s.Token == "" {
		return ErrNotSignedIn
	}
	exp, ok := ExpiresAt(s.Token)
	if ok && !m.now().Before(exp) {
		return ErrSessionExpired
	}
	return nil
}

// Token implements api.TokenSource. An unusable session yields no token.
// It is called from request goroutines while the UI may sign out.
func (m *Manager) Token() (string, error) {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()
	if m.usable(s) != nil {
		return "", nil
	}
	return s.Token, nil
}

// HandleError signs out when err is an authorization failure and
// reports whether it did. A 403 on a project resource means the user is
// not a collaborator there, so the session is kept.
func (m *Manager) HandleError(err error) bool {
	if !errors.Is(err, api.ErrUnauthorized) || projectForbidden(err) {
		return false
	}
	if m.Current() == nil {
		return true
	}
	log.Warn().Err(err).Msg("auth.HandleError: server rejected session, signing out")
	if lerr := m.Logout(); lerr != nil {
		log.Error().Err(lerr).Msg("auth.HandleError: clearing session")
	}
	return true
}

func projectForbidden(err error) bool {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		return false
	}
	return strings.HasPrefix(apiErr.Path, "/projects/")
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature;
// the backend stays authoritative. ok is false for opaque tokens and
// tokens without exp.
func ExpiresAt(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
