package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

var (
	// ErrNoSession is returned when nobody is logged in.
	ErrNoSession = errors.New("not logged in")
	// ErrSessionExpired is returned when the stored token is past its expiry.
	ErrSessionExpired = errors.New("session expired")
)

// SessionManager owns the login state. Login sets it, Logout clears it and
// Current reads it; nothing else writes the session store.
type SessionManager interface {
	Login(ctx context.Context, username, password string) (*models.Session, error)
	Register(ctx context.Context, username, password, inviteCode string) (*models.Session, error)
	Logout() error
	Current() (*models.Session, error)
}

type sessionManager struct {
	auth   AuthBackend
	store  SessionStore
	events EventLogger
	now    func() time.Time
}

// NewSessionManager creates a SessionManager. events may be nil.
func NewSessionManager(auth AuthBackend, store SessionStore, events EventLogger) SessionManager {
	return &sessionManager{
		auth:   auth,
		store:  store,
		events: events,
		now:    time.Now,
	}
}

func (m *sessionManager) Login(ctx context.Context, username, password string) (*models.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, &ValidationError{Problems: []string{"username and password are required"}}
	}
	token, user, err := m.auth.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	return m.open(token, user, "session.login")
}

func (m *sessionManager) Register(ctx context.Context, username, password, inviteCode string) (*models.Session, error) {
	username = strings.TrimSpace(username)
	var problems []string
	if username == "" {
		problems = append(problems, "username is required")
	}
	if len(password) < 6 {
		problems = append(problems, "password must be at least 6 characters")
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	token, user, err := m.auth.Register(ctx, username, password, strings.TrimSpace(inviteCode))
	if err != nil {
		return nil, fmt.Errorf("registering: %w", err)
	}
	return m.open(token, user, "session.register")
}

func (m *sessionManager) open(token string, user models.User, event string) (*models.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("backend returned an empty token")
	}
	s := &models.Session{
		User:      user,
		Token:     token,
		CreatedAt: m.now().UTC(),
		ExpiresAt: TokenExpiry(token),
	}
	if err := m.store.Save(s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	logEvent(m.events, event, map[string]any{"username": user.Username})
	return s, nil
}

func (m *sessionManager) Logout() error {
	s, _ := m.store.Load()
	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	if s != nil {
		logEvent(m.events, "session.logout", map[string]any{"username": s.User.Username})
	}
	return nil
}

// Current returns the stored session. An expired session is cleared and
// reported as ErrSessionExpired.
func (m *sessionManager) Current() (*models.Session, error) {
	s, err := m.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if s == nil || s.Token == "" {
		return nil, ErrNoSession
	}
	if s.Expired(m.now()) {
		_ = m.store.Clear()
		return nil, ErrSessionExpired
	}
	return s, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature;
// the client never holds the signing key. Opaque tokens have no expiry.
func TokenExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time.UTC()
}
