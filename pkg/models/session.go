package models

import "time"

// Session is the persisted login state: the user object and its auth token.
type Session struct {
	User      User      `yaml:"user"`
	Token     string    `yaml:"token"`
	CreatedAt time.Time `yaml:"created_at"`
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`
}

// Expired reports whether the session has a known expiry in the past.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
