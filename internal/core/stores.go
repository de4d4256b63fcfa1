package core

import (
	"context"
	"time"

	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// AuthBackend is the subset of the REST client used to open a session.
// This interface is defined locally in core to avoid importing api.
type AuthBackend interface {
	Login(ctx context.Context, username, password string) (token string, user models.User, err error)
	Register(ctx context.Context, username, password, inviteCode string) (token string, user models.User, err error)
}

// TaskSubmitter submits a task record. A transport failure is returned as an
// error; backend refusals come back as a SubmitResult with Success=false.
type TaskSubmitter interface {
	SubmitTaskRecord(ctx context.Context, taskCode string) (models.SubmitResult, error)
}

// SessionStore persists the login session.
// This interface is defined locally in core to avoid importing storage.
type SessionStore interface {
	// Load returns nil, nil when no session is stored.
	Load() (*models.Session, error)
	Save(session *models.Session) error
	Clear() error
}

// SnapshotCache keeps the last good snapshot of a data feed across runs.
// Implementations must treat every failure as a miss.
type SnapshotCache interface {
	Load(ctx context.Context, key string, out any) bool
	Store(ctx context.Context, key string, value any)
}

// Refresher re-fetches one data feed.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Navigator redirects the user to a route path.
type Navigator interface {
	Navigate(path string)
}

// Notifier surfaces submit feedback. Toast is transient and non-blocking;
// Alert needs acknowledgement.
type Notifier interface {
	Toast(message string)
	Alert(message string)
}

// Clock abstracts time for the submit delays.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// sleep waits for d on clock, returning ctx.Err() if ctx ends first.
func sleep(ctx context.Context, clock Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}
