package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/internal/tui"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// captureOut redirects cmd's output for the rest of the test.
func captureOut(t *testing.T, cmd *cobra.Command) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	t.Cleanup(func() { cmd.SetOut(nil) })
	return &buf
}

// --- Fakes ---

type fakeSessions struct {
	session  *models.Session
	loggedIn string
}

func (f *fakeSessions) Login(_ context.Context, username, password string) (*models.Session, error) {
	if password != "secret1" {
		return nil, errors.New("logging in: invalid credentials")
	}
	f.session = &models.Session{User: models.User{ID: "u-" + username, Username: username, VIPLevel: 1}, Token: "tok"}
	f.loggedIn = username
	return f.session, nil
}

func (f *fakeSessions) Register(ctx context.Context, username, password, _ string) (*models.Session, error) {
	return f.Login(ctx, username, password)
}

func (f *fakeSessions) Logout() error {
	f.session = nil
	return nil
}

func (f *fakeSessions) Current() (*models.Session, error) {
	if f.session == nil {
		return nil, core.ErrNoSession
	}
	return f.session, nil
}

type fakeBackend struct {
	mu          sync.Mutex
	result      models.SubmitResult
	err         error
	submits     []string
	started     int
	deposits    []float64
	withdrawals []float64
	onStart     func()
}

func (b *fakeBackend) SubmitTaskRecord(_ context.Context, code string) (models.SubmitResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submits = append(b.submits, code)
	return b.result, b.err
}

func (b *fakeBackend) StartTask(context.Context) ([]models.TaskRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started++
	if b.onStart != nil {
		b.onStart()
	}
	return []models.TaskRecord{{TaskCode: "NEW"}}, nil
}

func (b *fakeBackend) Deposit(_ context.Context, amount float64, _ string) (models.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deposits = append(b.deposits, amount)
	return models.Transaction{ID: "tx-d", Type: models.TxDeposit, Amount: amount, Status: "completed"}, nil
}

func (b *fakeBackend) Withdraw(_ context.Context, amount float64, _, _ string) (models.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.withdrawals = append(b.withdrawals, amount)
	return models.Transaction{ID: "tx-w", Type: models.TxWithdraw, Amount: amount, Status: "pending"}, nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) LogEvent(eventType string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *recordingEvents) has(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == eventType {
			return true
		}
	}
	return false
}

// --- Fixture ---

type cliFixture struct {
	sessions *fakeSessions
	backend  *fakeBackend
	events   *recordingEvents
	records  []models.TaskRecord
	balance  float64
	txs      []models.Transaction
}

// newCLIFixture wires the package-level services to fakes and restores the
// previous values when the test ends.
func newCLIFixture(t *testing.T, loggedIn bool) *cliFixture {
	t.Helper()
	f := &cliFixture{
		sessions: &fakeSessions{},
		backend:  &fakeBackend{result: models.SubmitResult{Success: true}},
		events:   &recordingEvents{},
		balance:  100,
	}
	if loggedIn {
		f.sessions.session = &models.Session{
			User:  models.User{ID: "u1", Username: "alice", VIPLevel: 2},
			Token: "tok",
		}
	}

	origSessions, origBackend, origStores := Sessions, Backend, Stores
	origController, origFlow, origEvents, origTimings := Controller, NewSubmitFlow, Events, Timings
	t.Cleanup(func() {
		Sessions, Backend, Stores = origSessions, origBackend, origStores
		Controller, NewSubmitFlow, Events, Timings = origController, origFlow, origEvents, origTimings
	})

	Sessions = f.sessions
	Backend = f.backend
	Events = f.events
	Controller = core.NewSubmitController(0)
	Timings = tui.Timings{PollInterval: 5 * time.Millisecond}
	Stores = tui.Stores{
		Profile: core.NewSnapshotStore[models.Profile]("profile", func(context.Context) (models.Profile, error) {
			return models.Profile{
				User:           f.sessions.session.User,
				Balance:        f.balance,
				Commission:     4.2,
				CompletedToday: 3,
				DailyLimit:     50,
			}, nil
		}),
		Balance: core.NewSnapshotStore[models.Balance]("balance", func(context.Context) (models.Balance, error) {
			return models.Balance{Balance: f.balance, Commission: 4.2}, nil
		}),
		Records: core.NewSnapshotStore[[]models.TaskRecord]("records", func(context.Context) ([]models.TaskRecord, error) {
			return append([]models.TaskRecord(nil), f.records...), nil
		}),
		Transactions: core.NewSnapshotStore[[]models.Transaction]("transactions", func(context.Context) ([]models.Transaction, error) {
			return f.txs, nil
		}),
		VIPLevels: core.NewSnapshotStore[[]models.VIPLevel]("vip levels", func(context.Context) ([]models.VIPLevel, error) {
			return []models.VIPLevel{
				{Level: 1, Name: "Bronze", CommissionRate: 0.004, DailyTasks: 40},
				{Level: 2, Name: "Silver", CommissionRate: 0.006, DailyTasks: 50, MinBalance: 500},
			}, nil
		}),
		Products: core.NewSnapshotStore[[]models.Product]("products", func(context.Context) ([]models.Product, error) {
			return []models.Product{{Name: "Desk Lamp", Price: 20, Commission: 0.4}}, nil
		}),
	}
	NewSubmitFlow = func(nav core.Navigator, notifier core.Notifier) (*core.SubmitFlow, error) {
		return core.NewSubmitFlow(core.SubmitFlowDeps{
			Controller: Controller,
			Submitter:  f.backend,
			Balance: func() (float64, bool) {
				b, ok := Stores.Balance.Latest()
				return b.Balance, ok
			},
			Records:   Stores.Records,
			Navigator: nav,
			Notifier:  notifier,
			Events:    f.events,
		})
	}
	return f
}

func pendingRecord(code, created string) models.TaskRecord {
	return models.TaskRecord{
		TaskCode:  code,
		Status:    models.StatusPending,
		CreatedAt: created,
		Product:   models.Product{Name: "Desk Lamp", Price: 20, Commission: 0.4},
	}
}
