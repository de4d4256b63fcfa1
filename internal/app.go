// Package internal provides the App struct that wires all components of the
// commission desk client together and initializes the CLI layer.
package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/commission-desk/internal/api"
	"github.com/valter-silva-au/commission-desk/internal/cli"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/internal/observability"
	"github.com/valter-silva-au/commission-desk/internal/storage"
	"github.com/valter-silva-au/commission-desk/internal/tui"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// EventLogFileName is the event log inside the data directory.
const EventLogFileName = ".cdesk_events.jsonl"

// App holds all service dependencies for the commission desk client.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig
	Logger    *logrus.Logger

	// Storage layer
	SessionStore *storage.FileSessionStore
	Redis        *redis.Client
	Cache        core.SnapshotCache

	// Backend
	Client *api.Client

	// Core services
	Sessions   core.SessionManager
	Router     *core.Router
	Stores     tui.Stores
	Controller *core.SubmitController

	// Observability
	EventLog    observability.EventLog
	Events      *observability.EventRecorder
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier

	closers []io.Closer
}

// NewApp creates and wires all components of the client. basePath is the
// data directory (typically ~/.cdesk).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Logging ---
	logger, logCloser, err := observability.NewLogger(cfg.Log, basePath)
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}
	app.Logger = logger
	app.closers = append(app.closers, logCloser)

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, EventLogFileName)
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: disable observability if log can't be created.
		logger.WithError(err).Warn("event log disabled")
		app.EventLog = nil
	}
	app.Events = observability.NewEventRecorder(app.EventLog)
	if app.EventLog != nil {
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, observability.DefaultAlertThresholds())
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
		app.closers = append(app.closers, app.EventLog)
	}
	if cfg.Notifications.WebhookURL != "" {
		app.Notifier = observability.NewWebhookNotifier(cfg.Notifications.WebhookURL)
	}

	// --- Storage layer ---
	app.SessionStore = storage.NewFileSessionStore(basePath)
	app.Cache = storage.NopSnapshotCache{}
	var redisCache *storage.RedisSnapshotCache
	if cfg.Cache.RedisAddr != "" {
		app.Redis = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.RedisDB})
		redisCache = storage.NewRedisSnapshotCache(app.Redis, cfg.Cache.TTL, logger)
		app.Cache = redisCache
		app.closers = append(app.closers, app.Redis)
	}

	// --- Backend ---
	app.Client = api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, app.sessionToken, logger)

	// --- Core services ---
	sessions := core.NewSessionManager(app.Client, app.SessionStore, app.Events)
	if redisCache != nil {
		sessions = &evictingSessionManager{SessionManager: sessions, cache: redisCache}
	}
	app.Sessions = sessions
	app.Router = core.NewRouter(app.Sessions, nil)
	app.Controller = core.NewSubmitController(cfg.Submit.SubmittedHold)
	app.Stores = tui.Stores{
		Profile:      newStore[models.Profile](app, "profile", app.Client.Profile),
		Balance:      newStore[models.Balance](app, "balance", app.Client.Balance),
		Records:      newStore[[]models.TaskRecord](app, "records", app.Client.TaskRecords),
		Transactions: newStore[[]models.Transaction](app, "transactions", app.Client.Transactions),
		VIPLevels:    newStore[[]models.VIPLevel](app, "vip_levels", app.Client.VIPLevels),
		Products:     newStore[[]models.Product](app, "products", app.Client.Products),
	}

	// --- Wire CLI package-level variables ---
	cli.Config = cfg
	cli.Logger = logger
	cli.Sessions = app.Sessions
	cli.Router = app.Router
	cli.Backend = app.Client
	cli.Stores = app.Stores
	cli.Controller = app.Controller
	cli.NewSubmitFlow = app.NewSubmitFlow
	cli.Timings = tui.Timings{
		SubmitTimings:  app.submitTimings(),
		LoadingOverlay: cfg.Polling.LoadingOverlay,
		PollInterval:   cfg.Polling.Interval,
	}

	cli.Events = app.Events
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	logger.WithFields(logrus.Fields{
		"base_path": basePath,
		"api":       cfg.API.BaseURL,
		"cache":     cfg.Cache.RedisAddr != "",
	}).Debug("app initialized")
	return app, nil
}

// NewSubmitFlow builds a blocking submit driver over the app's controller
// and stores, reporting to the given surface.
func (a *App) NewSubmitFlow(nav core.Navigator, notifier core.Notifier) (*core.SubmitFlow, error) {
	return core.NewSubmitFlow(core.SubmitFlowDeps{
		Controller: a.Controller,
		Submitter:  a.Client,
		Balance: func() (float64, bool) {
			b, ok := a.Stores.Balance.Latest()
			return b.Balance, ok
		},
		Profile:   a.Stores.Profile,
		Records:   a.Stores.Records,
		Navigator: nav,
		Notifier:  notifier,
		Events:    a.Events,
		Logger:    a.Logger,
		Timings:   a.submitTimings(),
	})
}

func (a *App) submitTimings() core.SubmitTimings {
	return core.SubmitTimings{
		Processing:    a.Config.Submit.ProcessingDelay,
		SubmittedHold: a.Config.Submit.SubmittedHold,
		Redirect:      a.Config.Submit.RedirectDelay,
	}
}

// sessionToken is the API client's token source. The session file is the
// single source of truth, so a login from another process is picked up.
func (a *App) sessionToken() string {
	s, err := a.SessionStore.Load()
	if err != nil || s == nil {
		return ""
	}
	return s.Token
}

// cacheScope keys snapshot cache entries by the logged-in user.
func (a *App) cacheScope() string {
	s, err := a.SessionStore.Load()
	if err != nil || s == nil {
		return "anonymous"
	}
	return s.User.ID
}

func newStore[T any](a *App, name string, fetch core.FetchFunc[T]) *core.SnapshotStore[T] {
	return core.NewSnapshotStore(name, fetch,
		core.WithSnapshotCache[T](a.Cache, a.cacheScope),
		core.WithSnapshotLogger[T](a.Logger),
	)
}

// Close releases the open log files and the Redis connection. It is safe to
// call more than once.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// ResolveBasePath determines the data directory. It checks the CDESK_HOME
// env var, then walks up from the current directory looking for .cdeskconfig,
// and falls back to ~/.cdesk.
func ResolveBasePath() string {
	if home := os.Getenv("CDESK_HOME"); home != "" {
		return home
	}
	if dir, err := os.Getwd(); err == nil {
		for {
			if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName)); err == nil {
				return dir
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cdesk")
	}
	return ".cdesk"
}

// --- Adapters ---

// evictingSessionManager drops the user's cached snapshots on logout.
type evictingSessionManager struct {
	core.SessionManager
	cache *storage.RedisSnapshotCache
}

func (m *evictingSessionManager) Logout() error {
	s, _ := m.SessionManager.Current()
	if err := m.SessionManager.Logout(); err != nil {
		return err
	}
	if s != nil {
		m.cache.Evict(context.Background(), s.User.ID)
	}
	return nil
}
