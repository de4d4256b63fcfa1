package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/valter-silva-au/commission-desk/internal/cli"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestResolveBasePath_HomeEnvSet(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CDESK_HOME", tmpDir)

	if got := ResolveBasePath(); got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q", got, tmpDir)
	}
}

func TestResolveBasePath_FindsConfigInParent(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "sub", "nested")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, core.ConfigFileName), []byte("log:\n  level: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CDESK_HOME", "")
	chdir(t, subDir)

	got := ResolveBasePath()
	// macOS temp dirs resolve through /private.
	want, _ := filepath.EvalSymlinks(tmpDir)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Errorf("ResolveBasePath() = %q, want %q", got, tmpDir)
	}
}

func TestResolveBasePath_FallsBackToHomeDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CDESK_HOME", "")
	t.Setenv("HOME", home)
	chdir(t, t.TempDir())

	got := ResolveBasePath()
	if !strings.HasSuffix(got, ".cdesk") {
		t.Errorf("ResolveBasePath() = %q, want a path ending in .cdesk", got)
	}
}

func TestNewApp_WiresCLI(t *testing.T) {
	basePath := filepath.Join(t.TempDir(), "data")

	app, err := NewApp(basePath)
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if app.Config == nil || app.Logger == nil {
		t.Fatal("config and logger should be set")
	}
	if app.EventLog == nil || app.MetricsCalc == nil || app.AlertEngine == nil {
		t.Error("observability should be enabled")
	}
	if app.Redis != nil {
		t.Error("redis should stay disabled without cache.redis_addr")
	}
	if app.Notifier != nil {
		t.Error("notifier should stay nil without notifications.webhook_url")
	}
	if _, err := os.Stat(filepath.Join(basePath, EventLogFileName)); err != nil {
		t.Errorf("event log not created: %v", err)
	}

	if cli.Config != app.Config {
		t.Error("cli.Config should be the loaded config")
	}
	if cli.Sessions == nil || cli.Router == nil || cli.Backend == nil {
		t.Error("cli session, router and backend should be wired")
	}
	if cli.Stores.Records == nil || cli.Stores.Balance == nil || cli.Stores.Profile == nil {
		t.Error("cli stores should be wired")
	}
	if cli.NewSubmitFlow == nil || cli.Controller != app.Controller {
		t.Error("cli submit flow should use the app controller")
	}
	if cli.Timings.PollInterval != app.Config.Polling.Interval {
		t.Errorf("poll interval = %v, want %v", cli.Timings.PollInterval, app.Config.Polling.Interval)
	}
}

func TestNewApp_GuardsRoutesWithoutSession(t *testing.T) {
	app, err := NewApp(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if _, err := app.Sessions.Current(); err != core.ErrNoSession {
		t.Errorf("Current() error = %v, want ErrNoSession", err)
	}
	if got, redirected := app.Router.Resolve(core.PathDashboard); got.Path != core.PathLogin || !redirected {
		t.Errorf("Resolve(dashboard) = %q (redirected %v), want %q", got.Path, redirected, core.PathLogin)
	}
	if tok := app.sessionToken(); tok != "" {
		t.Errorf("sessionToken() = %q, want empty", tok)
	}
	if scope := app.cacheScope(); scope != "anonymous" {
		t.Errorf("cacheScope() = %q, want anonymous", scope)
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	basePath := t.TempDir()
	cfg := "log:\n  level: loud\n"
	if err := os.WriteFile(filepath.Join(basePath, core.ConfigFileName), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewApp(basePath); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestNewApp_SubmitFlowUsesConfiguredTimings(t *testing.T) {
	app, err := NewApp(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = app.Close() })

	got := app.submitTimings()
	if got.Processing != app.Config.Submit.ProcessingDelay || got.Redirect != app.Config.Submit.RedirectDelay {
		t.Errorf("submitTimings() = %+v, does not match config", got)
	}
	if _, err := app.NewSubmitFlow(nil, nil); err == nil {
		t.Error("NewSubmitFlow without a surface should fail")
	}
}

func TestNewApp_RedisCacheEvictedOnLogout(t *testing.T) {
	mr := miniredis.RunT(t)
	basePath := t.TempDir()
	cfg := "cache:\n  redis_addr: " + mr.Addr() + "\n"
	if err := os.WriteFile(filepath.Join(basePath, core.ConfigFileName), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := NewApp(basePath)
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	if app.Redis == nil {
		t.Fatal("redis client should be configured")
	}

	session := &models.Session{
		User:      models.User{ID: "u7", Username: "alice"},
		Token:     "tok",
		CreatedAt: time.Now(),
	}
	if err := app.SessionStore.Save(session); err != nil {
		t.Fatal(err)
	}
	if got := app.sessionToken(); got != "tok" {
		t.Errorf("sessionToken() = %q, want tok", got)
	}
	if got := app.cacheScope(); got != "u7" {
		t.Errorf("cacheScope() = %q, want u7", got)
	}

	app.Cache.Store(context.Background(), "u7:balance", models.Balance{Balance: 12})
	if len(mr.Keys()) == 0 {
		t.Fatal("expected a cached snapshot in redis")
	}

	if err := app.Sessions.Logout(); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("cache keys after logout = %v, want none", keys)
	}
	if _, err := app.Sessions.Current(); err != core.ErrNoSession {
		t.Errorf("Current() after logout = %v, want ErrNoSession", err)
	}
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	app, err := NewApp(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("first Close() error: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
