package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/internal/observability"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// --- Fake implementations ---

type fakeSessions struct {
	session *models.Session
}

func (f *fakeSessions) Current() (*models.Session, error) {
	if f.session == nil {
		return nil, core.ErrNoSession
	}
	return f.session, nil
}

type fakeSubmitter struct {
	mu      sync.Mutex
	result  models.SubmitResult
	err     error
	submits []string
}

func (f *fakeSubmitter) SubmitTaskRecord(_ context.Context, code string) (models.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, code)
	return f.result, f.err
}

type fakeMetricsCalculator struct {
	metrics *observability.Metrics
}

func (f *fakeMetricsCalculator) Calculate(_ time.Time) (*observability.Metrics, error) {
	return f.metrics, nil
}

type fakeAlertEngine struct {
	alerts []observability.Alert
}

func (f *fakeAlertEngine) Evaluate() ([]observability.Alert, error) {
	return f.alerts, nil
}

// --- Test helpers ---

type fixture struct {
	records   []models.TaskRecord
	balance   float64
	submitter *fakeSubmitter
	sessions  *fakeSessions
	deps      Deps
}

func newFixture(records ...models.TaskRecord) *fixture {
	f := &fixture{
		records:   records,
		balance:   100,
		submitter: &fakeSubmitter{result: models.SubmitResult{Success: true}},
		sessions: &fakeSessions{session: &models.Session{
			User:  models.User{ID: "u1", Username: "alice", VIPLevel: 2},
			Token: "tok",
		}},
	}

	ctrl := core.NewSubmitController(0)
	recordsStore := core.NewSnapshotStore[[]models.TaskRecord]("records", func(context.Context) ([]models.TaskRecord, error) {
		return append([]models.TaskRecord(nil), f.records...), nil
	})
	profile := core.NewSnapshotStore[models.Profile]("profile", func(context.Context) (models.Profile, error) {
		return models.Profile{
			User:           f.sessions.session.User,
			Commission:     12.5,
			CompletedToday: 3,
			DailyLimit:     40,
		}, nil
	})
	balance := core.NewSnapshotStore[models.Balance]("balance", func(context.Context) (models.Balance, error) {
		return models.Balance{Balance: f.balance, Frozen: 1}, nil
	})

	f.deps = Deps{
		Sessions:   f.sessions,
		Records:    recordsStore,
		Profile:    profile,
		Balance:    balance,
		Controller: ctrl,
		NewFlow: func(nav core.Navigator, notifier core.Notifier) (*core.SubmitFlow, error) {
			return core.NewSubmitFlow(core.SubmitFlowDeps{
				Controller: ctrl,
				Submitter:  f.submitter,
				Balance: func() (float64, bool) {
					b, ok := balance.Latest()
					return b.Balance, ok
				},
				Profile:   profile,
				Records:   recordsStore,
				Navigator: nav,
				Notifier:  notifier,
			})
		},
	}
	return f
}

func (f *fixture) server() *Server {
	return NewServer(f.deps, "test")
}

func pending(code, created string) models.TaskRecord {
	return models.TaskRecord{
		TaskCode:  code,
		Status:    models.StatusPending,
		CreatedAt: created,
		Product:   models.Product{Name: "Desk Lamp", Price: 20, Commission: 0.4},
	}
}

func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()

	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("call tool %s: %v", toolName, err)
	}
	return result
}

// decode reads a tool's output from its text content, falling back to the
// structured content.
func decode(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	text := extractText(result)
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return
	}
	if result.StructuredContent == nil {
		t.Fatalf("no decodable output (text was: %s)", text)
	}
	data, _ := json.Marshal(result.StructuredContent)
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshalling structured content: %v", err)
	}
}

func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- Tests ---

func TestListTaskRecords_DisplayOrder(t *testing.T) {
	done := pending("TK2", "2025-03-02T10:00:00Z")
	done.Status = models.StatusCompleted
	f := newFixture(pending("TK1", "2025-03-01T10:00:00Z"), done)

	var out listRecordsOutput
	decode(t, callTool(t, f.server(), "list_task_records", nil), &out)

	if out.Tab != "All" || out.Count != 2 {
		t.Fatalf("got tab %s count %d, want All 2", out.Tab, out.Count)
	}
	if out.Records[0].TaskCode != "TK2" {
		t.Errorf("first record = %s, want newest TK2", out.Records[0].TaskCode)
	}
	if out.Records[0].ShowSubmit {
		t.Error("completed record must not offer submit")
	}
	if !out.Records[1].ShowSubmit || out.Records[1].SubmitState != "idle" {
		t.Errorf("pending record = %+v", out.Records[1])
	}
}

func TestListTaskRecords_TabFilter(t *testing.T) {
	done := pending("TK2", "2025-03-02T10:00:00Z")
	done.Status = models.StatusCompleted
	f := newFixture(pending("TK1", "2025-03-01T10:00:00Z"), done)

	var out listRecordsOutput
	decode(t, callTool(t, f.server(), "list_task_records", map[string]any{"tab": "pending"}), &out)

	if out.Count != 1 || out.Records[0].TaskCode != "TK1" {
		t.Errorf("pending tab = %+v", out.Records)
	}
}

func TestListTaskRecords_InvalidTab(t *testing.T) {
	f := newFixture()
	result := callTool(t, f.server(), "list_task_records", map[string]any{"tab": "archived"})
	if !result.IsError {
		t.Fatal("expected an error for an unknown tab")
	}
	if !strings.Contains(extractText(result), "invalid tab") {
		t.Errorf("unexpected message: %s", extractText(result))
	}
}

func TestTools_RequireSession(t *testing.T) {
	f := newFixture(pending("TK1", "2025-03-01T10:00:00Z"))
	f.sessions.session = nil
	srv := f.server()

	for _, tool := range []string{"list_task_records", "get_account"} {
		result := callTool(t, srv, tool, nil)
		if !result.IsError || !strings.Contains(extractText(result), "not logged in") {
			t.Errorf("%s: got %q, want not logged in error", tool, extractText(result))
		}
	}
	result := callTool(t, srv, "submit_task_record", map[string]any{"task_code": "TK1"})
	if !result.IsError {
		t.Error("submit_task_record must require a session")
	}
	if len(f.submitter.submits) != 0 {
		t.Error("no submit may be sent without a session")
	}
}

func TestGetAccount(t *testing.T) {
	f := newFixture()

	var out accountOutput
	decode(t, callTool(t, f.server(), "get_account", nil), &out)

	if out.Username != "alice" || out.VIPLevel != 2 {
		t.Errorf("user = %s vip %d", out.Username, out.VIPLevel)
	}
	if out.Balance != 100 || out.Frozen != 1 || out.Commission != 12.5 {
		t.Errorf("funds = %+v", out)
	}
	if out.CompletedToday != 3 || out.DailyLimit != 40 {
		t.Errorf("progress = %d/%d", out.CompletedToday, out.DailyLimit)
	}
}

func TestSubmitTaskRecord_Success(t *testing.T) {
	f := newFixture(pending("TK1", "2025-03-01T10:00:00Z"))

	var out submitRecordOutput
	decode(t, callTool(t, f.server(), "submit_task_record", map[string]any{"task_code": "TK1"}), &out)

	if out.Outcome != "succeeded" {
		t.Errorf("outcome = %s, want succeeded", out.Outcome)
	}
	if len(f.submitter.submits) != 1 || f.submitter.submits[0] != "TK1" {
		t.Errorf("submits = %v", f.submitter.submits)
	}
	if got := f.deps.Controller.State("TK1"); got != core.SubmitIdle {
		t.Errorf("state = %s, want idle after the hold", got)
	}
}

func TestSubmitTaskRecord_MustDeposit(t *testing.T) {
	f := newFixture(pending("TK1", "2025-03-01T10:00:00Z"))
	f.submitter.result = models.SubmitResult{MustDeposit: true}

	var out submitRecordOutput
	decode(t, callTool(t, f.server(), "submit_task_record", map[string]any{"task_code": "TK1"}), &out)

	if out.Outcome != "must_deposit" {
		t.Errorf("outcome = %s, want must_deposit", out.Outcome)
	}
	if out.Redirect != core.DepositPath {
		t.Errorf("redirect = %q, want %s", out.Redirect, core.DepositPath)
	}
	if len(out.Messages) != 1 || out.Messages[0] != core.InsufficientBalanceMessage {
		t.Errorf("messages = %v", out.Messages)
	}
}

func TestSubmitTaskRecord_Failure(t *testing.T) {
	f := newFixture(pending("TK1", "2025-03-01T10:00:00Z"))
	f.submitter.err = errors.New("connection reset")

	var out submitRecordOutput
	decode(t, callTool(t, f.server(), "submit_task_record", map[string]any{"task_code": "TK1"}), &out)

	if out.Outcome != "failed" {
		t.Errorf("outcome = %s, want failed", out.Outcome)
	}
	if len(out.Messages) != 1 || !strings.Contains(out.Messages[0], "connection reset") {
		t.Errorf("messages = %v", out.Messages)
	}
}

func TestSubmitTaskRecord_NotSubmittable(t *testing.T) {
	done := pending("TK2", "2025-03-02T10:00:00Z")
	done.Status = models.StatusCompleted
	f := newFixture(done)
	srv := f.server()

	tests := []struct {
		code string
		want string
	}{
		{"TK2", "cannot be submitted"},
		{"NOPE", "not found"},
		{"", "task_code is required"},
	}
	for _, tt := range tests {
		result := callTool(t, srv, "submit_task_record", map[string]any{"task_code": tt.code})
		if !result.IsError || !strings.Contains(extractText(result), tt.want) {
			t.Errorf("code %q: got %q, want %q", tt.code, extractText(result), tt.want)
		}
	}
	if len(f.submitter.submits) != 0 {
		t.Errorf("submits = %v, want none", f.submitter.submits)
	}
}

func TestGetMetrics(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()
	f.deps.MetricsCalc = &fakeMetricsCalculator{metrics: &observability.Metrics{
		Logins:           2,
		SubmitsStarted:   4,
		SubmitsSucceeded: 3,
		SubmitsFailed:    1,
		FailureReasons:   map[string]int{"Daily limit reached": 1},
		EventCount:       10,
		OldestEvent:      &now,
		NewestEvent:      &now,
	}}

	var out metricsOutput
	decode(t, callTool(t, f.server(), "get_metrics", map[string]any{"since": "30d"}), &out)

	if out.Logins != 2 || out.SubmitsSucceeded != 3 {
		t.Errorf("metrics = %+v", out)
	}
	if out.SuccessRate != 75 {
		t.Errorf("success rate = %v, want 75", out.SuccessRate)
	}
	if out.FailureReasons["Daily limit reached"] != 1 {
		t.Errorf("failure reasons = %v", out.FailureReasons)
	}
	if out.OldestEvent == "" {
		t.Error("expected oldest_event")
	}
}

func TestGetMetrics_Unavailable(t *testing.T) {
	result := callTool(t, newFixture().server(), "get_metrics", nil)
	if !result.IsError {
		t.Error("expected an error without a metrics calculator")
	}
}

func TestGetMetrics_InvalidSince(t *testing.T) {
	f := newFixture()
	f.deps.MetricsCalc = &fakeMetricsCalculator{metrics: &observability.Metrics{}}
	result := callTool(t, f.server(), "get_metrics", map[string]any{"since": "2w"})
	if !result.IsError {
		t.Error("expected an error for an unsupported suffix")
	}
}

func TestGetAlerts(t *testing.T) {
	f := newFixture()
	f.deps.AlertEngine = &fakeAlertEngine{alerts: []observability.Alert{{
		ID:          "submit-failure-rate",
		Condition:   "submit_failure_rate_high",
		Severity:    observability.SeverityHigh,
		Message:     "4 of 5 submits failed",
		TriggeredAt: time.Now(),
	}}}

	var out getAlertsOutput
	decode(t, callTool(t, f.server(), "get_alerts", nil), &out)

	if out.Count != 1 || out.Alerts[0].Severity != "high" {
		t.Errorf("alerts = %+v", out.Alerts)
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
		approx  time.Duration
	}{
		{"7d", false, 7 * 24 * time.Hour},
		{"24h", false, 24 * time.Hour},
		{"d", true, 0},
		{"xd", true, 0},
		{"3m", true, 0},
	}
	for _, tt := range tests {
		got, err := parseSince(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSince(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if diff := time.Since(got) - tt.approx; diff < -time.Minute || diff > time.Minute {
			t.Errorf("parseSince(%q) = %v, off by %v", tt.in, got, diff)
		}
	}
}
