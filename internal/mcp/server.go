// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the logged-in account and its task records as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/internal/observability"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// Deps are the services the tools read from. MetricsCalc, AlertEngine and
// NewFlow may be nil; the matching tools then report an error.
type Deps struct {
	Sessions    core.SessionReader
	Records     *core.SnapshotStore[[]models.TaskRecord]
	Profile     *core.SnapshotStore[models.Profile]
	Balance     *core.SnapshotStore[models.Balance]
	Controller  *core.SubmitController
	NewFlow     core.SubmitFlowFactory
	MetricsCalc observability.MetricsCalculator
	AlertEngine observability.AlertEngine
}

// Server wraps the client services and exposes them as MCP tools.
type Server struct {
	server *gomcp.Server
	deps   Deps
}

// NewServer creates a new MCP server.
func NewServer(deps Deps, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{deps: deps}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "cdesk", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type listRecordsInput struct {
	Tab string `json:"tab,omitempty" jsonschema:"records tab to show: All, Pending or Completed. Defaults to All."`
}

type recordOutput struct {
	TaskCode     string  `json:"task_code"`
	Status       string  `json:"status"`
	Product      string  `json:"product"`
	Price        float64 `json:"price"`
	Commission   float64 `json:"commission"`
	IsCombo      bool    `json:"is_combo"`
	ComboGroupID string  `json:"combo_group_id,omitempty"`
	ComboIndex   int     `json:"combo_index,omitempty"`
	CanSubmit    bool    `json:"can_submit"`
	ShowSubmit   bool    `json:"show_submit"`
	SubmitState  string  `json:"submit_state"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

type listRecordsOutput struct {
	Tab     string         `json:"tab"`
	Records []recordOutput `json:"records"`
	Count   int            `json:"count"`
}

type getAccountInput struct{}

type accountOutput struct {
	Username        string  `json:"username"`
	VIPLevel        int     `json:"vip_level"`
	Balance         float64 `json:"balance"`
	Frozen          float64 `json:"frozen"`
	Commission      float64 `json:"commission"`
	TodayCommission float64 `json:"today_commission"`
	CompletedToday  int     `json:"completed_today"`
	DailyLimit      int     `json:"daily_limit"`
}

type submitRecordInput struct {
	TaskCode string `json:"task_code" jsonschema:"the task code of the record to submit"`
}

type submitRecordOutput struct {
	Outcome  string   `json:"outcome"`
	Messages []string `json:"messages,omitempty"`
	Redirect string   `json:"redirect,omitempty"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	Logins              int            `json:"logins"`
	SubmitsStarted      int            `json:"submits_started"`
	SubmitsSucceeded    int            `json:"submits_succeeded"`
	SubmitsFailed       int            `json:"submits_failed"`
	MustDeposit         int            `json:"must_deposit"`
	InsufficientBalance int            `json:"insufficient_balance"`
	SuccessRate         float64        `json:"success_rate"`
	DepositedAmount     float64        `json:"deposited_amount"`
	WithdrawnAmount     float64        `json:"withdrawn_amount"`
	FailureReasons      map[string]int `json:"failure_reasons"`
	EventCount          int            `json:"event_count"`
	OldestEvent         string         `json:"oldest_event,omitempty"`
	NewestEvent         string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_task_records",
		Description: "List the account's task records in display order, with whether each can be submitted and its local submit state.",
	}, s.handleListRecords)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_account",
		Description: "Get the logged-in account: username, VIP level, balance and commission totals.",
	}, s.handleGetAccount)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "submit_task_record",
		Description: "Submit a pending task record. Blocks for the processing delay and reports succeeded, must_deposit or failed.",
	}, s.handleSubmitRecord)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated client metrics from the event log: logins, submit outcomes, deposits and withdrawals.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (high submit failure rate, repeated deposit prompts, unresolved submits).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleListRecords(ctx context.Context, _ *gomcp.CallToolRequest, input listRecordsInput) (*gomcp.CallToolResult, listRecordsOutput, error) {
	if msg := s.checkSession(); msg != "" {
		return errorResult(msg), listRecordsOutput{}, nil
	}

	tab := models.TabAll
	if input.Tab != "" {
		t, ok := models.ParseTab(input.Tab)
		if !ok {
			return errorResult(fmt.Sprintf("invalid tab %q: must be one of All, Pending, Completed", input.Tab)), listRecordsOutput{}, nil
		}
		tab = t
	}

	if err := s.deps.Records.Refresh(ctx); err != nil {
		return errorResult(fmt.Sprintf("loading task records: %s", err)), listRecordsOutput{}, nil
	}
	records, _ := s.deps.Records.Latest()
	s.deps.Controller.Reconcile(records, time.Now())

	views := core.Reconcile(records, tab, s.deps.Controller)
	out := listRecordsOutput{
		Tab:     string(tab),
		Records: make([]recordOutput, len(views)),
		Count:   len(views),
	}
	for i, v := range views {
		out.Records[i] = recordToOutput(v)
	}
	return nil, out, nil
}

func (s *Server) handleGetAccount(ctx context.Context, _ *gomcp.CallToolRequest, _ getAccountInput) (*gomcp.CallToolResult, accountOutput, error) {
	if msg := s.checkSession(); msg != "" {
		return errorResult(msg), accountOutput{}, nil
	}
	if err := s.deps.Profile.Refresh(ctx); err != nil {
		return errorResult(fmt.Sprintf("loading profile: %s", err)), accountOutput{}, nil
	}
	if err := s.deps.Balance.Refresh(ctx); err != nil {
		return errorResult(fmt.Sprintf("loading balance: %s", err)), accountOutput{}, nil
	}

	prof, _ := s.deps.Profile.Latest()
	bal, _ := s.deps.Balance.Latest()
	return nil, accountOutput{
		Username:        prof.User.Username,
		VIPLevel:        prof.User.VIPLevel,
		Balance:         bal.Balance,
		Frozen:          bal.Frozen,
		Commission:      prof.Commission,
		TodayCommission: prof.TodayCommission,
		CompletedToday:  prof.CompletedToday,
		DailyLimit:      prof.DailyLimit,
	}, nil
}

// collector records what the submit flow would have shown a user.
type collector struct {
	mu       sync.Mutex
	messages []string
	redirect string
}

func (c *collector) Toast(msg string) { c.add(msg) }
func (c *collector) Alert(msg string) { c.add(msg) }

func (c *collector) add(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *collector) Navigate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redirect = path
}

func (s *Server) handleSubmitRecord(ctx context.Context, _ *gomcp.CallToolRequest, input submitRecordInput) (*gomcp.CallToolResult, submitRecordOutput, error) {
	if input.TaskCode == "" {
		return errorResult("task_code is required"), submitRecordOutput{}, nil
	}
	if msg := s.checkSession(); msg != "" {
		return errorResult(msg), submitRecordOutput{}, nil
	}
	if s.deps.NewFlow == nil {
		return errorResult("submitting is not available"), submitRecordOutput{}, nil
	}

	if err := s.deps.Records.Refresh(ctx); err != nil {
		return errorResult(fmt.Sprintf("loading task records: %s", err)), submitRecordOutput{}, nil
	}
	_ = s.deps.Balance.Refresh(ctx)

	records, _ := s.deps.Records.Latest()
	var target *core.RecordView
	views := core.Reconcile(records, models.TabAll, s.deps.Controller)
	for i := range views {
		if views[i].Record.TaskCode == input.TaskCode {
			target = &views[i]
			break
		}
	}
	if target == nil {
		return errorResult(fmt.Sprintf("task record %s not found", input.TaskCode)), submitRecordOutput{}, nil
	}
	if !target.ShowSubmit || target.Disabled {
		return errorResult(fmt.Sprintf("task record %s cannot be submitted now", input.TaskCode)), submitRecordOutput{}, nil
	}

	ui := &collector{}
	flow, err := s.deps.NewFlow(ui, ui)
	if err != nil {
		return errorResult(fmt.Sprintf("preparing submit: %s", err)), submitRecordOutput{}, nil
	}
	outcome, err := flow.Submit(ctx, target.Record)
	if err != nil {
		return errorResult(fmt.Sprintf("submitting %s: %s", input.TaskCode, err)), submitRecordOutput{}, nil
	}

	ui.mu.Lock()
	defer ui.mu.Unlock()
	return nil, submitRecordOutput{
		Outcome:  outcome.String(),
		Messages: ui.messages,
		Redirect: ui.redirect,
	}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.deps.MetricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	m, err := s.deps.MetricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		Logins:              m.Logins,
		SubmitsStarted:      m.SubmitsStarted,
		SubmitsSucceeded:    m.SubmitsSucceeded,
		SubmitsFailed:       m.SubmitsFailed,
		MustDeposit:         m.MustDeposit,
		InsufficientBalance: m.InsufficientBalance,
		SuccessRate:         m.SuccessRate(),
		DepositedAmount:     m.DepositedAmount,
		WithdrawnAmount:     m.WithdrawnAmount,
		FailureReasons:      m.FailureReasons,
		EventCount:          m.EventCount,
	}
	if m.OldestEvent != nil {
		out.OldestEvent = m.OldestEvent.Format(time.RFC3339)
	}
	if m.NewestEvent != nil {
		out.NewestEvent = m.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.deps.AlertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.deps.AlertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

// checkSession returns an error message when nobody is logged in.
func (s *Server) checkSession() string {
	if _, err := core.RequireSession(s.deps.Sessions); err != nil {
		return fmt.Sprintf("%s, run 'cdesk login' first", err)
	}
	return ""
}

func recordToOutput(v core.RecordView) recordOutput {
	r := v.Record
	return recordOutput{
		TaskCode:     r.TaskCode,
		Status:       string(r.Status),
		Product:      r.Product.Name,
		Price:        r.Product.Price,
		Commission:   r.Product.Commission,
		IsCombo:      r.IsCombo,
		ComboGroupID: r.ComboGroupID,
		ComboIndex:   r.ComboIndex,
		CanSubmit:    r.CanSubmit,
		ShowSubmit:   v.ShowSubmit,
		SubmitState:  v.State.String(),
		CreatedAt:    r.CreatedAt,
	}
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{FailureReasons: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
