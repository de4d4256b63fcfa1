package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

type recordsLoadedMsg struct {
	gen int
	err error
}

type overlayDoneMsg struct{ gen int }

type pollMsg struct{ gen int }

type processDoneMsg struct {
	gen int
	rec models.TaskRecord
}

type submitResultMsg struct {
	gen  int
	code string
	res  models.SubmitResult
	err  error
}

type holdDoneMsg struct {
	gen  int
	code string
}

type redirectMsg struct {
	gen  int
	path string
}

type taskStartedMsg struct {
	gen int
	err error
}

// recordsPage is the task records reconciliation view. It polls the records
// feed while mounted and drives the shared SubmitController with timer
// messages.
type recordsPage struct {
	svc    *Services
	ctx    context.Context
	cancel context.CancelFunc
	gen    int

	tab      models.Tab
	views    []core.RecordView
	cursor   int
	loading  bool
	err      error
	inflight map[string]bool
}

func newRecordsPage(parent context.Context, svc *Services, gen int) *recordsPage {
	ctx, cancel := context.WithCancel(parent)
	p := &recordsPage{
		svc:      svc,
		ctx:      ctx,
		cancel:   cancel,
		gen:      gen,
		tab:      models.TabAll,
		loading:  true,
		inflight: make(map[string]bool),
	}
	p.svc.Stores.Records.Prime(ctx)
	p.rebuild()
	return p
}

func (p *recordsPage) Init() tea.Cmd {
	gen := p.gen
	return tea.Batch(
		p.refresh(false),
		tea.Tick(p.svc.Timings.LoadingOverlay, func(time.Time) tea.Msg { return overlayDoneMsg{gen: gen} }),
		p.schedulePoll(),
	)
}

func (p *recordsPage) schedulePoll() tea.Cmd {
	gen := p.gen
	return tea.Tick(p.svc.Timings.PollInterval, func(time.Time) tea.Msg { return pollMsg{gen: gen} })
}

// refresh reloads records and balance, and the profile after a submit.
// Errors keep the previous snapshots.
func (p *recordsPage) refresh(withProfile bool) tea.Cmd {
	ctx, gen, stores := p.ctx, p.gen, p.svc.Stores
	return func() tea.Msg {
		err := stores.Records.Refresh(ctx)
		_ = stores.Balance.Refresh(ctx)
		if withProfile {
			_ = stores.Profile.Refresh(ctx)
		}
		return recordsLoadedMsg{gen: gen, err: err}
	}
}

func (p *recordsPage) Update(msg tea.Msg) (page, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return p, p.handleKey(msg)

	case alertDismissedMsg:
		p.rebuild()
		return p, nil

	case recordsLoadedMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		p.err = msg.err
		if records, ok := p.svc.Stores.Records.Latest(); ok {
			p.svc.Controller.Reconcile(records, p.svc.now())
		}
		p.rebuild()
		return p, nil

	case overlayDoneMsg:
		if msg.gen == p.gen {
			p.loading = false
		}
		return p, nil

	case pollMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		return p, tea.Batch(p.refresh(false), p.schedulePoll())

	case processDoneMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		return p, p.submit(msg.rec.TaskCode)

	case submitResultMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		return p, p.resolve(msg)

	case holdDoneMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		p.svc.Controller.Clear(msg.code)
		p.rebuild()
		return p, nil

	case redirectMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		return p, navigate(msg.path)

	case taskStartedMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		if msg.err != nil {
			return p, toast(msg.err.Error())
		}
		return p, p.refresh(false)
	}
	return p, nil
}

func (p *recordsPage) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.views)-1 {
			p.cursor++
		}
	case "tab", "right", "l":
		p.setTab(1)
	case "shift+tab", "left", "h":
		p.setTab(len(models.Tabs) - 1)
	case "r":
		return p.refresh(false)
	case "n":
		return p.startTask()
	case "enter", "s":
		return p.begin()
	}
	return nil
}

func (p *recordsPage) setTab(step int) {
	for i, t := range models.Tabs {
		if t == p.tab {
			p.tab = models.Tabs[(i+step)%len(models.Tabs)]
			break
		}
	}
	p.cursor = 0
	p.rebuild()
}

func (p *recordsPage) startTask() tea.Cmd {
	ctx, gen, backend := p.ctx, p.gen, p.svc.Backend
	return func() tea.Msg {
		_, err := backend.StartTask(ctx)
		return taskStartedMsg{gen: gen, err: err}
	}
}

// begin handles a submit on the selected row.
func (p *recordsPage) begin() tea.Cmd {
	if p.cursor >= len(p.views) {
		return nil
	}
	view := p.views[p.cursor]
	if !view.ShowSubmit || view.Disabled {
		return nil
	}
	rec := view.Record

	balance := 0.0
	if b, ok := p.svc.Stores.Balance.Latest(); ok {
		balance = b.Balance
	}

	switch p.svc.Controller.Begin(rec, balance) {
	case core.DecisionIgnored:
		return nil
	case core.DecisionInsufficient:
		p.svc.logEvent("submit.insufficient_balance", map[string]any{"task_code": rec.TaskCode, "balance": balance})
		return p.redirectToDeposit()
	}

	p.svc.logEvent("submit.started", map[string]any{"task_code": rec.TaskCode})
	p.inflight[rec.TaskCode] = true
	p.rebuild()

	gen := p.gen
	return tea.Tick(p.svc.Timings.Processing, func(time.Time) tea.Msg { return processDoneMsg{gen: gen, rec: rec} })
}

func (p *recordsPage) submit(code string) tea.Cmd {
	ctx, gen, backend := p.ctx, p.gen, p.svc.Backend
	return func() tea.Msg {
		res, err := backend.SubmitTaskRecord(ctx, code)
		return submitResultMsg{gen: gen, code: code, res: res, err: err}
	}
}

func (p *recordsPage) resolve(msg submitResultMsg) tea.Cmd {
	delete(p.inflight, msg.code)
	if msg.err != nil {
		p.svc.Logger.WithField("task_code", msg.code).WithError(msg.err).Warn("submit request failed")
	}

	outcome, text := p.svc.Controller.Resolve(msg.code, msg.res, msg.err, p.svc.now())
	p.rebuild()

	switch outcome {
	case core.OutcomeSucceeded:
		p.svc.logEvent("submit.succeeded", map[string]any{"task_code": msg.code})
		gen, code := p.gen, msg.code
		return tea.Batch(
			p.refresh(true),
			tea.Tick(p.svc.Timings.SubmittedHold, func(time.Time) tea.Msg { return holdDoneMsg{gen: gen, code: code} }),
		)
	case core.OutcomeMustDeposit:
		p.svc.logEvent("submit.must_deposit", map[string]any{"task_code": msg.code})
		return p.redirectToDeposit()
	case core.OutcomeFailed:
		p.svc.logEvent("submit.failed", map[string]any{"task_code": msg.code, "message": text})
		return alert(text, msg.code)
	}
	return nil
}

func (p *recordsPage) redirectToDeposit() tea.Cmd {
	gen := p.gen
	return tea.Batch(
		toast(core.InsufficientBalanceMessage),
		tea.Tick(p.svc.Timings.Redirect, func(time.Time) tea.Msg { return redirectMsg{gen: gen, path: core.DepositPath} }),
	)
}

func (p *recordsPage) rebuild() {
	records, _ := p.svc.Stores.Records.Latest()
	p.views = core.Reconcile(records, p.tab, p.svc.Controller)
	if p.cursor >= len(p.views) {
		p.cursor = len(p.views) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

// Leave stops the page's timers and requests. Submits still in their
// processing delay are abandoned so the key returns to idle.
func (p *recordsPage) Leave() {
	p.cancel()
	for code := range p.inflight {
		p.svc.Controller.Abandon(code)
	}
	p.inflight = make(map[string]bool)
}

func (p *recordsPage) Captures() bool { return false }

func (p *recordsPage) Help() string {
	return "tab: switch tab | up/down: select | enter: submit | n: new task | r: refresh"
}

func (p *recordsPage) View(width int) string {
	var b strings.Builder

	tabs := make([]string, len(models.Tabs))
	for i, t := range models.Tabs {
		if t == p.tab {
			tabs[i] = activeTabStyle.Render(string(t))
		} else {
			tabs[i] = tabStyle.Render(string(t))
		}
	}
	b.WriteString(strings.Join(tabs, "   "))
	b.WriteString("\n\n")

	if p.loading {
		b.WriteString(overlayStyle.Render("Loading records..."))
		return b.String()
	}

	if p.err != nil && len(p.views) == 0 {
		b.WriteString(errorStyle.Render("Could not load records: " + p.err.Error()))
		return b.String()
	}

	if len(p.views) == 0 {
		b.WriteString("  No records. Press n to start a task.")
		return b.String()
	}

	for i, v := range p.views {
		row := renderRecordRow(v)
		if i == p.cursor {
			row = selectedRowStyle.Render("> " + row)
		} else {
			row = "  " + row
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRecordRow(v core.RecordView) string {
	r := v.Record
	name := r.Product.Name
	if name == "" {
		name = "-"
	}
	cols := []string{
		fmt.Sprintf("%-10s", r.TaskCode),
		fmt.Sprintf("%-22s", truncate(name, 22)),
		fmt.Sprintf("%10.2f", r.Product.Price),
		fmt.Sprintf("+%-8.2f", r.Product.Commission),
		styleForStatus(r).Render(fmt.Sprintf("%-10s", r.Status)),
	}
	if r.IsCombo {
		cols = append(cols, comboStyle.Render(fmt.Sprintf("combo #%d", r.ComboIndex)))
	}
	if v.ShowSubmit {
		style := buttonStyle
		if v.Disabled {
			style = disabledStyle
		}
		cols = append(cols, style.Render(v.Label))
	}
	return strings.Join(cols, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
