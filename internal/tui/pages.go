package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

func newPage(ctx context.Context, svc *Services, route core.Route, gen int) page {
	st := svc.Stores
	switch route.Path {
	case core.PathRecords:
		return newRecordsPage(ctx, svc, gen)
	case core.PathDashboard:
		return newDataPage(ctx, gen, func(ctx context.Context) error {
			return firstErr(st.Profile.Refresh(ctx), st.Balance.Refresh(ctx))
		}, func() string { return renderDashboard(st) })
	case core.PathProfile:
		return newDataPage(ctx, gen, st.Profile.Refresh, func() string { return renderProfile(st) })
	case core.PathVIP:
		return newDataPage(ctx, gen, func(ctx context.Context) error {
			return firstErr(st.VIPLevels.Refresh(ctx), st.Profile.Refresh(ctx))
		}, func() string { return renderVIP(st) })
	case core.PathTransactions:
		return newDataPage(ctx, gen, st.Transactions.Refresh, func() string { return renderTransactions(st) })
	case core.PathProducts:
		return newDataPage(ctx, gen, st.Products.Refresh, func() string { return renderProducts(st) })
	case core.PathDeposit:
		return newDepositForm(ctx, svc, gen)
	case core.PathWithdraw:
		return newWithdrawForm(ctx, svc, gen)
	case core.PathLogin:
		return newLoginForm(ctx, svc, gen)
	case core.PathRegister:
		return newRegisterForm(ctx, svc, gen)
	default:
		body, _ := StaticPage(route.Path)
		return staticPage{body: body}
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// --- Static pages ---

type staticPage struct {
	body string
}

func (p staticPage) Init() tea.Cmd                  { return nil }
func (p staticPage) Update(tea.Msg) (page, tea.Cmd) { return p, nil }
func (p staticPage) View(int) string                { return p.body }
func (p staticPage) Help() string                   { return "" }
func (p staticPage) Captures() bool                 { return false }
func (p staticPage) Leave()                         {}

// --- Data pages ---

type dataLoadedMsg struct {
	gen int
	err error
}

// dataPage shows one or more snapshot feeds, refreshed on entry and on r.
type dataPage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	gen     int
	load    func(ctx context.Context) error
	render  func() string
	loading bool
	err     error
}

func newDataPage(parent context.Context, gen int, load func(context.Context) error, render func() string) *dataPage {
	ctx, cancel := context.WithCancel(parent)
	return &dataPage{ctx: ctx, cancel: cancel, gen: gen, load: load, render: render, loading: true}
}

func (p *dataPage) Init() tea.Cmd {
	ctx, gen, load := p.ctx, p.gen, p.load
	return func() tea.Msg {
		return dataLoadedMsg{gen: gen, err: load(ctx)}
	}
}

func (p *dataPage) Update(msg tea.Msg) (page, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "r" {
			p.loading = true
			return p, p.Init()
		}
	case dataLoadedMsg:
		if msg.gen == p.gen {
			p.loading = false
			p.err = msg.err
		}
	}
	return p, nil
}

func (p *dataPage) View(int) string {
	body := p.render()
	if p.loading && body == "" {
		return "Loading..."
	}
	if p.err != nil {
		body += "\n\n" + errorStyle.Render("Refresh failed: "+p.err.Error())
	}
	return body
}

func (p *dataPage) Help() string   { return "r: refresh" }
func (p *dataPage) Captures() bool { return false }
func (p *dataPage) Leave()         { p.cancel() }

func renderDashboard(st Stores) string {
	prof, ok := st.Profile.Latest()
	if !ok {
		return ""
	}
	bal, _ := st.Balance.Latest()
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome back, %s\n\n", prof.User.Username)
	fmt.Fprintf(&b, "  %-20s %12.2f\n", "Balance", bal.Balance)
	fmt.Fprintf(&b, "  %-20s %12.2f\n", "Frozen", bal.Frozen)
	fmt.Fprintf(&b, "  %-20s %12.2f\n", "Total commission", prof.Commission)
	fmt.Fprintf(&b, "  %-20s %12.2f\n", "Today's commission", prof.TodayCommission)
	fmt.Fprintf(&b, "  %-20s %9d/%-3d\n", "Tasks today", prof.CompletedToday, prof.DailyLimit)
	fmt.Fprintf(&b, "  %-20s %12d", "VIP level", prof.User.VIPLevel)
	if at := st.Balance.FetchedAt(); !at.IsZero() {
		fmt.Fprintf(&b, "\n\n  updated %s", at.Local().Format("15:04:05"))
		if st.Balance.LastError() != nil {
			b.WriteString(" (refresh failed, showing last known values)")
		}
	}
	return b.String()
}

func renderProfile(st Stores) string {
	prof, ok := st.Profile.Latest()
	if !ok {
		return ""
	}
	u := prof.User
	rows := [][2]string{
		{"User ID", u.ID},
		{"Username", u.Username},
		{"Phone", u.Phone},
		{"Invite code", u.InviteCode},
		{"VIP level", fmt.Sprint(u.VIPLevel)},
		{"Credit score", fmt.Sprint(prof.CreditScore)},
	}
	var b strings.Builder
	for _, r := range rows {
		v := r[1]
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(&b, "  %-14s %s\n", r[0], v)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderVIP(st Stores) string {
	levels, ok := st.VIPLevels.Latest()
	if !ok {
		return ""
	}
	current := -1
	if prof, ok := st.Profile.Latest(); ok {
		current = prof.User.VIPLevel
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  %-3s %-10s %8s %6s %12s %14s\n", "", "Tier", "Rate", "Tasks", "Min balance", "Withdraw limit")
	for _, l := range levels {
		mark := "  "
		if l.Level == current {
			mark = "* "
		}
		line := fmt.Sprintf("%s%-3d %-10s %7.1f%% %6d %12.2f %14.2f", mark, l.Level, l.Name, l.CommissionRate*100, l.DailyTasks, l.MinBalance, l.WithdrawLimit)
		if l.Level == current {
			line = activeTabStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTransactions(st Stores) string {
	txs, ok := st.Transactions.Latest()
	if !ok {
		return ""
	}
	if len(txs) == 0 {
		return "  No transactions yet."
	}
	var b strings.Builder
	for _, tx := range txs {
		created := tx.CreatedAt
		if t := models.ParseTimestamp(tx.CreatedAt); !t.IsZero() {
			created = t.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "  %-16s %-10s %12.2f  %s\n", created, tx.Type, tx.Amount, tx.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderProducts(st Stores) string {
	products, ok := st.Products.Latest()
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, p := range products {
		fmt.Fprintf(&b, "  %-24s %10.2f  commission %.2f\n", truncate(p.Name, 24), p.Price, p.Commission)
	}
	return strings.TrimRight(b.String(), "\n")
}

// --- Forms ---

type field struct {
	label  string
	value  string
	secret bool
}

type formDoneMsg struct {
	gen  int
	note string
	next tea.Msg
	err  error
}

// submitFunc runs off the UI goroutine. note is shown on success and next,
// when non-nil, is delivered to the shell afterwards.
type submitFunc func(ctx context.Context, values []string) (note string, next tea.Msg, err error)

// formPage is a minimal multi-field text form.
type formPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	gen    int

	intro  string
	fields []field
	focus  int
	busy   bool
	note   string
	err    error
	submit submitFunc
	help   string
	keys   map[string]string
}

func newFormPage(parent context.Context, gen int, intro string, fields []field, submit submitFunc) *formPage {
	ctx, cancel := context.WithCancel(parent)
	return &formPage{ctx: ctx, cancel: cancel, gen: gen, intro: intro, fields: fields, submit: submit}
}

func (p *formPage) Init() tea.Cmd { return nil }

func (p *formPage) Update(msg tea.Msg) (page, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return p, p.handleKey(msg)
	case formDoneMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		p.busy = false
		p.err = msg.err
		if msg.err != nil {
			return p, nil
		}
		p.note = msg.note
		for i := range p.fields {
			p.fields[i].value = ""
		}
		p.focus = 0
		if msg.next != nil {
			next := msg.next
			return p, func() tea.Msg { return next }
		}
	}
	return p, nil
}

func (p *formPage) handleKey(msg tea.KeyMsg) tea.Cmd {
	if path, ok := p.keys[msg.String()]; ok {
		return navigate(path)
	}
	if p.busy {
		return nil
	}
	f := &p.fields[p.focus]
	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		p.focus = (p.focus + 1) % len(p.fields)
	case tea.KeyShiftTab, tea.KeyUp:
		p.focus = (p.focus - 1 + len(p.fields)) % len(p.fields)
	case tea.KeyBackspace:
		if r := []rune(f.value); len(r) > 0 {
			f.value = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		f.value += " "
	case tea.KeyRunes:
		f.value += string(msg.Runes)
	case tea.KeyEnter:
		if p.focus < len(p.fields)-1 {
			p.focus++
			return nil
		}
		return p.send()
	}
	return nil
}

func (p *formPage) send() tea.Cmd {
	values := make([]string, len(p.fields))
	for i, f := range p.fields {
		values[i] = f.value
	}
	p.busy = true
	p.err = nil
	p.note = ""
	ctx, gen, submit := p.ctx, p.gen, p.submit
	return func() tea.Msg {
		note, next, err := submit(ctx, values)
		return formDoneMsg{gen: gen, note: note, next: next, err: err}
	}
}

func (p *formPage) View(int) string {
	var b strings.Builder
	if p.intro != "" {
		b.WriteString(p.intro)
		b.WriteString("\n\n")
	}
	for i, f := range p.fields {
		value := f.value
		if f.secret {
			value = strings.Repeat("*", len([]rune(value)))
		}
		cursor := "  "
		if i == p.focus {
			cursor = "> "
			value += "_"
		}
		fmt.Fprintf(&b, "%s%-18s %s\n", cursor, f.label+":", value)
	}
	b.WriteString("\n")
	switch {
	case p.busy:
		b.WriteString(disabledStyle.Render("Sending..."))
	case p.err != nil:
		b.WriteString(errorStyle.Render(formError(p.err)))
	case p.note != "":
		b.WriteString(statusCompleted.Render(p.note))
	default:
		b.WriteString(buttonStyle.Render("Enter to submit"))
	}
	return b.String()
}

func formError(err error) string {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return strings.Join(verr.Problems, "\n")
	}
	return err.Error()
}

func (p *formPage) Help() string {
	if p.help != "" {
		return p.help
	}
	return "tab: next field | enter: submit"
}

func (p *formPage) Captures() bool { return true }
func (p *formPage) Leave()         { p.cancel() }

func newLoginForm(ctx context.Context, svc *Services, gen int) *formPage {
	p := newFormPage(ctx, gen, "Log in to continue.", []field{
		{label: "Username"},
		{label: "Password", secret: true},
	}, func(ctx context.Context, v []string) (string, tea.Msg, error) {
		if _, err := svc.Sessions.Login(ctx, v[0], v[1]); err != nil {
			return "", nil, err
		}
		return "", sessionMsg{loggedIn: true}, nil
	})
	p.keys = map[string]string{"ctrl+r": core.PathRegister}
	p.help = "tab: next field | enter: log in | ctrl+r: register"
	return p
}

func newRegisterForm(ctx context.Context, svc *Services, gen int) *formPage {
	p := newFormPage(ctx, gen, "Create an account.", []field{
		{label: "Username"},
		{label: "Password", secret: true},
		{label: "Invite code"},
	}, func(ctx context.Context, v []string) (string, tea.Msg, error) {
		if _, err := svc.Sessions.Register(ctx, v[0], v[1], v[2]); err != nil {
			return "", nil, err
		}
		return "", sessionMsg{loggedIn: true}, nil
	})
	p.keys = map[string]string{"ctrl+l": core.PathLogin}
	p.help = "tab: next field | enter: register | ctrl+l: log in"
	return p
}

func newDepositForm(ctx context.Context, svc *Services, gen int) *formPage {
	return newFormPage(ctx, gen, "Top up your balance.", []field{
		{label: "Amount"},
		{label: "Method", value: "usdt"},
	}, func(ctx context.Context, v []string) (string, tea.Msg, error) {
		amount, err := core.ParseAmount(v[0])
		if err != nil {
			return "", nil, err
		}
		if err := core.ValidateDeposit(amount); err != nil {
			return "", nil, err
		}
		method := strings.TrimSpace(v[1])
		if method == "" {
			method = "usdt"
		}
		tx, err := svc.Backend.Deposit(ctx, amount, method)
		if err != nil {
			return "", nil, fmt.Errorf("creating deposit: %w", err)
		}
		svc.logEvent("deposit.created", map[string]any{"amount": amount, "id": tx.ID})
		_ = svc.Stores.Balance.Refresh(ctx)
		return fmt.Sprintf("Deposit of %.2f is %s.", tx.Amount, tx.Status), nil, nil
	})
}

func newWithdrawForm(ctx context.Context, svc *Services, gen int) *formPage {
	intro := "Withdraw to an external address."
	if bal, ok := svc.Stores.Balance.Latest(); ok {
		intro += fmt.Sprintf(" Available: %.2f", bal.Balance)
	}
	return newFormPage(ctx, gen, intro, []field{
		{label: "Amount"},
		{label: "Address"},
		{label: "Withdraw password", secret: true},
	}, func(ctx context.Context, v []string) (string, tea.Msg, error) {
		amount, err := core.ParseAmount(v[0])
		if err != nil {
			return "", nil, err
		}
		if err := svc.Stores.Balance.Refresh(ctx); err != nil {
			svc.Logger.WithError(err).Debug("balance refresh before withdraw failed")
		}
		bal, _ := svc.Stores.Balance.Latest()
		if err := core.ValidateWithdraw(amount, bal.Balance, v[1], v[2]); err != nil {
			return "", nil, err
		}
		tx, err := svc.Backend.Withdraw(ctx, amount, strings.TrimSpace(v[1]), v[2])
		if err != nil {
			return "", nil, fmt.Errorf("creating withdrawal: %w", err)
		}
		svc.logEvent("withdraw.created", map[string]any{"amount": amount, "id": tx.ID})
		_ = svc.Stores.Balance.Refresh(ctx)
		return fmt.Sprintf("Withdrawal of %.2f is %s.", tx.Amount, tx.Status), nil, nil
	})
}
