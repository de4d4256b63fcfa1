// Package tui is the interactive terminal client: a layout shell (header,
// sidebar, content, footer) that renders one routed page at a time.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// Backend is the part of the REST client the pages call on user action.
type Backend interface {
	core.TaskSubmitter
	StartTask(ctx context.Context) ([]models.TaskRecord, error)
	Deposit(ctx context.Context, amount float64, method string) (models.Transaction, error)
	Withdraw(ctx context.Context, amount float64, address, password string) (models.Transaction, error)
}

// Stores are the data feeds shared by the pages.
type Stores struct {
	Profile      *core.SnapshotStore[models.Profile]
	Balance      *core.SnapshotStore[models.Balance]
	Records      *core.SnapshotStore[[]models.TaskRecord]
	Transactions *core.SnapshotStore[[]models.Transaction]
	VIPLevels    *core.SnapshotStore[[]models.VIPLevel]
	Products     *core.SnapshotStore[[]models.Product]
}

// Reset forgets every snapshot.
func (s Stores) Reset() {
	s.Profile.Reset()
	s.Balance.Reset()
	s.Records.Reset()
	s.Transactions.Reset()
	s.VIPLevels.Reset()
	s.Products.Reset()
}

// Timings are the delays of the records page.
type Timings struct {
	core.SubmitTimings
	LoadingOverlay time.Duration
	PollInterval   time.Duration
	ToastDuration  time.Duration
}

// Services collects the dependencies of the TUI.
type Services struct {
	Sessions   core.SessionManager
	Router     *core.Router
	Backend    Backend
	Stores     Stores
	Controller *core.SubmitController
	Events     core.EventLogger
	Logger     logrus.FieldLogger
	Timings    Timings
	Now        func() time.Time
}

func (s *Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Services) logEvent(eventType string, data map[string]any) {
	if s.Events == nil {
		return
	}
	if err := s.Events.LogEvent(eventType, data); err != nil {
		s.Logger.WithError(err).Debug("writing event failed")
	}
}

// Messages shared by the shell and the pages. Page-scoped messages carry the
// generation of the page that scheduled them; the shell bumps the generation
// on every navigation so late messages for a page that was left are dropped.

type navigateMsg struct{ path string }

type toastMsg struct{ text string }

type toastDoneMsg struct{ seq int }

type alertMsg struct {
	text string
	code string
}

type sessionMsg struct{ loggedIn bool }

func navigate(path string) tea.Cmd {
	return func() tea.Msg { return navigateMsg{path: path} }
}

func toast(text string) tea.Cmd {
	return func() tea.Msg { return toastMsg{text: text} }
}

func alert(text, code string) tea.Cmd {
	return func() tea.Msg { return alertMsg{text: text, code: code} }
}

// page is one routed screen inside the shell.
type page interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (page, tea.Cmd)
	View(width int) string
	Help() string
	// Captures reports whether the page consumes plain text keys (forms).
	Captures() bool
	// Leave is called when the shell navigates away.
	Leave()
}

// Model is the layout shell and the root bubbletea model.
type Model struct {
	svc *Services
	ctx context.Context

	width  int
	height int

	route core.Route
	page  page
	gen   int

	sidebarFocus  bool
	sidebarCursor int

	toast    string
	toastSeq int

	alertText string
	alertCode string
}

// New creates the shell positioned at start (resolved through the route
// guard on Init).
func New(ctx context.Context, svc *Services, start string) Model {
	if svc.Logger == nil {
		svc.Logger = logrus.StandardLogger()
	}
	if svc.Timings.ToastDuration <= 0 {
		svc.Timings.ToastDuration = 3 * time.Second
	}
	return Model{
		svc:   svc,
		ctx:   ctx,
		route: core.Route{Path: start},
	}
}

func (m Model) Init() tea.Cmd {
	return navigate(m.route.Path)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case navigateMsg:
		return m.open(msg.path)

	case sessionMsg:
		if !msg.loggedIn {
			m.svc.Stores.Reset()
			if m.svc.Controller != nil {
				m.svc.Controller.Reset()
			}
			return m.open(core.PathLogin)
		}
		return m.open(core.PathDashboard)

	case toastMsg:
		m.toast = msg.text
		m.toastSeq++
		seq := m.toastSeq
		return m, tea.Tick(m.svc.Timings.ToastDuration, func(time.Time) tea.Msg { return toastDoneMsg{seq: seq} })

	case toastDoneMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case alertMsg:
		m.alertText = msg.text
		m.alertCode = msg.code
		return m, nil
	}

	return m.forward(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m.quit()
	}

	if m.alertText != "" {
		if key == "enter" || key == "esc" {
			if m.alertCode != "" {
				m.svc.Controller.Dismiss(m.alertCode)
			}
			m.alertText, m.alertCode = "", ""
			return m.forward(alertDismissedMsg{})
		}
		return m, nil
	}

	if m.sidebarFocus {
		entries := m.svc.Router.Sidebar()
		switch key {
		case "up", "k":
			if m.sidebarCursor > 0 {
				m.sidebarCursor--
			}
		case "down", "j":
			if m.sidebarCursor < len(entries)-1 {
				m.sidebarCursor++
			}
		case "enter":
			m.sidebarFocus = false
			if m.sidebarCursor < len(entries) {
				return m, navigate(entries[m.sidebarCursor].Path)
			}
		case "esc":
			m.sidebarFocus = false
		case "q":
			return m.quit()
		case "ctrl+x":
			return m, m.logout()
		}
		return m, nil
	}

	switch key {
	case "esc":
		if m.route.Sidebar {
			m.sidebarFocus = true
			m.sidebarCursor = m.activeSidebarIndex()
			return m, nil
		}
	case "ctrl+x":
		return m, m.logout()
	case "q":
		if m.page == nil || !m.page.Captures() {
			return m.quit()
		}
	}
	return m.forward(msg)
}

// alertDismissedMsg tells the page the modal was acknowledged.
type alertDismissedMsg struct{}

func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.page == nil {
		return m, nil
	}
	p, cmd := m.page.Update(msg)
	m.page = p
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.page != nil {
		m.page.Leave()
	}
	return m, tea.Quit
}

func (m Model) logout() tea.Cmd {
	sessions := m.svc.Sessions
	logger := m.svc.Logger
	return func() tea.Msg {
		if err := sessions.Logout(); err != nil {
			logger.WithError(err).Warn("logout failed")
		}
		return sessionMsg{loggedIn: false}
	}
}

// open resolves path through the route guard and mounts its page.
func (m Model) open(path string) (tea.Model, tea.Cmd) {
	route, redirected := m.svc.Router.Resolve(path)
	if m.page != nil {
		m.page.Leave()
	}
	m.gen++
	m.route = route
	m.sidebarFocus = false
	m.page = newPage(m.ctx, m.svc, route, m.gen)

	data := map[string]any{"path": route.Path}
	if redirected {
		data["requested"] = path
	}
	m.svc.logEvent("navigate", data)
	return m, m.page.Init()
}

func (m Model) activeSidebarIndex() int {
	for i, rt := range m.svc.Router.Sidebar() {
		if rt.Path == m.route.Path {
			return i
		}
	}
	return 0
}

func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = 100
	}

	header := m.renderHeader(width)

	content := ""
	if m.page != nil {
		content = m.page.View(width - 24)
	}
	content = contentStyle.Render(sectionStyle.Render(m.route.Title) + "\n" + content)

	body := content
	if m.route.Sidebar {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), content)
	}

	if m.alertText != "" {
		modal := modalStyle.Render(errorStyle.Render(m.alertText) + "\n\n" + helpStyle.Render("enter: ok"))
		body = lipgloss.Place(width, lipgloss.Height(body), lipgloss.Center, lipgloss.Center, modal)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderFooter())
}

func (m Model) renderHeader(width int) string {
	title := titleStyle.Render(" Commission Desk ")
	info := "not logged in"
	if s, err := m.svc.Sessions.Current(); err == nil {
		vip := s.User.VIPLevel
		if p, ok := m.svc.Stores.Profile.Latest(); ok {
			vip = p.User.VIPLevel
		}
		info = fmt.Sprintf("%s  VIP %d", s.User.Username, vip)
		if bal, ok := m.svc.Stores.Balance.Latest(); ok {
			info += fmt.Sprintf("  balance %.2f", bal.Balance)
		}
	}
	gap := width - lipgloss.Width(title) - lipgloss.Width(info) - 2
	if gap < 1 {
		gap = 1
	}
	return headerStyle.Width(width).Render(title + strings.Repeat(" ", gap) + info)
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	for i, rt := range m.svc.Router.Sidebar() {
		line := "  " + rt.Title
		switch {
		case m.sidebarFocus && i == m.sidebarCursor:
			line = cursorNavStyle.Render("> " + rt.Title)
		case rt.Path == m.route.Path:
			line = activeNavStyle.Render("  " + rt.Title)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	style := sidebarStyle
	if m.sidebarFocus {
		style = focusedSidebarStyle
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderFooter() string {
	help := "esc: menu | ctrl+x: logout | ctrl+c: quit"
	if m.sidebarFocus {
		help = "up/down: move | enter: open | esc: back | q: quit"
	} else if m.page != nil && m.page.Help() != "" {
		help = m.page.Help() + " | " + help
	}
	line := helpStyle.Render(help)
	if m.toast != "" {
		line = toastStyle.Render(m.toast) + "  " + line
	}
	return line
}
