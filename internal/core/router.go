package core

import (
	"strings"

	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// Route is one navigable page.
type Route struct {
	Path      string
	Title     string
	Protected bool
	Sidebar   bool
}

// Route paths.
const (
	PathLogin        = "/login"
	PathRegister     = "/register"
	PathDashboard    = "/dashboard"
	PathRecords      = "/records"
	PathDeposit      = DepositPath
	PathWithdraw     = "/withdraw"
	PathProfile      = "/profile"
	PathVIP          = "/vip"
	PathTransactions = "/transactions"
	PathProducts     = "/products"
	PathAbout        = "/about"
	PathFAQ          = "/faq"
	PathTerms        = "/terms"
)

// DefaultRoutes is the page table of the client, in sidebar order.
var DefaultRoutes = []Route{
	{Path: PathDashboard, Title: "Dashboard", Protected: true, Sidebar: true},
	{Path: PathRecords, Title: "Records", Protected: true, Sidebar: true},
	{Path: PathProducts, Title: "Products", Protected: true, Sidebar: true},
	{Path: PathDeposit, Title: "Deposit", Protected: true, Sidebar: true},
	{Path: PathWithdraw, Title: "Withdraw", Protected: true, Sidebar: true},
	{Path: PathTransactions, Title: "Transactions", Protected: true, Sidebar: true},
	{Path: PathProfile, Title: "Profile", Protected: true, Sidebar: true},
	{Path: PathVIP, Title: "VIP", Protected: true, Sidebar: true},
	{Path: PathAbout, Title: "About", Sidebar: true},
	{Path: PathFAQ, Title: "FAQ", Sidebar: true},
	{Path: PathTerms, Title: "Terms", Sidebar: true},
	{Path: PathLogin, Title: "Login"},
	{Path: PathRegister, Title: "Register"},
}

// SessionReader is the part of SessionManager the route guard needs.
type SessionReader interface {
	Current() (*models.Session, error)
}

// Router resolves paths to routes and guards protected ones.
type Router struct {
	routes   map[string]Route
	order    []Route
	sessions SessionReader
}

// NewRouter builds a Router over routes (DefaultRoutes when nil).
func NewRouter(sessions SessionReader, routes []Route) *Router {
	if routes == nil {
		routes = DefaultRoutes
	}
	r := &Router{routes: make(map[string]Route, len(routes)), sessions: sessions}
	for _, rt := range routes {
		r.routes[rt.Path] = rt
		r.order = append(r.order, rt)
	}
	return r
}

// Resolve returns the route to render for path. redirected is true when the
// guard or the fallback replaced the requested path: protected pages without
// a valid session go to /login, a logged-in user asking for /login or
// /register goes to /dashboard, unknown paths go to /dashboard.
func (r *Router) Resolve(path string) (route Route, redirected bool) {
	path = normalizePath(path)
	rt, ok := r.routes[path]
	if !ok {
		rt, redirected = r.routes[PathDashboard], true
	}

	loggedIn := r.loggedIn()
	if rt.Protected && !loggedIn {
		return r.routes[PathLogin], true
	}
	if loggedIn && (rt.Path == PathLogin || rt.Path == PathRegister) {
		return r.routes[PathDashboard], true
	}
	return rt, redirected
}

// Sidebar returns the routes shown in navigation for the current session.
func (r *Router) Sidebar() []Route {
	loggedIn := r.loggedIn()
	var out []Route
	for _, rt := range r.order {
		if !rt.Sidebar || (rt.Protected && !loggedIn) {
			continue
		}
		out = append(out, rt)
	}
	return out
}

func (r *Router) loggedIn() bool {
	if r.sessions == nil {
		return false
	}
	_, err := r.sessions.Current()
	return err == nil
}

// RequireSession is the guard for one-shot commands.
func RequireSession(sessions SessionReader) (*models.Session, error) {
	if sessions == nil {
		return nil, ErrNoSession
	}
	return sessions.Current()
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return PathDashboard
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return strings.ToLower(p)
}
