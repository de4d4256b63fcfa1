// Package sandbox is an in-memory implementation of the commission backend
// used for local development and for exercising the API client in tests.
package sandbox

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/valter-silva-au/commission-desk/internal/api"
)

// Server serves the backend REST API over a State.
type Server struct {
	echo   *echo.Echo
	state  *State
	auth   *Auth
	logger log.FieldLogger
}

// Options configures a Server.
type Options struct {
	JWTSecret string
	TokenTTL  time.Duration
	Now       func() time.Time
	Logger    log.FieldLogger
}

// New creates a Server with a fresh State.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		TargetHeader: api.RequestIDHeader,
	}))

	s := &Server{
		echo:   e,
		state:  NewState(opts.Now),
		auth:   NewAuth([]byte(opts.JWTSecret), opts.TokenTTL, opts.Now),
		logger: opts.Logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.Use(s.requestLogger)

	e.POST("/api/auth/login", s.login)
	e.POST("/api/auth/register", s.register)

	g := e.Group("/api", s.auth.Middleware)
	g.GET("/profile", s.getProfile)
	g.GET("/balance", s.getBalance)
	g.GET("/transactions", s.getTransactions)
	g.POST("/deposits", s.postDeposit)
	g.POST("/withdrawals", s.postWithdrawal)
	g.GET("/vip-levels", s.getVIPLevels)
	g.GET("/products", s.getProducts)
	g.GET("/task-records", s.getTaskRecords)
	g.POST("/tasks/start", s.postStartTask)
	g.POST("/task-records/:code/submit", s.postSubmit)

	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
}

// ServeHTTP lets the server be mounted in httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// State returns the backing state.
func (s *Server) State() *State { return s.state }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.WithFields(log.Fields{
			"method":     c.Request().Method,
			"path":       c.Path(),
			"status":     c.Response().Status,
			"request_id": c.Response().Header().Get(api.RequestIDHeader),
			"elapsed":    time.Since(start).Round(time.Microsecond),
		}).Debug("sandbox request")
		return err
	}
}

// --- helpers ---

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, envelope{Success: false, Message: msg})
}

// envelope is the server side of api.Envelope; Data is encoded lazily.
type envelope struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Data        any    `json:"data,omitempty"`
	MustDeposit bool   `json:"mustDeposit,omitempty"`
}

// --- handlers ---

type credentials struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	InviteCode string `json:"inviteCode"`
}

func (s *Server) login(c echo.Context) error {
	var req credentials
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	u, err := s.state.login(req.Username, req.Password)
	if err != nil {
		return fail(c, http.StatusUnauthorized, err.Error())
	}
	tok, err := s.auth.Issue(u.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not issue token")
	}
	return ok(c, api.AuthData{Token: tok, User: u})
}

func (s *Server) register(c echo.Context) error {
	var req credentials
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || len(req.Password) < 6 {
		return fail(c, http.StatusBadRequest, "username and a password of at least 6 characters are required")
	}
	u, err := s.state.register(req.Username, req.Password, req.InviteCode)
	if err != nil {
		return fail(c, http.StatusConflict, err.Error())
	}
	tok, err := s.auth.Issue(u.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not issue token")
	}
	return ok(c, api.AuthData{Token: tok, User: u})
}

func (s *Server) getProfile(c echo.Context) error {
	p, found := s.state.profile(userID(c))
	if !found {
		return fail(c, http.StatusUnauthorized, "unknown account")
	}
	return ok(c, p)
}

func (s *Server) getBalance(c echo.Context) error {
	b, found := s.state.balance(userID(c))
	if !found {
		return fail(c, http.StatusUnauthorized, "unknown account")
	}
	return ok(c, b)
}

func (s *Server) getTransactions(c echo.Context) error {
	return ok(c, s.state.transactions(userID(c)))
}

func (s *Server) postDeposit(c echo.Context) error {
	var req struct {
		Amount float64 `json:"amount"`
		Method string  `json:"method"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	tx, err := s.state.deposit(userID(c), req.Amount, req.Method)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	return ok(c, tx)
}

func (s *Server) postWithdrawal(c echo.Context) error {
	var req struct {
		Amount   float64 `json:"amount"`
		Address  string  `json:"address"`
		Password string  `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	tx, err := s.state.withdraw(userID(c), req.Amount, req.Address, req.Password)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	return ok(c, tx)
}

func (s *Server) getVIPLevels(c echo.Context) error {
	return ok(c, vipLevels)
}

func (s *Server) getProducts(c echo.Context) error {
	return ok(c, catalog)
}

func (s *Server) getTaskRecords(c echo.Context) error {
	return ok(c, s.state.records(userID(c)))
}

func (s *Server) postStartTask(c echo.Context) error {
	recs, err := s.state.startTask(userID(c))
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	return ok(c, recs)
}

func (s *Server) postSubmit(c echo.Context) error {
	res, err := s.state.submit(userID(c), c.Param("code"))
	if errors.Is(err, errRecordNotFound) {
		return fail(c, http.StatusNotFound, err.Error())
	}
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, envelope{
		Success:     res.success,
		Message:     res.message,
		MustDeposit: res.mustDeposit,
	})
}
