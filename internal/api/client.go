// Package api is the REST client for the commission backend. Every response
// is wrapped in an Envelope; JSON is encoded and decoded with sonic.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// ErrUnauthorized is returned for HTTP 401 responses.
var ErrUnauthorized = errors.New("unauthorized")

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// Envelope is the wrapper every backend response uses.
type Envelope struct {
	Success     bool                   `json:"success"`
	Message     string                 `json:"message,omitempty"`
	Data        sonic.NoCopyRawMessage `json:"data,omitempty"`
	MustDeposit bool                   `json:"mustDeposit,omitempty"`
}

// Error is a non-2xx response or a success:false envelope.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return e.Message
}

// TokenSource returns the bearer token for the next request, or "".
type TokenSource func() string

// Client calls the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
	logger  logrus.FieldLogger
}

// NewClient creates a Client for baseURL. token and logger may be nil.
func NewClient(baseURL string, timeout time.Duration, token TokenSource, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
		logger:  logger,
	}
}

// AuthData is the data of login and register responses.
type AuthData struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (string, models.User, error) {
	var out AuthData
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return "", models.User{}, err
	}
	return out.Token, out.User, nil
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, username, password, inviteCode string) (string, models.User, error) {
	var out AuthData
	body := map[string]string{"username": username, "password": password, "inviteCode": inviteCode}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &out); err != nil {
		return "", models.User{}, err
	}
	return out.Token, out.User, nil
}

// Profile fetches the account profile.
func (c *Client) Profile(ctx context.Context) (models.Profile, error) {
	var p models.Profile
	err := c.do(ctx, http.MethodGet, "/api/profile", nil, &p)
	return p, err
}

// Balance fetches the balance figures.
func (c *Client) Balance(ctx context.Context) (models.Balance, error) {
	var b models.Balance
	err := c.do(ctx, http.MethodGet, "/api/balance", nil, &b)
	return b, err
}

// Transactions lists deposits, withdrawals and commission credits.
func (c *Client) Transactions(ctx context.Context) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := c.do(ctx, http.MethodGet, "/api/transactions", nil, &txs)
	return txs, err
}

// Deposit creates a deposit.
func (c *Client) Deposit(ctx context.Context, amount float64, method string) (models.Transaction, error) {
	var tx models.Transaction
	body := map[string]any{"amount": amount, "method": method}
	err := c.do(ctx, http.MethodPost, "/api/deposits", body, &tx)
	return tx, err
}

// Withdraw requests a withdrawal.
func (c *Client) Withdraw(ctx context.Context, amount float64, address, password string) (models.Transaction, error) {
	var tx models.Transaction
	body := map[string]any{"amount": amount, "address": address, "password": password}
	err := c.do(ctx, http.MethodPost, "/api/withdrawals", body, &tx)
	return tx, err
}

// VIPLevels lists the VIP tiers.
func (c *Client) VIPLevels(ctx context.Context) ([]models.VIPLevel, error) {
	var levels []models.VIPLevel
	err := c.do(ctx, http.MethodGet, "/api/vip-levels", nil, &levels)
	return levels, err
}

// Products lists the product catalog.
func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := c.do(ctx, http.MethodGet, "/api/products", nil, &products)
	return products, err
}

// TaskRecords fetches the current task records.
func (c *Client) TaskRecords(ctx context.Context) ([]models.TaskRecord, error) {
	var records []models.TaskRecord
	err := c.do(ctx, http.MethodGet, "/api/task-records", nil, &records)
	return records, err
}

// StartTask asks the backend to assign new work and returns the records it
// created.
func (c *Client) StartTask(ctx context.Context) ([]models.TaskRecord, error) {
	var records []models.TaskRecord
	err := c.do(ctx, http.MethodPost, "/api/tasks/start", nil, &records)
	return records, err
}

// SubmitTaskRecord submits one record. Backend refusals (including
// mustDeposit) come back as a SubmitResult; only transport failures, 401s
// and server errors are returned as errors.
func (c *Client) SubmitTaskRecord(ctx context.Context, taskCode string) (models.SubmitResult, error) {
	path := "/api/task-records/" + url.PathEscape(taskCode) + "/submit"
	status, env, err := c.roundTrip(ctx, http.MethodPost, path, nil)
	if err != nil {
		return models.SubmitResult{}, err
	}
	if status == http.StatusUnauthorized {
		return models.SubmitResult{}, ErrUnauthorized
	}
	if env == nil || status >= http.StatusInternalServerError {
		return models.SubmitResult{}, &Error{Status: status, Message: envMessage(env)}
	}
	return models.SubmitResult{
		Success:     env.Success && status < http.StatusBadRequest,
		Message:     env.Message,
		MustDeposit: env.MustDeposit,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	status, env, err := c.roundTrip(ctx, method, path, body)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if env == nil {
		return &Error{Status: status}
	}
	if status >= http.StatusBadRequest || !env.Success {
		return &Error{Status: status, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

// roundTrip sends one request and decodes the envelope. A body that is not
// an envelope yields a nil envelope and no error.
func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (int, *Envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log := c.logger.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"elapsed":    time.Since(start).Round(time.Millisecond),
	})

	var env Envelope
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&env); err != nil {
		log.WithError(err).Debug("response is not an envelope")
		return resp.StatusCode, nil, nil
	}
	log.Debug("api call")
	return resp.StatusCode, &env, nil
}

func envMessage(env *Envelope) string {
	if env == nil {
		return ""
	}
	return env.Message
}

// IsUnauthorized reports whether err means the session is no longer valid.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
