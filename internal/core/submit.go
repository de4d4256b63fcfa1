package core

import (
	"sync"
	"time"

	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// SubmitState is the per-record request state of the submit interaction.
type SubmitState int

const (
	SubmitIdle SubmitState = iota
	SubmitPending
	SubmitSucceeded
	SubmitFailed
)

func (s SubmitState) String() string {
	switch s {
	case SubmitPending:
		return "pending"
	case SubmitSucceeded:
		return "succeeded"
	case SubmitFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Label is the text of the submit control in this state.
func (s SubmitState) Label() string {
	switch s {
	case SubmitPending:
		return "Submitting..."
	case SubmitSucceeded:
		return "Submitted"
	default:
		return "Submit"
	}
}

// Busy reports whether the submit control is disabled in this state.
func (s SubmitState) Busy() bool {
	return s == SubmitPending || s == SubmitSucceeded
}

// Decision is the result of a submit click.
type Decision int

const (
	// DecisionStarted means the key moved to Pending; the caller runs the
	// processing delay and then the submit operation.
	DecisionStarted Decision = iota
	// DecisionIgnored means a submit for the key is already in flight or held.
	DecisionIgnored
	// DecisionInsufficient means the cached balance is negative for an
	// eligible combo member: toast and redirect, no network call.
	DecisionInsufficient
)

// Outcome is the result of resolving an in-flight submit.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeMustDeposit
	OutcomeFailed
	// OutcomeStale means the key was no longer pending (abandoned or
	// already resolved) and nothing changed.
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeMustDeposit:
		return "must_deposit"
	case OutcomeFailed:
		return "failed"
	default:
		return "stale"
	}
}

const (
	// InsufficientBalanceMessage is the toast shown when funds are short.
	InsufficientBalanceMessage = "Insufficient Balance."
	// SubmitFailedMessage is shown when the backend gives no reason.
	SubmitFailedMessage = "Submission failed, please try again."
	// DepositPath is where the user is sent to add funds.
	DepositPath = "/deposit"
)

type submitEntry struct {
	state     SubmitState
	preStatus models.RecordStatus
	holdUntil time.Time
	message   string
}

// SubmitController tracks submit state per taskCode. Entries for different
// keys are independent; a second Begin on a busy key is ignored. Safe for
// concurrent use.
type SubmitController struct {
	mu      sync.Mutex
	entries map[string]*submitEntry
	hold    time.Duration
}

// NewSubmitController creates a controller whose Succeeded states are held
// for hold before a refresh may discard them.
func NewSubmitController(hold time.Duration) *SubmitController {
	return &SubmitController{
		entries: make(map[string]*submitEntry),
		hold:    hold,
	}
}

// Begin handles a submit click on rec given the cached balance.
func (c *SubmitController) Begin(rec models.TaskRecord, balance float64) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[rec.TaskCode]; ok && e.state.Busy() {
		return DecisionIgnored
	}
	if rec.CanSubmit && balance < 0 {
		return DecisionInsufficient
	}
	c.entries[rec.TaskCode] = &submitEntry{
		state:     SubmitPending,
		preStatus: models.NormalizeStatus(rec.Status),
	}
	return DecisionStarted
}

// Resolve applies the submit operation's result to a pending key. A non-nil
// err (transport failure) is treated as a generic failure carrying its text.
func (c *SubmitController) Resolve(code string, res models.SubmitResult, err error, now time.Time) (Outcome, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[code]
	if !ok || e.state != SubmitPending {
		return OutcomeStale, ""
	}

	switch {
	case err == nil && res.Success:
		e.state = SubmitSucceeded
		e.holdUntil = now.Add(c.hold)
		e.message = ""
		return OutcomeSucceeded, res.Message
	case err == nil && res.MustDeposit:
		delete(c.entries, code)
		return OutcomeMustDeposit, InsufficientBalanceMessage
	default:
		msg := res.Message
		if err != nil {
			msg = err.Error()
		}
		if msg == "" {
			msg = SubmitFailedMessage
		}
		e.state = SubmitFailed
		e.message = msg
		return OutcomeFailed, msg
	}
}

// Clear ends the Succeeded hold for code.
func (c *SubmitController) Clear(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[code]; ok && e.state == SubmitSucceeded {
		delete(c.entries, code)
	}
}

// Abandon drops a pending key whose driver was cancelled before resolving.
func (c *SubmitController) Abandon(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[code]; ok && e.state == SubmitPending {
		delete(c.entries, code)
	}
}

// Dismiss acknowledges a failure, returning the key to Idle.
func (c *SubmitController) Dismiss(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[code]; ok && e.state == SubmitFailed {
		delete(c.entries, code)
	}
}

// State returns the current state for code.
func (c *SubmitController) State(code string) SubmitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[code]; ok {
		return e.state
	}
	return SubmitIdle
}

// Message returns the failure message recorded for code, if any.
func (c *SubmitController) Message(code string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[code]; ok {
		return e.message
	}
	return ""
}

// Reconcile lets a fresh record list override local state. Pending entries
// are kept. Failed entries go once the record's status moved on or the record
// vanished. Succeeded entries go once the record vanished, or once the hold
// has passed and the status differs from the pre-submit status.
func (c *SubmitController) Reconcile(records []models.TaskRecord, now time.Time) {
	byCode := make(map[string]models.RecordStatus, len(records))
	for _, r := range records {
		byCode[r.TaskCode] = models.NormalizeStatus(r.Status)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for code, e := range c.entries {
		status, present := byCode[code]
		switch e.state {
		case SubmitFailed:
			if !present || status != e.preStatus {
				delete(c.entries, code)
			}
		case SubmitSucceeded:
			if !present || (!now.Before(e.holdUntil) && status != e.preStatus) {
				delete(c.entries, code)
			}
		}
	}
}

// Len returns the number of non-idle keys.
// Reset forgets every key, e.g. when the session ends. Drivers still waiting
// on a dropped key see OutcomeStale when they resolve.
func (c *SubmitController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*submitEntry)
}

func (c *SubmitController) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
