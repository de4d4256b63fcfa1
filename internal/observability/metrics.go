package observability

import (
	"fmt"
	"time"
)

// Metrics holds calculated metrics derived from the event log.
type Metrics struct {
	Logins              int            `json:"logins"`
	Logouts             int            `json:"logouts"`
	SubmitsStarted      int            `json:"submits_started"`
	SubmitsSucceeded    int            `json:"submits_succeeded"`
	SubmitsFailed       int            `json:"submits_failed"`
	MustDeposit         int            `json:"must_deposit"`
	InsufficientBalance int            `json:"insufficient_balance"`
	Deposits            int            `json:"deposits"`
	DepositedAmount     float64        `json:"deposited_amount"`
	Withdrawals         int            `json:"withdrawals"`
	WithdrawnAmount     float64        `json:"withdrawn_amount"`
	PageViews           map[string]int `json:"page_views"`
	FailureReasons      map[string]int `json:"failure_reasons"`
	EventCount          int            `json:"event_count"`
	OldestEvent         *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent         *time.Time     `json:"newest_event,omitempty"`
}

// SuccessRate is the share of resolved submits that succeeded, in percent.
// It is zero when nothing was resolved.
func (m *Metrics) SuccessRate() float64 {
	resolved := m.SubmitsSucceeded + m.SubmitsFailed + m.MustDeposit
	if resolved == 0 {
		return 0
	}
	return float64(m.SubmitsSucceeded) * 100 / float64(resolved)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		PageViews:      make(map[string]int),
		FailureReasons: make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "session.login", "session.register":
			m.Logins++
		case "session.logout":
			m.Logouts++
		case "submit.started":
			m.SubmitsStarted++
		case "submit.succeeded":
			m.SubmitsSucceeded++
		case "submit.failed":
			m.SubmitsFailed++
			if msg, ok := event.Data["message"].(string); ok && msg != "" {
				m.FailureReasons[msg]++
			}
		case "submit.must_deposit":
			m.MustDeposit++
		case "submit.insufficient_balance":
			m.InsufficientBalance++
		case "deposit.created":
			m.Deposits++
			m.DepositedAmount += number(event.Data["amount"])
		case "withdraw.created":
			m.Withdrawals++
			m.WithdrawnAmount += number(event.Data["amount"])
		case "navigate":
			if path, ok := event.Data["path"].(string); ok {
				m.PageViews[path]++
			}
		}
	}

	return m, nil
}

// number reads a JSON-decoded numeric value.
func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
