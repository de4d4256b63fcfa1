package observability

import (
	"fmt"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	Window             time.Duration `yaml:"window" json:"window"`
	MinSubmits         int           `yaml:"min_submits" json:"min_submits"`
	MaxFailurePercent  float64       `yaml:"max_failure_percent" json:"max_failure_percent"`
	MaxDepositPrompts  int           `yaml:"max_deposit_prompts" json:"max_deposit_prompts"`
	StuckSubmitMinutes int           `yaml:"stuck_submit_minutes" json:"stuck_submit_minutes"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		Window:             24 * time.Hour,
		MinSubmits:         5,
		MaxFailurePercent:  30,
		MaxDepositPrompts:  3,
		StuckSubmitMinutes: 10,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Evaluate reads submit events inside the window and checks all alert
// conditions, returning any triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now().UTC()
	since := now.Add(-ae.thresholds.Window)
	events, err := ae.eventLog.Read(EventFilter{Since: &since, TypePrefix: "submit."})
	if err != nil {
		return nil, fmt.Errorf("reading submit events: %w", err)
	}

	var alerts []Alert
	alerts = append(alerts, ae.checkFailureRate(events, now)...)
	alerts = append(alerts, ae.checkDepositPrompts(events, now)...)
	alerts = append(alerts, ae.checkStuckSubmits(events, now)...)
	return alerts, nil
}

// checkFailureRate fires when too many resolved submits failed.
func (ae *alertEngine) checkFailureRate(events []Event, now time.Time) []Alert {
	var ok, failed int
	for _, e := range events {
		switch e.Type {
		case "submit.succeeded":
			ok++
		case "submit.failed":
			failed++
		}
	}
	total := ok + failed
	if total < ae.thresholds.MinSubmits || total == 0 {
		return nil
	}
	rate := float64(failed) * 100 / float64(total)
	if rate <= ae.thresholds.MaxFailurePercent {
		return nil
	}
	return []Alert{{
		ID:          "submit-failure-rate",
		Condition:   "submit_failure_rate_high",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("%.0f%% of %d submits failed, above the %.0f%% threshold", rate, total, ae.thresholds.MaxFailurePercent),
		TriggeredAt: now,
	}}
}

// checkDepositPrompts fires when the user was sent to the deposit page
// repeatedly.
func (ae *alertEngine) checkDepositPrompts(events []Event, now time.Time) []Alert {
	prompts := 0
	for _, e := range events {
		if e.Type == "submit.must_deposit" || e.Type == "submit.insufficient_balance" {
			prompts++
		}
	}
	if prompts <= ae.thresholds.MaxDepositPrompts {
		return nil
	}
	return []Alert{{
		ID:          "deposit-prompts",
		Condition:   "deposit_prompts_repeated",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("insufficient balance blocked %d submits; deposit before continuing", prompts),
		TriggeredAt: now,
	}}
}

// checkStuckSubmits looks for submits that started but never resolved.
func (ae *alertEngine) checkStuckSubmits(events []Event, now time.Time) []Alert {
	started := make(map[string]time.Time)
	for _, e := range events {
		code, _ := e.Data["task_code"].(string)
		if code == "" {
			continue
		}
		switch e.Type {
		case "submit.started":
			started[code] = e.Time
		case "submit.succeeded", "submit.failed", "submit.must_deposit":
			delete(started, code)
		}
	}

	threshold := time.Duration(ae.thresholds.StuckSubmitMinutes) * time.Minute
	var alerts []Alert
	for code, at := range started {
		if now.Sub(at) > threshold {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("stuck-%s", code),
				Condition:   "submit_unresolved",
				Severity:    SeverityLow,
				Message:     fmt.Sprintf("submit of %s started %s ago and never resolved", code, now.Sub(at).Round(time.Minute)),
				TriggeredAt: now,
			})
		}
	}
	return alerts
}
