package models

import (
	"strings"
	"time"
)

// RecordStatus is the server-reported lifecycle state of a task record.
// The backend is free to send other text; see NormalizeStatus.
type RecordStatus string

const (
	StatusPending   RecordStatus = "Pending"
	StatusCompleted RecordStatus = "Completed"
)

// Tab selects which task records the records view shows.
type Tab string

const (
	TabAll       Tab = "All"
	TabPending   Tab = "Pending"
	TabCompleted Tab = "Completed"
)

// Tabs lists the records view tabs in display order.
var Tabs = []Tab{TabAll, TabPending, TabCompleted}

// ParseTab converts user input to a Tab, case-insensitively.
func ParseTab(s string) (Tab, bool) {
	for _, t := range Tabs {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}

// Product is the catalog item attached to a task record. Display only.
type Product struct {
	ID         string  `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string  `json:"name" yaml:"name"`
	Price      float64 `json:"price" yaml:"price"`
	Commission float64 `json:"commission" yaml:"commission"`
	Image      string  `json:"image,omitempty" yaml:"image,omitempty"`
}

// TaskRecord is one unit of assigned work as returned by the backend.
// Combo members share a ComboGroupID and are completed in sequence; CanSubmit
// marks the single member the user may act on.
type TaskRecord struct {
	TaskCode     string       `json:"taskCode"`
	Status       RecordStatus `json:"status"`
	IsCombo      bool         `json:"isCombo"`
	ComboGroupID string       `json:"comboGroupId,omitempty"`
	ComboIndex   int          `json:"comboIndex"`
	CanSubmit    bool         `json:"canSubmit"`
	CreatedAt    string       `json:"createdAt,omitempty"`
	StartedAt    string       `json:"startedAt,omitempty"`
	CompletedAt  string       `json:"completedAt,omitempty"`
	Product      Product      `json:"product"`
}

// NormalizeStatus maps free-text statuses onto the known constants by
// case-insensitive substring match. Unknown values are returned unchanged.
func NormalizeStatus(s RecordStatus) RecordStatus {
	lower := strings.ToLower(string(s))
	switch {
	case strings.Contains(lower, "pend"):
		return StatusPending
	case strings.Contains(lower, "complet"):
		return StatusCompleted
	default:
		return s
	}
}

// IsPending reports whether the record is awaiting submission.
func (r TaskRecord) IsPending() bool {
	return NormalizeStatus(r.Status) == StatusPending
}

// IsCompleted reports whether the backend has marked the record done.
func (r TaskRecord) IsCompleted() bool {
	return NormalizeStatus(r.Status) == StatusCompleted
}

// Created returns the parsed createdAt timestamp (zero if absent).
func (r TaskRecord) Created() time.Time {
	return ParseTimestamp(r.CreatedAt)
}

// Activity returns startedAt, falling back to createdAt.
func (r TaskRecord) Activity() time.Time {
	if t := ParseTimestamp(r.StartedAt); !t.IsZero() {
		return t
	}
	return r.Created()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats the backend is known to emit.
// Empty or unparseable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SubmitResult is the outcome of submitting a task record. MustDeposit is set
// when the backend refuses the submit for lack of funds.
type SubmitResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	MustDeposit bool   `json:"mustDeposit,omitempty"`
}
