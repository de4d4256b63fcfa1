package observability

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// Event is one line of the client's event log.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO or WARN
	Type    string         `json:"type"`  // e.g. "submit.started", "session.login"
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventFilter selects events on Read. Zero fields match everything.
type EventFilter struct {
	Since      *time.Time
	Until      *time.Time
	Type       string
	TypePrefix string
	Level      string
}

// Match reports whether e passes every set criterion.
func (f EventFilter) Match(e Event) bool {
	switch {
	case f.Since != nil && e.Time.Before(*f.Since):
		return false
	case f.Until != nil && e.Time.After(*f.Until):
		return false
	case f.Type != "" && e.Type != f.Type:
		return false
	case f.TypePrefix != "" && !strings.HasPrefix(e.Type, f.TypePrefix):
		return false
	case f.Level != "" && e.Level != f.Level:
		return false
	}
	return true
}

// EventLog stores client events for metrics and alerting.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// maxEventLine bounds a single JSONL line; submit events carry small payloads.
const maxEventLine = 256 * 1024

type jsonlEventLog struct {
	mu   sync.Mutex
	path string
	w    *os.File
}

// NewJSONLEventLog opens (or creates) an append-only JSONL log at path.
func NewJSONLEventLog(path string) (EventLog, error) {
	w, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{path: path, w: w}, nil
}

func (l *jsonlEventLog) Write(event Event) error {
	line, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.Type, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return fmt.Errorf("event log %s is closed", l.path)
	}
	if _, err := l.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// Read decodes the whole file and returns matching events in write order.
// Lines that fail to decode are skipped.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading event log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	var out []Event
	for sc.Scan() {
		var e Event
		if len(sc.Bytes()) == 0 || sonic.Unmarshal(sc.Bytes(), &e) != nil {
			continue
		}
		if filter.Match(e) {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading event log: %w", err)
	}
	return out, nil
}

// Close is safe to call more than once.
func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	err := l.w.Close()
	l.w = nil
	if err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

// warnEvents are logged at WARN level by EventRecorder.
var warnEvents = map[string]bool{
	"submit.failed":               true,
	"submit.must_deposit":         true,
	"submit.insufficient_balance": true,
}

// EventRecorder adapts an EventLog to the LogEvent(type, data) shape used by
// the core services, filling in time, level and message.
type EventRecorder struct {
	log EventLog
	now func() time.Time
}

// NewEventRecorder wraps log. A nil log yields a recorder that drops events.
func NewEventRecorder(log EventLog) *EventRecorder {
	return &EventRecorder{log: log, now: time.Now}
}

// LogEvent writes one event.
func (r *EventRecorder) LogEvent(eventType string, data map[string]any) error {
	if r == nil || r.log == nil {
		return nil
	}
	level := "INFO"
	if warnEvents[eventType] {
		level = "WARN"
	}
	return r.log.Write(Event{
		Time:    r.now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: strings.ReplaceAll(eventType, ".", " "),
		Data:    data,
	})
}
