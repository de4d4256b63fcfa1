package core

// EventLogger is the subset of the observability event log that core
// services write to. Defining it here avoids importing observability.
// A nil EventLogger is allowed everywhere; see logEvent.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

func logEvent(l EventLogger, eventType string, data map[string]any) {
	if l == nil {
		return
	}
	_ = l.LogEvent(eventType, data)
}
