// Package observability provides structured logging, the JSONL event log,
// metrics derived from it, and alert evaluation for commission-desk.
package observability
