package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

func TestRecordsCmd_DisplayOrderAndTabs(t *testing.T) {
	f := newCLIFixture(t, true)
	done := pendingRecord("TK2", "2025-03-02T10:00:00Z")
	done.Status = models.StatusCompleted
	f.records = []models.TaskRecord{pendingRecord("TK1", "2025-03-01T10:00:00Z"), done}
	out := captureOut(t, recordsCmd)
	defer func() { recordsTab = "All" }()

	recordsTab = "All"
	if err := recordsCmd.RunE(recordsCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := out.String()
	if strings.Index(text, "TK2") > strings.Index(text, "TK1") {
		t.Errorf("expected newest first:\n%s", text)
	}

	out.Reset()
	recordsTab = "pending"
	if err := recordsCmd.RunE(recordsCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out.String(), "TK2") || !strings.Contains(out.String(), "Submit") {
		t.Errorf("pending tab output:\n%s", out.String())
	}

	recordsTab = "archived"
	if err := recordsCmd.RunE(recordsCmd, nil); err == nil {
		t.Error("expected an error for an unknown tab")
	}
}

func TestRecordsCmd_Empty(t *testing.T) {
	newCLIFixture(t, true)
	out := captureOut(t, recordsCmd)
	recordsTab = "All"

	if err := recordsCmd.RunE(recordsCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "cdesk start") {
		t.Errorf("output = %q", out.String())
	}
}

// syncBuffer guards a buffer written by the poll goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchRecords_PollsUntilCancelled(t *testing.T) {
	f := newCLIFixture(t, true)
	f.records = []models.TaskRecord{pendingRecord("TK1", "2025-03-01T10:00:00Z")}

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- watchRecords(ctx, out, models.TabAll, 5*time.Millisecond)
	}()

	deadline := time.After(2 * time.Second)
	for strings.Count(out.String(), "TK1") < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least two polls, got:\n%s", out.String())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	printed := out.String()
	time.Sleep(20 * time.Millisecond)
	if out.String() != printed {
		t.Error("no output may follow cancellation")
	}
}

func TestStartCmd(t *testing.T) {
	f := newCLIFixture(t, true)
	f.backend.onStart = func() {
		f.records = append(f.records, pendingRecord("TK9", "2025-03-03T10:00:00Z"))
	}
	out := captureOut(t, startCmd)

	if err := startCmd.RunE(startCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.backend.started != 1 {
		t.Errorf("started = %d, want 1", f.backend.started)
	}
	if !strings.Contains(out.String(), "TK9") {
		t.Errorf("expected the refreshed records:\n%s", out.String())
	}
}

func TestSubmitCmd_Success(t *testing.T) {
	f := newCLIFixture(t, true)
	f.records = []models.TaskRecord{pendingRecord("TK1", "2025-03-01T10:00:00Z")}
	out := captureOut(t, submitCmd)

	if err := submitCmd.RunE(submitCmd, []string{"TK1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.backend.submits) != 1 || f.backend.submits[0] != "TK1" {
		t.Errorf("submits = %v", f.backend.submits)
	}
	if !strings.Contains(out.String(), "Submitted TK1.") {
		t.Errorf("output = %q", out.String())
	}
	if !f.events.has("submit.succeeded") {
		t.Error("expected submit.succeeded event")
	}
	if got := Controller.State("TK1"); got != core.SubmitIdle {
		t.Errorf("state = %s, want idle", got)
	}
}

func TestSubmitCmd_FailureIsError(t *testing.T) {
	f := newCLIFixture(t, true)
	f.records = []models.TaskRecord{pendingRecord("TK1", "2025-03-01T10:00:00Z")}
	f.backend.result = models.SubmitResult{Message: "Daily limit reached"}
	captureOut(t, submitCmd)

	err := submitCmd.RunE(submitCmd, []string{"TK1"})
	if err == nil || err.Error() != "Daily limit reached" {
		t.Fatalf("err = %v, want the backend message", err)
	}
	if got := Controller.State("TK1"); got != core.SubmitFailed {
		t.Errorf("state = %s, want failed", got)
	}
}

func TestSubmitCmd_TransportFailure(t *testing.T) {
	f := newCLIFixture(t, true)
	f.records = []models.TaskRecord{pendingRecord("TK1", "2025-03-01T10:00:00Z")}
	f.backend.err = errors.New("connection refused")
	captureOut(t, submitCmd)

	err := submitCmd.RunE(submitCmd, []string{"TK1"})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("err = %v, want the transport error text", err)
	}
}

func TestSubmitCmd_InsufficientBalance(t *testing.T) {
	f := newCLIFixture(t, true)
	f.balance = -5
	f.records = []models.TaskRecord{{
		TaskCode:     "C1",
		Status:       models.StatusPending,
		IsCombo:      true,
		ComboGroupID: "G1",
		CanSubmit:    true,
		CreatedAt:    "2025-03-01T10:00:00Z",
	}}
	out := captureOut(t, submitCmd)

	if err := submitCmd.RunE(submitCmd, []string{"C1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.backend.submits) != 0 {
		t.Error("no submit request may be sent with a negative balance")
	}
	for _, want := range []string{core.InsufficientBalanceMessage, "cdesk deposit"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSubmitCmd_NotSubmittable(t *testing.T) {
	f := newCLIFixture(t, true)
	done := pendingRecord("TK2", "2025-03-02T10:00:00Z")
	done.Status = models.StatusCompleted
	f.records = []models.TaskRecord{done}

	if err := submitCmd.RunE(submitCmd, []string{"TK2"}); err == nil || !strings.Contains(err.Error(), "cannot be submitted") {
		t.Errorf("err = %v, want cannot be submitted", err)
	}
	if err := submitCmd.RunE(submitCmd, []string{"NOPE"}); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want not found", err)
	}
}
