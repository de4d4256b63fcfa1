package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := NewLogger(models.LogConfig{Level: "debug", Format: "json", File: "logs/cdesk.log"}, dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.WithField("task_code", "TK1").Debug("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "logs", "cdesk.log"))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), `"task_code":"TK1"`) {
		t.Errorf("log output = %s", data)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %s", logger.GetLevel())
	}
}

func TestNewLogger_Stderr(t *testing.T) {
	logger, closer, err := NewLogger(models.LogConfig{Level: "warn", Format: "text", File: "-"}, t.TempDir())
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer closer.Close()
	if logger.Out != os.Stderr {
		t.Error("expected stderr output")
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	if _, _, err := NewLogger(models.LogConfig{Level: "loud"}, t.TempDir()); err == nil {
		t.Error("expected error for invalid level")
	}
}
