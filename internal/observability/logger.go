package observability

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// NewLogger builds the process logger from cfg. A relative cfg.File is
// resolved against basePath; "-" or an empty file logs to stderr. The
// returned closer releases the log file.
func NewLogger(cfg models.LogConfig, basePath string) (*log.Logger, io.Closer, error) {
	logger := log.New()

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing log level: %w", err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: cfg.File != "-"})
	}

	if cfg.File == "" || cfg.File == "-" {
		logger.SetOutput(os.Stderr)
		return logger, io.NopCloser(nil), nil
	}

	path := cfg.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(basePath, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger.SetOutput(f)
	return logger, f, nil
}
