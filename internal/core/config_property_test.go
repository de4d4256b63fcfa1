package core

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// Property: durations written to the config file are read back unchanged,
// and every value read from a valid file passes validation.
func TestProperty_ConfigDurationsRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		interval := time.Duration(rapid.IntRange(1, 60_000).Draw(rt, "interval_ms")) * time.Millisecond
		processing := time.Duration(rapid.IntRange(0, 10_000).Draw(rt, "processing_ms")) * time.Millisecond
		hold := time.Duration(rapid.IntRange(0, 10_000).Draw(rt, "hold_ms")) * time.Millisecond
		redirect := time.Duration(rapid.IntRange(0, 10_000).Draw(rt, "redirect_ms")) * time.Millisecond
		level := rapid.SampledFrom([]string{"debug", "info", "warn", "error"}).Draw(rt, "level")

		dir := t.TempDir()
		writeFile(t, dir, ConfigFileName+".yaml", fmt.Sprintf(`
polling:
  interval: %s
submit:
  processing_delay: %s
  submitted_hold: %s
  redirect_delay: %s
log:
  level: %s
`, interval, processing, hold, redirect, level))

		cm := NewConfigurationManager(dir)
		cfg, err := cm.LoadGlobalConfig()
		if err != nil {
			rt.Fatalf("LoadGlobalConfig: %v", err)
		}
		if cfg.Polling.Interval != interval {
			rt.Fatalf("interval = %s, want %s", cfg.Polling.Interval, interval)
		}
		if cfg.Submit.ProcessingDelay != processing || cfg.Submit.SubmittedHold != hold || cfg.Submit.RedirectDelay != redirect {
			rt.Fatalf("submit timings = %+v, want %s/%s/%s", cfg.Submit, processing, hold, redirect)
		}
		if err := cm.ValidateConfig(cfg); err != nil {
			rt.Fatalf("ValidateConfig: %v", err)
		}
	})
}
