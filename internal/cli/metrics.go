package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display session and submit metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include logins, submit outcomes (succeeded, failed, deposit required),
deposits, withdrawals and the most visited pages.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			data, err := sonic.ConfigStd.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		// Table format.
		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Logins:", metrics.Logins)
		fmt.Fprintf(out, "  %-24s %d\n", "Submits started:", metrics.SubmitsStarted)
		fmt.Fprintf(out, "  %-24s %d\n", "Submits succeeded:", metrics.SubmitsSucceeded)
		fmt.Fprintf(out, "  %-24s %d\n", "Submits failed:", metrics.SubmitsFailed)
		fmt.Fprintf(out, "  %-24s %d\n", "Deposit required:", metrics.MustDeposit+metrics.InsufficientBalance)
		fmt.Fprintf(out, "  %-24s %.1f%%\n", "Success rate:", metrics.SuccessRate())
		fmt.Fprintf(out, "  %-24s %d (%.2f)\n", "Deposits:", metrics.Deposits, metrics.DepositedAmount)
		fmt.Fprintf(out, "  %-24s %d (%.2f)\n", "Withdrawals:", metrics.Withdrawals, metrics.WithdrawnAmount)

		if len(metrics.FailureReasons) > 0 {
			fmt.Fprintln(out, "\n  Failure reasons:")
			for _, reason := range sortedKeys(metrics.FailureReasons) {
				fmt.Fprintf(out, "    %-32s %d\n", reason+":", metrics.FailureReasons[reason])
			}
		}

		if len(metrics.PageViews) > 0 {
			fmt.Fprintln(out, "\n  Page views:")
			for _, path := range sortedKeys(metrics.PageViews) {
				fmt.Fprintf(out, "    %-20s %d\n", path+":", metrics.PageViews[path])
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// sortedKeys orders map keys by descending count, then name.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
