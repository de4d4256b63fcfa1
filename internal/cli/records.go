package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

var (
	recordsTab   string
	recordsWatch bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new task and show the assigned records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(); err != nil {
			return err
		}
		if Backend == nil {
			return fmt.Errorf("backend not initialized")
		}

		ctx := commandContext(cmd)
		assigned, err := Backend.StartTask(ctx)
		if err != nil {
			return fmt.Errorf("starting task: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Assigned %d record(s).\n\n", len(assigned))

		records, err := load(ctx, Stores.Records)
		if err != nil {
			return err
		}
		printRecords(out, core.Reconcile(records, models.TabAll, Controller))
		return nil
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List task records",
	Long: `List task records newest first, with combo groups kept together and the
submit control shown where a record can be submitted.

Use --tab to show only Pending or Completed records and --watch to keep
refreshing the list until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(); err != nil {
			return err
		}
		tab, ok := models.ParseTab(recordsTab)
		if !ok {
			return fmt.Errorf("invalid --tab %q: must be one of All, Pending, Completed", recordsTab)
		}

		if !recordsWatch {
			records, err := load(commandContext(cmd), Stores.Records)
			if err != nil {
				return err
			}
			printRecords(cmd.OutOrStdout(), core.Reconcile(records, tab, Controller))
			return nil
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()
		return watchRecords(ctx, cmd.OutOrStdout(), tab, Timings.PollInterval)
	},
}

// watchRecords reprints the records view on every poll until ctx ends.
// Failed polls keep the previous snapshot.
func watchRecords(ctx context.Context, out io.Writer, tab models.Tab, interval time.Duration) error {
	if Stores.Records == nil {
		return fmt.Errorf("data stores not initialized")
	}
	if interval <= 0 {
		interval = time.Second
	}

	sub := core.Subscribe(ctx, interval, func(ctx context.Context) {
		if err := Stores.Records.Refresh(ctx); err != nil {
			if Logger != nil {
				Logger.WithError(err).Debug("records poll failed")
			}
			return
		}
		records, _ := Stores.Records.Latest()
		if Controller != nil {
			Controller.Reconcile(records, time.Now())
		}
		fmt.Fprintf(out, "--- %s ---\n", time.Now().Format("15:04:05"))
		printRecords(out, core.Reconcile(records, tab, Controller))
	})
	<-ctx.Done()
	sub.Stop()
	return nil
}

var submitCmd = &cobra.Command{
	Use:   "submit <task-code>",
	Short: "Submit a pending task record",
	Long: `Submit a pending task record. The command waits for the processing delay,
sends the submission and reports the result. When the account balance is
short it points you to 'cdesk deposit'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(); err != nil {
			return err
		}
		if NewSubmitFlow == nil {
			return fmt.Errorf("submit flow not initialized")
		}
		code := args[0]

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		records, err := load(ctx, Stores.Records)
		if err != nil {
			return err
		}
		if _, err := load(ctx, Stores.Balance); err != nil && Logger != nil {
			Logger.WithError(err).Debug("balance refresh before submit failed")
		}

		view, ok := findRecord(core.Reconcile(records, models.TabAll, Controller), code)
		if !ok {
			return fmt.Errorf("task record %s not found", code)
		}
		if !view.ShowSubmit {
			return fmt.Errorf("task record %s cannot be submitted now", code)
		}

		ui := &cliUI{out: cmd.OutOrStdout()}
		flow, err := NewSubmitFlow(ui, ui)
		if err != nil {
			return err
		}

		fmt.Fprintf(ui.out, "Submitting %s...\n", code)
		outcome, err := flow.Submit(ctx, view.Record)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("submit of %s cancelled", code)
			}
			return err
		}
		switch outcome {
		case core.OutcomeSucceeded:
			fmt.Fprintf(ui.out, "Submitted %s.\n", code)
		case core.OutcomeFailed:
			return errors.New(ui.alert)
		case core.OutcomeStale:
			fmt.Fprintf(ui.out, "%s is already being submitted.\n", code)
		}
		return nil
	},
}

// cliUI prints submit feedback. Alerts are returned to the caller as the
// command's error.
type cliUI struct {
	out   io.Writer
	alert string
}

func (u *cliUI) Toast(msg string) { fmt.Fprintln(u.out, msg) }
func (u *cliUI) Alert(msg string) { u.alert = msg }

func (u *cliUI) Navigate(path string) {
	if path == core.DepositPath {
		fmt.Fprintln(u.out, "Add funds with 'cdesk deposit <amount>'.")
		return
	}
	fmt.Fprintf(u.out, "Continue at %s.\n", path)
}

func findRecord(views []core.RecordView, code string) (core.RecordView, bool) {
	for _, v := range views {
		if v.Record.TaskCode == code && (v.ShowSubmit || !v.Record.IsCombo) {
			return v, true
		}
	}
	for _, v := range views {
		if v.Record.TaskCode == code {
			return v, true
		}
	}
	return core.RecordView{}, false
}

func printRecords(out io.Writer, views []core.RecordView) {
	if len(views) == 0 {
		fmt.Fprintln(out, "No records. Start a task with 'cdesk start'.")
		return
	}
	fmt.Fprintf(out, "  %-14s %-10s %-6s %-24s %10s %10s  %s\n", "CODE", "STATUS", "COMBO", "PRODUCT", "PRICE", "COMMISSION", "ACTION")
	for _, v := range views {
		r := v.Record
		combo := ""
		if r.IsCombo {
			combo = fmt.Sprintf("#%d", r.ComboIndex)
		}
		action := ""
		if v.ShowSubmit {
			action = v.Label
		}
		fmt.Fprintf(out, "  %-14s %-10s %-6s %-24s %10.2f %10.2f  %s\n",
			r.TaskCode, r.Status, combo, truncate(r.Product.Name, 24), r.Product.Price, r.Product.Commission, action)
	}
}

func init() {
	recordsCmd.Flags().StringVar(&recordsTab, "tab", "All", "Records tab: All, Pending or Completed")
	recordsCmd.Flags().BoolVarP(&recordsWatch, "watch", "w", false, "Keep refreshing until interrupted")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(submitCmd)
}
