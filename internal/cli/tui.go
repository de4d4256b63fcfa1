package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/internal/tui"
)

var tuiStartPage string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive terminal client",
	Long: `Start the full-screen client. Logged-out users land on the login page.

Keys: arrows move, enter selects, esc focuses the sidebar, ctrl+x logs out,
q or ctrl+c quits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil || Router == nil || Backend == nil {
			return fmt.Errorf("client services not initialized")
		}

		ctx := commandContext(cmd)
		svc := &tui.Services{
			Sessions:   Sessions,
			Router:     Router,
			Backend:    Backend,
			Stores:     Stores,
			Controller: Controller,
			Events:     Events,
			Timings:    Timings,
		}
		if Logger != nil {
			svc.Logger = Logger
		}

		p := tea.NewProgram(tui.New(ctx, svc, tuiStartPage), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running tui: %w", err)
		}
		return nil
	},
}

func init() {
	tuiCmd.Flags().StringVar(&tuiStartPage, "page", core.PathDashboard, "Page to open first (e.g. /records)")
	rootCmd.AddCommand(tuiCmd)
}
