package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	cdeskmcp "github.com/valter-silva-au/commission-desk/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the cdesk MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cdesk MCP server on stdio",
	Long: `Start the cdesk MCP server on stdio transport.

The server exposes the logged-in account as MCP tools that AI assistants
can call: list_task_records, get_account, submit_task_record, get_metrics,
get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil || Stores.Records == nil {
			return fmt.Errorf("client services not initialized")
		}

		srv := cdeskmcp.NewServer(cdeskmcp.Deps{
			Sessions:    Sessions,
			Records:     Stores.Records,
			Profile:     Stores.Profile,
			Balance:     Stores.Balance,
			Controller:  Controller,
			NewFlow:     NewSubmitFlow,
			MetricsCalc: MetricsCalc,
			AlertEngine: AlertEngine,
		}, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
