package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/commission-desk/internal/sandbox"
)

var sandboxAddr string

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Local backend commands",
	Long:  "Commands for running an in-memory backend that implements the commission service API.",
}

var sandboxServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sandbox backend until interrupted",
	Long: `Run an in-memory backend for trying the client. Accounts and records live
only as long as the process. Point the client at it with api.base_url.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := sandboxAddr
		secret := "sandbox-secret"
		if Config != nil {
			if addr == "" {
				addr = Config.Sandbox.Addr
			}
			secret = Config.Sandbox.JWTSecret
		}
		if addr == "" {
			addr = ":8088"
		}

		opts := sandbox.Options{JWTSecret: secret}
		if Logger != nil {
			opts.Logger = Logger
		}
		srv := sandbox.New(opts)

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(addr)
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "Sandbox listening on %s (ctrl+c to stop)\n", addr)

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("running sandbox: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("stopping sandbox: %w", err)
		}
		return <-errCh
	},
}

func init() {
	sandboxServeCmd.Flags().StringVar(&sandboxAddr, "addr", "", "Listen address (defaults to sandbox.addr)")
	sandboxCmd.AddCommand(sandboxServeCmd)
	rootCmd.AddCommand(sandboxCmd)
}
