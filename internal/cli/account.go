package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/commission-desk/internal/api"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

var (
	depositMethod    string
	withdrawAddress  string
	withdrawPassword string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the account profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(); err != nil {
			return err
		}
		p, err := load(commandContext(cmd), Stores.Profile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Profile of %s\n\n", p.User.Username)
		fmt.Fprintf(out, "  %-20s %d\n", "VIP level:", p.User.VIPLevel)
		fmt.Fprintf(out, "  %-20s %.2f\n", "Balance:", p.Balance)
		fmt.Fprintf(out, "  %-20s %.2f\n", "Frozen:", p.Frozen)
		fmt.Fprintf(out, "  %-20s %.2f\n", "Commission:", p.Commission)
		fmt.Fprintf(out, "  %-20s %.2f\n", "Today's commission:", p.TodayCommission)
		fmt.Fprintf(out, "  %-20s %d/%d\n", "Tasks today:", p.CompletedToday, p.DailyLimit)
		fmt.Fprintf(out, "  %-20s %d\n", "Credit score:", p.CreditScore)
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the account balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(); err != nil {
			return err
		}
		b, err := load(commandContext(cmd), Stores.Balance)
		if err != nil {
			return err
		}
		printBalance(cmd.OutOrStdout(), b)
		return nil
	},
}

var transactionsCmd = &cobra.Command{
	Use:     "transactions",
	Aliases: []string{"tx"},
	Short:   "List deposits, withdrawals and commission payouts",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(); err != nil {
			return err
		}
		txs, err := load(commandContext(cmd), Stores.Transactions)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(txs) == 0 {
			fmt.Fprintln(out, "No transactions yet.")
			return nil
		}
		fmt.Fprintf(out, "  %-16s %-10s %12s  %-10s %s\n", "DATE", "TYPE", "AMOUNT", "STATUS", "ID")
		for _, tx := range txs {
			fmt.Fprintf(out, "  %-16s %-10s %12.2f  %-10s %s\n", shortTime(tx.CreatedAt), tx.Type, tx.Amount, tx.Status, tx.ID)
		}
		return nil
	},
}

var depositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Deposit funds into the account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(); err != nil {
			return err
		}
		if Backend == nil {
			return fmt.Errorf("backend not initialized")
		}
		amount, err := core.ParseAmount(args[0])
		if err != nil {
			return err
		}
		if err := core.ValidateDeposit(amount); err != nil {
			return err
		}

		ctx := commandContext(cmd)
		method := strings.TrimSpace(depositMethod)
		if method == "" {
			method = "usdt"
		}
		tx, err := Backend.Deposit(ctx, amount, method)
		if err != nil {
			return fmt.Errorf("creating deposit: %w", err)
		}
		logEvent("deposit.created", map[string]any{"amount": amount, "id": tx.ID})

		fmt.Fprintf(cmd.OutOrStdout(), "Deposit of %.2f is %s (%s).\n", tx.Amount, tx.Status, tx.ID)
		if b, err := load(ctx, Stores.Balance); err == nil {
			printBalance(cmd.OutOrStdout(), b)
		}
		return nil
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount>",
	Short: "Request a withdrawal to an external address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(); err != nil {
			return err
		}
		if Backend == nil {
			return fmt.Errorf("backend not initialized")
		}
		amount, err := core.ParseAmount(args[0])
		if err != nil {
			return err
		}

		ctx := commandContext(cmd)
		b, err := load(ctx, Stores.Balance)
		if err != nil {
			return err
		}
		if err := core.ValidateWithdraw(amount, b.Balance, withdrawAddress, withdrawPassword); err != nil {
			return err
		}

		tx, err := Backend.Withdraw(ctx, amount, strings.TrimSpace(withdrawAddress), withdrawPassword)
		if err != nil {
			return fmt.Errorf("creating withdrawal: %w", err)
		}
		logEvent("withdraw.created", map[string]any{"amount": amount, "id": tx.ID})
		fmt.Fprintf(cmd.OutOrStdout(), "Withdrawal of %.2f is %s (%s).\n", tx.Amount, tx.Status, tx.ID)
		return nil
	},
}

var vipCmd = &cobra.Command{
	Use:   "vip",
	Short: "List VIP levels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := requireSession()
		if err != nil {
			return err
		}
		levels, err := load(commandContext(cmd), Stores.VIPLevels)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "  %-3s %-5s %-10s %8s %6s %12s %14s\n", "", "LEVEL", "NAME", "RATE", "TASKS", "MIN BALANCE", "WITHDRAW LIMIT")
		for _, l := range levels {
			mark := ""
			if l.Level == s.User.VIPLevel {
				mark = "*"
			}
			fmt.Fprintf(out, "  %-3s %-5d %-10s %7.2f%% %6d %12.2f %14.2f\n",
				mark, l.Level, l.Name, l.CommissionRate*100, l.DailyTasks, l.MinBalance, l.WithdrawLimit)
		}
		return nil
	},
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List the product catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireSession(); err != nil {
			return err
		}
		products, err := load(commandContext(cmd), Stores.Products)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(products) == 0 {
			fmt.Fprintln(out, "No products.")
			return nil
		}
		fmt.Fprintf(out, "  %-32s %10s %10s\n", "PRODUCT", "PRICE", "COMMISSION")
		for _, p := range products {
			fmt.Fprintf(out, "  %-32s %10.2f %10.2f\n", truncate(p.Name, 32), p.Price, p.Commission)
		}
		return nil
	},
}

// load refreshes a snapshot store and returns its value.
func load[T any](ctx context.Context, s *core.SnapshotStore[T]) (T, error) {
	var zero T
	if s == nil {
		return zero, fmt.Errorf("data stores not initialized")
	}
	if err := s.Refresh(ctx); err != nil {
		if api.IsUnauthorized(err) {
			return zero, fmt.Errorf("loading %s: session rejected by the server, run 'cdesk login'", s.Name())
		}
		return zero, fmt.Errorf("loading %s: %w", s.Name(), err)
	}
	v, _ := s.Latest()
	return v, nil
}

func printBalance(out io.Writer, b models.Balance) {
	fmt.Fprintf(out, "  %-12s %.2f\n", "Balance:", b.Balance)
	fmt.Fprintf(out, "  %-12s %.2f\n", "Frozen:", b.Frozen)
	fmt.Fprintf(out, "  %-12s %.2f\n", "Commission:", b.Commission)
}

func logEvent(eventType string, data map[string]any) {
	if Events == nil {
		return
	}
	if err := Events.LogEvent(eventType, data); err != nil && Logger != nil {
		Logger.WithError(err).Debug("writing event failed")
	}
}

func shortTime(ts string) string {
	if t := models.ParseTimestamp(ts); !t.IsZero() {
		return t.Local().Format("2006-01-02 15:04")
	}
	return ts
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	depositCmd.Flags().StringVar(&depositMethod, "method", "usdt", "Deposit method")
	withdrawCmd.Flags().StringVar(&withdrawAddress, "address", "", "Destination address")
	withdrawCmd.Flags().StringVar(&withdrawPassword, "password", "", "Withdraw password")

	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(transactionsCmd)
	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(withdrawCmd)
	rootCmd.AddCommand(vipCmd)
	rootCmd.AddCommand(productsCmd)
}
