package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

var (
	loginUsername  string
	loginPassword  string
	registerInvite string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the commission service",
	Long: `Log in with a username and password and store the session in the data
directory. When --password is omitted it is read from stdin.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil {
			return fmt.Errorf("session manager not initialized")
		}
		password, err := passwordFromFlagOrStdin(cmd, loginPassword)
		if err != nil {
			return err
		}

		s, err := Sessions.Login(commandContext(cmd), loginUsername, password)
		if err != nil {
			return err
		}
		resetStores()
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (VIP %d).\n", s.User.Username, s.User.VIPLevel)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil {
			return fmt.Errorf("session manager not initialized")
		}
		password, err := passwordFromFlagOrStdin(cmd, loginPassword)
		if err != nil {
			return err
		}

		s, err := Sessions.Register(commandContext(cmd), loginUsername, password, registerInvite)
		if err != nil {
			return err
		}
		resetStores()
		fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s.\n", s.User.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil {
			return fmt.Errorf("session manager not initialized")
		}
		if err := Sessions.Logout(); err != nil {
			return err
		}
		resetStores()
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := requireSession()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "  %-12s %s\n", "Username:", s.User.Username)
		fmt.Fprintf(out, "  %-12s %s\n", "User ID:", s.User.ID)
		fmt.Fprintf(out, "  %-12s %d\n", "VIP level:", s.User.VIPLevel)
		if s.User.InviteCode != "" {
			fmt.Fprintf(out, "  %-12s %s\n", "Invite code:", s.User.InviteCode)
		}
		if !s.ExpiresAt.IsZero() {
			fmt.Fprintf(out, "  %-12s %s\n", "Expires:", s.ExpiresAt.Local().Format(time.RFC1123))
		}
		return nil
	},
}

// requireSession is the route guard for one-shot commands.
func requireSession() (*models.Session, error) {
	s, err := core.RequireSession(Sessions)
	switch {
	case errors.Is(err, core.ErrSessionExpired):
		return nil, fmt.Errorf("session expired, run 'cdesk login'")
	case errors.Is(err, core.ErrNoSession):
		return nil, fmt.Errorf("not logged in, run 'cdesk login'")
	case err != nil:
		return nil, err
	}
	return s, nil
}

func passwordFromFlagOrStdin(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// resetStores drops the previous user's snapshots and submit states.
func resetStores() {
	if Controller != nil {
		Controller.Reset()
	}
	if Stores.Profile == nil {
		return
	}
	Stores.Reset()
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&loginUsername, "username", "u", "", "Account username")
		c.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (read from stdin when omitted)")
	}
	registerCmd.Flags().StringVar(&registerInvite, "invite", "", "Invite code")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
