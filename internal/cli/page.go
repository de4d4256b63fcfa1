package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/commission-desk/internal/tui"
)

var pageCmd = &cobra.Command{
	Use:       "page <about|faq|terms>",
	Short:     "Print a static information page",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"about", "faq", "terms"},
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.ToLower(strings.TrimPrefix(args[0], "/"))
		body, ok := tui.StaticPage("/" + name)
		if !ok {
			return fmt.Errorf("unknown page %q: must be one of about, faq, terms", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), body)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pageCmd)
}
