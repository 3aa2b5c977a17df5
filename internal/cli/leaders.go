package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var leadersLimit int

var leadersCmd = &cobra.Command{
	Use:   "leaders",
	Short: "Display today's profit leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		if leadersLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		return getApp().Leaders(cmd.Context(), leadersLimit)
	},
}

func init() {
	leadersCmd.Flags().IntVar(&leadersLimit, "limit", 10, "Number of leaderboard rows to display")
}
