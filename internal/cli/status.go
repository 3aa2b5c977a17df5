package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/framefrok/bsma/internal/app"
)

var (
	statusUserID int64
	statusLimit  int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display the current market picture and active alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.StatusOptions{
			UserID: statusUserID,
			Limit:  statusLimit,
		}

		return getApp().Status(cmd.Context(), opts)
	},
}

func init() {
	statusCmd.Flags().Int64Var(&statusUserID, "user", 0, "User id whose prices and alerts to display")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "Number of alerts to display")
}
