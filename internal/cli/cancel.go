package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelUserID int64

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a user's active alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cancelUserID == 0 {
			return fmt.Errorf("--user is required")
		}

		return getApp().CancelAlerts(cmd.Context(), cancelUserID)
	},
}

func init() {
	cancelCmd.Flags().Int64Var(&cancelUserID, "user", 0, "User id whose active alerts to cancel")
}
