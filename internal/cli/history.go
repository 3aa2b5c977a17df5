package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/framefrok/bsma/internal/app"
)

var (
	historyResource  string
	historyFrom      string
	historyTo        string
	historyPNGPath   string
	historyCSVPath   string
	historyMaxPoints int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Export a resource's price history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.HistoryOptions{
			Resource:  historyResource,
			PNGPath:   historyPNGPath,
			CSVPath:   historyCSVPath,
			MaxPoints: historyMaxPoints,
		}

		if historyFrom != "" {
			from, err := time.Parse(time.RFC3339, historyFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.From = &from
		}

		if historyTo != "" {
			to, err := time.Parse(time.RFC3339, historyTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			opts.To = &to
		}

		return getApp().History(cmd.Context(), opts)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyResource, "resource", "", "Resource whose history to export")
	historyCmd.Flags().StringVar(&historyFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "End timestamp (RFC3339, exclusive)")
	historyCmd.Flags().StringVar(&historyPNGPath, "png", "", "Path to write PNG chart")
	historyCmd.Flags().StringVar(&historyCSVPath, "csv", "", "Path to write CSV data")
	historyCmd.Flags().IntVar(&historyMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
