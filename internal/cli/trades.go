package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/framefrok/bsma/internal/app"
)

var (
	tradesUserID     int64
	tradesSinceHours int

	recordUserID   int64
	recordResource string
	recordAction   string
	recordQuantity int64
	recordPrice    string
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Display a user's trade summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tradesUserID == 0 {
			return fmt.Errorf("--user is required")
		}

		opts := app.TradeSummaryOptions{
			UserID: tradesUserID,
			Since:  time.Duration(tradesSinceHours) * time.Hour,
		}

		return getApp().TradeSummary(cmd.Context(), opts)
	},
}

var tradesRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a buy or sell trade",
	RunE: func(cmd *cobra.Command, args []string) error {
		if recordUserID == 0 {
			return fmt.Errorf("--user is required")
		}
		if recordResource == "" {
			return fmt.Errorf("--resource is required")
		}
		price, err := decimal.NewFromString(recordPrice)
		if err != nil {
			return fmt.Errorf("--price must be a decimal: %w", err)
		}

		opts := app.RecordTradeOptions{
			UserID:   recordUserID,
			Resource: recordResource,
			Action:   recordAction,
			Quantity: recordQuantity,
			Price:    price,
		}

		return getApp().RecordTrade(cmd.Context(), opts)
	},
}

func init() {
	tradesCmd.Flags().Int64Var(&tradesUserID, "user", 0, "User id whose trades to summarise")
	tradesCmd.Flags().IntVar(&tradesSinceHours, "since", 24, "Lookback period in hours")

	tradesRecordCmd.Flags().Int64Var(&recordUserID, "user", 0, "User id the trade belongs to")
	tradesRecordCmd.Flags().StringVar(&recordResource, "resource", "", "Traded resource")
	tradesRecordCmd.Flags().StringVar(&recordAction, "action", "buy", "Trade action: buy or sell")
	tradesRecordCmd.Flags().Int64Var(&recordQuantity, "quantity", 0, "Traded quantity")
	tradesRecordCmd.Flags().StringVar(&recordPrice, "price", "", "Unit price")

	tradesCmd.AddCommand(tradesRecordCmd)
}
