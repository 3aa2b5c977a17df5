package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/storage"
	"github.com/framefrok/bsma/internal/trades"
)

// RecordTradeOptions describe one trade to persist.
type RecordTradeOptions struct {
	UserID   int64
	Resource string
	Action   string
	Quantity int64
	Price    decimal.Decimal
}

// TradeSummaryOptions configure the trades command.
type TradeSummaryOptions struct {
	UserID int64
	Since  time.Duration
}

// RecordTrade validates and persists one observed trade.
func (a *App) RecordTrade(ctx context.Context, opts RecordTradeOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot record trades")
	}
	defer closeStore()

	ledger := trades.NewLedger(store, a.Logger)
	tx, err := ledger.Record(ctx, storage.Transaction{
		UserID:   opts.UserID,
		Resource: opts.Resource,
		Action:   opts.Action,
		Quantity: opts.Quantity,
		Price:    opts.Price,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "recorded trade %d: %s %d %s at %s (total %s)\n",
		tx.ID, tx.Action, tx.Quantity, tx.Resource, formatDecimal(tx.Price, 2), formatDecimal(tx.Total, 2))
	return nil
}

// TradeSummary prints a user's aggregated trading over the requested period.
func (a *App) TradeSummary(ctx context.Context, opts TradeSummaryOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show trades")
	}
	defer closeStore()

	since := opts.Since
	if since <= 0 {
		since = 24 * time.Hour
	}

	ledger := trades.NewLedger(store, a.Logger)
	summary, err := ledger.UserSummary(ctx, opts.UserID, time.Now().UTC().Add(-since))
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "User\tTrades\tBought\tSold\tNet Profit\tLast Trade (UTC)")
	lastTrade := "-"
	if !summary.LastTradeAt.IsZero() {
		lastTrade = summary.LastTradeAt.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(
		writer,
		"%s\t%d\t%s\t%s\t%s\t%s\n",
		formatInt(summary.UserID),
		summary.TradeCount,
		formatDecimal(summary.BuyTotal, 2),
		formatDecimal(summary.SellTotal, 2),
		formatDecimal(summary.NetProfit, 2),
		lastTrade,
	)
	writer.Flush()
	return nil
}

// Leaders prints the current UTC day's profit leaderboard.
func (a *App) Leaders(ctx context.Context, limit int) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show leaders")
	}
	defer closeStore()

	ledger := trades.NewLedger(store, a.Logger)
	leaders, err := ledger.DailyLeaders(ctx, limit)
	if err != nil {
		return err
	}
	if len(leaders) == 0 {
		fmt.Fprintln(os.Stdout, "no trades recorded today")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rank\tUser\tNet Profit\tTrades")
	for i, row := range leaders {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%d\n", i+1, formatInt(row.UserID), formatDecimal(row.NetProfit, 2), row.TxCount)
	}
	writer.Flush()
	return nil
}

// CancelAlerts force-deactivates a user's active alerts.
func (a *App) CancelAlerts(ctx context.Context, userID int64) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot cancel alerts")
	}
	defer closeStore()

	svc := a.newAlertService(store)
	cancelled, err := svc.CancelUserAlerts(ctx, userID)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "cancelled %d alerts for user %s\n", cancelled, formatInt(userID))
	return nil
}
