// Package trades records observed buys and sells and aggregates them into
// profit summaries and the daily leaderboard.
package trades

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/storage"
)

const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// ErrInvalidTrade is returned via InvalidTradeError for rejected records.
type InvalidTradeError struct {
	Reason string
}

func (e *InvalidTradeError) Error() string {
	return "trades: " + e.Reason
}

// Summary aggregates one user's trading over a period.
type Summary struct {
	UserID      int64
	Since       time.Time
	BuyTotal    decimal.Decimal
	SellTotal   decimal.Decimal
	NetProfit   decimal.Decimal
	TradeCount  int
	LastTradeAt time.Time
}

// Ledger validates and persists trades and answers aggregate queries.
type Ledger struct {
	store  storage.TransactionStore
	logger zerolog.Logger
	clock  func() time.Time
}

// NewLedger builds a Ledger over a transaction store.
func NewLedger(store storage.TransactionStore, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger.With().Str("component", "trades").Logger(),
		clock:  time.Now,
	}
}

// Record validates and persists one trade. Total defaults to quantity*price
// when unset; profit is positive total for sells and negative for buys unless
// the caller supplies its own figure.
func (l *Ledger) Record(ctx context.Context, tx storage.Transaction) (storage.Transaction, error) {
	action := strings.ToLower(strings.TrimSpace(tx.Action))
	if action != ActionBuy && action != ActionSell {
		return storage.Transaction{}, &InvalidTradeError{Reason: "action must be buy or sell"}
	}
	if tx.Quantity <= 0 {
		return storage.Transaction{}, &InvalidTradeError{Reason: "quantity must be positive"}
	}
	if !tx.Price.IsPositive() {
		return storage.Transaction{}, &InvalidTradeError{Reason: "price must be positive"}
	}

	tx.Action = action
	if tx.Total.IsZero() {
		tx.Total = tx.Price.Mul(decimal.NewFromInt(tx.Quantity))
	}
	if tx.Profit.IsZero() {
		if action == ActionSell {
			tx.Profit = tx.Total
		} else {
			tx.Profit = tx.Total.Neg()
		}
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = l.clock()
	}

	id, err := l.store.InsertTransaction(ctx, tx)
	if err != nil {
		return storage.Transaction{}, err
	}
	tx.ID = id

	l.logger.Info().
		Int64("user_id", tx.UserID).
		Str("resource", tx.Resource).
		Str("action", tx.Action).
		Int64("quantity", tx.Quantity).
		Str("total", tx.Total.String()).
		Msg("trade recorded")
	return tx, nil
}

// UserSummary aggregates a user's trades since a cutoff.
func (l *Ledger) UserSummary(ctx context.Context, userID int64, since time.Time) (Summary, error) {
	txs, err := l.store.UserTransactions(ctx, userID, since)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{UserID: userID, Since: since, TradeCount: len(txs)}
	for _, tx := range txs {
		switch tx.Action {
		case ActionBuy:
			summary.BuyTotal = summary.BuyTotal.Add(tx.Total)
		case ActionSell:
			summary.SellTotal = summary.SellTotal.Add(tx.Total)
		}
		summary.NetProfit = summary.NetProfit.Add(tx.Profit)
		if tx.Timestamp.After(summary.LastTradeAt) {
			summary.LastTradeAt = tx.Timestamp
		}
	}
	return summary, nil
}

// DailyLeaders ranks users by net profit over the current UTC day.
func (l *Ledger) DailyLeaders(ctx context.Context, limit int) ([]storage.ProfitSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	dayStart := l.clock().UTC().Truncate(24 * time.Hour)
	return l.store.DailyLeaders(ctx, dayStart, limit)
}
