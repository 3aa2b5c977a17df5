package trades

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/storage"
)

type memTxStore struct {
	nextID int64
	txs    []storage.Transaction
}

func (m *memTxStore) InsertTransaction(_ context.Context, tx storage.Transaction) (int64, error) {
	m.nextID++
	tx.ID = m.nextID
	m.txs = append(m.txs, tx)
	return tx.ID, nil
}

func (m *memTxStore) UserTransactions(_ context.Context, userID int64, since time.Time) ([]storage.Transaction, error) {
	out := make([]storage.Transaction, 0)
	for _, tx := range m.txs {
		if tx.UserID == userID && !tx.Timestamp.Before(since) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memTxStore) DailyLeaders(_ context.Context, since time.Time, limit int) ([]storage.ProfitSummary, error) {
	byUser := make(map[int64]*storage.ProfitSummary)
	for _, tx := range m.txs {
		if tx.Timestamp.Before(since) {
			continue
		}
		row, ok := byUser[tx.UserID]
		if !ok {
			row = &storage.ProfitSummary{UserID: tx.UserID}
			byUser[tx.UserID] = row
		}
		row.NetProfit = row.NetProfit.Add(tx.Profit)
		row.TxCount++
	}
	leaders := make([]storage.ProfitSummary, 0, len(byUser))
	for _, row := range byUser {
		leaders = append(leaders, *row)
	}
	sort.Slice(leaders, func(i, j int) bool { return leaders[i].NetProfit.GreaterThan(leaders[j].NetProfit) })
	if len(leaders) > limit {
		leaders = leaders[:limit]
	}
	return leaders, nil
}

func newTestLedger(now time.Time) (*Ledger, *memTxStore) {
	store := &memTxStore{}
	ledger := NewLedger(store, zerolog.Nop())
	ledger.clock = func() time.Time { return now }
	return ledger, store
}

func TestRecordDerivesTotalAndProfit(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger, _ := newTestLedger(now)

	tx, err := ledger.Record(context.Background(), storage.Transaction{
		UserID:   1,
		Resource: "wood",
		Action:   "Sell",
		Quantity: 10,
		Price:    decimal.RequireFromString("2.5"),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if tx.Action != ActionSell {
		t.Errorf("action = %s, want sell", tx.Action)
	}
	if got, want := tx.Total.String(), "25"; got != want {
		t.Errorf("total = %s, want %s", got, want)
	}
	if got, want := tx.Profit.String(), "25"; got != want {
		t.Errorf("profit = %s, want %s", got, want)
	}
	if !tx.Timestamp.Equal(now) {
		t.Errorf("timestamp = %s, want clock time", tx.Timestamp)
	}
}

func TestRecordBuyProfitIsNegative(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger, _ := newTestLedger(now)

	tx, err := ledger.Record(context.Background(), storage.Transaction{
		UserID:   1,
		Resource: "wood",
		Action:   "buy",
		Quantity: 4,
		Price:    decimal.RequireFromString("3"),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got, want := tx.Profit.String(), "-12"; got != want {
		t.Errorf("profit = %s, want %s", got, want)
	}
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger, _ := newTestLedger(now)

	cases := []storage.Transaction{
		{UserID: 1, Resource: "wood", Action: "hodl", Quantity: 1, Price: decimal.NewFromInt(1)},
		{UserID: 1, Resource: "wood", Action: "buy", Quantity: 0, Price: decimal.NewFromInt(1)},
		{UserID: 1, Resource: "wood", Action: "buy", Quantity: 1, Price: decimal.Zero},
	}
	for _, tc := range cases {
		_, err := ledger.Record(context.Background(), tc)
		var invalid *InvalidTradeError
		if !errors.As(err, &invalid) {
			t.Errorf("Record(%+v) err = %v, want InvalidTradeError", tc, err)
		}
	}
}

func TestUserSummary(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger, _ := newTestLedger(now)

	buys := []int64{10, 5}
	for _, qty := range buys {
		if _, err := ledger.Record(context.Background(), storage.Transaction{
			UserID: 1, Resource: "wood", Action: "buy", Quantity: qty, Price: decimal.NewFromInt(2),
		}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := ledger.Record(context.Background(), storage.Transaction{
		UserID: 1, Resource: "wood", Action: "sell", Quantity: 10, Price: decimal.NewFromInt(4),
	}); err != nil {
		t.Fatal(err)
	}

	summary, err := ledger.UserSummary(context.Background(), 1, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("UserSummary: %v", err)
	}
	if summary.TradeCount != 3 {
		t.Errorf("trade count = %d, want 3", summary.TradeCount)
	}
	if got, want := summary.BuyTotal.String(), "30"; got != want {
		t.Errorf("buy total = %s, want %s", got, want)
	}
	if got, want := summary.SellTotal.String(), "40"; got != want {
		t.Errorf("sell total = %s, want %s", got, want)
	}
	if got, want := summary.NetProfit.String(), "10"; got != want {
		t.Errorf("net profit = %s, want %s", got, want)
	}
}

func TestDailyLeadersRanksByProfit(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger, _ := newTestLedger(now)

	if _, err := ledger.Record(context.Background(), storage.Transaction{
		UserID: 1, Resource: "wood", Action: "sell", Quantity: 1, Price: decimal.NewFromInt(10),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.Record(context.Background(), storage.Transaction{
		UserID: 2, Resource: "wood", Action: "sell", Quantity: 1, Price: decimal.NewFromInt(30),
	}); err != nil {
		t.Fatal(err)
	}

	leaders, err := ledger.DailyLeaders(context.Background(), 10)
	if err != nil {
		t.Fatalf("DailyLeaders: %v", err)
	}
	if len(leaders) != 2 {
		t.Fatalf("leaders = %d, want 2", len(leaders))
	}
	if leaders[0].UserID != 2 {
		t.Errorf("top user = %d, want 2", leaders[0].UserID)
	}
}
