package users

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/storage"
)

func TestBonus(t *testing.T) {
	if b := Bonus(nil); !b.IsZero() {
		t.Fatalf("nil user bonus = %s, want 0", b)
	}

	user := &storage.User{Anchor: true, TradeLevel: 2}
	if b, want := Bonus(user), decimal.RequireFromString("0.06"); !b.Equal(want) {
		t.Fatalf("bonus = %s, want %s", b, want)
	}

	user = &storage.User{TradeLevel: 1}
	if b, want := Bonus(user), decimal.RequireFromString("0.02"); !b.Equal(want) {
		t.Fatalf("bonus = %s, want %s", b, want)
	}
}

func TestAdjustPrices(t *testing.T) {
	buy := decimal.RequireFromString("10.4")
	sell := decimal.RequireFromString("10")

	adjBuy, adjSell := AdjustPrices(decimal.RequireFromString("0.04"), buy, sell)
	if want := decimal.RequireFromString("10"); !adjBuy.Equal(want) {
		t.Fatalf("adjusted buy = %s, want %s", adjBuy, want)
	}
	if want := decimal.RequireFromString("10.4"); !adjSell.Equal(want) {
		t.Fatalf("adjusted sell = %s, want %s", adjSell, want)
	}

	adjBuy, adjSell = AdjustPrices(decimal.Zero, buy, sell)
	if !adjBuy.Equal(buy) || !adjSell.Equal(sell) {
		t.Fatal("zero bonus must leave the quote untouched")
	}
}
