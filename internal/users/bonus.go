// Package users computes per-user trade bonuses and applies them to quoted
// prices. The bonus is a fraction (0.04 = 4%) derived from the user's anchor
// perk and trade level; it improves the user's effective prices on both sides
// of the book.
package users

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/storage"
)

var (
	perkStep = decimal.RequireFromString("0.02")
	one      = decimal.NewFromInt(1)
)

// Bonus derives the bonus fraction from a user's perks: 2% for the anchor and
// 2% per trade level. A nil user has no bonus.
func Bonus(user *storage.User) decimal.Decimal {
	if user == nil {
		return decimal.Zero
	}

	bonus := decimal.Zero
	if user.Anchor {
		bonus = bonus.Add(perkStep)
	}
	if user.TradeLevel > 0 {
		bonus = bonus.Add(perkStep.Mul(decimal.NewFromInt(int64(user.TradeLevel))))
	}
	return bonus
}

// AdjustPrices applies a bonus fraction to a raw quote: the effective buy
// price drops to buy/(1+bonus) and the effective sell price rises to
// sell*(1+bonus). A non-positive bonus leaves the quote untouched.
func AdjustPrices(bonus, buy, sell decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if !bonus.IsPositive() {
		return buy, sell
	}
	factor := one.Add(bonus)
	return buy.DivRound(factor, 6), sell.Mul(factor).Round(6)
}

// Resolver looks up users and answers bonus questions against the store.
type Resolver struct {
	store storage.UserStore
}

// NewResolver builds a Resolver over a user store.
func NewResolver(store storage.UserStore) *Resolver {
	return &Resolver{store: store}
}

// Bonus returns the bonus fraction for a user id. Unknown users have none.
func (r *Resolver) Bonus(ctx context.Context, userID int64) (decimal.Decimal, error) {
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return Bonus(user), nil
}

// AdjustPrices resolves the user's bonus and applies it to a raw quote.
func (r *Resolver) AdjustPrices(ctx context.Context, userID int64, buy, sell decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	bonus, err := r.Bonus(ctx, userID)
	if err != nil {
		return buy, sell, err
	}
	adjBuy, adjSell := AdjustPrices(bonus, buy, sell)
	return adjBuy, adjSell, nil
}
