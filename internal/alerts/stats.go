package alerts

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/market"
	"github.com/framefrok/bsma/internal/storage"
	"github.com/framefrok/bsma/internal/users"
)

// ResourceReport is one resource's current market picture, priced through the
// requesting user's bonus.
type ResourceReport struct {
	Resource  string
	Buy       decimal.Decimal
	Sell      decimal.Decimal
	Projected decimal.Decimal
	Speed     decimal.Decimal
	Trend     market.Trend
	Stats     storage.SampleStats
	SampledAt storage.MarketSample
	HasData   bool
}

// MarketStats assembles a per-resource report over the configured sample
// window. Resources with no samples are included with HasData false so the
// caller can render the gap instead of dropping the row.
func (s *Service) MarketStats(ctx context.Context, userID int64, resources []string) ([]ResourceReport, error) {
	now := s.clock()
	since := now.Add(-s.cfg.SampleWindow)

	bonus, err := s.bonuses.Bonus(ctx, userID)
	if err != nil {
		return nil, err
	}

	reports := make([]ResourceReport, 0, len(resources))
	for _, resource := range resources {
		report := ResourceReport{Resource: resource}

		latest, err := s.stores.Samples.LatestSample(ctx, resource)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			reports = append(reports, report)
			continue
		}
		report.HasData = true
		report.SampledAt = *latest

		window, err := s.stores.Samples.RecentSamples(ctx, resource, since)
		if err != nil {
			return nil, err
		}

		report.Buy, report.Sell = users.AdjustPrices(bonus, latest.Buy, latest.Sell)
		report.Trend = market.TrendOf(window, market.FieldBuy)

		if rawSpeed, ok := market.Speed(window, market.FieldBuy); ok {
			report.Speed = market.AdjustSpeed(rawSpeed, bonus)
		}
		if projected, ok := market.Extrapolate(window, market.FieldBuy, now); ok {
			report.Projected, _ = users.AdjustPrices(bonus, projected, projected)
		}

		stats, err := s.stores.Samples.ResourceStats(ctx, resource, since)
		if err != nil {
			return nil, err
		}
		report.Stats = stats

		reports = append(reports, report)
	}
	return reports, nil
}
