package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/storage"
)

func sampleAt(ts time.Time, buy string) storage.MarketSample {
	return storage.MarketSample{
		Resource:  "wood",
		Timestamp: ts,
		Buy:       decimal.RequireFromString(buy),
		Sell:      decimal.RequireFromString(buy).Sub(decimal.NewFromInt(1)),
		Quantity:  1000,
	}
}

func TestSpeedFlatWindowIsZero(t *testing.T) {
	t0 := time.Now()
	samples := []storage.MarketSample{
		sampleAt(t0, "10"),
		sampleAt(t0.Add(2*time.Minute), "10"),
	}

	speed, ok := Speed(samples, FieldBuy)
	if !ok {
		t.Fatal("two samples 2 minutes apart must produce a signal")
	}
	if !speed.IsZero() {
		t.Fatalf("flat window speed = %s, want 0", speed)
	}
	if trend := TrendOf(samples, FieldBuy); trend != TrendStable {
		t.Fatalf("flat window trend = %s, want stable", trend)
	}
}

func TestSpeedFallingWindow(t *testing.T) {
	t0 := time.Now()
	samples := []storage.MarketSample{
		sampleAt(t0, "10"),
		sampleAt(t0.Add(600*time.Second), "8"),
	}

	speed, ok := Speed(samples, FieldBuy)
	if !ok {
		t.Fatal("expected a signal")
	}
	if want := decimal.RequireFromString("-0.2"); !speed.Equal(want) {
		t.Fatalf("speed = %s, want %s", speed, want)
	}
	if trend := TrendOf(samples, FieldBuy); trend != TrendDown {
		t.Fatalf("trend = %s, want down", trend)
	}
}

func TestSpeedNoSignal(t *testing.T) {
	t0 := time.Now()

	cases := []struct {
		name    string
		samples []storage.MarketSample
	}{
		{"empty", nil},
		{"single", []storage.MarketSample{sampleAt(t0, "10")}},
		{"too close", []storage.MarketSample{
			sampleAt(t0, "10"),
			sampleAt(t0.Add(3*time.Second), "12"),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := Speed(tc.samples, FieldBuy); ok {
				t.Fatal("expected no signal")
			}
			if trend := TrendOf(tc.samples, FieldBuy); tc.name != "too close" && trend != TrendStable {
				t.Fatalf("trend = %s, want stable", trend)
			}
		})
	}
}

func TestSpeedRounding(t *testing.T) {
	t0 := time.Now()
	samples := []storage.MarketSample{
		sampleAt(t0, "10"),
		sampleAt(t0.Add(7*time.Minute), "11"),
	}

	speed, ok := Speed(samples, FieldBuy)
	if !ok {
		t.Fatal("expected a signal")
	}
	if speed.Exponent() < -6 {
		t.Fatalf("speed %s carries more than 6 decimal places", speed)
	}
}

func TestTrendOpposes(t *testing.T) {
	if !TrendUp.Opposes(storage.DirectionDown) {
		t.Fatal("up trend must oppose a down alert")
	}
	if !TrendDown.Opposes(storage.DirectionUp) {
		t.Fatal("down trend must oppose an up alert")
	}
	if TrendStable.Opposes(storage.DirectionDown) || TrendStable.Opposes(storage.DirectionUp) {
		t.Fatal("stable trend opposes nothing")
	}
	if TrendDown.Opposes(storage.DirectionDown) {
		t.Fatal("aligned trend must not oppose")
	}
}

func TestAdjustSpeed(t *testing.T) {
	raw := decimal.RequireFromString("-0.208")

	adjusted := AdjustSpeed(raw, decimal.RequireFromString("0.04"))
	if want := decimal.RequireFromString("-0.2"); !adjusted.Equal(want) {
		t.Fatalf("adjusted speed = %s, want %s", adjusted, want)
	}

	if got := AdjustSpeed(raw, decimal.Zero); !got.Equal(raw) {
		t.Fatalf("zero bonus must leave speed unchanged, got %s", got)
	}
	if got := AdjustSpeed(raw, decimal.RequireFromString("-0.1")); !got.Equal(raw) {
		t.Fatalf("negative bonus must leave speed unchanged, got %s", got)
	}
}

func TestExtrapolate(t *testing.T) {
	t0 := time.Now()
	samples := []storage.MarketSample{
		sampleAt(t0, "10"),
		sampleAt(t0.Add(10*time.Minute), "8"),
	}

	// -0.2/min for five more minutes lands on 7.
	price, ok := Extrapolate(samples, FieldBuy, t0.Add(15*time.Minute))
	if !ok {
		t.Fatal("expected a projection")
	}
	if want := decimal.RequireFromString("7"); !price.Equal(want) {
		t.Fatalf("extrapolated price = %s, want %s", price, want)
	}

	if _, ok := Extrapolate(nil, FieldBuy, t0); ok {
		t.Fatal("empty window must not project")
	}

	// Single sample has no velocity; projection is the raw latest price.
	price, ok = Extrapolate(samples[:1], FieldBuy, t0.Add(time.Hour))
	if !ok || !price.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("single-sample projection = %s, want 10", price)
	}
}
