package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction states whether a target is reached by the price falling or rising.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Sign returns +1 for up and -1 for down.
func (d Direction) Sign() int {
	if d == DirectionDown {
		return -1
	}
	return 1
}

// AlertStatus is the closed set of alert lifecycle states. Only StatusActive
// is non-terminal; every transition out of it is final.
type AlertStatus string

const (
	StatusActive         AlertStatus = "active"
	StatusCompleted      AlertStatus = "completed"
	StatusExpired        AlertStatus = "expired"
	StatusTrendChanged   AlertStatus = "trend_changed"
	StatusCleanupExpired AlertStatus = "cleanup_expired"
	StatusError          AlertStatus = "error"
)

// Terminal reports whether the status permits no further transitions.
func (s AlertStatus) Terminal() bool {
	return s != StatusActive
}

// MarketSample is one observed market quote for a resource. Samples are
// append-only and ordered by Timestamp within a resource.
type MarketSample struct {
	Resource  string
	Timestamp time.Time
	Buy       decimal.Decimal
	Sell      decimal.Decimal
	Quantity  int64
}

// Alert is a persisted target-price timer.
type Alert struct {
	ID             int64
	UserID         int64
	ChatID         *int64
	Resource       string
	Direction      Direction
	TargetPrice    decimal.Decimal
	Speed          decimal.Decimal
	ReferencePrice decimal.Decimal
	FireTime       time.Time
	Status         AlertStatus
	CreatedAt      time.Time
}

// AlertSchedule carries the fields the reconciler is allowed to rewrite while
// an alert is still active.
type AlertSchedule struct {
	Speed          decimal.Decimal
	ReferencePrice decimal.Decimal
	FireTime       time.Time
}

// User holds per-user bonus inputs and reminder settings.
type User struct {
	UserID         int64
	Username       string
	Anchor         bool
	TradeLevel     int
	NotifyEnabled  bool
	NotifyInterval time.Duration
	LastReminder   time.Time
}

// ChatSettings mirrors the user reminder settings for a group chat.
type ChatSettings struct {
	ChatID         int64
	NotifyEnabled  bool
	NotifyInterval time.Duration
	LastReminder   time.Time
}

// GroupMember is one mentionable member of a group chat.
type GroupMember struct {
	ChatID   int64
	UserID   int64
	Username string
}

// BuyRule is a group-scoped buy-threshold rule: fire when the latest sample
// for Resource has buy <= MaxPrice and quantity >= MinQuantity.
type BuyRule struct {
	ChatID      int64
	Resource    string
	MaxPrice    decimal.Decimal
	MinQuantity int64
	Active      bool
}

// Transaction records one observed buy or sell for profit bookkeeping.
type Transaction struct {
	ID        int64
	UserID    int64
	Resource  string
	Action    string
	Quantity  int64
	Price     decimal.Decimal
	Total     decimal.Decimal
	Profit    decimal.Decimal
	Timestamp time.Time
}

// ProfitSummary is one leaderboard row.
type ProfitSummary struct {
	UserID    int64
	NetProfit decimal.Decimal
	TxCount   int64
}

// SampleStats aggregates a resource's samples over a window.
type SampleStats struct {
	MaxBuy      decimal.Decimal
	MinBuy      decimal.Decimal
	MaxSell     decimal.Decimal
	MinSell     decimal.Decimal
	MaxQuantity int64
}
