package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/framefrok/bsma/internal/alerting"
	"github.com/framefrok/bsma/internal/storage"
)

// memStore is an in-memory stand-in for the postgres repository, implementing
// every store surface the service consumes.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	alerts  map[int64]*storage.Alert
	samples []storage.MarketSample
	users   map[int64]*storage.User
	chats   map[int64]*storage.ChatSettings
	members map[int64][]storage.GroupMember
	rules   []*storage.BuyRule
}

func newMemStore() *memStore {
	return &memStore{
		alerts:  make(map[int64]*storage.Alert),
		users:   make(map[int64]*storage.User),
		chats:   make(map[int64]*storage.ChatSettings),
		members: make(map[int64][]storage.GroupMember),
	}
}

func (m *memStore) InsertAlert(_ context.Context, alert storage.Alert) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	alert.ID = m.nextID
	m.alerts[alert.ID] = &alert
	return alert.ID, nil
}

func (m *memStore) GetAlert(_ context.Context, id int64) (*storage.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[id]
	if !ok {
		return nil, nil
	}
	copied := *alert
	return &copied, nil
}

func (m *memStore) ListActiveAlerts(_ context.Context) ([]storage.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := make([]storage.Alert, 0)
	for _, alert := range m.alerts {
		if alert.Status == storage.StatusActive {
			active = append(active, *alert)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active, nil
}

func (m *memStore) ListUserActiveAlerts(_ context.Context, userID int64) ([]storage.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := make([]storage.Alert, 0)
	for _, alert := range m.alerts {
		if alert.Status == storage.StatusActive && alert.UserID == userID {
			active = append(active, *alert)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].FireTime.Before(active[j].FireTime) })
	return active, nil
}

func (m *memStore) TransitionStatus(_ context.Context, id int64, to storage.AlertStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[id]
	if !ok || alert.Status != storage.StatusActive {
		return false, nil
	}
	alert.Status = to
	return true, nil
}

func (m *memStore) UpdateSchedule(_ context.Context, id int64, sched storage.AlertSchedule) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[id]
	if !ok || alert.Status != storage.StatusActive {
		return false, nil
	}
	alert.Speed = sched.Speed
	alert.ReferencePrice = sched.ReferencePrice
	alert.FireTime = sched.FireTime
	return true, nil
}

func (m *memStore) InsertSample(_ context.Context, sample storage.MarketSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, sample)
	return nil
}

func (m *memStore) LatestSample(_ context.Context, resource string) (*storage.MarketSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *storage.MarketSample
	for i := range m.samples {
		sample := m.samples[i]
		if sample.Resource != resource {
			continue
		}
		if latest == nil || sample.Timestamp.After(latest.Timestamp) {
			copied := sample
			latest = &copied
		}
	}
	return latest, nil
}

func (m *memStore) LatestSamples(_ context.Context) ([]storage.MarketSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byResource := make(map[string]storage.MarketSample)
	for _, sample := range m.samples {
		current, ok := byResource[sample.Resource]
		if !ok || sample.Timestamp.After(current.Timestamp) {
			byResource[sample.Resource] = sample
		}
	}
	latest := make([]storage.MarketSample, 0, len(byResource))
	for _, sample := range byResource {
		latest = append(latest, sample)
	}
	sort.Slice(latest, func(i, j int) bool { return latest[i].Resource < latest[j].Resource })
	return latest, nil
}

func (m *memStore) RecentSamples(_ context.Context, resource string, since time.Time) ([]storage.MarketSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	window := make([]storage.MarketSample, 0)
	for _, sample := range m.samples {
		if sample.Resource == resource && !sample.Timestamp.Before(since) {
			window = append(window, sample)
		}
	}
	sort.Slice(window, func(i, j int) bool { return window[i].Timestamp.Before(window[j].Timestamp) })
	return window, nil
}

func (m *memStore) SamplesBetween(_ context.Context, resource string, from, to time.Time) ([]storage.MarketSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	window := make([]storage.MarketSample, 0)
	for _, sample := range m.samples {
		if sample.Resource == resource && !sample.Timestamp.Before(from) && sample.Timestamp.Before(to) {
			window = append(window, sample)
		}
	}
	sort.Slice(window, func(i, j int) bool { return window[i].Timestamp.Before(window[j].Timestamp) })
	return window, nil
}

func (m *memStore) LatestSampleTime(_ context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, sample := range m.samples {
		if sample.Timestamp.After(latest) {
			latest = sample.Timestamp
		}
	}
	return latest, nil
}

func (m *memStore) ResourceStats(_ context.Context, resource string, since time.Time) (storage.SampleStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := storage.SampleStats{}
	seen := false
	for _, sample := range m.samples {
		if sample.Resource != resource || sample.Timestamp.Before(since) {
			continue
		}
		if !seen {
			stats = storage.SampleStats{
				MaxBuy: sample.Buy, MinBuy: sample.Buy,
				MaxSell: sample.Sell, MinSell: sample.Sell,
				MaxQuantity: sample.Quantity,
			}
			seen = true
			continue
		}
		if sample.Buy.GreaterThan(stats.MaxBuy) {
			stats.MaxBuy = sample.Buy
		}
		if sample.Buy.LessThan(stats.MinBuy) {
			stats.MinBuy = sample.Buy
		}
		if sample.Sell.GreaterThan(stats.MaxSell) {
			stats.MaxSell = sample.Sell
		}
		if sample.Sell.LessThan(stats.MinSell) {
			stats.MinSell = sample.Sell
		}
		if sample.Quantity > stats.MaxQuantity {
			stats.MaxQuantity = sample.Quantity
		}
	}
	return stats, nil
}

func (m *memStore) GetUser(_ context.Context, id int64) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (m *memStore) UpsertUser(_ context.Context, user storage.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.UserID] = &user
	return nil
}

func (m *memStore) ListReminderUsers(_ context.Context) ([]storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]storage.User, 0)
	for _, user := range m.users {
		if user.NotifyEnabled {
			users = append(users, *user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users, nil
}

func (m *memStore) MarkUserReminded(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		user.LastReminder = at
	}
	return nil
}

func (m *memStore) GetChatSettings(_ context.Context, chatID int64) (*storage.ChatSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	settings, ok := m.chats[chatID]
	if !ok {
		return nil, nil
	}
	copied := *settings
	return &copied, nil
}

func (m *memStore) UpsertChatSettings(_ context.Context, settings storage.ChatSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[settings.ChatID] = &settings
	return nil
}

func (m *memStore) ListReminderChats(_ context.Context) ([]storage.ChatSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chats := make([]storage.ChatSettings, 0)
	for _, settings := range m.chats {
		if settings.NotifyEnabled {
			chats = append(chats, *settings)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ChatID < chats[j].ChatID })
	return chats, nil
}

func (m *memStore) MarkChatReminded(_ context.Context, chatID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if settings, ok := m.chats[chatID]; ok {
		settings.LastReminder = at
	}
	return nil
}

func (m *memStore) GroupMembers(_ context.Context, chatID int64) ([]storage.GroupMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.GroupMember(nil), m.members[chatID]...), nil
}

func (m *memStore) EnsureGroupMember(_ context.Context, member storage.GroupMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.members[member.ChatID] {
		if existing.UserID == member.UserID {
			m.members[member.ChatID][i] = member
			return nil
		}
	}
	m.members[member.ChatID] = append(m.members[member.ChatID], member)
	return nil
}

func (m *memStore) UpsertBuyRule(_ context.Context, rule storage.BuyRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.Active = true
	for i, existing := range m.rules {
		if existing.ChatID == rule.ChatID && existing.Resource == rule.Resource {
			m.rules[i] = &rule
			return nil
		}
	}
	m.rules = append(m.rules, &rule)
	return nil
}

func (m *memStore) ListActiveBuyRules(_ context.Context) ([]storage.BuyRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rules := make([]storage.BuyRule, 0)
	for _, rule := range m.rules {
		if rule.Active {
			rules = append(rules, *rule)
		}
	}
	return rules, nil
}

func (m *memStore) DeactivateBuyRule(_ context.Context, chatID int64, resource string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rule := range m.rules {
		if rule.ChatID == chatID && rule.Resource == resource {
			rule.Active = false
		}
	}
	return nil
}

func (m *memStore) ClearBuyRules(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rule := range m.rules {
		if rule.ChatID == chatID {
			rule.Active = false
		}
	}
	return nil
}

func (m *memStore) alertStatus(id int64) storage.AlertStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if alert, ok := m.alerts[id]; ok {
		return alert.Status
	}
	return ""
}

func (m *memStore) addSample(resource string, ts time.Time, buy, sell string, qty int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, storage.MarketSample{
		Resource:  resource,
		Timestamp: ts,
		Buy:       decimal.RequireFromString(buy),
		Sell:      decimal.RequireFromString(sell),
		Quantity:  qty,
	})
}

// recordingNotifier captures notifications in order; err, when set, fails
// every delivery.
type recordingNotifier struct {
	mu    sync.Mutex
	err   error
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.notes = append(r.notes, note)
	return nil
}

func (r *recordingNotifier) sent() []alerting.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]alerting.Notification(nil), r.notes...)
}
