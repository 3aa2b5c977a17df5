package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertAlertSQL = `INSERT INTO alerts (
        user_id,
        chat_id,
        resource,
        direction,
        target_price,
        speed,
        reference_price,
        fire_time,
        status,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    RETURNING id;`

	getAlertSQL = `SELECT
        id, user_id, chat_id, resource, direction,
        target_price, speed, reference_price,
        fire_time, status, created_at
    FROM alerts
    WHERE id = $1;`

	listActiveAlertsSQL = `SELECT
        id, user_id, chat_id, resource, direction,
        target_price, speed, reference_price,
        fire_time, status, created_at
    FROM alerts
    WHERE status = 'active'
    ORDER BY id;`

	listUserActiveAlertsSQL = `SELECT
        id, user_id, chat_id, resource, direction,
        target_price, speed, reference_price,
        fire_time, status, created_at
    FROM alerts
    WHERE status = 'active'
      AND user_id = $1
    ORDER BY fire_time;`

	transitionStatusSQL = `UPDATE alerts
    SET status = $2
    WHERE id = $1
      AND status = 'active';`

	updateScheduleSQL = `UPDATE alerts
    SET speed = $2,
        reference_price = $3,
        fire_time = $4
    WHERE id = $1
      AND status = 'active';`

	insertSampleSQL = `INSERT INTO market_samples (
        resource, ts, buy, sell, quantity
    ) VALUES ($1,$2,$3,$4,$5);`

	latestSampleSQL = `SELECT resource, ts, buy, sell, quantity
    FROM market_samples
    WHERE resource = $1
    ORDER BY ts DESC
    LIMIT 1;`

	latestSamplesSQL = `SELECT DISTINCT ON (resource)
        resource, ts, buy, sell, quantity
    FROM market_samples
    ORDER BY resource, ts DESC;`

	recentSamplesSQL = `SELECT resource, ts, buy, sell, quantity
    FROM market_samples
    WHERE resource = $1
      AND ts >= $2
    ORDER BY ts;`

	samplesBetweenSQL = `SELECT resource, ts, buy, sell, quantity
    FROM market_samples
    WHERE resource = $1
      AND ts >= $2
      AND ts < $3
    ORDER BY ts;`

	latestSampleTimeSQL = `SELECT MAX(ts) FROM market_samples;`

	resourceStatsSQL = `SELECT
        COALESCE(MAX(buy), '0'),
        COALESCE(MIN(buy), '0'),
        COALESCE(MAX(sell), '0'),
        COALESCE(MIN(sell), '0'),
        COALESCE(MAX(quantity), 0)
    FROM market_samples
    WHERE resource = $1
      AND ts >= $2;`

	getUserSQL = `SELECT
        user_id, username, anchor, trade_level,
        notify_enabled, notify_interval_minutes, last_reminder
    FROM users
    WHERE user_id = $1;`

	upsertUserSQL = `INSERT INTO users (
        user_id, username, anchor, trade_level,
        notify_enabled, notify_interval_minutes, last_reminder
    ) VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (user_id) DO UPDATE
    SET username = EXCLUDED.username,
        anchor = EXCLUDED.anchor,
        trade_level = EXCLUDED.trade_level,
        notify_enabled = EXCLUDED.notify_enabled,
        notify_interval_minutes = EXCLUDED.notify_interval_minutes;`

	listReminderUsersSQL = `SELECT
        user_id, username, anchor, trade_level,
        notify_enabled, notify_interval_minutes, last_reminder
    FROM users
    WHERE notify_enabled
    ORDER BY user_id;`

	markUserRemindedSQL = `UPDATE users
    SET last_reminder = $2
    WHERE user_id = $1;`

	getChatSettingsSQL = `SELECT
        chat_id, notify_enabled, notify_interval_minutes, last_reminder
    FROM chat_settings
    WHERE chat_id = $1;`

	upsertChatSettingsSQL = `INSERT INTO chat_settings (
        chat_id, notify_enabled, notify_interval_minutes, last_reminder
    ) VALUES ($1,$2,$3,$4)
    ON CONFLICT (chat_id) DO UPDATE
    SET notify_enabled = EXCLUDED.notify_enabled,
        notify_interval_minutes = EXCLUDED.notify_interval_minutes;`

	listReminderChatsSQL = `SELECT
        chat_id, notify_enabled, notify_interval_minutes, last_reminder
    FROM chat_settings
    WHERE notify_enabled
    ORDER BY chat_id;`

	markChatRemindedSQL = `UPDATE chat_settings
    SET last_reminder = $2
    WHERE chat_id = $1;`

	groupMembersSQL = `SELECT chat_id, user_id, username
    FROM group_members
    WHERE chat_id = $1
    ORDER BY user_id;`

	ensureGroupMemberSQL = `INSERT INTO group_members (chat_id, user_id, username)
    VALUES ($1,$2,$3)
    ON CONFLICT (chat_id, user_id) DO UPDATE
    SET username = EXCLUDED.username;`

	upsertBuyRuleSQL = `INSERT INTO buy_rules (
        chat_id, resource, max_price, min_quantity, active
    ) VALUES ($1,$2,$3,$4,TRUE)
    ON CONFLICT (chat_id, resource) DO UPDATE
    SET max_price = EXCLUDED.max_price,
        min_quantity = EXCLUDED.min_quantity,
        active = TRUE;`

	listActiveBuyRulesSQL = `SELECT chat_id, resource, max_price, min_quantity, active
    FROM buy_rules
    WHERE active
    ORDER BY chat_id, resource;`

	deactivateBuyRuleSQL = `UPDATE buy_rules
    SET active = FALSE
    WHERE chat_id = $1
      AND resource = $2;`

	clearBuyRulesSQL = `UPDATE buy_rules
    SET active = FALSE
    WHERE chat_id = $1;`

	insertTransactionSQL = `INSERT INTO transactions (
        user_id, resource, action, quantity, price, total, profit, ts
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING id;`

	userTransactionsSQL = `SELECT
        id, user_id, resource, action, quantity, price, total, profit, ts
    FROM transactions
    WHERE user_id = $1
      AND ts >= $2
    ORDER BY ts DESC;`

	dailyLeadersSQL = `SELECT user_id, COALESCE(SUM(profit), '0'), COUNT(*)
    FROM transactions
    WHERE ts >= $1
    GROUP BY user_id
    ORDER BY SUM(profit) DESC
    LIMIT $2;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AlertStore defines alert persistence. TransitionStatus and UpdateSchedule are
// conditional on the row still being active, so a terminal alert can never be
// revived or double-fired by a racing worker.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert Alert) (int64, error)
	GetAlert(ctx context.Context, id int64) (*Alert, error)
	ListActiveAlerts(ctx context.Context) ([]Alert, error)
	ListUserActiveAlerts(ctx context.Context, userID int64) ([]Alert, error)
	TransitionStatus(ctx context.Context, id int64, to AlertStatus) (bool, error)
	UpdateSchedule(ctx context.Context, id int64, sched AlertSchedule) (bool, error)
}

// SampleStore defines market sample persistence and window queries.
type SampleStore interface {
	InsertSample(ctx context.Context, sample MarketSample) error
	LatestSample(ctx context.Context, resource string) (*MarketSample, error)
	LatestSamples(ctx context.Context) ([]MarketSample, error)
	RecentSamples(ctx context.Context, resource string, since time.Time) ([]MarketSample, error)
	SamplesBetween(ctx context.Context, resource string, from, to time.Time) ([]MarketSample, error)
	LatestSampleTime(ctx context.Context) (time.Time, error)
	ResourceStats(ctx context.Context, resource string, since time.Time) (SampleStats, error)
}

// UserStore defines user settings access.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	UpsertUser(ctx context.Context, user User) error
	ListReminderUsers(ctx context.Context) ([]User, error)
	MarkUserReminded(ctx context.Context, id int64, at time.Time) error
}

// ChatStore defines group chat settings access.
type ChatStore interface {
	GetChatSettings(ctx context.Context, chatID int64) (*ChatSettings, error)
	UpsertChatSettings(ctx context.Context, settings ChatSettings) error
	ListReminderChats(ctx context.Context) ([]ChatSettings, error)
	MarkChatReminded(ctx context.Context, chatID int64, at time.Time) error
}

// GroupStore defines group membership access.
type GroupStore interface {
	GroupMembers(ctx context.Context, chatID int64) ([]GroupMember, error)
	EnsureGroupMember(ctx context.Context, member GroupMember) error
}

// BuyRuleStore defines buy-threshold rule access.
type BuyRuleStore interface {
	UpsertBuyRule(ctx context.Context, rule BuyRule) error
	ListActiveBuyRules(ctx context.Context) ([]BuyRule, error)
	DeactivateBuyRule(ctx context.Context, chatID int64, resource string) error
	ClearBuyRules(ctx context.Context, chatID int64) error
}

// TransactionStore defines trade bookkeeping access.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
	UserTransactions(ctx context.Context, userID int64, since time.Time) ([]Transaction, error)
	DailyLeaders(ctx context.Context, since time.Time, limit int) ([]ProfitSummary, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates all repository access over one pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// InsertAlert persists a new alert and returns its id.
func (s *Store) InsertAlert(ctx context.Context, alert Alert) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var chatID interface{}
	if alert.ChatID != nil {
		chatID = *alert.ChatID
	}

	var id int64
	scanErr := pool.QueryRow(ctx, insertAlertSQL,
		alert.UserID,
		chatID,
		alert.Resource,
		string(alert.Direction),
		alert.TargetPrice.String(),
		alert.Speed.String(),
		alert.ReferencePrice.String(),
		alert.FireTime,
		string(alert.Status),
		alert.CreatedAt,
	).Scan(&id)
	if scanErr != nil {
		return 0, fmt.Errorf("insert alert: %w", scanErr)
	}
	return id, nil
}

// GetAlert fetches an alert by id. Returns (nil, nil) when no row exists.
func (s *Store) GetAlert(ctx context.Context, id int64) (*Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, getAlertSQL, id)
	alert, scanErr := scanAlert(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert: %w", scanErr)
	}
	return &alert, nil
}

// ListActiveAlerts lists every alert still in the active state.
func (s *Store) ListActiveAlerts(ctx context.Context) ([]Alert, error) {
	return s.queryAlerts(ctx, listActiveAlertsSQL)
}

// ListUserActiveAlerts lists a user's active alerts ordered by fire time.
func (s *Store) ListUserActiveAlerts(ctx context.Context, userID int64) ([]Alert, error) {
	return s.queryAlerts(ctx, listUserActiveAlertsSQL, userID)
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("query alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]Alert, 0)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// TransitionStatus moves an alert out of the active state. The update is
// compare-and-set on status; applied is false when the alert was already
// terminal or missing.
func (s *Store) TransitionStatus(ctx context.Context, id int64, to AlertStatus) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	if !to.Terminal() {
		return false, fmt.Errorf("transition status: %q is not a terminal status", to)
	}

	cmdTag, execErr := pool.Exec(ctx, transitionStatusSQL, id, string(to))
	if execErr != nil {
		return false, fmt.Errorf("transition status: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// UpdateSchedule rewrites speed, reference price, and fire time for an alert
// that is still active.
func (s *Store) UpdateSchedule(ctx context.Context, id int64, sched AlertSchedule) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	cmdTag, execErr := pool.Exec(ctx, updateScheduleSQL,
		id,
		sched.Speed.String(),
		sched.ReferencePrice.String(),
		sched.FireTime,
	)
	if execErr != nil {
		return false, fmt.Errorf("update schedule: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// InsertSample appends a market sample.
func (s *Store) InsertSample(ctx context.Context, sample MarketSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertSampleSQL,
		sample.Resource,
		sample.Timestamp,
		sample.Buy.String(),
		sample.Sell.String(),
		sample.Quantity,
	)
	if execErr != nil {
		return fmt.Errorf("insert sample: %w", execErr)
	}
	return nil
}

// LatestSample fetches the newest sample for a resource. Returns (nil, nil)
// when the resource has no samples.
func (s *Store) LatestSample(ctx context.Context, resource string) (*MarketSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, latestSampleSQL, resource)
	sample, scanErr := scanSample(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest sample: %w", scanErr)
	}
	return &sample, nil
}

// LatestSamples fetches the newest sample per resource.
func (s *Store) LatestSamples(ctx context.Context) ([]MarketSample, error) {
	return s.querySamples(ctx, latestSamplesSQL)
}

// RecentSamples lists a resource's samples since a cutoff, oldest first.
func (s *Store) RecentSamples(ctx context.Context, resource string, since time.Time) ([]MarketSample, error) {
	return s.querySamples(ctx, recentSamplesSQL, resource, since)
}

// SamplesBetween lists a resource's samples within [from, to), oldest first.
func (s *Store) SamplesBetween(ctx context.Context, resource string, from, to time.Time) ([]MarketSample, error) {
	return s.querySamples(ctx, samplesBetweenSQL, resource, from, to)
}

func (s *Store) querySamples(ctx context.Context, query string, args ...interface{}) ([]MarketSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("query samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]MarketSample, 0)
	for rows.Next() {
		sample, scanErr := scanSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// LatestSampleTime returns the newest timestamp across all resources, or the
// zero time when the store is empty.
func (s *Store) LatestSampleTime(ctx context.Context) (time.Time, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, err
	}

	var ts sql.NullTime
	if scanErr := pool.QueryRow(ctx, latestSampleTimeSQL).Scan(&ts); scanErr != nil {
		return time.Time{}, fmt.Errorf("latest sample time: %w", scanErr)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}

// ResourceStats aggregates price and quantity extremes since a cutoff.
func (s *Store) ResourceStats(ctx context.Context, resource string, since time.Time) (SampleStats, error) {
	pool, err := s.getPool()
	if err != nil {
		return SampleStats{}, err
	}

	var maxBuy, minBuy, maxSell, minSell string
	var maxQty int64
	if scanErr := pool.QueryRow(ctx, resourceStatsSQL, resource, since).Scan(
		&maxBuy, &minBuy, &maxSell, &minSell, &maxQty,
	); scanErr != nil {
		return SampleStats{}, fmt.Errorf("resource stats: %w", scanErr)
	}

	stats := SampleStats{MaxQuantity: maxQty}
	var convErr error
	if stats.MaxBuy, convErr = decimal.NewFromString(maxBuy); convErr != nil {
		return SampleStats{}, fmt.Errorf("parse max buy: %w", convErr)
	}
	if stats.MinBuy, convErr = decimal.NewFromString(minBuy); convErr != nil {
		return SampleStats{}, fmt.Errorf("parse min buy: %w", convErr)
	}
	if stats.MaxSell, convErr = decimal.NewFromString(maxSell); convErr != nil {
		return SampleStats{}, fmt.Errorf("parse max sell: %w", convErr)
	}
	if stats.MinSell, convErr = decimal.NewFromString(minSell); convErr != nil {
		return SampleStats{}, fmt.Errorf("parse min sell: %w", convErr)
	}
	return stats, nil
}

// GetUser fetches a user. Returns (nil, nil) when the user is unknown.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	user, scanErr := scanUser(pool.QueryRow(ctx, getUserSQL, id))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", scanErr)
	}
	return &user, nil
}

// UpsertUser creates or updates a user's settings.
func (s *Store) UpsertUser(ctx context.Context, user User) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertUserSQL,
		user.UserID,
		user.Username,
		user.Anchor,
		user.TradeLevel,
		user.NotifyEnabled,
		int(user.NotifyInterval/time.Minute),
		user.LastReminder,
	)
	if execErr != nil {
		return fmt.Errorf("upsert user: %w", execErr)
	}
	return nil
}

// ListReminderUsers lists users with staleness reminders enabled.
func (s *Store) ListReminderUsers(ctx context.Context) ([]User, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listReminderUsersSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list reminder users: %w", queryErr)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		users = append(users, user)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return users, nil
}

// MarkUserReminded records when a staleness reminder was last delivered.
func (s *Store) MarkUserReminded(ctx context.Context, id int64, at time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, markUserRemindedSQL, id, at); execErr != nil {
		return fmt.Errorf("mark user reminded: %w", execErr)
	}
	return nil
}

// GetChatSettings fetches chat settings. Returns (nil, nil) when unknown.
func (s *Store) GetChatSettings(ctx context.Context, chatID int64) (*ChatSettings, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	settings, scanErr := scanChatSettings(pool.QueryRow(ctx, getChatSettingsSQL, chatID))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat settings: %w", scanErr)
	}
	return &settings, nil
}

// UpsertChatSettings creates or updates chat settings.
func (s *Store) UpsertChatSettings(ctx context.Context, settings ChatSettings) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertChatSettingsSQL,
		settings.ChatID,
		settings.NotifyEnabled,
		int(settings.NotifyInterval/time.Minute),
		settings.LastReminder,
	)
	if execErr != nil {
		return fmt.Errorf("upsert chat settings: %w", execErr)
	}
	return nil
}

// ListReminderChats lists chats with staleness reminders enabled.
func (s *Store) ListReminderChats(ctx context.Context) ([]ChatSettings, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listReminderChatsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list reminder chats: %w", queryErr)
	}
	defer rows.Close()

	chats := make([]ChatSettings, 0)
	for rows.Next() {
		settings, scanErr := scanChatSettings(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		chats = append(chats, settings)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return chats, nil
}

// MarkChatReminded records when a chat staleness reminder was last delivered.
func (s *Store) MarkChatReminded(ctx context.Context, chatID int64, at time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, markChatRemindedSQL, chatID, at); execErr != nil {
		return fmt.Errorf("mark chat reminded: %w", execErr)
	}
	return nil
}

// GroupMembers lists the mentionable members of a chat.
func (s *Store) GroupMembers(ctx context.Context, chatID int64) ([]GroupMember, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, groupMembersSQL, chatID)
	if queryErr != nil {
		return nil, fmt.Errorf("group members: %w", queryErr)
	}
	defer rows.Close()

	members := make([]GroupMember, 0)
	for rows.Next() {
		var m GroupMember
		if scanErr := rows.Scan(&m.ChatID, &m.UserID, &m.Username); scanErr != nil {
			return nil, scanErr
		}
		members = append(members, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return members, nil
}

// EnsureGroupMember records or refreshes a chat member.
func (s *Store) EnsureGroupMember(ctx context.Context, member GroupMember) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, ensureGroupMemberSQL, member.ChatID, member.UserID, member.Username); execErr != nil {
		return fmt.Errorf("ensure group member: %w", execErr)
	}
	return nil
}

// UpsertBuyRule creates or reactivates a buy-threshold rule.
func (s *Store) UpsertBuyRule(ctx context.Context, rule BuyRule) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertBuyRuleSQL,
		rule.ChatID,
		rule.Resource,
		rule.MaxPrice.String(),
		rule.MinQuantity,
	)
	if execErr != nil {
		return fmt.Errorf("upsert buy rule: %w", execErr)
	}
	return nil
}

// ListActiveBuyRules lists every active buy-threshold rule across chats.
func (s *Store) ListActiveBuyRules(ctx context.Context) ([]BuyRule, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveBuyRulesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list buy rules: %w", queryErr)
	}
	defer rows.Close()

	rules := make([]BuyRule, 0)
	for rows.Next() {
		var rule BuyRule
		var maxPrice string
		if scanErr := rows.Scan(&rule.ChatID, &rule.Resource, &maxPrice, &rule.MinQuantity, &rule.Active); scanErr != nil {
			return nil, scanErr
		}
		price, convErr := decimal.NewFromString(maxPrice)
		if convErr != nil {
			return nil, fmt.Errorf("parse max price: %w", convErr)
		}
		rule.MaxPrice = price
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

// DeactivateBuyRule disables one rule without touching the chat's other rules.
func (s *Store) DeactivateBuyRule(ctx context.Context, chatID int64, resource string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deactivateBuyRuleSQL, chatID, resource); execErr != nil {
		return fmt.Errorf("deactivate buy rule: %w", execErr)
	}
	return nil
}

// ClearBuyRules disables every rule for a chat.
func (s *Store) ClearBuyRules(ctx context.Context, chatID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, clearBuyRulesSQL, chatID); execErr != nil {
		return fmt.Errorf("clear buy rules: %w", execErr)
	}
	return nil
}

// InsertTransaction records a trade and returns its id.
func (s *Store) InsertTransaction(ctx context.Context, tx Transaction) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var id int64
	scanErr := pool.QueryRow(ctx, insertTransactionSQL,
		tx.UserID,
		tx.Resource,
		tx.Action,
		tx.Quantity,
		tx.Price.String(),
		tx.Total.String(),
		tx.Profit.String(),
		tx.Timestamp,
	).Scan(&id)
	if scanErr != nil {
		return 0, fmt.Errorf("insert transaction: %w", scanErr)
	}
	return id, nil
}

// UserTransactions lists a user's trades since a cutoff, newest first.
func (s *Store) UserTransactions(ctx context.Context, userID int64, since time.Time) ([]Transaction, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, userTransactionsSQL, userID, since)
	if queryErr != nil {
		return nil, fmt.Errorf("user transactions: %w", queryErr)
	}
	defer rows.Close()

	txs := make([]Transaction, 0)
	for rows.Next() {
		tx, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		txs = append(txs, tx)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return txs, nil
}

// DailyLeaders ranks users by net profit since a cutoff.
func (s *Store) DailyLeaders(ctx context.Context, since time.Time, limit int) ([]ProfitSummary, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, dailyLeadersSQL, since, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("daily leaders: %w", queryErr)
	}
	defer rows.Close()

	leaders := make([]ProfitSummary, 0, limit)
	for rows.Next() {
		var row ProfitSummary
		var profit string
		if scanErr := rows.Scan(&row.UserID, &profit, &row.TxCount); scanErr != nil {
			return nil, scanErr
		}
		net, convErr := decimal.NewFromString(profit)
		if convErr != nil {
			return nil, fmt.Errorf("parse net profit: %w", convErr)
		}
		row.NetProfit = net
		leaders = append(leaders, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leaders, nil
}

func scanAlert(row pgx.Row) (Alert, error) {
	var (
		alert        Alert
		chatID       sql.NullInt64
		direction    string
		targetStr    string
		speedStr     string
		referenceStr string
		status       string
	)

	if err := row.Scan(
		&alert.ID,
		&alert.UserID,
		&chatID,
		&alert.Resource,
		&direction,
		&targetStr,
		&speedStr,
		&referenceStr,
		&alert.FireTime,
		&status,
		&alert.CreatedAt,
	); err != nil {
		return Alert{}, err
	}

	if chatID.Valid {
		value := chatID.Int64
		alert.ChatID = &value
	}
	alert.Direction = Direction(direction)
	alert.Status = AlertStatus(status)

	var convErr error
	if alert.TargetPrice, convErr = decimal.NewFromString(targetStr); convErr != nil {
		return Alert{}, fmt.Errorf("parse target price: %w", convErr)
	}
	if alert.Speed, convErr = decimal.NewFromString(speedStr); convErr != nil {
		return Alert{}, fmt.Errorf("parse speed: %w", convErr)
	}
	if alert.ReferencePrice, convErr = decimal.NewFromString(referenceStr); convErr != nil {
		return Alert{}, fmt.Errorf("parse reference price: %w", convErr)
	}
	return alert, nil
}

func scanSample(row pgx.Row) (MarketSample, error) {
	var (
		sample  MarketSample
		buyStr  string
		sellStr string
	)

	if err := row.Scan(
		&sample.Resource,
		&sample.Timestamp,
		&buyStr,
		&sellStr,
		&sample.Quantity,
	); err != nil {
		return MarketSample{}, err
	}

	var convErr error
	if sample.Buy, convErr = decimal.NewFromString(buyStr); convErr != nil {
		return MarketSample{}, fmt.Errorf("parse buy price: %w", convErr)
	}
	if sample.Sell, convErr = decimal.NewFromString(sellStr); convErr != nil {
		return MarketSample{}, fmt.Errorf("parse sell price: %w", convErr)
	}
	return sample, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user         User
		intervalMin  int
		lastReminder sql.NullTime
	)

	if err := row.Scan(
		&user.UserID,
		&user.Username,
		&user.Anchor,
		&user.TradeLevel,
		&user.NotifyEnabled,
		&intervalMin,
		&lastReminder,
	); err != nil {
		return User{}, err
	}

	user.NotifyInterval = time.Duration(intervalMin) * time.Minute
	if lastReminder.Valid {
		user.LastReminder = lastReminder.Time
	}
	return user, nil
}

func scanChatSettings(row pgx.Row) (ChatSettings, error) {
	var (
		settings     ChatSettings
		intervalMin  int
		lastReminder sql.NullTime
	)

	if err := row.Scan(
		&settings.ChatID,
		&settings.NotifyEnabled,
		&intervalMin,
		&lastReminder,
	); err != nil {
		return ChatSettings{}, err
	}

	settings.NotifyInterval = time.Duration(intervalMin) * time.Minute
	if lastReminder.Valid {
		settings.LastReminder = lastReminder.Time
	}
	return settings, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		tx        Transaction
		priceStr  string
		totalStr  string
		profitStr string
	)

	if err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Resource,
		&tx.Action,
		&tx.Quantity,
		&priceStr,
		&totalStr,
		&profitStr,
		&tx.Timestamp,
	); err != nil {
		return Transaction{}, err
	}

	var convErr error
	if tx.Price, convErr = decimal.NewFromString(priceStr); convErr != nil {
		return Transaction{}, fmt.Errorf("parse price: %w", convErr)
	}
	if tx.Total, convErr = decimal.NewFromString(totalStr); convErr != nil {
		return Transaction{}, fmt.Errorf("parse total: %w", convErr)
	}
	if tx.Profit, convErr = decimal.NewFromString(profitStr); convErr != nil {
		return Transaction{}, fmt.Errorf("parse profit: %w", convErr)
	}
	return tx, nil
}
