package alerts

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// idleWait bounds the timer when the heap is empty; Schedule wakes the worker
// long before it elapses.
const idleWait = time.Hour

// EvalFunc evaluates one alert when its fire time arrives.
type EvalFunc func(ctx context.Context, alertID int64)

// FireScheduler owns a single min-heap of fire times and one worker goroutine.
// There is no sleeping task per alert: rescheduling an alert updates its heap
// entry in place, so a revised fire time takes effect immediately instead of
// leaving a stale timer counting down to the old one. Evaluations run in their
// own goroutine so a slow evaluation never delays the next fire.
type FireScheduler struct {
	eval   EvalFunc
	logger zerolog.Logger

	mu      sync.Mutex
	entries fireHeap
	byID    map[int64]*fireEntry
	wake    chan struct{}
}

type fireEntry struct {
	alertID int64
	at      time.Time
	index   int
}

// NewFireScheduler constructs a scheduler that invokes eval at fire times.
func NewFireScheduler(eval EvalFunc, logger zerolog.Logger) *FireScheduler {
	return &FireScheduler{
		eval:   eval,
		logger: logger.With().Str("component", "fire_scheduler").Logger(),
		byID:   make(map[int64]*fireEntry),
		wake:   make(chan struct{}, 1),
	}
}

// Schedule arms or re-arms the fire time for an alert. A fire time in the past
// fires on the worker's next pass.
func (f *FireScheduler) Schedule(alertID int64, at time.Time) {
	f.mu.Lock()
	if entry, ok := f.byID[alertID]; ok {
		entry.at = at
		heap.Fix(&f.entries, entry.index)
	} else {
		entry = &fireEntry{alertID: alertID, at: at}
		heap.Push(&f.entries, entry)
		f.byID[alertID] = entry
	}
	f.mu.Unlock()

	f.signal()
}

// Remove drops an alert's pending fire, if any.
func (f *FireScheduler) Remove(alertID int64) {
	f.mu.Lock()
	if entry, ok := f.byID[alertID]; ok {
		heap.Remove(&f.entries, entry.index)
		delete(f.byID, alertID)
	}
	f.mu.Unlock()

	f.signal()
}

// Pending reports the number of armed fire times.
func (f *FireScheduler) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// NextFireTime returns the earliest armed fire time, ok false when idle.
func (f *FireScheduler) NextFireTime() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return time.Time{}, false
	}
	return f.entries[0].at, true
}

// Run blocks, firing evaluations as their times arrive, until ctx is cancelled.
func (f *FireScheduler) Run(ctx context.Context) error {
	for {
		delay, fired := f.popDue(ctx)
		if fired {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-f.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// popDue fires every overdue entry and returns the wait until the next one.
func (f *FireScheduler) popDue(ctx context.Context) (time.Duration, bool) {
	now := time.Now()
	fired := false

	f.mu.Lock()
	for len(f.entries) > 0 && !f.entries[0].at.After(now) {
		entry := heap.Pop(&f.entries).(*fireEntry)
		delete(f.byID, entry.alertID)
		fired = true

		f.logger.Debug().Int64("alert_id", entry.alertID).Time("fire_time", entry.at).Msg("fire time reached")
		go f.eval(ctx, entry.alertID)
	}

	delay := idleWait
	if len(f.entries) > 0 {
		delay = time.Until(f.entries[0].at)
	}
	f.mu.Unlock()

	return delay, fired
}

func (f *FireScheduler) signal() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// fireHeap is a min-heap ordered by fire time.
type fireHeap []*fireEntry

func (h fireHeap) Len() int { return len(h) }

func (h fireHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }

func (h fireHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *fireHeap) Push(x interface{}) {
	entry := x.(*fireEntry)
	entry.index = len(*h)
	*h = append(*h, entry)
}

func (h *fireHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*h = old[:n-1]
	return entry
}
