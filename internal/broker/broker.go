// Package broker fans Context Snapshots out to registered subscribers and
// answers synchronous "latest"/"history" queries. Grounded on the teacher's
// server.Server connection registry (a map of connections guarded by a
// mutex, iterated under RLock to fan out) and its rateLimiter sliding-window
// strike counter, repurposed here as the slow-subscriber strike counter.
package broker

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ctxengine/perception/internal/ring"
	"github.com/ctxengine/perception/pkg/model"
)

const (
	subChannelBuffer = 4
	blockUpToDefault = 2 * time.Second
	strikeWindow     = time.Minute
	strikesToDemote  = 3
)

// Filter decides whether a subscriber wants a given snapshot.
type Filter func(model.ContextSnapshot) bool

// Handle is an opaque subscription reference returned by Subscribe.
type Handle struct {
	id uint64
	ch chan model.ContextSnapshot
}

// C returns the subscriber's delivery channel.
func (h *Handle) C() <-chan model.ContextSnapshot {
	return h.ch
}

type subscription struct {
	id     uint64
	ch     chan model.ContextSnapshot
	filter Filter

	// blockTimeout is this subscriber's T for the block_up_to_T policy,
	// fixed at subscribe time.
	blockTimeout time.Duration

	mu      sync.Mutex
	policy  model.BackpressurePolicy
	strikes []time.Time
	demoted bool
}

// Broker publishes Context Snapshots to subscribers and serves the
// latest()/history() query surface: Latest reads an atomic pointer without
// locking; History copies from the history ring under the ring's own lock.
type Broker struct {
	historySize int

	mu      sync.RWMutex
	subs    map[uint64]*subscription
	nextID  uint64

	latest    atomic.Pointer[model.ContextSnapshot]
	history   *ring.Ring[model.ContextSnapshot]
	published atomic.Uint64
}

// New builds a Broker with the given history ring capacity (100 when
// historySize <= 0).
func New(historySize int) *Broker {
	if historySize <= 0 {
		historySize = 100
	}
	return &Broker{
		historySize: historySize,
		subs:        make(map[uint64]*subscription),
		history:     ring.New[model.ContextSnapshot](historySize),
	}
}

// Subscribe registers a new subscriber. A nil filter matches every
// snapshot. policy defaults to coalesce_latest if empty. blockTimeout sets
// this subscriber's T for the block_up_to_T policy; it is ignored for any
// other policy and defaults to blockUpToDefault when omitted or <= 0.
func (b *Broker) Subscribe(filter Filter, policy model.BackpressurePolicy, blockTimeout ...time.Duration) *Handle {
	if policy == "" {
		policy = model.CoalesceLatest
	}
	if filter == nil {
		filter = func(model.ContextSnapshot) bool { return true }
	}
	t := blockUpToDefault
	if len(blockTimeout) > 0 && blockTimeout[0] > 0 {
		t = blockTimeout[0]
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	sub := &subscription{
		id:           id,
		ch:           make(chan model.ContextSnapshot, subChannelBuffer),
		filter:       filter,
		policy:       policy,
		blockTimeout: t,
	}
	b.subs[id] = sub
	b.mu.Unlock()

	return &Handle{id: id, ch: sub.ch}
}

// Unsubscribe removes a subscriber and closes its delivery channel.
func (b *Broker) Unsubscribe(h *Handle) {
	if h == nil {
		return
	}
	b.mu.Lock()
	sub, ok := b.subs[h.id]
	if ok {
		delete(b.subs, h.id)
	}
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Latest returns the last published snapshot, or the "no data yet"
// sentinel if none has been published. Lock-free fast path via an
// atomically swapped pointer.
func (b *Broker) Latest() model.ContextSnapshot {
	p := b.latest.Load()
	if p == nil {
		return model.NoDataSentinel()
	}
	return *p
}

// History returns up to n of the most recent snapshots, newest last.
func (b *Broker) History(n int) []model.ContextSnapshot {
	return b.history.Recent(n)
}

// PublishedCount returns the total number of snapshots published since the
// Broker was created, for an emissions-per-minute metric computed by a
// caller sampling this at an interval.
func (b *Broker) PublishedCount() uint64 {
	return b.published.Load()
}

// SlowSubscriberCount reports how many subscribers are currently demoted to
// coalesce_latest after repeated delivery-timeout strikes.
func (b *Broker) SlowSubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := 0
	for _, sub := range b.subs {
		sub.mu.Lock()
		if sub.demoted {
			count++
		}
		sub.mu.Unlock()
	}
	return count
}

// Publish delivers a snapshot to every subscriber whose filter matches,
// applying each subscriber's backpressure policy, then records the
// snapshot as latest and in the history ring.
func (b *Broker) Publish(snap model.ContextSnapshot) {
	snapCopy := snap
	b.latest.Store(&snapCopy)
	b.history.Add(snap)
	b.published.Add(1)

	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.filter(snap) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		deliver(sub, snap)
	}
}

// Run consumes the fusion engine's emission channel until it closes,
// publishing every snapshot.
func (b *Broker) Run(emissions <-chan model.ContextSnapshot) {
	for snap := range emissions {
		b.Publish(snap)
	}
}

func deliver(sub *subscription, snap model.ContextSnapshot) {
	sub.mu.Lock()
	policy := sub.policy
	sub.mu.Unlock()

	switch policy {
	case model.DropOldest:
		deliverDropOldest(sub, snap)
	case model.BlockUpToT:
		deliverBlocking(sub, snap)
	default:
		deliverCoalesce(sub, snap)
	}
}

func deliverDropOldest(sub *subscription, snap model.ContextSnapshot) {
	select {
	case sub.ch <- snap:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- snap:
	default:
	}
}

// deliverCoalesce keeps at most one pending snapshot regardless of the
// channel's buffer capacity: any already-queued snapshot is drained before
// the new one is enqueued, so a slow reader only ever sees the latest.
func deliverCoalesce(sub *subscription, snap model.ContextSnapshot) {
	for {
		select {
		case <-sub.ch:
			continue
		default:
		}
		break
	}
	select {
	case sub.ch <- snap:
	default:
	}
}

func deliverBlocking(sub *subscription, snap model.ContextSnapshot) {
	select {
	case sub.ch <- snap:
		return
	case <-time.After(sub.blockTimeout):
		recordStrike(sub)
	}
}

// recordStrike tracks a sliding-window delivery-timeout strike, demoting
// the subscriber to coalesce_latest after strikesToDemote strikes within
// strikeWindow, in the teacher's rateLimiter sliding-window style.
func recordStrike(sub *subscription) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-strikeWindow)
	valid := sub.strikes[:0]
	for _, t := range sub.strikes {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	sub.strikes = append(valid, now)

	if len(sub.strikes) >= strikesToDemote && !sub.demoted {
		sub.policy = model.CoalesceLatest
		sub.demoted = true
		slog.Warn("subscriber demoted to coalesce_latest after repeated slow delivery", "subscriber_id", sub.id)
	}
}
