package events

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"rentalchain/core/types"
)

const (
	defaultFeedHistory = 2048
	subscriberBuffer   = 64
)

// Sealed is a committed event tagged with the block that sealed it.
type Sealed struct {
	Sequence uint64       `json:"sequence"`
	Cursor   string       `json:"cursor"`
	Height   uint64       `json:"height"`
	Event    *types.Event `json:"event"`
}

// Feed fans committed events out to live subscribers and keeps a bounded
// history so late subscribers can resume from a cursor. Slow subscribers drop
// updates rather than stall block sealing.
type Feed struct {
	mu      sync.Mutex
	limit   int
	seq     uint64
	nextID  uint64
	history []Sealed
	subs    map[uint64]chan Sealed
}

// NewFeed returns a feed retaining at most limit events. A non-positive limit
// selects the default.
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = defaultFeedHistory
	}
	return &Feed{limit: limit, subs: make(map[uint64]chan Sealed)}
}

// Publish records the events sealed at height and forwards them to every
// subscriber.
func (f *Feed) Publish(height uint64, evts []Event) {
	if f == nil || len(evts) == 0 {
		return
	}
	f.mu.Lock()
	batch := make([]Sealed, 0, len(evts))
	for _, evt := range evts {
		if evt == nil || evt.Event() == nil {
			continue
		}
		f.seq++
		batch = append(batch, Sealed{
			Sequence: f.seq,
			Cursor:   strconv.FormatUint(f.seq, 10),
			Height:   height,
			Event:    evt.Event(),
		})
	}
	f.history = append(f.history, batch...)
	if excess := len(f.history) - f.limit; excess > 0 {
		trimmed := make([]Sealed, f.limit)
		copy(trimmed, f.history[excess:])
		f.history = trimmed
	}
	subscribers := make([]chan Sealed, 0, len(f.subs))
	for _, ch := range f.subs {
		subscribers = append(subscribers, ch)
	}
	f.mu.Unlock()

	for _, entry := range batch {
		for _, ch := range subscribers {
			select {
			case ch <- entry:
			default:
			}
		}
	}
}

// Subscribe registers a subscriber for events published after cursor. The
// returned backlog holds the retained events the subscriber missed. The
// channel is closed once cancel runs or ctx ends.
func (f *Feed) Subscribe(ctx context.Context, cursor string) (<-chan Sealed, func(), []Sealed) {
	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}
	updates := make(chan Sealed, subscriberBuffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = updates
	backlog := make([]Sealed, 0, len(f.history))
	for _, entry := range f.history {
		if entry.Sequence > since {
			backlog = append(backlog, entry)
		}
	}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			if sub, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(sub)
			}
			f.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}

// Subscribers reports the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
