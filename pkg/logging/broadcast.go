package logging

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// Broadcaster fans records out to subscriber channels.
// subscribers maps a subscriber ID to the channel it receives records on.
type Broadcaster struct {
	subscribers map[string]chan<- Data
	mu          sync.RWMutex
	logger      *slog.Logger

	dropMu  sync.Mutex
	dropped map[string]int
}

type BroadcasterOption func(*Broadcaster)

func WithBroadcastLogger(logger *slog.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		b.logger = logger
	}
}

func NewBroadcaster(opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		subscribers: make(map[string]chan<- Data),
		logger:      slog.Default(),
		dropped:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Write sends a copy of data to every subscriber without blocking. A
// subscriber whose channel is full misses the record; the drop is counted
// and logged, and the write still succeeds.
func (b *Broadcaster) Write(ctx context.Context, data Data) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, id := range slices.Sorted(maps.Keys(b.subscribers)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case b.subscribers[id] <- maps.Clone(data):
		default:
			n := b.drop(id)
			b.logger.Warn("subscriber channel full, record dropped", "subscriber", id, "dropped", n)
		}
	}
	return nil
}

func (b *Broadcaster) drop(id string) int {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	b.dropped[id]++
	return b.dropped[id]
}

// Dropped returns how many records id has missed because its channel was
// full.
func (b *Broadcaster) Dropped(id string) int {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	return b.dropped[id]
}

// Subscribe registers ch to receive records under id.
func (b *Broadcaster) Subscribe(id string, ch chan<- Data) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; exists {
		return fmt.Errorf("subscriber %s is already subscribed", id)
	}
	b.subscribers[id] = ch
	b.dropMu.Lock()
	delete(b.dropped, id)
	b.dropMu.Unlock()
	return nil
}

func (b *Broadcaster) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return fmt.Errorf("subscriber %s is not subscribed", id)
	}
	delete(b.subscribers, id)
	return nil
}

func (b *Broadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]chan<- Data)
	b.dropMu.Lock()
	b.dropped = make(map[string]int)
	b.dropMu.Unlock()
}
