package live

import (
	"sync"

	"go.uber.org/zap"
)

// Change names the tables touched by one committed write.
type Change struct {
	Tables []string `json:"tables"`
}

// Subscription receives changes for the tables it was opened with.
type Subscription struct {
	id     uint64
	tables map[string]struct{}
	events chan Change
	hub    *Hub
	once   sync.Once
}

// Events delivers changes. At most one change is buffered; later changes
// coalesce into the pending one until it is read.
func (s *Subscription) Events() <-chan Change {
	return s.events
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
		close(s.events)
	})
}

func (s *Subscription) wants(tables []string) bool {
	if len(s.tables) == 0 {
		return true
	}
	for _, t := range tables {
		if _, ok := s.tables[t]; ok {
			return true
		}
	}
	return false
}

// Hub fans committed changes out to subscribers.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	log    *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs: make(map[uint64]*Subscription),
		log:  log,
	}
}

// Subscribe opens a subscription on tables. No tables means every table.
func (h *Hub) Subscribe(tables ...string) *Subscription {
	set := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		set[t] = struct{}{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		tables: set,
		events: make(chan Change, 1),
		hub:    h,
	}
	h.subs[sub.id] = sub
	h.log.Debug("live subscription opened", zap.Uint64("id", sub.id), zap.Strings("tables", tables))
	return sub
}

// Publish never blocks.
func (h *Hub) Publish(tables ...string) {
	if len(tables) == 0 {
		return
	}
	change := Change{Tables: tables}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.wants(tables) {
			continue
		}
		select {
		case sub.events <- change:
		default:
			h.log.Debug("live change coalesced", zap.Uint64("id", sub.id), zap.Strings("tables", tables))
		}
	}
}

// Len reports the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
