package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Level string

const (
	Success Level = "success"
	Error   Level = "error"
	Info    Level = "info"
)

// Notification is one operation outcome reported to operators.
type Notification struct {
	ID      uint64    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Center keeps a bounded ring of recent notifications.
type Center struct {
	mu     sync.RWMutex
	ring   []Notification
	next   int
	full   bool
	lastID uint64
	now    func() time.Time
	log    *zap.Logger
}

func NewCenter(capacity int, log *zap.Logger) *Center {
	if capacity <= 0 {
		capacity = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Center{
		ring: make([]Notification, capacity),
		now:  time.Now,
		log:  log,
	}
}

func (c *Center) Push(level Level, message string) Notification {
	if c == nil {
		return Notification{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastID++
	n := Notification{ID: c.lastID, Level: level, Message: message, At: c.now()}
	c.ring[c.next] = n
	c.next = (c.next + 1) % len(c.ring)
	if c.next == 0 {
		c.full = true
	}
	c.log.Debug("notification", zap.String("level", string(level)), zap.String("message", message))
	return n
}

func (c *Center) Success(message string) { c.Push(Success, message) }

func (c *Center) Error(message string) { c.Push(Error, message) }

func (c *Center) Info(message string) { c.Push(Info, message) }

// Recent returns up to limit notifications, newest first. limit <= 0 returns all.
func (c *Center) Recent(limit int) []Notification {
	if c == nil {
		return []Notification{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	size := c.next
	if c.full {
		size = len(c.ring)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]Notification, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (c.next - i + len(c.ring)) % len(c.ring)
		out = append(out, c.ring[idx])
	}
	return out
}
