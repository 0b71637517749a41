package auditlog

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"clamflow/infrastructure/sqlite"
)

type Service struct {
	DB  *sqlite.DB
	Log *zap.Logger
}

func NewService(db *sqlite.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{DB: db, Log: log}
}

// Entry is one audit record with the acting operator resolved to a name.
type Entry struct {
	ID         int64           `json:"id"`
	CreatedAt  time.Time       `json:"createdAt"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	EntityType string
	EntityID   string
	Action     string
	Limit      int
}

const (
	defaultLimit = 100
	maxLimit     = 1000
)
