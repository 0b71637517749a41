package uploads

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"clamflow/infrastructure/notify"
	"clamflow/infrastructure/offline"
	"clamflow/models"
)

type Service struct {
	Queue  *offline.Queue
	Notify *notify.Center
	Log    *zap.Logger
}

func NewService(q *offline.Queue, center *notify.Center, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Queue: q, Notify: center, Log: log}
}

// PendingView is a parked submission with its payload inlined as JSON.
type PendingView struct {
	ID        string            `json:"id"`
	Type      models.UploadType `json:"type"`
	Data      json.RawMessage   `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
	Attempts  int               `json:"attempts"`
	LastError string            `json:"lastError,omitempty"`
}

func viewOf(p models.PendingUpload) PendingView {
	data := json.RawMessage(p.Payload)
	if !json.Valid(data) {
		data = nil
	}
	return PendingView{
		ID:        p.ID,
		Type:      p.Type,
		Data:      data,
		Timestamp: p.Timestamp,
		Attempts:  p.Attempts,
		LastError: p.LastError,
	}
}
