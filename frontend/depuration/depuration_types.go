package depuration

import (
	"go.uber.org/zap"

	"clamflow/infrastructure/audit"
	"clamflow/infrastructure/notify"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

type Service struct {
	DB     *sqlite.DB
	Audit  *audit.Service
	Notify *notify.Center
	Log    *zap.Logger
}

func NewService(db *sqlite.DB, auditSvc *audit.Service, center *notify.Center, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{DB: db, Audit: auditSvc, Notify: center, Log: log}
}

// Readings are water measurements. Nil means the field was not filled in.
type Readings struct {
	Temperature *float64 `json:"temperature"`
	Salinity    *float64 `json:"salinity"`
}

type StartInput struct {
	LotNumber  string `json:"lotNumber"`
	TankNumber string `json:"tankNumber"`
	Readings
}

type CompleteInput struct {
	LotNumber string `json:"lotNumber"`
	Readings
}

// Duration is an elapsed time split into whole hours and leftover minutes.
type Duration struct {
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
}

// Active is an in-progress depuration with its running time.
type Active struct {
	LotNumber string            `json:"lotNumber"`
	Record    models.Depuration `json:"depuration"`
	Elapsed   Duration          `json:"elapsed"`
}
