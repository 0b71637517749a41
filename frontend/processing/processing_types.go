package processing

import (
	"regexp"
	"time"

	"go.uber.org/zap"

	"clamflow/infrastructure/audit"
	"clamflow/infrastructure/metrics"
	"clamflow/infrastructure/notify"
	"clamflow/infrastructure/offline"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

type Service struct {
	DB      *sqlite.DB
	Audit   *audit.Service
	Queue   *offline.Queue
	Metrics *metrics.Registry
	Notify  *notify.Center
	Boxes   *BoxNumberer
	Log     *zap.Logger
}

func NewService(db *sqlite.DB, auditSvc *audit.Service, queue *offline.Queue, m *metrics.Registry, center *notify.Center, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		DB:      db,
		Audit:   auditSvc,
		Queue:   queue,
		Metrics: m,
		Notify:  center,
		Boxes:   NewBoxNumberer(),
		Log:     log,
	}
}

type BoxInput struct {
	Type      models.ProductType `json:"type"`
	Weight    float64            `json:"weight"`
	BoxNumber string             `json:"boxNumber"`
	Grade     string             `json:"grade"`

	generated bool
}

var boxNumberRe = regexp.MustCompile(`^[A-Z]{2}\d{6}$`)

type SubmitInput struct {
	LotNumber string     `json:"lotNumber"`
	Boxes     []BoxInput `json:"boxes"`
	Date      time.Time  `json:"date"`
}

type ShellWeightInput struct {
	Weight float64   `json:"weight"`
	Date   time.Time `json:"date"`
	Notes  string    `json:"notes"`
}

// YieldCheck is a manual cross-check of recorded weights. It is never stored.
type YieldCheck struct {
	RawWeight       float64 `json:"rawWeight"`
	ProcessedWeight float64 `json:"processedWeight"`
	ShellWeight     float64 `json:"shellWeight"`
	YieldPercentage float64 `json:"yieldPercentage"`
	ShellPercentage float64 `json:"shellPercentage"`
	Unaccounted     float64 `json:"unaccountedWeight"`
}
