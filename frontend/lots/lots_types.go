package lots

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"clamflow/infrastructure/audit"
	"clamflow/infrastructure/live"
	"clamflow/infrastructure/metrics"
	"clamflow/infrastructure/notify"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

// Service aggregates pending receipts into lots and answers lot queries.
type Service struct {
	DB      *sqlite.DB
	Audit   *audit.Service
	Metrics *metrics.Registry
	Hub     *live.Hub
	Notify  *notify.Center
	Log     *zap.Logger

	randN func(n int) int
}

func NewService(db *sqlite.DB, auditSvc *audit.Service, m *metrics.Registry, hub *live.Hub, center *notify.Center, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		DB:      db,
		Audit:   auditSvc,
		Metrics: m,
		Hub:     hub,
		Notify:  center,
		Log:     log,
		randN:   rand.IntN,
	}
}

type CreateLotInput struct {
	ReceiptIDs []int64 `json:"receiptIds"`
	Notes      string  `json:"notes"`
}

// Stage selects which lots a workflow screen may offer.
type Stage string

const (
	StageDepuration Stage = "depuration"
	StageProcessing Stage = "processing"
	StagePackaging  Stage = "packaging"
	StageRelease    Stage = "release"
)

func ParseStage(v string) (Stage, bool) {
	switch s := Stage(v); s {
	case StageDepuration, StageProcessing, StagePackaging, StageRelease:
		return s, true
	default:
		return "", false
	}
}

// ReceiptLine is one raw-material receipt as shown inside a lot.
type ReceiptLine struct {
	ID           int64     `bun:"id" json:"id"`
	LotNumber    string    `bun:"lot_number" json:"-"`
	SupplierName string    `bun:"supplier_name" json:"supplierName"`
	Weight       float64   `bun:"weight" json:"weight"`
	Date         time.Time `bun:"date" json:"date"`
}

// LotSummary is a lot row with its suppliers and depuration state.
type LotSummary struct {
	models.Lot

	Suppliers        []string                `json:"suppliers"`
	RawMaterials     []ReceiptLine           `json:"rawMaterials"`
	DepurationStatus models.DepurationStatus `json:"depurationStatus"`
}

// LotDetail is everything recorded against one lot.
type LotDetail struct {
	LotSummary

	Depuration *models.Depuration       `json:"depuration,omitempty"`
	Batches    []models.ProcessingBatch `json:"processingBatches"`
	Checklists []models.QCChecklist     `json:"qualityChecks"`
	Release    *models.FinalRelease     `json:"finalRelease,omitempty"`
	Packages   int                      `json:"packageCount"`
}

// liveTables are the tables a lot listing depends on.
var liveTables = []string{"lots", "raw_materials", "depurations", "processing_batches", "final_releases"}
