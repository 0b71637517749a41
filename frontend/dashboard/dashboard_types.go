package dashboard

import (
	"time"

	"go.uber.org/zap"

	"clamflow/infrastructure/notify"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

type Service struct {
	DB     *sqlite.DB
	Notify *notify.Center
	Log    *zap.Logger
}

func NewService(db *sqlite.DB, center *notify.Center, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{DB: db, Notify: center, Log: log}
}

// Summary is the operations overview shown on the landing page.
type Summary struct {
	LotsByStatus         map[models.LotStatus]int `json:"lotsByStatus"`
	PendingReceipts      int                      `json:"pendingReceipts"`
	PendingReceiptWeight float64                  `json:"pendingReceiptWeight"`
	ActiveDepurations    int                      `json:"activeDepurations"`
	Packages             int                      `json:"packages"`
	PackagedWeight       float64                  `json:"packagedWeight"`
	UnshippedPackages    int                      `json:"unshippedPackages"`
	AverageYield         float64                  `json:"averageYield"`
	QueuedUploads        int                      `json:"queuedUploads"`
	YieldTarget          float64                  `json:"yieldTarget"`
	YieldTrend           []YieldPoint             `json:"yieldTrend"`
}

// YieldTarget is the meat yield percentage a batch is expected to reach.
const YieldTarget = 85.0

// yieldTrendLimit caps the trend at the most recent batches.
const yieldTrendLimit = 30

// YieldPoint is one processing batch on the yield trend chart.
type YieldPoint struct {
	LotNumber   string    `json:"lotNumber"`
	Date        time.Time `json:"date"`
	Yield       float64   `json:"yield"`
	BelowTarget bool      `json:"belowTarget"`
}
