package packaging

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

// MaxBoxWeight is the heaviest box a label may be printed for, in kg.
const MaxBoxWeight = 25.0

var boxNumberRe = regexp.MustCompile(`^[A-Z]{2}\d{6}$`)

type Service struct {
	DB      *sqlite.DB
	Audit   *audit.Service
	Queue   *offline.Queue
	Metrics *metrics.Registry
	Notify  *notify.Center
	Log     *zap.Logger
}

func NewService(db *sqlite.DB, auditSvc *audit.Service, queue *offline.Queue, m *metrics.Registry, center *notify.Center, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{DB: db, Audit: auditSvc, Queue: queue, Metrics: m, Notify: center, Log: log}
}

type PackageInput struct {
	LotNumber string             `json:"lotNumber"`
	BoxNumber string             `json:"boxNumber"`
	Type      models.ProductType `json:"type"`
	Weight    float64            `json:"weight"`
	Grade     string             `json:"grade"`
	Date      time.Time          `json:"date"`
}

// TransportMode of a shipment.
type TransportMode string

const (
	TransportRoad TransportMode = "road"
	TransportAir  TransportMode = "air"
	TransportSea  TransportMode = "sea"
)

func (m TransportMode) Valid() bool {
	switch m {
	case TransportRoad, TransportAir, TransportSea:
		return true
	default:
		return false
	}
}

type ShipmentInput struct {
	CustomerName  string        `json:"customerName"`
	Destination   string        `json:"destination"`
	TransportMode TransportMode `json:"transportMode"`
	VehicleNumber string        `json:"vehicleNumber"`
	Notes         string        `json:"notes"`
	BoxNumbers    []string      `json:"boxNumbers"`
}

// TypeTotal sums the boxes of one product type on a packing list.
type TypeTotal struct {
	Type   models.ProductType `json:"type"`
	Boxes  int                `json:"boxes"`
	Weight float64            `json:"weight"`
}

// PackingList is the printable summary of a shipment.
type PackingList struct {
	ShipmentID    int64            `json:"shipmentId,omitempty"`
	Recorded      bool             `json:"recorded"`
	CustomerName  string           `json:"customerName"`
	Destination   string           `json:"destination"`
	TransportMode TransportMode    `json:"transportMode"`
	VehicleNumber string           `json:"vehicleNumber"`
	Notes         string           `json:"notes,omitempty"`
	Date          time.Time        `json:"date"`
	Items         []models.Package `json:"items"`
	BoxCount      int              `json:"boxCount"`
	TotalWeight   float64          `json:"totalWeight"`
	Totals        []TypeTotal      `json:"totals"`
}
