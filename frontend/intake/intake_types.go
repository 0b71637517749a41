package intake

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"clamflow/infrastructure/audit"
	"clamflow/infrastructure/notify"
	"clamflow/infrastructure/offline"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

const maxPhotoBytes = 8 << 20

// Service records raw-material intake: purchase orders and receipts.
type Service struct {
	DB     *sqlite.DB
	Audit  *audit.Service
	Queue  *offline.Queue
	Notify *notify.Center
	Log    *zap.Logger

	randN func(n int) int
}

func NewService(db *sqlite.DB, auditSvc *audit.Service, queue *offline.Queue, center *notify.Center, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		DB:     db,
		Audit:  auditSvc,
		Queue:  queue,
		Notify: center,
		Log:    log,
		randN:  rand.IntN,
	}
}

// ReceiptInput is also the offline payload of type rawMaterial.
type ReceiptInput struct {
	SupplierID int64     `json:"supplierId"`
	Weight     float64   `json:"weight"`
	Date       time.Time `json:"date"`
	Photo      []byte    `json:"photo,omitempty"`
	PhotoMIME  string    `json:"photoMime,omitempty"`
	PhotoName  string    `json:"photoName,omitempty"`
}

type PurchaseOrderInput struct {
	SupplierID int64     `json:"supplierId"`
	Weight     float64   `json:"weight"`
	PricePerKg float64   `json:"pricePerKg"`
	Date       time.Time `json:"date"`
}

// PurchaseOrderResult is a new order together with the receipt it spawned.
type PurchaseOrderResult struct {
	PurchaseOrder models.PurchaseOrder      `json:"purchaseOrder"`
	Receipt       models.RawMaterialReceipt `json:"receipt"`
}

// ReceiptView is a receipt row joined with its supplier, without the photo bytes.
type ReceiptView struct {
	models.RawMaterialReceipt `bun:",extend"`

	SupplierName string `bun:"supplier_name" json:"supplierName"`
	HasPhoto     bool   `bun:"has_photo" json:"hasPhoto"`
	PONumber     string `bun:"po_number" json:"poNumber,omitempty"`
	PhotoURL     string `bun:"-" json:"photoUrl,omitempty"`
}

// photoURL is the reference clients use to fetch a receipt photo.
func photoURL(id int64) string {
	return "/api/receipts/" + itoa(id) + "/photo"
}
