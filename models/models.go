package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Operator is an authenticated plant user.
type Operator struct {
	bun.BaseModel `bun:"table:operators,alias:o"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Username     string    `bun:"username,unique,notnull" json:"username"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Role         string    `bun:"role,notnull" json:"role"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Session is used by middleware and auth handlers.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID         string    `bun:"id,pk"`
	OperatorID int64     `bun:"operator_id,notnull"`
	Operator   *Operator `bun:"rel:belongs-to,join:operator_id=id"`
	Roles      []string  `bun:"-"`
	FromCookie bool      `bun:"-"`
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Expired returns true when the session expiry time has passed.
func (s Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Supplier delivers raw clams. Immutable once a receipt references it.
type Supplier struct {
	bun.BaseModel `bun:"table:suppliers,alias:sp"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Name          string    `bun:"name,notnull" json:"name"`
	Contact       string    `bun:"contact,notnull" json:"contact"`
	LicenseNumber string    `bun:"license_number,notnull" json:"licenseNumber"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// PurchaseOrder is raised for a supplier delivery and spawns one receipt.
type PurchaseOrder struct {
	bun.BaseModel `bun:"table:purchase_orders,alias:po"`

	ID          int64               `bun:"id,pk,autoincrement" json:"id"`
	PONumber    string              `bun:"po_number,unique,notnull" json:"poNumber"`
	SupplierID  int64               `bun:"supplier_id,notnull" json:"supplierId"`
	Date        time.Time           `bun:"date,notnull" json:"date"`
	Weight      float64             `bun:"weight,notnull" json:"weight"`
	PricePerKg  float64             `bun:"price_per_kg,notnull" json:"pricePerKg"`
	TotalAmount float64             `bun:"total_amount,notnull" json:"totalAmount"`
	Status      PurchaseOrderStatus `bun:"status,notnull" json:"status"`
	CreatedAt   time.Time           `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// RawMaterialReceipt records one intake of raw clams.
type RawMaterialReceipt struct {
	bun.BaseModel `bun:"table:raw_materials,alias:rm"`

	ID              int64         `bun:"id,pk,autoincrement" json:"id"`
	SupplierID      int64         `bun:"supplier_id,notnull" json:"supplierId"`
	PurchaseOrderID *int64        `bun:"purchase_order_id" json:"purchaseOrderId,omitempty"`
	Weight          float64       `bun:"weight,notnull" json:"weight"`
	PhotoBlob       []byte        `bun:"photo_blob" json:"-"`
	PhotoMIME       string        `bun:"photo_mime" json:"-"`
	PhotoName       string        `bun:"photo_name" json:"-"`
	Date            time.Time     `bun:"date,notnull" json:"date"`
	Status          ReceiptStatus `bun:"status,notnull" json:"status"`
	LotNumber       *string       `bun:"lot_number" json:"lotNumber"`
	CreatedAt       time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Lot groups receipts for joint downstream processing.
type Lot struct {
	bun.BaseModel `bun:"table:lots,alias:l"`

	ID          int64      `bun:"id,pk,autoincrement" json:"id"`
	LotNumber   string     `bun:"lot_number,unique,notnull" json:"lotNumber"`
	ReceiptIDs  []int64    `bun:"receipt_ids,type:json,notnull" json:"receiptIds"`
	TotalWeight float64    `bun:"total_weight,notnull" json:"totalWeight"`
	Notes       string     `bun:"notes" json:"notes,omitempty"`
	Status      LotStatus  `bun:"status,notnull" json:"status"`
	CreatedAt   time.Time  `bun:"created_at,notnull" json:"createdAt"`
	ReleasedAt  *time.Time `bun:"released_at" json:"releasedAt,omitempty"`
}

// Depuration is the holding step of one lot. A missing row means not started.
type Depuration struct {
	bun.BaseModel `bun:"table:depurations,alias:d"`

	LotID            int64            `bun:"lot_id,pk" json:"-"`
	Status           DepurationStatus `bun:"status,notnull" json:"status"`
	TankNumber       string           `bun:"tank_number,notnull" json:"tankNumber"`
	StartedAt        time.Time        `bun:"started_at,notnull" json:"startTime"`
	StartTemperature float64          `bun:"start_temperature,notnull" json:"startTemperature"`
	StartSalinity    float64          `bun:"start_salinity,notnull" json:"startSalinity"`
	EndTemperature   *float64         `bun:"end_temperature" json:"endTemperature,omitempty"`
	EndSalinity      *float64         `bun:"end_salinity" json:"endSalinity,omitempty"`
	CompletedAt      *time.Time       `bun:"completed_at" json:"completedAt,omitempty"`
	DurationHours    int64            `bun:"duration_hours,notnull" json:"duration"`
}

// ProcessingBatch is the graded output recorded against a lot.
type ProcessingBatch struct {
	bun.BaseModel `bun:"table:processing_batches,alias:pb"`

	ID                int64       `bun:"id,pk,autoincrement" json:"id"`
	LotID             int64       `bun:"lot_id,notnull" json:"-"`
	LotNumber         string      `bun:"lot_number,notnull" json:"lotNumber"`
	ShellOnWeight     float64     `bun:"shell_on_weight,notnull" json:"shellOnWeight"`
	MeatWeight        float64     `bun:"meat_weight,notnull" json:"meatWeight"`
	YieldPercentage   float64     `bun:"yield_percentage,notnull" json:"yieldPercentage"`
	YieldExceedsInput bool        `bun:"yield_exceeds_input,notnull" json:"yieldExceedsInput"`
	Status            BatchStatus `bun:"status,notnull" json:"status"`
	Date              time.Time   `bun:"date,notnull" json:"date"`
	Boxes             []Box       `bun:"-" json:"boxes"`
	CreatedByID       int64       `bun:"created_by_operator_id" json:"-"`
}

// Box is one weighed and graded unit inside a processing batch.
type Box struct {
	bun.BaseModel `bun:"table:processing_boxes,alias:bx"`

	ID        int64       `bun:"id,pk,autoincrement" json:"-"`
	BatchID   int64       `bun:"batch_id,notnull" json:"-"`
	Position  int         `bun:"position,notnull" json:"-"`
	Type      ProductType `bun:"type,notnull" json:"type"`
	Weight    float64     `bun:"weight,notnull" json:"weight"`
	BoxNumber string      `bun:"box_number,notnull" json:"boxNumber"`
	Grade     string      `bun:"grade,notnull" json:"grade"`
}

// Package is a labelled box ready to ship.
type Package struct {
	bun.BaseModel `bun:"table:packages,alias:pk"`

	ID         int64       `bun:"id,pk,autoincrement" json:"id"`
	LotID      int64       `bun:"lot_id,notnull" json:"-"`
	LotNumber  string      `bun:"lot_number,notnull" json:"lotNumber"`
	BoxNumber  string      `bun:"box_number,unique,notnull" json:"boxNumber"`
	Type       ProductType `bun:"type,notnull" json:"type"`
	Weight     float64     `bun:"weight,notnull" json:"weight"`
	Grade      string      `bun:"grade,notnull" json:"grade"`
	QRPayload  string      `bun:"qr_payload,notnull" json:"qrCode"`
	PackedAt   time.Time   `bun:"packed_at,notnull" json:"date"`
	ShipmentID *int64      `bun:"shipment_id" json:"shipmentId,omitempty"`
}

// Shipment is a dispatched set of packages.
type Shipment struct {
	bun.BaseModel `bun:"table:shipments,alias:sh"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	CustomerName  string    `bun:"customer_name,notnull" json:"customerName"`
	Destination   string    `bun:"destination,notnull" json:"destination"`
	TransportMode string    `bun:"transport_mode,notnull" json:"transportMode"`
	VehicleNumber string    `bun:"vehicle_number" json:"vehicleNumber"`
	Notes         string    `bun:"notes" json:"notes"`
	BoxCount      int       `bun:"box_count,notnull" json:"boxCount"`
	TotalWeight   float64   `bun:"total_weight,notnull" json:"totalWeight"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// ProductGrade is a quality grade applicable to one product type.
type ProductGrade struct {
	bun.BaseModel `bun:"table:product_grades,alias:pg"`

	ID          int64       `bun:"id,pk,autoincrement" json:"id"`
	Code        string      `bun:"code,notnull" json:"code"`
	Name        string      `bun:"name,notnull" json:"name"`
	Description string      `bun:"description" json:"description"`
	ProductType ProductType `bun:"product_type,notnull" json:"productType"`
}

// ShellWeight is a standalone ledger entry of discarded shell weight.
type ShellWeight struct {
	bun.BaseModel `bun:"table:shell_weights,alias:sw"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Weight    float64   `bun:"weight,notnull" json:"weight"`
	Date      time.Time `bun:"date,notnull" json:"date"`
	Notes     string    `bun:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// QCChecklist is the submitted checklist of one stage for one lot.
type QCChecklist struct {
	bun.BaseModel `bun:"table:qc_checklists,alias:qc"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	LotID       int64     `bun:"lot_id,notnull" json:"-"`
	Stage       QCStage   `bun:"stage,notnull" json:"stage"`
	Items       []QCItem  `bun:"items,type:json,notnull" json:"items"`
	Passed      bool      `bun:"passed,notnull" json:"passed"`
	InspectorID int64     `bun:"inspector_operator_id" json:"-"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// QCItem is one resolved checklist criterion.
type QCItem struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Passed bool   `json:"passed"`
	Notes  string `json:"notes,omitempty"`
}

// FinalRelease records the approval that completes a lot.
type FinalRelease struct {
	bun.BaseModel `bun:"table:final_releases,alias:fr"`

	LotID                 int64     `bun:"lot_id,pk" json:"-"`
	QualityCheckPassed    bool      `bun:"quality_check_passed,notnull" json:"qualityCheckPassed"`
	YieldVerified         bool      `bun:"yield_verified,notnull" json:"yieldVerified"`
	DocumentationComplete bool      `bun:"documentation_complete,notnull" json:"documentationComplete"`
	PackagingCorrect      bool      `bun:"packaging_correct,notnull" json:"packagingCorrect"`
	LabelingComplete      bool      `bun:"labeling_complete,notnull" json:"labelingComplete"`
	Notes                 string    `bun:"notes" json:"notes,omitempty"`
	ReleasedByID          int64     `bun:"released_by_operator_id" json:"-"`
	ReleasedAt            time.Time `bun:"released_at,notnull" json:"releasedAt"`
}

// PendingUpload is an offline submission waiting to be replayed.
type PendingUpload struct {
	bun.BaseModel `bun:"table:pending_uploads,alias:pu"`

	ID        string     `bun:"id,pk" json:"id"`
	Type      UploadType `bun:"type,notnull" json:"type"`
	Payload   string     `bun:"payload,notnull" json:"data"`
	Timestamp time.Time  `bun:"timestamp,notnull" json:"timestamp"`
	Attempts  int        `bun:"attempts,notnull" json:"attempts"`
	LastError string     `bun:"last_error" json:"lastError,omitempty"`
}

// AuditLog captures immutable change history for key operations.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         int64     `bun:"id,pk,autoincrement"`
	OperatorID int64     `bun:"operator_id,notnull"`
	Action     string    `bun:"action,notnull"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	BeforeJSON string    `bun:"before_json"`
	AfterJSON  string    `bun:"after_json"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ExportRun records one generated export file.
type ExportRun struct {
	bun.BaseModel `bun:"table:export_runs,alias:er"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	OperatorID int64     `bun:"operator_id,notnull" json:"operatorId"`
	Kind       string    `bun:"kind,notnull" json:"kind"`
	Format     string    `bun:"format,notnull" json:"format"`
	RowCount   int       `bun:"row_count,notnull" json:"rowCount"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"createdAt"`
}
