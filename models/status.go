package models

import "fmt"

// LotStatus only moves forward: pending -> processing -> completed.
type LotStatus string

const (
	LotPending    LotStatus = "pending"
	LotProcessing LotStatus = "processing"
	LotCompleted  LotStatus = "completed"
)

// Rank orders lot statuses; a transition is valid only to a higher rank.
func (s LotStatus) Rank() int {
	switch s {
	case LotPending:
		return 0
	case LotProcessing:
		return 1
	case LotCompleted:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether the lot may move from s to next.
func (s LotStatus) CanAdvanceTo(next LotStatus) bool {
	if s.Rank() < 0 || next.Rank() < 0 {
		return false
	}
	return next.Rank() > s.Rank()
}

func (s LotStatus) Valid() bool {
	return s.Rank() >= 0
}

// ParseLotStatus accepts the empty string as "any".
func ParseLotStatus(v string) (LotStatus, error) {
	s := LotStatus(v)
	if v == "" || s.Valid() {
		return s, nil
	}
	return "", fmt.Errorf("unknown lot status %q", v)
}

type ReceiptStatus string

const (
	ReceiptPending  ReceiptStatus = "pending"
	ReceiptAssigned ReceiptStatus = "assigned"
)

func ParseReceiptStatus(v string) (ReceiptStatus, error) {
	switch ReceiptStatus(v) {
	case "", ReceiptPending, ReceiptAssigned:
		return ReceiptStatus(v), nil
	default:
		return "", fmt.Errorf("unknown receipt status %q", v)
	}
}

type PurchaseOrderStatus string

const (
	PurchaseOrderPending   PurchaseOrderStatus = "pending"
	PurchaseOrderCompleted PurchaseOrderStatus = "completed"
	PurchaseOrderCancelled PurchaseOrderStatus = "cancelled"
)

// DepurationStatus of a lot. DepurationPending is reported when no record exists.
type DepurationStatus string

const (
	DepurationPending    DepurationStatus = "pending"
	DepurationInProgress DepurationStatus = "in-progress"
	DepurationCompleted  DepurationStatus = "completed"
)

type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchCompleted BatchStatus = "completed"
)

// ProductType is the finished-product category of a box.
type ProductType string

const (
	ShellOn ProductType = "shell-on"
	Meat    ProductType = "meat"
)

func (t ProductType) Valid() bool {
	switch t {
	case ShellOn, Meat:
		return true
	default:
		return false
	}
}

// BoxPrefix is the two-letter tag used in box numbers.
func (t ProductType) BoxPrefix() string {
	switch t {
	case ShellOn:
		return "SO"
	case Meat:
		return "CM"
	default:
		return ""
	}
}

func ParseProductType(v string) (ProductType, error) {
	t := ProductType(v)
	if !t.Valid() {
		return "", fmt.Errorf("unknown product type %q", v)
	}
	return t, nil
}

// QCStage names the production stage a checklist belongs to.
type QCStage string

const (
	StageRawMaterial QCStage = "raw-material"
	StageDepuration  QCStage = "depuration"
	StageProcessing  QCStage = "processing"
	StagePackaging   QCStage = "packaging"
)

func ParseQCStage(v string) (QCStage, error) {
	switch QCStage(v) {
	case StageRawMaterial, StageDepuration, StageProcessing, StagePackaging:
		return QCStage(v), nil
	default:
		return "", fmt.Errorf("unknown qc stage %q", v)
	}
}

// UploadType keys the offline retry queue.
type UploadType string

const (
	UploadRawMaterial UploadType = "rawMaterial"
	UploadProcessing  UploadType = "processing"
	UploadPackaging   UploadType = "packaging"
)

func ParseUploadType(v string) (UploadType, error) {
	switch UploadType(v) {
	case UploadRawMaterial, UploadProcessing, UploadPackaging:
		return UploadType(v), nil
	default:
		return "", fmt.Errorf("unknown upload type %q", v)
	}
}
