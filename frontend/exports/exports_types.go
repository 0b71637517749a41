package exports

import (
	"go.uber.org/zap"

	"clamflow/infrastructure/sqlite"
)

// DateLayout is how every timestamp is written into an export.
const DateLayout = "2006-01-02 15:04:05"

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

// Kind names an exportable record set.
type Kind string

const (
	KindLots       Kind = "lots"
	KindReceipts   Kind = "receipts"
	KindPackages   Kind = "packages"
	KindProcessing Kind = "processing"
)

func ParseKind(v string) (Kind, bool) {
	switch k := Kind(v); k {
	case KindLots, KindReceipts, KindPackages, KindProcessing:
		return k, true
	default:
		return "", false
	}
}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Table is a header plus one row per record. Cells keep their Go types until
// they are written.
type Table struct {
	Columns []string
	Rows    [][]any
}
