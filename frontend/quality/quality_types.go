package quality

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

// Criterion is one fixed line of a stage checklist.
type Criterion struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Result resolves one criterion. Passed is nil until the inspector decides.
type Result struct {
	Key    string `json:"key"`
	Passed *bool  `json:"passed"`
	Notes  string `json:"notes"`
}

type SubmitInput struct {
	LotNumber string         `json:"lotNumber"`
	Stage     models.QCStage `json:"stage"`
	Results   []Result       `json:"items"`
}

type ReleaseInput struct {
	LotNumber             string `json:"lotNumber"`
	QualityCheckPassed    bool   `json:"qualityCheckPassed"`
	YieldVerified         bool   `json:"yieldVerified"`
	DocumentationComplete bool   `json:"documentationComplete"`
	PackagingCorrect      bool   `json:"packagingCorrect"`
	LabelingComplete      bool   `json:"labelingComplete"`
	Notes                 string `json:"notes"`
}
