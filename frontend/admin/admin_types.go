package admin

import (
	"go.uber.org/zap"

	"clamflow/infrastructure/audit"
	"clamflow/infrastructure/cache"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

// Service manages master data: suppliers, product grades and operators.
type Service struct {
	DB     *sqlite.DB
	Audit  *audit.Service
	Grades *cache.GradeCache
	Log    *zap.Logger
}

func NewService(db *sqlite.DB, auditSvc *audit.Service, grades *cache.GradeCache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if grades == nil {
		grades = cache.NewGradeCache()
	}
	return &Service{DB: db, Audit: auditSvc, Grades: grades, Log: log}
}

type SupplierInput struct {
	Name          string `json:"name"`
	Contact       string `json:"contact"`
	LicenseNumber string `json:"licenseNumber"`
}

type GradeInput struct {
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	ProductType models.ProductType `json:"productType"`
}

type OperatorInput struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// defaultGrades seeds a fresh plant with A/B/C for both product types.
var defaultGrades = []GradeInput{
	{Code: "A", Name: "Premium", Description: "Uniform size, intact shells, no defects", ProductType: models.ShellOn},
	{Code: "B", Name: "Standard", Description: "Minor size variation or cosmetic shell marks", ProductType: models.ShellOn},
	{Code: "C", Name: "Commercial", Description: "Mixed sizes, suitable for processing", ProductType: models.ShellOn},
	{Code: "A", Name: "Premium", Description: "Whole meats, bright colour, no grit", ProductType: models.Meat},
	{Code: "B", Name: "Standard", Description: "Whole meats with minor colour variation", ProductType: models.Meat},
	{Code: "C", Name: "Commercial", Description: "Broken or small meats", ProductType: models.Meat},
}
