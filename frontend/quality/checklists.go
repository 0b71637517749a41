package quality

import "clamflow/models"

var checklists = map[models.QCStage][]Criterion{
	models.StageRawMaterial: {
		{Key: "visual-inspection", Label: "Visual Inspection - No visible contamination"},
		{Key: "temperature-check", Label: "Temperature Check - Within acceptable range"},
		{Key: "weight-verification", Label: "Weight Verification - Matches documentation"},
		{Key: "supplier-documentation", Label: "Supplier Documentation Complete"},
		{Key: "transport-conditions", Label: "Transport Conditions Met"},
	},
	models.StageDepuration: {
		{Key: "water-temperature", Label: "Water Temperature (18-22°C)"},
		{Key: "salinity-level", Label: "Salinity Level (28-35 ppt)"},
		{Key: "water-flow", Label: "Water Flow Rate Check"},
		{Key: "uv-sterilizer", Label: "UV Sterilizer Operation"},
		{Key: "tank-cleanliness", Label: "Tank Cleanliness"},
		{Key: "clam-activity", Label: "Clam Activity/Response"},
	},
	models.StageProcessing: {
		{Key: "area-sanitation", Label: "Processing Area Sanitation"},
		{Key: "staff-hygiene", Label: "Staff Hygiene Compliance"},
		{Key: "equipment-cleanliness", Label: "Equipment Cleanliness"},
		{Key: "temperature-control", Label: "Temperature Control"},
		{Key: "quality-shell-on", Label: "Product Quality - Shell-on"},
		{Key: "quality-meat", Label: "Product Quality - Meat"},
		{Key: "yield-verification", Label: "Yield Verification"},
	},
	models.StagePackaging: {
		{Key: "package-integrity", Label: "Package Integrity"},
		{Key: "label-accuracy", Label: "Label Accuracy"},
		{Key: "weight-verification", Label: "Weight Verification"},
		{Key: "product-temperature", Label: "Product Temperature"},
		{Key: "qr-readability", Label: "QR Code Readability"},
		{Key: "grade-verification", Label: "Product Grade Verification"},
	},
}

// Checklist returns a copy of the criteria for stage.
func Checklist(stage models.QCStage) []Criterion {
	return append([]Criterion(nil), checklists[stage]...)
}
