package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"clamflow/frontend/admin"
	"clamflow/frontend/auditlog"
	"clamflow/frontend/dashboard"
	"clamflow/frontend/depuration"
	"clamflow/frontend/exports"
	"clamflow/frontend/intake"
	"clamflow/frontend/login"
	"clamflow/frontend/lots"
	"clamflow/frontend/packaging"
	"clamflow/frontend/processing"
	"clamflow/frontend/quality"
	"clamflow/frontend/uploads"
	"clamflow/infrastructure/rbac"
)

const (
	op = rbac.RoleOperator
	qa = rbac.RoleQuality
)

// RegisterLoginRoutes registers the unauthenticated login/logout routes.
func (s *Server) RegisterLoginRoutes(r chi.Router) {
	r.Post("/login", login.CreateLoginHandler(s.DB, s.Sessions, s.SessionTTL, s.Log.Named("login")))
	r.Post("/logout", login.LogoutHandler(s.DB, s.Sessions, s.Log.Named("login")))
}

// RegisterAdminRoutes registers master data routes. Reads of suppliers and
// grades are open to the floor; changes are admin only.
func (s *Server) RegisterAdminRoutes(r chi.Router) {
	svc := s.Services.Admin

	s.Rbac.Allow("SUPPLIERS_VIEW", http.MethodGet, "/api/suppliers", op, qa)
	r.Get("/suppliers", admin.ListSuppliersQueryHandler(svc))
	s.Rbac.Allow("SUPPLIERS_CREATE", http.MethodPost, "/api/suppliers", rbac.RoleAdmin)
	r.Post("/suppliers", admin.CreateSupplierCommandHandler(svc))
	s.Rbac.Allow("SUPPLIERS_IMPORT", http.MethodPost, "/api/suppliers/import", rbac.RoleAdmin)
	r.Post("/suppliers/import", admin.ImportSuppliersCommandHandler(svc))
	s.Rbac.Allow("SUPPLIERS_EDIT", http.MethodPut, "/api/suppliers/{id}", rbac.RoleAdmin)
	r.Put("/suppliers/{id}", admin.UpdateSupplierCommandHandler(svc))
	s.Rbac.Allow("SUPPLIERS_DELETE", http.MethodDelete, "/api/suppliers/{id}", rbac.RoleAdmin)
	r.Delete("/suppliers/{id}", admin.DeleteSupplierCommandHandler(svc))

	s.Rbac.Allow("GRADES_VIEW", http.MethodGet, "/api/grades", op, qa)
	r.Get("/grades", admin.ListGradesQueryHandler(svc))
	s.Rbac.Allow("GRADES_CREATE", http.MethodPost, "/api/grades", rbac.RoleAdmin)
	r.Post("/grades", admin.CreateGradeCommandHandler(svc))
	s.Rbac.Allow("GRADES_DELETE", http.MethodDelete, "/api/grades/{id}", rbac.RoleAdmin)
	r.Delete("/grades/{id}", admin.DeleteGradeCommandHandler(svc))

	s.Rbac.Allow("OPERATORS_VIEW", http.MethodGet, "/api/operators", rbac.RoleAdmin)
	r.Get("/operators", admin.ListOperatorsQueryHandler(svc))
	s.Rbac.Allow("OPERATORS_EDIT", http.MethodPost, "/api/operators", rbac.RoleAdmin)
	r.Post("/operators", admin.UpsertOperatorCommandHandler(svc))

	s.Rbac.Allow("AUDIT_VIEW", http.MethodGet, "/api/audit", qa)
	r.Get("/audit", auditlog.ListEntriesQueryHandler(s.Services.AuditLog))
}

// RegisterFrontendRoutes registers authenticated plant routes.
func (s *Server) RegisterFrontendRoutes(r chi.Router) {
	s.Rbac.Allow("ME_VIEW", http.MethodGet, "/api/me", op, qa)
	r.Get("/me", s.MeQueryHandler)

	s.RegisterDashboardRoutes(r)
	s.RegisterIntakeRoutes(r)
	s.RegisterLotRoutes(r)
	s.RegisterProcessingRoutes(r)
	s.RegisterPackagingRoutes(r)
	s.RegisterQualityRoutes(r)
	s.RegisterExportRoutes(r)
}

func (s *Server) RegisterDashboardRoutes(r chi.Router) {
	dash, up := s.Services.Dashboard, s.Services.Uploads

	s.Rbac.Allow("DASHBOARD_VIEW", http.MethodGet, "/api/dashboard", op, qa)
	r.Get("/dashboard", dashboard.SummaryQueryHandler(dash))
	s.Rbac.Allow("NOTIFICATIONS_VIEW", http.MethodGet, "/api/notifications", op, qa)
	r.Get("/notifications", dashboard.NotificationsQueryHandler(dash))

	s.Rbac.Allow("OFFLINE_VIEW", http.MethodGet, "/api/offline", op, qa)
	r.Get("/offline", uploads.ListPendingQueryHandler(up))
	s.Rbac.Allow("OFFLINE_SYNC", http.MethodPost, "/api/offline/drain", op, qa)
	r.Post("/offline/drain", uploads.DrainCommandHandler(up))
	s.Rbac.Allow("OFFLINE_DISCARD", http.MethodDelete, "/api/offline/{id}", op)
	r.Delete("/offline/{id}", uploads.DiscardCommandHandler(up))
}

func (s *Server) RegisterIntakeRoutes(r chi.Router) {
	svc := s.Services.Intake

	s.Rbac.Allow("RECEIPTS_VIEW", http.MethodGet, "/api/receipts", op, qa)
	r.Get("/receipts", intake.ListReceiptsQueryHandler(svc))
	s.Rbac.Allow("RECEIPTS_CREATE", http.MethodPost, "/api/receipts", op)
	r.Post("/receipts", intake.CreateReceiptCommandHandler(svc))
	s.Rbac.Allow("RECEIPT_PHOTO_VIEW", http.MethodGet, "/api/receipts/{id}/photo", op, qa)
	r.Get("/receipts/{id}/photo", intake.ReceiptPhotoQueryHandler(svc))
	s.Rbac.Allow("RECEIPT_PHOTO_EDIT", http.MethodPut, "/api/receipts/{id}/photo", op)
	r.Put("/receipts/{id}/photo", intake.UploadReceiptPhotoCommandHandler(svc))

	s.Rbac.Allow("PURCHASE_ORDERS_VIEW", http.MethodGet, "/api/purchase-orders", op, qa)
	r.Get("/purchase-orders", intake.ListPurchaseOrdersQueryHandler(svc))
	s.Rbac.Allow("PURCHASE_ORDERS_CREATE", http.MethodPost, "/api/purchase-orders", op)
	r.Post("/purchase-orders", intake.CreatePurchaseOrderCommandHandler(svc))
}

func (s *Server) RegisterLotRoutes(r chi.Router) {
	svc, dep := s.Services.Lots, s.Services.Depuration

	s.Rbac.Allow("LOTS_VIEW", http.MethodGet, "/api/lots", op, qa)
	r.Get("/lots", lots.ListLotsQueryHandler(svc))
	s.Rbac.Allow("LOTS_CREATE", http.MethodPost, "/api/lots", op)
	r.Post("/lots", lots.CreateLotCommandHandler(svc))
	s.Rbac.Allow("LOTS_SELECTABLE_VIEW", http.MethodGet, "/api/lots/selectable", op, qa)
	r.Get("/lots/selectable", lots.SelectableLotsQueryHandler(svc))
	s.Rbac.Allow("LOT_DETAIL_VIEW", http.MethodGet, "/api/lots/{lotNumber}", op, qa)
	r.Get("/lots/{lotNumber}", lots.GetLotQueryHandler(svc))
	s.Rbac.Allow("LOT_HISTORY_VIEW", http.MethodGet, "/api/lots/{lotNumber}/history", op, qa)
	r.Get("/lots/{lotNumber}/history", auditlog.LotTrailQueryHandler(s.Services.AuditLog))
	s.Rbac.Allow("LOTS_LIVE", http.MethodGet, "/api/live/lots", op, qa)
	r.Get("/live/lots", lots.LiveLotsHandler(svc))

	s.Rbac.Allow("DEPURATION_VIEW", http.MethodGet, "/api/depurations", op, qa)
	r.Get("/depurations", depuration.ListActiveDepurationsQueryHandler(dep))
	s.Rbac.Allow("DEPURATION_START", http.MethodPost, "/api/lots/{lotNumber}/depuration/start", op)
	r.Post("/lots/{lotNumber}/depuration/start", depuration.StartDepurationCommandHandler(dep))
	s.Rbac.Allow("DEPURATION_COMPLETE", http.MethodPost, "/api/lots/{lotNumber}/depuration/complete", op)
	r.Post("/lots/{lotNumber}/depuration/complete", depuration.CompleteDepurationCommandHandler(dep))
}

func (s *Server) RegisterProcessingRoutes(r chi.Router) {
	svc := s.Services.Processing

	s.Rbac.Allow("BATCHES_VIEW", http.MethodGet, "/api/processing/batches", op, qa)
	r.Get("/processing/batches", processing.ListBatchesQueryHandler(svc))
	s.Rbac.Allow("BATCHES_CREATE", http.MethodPost, "/api/processing/batches", op)
	r.Post("/processing/batches", processing.SubmitBatchCommandHandler(svc))
	s.Rbac.Allow("BOX_NUMBER_NEXT", http.MethodGet, "/api/processing/box-numbers/next", op)
	r.Get("/processing/box-numbers/next", processing.NextBoxNumberQueryHandler(svc))
	s.Rbac.Allow("YIELD_VERIFY", http.MethodPost, "/api/processing/verify-yield", op, qa)
	r.Post("/processing/verify-yield", processing.VerifyYieldQueryHandler(svc))

	s.Rbac.Allow("SHELL_WEIGHTS_VIEW", http.MethodGet, "/api/shell-weights", op, qa)
	r.Get("/shell-weights", processing.ListShellWeightsQueryHandler(svc))
	s.Rbac.Allow("SHELL_WEIGHTS_CREATE", http.MethodPost, "/api/shell-weights", op)
	r.Post("/shell-weights", processing.RecordShellWeightCommandHandler(svc))
}

func (s *Server) RegisterPackagingRoutes(r chi.Router) {
	svc := s.Services.Packaging

	s.Rbac.Allow("PACKAGES_VIEW", http.MethodGet, "/api/packages", op, qa)
	r.Get("/packages", packaging.ListPackagesQueryHandler(svc))
	s.Rbac.Allow("PACKAGES_CREATE", http.MethodPost, "/api/packages", op)
	r.Post("/packages", packaging.CreatePackageCommandHandler(svc))
	s.Rbac.Allow("PACKAGES_SCAN", http.MethodPost, "/api/packages/scan", op, qa)
	r.Post("/packages/scan", packaging.ScanQRQueryHandler(svc))
	s.Rbac.Allow("PACKAGE_LABELS_VIEW", http.MethodGet, "/api/packages/labels", op)
	r.Get("/packages/labels", packaging.BoxLabelQueryHandler(svc))
	s.Rbac.Allow("PACKAGE_LABEL_VIEW", http.MethodGet, "/api/packages/{boxNumber}/label", op)
	r.Get("/packages/{boxNumber}/label", packaging.BoxLabelQueryHandler(svc))
	s.Rbac.Allow("PACKAGE_QR_VIEW", http.MethodGet, "/api/packages/{boxNumber}/qr", op, qa)
	r.Get("/packages/{boxNumber}/qr", packaging.BoxQRCodeQueryHandler(svc))

	s.Rbac.Allow("SHIPMENTS_VIEW", http.MethodGet, "/api/shipments", op, qa)
	r.Get("/shipments", packaging.ListShipmentsQueryHandler(svc))
	s.Rbac.Allow("SHIPMENTS_CREATE", http.MethodPost, "/api/shipments", op)
	r.Post("/shipments", packaging.CreateShipmentCommandHandler(svc))
	s.Rbac.Allow("PACKING_LIST_VIEW", http.MethodGet, "/api/shipments/{id}/packing-list", op, qa)
	r.Get("/shipments/{id}/packing-list", packaging.PackingListQueryHandler(svc))
}

func (s *Server) RegisterQualityRoutes(r chi.Router) {
	svc := s.Services.Quality

	s.Rbac.Allow("QC_TEMPLATE_VIEW", http.MethodGet, "/api/qc/checklists/{stage}", op, qa)
	r.Get("/qc/checklists/{stage}", quality.ChecklistTemplateQueryHandler(svc))
	s.Rbac.Allow("QC_VIEW", http.MethodGet, "/api/lots/{lotNumber}/qc", op, qa)
	r.Get("/lots/{lotNumber}/qc", quality.ListChecklistsQueryHandler(svc))
	s.Rbac.Allow("QC_SUBMIT", http.MethodPost, "/api/lots/{lotNumber}/qc/{stage}", qa)
	r.Post("/lots/{lotNumber}/qc/{stage}", quality.SubmitChecklistCommandHandler(svc))
	s.Rbac.Allow("LOT_RELEASE", http.MethodPost, "/api/lots/{lotNumber}/release", qa)
	r.Post("/lots/{lotNumber}/release", quality.ReleaseLotCommandHandler(svc))
}

func (s *Server) RegisterExportRoutes(r chi.Router) {
	svc := s.Services.Exports

	s.Rbac.Allow("EXPORT_RUNS_VIEW", http.MethodGet, "/api/exports/runs", qa)
	r.Get("/exports/runs", exports.ListExportRunsQueryHandler(svc))
	s.Rbac.Allow("EXPORTS_DOWNLOAD", http.MethodGet, "/api/exports/{kind}", op, qa)
	r.Get("/exports/{kind}", exports.ExportHandler(svc))
}
