package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"clamflow/frontend/admin"
	"clamflow/frontend/auditlog"
	"clamflow/frontend/dashboard"
	"clamflow/frontend/depuration"
	"clamflow/frontend/exports"
	"clamflow/frontend/intake"
	"clamflow/frontend/lots"
	"clamflow/frontend/packaging"
	"clamflow/frontend/processing"
	"clamflow/frontend/quality"
	"clamflow/frontend/uploads"
	"clamflow/infrastructure/audit"
	"clamflow/infrastructure/cache"
	"clamflow/infrastructure/config"
	httpserver "clamflow/infrastructure/http"
	"clamflow/infrastructure/live"
	"clamflow/infrastructure/logger"
	"clamflow/infrastructure/metrics"
	"clamflow/infrastructure/notify"
	"clamflow/infrastructure/offline"
	"clamflow/infrastructure/rbac"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

func main() {
	envFile := flag.String("env", "", "optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zlog := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = zlog.Sync() }()

	db, err := sqlite.OpenDB(cfg.Database.Path)
	if err != nil {
		zlog.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if cfg.Database.MigrationsDir != "" {
		err = sqlite.ApplyMigrations(ctx, db, cfg.Database.MigrationsDir)
	} else {
		err = sqlite.ApplyEmbeddedMigrations(ctx, db)
	}
	if err != nil {
		zlog.Fatal("apply migrations", zap.Error(err))
	}

	hub := live.NewHub(logger.Named(zlog, "live"))
	db.SetChangeNotifier(hub)

	var m *metrics.Registry
	if cfg.Metrics {
		m = metrics.New()
	}
	center := notify.NewCenter(200, logger.Named(zlog, "notify"))
	auditSvc := audit.NewService()
	queue := offline.NewQueue(db, m, logger.Named(zlog, "offline"))

	svcs := httpserver.Services{
		Admin:      admin.NewService(db, auditSvc, cache.NewGradeCache(), logger.Named(zlog, "admin")),
		Intake:     intake.NewService(db, auditSvc, queue, center, logger.Named(zlog, "intake")),
		Lots:       lots.NewService(db, auditSvc, m, hub, center, logger.Named(zlog, "lots")),
		Depuration: depuration.NewService(db, auditSvc, center, logger.Named(zlog, "depuration")),
		Processing: processing.NewService(db, auditSvc, queue, m, center, logger.Named(zlog, "processing")),
		Packaging:  packaging.NewService(db, auditSvc, queue, m, center, logger.Named(zlog, "packaging")),
		Quality:    quality.NewService(db, auditSvc, center, logger.Named(zlog, "quality")),
		Exports:    exports.NewService(db, logger.Named(zlog, "exports")),
		Dashboard:  dashboard.NewService(db, center, logger.Named(zlog, "dashboard")),
		Uploads:    uploads.NewService(queue, center, logger.Named(zlog, "uploads")),
		AuditLog:   auditlog.NewService(db, logger.Named(zlog, "audit")),
	}

	queue.Register(models.UploadRawMaterial, svcs.Intake.ReplayReceipt)
	queue.Register(models.UploadProcessing, svcs.Processing.ReplayBatch)
	queue.Register(models.UploadPackaging, svcs.Packaging.ReplayPackage)

	retrier, err := offline.NewRetrier(queue, cfg.Offline.RetrySchedule, logger.Named(zlog, "offline"))
	if err != nil {
		zlog.Fatal("offline retrier", zap.Error(err))
	}
	retrier.Start()

	server := httpserver.NewServer(httpserver.Options{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SessionTTL:     cfg.Auth.SessionTTL,
	}, db, cache.NewSessionCache(), rbac.New(cache.NewRbacRolesCache()), m, svcs, logger.Named(zlog, "http"))
	if err := server.Start(); err != nil {
		zlog.Fatal("start server", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	zlog.Info("shutting down")

	if err := server.Stop(); err != nil {
		zlog.Error("graceful shutdown error", zap.Error(err))
	}
	retrier.Stop()
}
