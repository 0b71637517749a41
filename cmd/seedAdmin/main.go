package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"clamflow/frontend/admin"
	"clamflow/frontend/login"
	"clamflow/infrastructure/audit"
	"clamflow/infrastructure/cache"
	"clamflow/infrastructure/config"
	"clamflow/infrastructure/logger"
	"clamflow/infrastructure/rbac"
	"clamflow/infrastructure/sqlite"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zlog := logger.Must(logger.New(cfg.LogLevel))

	migrationsDir := cfg.Database.MigrationsDir
	if migrationsDir == "" {
		if migrationsDir, err = resolveMigrationsDir(); err != nil {
			log.Fatalf("resolve migrations dir: %v", err)
		}
	}

	db, err := sqlite.OpenDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := sqlite.ApplyMigrations(ctx, db, migrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	if err := seed(ctx, db, cfg.Auth.AdminPassword, admin.NewService(db, audit.NewService(), cache.NewGradeCache(), zlog)); err != nil {
		log.Fatalf("seed: %v", err)
	}
}

// seed creates or re-keys the admin account and adds missing default grades.
func seed(ctx context.Context, db *sqlite.DB, adminPassword string, svc *admin.Service) error {
	if adminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD must be set")
	}
	if err := login.UpsertOperator(ctx, db, "admin", rbac.RoleAdmin, adminPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	added, err := svc.SeedDefaultGrades(ctx)
	if err != nil {
		return fmt.Errorf("seed grades: %w", err)
	}
	fmt.Printf("seeded admin operator (username=admin) and %d product grades\n", added)
	return nil
}

func resolveMigrationsDir() (string, error) {
	candidates := []string{
		filepath.Join("infrastructure", "sqlite", "migrations"),
		filepath.Join("..", "..", "infrastructure", "sqlite", "migrations"),
	}

	if _, file, _, ok := runtime.Caller(0); ok {
		candidates = append(candidates, filepath.Join(filepath.Dir(file), "..", "..", "infrastructure", "sqlite", "migrations"))
	}

	tried := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		absPath, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		tried = append(tried, absPath)

		info, err := os.Stat(absPath)
		if err != nil {
			continue
		}
		if info.IsDir() {
			return absPath, nil
		}
	}

	return "", fmt.Errorf("migrations dir not found; tried: %s", strings.Join(tried, ", "))
}
