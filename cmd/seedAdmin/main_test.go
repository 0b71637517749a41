package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clamflow/frontend/admin"
	"clamflow/frontend/login"
	"clamflow/infrastructure/audit"
	"clamflow/infrastructure/cache"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

func TestResolveMigrationsDir_FromRepoRoot(t *testing.T) {
	_, repoRoot := testPaths(t)
	withWorkingDir(t, repoRoot)

	dir, err := resolveMigrationsDir()
	if err != nil {
		t.Fatalf("resolve migrations dir from repo root: %v", err)
	}

	assertMigrationsDir(t, dir)
}

func TestResolveMigrationsDir_FromSeedAdminDir(t *testing.T) {
	cmdDir, _ := testPaths(t)
	withWorkingDir(t, cmdDir)

	dir, err := resolveMigrationsDir()
	if err != nil {
		t.Fatalf("resolve migrations dir from cmd/seedAdmin: %v", err)
	}

	assertMigrationsDir(t, dir)
}

func testPaths(t *testing.T) (cmdDir string, repoRoot string) {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	cmdDir = filepath.Dir(file)
	repoRoot = filepath.Clean(filepath.Join(cmdDir, "..", ".."))
	return cmdDir, repoRoot
}

func withWorkingDir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir to %s: %v", dir, err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
	})
}

func assertMigrationsDir(t *testing.T, dir string) {
	t.Helper()
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat migrations dir: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected directory, got file: %s", dir)
	}
	if !strings.HasSuffix(filepath.ToSlash(dir), "infrastructure/sqlite/migrations") {
		t.Fatalf("unexpected migrations path: %s", dir)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.ApplyEmbeddedMigrations(ctx, db))
	svc := admin.NewService(db, audit.NewService(), cache.NewGradeCache(), zap.NewNop())

	require.Error(t, seed(ctx, db, "", svc))
	require.NoError(t, seed(ctx, db, "Admin123!Clamflow", svc))
	require.NoError(t, seed(ctx, db, "Admin123!Clamflow2", svc))

	ops, err := login.ListOperators(ctx, db)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "admin", ops[0].Username)

	grades, err := svc.ListGrades(ctx, "")
	require.NoError(t, err)
	assert.Len(t, grades, 6)
	var meat int
	for _, g := range grades {
		if g.ProductType == models.Meat {
			meat++
		}
	}
	assert.Equal(t, 3, meat)
}
