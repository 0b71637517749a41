package auditlog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"clamflow/frontend/login"
	"clamflow/infrastructure/audit"
	"clamflow/infrastructure/sqlite"
)

type snapshot struct {
	LotNumber string  `json:"lotNumber"`
	Weight    float64 `json:"weight"`
}

func newTestService(t *testing.T) (*Service, int64) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.ApplyEmbeddedMigrations(ctx, db))

	require.NoError(t, login.UpsertOperator(ctx, db, "shucker1", "operator", "Operator123!Clamflow"))
	ops, err := login.ListOperators(ctx, db)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	opID := ops[0].ID

	auditSvc := audit.NewService()
	writes := []struct {
		operator       int64
		action, entity string
		id             string
		before, after  any
	}{
		{opID, "lot.create", "lot", "L1", nil, snapshot{LotNumber: "L1", Weight: 150}},
		{opID, "package.create", "package", "SO000001", nil, snapshot{LotNumber: "L1", Weight: 10}},
		{opID, "lot.create", "lot", "L2", nil, snapshot{LotNumber: "L2", Weight: 50}},
		{99, "supplier.create", "supplier", "1", nil, map[string]string{"name": "Bay"}},
		{opID, "lot.release", "lot", "L1", snapshot{LotNumber: "L1"}, snapshot{LotNumber: "L1"}},
	}
	err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		for _, w := range writes {
			if err := auditSvc.Write(ctx, tx, w.operator, w.action, w.entity, w.id, w.before, w.after); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return NewService(db, nil), opID
}

func TestListFiltersNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	all, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "lot.release", all[0].Action)
	assert.Equal(t, "shucker1", all[0].Actor)
	assert.Equal(t, "-", all[1].Actor, "unknown operators render as a dash")
	assert.Nil(t, all[1].Before)

	lots, err := svc.List(ctx, Filter{EntityType: "lot", Action: "lot.create"})
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, "L2", lots[0].EntityID)

	limited, err := svc.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestLotTrailFollowsSnapshots(t *testing.T) {
	svc, _ := newTestService(t)

	trail, err := svc.LotTrail(context.Background(), "L1")
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, []string{"lot.create", "package.create", "lot.release"},
		[]string{trail[0].Action, trail[1].Action, trail[2].Action})

	var after snapshot
	require.NoError(t, json.Unmarshal(trail[1].After, &after))
	assert.Equal(t, 10.0, after.Weight)

	none, err := svc.LotTrail(context.Background(), "L404")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHandlers(t *testing.T) {
	svc, _ := newTestService(t)
	router := chi.NewRouter()
	router.Get("/api/audit", ListEntriesQueryHandler(svc))
	router.Get("/api/lots/{lotNumber}/history", LotTrailQueryHandler(svc))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit?entityType=supplier", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"name":"Bay"}`, string(entries[0].After))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit?limit=abc", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lots/L2/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "L2", entries[0].EntityID)
}
