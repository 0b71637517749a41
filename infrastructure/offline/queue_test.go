package offline

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clamflow/frontend/shared/apperr"
	"clamflow/infrastructure/metrics"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "offline.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlite.ApplyEmbeddedMigrations(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	q := NewQueue(db, metrics.New(), nil)
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	q.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return q
}

type receiptPayload struct {
	SupplierID int64   `json:"supplierId"`
	Weight     float64 `json:"weight"`
}

func TestEnqueueAndList(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, models.UploadRawMaterial, receiptPayload{SupplierID: 1, Weight: 100})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, models.UploadPackaging, map[string]string{"boxNumber": "SO123456"})
	require.NoError(t, err)

	entries, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.JSONEq(t, `{"supplierId":1,"weight":100}`, entries[0].Payload)

	_, err = q.Enqueue(ctx, models.UploadType("photo"), nil)
	assert.True(t, apperr.IsValidation(err))

	require.NoError(t, q.Remove(ctx, first.ID))
	assert.ErrorIs(t, q.Remove(ctx, first.ID), apperr.ErrNotFound)
}

func TestDrainOutcomes(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	var replayed []receiptPayload
	q.Register(models.UploadRawMaterial, func(ctx context.Context, payload json.RawMessage) error {
		var p receiptPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		replayed = append(replayed, p)
		return nil
	})
	q.Register(models.UploadProcessing, func(context.Context, json.RawMessage) error {
		return errors.New("database is locked")
	})
	q.Register(models.UploadPackaging, func(context.Context, json.RawMessage) error {
		return apperr.Conflict("box SO123456 already packaged")
	})

	_, err := q.Enqueue(ctx, models.UploadRawMaterial, receiptPayload{SupplierID: 2, Weight: 50})
	require.NoError(t, err)
	stuck, err := q.Enqueue(ctx, models.UploadProcessing, map[string]string{"lotNumber": "L1"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, models.UploadPackaging, map[string]string{"boxNumber": "SO123456"})
	require.NoError(t, err)

	res, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Replayed: 1, Failed: 1, Dropped: 1}, res)
	assert.Equal(t, []receiptPayload{{SupplierID: 2, Weight: 50}}, replayed)

	entries, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stuck.ID, entries[0].ID)
	assert.Equal(t, 1, entries[0].Attempts)
	assert.Equal(t, "database is locked", entries[0].LastError)
}

func TestDrainSkipsUnregisteredTypes(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	_, err := q.Enqueue(ctx, models.UploadProcessing, map[string]string{"lotNumber": "L1"})
	require.NoError(t, err)

	res, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	entries, err := q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewRetrierRejectsBadSchedule(t *testing.T) {
	q := openTestQueue(t)
	_, err := NewRetrier(q, "whenever", nil)
	assert.Error(t, err)

	r, err := NewRetrier(q, "@every 1h", nil)
	require.NoError(t, err)
	r.Start()
	r.Stop()
}

func TestParkOnlyRetryableFailures(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	_, ok := q.Park(ctx, models.UploadPackaging, map[string]string{"boxNumber": "SO1"}, apperr.Invalid("bad box number"))
	assert.False(t, ok)

	parked, ok := q.Park(ctx, models.UploadPackaging, map[string]string{"boxNumber": "SO123456"}, errors.New("disk I/O error"))
	require.True(t, ok)
	assert.True(t, parked.Queued)
	assert.Equal(t, "packaging", parked.Type)

	entries, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, parked.ID, entries[0].ID)
}
