package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"clamflow/infrastructure/notify"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

var now = time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "dashboard.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlite.ApplyEmbeddedMigrations(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewService(db, notify.NewCenter(5, nil), nil)
}

func TestSummaryOnEmptyStore(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[models.LotStatus]int{models.LotPending: 0, models.LotProcessing: 0, models.LotCompleted: 0}, got.LotsByStatus)
	assert.Zero(t, got.PendingReceipts)
	assert.Zero(t, got.Packages)
	assert.Zero(t, got.AverageYield)
	assert.Equal(t, YieldTarget, got.YieldTarget)
	assert.Empty(t, got.YieldTrend)
}

func TestSummaryWithEveryReceiptAssigned(t *testing.T) {
	svc := newTestService(t)
	err := svc.DB.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		sup := models.Supplier{Name: "Estuary Co"}
		if _, err := tx.NewInsert().Model(&sup).Exec(ctx); err != nil {
			return err
		}
		rm := models.RawMaterialReceipt{SupplierID: sup.ID, Weight: 25, Date: now, Status: models.ReceiptAssigned}
		if _, err := tx.NewInsert().Model(&rm).Exec(ctx); err != nil {
			return err
		}
		lot := models.Lot{LotNumber: "L2504020900001", ReceiptIDs: []int64{rm.ID}, TotalWeight: 25, Status: models.LotPending, CreatedAt: now}
		_, err := tx.NewInsert().Model(&lot).Exec(ctx)
		return err
	})
	require.NoError(t, err)

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.PendingReceipts)
	assert.Zero(t, got.PendingReceiptWeight)
	assert.Zero(t, got.PackagedWeight)
	assert.Zero(t, got.AverageYield)
	assert.Equal(t, 1, got.LotsByStatus[models.LotPending])
}

func TestSummaryAggregates(t *testing.T) {
	svc := newTestService(t)
	err := svc.DB.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		sup := models.Supplier{Name: "Estuary Co"}
		if _, err := tx.NewInsert().Model(&sup).Exec(ctx); err != nil {
			return err
		}
		for _, w := range []float64{12.5, 30} {
			rm := models.RawMaterialReceipt{SupplierID: sup.ID, Weight: w, Date: now, Status: models.ReceiptPending}
			if _, err := tx.NewInsert().Model(&rm).Exec(ctx); err != nil {
				return err
			}
		}
		lots := []models.Lot{
			{LotNumber: "L2504020900001", ReceiptIDs: []int64{}, TotalWeight: 100, Status: models.LotProcessing, CreatedAt: now},
			{LotNumber: "L2504020900002", ReceiptIDs: []int64{}, TotalWeight: 80, Status: models.LotPending, CreatedAt: now},
			{LotNumber: "L2504020900003", ReceiptIDs: []int64{}, TotalWeight: 60, Status: models.LotPending, CreatedAt: now},
		}
		if _, err := tx.NewInsert().Model(&lots).Exec(ctx); err != nil {
			return err
		}
		dep := models.Depuration{LotID: lots[1].ID, Status: models.DepurationInProgress, TankNumber: "T1", StartedAt: now, StartTemperature: 14, StartSalinity: 30}
		if _, err := tx.NewInsert().Model(&dep).Exec(ctx); err != nil {
			return err
		}
		for _, y := range []float64{60, 70.5} {
			b := models.ProcessingBatch{LotID: lots[0].ID, LotNumber: lots[0].LotNumber, YieldPercentage: y, Status: models.BatchCompleted, Date: now}
			if _, err := tx.NewInsert().Model(&b).Exec(ctx); err != nil {
				return err
			}
		}
		for i, box := range []string{"SO000001", "CM000002"} {
			p := models.Package{LotID: lots[0].ID, LotNumber: lots[0].LotNumber, BoxNumber: box, Type: models.ShellOn, Weight: 10 + float64(i), Grade: "A", QRPayload: "{}", PackedAt: now}
			if _, err := tx.NewInsert().Model(&p).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got.LotsByStatus[models.LotPending])
	assert.Equal(t, 1, got.LotsByStatus[models.LotProcessing])
	assert.Equal(t, 0, got.LotsByStatus[models.LotCompleted])
	assert.Equal(t, 2, got.PendingReceipts)
	assert.Equal(t, 42.5, got.PendingReceiptWeight)
	assert.Equal(t, 1, got.ActiveDepurations)
	assert.Equal(t, 2, got.Packages)
	assert.Equal(t, 21.0, got.PackagedWeight)
	assert.Equal(t, 2, got.UnshippedPackages)
	assert.Equal(t, 65.25, got.AverageYield)
	assert.Zero(t, got.QueuedUploads)
}

func TestSummaryYieldTrend(t *testing.T) {
	svc := newTestService(t)
	err := svc.DB.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		lot := models.Lot{LotNumber: "L2504020900001", ReceiptIDs: []int64{}, TotalWeight: 100, Status: models.LotProcessing, CreatedAt: now}
		if _, err := tx.NewInsert().Model(&lot).Exec(ctx); err != nil {
			return err
		}
		// inserted newest first to check the trend is date ordered
		for i, y := range []float64{91.456, 60, 85} {
			b := models.ProcessingBatch{LotID: lot.ID, LotNumber: lot.LotNumber, YieldPercentage: y, Status: models.BatchCompleted, Date: now.Add(-time.Duration(i) * time.Hour)}
			if _, err := tx.NewInsert().Model(&b).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 85.0, got.YieldTarget)
	require.Len(t, got.YieldTrend, 3)
	assert.Equal(t, 85.0, got.YieldTrend[0].Yield)
	assert.False(t, got.YieldTrend[0].BelowTarget)
	assert.Equal(t, 60.0, got.YieldTrend[1].Yield)
	assert.True(t, got.YieldTrend[1].BelowTarget)
	assert.Equal(t, 91.46, got.YieldTrend[2].Yield)
	assert.False(t, got.YieldTrend[2].BelowTarget)
	assert.Equal(t, "L2504020900001", got.YieldTrend[2].LotNumber)
	assert.True(t, got.YieldTrend[0].Date.Before(got.YieldTrend[2].Date))
}

func TestNotificationsQueryHandler(t *testing.T) {
	svc := newTestService(t)
	svc.Notify.Success("Lot created")
	svc.Notify.Error("Failed to save package")

	rec := httptest.NewRecorder()
	NotificationsQueryHandler(svc)(rec, httptest.NewRequest(http.MethodGet, "/api/notifications?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []notify.Notification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, notify.Error, got[0].Level)
	assert.Equal(t, "Failed to save package", got[0].Message)
}
