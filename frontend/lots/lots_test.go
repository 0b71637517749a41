package lots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"clamflow/frontend/shared/apperr"
	"clamflow/infrastructure/audit"
	"clamflow/infrastructure/live"
	"clamflow/infrastructure/metrics"
	"clamflow/infrastructure/notify"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

var now = time.Date(2025, 3, 1, 7, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "lots.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlite.ApplyEmbeddedMigrations(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	hub := live.NewHub(nil)
	db.SetChangeNotifier(hub)
	return NewService(db, audit.NewService(), metrics.New(), hub, notify.NewCenter(10, nil), nil)
}

func seedReceipts(t *testing.T, db *sqlite.DB, supplier string, weights ...float64) []int64 {
	t.Helper()
	var ids []int64
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		sup := models.Supplier{Name: supplier}
		if _, err := tx.NewInsert().Model(&sup).Exec(ctx); err != nil {
			return err
		}
		for _, w := range weights {
			rm := models.RawMaterialReceipt{SupplierID: sup.ID, Weight: w, Date: now, Status: models.ReceiptPending}
			if _, err := tx.NewInsert().Model(&rm).Exec(ctx); err != nil {
				return err
			}
			ids = append(ids, rm.ID)
		}
		return nil
	})
	require.NoError(t, err)
	return ids
}

func TestCreateLotSumsReceipts(t *testing.T) {
	svc := newTestService(t)
	svc.randN = func(int) int { return 42 }
	ctx := context.Background()
	ids := seedReceipts(t, svc.DB, "Bay Clams", 100, 50)

	lot, err := svc.CreateLot(ctx, CreateLotInput{ReceiptIDs: append(ids, ids[0]), Notes: " morning tide "}, now)
	require.NoError(t, err)
	assert.Equal(t, "L2503010730042", lot.LotNumber)
	assert.Equal(t, 150.0, lot.TotalWeight)
	assert.Equal(t, ids, lot.ReceiptIDs)
	assert.Equal(t, models.LotPending, lot.Status)
	assert.Equal(t, "morning tide", lot.Notes)

	var receipts []models.RawMaterialReceipt
	require.NoError(t, svc.DB.R.NewSelect().Model(&receipts).Scan(ctx))
	for _, r := range receipts {
		assert.Equal(t, models.ReceiptAssigned, r.Status)
		require.NotNil(t, r.LotNumber)
		assert.Equal(t, lot.LotNumber, *r.LotNumber)
	}

	history, err := audit.History(ctx, svc.DB.R, "lot", lot.LotNumber)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "lot.create", history[0].Action)
}

func TestCreateLotRejectsUnusableReceipts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ids := seedReceipts(t, svc.DB, "Bay Clams", 30, 20)

	_, err := svc.CreateLot(ctx, CreateLotInput{}, now)
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.CreateLot(ctx, CreateLotInput{ReceiptIDs: []int64{ids[0], 999}}, now)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.CreateLot(ctx, CreateLotInput{ReceiptIDs: ids[:1]}, now)
	require.NoError(t, err)

	_, err = svc.CreateLot(ctx, CreateLotInput{ReceiptIDs: ids}, now)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// The failed aggregation must leave the second receipt untouched.
	var second models.RawMaterialReceipt
	require.NoError(t, svc.DB.R.NewSelect().Model(&second).Where("id = ?", ids[1]).Scan(ctx))
	assert.Equal(t, models.ReceiptPending, second.Status)
	assert.Nil(t, second.LotNumber)

	n, err := svc.DB.R.NewSelect().Model((*models.Lot)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConcurrentOverlappingLotsClaimOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ids := seedReceipts(t, svc.DB, "Bay Clams", 10, 20, 30)

	inputs := []CreateLotInput{
		{ReceiptIDs: []int64{ids[0], ids[1]}},
		{ReceiptIDs: []int64{ids[1], ids[2]}},
	}
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.CreateLot(ctx, in, now)
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.Status(err) == http.StatusConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	assigned, err := svc.DB.R.NewSelect().Model((*models.RawMaterialReceipt)(nil)).Where("status = ?", models.ReceiptAssigned).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, assigned)
}

func TestListAndGetLot(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := seedReceipts(t, svc.DB, "Bay Clams", 40)
	b := seedReceipts(t, svc.DB, "Anchor Farms", 60)

	lot, err := svc.CreateLot(ctx, CreateLotInput{ReceiptIDs: []int64{a[0], b[0]}}, now)
	require.NoError(t, err)

	lots, err := svc.ListLots(ctx, models.LotPending)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, []string{"Anchor Farms", "Bay Clams"}, lots[0].Suppliers)
	assert.Len(t, lots[0].RawMaterials, 2)
	assert.Equal(t, models.DepurationPending, lots[0].DepurationStatus)

	none, err := svc.ListLots(ctx, models.LotCompleted)
	require.NoError(t, err)
	assert.Empty(t, none)

	detail, err := svc.GetLot(ctx, lot.LotNumber)
	require.NoError(t, err)
	assert.Equal(t, 100.0, detail.TotalWeight)
	assert.Nil(t, detail.Depuration)
	assert.Empty(t, detail.Batches)
	assert.Zero(t, detail.Packages)

	_, err = svc.GetLot(ctx, "L0000000000000")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSelectableLotsFollowDepuration(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ids := seedReceipts(t, svc.DB, "Bay Clams", 25)
	lot, err := svc.CreateLot(ctx, CreateLotInput{ReceiptIDs: ids}, now)
	require.NoError(t, err)

	forDepuration, err := svc.SelectableLots(ctx, StageDepuration)
	require.NoError(t, err)
	require.Len(t, forDepuration, 1)
	forProcessing, err := svc.SelectableLots(ctx, StageProcessing)
	require.NoError(t, err)
	assert.Empty(t, forProcessing)

	err = svc.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		done := now.Add(3 * time.Hour)
		dep := models.Depuration{
			LotID:       lot.ID,
			Status:      models.DepurationCompleted,
			TankNumber:  "T1",
			StartedAt:   now,
			CompletedAt: &done,
		}
		_, err := tx.NewInsert().Model(&dep).Exec(ctx)
		return err
	})
	require.NoError(t, err)

	forDepuration, err = svc.SelectableLots(ctx, StageDepuration)
	require.NoError(t, err)
	assert.Empty(t, forDepuration)
	forProcessing, err = svc.SelectableLots(ctx, StageProcessing)
	require.NoError(t, err)
	require.Len(t, forProcessing, 1)
	assert.Equal(t, models.DepurationCompleted, forProcessing[0].DepurationStatus)

	forRelease, err := svc.SelectableLots(ctx, StageRelease)
	require.NoError(t, err)
	assert.Empty(t, forRelease)

	_, err = svc.SelectableLots(ctx, Stage("shipping"))
	assert.True(t, apperr.IsValidation(err))
}

func TestAdvanceStatusOnlyMovesForward(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ids := seedReceipts(t, svc.DB, "Bay Clams", 25)
	lot, err := svc.CreateLot(ctx, CreateLotInput{ReceiptIDs: ids}, now)
	require.NoError(t, err)

	err = svc.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return AdvanceStatus(ctx, tx, lot, models.LotProcessing, now)
	})
	require.NoError(t, err)

	// lot still carries the stale pending status, so the swap must fail.
	err = svc.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return AdvanceStatus(ctx, tx, lot, models.LotCompleted, now)
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	lot.Status = models.LotProcessing
	err = svc.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return AdvanceStatus(ctx, tx, lot, models.LotPending, now)
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestLiveLotsReemitAfterCommit(t *testing.T) {
	svc := newTestService(t)
	ids := seedReceipts(t, svc.DB, "Bay Clams", 12)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan []LotSummary, 4)
	done := make(chan error, 1)
	go func() {
		done <- svc.LiveLots("").Watch(ctx, svc.Hub, func(v []LotSummary) error {
			results <- v
			return nil
		})
	}()

	select {
	case first := <-results:
		assert.Empty(t, first)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial result")
	}

	_, err := svc.CreateLot(context.Background(), CreateLotInput{ReceiptIDs: ids}, now)
	require.NoError(t, err)

	select {
	case next := <-results:
		require.Len(t, next, 1)
		assert.Equal(t, 12.0, next[0].TotalWeight)
	case <-time.After(2 * time.Second):
		t.Fatal("no result after commit")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestCreateLotHandler(t *testing.T) {
	svc := newTestService(t)
	ids := seedReceipts(t, svc.DB, "Bay Clams", 5)
	r := chi.NewRouter()
	r.Post("/api/lots", CreateLotCommandHandler(svc))
	r.Get("/api/lots/{lotNumber}", GetLotQueryHandler(svc))

	body := `{"receiptIds":[` + strconv.FormatInt(ids[0], 10) + `]}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/lots", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalWeight":5`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/lots", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, notify.Error, svc.Notify.Recent(1)[0].Level)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lots/L404", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
