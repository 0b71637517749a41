package exports

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/xuri/excelize/v2"

	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

var now = time.Date(2025, 3, 5, 8, 15, 30, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "exports.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlite.ApplyEmbeddedMigrations(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewService(db, nil)
}

func seed(t *testing.T, db *sqlite.DB) {
	t.Helper()
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		sup := models.Supplier{Name: "Bay, Clams & Co"}
		if _, err := tx.NewInsert().Model(&sup).Exec(ctx); err != nil {
			return err
		}
		lotNumber := "L2503050815001"
		for _, w := range []float64{100, 50} {
			rm := models.RawMaterialReceipt{SupplierID: sup.ID, Weight: w, Date: now, Status: models.ReceiptAssigned, LotNumber: &lotNumber}
			if _, err := tx.NewInsert().Model(&rm).Exec(ctx); err != nil {
				return err
			}
		}
		lot := models.Lot{LotNumber: lotNumber, ReceiptIDs: []int64{1, 2}, TotalWeight: 150, Notes: `tide "high"`, Status: models.LotProcessing, CreatedAt: now}
		if _, err := tx.NewInsert().Model(&lot).Exec(ctx); err != nil {
			return err
		}
		batch := models.ProcessingBatch{LotID: lot.ID, LotNumber: lotNumber, ShellOnWeight: 60, MeatWeight: 30, YieldPercentage: 60, Status: models.BatchCompleted, Date: now}
		_, err := tx.NewInsert().Model(&batch).Exec(ctx)
		return err
	})
	require.NoError(t, err)
}

func TestCSVRoundTrip(t *testing.T) {
	released := now.Add(48 * time.Hour)
	var records []map[string]any
	for i := range 25 {
		records = append(records, map[string]any{
			"lotNumber":   fmt.Sprintf("L25030508%06d", i),
			"totalWeight": 100.5 + float64(i),
			"notes":       fmt.Sprintf("line %d, with \"quotes\"\nand a newline", i),
			"createdAt":   now.Add(time.Duration(i) * time.Minute),
			"releasedAt":  &released,
			"passed":      i%2 == 0,
			"shipmentId":  nil,
		})
	}
	table := TableFromRecords(records)
	assert.Equal(t, []string{"createdAt", "lotNumber", "notes", "passed", "releasedAt", "shipmentId", "totalWeight"}, table.Columns)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))
	parsed, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, len(records))

	for i, rec := range records {
		for k, v := range rec {
			assert.Equal(t, FormatCell(v), parsed[i][k], "record %d field %s", i, k)
		}
	}
	assert.Equal(t, "2025-03-05 08:16:30", parsed[1]["createdAt"])
	assert.Equal(t, "2025-03-07 08:15:30", parsed[0]["releasedAt"])
	assert.Equal(t, "101.5", parsed[1]["totalWeight"])
	assert.Equal(t, "", parsed[0]["shipmentId"])
}

func TestEmptyExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, TableFromRecords(nil)))
	assert.Zero(t, buf.Len())
	rows, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoadLots(t *testing.T) {
	svc := newTestService(t)
	seed(t, svc.DB)

	table, err := svc.Load(context.Background(), KindLots)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	row := map[string]any{}
	for i, c := range table.Columns {
		row[c] = table.Rows[0][i]
	}
	assert.Equal(t, "L2503050815001", row["lotNumber"])
	assert.Equal(t, "Bay, Clams & Co", row["suppliers"])
	assert.Equal(t, 2, row["receiptCount"])
	assert.Equal(t, string(models.DepurationPending), row["depurationStatus"])
	assert.Equal(t, 1, row["batchCount"])
	assert.Equal(t, 60.0, row["averageYield"])
}

func TestLoadLotsWithoutBatches(t *testing.T) {
	svc := newTestService(t)
	seed(t, svc.DB)
	err := svc.DB.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		fresh := models.Lot{LotNumber: "L2503051200002", ReceiptIDs: []int64{}, TotalWeight: 42.5, Status: models.LotPending, CreatedAt: now.Add(time.Hour)}
		_, err := tx.NewInsert().Model(&fresh).Exec(ctx)
		return err
	})
	require.NoError(t, err)

	table, err := svc.Load(context.Background(), KindLots)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	row := map[string]any{}
	for i, c := range table.Columns {
		row[c] = table.Rows[1][i]
	}
	assert.Equal(t, "L2503051200002", row["lotNumber"])
	assert.Equal(t, 0, row["batchCount"])
	assert.Equal(t, 0.0, row["averageYield"])
	assert.Equal(t, "", row["suppliers"])

	r := chi.NewRouter()
	r.Get("/api/exports/{kind}", ExportHandler(svc))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exports/lots", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rows, err := ReadCSV(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "0", rows[1]["averageYield"])
}

func TestExportHandler(t *testing.T) {
	svc := newTestService(t)
	seed(t, svc.DB)
	r := chi.NewRouter()
	r.Get("/api/exports/{kind}", ExportHandler(svc))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exports/receipts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	rows, err := ReadCSV(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bay, Clams & Co", rows[0]["supplier"])
	assert.Equal(t, "2025-03-05 08:15:30", rows[0]["date"])
	assert.Equal(t, "L2503050815001", rows[1]["lotNumber"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exports/processing?format=xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	sheetRows, err := f.GetRows("processing")
	require.NoError(t, err)
	require.Len(t, sheetRows, 2)
	assert.Equal(t, "lotNumber", sheetRows[0][1])
	assert.Equal(t, "L2503050815001", sheetRows[1][1])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exports/pallets", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exports/lots?format=pdf", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	runs, err := svc.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "xlsx", runs[0].Format)
	assert.Equal(t, 2, runs[1].RowCount)
}
