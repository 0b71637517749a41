package admin

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/uptrace/bun"
	"github.com/xuri/excelize/v2"

	"clamflow/frontend/shared/apperr"
	"clamflow/models"
)

// ImportSummary counts the outcome of one supplier import.
type ImportSummary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Errors   int `json:"errors"`
}

var supplierImportHeader = []string{"name", "contact", "license_number"}

// readCSVRows returns every record after a validated header. Malformed
// records come back as nil so the caller can count them.
func readCSVRows(reader io.Reader) ([][]string, error) {
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, apperr.Invalid("read header: " + err.Error())
	}
	if err := checkImportHeader(header); err != nil {
		return nil, err
	}
	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rows = append(rows, nil)
				continue
			}
			return nil, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readXLSXRows(reader io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, apperr.Invalid("open workbook: " + err.Error())
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Invalid("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, apperr.Invalid("workbook is empty")
	}
	if err := checkImportHeader(rows[0]); err != nil {
		return nil, err
	}
	return rows[1:], nil
}

func checkImportHeader(header []string) error {
	if len(header) < 1 || !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff")), "name") {
		return apperr.Invalid("invalid header; expected " + strings.Join(supplierImportHeader, ","))
	}
	return nil
}

func cell(record []string, i int) string {
	if i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}

// ImportSuppliers upserts suppliers by case-insensitive name. The file is a
// CSV, or an XLSX workbook when xlsx is set, with the header
// name,contact,license_number. Rows without a name count as errors.
func (s *Service) ImportSuppliers(ctx context.Context, operatorID int64, reader io.Reader, xlsx bool) (ImportSummary, error) {
	var (
		rows [][]string
		err  error
	)
	if xlsx {
		rows, err = readXLSXRows(reader)
	} else {
		rows, err = readCSVRows(reader)
	}
	if err != nil {
		return ImportSummary{}, err
	}

	summary := ImportSummary{}
	err = s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		for _, record := range rows {
			name := cell(record, 0)
			if name == "" {
				summary.Errors++
				continue
			}
			in := models.Supplier{Name: name, Contact: cell(record, 1), LicenseNumber: cell(record, 2)}

			var existing models.Supplier
			err := tx.NewSelect().Model(&existing).Where("lower(name) = lower(?)", name).OrderExpr("id ASC").Limit(1).Scan(ctx)
			switch {
			case apperr.IsNoRows(err):
				if _, err := tx.NewInsert().Model(&in).Exec(ctx); err != nil {
					return fmt.Errorf("insert supplier %q: %w", name, err)
				}
				summary.Inserted++
			case err != nil:
				return err
			default:
				in.ID = existing.ID
				in.CreatedAt = existing.CreatedAt
				if _, err := tx.NewUpdate().Model(&in).Column("contact", "license_number").WherePK().Exec(ctx); err != nil {
					return fmt.Errorf("update supplier %q: %w", name, err)
				}
				summary.Updated++
			}
		}
		after := map[string]any{"inserted": summary.Inserted, "updated": summary.Updated, "errors": summary.Errors}
		return s.Audit.Write(ctx, tx, operatorID, "supplier.import", "supplier", "import", nil, after)
	})
	if err != nil {
		return ImportSummary{}, err
	}
	return summary, nil
}
