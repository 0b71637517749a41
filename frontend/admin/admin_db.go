package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/uptrace/bun"

	"clamflow/frontend/shared/apperr"
	"clamflow/models"
)

func (in SupplierInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Invalid("supplier name is required", "name")
	}
	return nil
}

func (s *Service) CreateSupplier(ctx context.Context, operatorID int64, in SupplierInput) (models.Supplier, error) {
	if err := in.validate(); err != nil {
		return models.Supplier{}, err
	}
	sup := models.Supplier{
		Name:          strings.TrimSpace(in.Name),
		Contact:       strings.TrimSpace(in.Contact),
		LicenseNumber: strings.TrimSpace(in.LicenseNumber),
	}
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&sup).Exec(ctx); err != nil {
			return fmt.Errorf("insert supplier: %w", err)
		}
		return s.Audit.Write(ctx, tx, operatorID, "supplier.create", "supplier", strconv.FormatInt(sup.ID, 10), nil, sup)
	})
	return sup, err
}

func (s *Service) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	var out []models.Supplier
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&out).OrderExpr("name ASC, id ASC").Scan(ctx)
	})
	return out, err
}

// loadUnreferencedSupplier returns the supplier only while no receipt or purchase order points at it.
func loadUnreferencedSupplier(ctx context.Context, tx bun.Tx, id int64) (models.Supplier, error) {
	var sup models.Supplier
	if err := tx.NewSelect().Model(&sup).Where("id = ?", id).Scan(ctx); err != nil {
		return sup, apperr.NoRows(err, "supplier", id)
	}
	receipts, err := tx.NewSelect().Model((*models.RawMaterialReceipt)(nil)).Where("supplier_id = ?", id).Count(ctx)
	if err != nil {
		return sup, err
	}
	orders, err := tx.NewSelect().Model((*models.PurchaseOrder)(nil)).Where("supplier_id = ?", id).Count(ctx)
	if err != nil {
		return sup, err
	}
	if receipts+orders > 0 {
		return sup, apperr.Conflict("supplier %d is referenced by %d receipts and %d purchase orders", id, receipts, orders)
	}
	return sup, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, operatorID, id int64, in SupplierInput) (models.Supplier, error) {
	if err := in.validate(); err != nil {
		return models.Supplier{}, err
	}
	var updated models.Supplier
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		before, err := loadUnreferencedSupplier(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = before
		updated.Name = strings.TrimSpace(in.Name)
		updated.Contact = strings.TrimSpace(in.Contact)
		updated.LicenseNumber = strings.TrimSpace(in.LicenseNumber)
		if _, err := tx.NewUpdate().Model(&updated).Column("name", "contact", "license_number").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update supplier: %w", err)
		}
		return s.Audit.Write(ctx, tx, operatorID, "supplier.update", "supplier", strconv.FormatInt(id, 10), before, updated)
	})
	return updated, err
}

func (s *Service) DeleteSupplier(ctx context.Context, operatorID, id int64) error {
	return s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		before, err := loadUnreferencedSupplier(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model(&before).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("delete supplier: %w", err)
		}
		return s.Audit.Write(ctx, tx, operatorID, "supplier.delete", "supplier", strconv.FormatInt(id, 10), before, nil)
	})
}

func (in GradeInput) normalize() (GradeInput, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	var missing []string
	if in.Code == "" {
		missing = append(missing, "code")
	}
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if !in.ProductType.Valid() {
		missing = append(missing, "productType")
	}
	if len(missing) > 0 {
		return in, apperr.Invalid("grade code, name and a valid product type are required", missing...)
	}
	return in, nil
}

// GradeExists reports whether code is a defined grade for productType.
func GradeExists(ctx context.Context, db bun.IDB, productType models.ProductType, code string) (bool, error) {
	return db.NewSelect().
		Model((*models.ProductGrade)(nil)).
		Where("product_type = ?", productType).
		Where("code = ?", code).
		Exists(ctx)
}

func (s *Service) CreateGrade(ctx context.Context, operatorID int64, in GradeInput) (models.ProductGrade, error) {
	in, err := in.normalize()
	if err != nil {
		return models.ProductGrade{}, err
	}
	grade := models.ProductGrade{Code: in.Code, Name: in.Name, Description: in.Description, ProductType: in.ProductType}
	err = s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := GradeExists(ctx, tx, in.ProductType, in.Code)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("grade %s already defined for %s", in.Code, in.ProductType)
		}
		if _, err := tx.NewInsert().Model(&grade).Exec(ctx); err != nil {
			return fmt.Errorf("insert grade: %w", err)
		}
		return s.Audit.Write(ctx, tx, operatorID, "grade.create", "product_grade", strconv.FormatInt(grade.ID, 10), nil, grade)
	})
	if err == nil {
		s.Grades.Invalidate()
	}
	return grade, err
}

// ListGrades serves from the grade cache, loading it on a miss.
func (s *Service) ListGrades(ctx context.Context, productType models.ProductType) ([]models.ProductGrade, error) {
	if grades, ok := s.Grades.Get(productType); ok {
		return grades, nil
	}
	var all []models.ProductGrade
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&all).Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	s.Grades.Set(all)
	grades, _ := s.Grades.Get(productType)
	return grades, nil
}

// DeleteGrade refuses while any box or package still carries the grade.
func (s *Service) DeleteGrade(ctx context.Context, operatorID, id int64) error {
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var grade models.ProductGrade
		if err := tx.NewSelect().Model(&grade).Where("id = ?", id).Scan(ctx); err != nil {
			return apperr.NoRows(err, "grade", id)
		}
		boxes, err := tx.NewSelect().Model((*models.Box)(nil)).
			Where("grade = ?", grade.Code).Where("type = ?", grade.ProductType).Count(ctx)
		if err != nil {
			return err
		}
		packages, err := tx.NewSelect().Model((*models.Package)(nil)).
			Where("grade = ?", grade.Code).Where("type = ?", grade.ProductType).Count(ctx)
		if err != nil {
			return err
		}
		if boxes+packages > 0 {
			return apperr.Conflict("grade %s (%s) is used by %d boxes and %d packages", grade.Code, grade.ProductType, boxes, packages)
		}
		if _, err := tx.NewDelete().Model(&grade).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("delete grade: %w", err)
		}
		return s.Audit.Write(ctx, tx, operatorID, "grade.delete", "product_grade", strconv.FormatInt(id, 10), grade, nil)
	})
	if err == nil {
		s.Grades.Invalidate()
	}
	return err
}

// SeedDefaultGrades inserts the standard grades that are not yet defined and
// returns how many were added.
func (s *Service) SeedDefaultGrades(ctx context.Context) (int, error) {
	added := 0
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		for _, in := range defaultGrades {
			exists, err := GradeExists(ctx, tx, in.ProductType, in.Code)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			grade := models.ProductGrade{Code: in.Code, Name: in.Name, Description: in.Description, ProductType: in.ProductType}
			if _, err := tx.NewInsert().Model(&grade).Exec(ctx); err != nil {
				return fmt.Errorf("seed grade %s/%s: %w", in.ProductType, in.Code, err)
			}
			added++
		}
		return nil
	})
	if err == nil && added > 0 {
		s.Grades.Invalidate()
	}
	return added, err
}
