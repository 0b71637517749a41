package packaging

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"clamflow/frontend/admin"
	"clamflow/frontend/lots"
	"clamflow/frontend/shared/apperr"
	sessioncontext "clamflow/frontend/shared/context"
	"clamflow/models"
)

func (in PackageInput) normalize() (PackageInput, error) {
	in.LotNumber = strings.TrimSpace(in.LotNumber)
	in.BoxNumber = strings.TrimSpace(in.BoxNumber)
	in.Grade = strings.ToUpper(strings.TrimSpace(in.Grade))
	var fields []string
	if in.LotNumber == "" {
		fields = append(fields, "lotNumber")
	}
	if !boxNumberRe.MatchString(in.BoxNumber) {
		fields = append(fields, "boxNumber")
	}
	if !in.Type.Valid() {
		fields = append(fields, "type")
	}
	if in.Weight <= 0 || in.Weight > MaxBoxWeight || math.IsNaN(in.Weight) {
		fields = append(fields, "weight")
	}
	if in.Grade == "" {
		fields = append(fields, "grade")
	}
	if len(fields) > 0 {
		return in, apperr.Invalid(
			fmt.Sprintf("box number must be two capital letters and six digits and weight must be above 0 and at most %.0f kg", MaxBoxWeight),
			fields...,
		)
	}
	return in, nil
}

// CreatePackage labels a box of a lot that is in processing.
func (s *Service) CreatePackage(ctx context.Context, in PackageInput, now time.Time) (models.Package, error) {
	in, err := in.normalize()
	if err != nil {
		return models.Package{}, err
	}
	packedAt := in.Date
	if packedAt.IsZero() {
		packedAt = now
	}

	var pkg models.Package
	err = s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		lot, err := lots.FindByNumber(ctx, tx, in.LotNumber)
		if err != nil {
			return err
		}
		if lot.Status != models.LotProcessing {
			return apperr.Transition("lot %s is %s; only lots in processing can be packed", lot.LotNumber, lot.Status)
		}
		ok, err := admin.GradeExists(ctx, tx, in.Type, in.Grade)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Invalid(fmt.Sprintf("grade %s is not defined for %s", in.Grade, in.Type), "grade")
		}
		taken, err := tx.NewSelect().Model((*models.Package)(nil)).Where("box_number = ?", in.BoxNumber).Exists(ctx)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("box %s is already packed", in.BoxNumber)
		}

		pkg = models.Package{
			LotID:     lot.ID,
			LotNumber: lot.LotNumber,
			BoxNumber: in.BoxNumber,
			Type:      in.Type,
			Weight:    in.Weight,
			Grade:     in.Grade,
			PackedAt:  packedAt.UTC(),
		}
		if pkg.QRPayload, err = BuildQRPayload(pkg); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(&pkg).Exec(ctx); err != nil {
			return fmt.Errorf("insert package: %w", err)
		}
		return s.Audit.Write(ctx, tx, sessioncontext.OperatorID(ctx), "package.create", "package", pkg.BoxNumber, nil, pkg)
	})
	if err != nil {
		return models.Package{}, err
	}
	s.Metrics.PackageCreated(string(pkg.Type))
	s.Log.Info("package created", zap.String("box_number", pkg.BoxNumber), zap.String("lot_number", pkg.LotNumber))
	return pkg, nil
}

// ListPackages returns packages newest first. Empty lotNumber lists all;
// unshipped limits the list to packages not yet on a shipment.
func (s *Service) ListPackages(ctx context.Context, lotNumber string, unshipped bool) ([]models.Package, error) {
	packages := []models.Package{}
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&packages).OrderExpr("pk.packed_at DESC, pk.id DESC")
		if lotNumber = strings.TrimSpace(lotNumber); lotNumber != "" {
			q = q.Where("pk.lot_number = ?", lotNumber)
		}
		if unshipped {
			q = q.Where("pk.shipment_id IS NULL")
		}
		return q.Scan(ctx)
	})
	return packages, err
}

// PackagesByBox loads packages in the order of boxNumbers.
func (s *Service) PackagesByBox(ctx context.Context, boxNumbers []string) ([]models.Package, error) {
	want := make([]string, 0, len(boxNumbers))
	seen := map[string]struct{}{}
	for _, b := range boxNumbers {
		b = strings.TrimSpace(b)
		if _, dup := seen[b]; b == "" || dup {
			continue
		}
		seen[b] = struct{}{}
		want = append(want, b)
	}
	if len(want) == 0 {
		return nil, apperr.Invalid("select at least one box", "boxNumbers")
	}

	var found []models.Package
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&found).Where("box_number IN (?)", bun.In(want)).Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	byBox := make(map[string]models.Package, len(found))
	for _, p := range found {
		byBox[p.BoxNumber] = p
	}
	out := make([]models.Package, 0, len(want))
	var missing []string
	for _, b := range want {
		p, ok := byBox[b]
		if !ok {
			missing = append(missing, b)
			continue
		}
		out = append(out, p)
	}
	if len(missing) > 0 {
		return nil, apperr.NotFound("packages", strings.Join(missing, ","))
	}
	return out, nil
}

// BuildPackingList aggregates packages for a shipment. It does not touch the store.
func BuildPackingList(packages []models.Package, in ShipmentInput, now time.Time) PackingList {
	pl := PackingList{
		CustomerName:  strings.TrimSpace(in.CustomerName),
		Destination:   strings.TrimSpace(in.Destination),
		TransportMode: in.TransportMode,
		VehicleNumber: strings.TrimSpace(in.VehicleNumber),
		Notes:         strings.TrimSpace(in.Notes),
		Date:          now.UTC(),
		Items:         packages,
		BoxCount:      len(packages),
		Totals:        []TypeTotal{},
	}
	if pl.Items == nil {
		pl.Items = []models.Package{}
	}
	byType := map[models.ProductType]*TypeTotal{}
	for _, p := range packages {
		pl.TotalWeight += p.Weight
		t, ok := byType[p.Type]
		if !ok {
			t = &TypeTotal{Type: p.Type}
			byType[p.Type] = t
		}
		t.Boxes++
		t.Weight += p.Weight
	}
	pl.TotalWeight = math.Round(pl.TotalWeight*100) / 100
	for _, t := range byType {
		t.Weight = math.Round(t.Weight*100) / 100
		pl.Totals = append(pl.Totals, *t)
	}
	sort.Slice(pl.Totals, func(i, j int) bool { return pl.Totals[i].Type > pl.Totals[j].Type })
	return pl
}

func (in ShipmentInput) validate() error {
	var fields []string
	if strings.TrimSpace(in.CustomerName) == "" {
		fields = append(fields, "customerName")
	}
	if strings.TrimSpace(in.Destination) == "" {
		fields = append(fields, "destination")
	}
	if !in.TransportMode.Valid() {
		fields = append(fields, "transportMode")
	}
	if len(fields) > 0 {
		return apperr.Invalid("customer, destination and a road, air or sea transport mode are required", fields...)
	}
	return nil
}

// PrepareShipment builds the packing list for the selected boxes and then
// tries to record the shipment. Recording is best effort: a failure is logged
// and reported through Recorded=false, never as an error.
func (s *Service) PrepareShipment(ctx context.Context, in ShipmentInput, now time.Time) (PackingList, error) {
	if err := in.validate(); err != nil {
		return PackingList{}, err
	}
	packages, err := s.PackagesByBox(ctx, in.BoxNumbers)
	if err != nil {
		return PackingList{}, err
	}
	pl := BuildPackingList(packages, in, now)

	id, err := s.recordShipment(ctx, pl)
	if err != nil {
		s.Log.Warn("shipment not recorded", zap.String("customer", pl.CustomerName), zap.Int("boxes", pl.BoxCount), zap.Error(err))
		s.Notify.Error("Packing list generated but the shipment could not be recorded")
		return pl, nil
	}
	pl.ShipmentID = id
	pl.Recorded = true
	return pl, nil
}

func (s *Service) recordShipment(ctx context.Context, pl PackingList) (int64, error) {
	shipment := models.Shipment{
		CustomerName:  pl.CustomerName,
		Destination:   pl.Destination,
		TransportMode: string(pl.TransportMode),
		VehicleNumber: pl.VehicleNumber,
		Notes:         pl.Notes,
		BoxCount:      pl.BoxCount,
		TotalWeight:   pl.TotalWeight,
		CreatedAt:     pl.Date,
	}
	boxes := make([]string, len(pl.Items))
	for i, p := range pl.Items {
		boxes[i] = p.BoxNumber
	}
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&shipment).Exec(ctx); err != nil {
			return fmt.Errorf("insert shipment: %w", err)
		}
		if _, err := tx.NewUpdate().
			Model((*models.Package)(nil)).
			Set("shipment_id = ?", shipment.ID).
			Where("box_number IN (?)", bun.In(boxes)).
			Exec(ctx); err != nil {
			return fmt.Errorf("tag packages: %w", err)
		}
		return s.Audit.Write(ctx, tx, sessioncontext.OperatorID(ctx), "shipment.create", "shipment", fmt.Sprint(shipment.ID), nil, shipment)
	})
	return shipment.ID, err
}

func (s *Service) ListShipments(ctx context.Context) ([]models.Shipment, error) {
	shipments := []models.Shipment{}
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&shipments).OrderExpr("sh.created_at DESC, sh.id DESC").Scan(ctx)
	})
	return shipments, err
}

// ShipmentPackingList rebuilds the packing list of a recorded shipment.
func (s *Service) ShipmentPackingList(ctx context.Context, id int64) (PackingList, error) {
	var (
		shipment models.Shipment
		packages []models.Package
	)
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(&shipment).Where("id = ?", id).Scan(ctx); err != nil {
			return apperr.NoRows(err, "shipment", id)
		}
		return tx.NewSelect().Model(&packages).Where("shipment_id = ?", id).OrderExpr("pk.box_number ASC").Scan(ctx)
	})
	if err != nil {
		return PackingList{}, err
	}
	pl := BuildPackingList(packages, ShipmentInput{
		CustomerName:  shipment.CustomerName,
		Destination:   shipment.Destination,
		TransportMode: TransportMode(shipment.TransportMode),
		VehicleNumber: shipment.VehicleNumber,
		Notes:         shipment.Notes,
	}, shipment.CreatedAt)
	pl.ShipmentID = shipment.ID
	pl.Recorded = true
	return pl, nil
}
