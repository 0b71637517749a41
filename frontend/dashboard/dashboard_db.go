package dashboard

import (
	"context"
	"fmt"
	"math"

	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	"clamflow/models"
)

// Summary runs each aggregate in its own read transaction, in parallel.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	out := Summary{
		LotsByStatus: map[models.LotStatus]int{
			models.LotPending:    0,
			models.LotProcessing: 0,
			models.LotCompleted:  0,
		},
		YieldTarget: YieldTarget,
		YieldTrend:  []YieldPoint{},
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var rows []struct {
			Status models.LotStatus `bun:"status"`
			N      int              `bun:"n"`
		}
		err := s.DB.WithReadTx(gCtx, func(ctx context.Context, tx bun.Tx) error {
			return tx.NewSelect().
				Model((*models.Lot)(nil)).
				ColumnExpr("l.status, COUNT(*) AS n").
				GroupExpr("l.status").
				Scan(ctx, &rows)
		})
		if err != nil {
			return fmt.Errorf("lots: %w", err)
		}
		for _, r := range rows {
			out.LotsByStatus[r.Status] = r.N
		}
		return nil
	})
	g.Go(func() error {
		var row struct {
			N      int     `bun:"n"`
			Weight float64 `bun:"weight"`
		}
		err := s.DB.WithReadTx(gCtx, func(ctx context.Context, tx bun.Tx) error {
			return tx.NewSelect().
				Model((*models.RawMaterialReceipt)(nil)).
				ColumnExpr("COUNT(*) AS n, COALESCE(SUM(rm.weight), 0.0) AS weight").
				Where("rm.status = ?", models.ReceiptPending).
				Scan(ctx, &row)
		})
		if err != nil {
			return fmt.Errorf("receipts: %w", err)
		}
		out.PendingReceipts, out.PendingReceiptWeight = row.N, round2(row.Weight)
		return nil
	})
	g.Go(func() error {
		var row struct {
			N         int     `bun:"n"`
			Weight    float64 `bun:"weight"`
			Unshipped int     `bun:"unshipped"`
		}
		err := s.DB.WithReadTx(gCtx, func(ctx context.Context, tx bun.Tx) error {
			return tx.NewSelect().
				Model((*models.Package)(nil)).
				ColumnExpr("COUNT(*) AS n, COALESCE(SUM(pk.weight), 0.0) AS weight").
				ColumnExpr("COALESCE(SUM(CASE WHEN pk.shipment_id IS NULL THEN 1 ELSE 0 END), 0) AS unshipped").
				Scan(ctx, &row)
		})
		if err != nil {
			return fmt.Errorf("packages: %w", err)
		}
		out.Packages, out.PackagedWeight, out.UnshippedPackages = row.N, round2(row.Weight), row.Unshipped
		return nil
	})
	g.Go(func() error {
		var avg float64
		err := s.DB.WithReadTx(gCtx, func(ctx context.Context, tx bun.Tx) error {
			return tx.NewSelect().
				Model((*models.ProcessingBatch)(nil)).
				ColumnExpr("COALESCE(AVG(pb.yield_percentage), 0.0)").
				Scan(ctx, &avg)
		})
		if err != nil {
			return fmt.Errorf("yield: %w", err)
		}
		out.AverageYield = round2(avg)
		return nil
	})
	g.Go(func() error {
		var active, queued int
		err := s.DB.WithReadTx(gCtx, func(ctx context.Context, tx bun.Tx) error {
			var err error
			active, err = tx.NewSelect().
				Model((*models.Depuration)(nil)).
				Where("d.status = ?", models.DepurationInProgress).
				Count(ctx)
			if err != nil {
				return err
			}
			queued, err = tx.NewSelect().Model((*models.PendingUpload)(nil)).Count(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("activity: %w", err)
		}
		out.ActiveDepurations, out.QueuedUploads = active, queued
		return nil
	})

	g.Go(func() error {
		trend, err := s.yieldTrend(gCtx)
		if err != nil {
			return fmt.Errorf("yield trend: %w", err)
		}
		out.YieldTrend = trend
		return nil
	})

	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("dashboard summary: %w", err)
	}
	return out, nil
}

// yieldTrend returns the latest batches oldest first, so the chart reads left to right.
func (s *Service) yieldTrend(ctx context.Context) ([]YieldPoint, error) {
	var batches []models.ProcessingBatch
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(&batches).
			Column("pb.lot_number", "pb.date", "pb.yield_percentage").
			OrderExpr("pb.date DESC, pb.id DESC").
			Limit(yieldTrendLimit).
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	points := make([]YieldPoint, 0, len(batches))
	for i := len(batches) - 1; i >= 0; i-- {
		b := batches[i]
		points = append(points, YieldPoint{
			LotNumber:   b.LotNumber,
			Date:        b.Date,
			Yield:       round2(b.YieldPercentage),
			BelowTarget: b.YieldPercentage < YieldTarget,
		})
	}
	return points, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
