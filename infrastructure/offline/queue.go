package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"clamflow/frontend/shared/apperr"
	"clamflow/infrastructure/metrics"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

// Replayer resubmits one parked payload through its normal write path.
type Replayer func(ctx context.Context, payload json.RawMessage) error

// DrainResult summarises one pass over the queue.
type DrainResult struct {
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
	Dropped  int `json:"dropped"`
	Skipped  int `json:"skipped"`
}

// Queue parks submissions whose persistence failed so they can be replayed later.
type Queue struct {
	db      *sqlite.DB
	metrics *metrics.Registry
	log     *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	replayers map[models.UploadType]Replayer
	draining  sync.Mutex
}

func NewQueue(db *sqlite.DB, m *metrics.Registry, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		db:        db,
		metrics:   m,
		log:       log,
		now:       time.Now,
		replayers: make(map[models.UploadType]Replayer),
	}
}

// Register installs the replayer for an upload type, replacing any previous one.
func (q *Queue) Register(t models.UploadType, fn Replayer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.replayers[t] = fn
}

func (q *Queue) replayer(t models.UploadType) (Replayer, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	fn, ok := q.replayers[t]
	return fn, ok
}

// Enqueue stores payload as JSON under a fresh id.
func (q *Queue) Enqueue(ctx context.Context, t models.UploadType, payload any) (models.PendingUpload, error) {
	if _, err := models.ParseUploadType(string(t)); err != nil {
		return models.PendingUpload{}, apperr.Invalid(err.Error(), "type")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return models.PendingUpload{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	entry := models.PendingUpload{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   string(data),
		Timestamp: q.now().UTC(),
	}
	err = q.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&entry).Exec(ctx)
		return err
	})
	if err != nil {
		return models.PendingUpload{}, fmt.Errorf("enqueue %s: %w", t, err)
	}
	q.metrics.Enqueued(string(t))
	q.log.Warn("submission parked for retry", zap.String("id", entry.ID), zap.String("type", string(t)))
	q.refreshDepth(ctx)
	return entry, nil
}

// List returns parked entries, oldest first.
func (q *Queue) List(ctx context.Context) ([]models.PendingUpload, error) {
	var out []models.PendingUpload
	err := q.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&out).OrderExpr("timestamp ASC, id ASC").Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list pending uploads: %w", err)
	}
	return out, nil
}

func (q *Queue) Remove(ctx context.Context, id string) error {
	var n int64
	err := q.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*models.PendingUpload)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("remove pending upload %s: %w", id, err)
	}
	if n == 0 {
		return apperr.NotFound("pending upload", id)
	}
	q.refreshDepth(ctx)
	return nil
}

// Drain replays every parked entry once. Successful and permanently rejected
// entries leave the queue; retryable failures stay with attempts incremented.
// Concurrent calls return immediately with an empty result.
func (q *Queue) Drain(ctx context.Context) (DrainResult, error) {
	var res DrainResult
	if !q.draining.TryLock() {
		return res, nil
	}
	defer q.draining.Unlock()

	entries, err := q.List(ctx)
	if err != nil {
		return res, err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		fn, ok := q.replayer(entry.Type)
		if !ok {
			res.Skipped++
			continue
		}
		log := q.log.With(zap.String("id", entry.ID), zap.String("type", string(entry.Type)))

		replayErr := fn(ctx, json.RawMessage(entry.Payload))
		switch {
		case replayErr == nil:
			if err := q.Remove(ctx, entry.ID); err != nil {
				return res, err
			}
			res.Replayed++
			q.metrics.Replayed(string(entry.Type), "replayed")
			log.Info("parked submission replayed")
		case apperr.IsRetryable(replayErr):
			if err := q.recordFailure(ctx, entry.ID, replayErr); err != nil {
				return res, err
			}
			res.Failed++
			q.metrics.Replayed(string(entry.Type), "failed")
			log.Warn("parked submission still failing", zap.Int("attempts", entry.Attempts+1), zap.Error(replayErr))
		default:
			if err := q.Remove(ctx, entry.ID); err != nil {
				return res, err
			}
			res.Dropped++
			q.metrics.Replayed(string(entry.Type), "dropped")
			log.Error("parked submission rejected, dropping", zap.Error(replayErr))
		}
	}
	return res, nil
}

func (q *Queue) recordFailure(ctx context.Context, id string, cause error) error {
	return q.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model((*models.PendingUpload)(nil)).
			Set("attempts = attempts + 1").
			Set("last_error = ?", cause.Error()).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

func (q *Queue) refreshDepth(ctx context.Context) {
	if q.metrics == nil {
		return
	}
	n, err := q.db.R.NewSelect().Model((*models.PendingUpload)(nil)).Count(ctx)
	if err != nil {
		q.log.Debug("count pending uploads", zap.Error(err))
		return
	}
	q.metrics.QueueDepth(n)
}

// Parked is returned to clients whose submission was queued instead of saved.
type Parked struct {
	Queued  bool   `json:"queued"`
	ID      string `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Park enqueues payload when cause is a retryable persistence failure.
// ok is false when cause is not retryable or the queue itself failed.
func (q *Queue) Park(ctx context.Context, t models.UploadType, payload any, cause error) (Parked, bool) {
	if q == nil || !apperr.IsRetryable(cause) {
		return Parked{}, false
	}
	entry, err := q.Enqueue(ctx, t, payload)
	if err != nil {
		q.log.Error("park submission", zap.String("type", string(t)), zap.NamedError("cause", cause), zap.Error(err))
		return Parked{}, false
	}
	return Parked{
		Queued:  true,
		ID:      entry.ID,
		Type:    string(t),
		Message: "saved offline, will retry automatically",
	}, true
}
