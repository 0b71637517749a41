package offline

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const drainTimeout = 2 * time.Minute

// Retrier drains the queue on a cron schedule.
type Retrier struct {
	cron  *cron.Cron
	queue *Queue
	log   *zap.Logger
}

func NewRetrier(q *Queue, schedule string, log *zap.Logger) (*Retrier, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Retrier{
		cron:  cron.New(),
		queue: q,
		log:   log,
	}
	if _, err := r.cron.AddFunc(schedule, r.drain); err != nil {
		return nil, fmt.Errorf("schedule offline retries %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Retrier) Start() {
	r.log.Info("starting offline retrier")
	r.cron.Start()
}

// Stop waits for a running drain to finish.
func (r *Retrier) Stop() {
	r.log.Info("stopping offline retrier")
	<-r.cron.Stop().Done()
}

func (r *Retrier) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	res, err := r.queue.Drain(ctx)
	if err != nil {
		r.log.Error("offline drain failed", zap.Error(err))
		return
	}
	if res.Replayed+res.Failed+res.Dropped > 0 {
		r.log.Info("offline drain finished",
			zap.Int("replayed", res.Replayed),
			zap.Int("failed", res.Failed),
			zap.Int("dropped", res.Dropped),
		)
	}
}
