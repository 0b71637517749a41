package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const heartbeatInterval = 30 * time.Second

// Stream serves q as Server-Sent Events named event until the client goes away.
func Stream[T any](w http.ResponseWriter, r *http.Request, hub *Hub, q Query[T], event string, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	results := make(chan T, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- q.Watch(ctx, hub, func(v T) error {
			select {
			case results <- v:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errc:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("live query failed", zap.String("event", event), zap.Error(err))
			}
			return
		case v := <-results:
			payload, err := json.Marshal(v)
			if err != nil {
				log.Error("encode live result", zap.String("event", event), zap.Error(err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
				return
			}
			_ = rc.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}
