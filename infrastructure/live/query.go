package live

import "context"

// Query re-runs Fetch whenever one of Tables changes.
type Query[T any] struct {
	Tables []string
	Fetch  func(ctx context.Context) (T, error)
}

// Watch calls fn with the current result, then again after every change to a
// dependent table, until ctx is done or fn or Fetch fails.
func (q Query[T]) Watch(ctx context.Context, hub *Hub, fn func(T) error) error {
	sub := hub.Subscribe(q.Tables...)
	defer sub.Close()

	emit := func() error {
		v, err := q.Fetch(ctx)
		if err != nil {
			return err
		}
		return fn(v)
	}
	if err := emit(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := emit(); err != nil {
				return err
			}
		}
	}
}
