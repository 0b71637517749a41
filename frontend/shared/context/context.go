package context

import (
	"context"

	"clamflow/models"
)

type sessionKey struct{}

func NewContextWithSession(ctx context.Context, session models.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

func GetSessionFromContext(ctx context.Context) (models.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(models.Session)
	return s, ok
}

// OperatorID returns the signed-in operator, or 0 for system work such as offline replays.
func OperatorID(ctx context.Context) int64 {
	if s, ok := GetSessionFromContext(ctx); ok {
		return s.OperatorID
	}
	return 0
}
