package bus

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/km-arc/tracker/framework/logging"
)

type dispatchIDKey struct{}

// DispatchID returns the id LogDispatch attached to ctx, or "".
func DispatchID(ctx context.Context) string {
	id, _ := ctx.Value(dispatchIDKey{}).(string)
	return id
}

// LogDispatch tags every dispatch with a fresh id and logs its outcome.
func LogDispatch(l logging.Logger, kind Kind) Middleware {
	l = logging.OrNop(l)
	return func(name string, next Handler) Handler {
		return func(ctx context.Context, payload any) (any, error) {
			id := uuid.NewString()
			ctx = context.WithValue(ctx, dispatchIDKey{}, id)

			start := time.Now()
			res, err := next(ctx, payload)
			elapsed := time.Since(start)

			if err != nil {
				l.Warn("dispatch failed", "kind", kind, "name", name, "dispatch", id, "took", elapsed, "err", err)
				return res, err
			}
			l.Debug("dispatched", "kind", kind, "name", name, "dispatch", id, "took", elapsed)
			return res, nil
		}
	}
}
