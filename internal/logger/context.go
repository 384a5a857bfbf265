package logger

import (
	"context"

	"go.uber.org/zap"
)

// requestKey keys the request-scoped logger. Unexported struct type, so
// no other package can collide with it.
type requestKey struct{}

// ContextWithLogger attaches a request-scoped logger, typically carrying
// the request ID, so pipeline stages log under the originating request.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, requestKey{}, l)
}

// FromContext returns the request-scoped logger. Contexts without one
// (background jobs, tests) get a no-op logger rather than nil.
func FromContext(ctx context.Context) *zap.Logger {
	l, ok := ctx.Value(requestKey{}).(*zap.Logger)
	if !ok {
		return zap.NewNop()
	}
	return l
}
