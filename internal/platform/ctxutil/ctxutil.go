package ctxutil

import "context"

// Default guards against callers passing a nil context into clients that
// build requests with NewRequestWithContext.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
