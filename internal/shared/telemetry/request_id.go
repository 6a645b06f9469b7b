package telemetry

import "context"

type requestIDKey struct{}

// WithRequestID attaches a request ID to the context for logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Detached returns a background context that keeps only the request ID of ctx,
// for work that must outlive the caller.
func Detached(ctx context.Context) context.Context {
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		return context.Background()
	}
	return WithRequestID(context.Background(), requestID)
}
