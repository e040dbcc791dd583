package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"tallyhq.org/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Log writes audit events as structured log lines enriched with request and
// identity context.
type Log struct {
	log *zap.Logger
}

// New builds an audit log on top of the process logger.
func New(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log.Named("audit")}
}

// Event records an audit event with optional fields.
func (l *Log) Event(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	zapFields := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", event),
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		zapFields = append(zapFields, zap.String("request_id", rid))
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		zapFields = append(zapFields, zap.String("identity_id", identity.ID))
	}
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	l.log.Info(event, zapFields...)
	return nil
}
