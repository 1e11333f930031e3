// Package audit writes one structured record per state-changing API call.
package audit

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"bloodnet.org/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Logger emits audit entries on a dedicated zap logger.
type Logger struct {
	log *zap.Logger
}

// New returns an audit logger writing through l. A nil l discards entries.
func New(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{log: l.Named("audit").With(zap.String("type", "audit"))}
}

// Event writes an audit entry enriched with the request id and the acting
// principal from ctx.
func (a *Logger) Event(ctx context.Context, event string, fields ...zap.Field) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	all := make([]zap.Field, 0, len(fields)+4)
	all = append(all, zap.String("event", event))
	if rid := RequestIDFromContext(ctx); rid != "" {
		all = append(all, zap.String("request_id", rid))
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		all = append(all, zap.String("role", string(p.Role)))
		if p.SubjectID != "" {
			all = append(all, zap.String("subject_id", p.SubjectID))
		}
	}
	all = append(all, fields...)
	a.log.Info("audit", all...)
	return nil
}
