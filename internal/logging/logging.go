// Package logging builds the zap loggers used across gennotes and adapts them
// to the small interfaces the core service depends on.
package logging

import (
	"context"
	"strings"
	"time"

	"gennotes/internal/core"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names for structured logging.
const (
	FieldRequestID  = "request_id"
	FieldUserID     = "user_id"
	FieldUsername   = "username"
	FieldOperation  = "operation"
	FieldEntity     = "entity"
	FieldRecordID   = "record_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldClientIP   = "client_ip"
)

// New builds a logger. Format "json" yields the production encoder, anything
// else a development console encoder.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, errors.Wrapf(err, "parse log level %q", level)
	}
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger, nil
}

type contextKey string

const requestIDKey contextKey = "logging_request_id"

// WithRequestID adds a request id to the context for logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// FieldsFromContext extracts logging fields from context as key/value pairs.
func FieldsFromContext(ctx context.Context) []any {
	if id := RequestID(ctx); id != "" {
		return []any{FieldRequestID, id}
	}
	return nil
}

// CoreLogger adapts a sugared zap logger to core.Logger.
type CoreLogger struct {
	s *zap.SugaredLogger
}

var _ core.Logger = CoreLogger{}

// NewCoreLogger wraps logger, naming it after component.
func NewCoreLogger(logger *zap.Logger, component string) CoreLogger {
	return CoreLogger{s: logger.Named(component).Sugar()}
}

func (l CoreLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l CoreLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l CoreLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l CoreLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }

// AuditRecorder writes audit entries to a dedicated logger.
type AuditRecorder struct {
	logger *zap.Logger
}

var _ core.AuditRecorder = (*AuditRecorder)(nil)

// NewAuditRecorder returns a recorder logging under the "audit" name.
func NewAuditRecorder(logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{logger: logger.Named("audit")}
}

// Record implements core.AuditRecorder.
func (r *AuditRecorder) Record(ctx context.Context, entry core.AuditEntry) {
	fields := []zap.Field{
		zap.String(FieldOperation, entry.Operation),
		zap.String(FieldEntity, string(entry.Entity)),
		zap.Int64(FieldRecordID, entry.RecordID),
		zap.Int64(FieldUserID, entry.Actor.ID),
		zap.String(FieldUsername, entry.Actor.Username),
		zap.String(FieldStatus, string(entry.Status)),
		zap.Float64(FieldDurationMS, float64(entry.Duration)/float64(time.Millisecond)),
		zap.Time("timestamp", entry.Timestamp),
	}
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String(FieldRequestID, id))
	}
	if entry.Error != "" {
		fields = append(fields, zap.String(FieldError, entry.Error))
		r.logger.Warn("audit", fields...)
		return
	}
	r.logger.Info("audit", fields...)
}

// Tracer emits one debug line per finished span.
type Tracer struct {
	logger *zap.Logger
}

var _ core.Tracer = (*Tracer)(nil)

// NewTracer returns a span logger under the "trace" name.
func NewTracer(logger *zap.Logger) *Tracer {
	return &Tracer{logger: logger.Named("trace")}
}

// Start implements core.Tracer.
func (t *Tracer) Start(ctx context.Context, operation string) (context.Context, core.TraceSpan) {
	return ctx, &span{
		logger:    t.logger.With(zap.String(FieldOperation, operation)),
		requestID: RequestID(ctx),
		started:   time.Now(),
	}
}

type span struct {
	logger    *zap.Logger
	requestID string
	started   time.Time
}

func (s *span) End(err error) {
	fields := []zap.Field{zap.Float64(FieldDurationMS, float64(time.Since(s.started))/float64(time.Millisecond))}
	if s.requestID != "" {
		fields = append(fields, zap.String(FieldRequestID, s.requestID))
	}
	status := "success"
	if err != nil {
		status = "error"
		fields = append(fields, zap.Error(err))
	}
	fields = append(fields, zap.String(FieldStatus, status))
	s.logger.Debug("span", fields...)
}
