package logger

import (
	"context"
	"time"

	ctxutil "github.com/Payphone-Digital/identity/pkg/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ContextLogBuilder collects fields for one log line and pulls request
// metadata out of ctx.
type ContextLogBuilder struct {
	logger    *zap.Logger
	ctx       context.Context
	level     zapcore.Level
	fields    []zap.Field
	message   string
	shouldLog bool
}

func newBuilder(ctx context.Context, level zapcore.Level, message string) *ContextLogBuilder {
	l := GetLogger()
	b := &ContextLogBuilder{
		logger:    l,
		ctx:       ctx,
		level:     level,
		message:   message,
		shouldLog: l.Core().Enabled(level),
	}
	if b.shouldLog {
		b.fields = make([]zap.Field, 0, 12)
		b.extractContextFields()
	}
	return b
}

func (clb *ContextLogBuilder) extractContextFields() {
	if clb.ctx == nil {
		return
	}

	if requestID := ctxutil.GetRequestID(clb.ctx); requestID != "" {
		clb.fields = append(clb.fields, zap.String("request_id", requestID))
	}
	if clientIP := ctxutil.GetClientIP(clb.ctx); clientIP != "" {
		clb.fields = append(clb.fields, zap.String("client_ip", clientIP))
	}
	if userAgent := ctxutil.GetUserAgent(clb.ctx); userAgent != "" {
		clb.fields = append(clb.fields, zap.String("user_agent", userAgent))
	}
	if accountID, ok := ctxutil.GetAccountID(clb.ctx); ok {
		clb.fields = append(clb.fields, zap.String("account_id", accountID.String()))
	}
	if module := ctxutil.GetModule(clb.ctx); module != "" {
		clb.fields = append(clb.fields, zap.String("module", module))
	}
	if function := ctxutil.GetFunction(clb.ctx); function != "" {
		clb.fields = append(clb.fields, zap.String("function", function))
	}
}

func (clb *ContextLogBuilder) String(key, value string) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.String(key, value))
	}
	return clb
}

func (clb *ContextLogBuilder) Int(key string, value int) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.Int(key, value))
	}
	return clb
}

func (clb *ContextLogBuilder) Int64(key string, value int64) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.Int64(key, value))
	}
	return clb
}

func (clb *ContextLogBuilder) Bool(key string, value bool) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.Bool(key, value))
	}
	return clb
}

func (clb *ContextLogBuilder) Duration(value time.Duration) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.Duration("duration", value))
	}
	return clb
}

func (clb *ContextLogBuilder) Err(err error) *ContextLogBuilder {
	if clb.shouldLog && err != nil {
		clb.fields = append(clb.fields, zap.Error(err))
	}
	return clb
}

func (clb *ContextLogBuilder) Any(key string, value interface{}) *ContextLogBuilder {
	if clb.shouldLog {
		clb.fields = append(clb.fields, zap.Any(key, value))
	}
	return clb
}

// Log writes the entry. A cancelled ctx still logs: failures on abandoned
// requests are the ones worth keeping.
func (clb *ContextLogBuilder) Log() {
	if !clb.shouldLog {
		return
	}

	switch clb.level {
	case zapcore.DebugLevel:
		clb.logger.Debug(clb.message, clb.fields...)
	case zapcore.InfoLevel:
		clb.logger.Info(clb.message, clb.fields...)
	case zapcore.WarnLevel:
		clb.logger.Warn(clb.message, clb.fields...)
	case zapcore.ErrorLevel:
		clb.logger.Error(clb.message, clb.fields...)
	}
}

func InfoWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return newBuilder(ctx, zapcore.InfoLevel, message)
}

func WarnWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return newBuilder(ctx, zapcore.WarnLevel, message)
}

func ErrorWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return newBuilder(ctx, zapcore.ErrorLevel, message)
}

func DebugWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return newBuilder(ctx, zapcore.DebugLevel, message)
}
