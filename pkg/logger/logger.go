package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Payphone-Digital/identity/config"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger *zap.Logger        = zap.NewNop()
	Sugar  *zap.SugaredLogger = Logger.Sugar()
)

// InitLogger initializes Zap logger with configuration
func InitLogger(cfg *config.Config) error {
	logsPath := getEnv("LOGS_PATH", "./logs")
	if err := os.MkdirAll(logsPath, 0755); err != nil {
		return err
	}

	// Configure log level based on environment
	var zapLevel zapcore.Level
	switch cfg.App.Environment {
	case "production":
		zapLevel = zapcore.InfoLevel
	default:
		zapLevel = zapcore.DebugLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	infoWriter, err := rotatingWriter(filepath.Join(logsPath, "info.log"))
	if err != nil {
		return err
	}
	errorWriter, err := rotatingWriter(filepath.Join(logsPath, "error.log"))
	if err != nil {
		return err
	}

	infoCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(zapcore.AddSync(infoWriter), zapcore.AddSync(os.Stdout)),
		zapLevel,
	)

	errorCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(errorWriter),
		zapcore.ErrorLevel,
	)

	Logger = zap.New(zapcore.NewTee(infoCore, errorCore), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("service", cfg.App.Name))
	Sugar = Logger.Sugar()

	return nil
}

// rotatingWriter rotates daily and keeps two weeks of files.
func rotatingWriter(path string) (io.Writer, error) {
	return rotatelogs.New(
		path+".%Y%m%d",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(14*24*time.Hour),
	)
}

// SetLogger replaces the global logger. Tests use it with an observer core.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	Logger = l
	Sugar = l.Sugar()
}

// GetLogger returns the structured logger
func GetLogger() *zap.Logger {
	return Logger
}

// Sync syncs all logs (call this before application exits)
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// LogRequest logs HTTP request information
func LogRequest(method, path string, statusCode int, duration time.Duration, clientIP, userAgent, requestID string) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Duration("latency", duration),
		zap.String("client_ip", clientIP),
		zap.String("user_agent", userAgent),
		zap.String("request_id", requestID),
	}

	switch {
	case statusCode >= 500:
		Logger.Error("HTTP Request", fields...)
	case statusCode >= 400:
		Logger.Warn("HTTP Request", fields...)
	default:
		Logger.Info("HTTP Request", fields...)
	}
}

// LogPanic logs panic and recovers
func LogPanic(recovered interface{}) {
	Logger.Error("Panic recovered",
		zap.Any("panic", recovered),
		zap.Stack("stack"),
	)
}

// LogAuth logs authentication events
func LogAuth(accountID, action string, success bool, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("account_id", accountID),
		zap.String("action", action),
		zap.Bool("success", success),
	}, fields...)

	if success {
		Logger.Info("Authentication success", allFields...)
	} else {
		Logger.Warn("Authentication failure", allFields...)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
