package service

import (
	"context"
	"encoding/json"

	"payment-service/internal/models"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// SystemLogWriter persists diagnostic rows
type SystemLogWriter interface {
	InsertSystemLog(ctx context.Context, entry *models.SystemLog) error
}

// SystemLogger mirrors important events into the system_logs table. Writes
// are best-effort and never fail the caller.
type SystemLogger struct {
	store  SystemLogWriter
	logger *zap.Logger
}

// NewSystemLogger creates a system logger
func NewSystemLogger(store SystemLogWriter) *SystemLogger {
	return &SystemLogger{
		store:  store,
		logger: util.GetLogger(),
	}
}

func (l *SystemLogger) Info(ctx context.Context, component, message string, metadata map[string]interface{}) {
	l.record(ctx, models.LogLevelInfo, component, message, metadata)
}

func (l *SystemLogger) Warn(ctx context.Context, component, message string, metadata map[string]interface{}) {
	l.record(ctx, models.LogLevelWarn, component, message, metadata)
}

func (l *SystemLogger) Error(ctx context.Context, component, message string, metadata map[string]interface{}) {
	l.record(ctx, models.LogLevelError, component, message, metadata)
}

func (l *SystemLogger) record(ctx context.Context, level, component, message string, metadata map[string]interface{}) {
	if l == nil || l.store == nil {
		return
	}

	entry := &models.SystemLog{
		Level:     level,
		Component: component,
		Message:   message,
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			l.logger.Warn("Failed to encode system log metadata", zap.Error(err))
		} else {
			entry.Metadata = raw
		}
	}

	if err := l.store.InsertSystemLog(ctx, entry); err != nil {
		l.logger.Error("Failed to write system log",
			zap.String("component", component),
			zap.String("message", message),
			zap.Error(err))
	}
}
