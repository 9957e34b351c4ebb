package scanlog

import (
	"context"
	"runtime/debug"

	"github.com/codexlibris/codex/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

const maxDataValueLen = 1024

// Logger mirrors scan progress to both the process logger and the scan_logs
// table, keyed by the run's scan id.
type Logger struct {
	scanID  string
	service *Service
	log     logger.Logger
	ctx     context.Context
}

// NewLogger creates a Logger for one scan run.
func (svc *Service) NewLogger(ctx context.Context, scanID string, log logger.Logger) *Logger {
	return &Logger{
		scanID:  scanID,
		service: svc,
		log:     log.Data(logger.Data{"scan_id": scanID}),
		ctx:     ctx,
	}
}

// Info logs an info-level message.
func (l *Logger) Info(msg string, data logger.Data) {
	l.log.Info(msg, data)
	l.persist(models.ScanLogLevelInfo, msg, data, nil)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(msg string, data logger.Data) {
	l.log.Warn(msg, data)
	l.persist(models.ScanLogLevelWarn, msg, data, nil)
}

// Error logs an error-level message with a stack trace.
func (l *Logger) Error(msg string, err error, data logger.Data) {
	l.log.Err(err).Error(msg, data)
	stack := string(debug.Stack())
	l.persist(models.ScanLogLevelError, msg, data, &stack)
}

func (l *Logger) persist(level, msg string, data logger.Data, stackTrace *string) {
	var dataStr *string
	if len(data) > 0 {
		truncated := make(logger.Data, len(data))
		for k, v := range data {
			if s, ok := v.(string); ok && len(s) > maxDataValueLen {
				truncated[k] = truncateMiddle(s, maxDataValueLen)
			} else {
				truncated[k] = v
			}
		}
		if jsonBytes, err := json.Marshal(truncated); err == nil {
			s := string(jsonBytes)
			dataStr = &s
		}
	}

	scanLog := &models.ScanLog{
		ScanID:     l.scanID,
		Level:      level,
		Message:    msg,
		Data:       dataStr,
		StackTrace: stackTrace,
	}

	// A failed log write must never fail the scan itself.
	_ = l.service.CreateScanLog(l.ctx, scanLog)
}

func truncateMiddle(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	half := (maxLen - 5) / 2
	return s[:half] + " ... " + s[len(s)-half:]
}
