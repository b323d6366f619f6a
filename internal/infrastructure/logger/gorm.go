package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQuery is the duration above which a statement is logged at warn.
const DefaultSlowQuery = 200 * time.Millisecond

// SQLLogger routes GORM output into zap. Statements carry the request ID,
// the channel token and the trace of the sync job or webhook that ran them.
// Missing rows are not errors here: lookups by SKU or order code miss often.
type SQLLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

var _ gormlogger.Interface = (*SQLLogger)(nil)

// NewSQLLogger creates a GORM logger for the configured application log
// level. A non-positive slow threshold uses DefaultSlowQuery.
func NewSQLLogger(log *zap.Logger, level string, slow time.Duration) *SQLLogger {
	if slow <= 0 {
		slow = DefaultSlowQuery
	}
	return &SQLLogger{log: log.Named("sql"), level: sqlLevel(level), slow: slow}
}

// sqlLevel keeps GORM quiet unless the application runs at debug.
func sqlLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.contextual(ctx).Sugar().Infof(msg, data...)
	}
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.contextual(ctx).Sugar().Warnf(msg, data...)
	}
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.contextual(ctx).Sugar().Errorf(msg, data...)
	}
}

// Trace logs failed statements at error, slow ones at warn and the rest at
// debug when the level is Info.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	failed := err != nil && l.level >= gormlogger.Error
	slow := elapsed >= l.slow && l.level >= gormlogger.Warn
	if !failed && !slow && l.level < gormlogger.Info {
		return
	}

	sql, rows := fc()
	log := l.contextual(ctx).With(
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)
	switch {
	case failed:
		log.Error("Statement failed", zap.Error(err))
	case slow:
		log.Warn("Slow statement", zap.Duration("threshold", l.slow))
	default:
		log.Debug("Statement")
	}
}

func (l *SQLLogger) contextual(ctx context.Context) *zap.Logger {
	log := WithTraceContext(ctx, l.log)
	if id := GetRequestID(ctx); id != "" {
		log = log.With(zap.String("request_id", id))
	}
	if channel := GetChannel(ctx); channel != "" {
		log = log.With(zap.String("channel", channel))
	}
	return log
}
