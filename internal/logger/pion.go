package logger

import (
	"fmt"

	"github.com/pion/logging"
	"go.uber.org/zap"
)

// PionFactory routes pion's internal logging into zap.
type PionFactory struct {
	logger *zap.Logger
}

// NewPionFactory returns a factory whose loggers write through logger.
// Pion trace output is mapped to zap debug.
func NewPionFactory(logger *zap.Logger) *PionFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PionFactory{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

// NewLogger implements logging.LoggerFactory.
func (f *PionFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{log: f.logger.Sugar().With("scope", scope)}
}

type pionLogger struct {
	log *zap.SugaredLogger
}

var _ logging.LeveledLogger = (*pionLogger)(nil)

func (l *pionLogger) Trace(msg string) { l.log.Debug(msg) }
func (l *pionLogger) Tracef(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
func (l *pionLogger) Debug(msg string) { l.log.Debug(msg) }
func (l *pionLogger) Debugf(format string, args ...any) {
	l.log.Debugf(format, args...)
}
func (l *pionLogger) Info(msg string) { l.log.Info(msg) }
func (l *pionLogger) Infof(format string, args ...any) {
	l.log.Infof(format, args...)
}
func (l *pionLogger) Warn(msg string) { l.log.Warn(msg) }
func (l *pionLogger) Warnf(format string, args ...any) {
	l.log.Warnf(format, args...)
}
func (l *pionLogger) Error(msg string) { l.log.Error(msg) }
func (l *pionLogger) Errorf(format string, args ...any) {
	l.log.Errorf(format, args...)
}
