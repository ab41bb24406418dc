package worker

import (
	"cardbridge/pkg/contextx"

	"go.uber.org/zap"
)

//nolint:gochecknoglobals
var logger = contextx.LoggerFromContextOrDefault

// ZapAsynqLogger адаптирует zap под интерфейс логгера asynq.
type ZapAsynqLogger struct {
	log *zap.SugaredLogger
}

func NewZapAsynqLogger(log *zap.Logger) *ZapAsynqLogger {
	return &ZapAsynqLogger{log: log.Sugar()}
}

func (l *ZapAsynqLogger) Debug(args ...interface{}) { l.log.Debug(args...) }
func (l *ZapAsynqLogger) Info(args ...interface{})  { l.log.Info(args...) }
func (l *ZapAsynqLogger) Warn(args ...interface{})  { l.log.Warn(args...) }
func (l *ZapAsynqLogger) Error(args ...interface{}) { l.log.Error(args...) }
func (l *ZapAsynqLogger) Fatal(args ...interface{}) { l.log.Fatal(args...) }
