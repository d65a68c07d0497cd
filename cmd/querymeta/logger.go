package main

import (
	"go.uber.org/zap"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore"
)

// zapLogger adapts a zap.SugaredLogger to eventstore.Logger, the key/value args map onto zap's loosely typed fields.
type zapLogger struct {
	lg *zap.SugaredLogger
}

func newZapLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	lc := zap.NewProductionConfig()
	lc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

	return lc.Build()
}

func (z *zapLogger) Debug(msg string, args ...any) {
	z.lg.Debugw(msg, args...)
}

func (z *zapLogger) Info(msg string, args ...any) {
	z.lg.Infow(msg, args...)
}

func (z *zapLogger) Warn(msg string, args ...any) {
	z.lg.Warnw(msg, args...)
}

func (z *zapLogger) Error(msg string, args ...any) {
	z.lg.Errorw(msg, args...)
}

var _ eventstore.Logger = (*zapLogger)(nil)
