// Package log provides the process-wide zap logger.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

var (
	base  = zap.NewNop()
	sugar = base.Sugar()
)

// Init configures the package logger. Debug selects zap's development config.
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		l, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("init zap logger: %w", err)
	}
	base = l
	sugar = l.Sugar()
	return nil
}

// Replace swaps in l and returns a func that restores the previous logger.
func Replace(l *zap.Logger) (restore func()) {
	prevBase, prevSugar := base, sugar
	base, sugar = l, l.Sugar()
	return func() {
		base, sugar = prevBase, prevSugar
	}
}

// Logger returns the sugared logger. It discards everything until Init.
func Logger() *zap.SugaredLogger {
	return sugar
}

func Sync() {
	_ = base.Sync()
}

func Debugw(msg string, keysAndValues ...any) {
	Logger().Debugw(msg, keysAndValues...)
}

func Infow(msg string, keysAndValues ...any) {
	Logger().Infow(msg, keysAndValues...)
}

func Warnw(msg string, keysAndValues ...any) {
	Logger().Warnw(msg, keysAndValues...)
}

func Errorw(msg string, keysAndValues ...any) {
	Logger().Errorw(msg, keysAndValues...)
}

func Fatalf(template string, args ...any) {
	Logger().Errorf(template, args...)
	Sync()
	os.Exit(1)
}
