package kobuki

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kobuki-driver/kobuki/driver/observer"
)

// Logger is the driver's leveled logger. Every entry is written through
// zap and mirrored onto the bus's four /ros_* channels, so a process-level
// log sink and an in-process telemetry subscriber both see the same
// stream without the driver committing to either one exclusively.
type Logger struct {
	z   *zap.SugaredLogger
	bus *observer.Bus
}

// newLogger builds a Logger at the given level (debug, info, warn, error;
// anything unrecognised falls back to info) that also emits onto bus.
func newLogger(level string, bus *observer.Bus) *Logger {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"

	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{z: z.Sugar(), bus: bus}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.z.Debugf(format, args...)
	l.bus.Emit(observer.ChannelRosDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.z.Infof(format, args...)
	l.bus.Emit(observer.ChannelRosInfo, fmt.Sprintf(format, args...))
}

// Warn logs and emits a non-fatal driver error onto /ros_warn.
func (l *Logger) Warn(err error) {
	l.z.Warnw(err.Error())
	l.bus.Emit(observer.ChannelRosWarn, err)
}

// Error logs and emits a frame-level driver error onto /ros_error.
func (l *Logger) Error(err error) {
	l.z.Errorw(err.Error())
	l.bus.Emit(observer.ChannelRosError, err)
}
