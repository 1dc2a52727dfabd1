// Copyright 2023 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package log

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	std = newZapLogger(NewOptions())
	mu  sync.RWMutex
)

// Init initializes logger with specified options.
func Init(opts *Options) {
	l := newZapLogger(opts)

	mu.Lock()
	defer mu.Unlock()
	std = l
}

// InitLogger initializes a development logger when debug is set, and a json
// production logger otherwise.
func InitLogger(debug bool) error {
	opts := NewOptions()
	if debug {
		opts.Level = zapcore.DebugLevel.String()
		opts.EnableColor = true
	} else {
		opts.Format = jsonFormat
	}
	if errs := opts.Validate(); len(errs) != 0 {
		return errs[0]
	}
	Init(opts)

	return nil
}

func newZapLogger(opts *Options) *zap.Logger {
	if opts == nil {
		opts = NewOptions()
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(opts.Level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	encodeLevel := zapcore.CapitalLevelEncoder
	// when output to local path, with color is forbidden
	if opts.Format == consoleFormat && opts.EnableColor {
		encodeLevel = zapcore.CapitalColorLevelEncoder
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "timestamp",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    encodeLevel,
		EncodeTime:     timeEncoder,
		EncodeDuration: milliSecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	loggerConfig := &zap.Config{
		Level:             zap.NewAtomicLevelAt(zapLevel),
		DisableCaller:     opts.DisableCaller,
		DisableStacktrace: opts.DisableStacktrace,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         opts.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      opts.OutputPaths,
		ErrorOutputPaths: opts.ErrorOutputPaths,
	}

	l, err := loggerConfig.Build(zap.AddStacktrace(zapcore.PanicLevel), zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}

	return l.Named(opts.Name)
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

func milliSecondsDurationEncoder(d time.Duration, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendFloat64(float64(d) / float64(time.Millisecond))
}

func sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()

	return std.Sugar()
}

// SugarLogger returns the global sugared logger.
func SugarLogger() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()

	return std.WithOptions(zap.AddCallerSkip(-1)).Sugar()
}

// With returns a new logger with specified fields.
func With(args ...interface{}) *zap.SugaredLogger {
	return SugarLogger().With(args...)
}

// Flush flushes any buffered log entries. Applications should take care to call before exiting.
func Flush() {
	mu.RLock()
	defer mu.RUnlock()

	_ = std.Sync()
}

// Debug method output debug level log.
func Debug(msg string, keysAndValues ...interface{}) {
	sugar().Debugw(msg, keysAndValues...)
}

// Debugf method output debug level log.
func Debugf(format string, v ...interface{}) {
	sugar().Debugf(format, v...)
}

// Debugw method output debug level log.
func Debugw(msg string, keysAndValues ...interface{}) {
	sugar().Debugw(msg, keysAndValues...)
}

// Info method output info level log.
func Info(msg string, keysAndValues ...interface{}) {
	sugar().Infow(msg, keysAndValues...)
}

// Infof method output info level log.
func Infof(format string, v ...interface{}) {
	sugar().Infof(format, v...)
}

// Infow method output info level log.
func Infow(msg string, keysAndValues ...interface{}) {
	sugar().Infow(msg, keysAndValues...)
}

// Warn method output warning level log.
func Warn(msg string, keysAndValues ...interface{}) {
	sugar().Warnw(msg, keysAndValues...)
}

// Warnf method output warning level log.
func Warnf(format string, v ...interface{}) {
	sugar().Warnf(format, v...)
}

// Warnw method output warning level log.
func Warnw(msg string, keysAndValues ...interface{}) {
	sugar().Warnw(msg, keysAndValues...)
}

// Error method output error level log.
func Error(msg string, keysAndValues ...interface{}) {
	sugar().Errorw(msg, keysAndValues...)
}

// Errorf method output error level log.
func Errorf(format string, v ...interface{}) {
	sugar().Errorf(format, v...)
}

// Errorw method output error level log.
func Errorw(msg string, keysAndValues ...interface{}) {
	sugar().Errorw(msg, keysAndValues...)
}

// Fatal method output Fatalw level log.
func Fatal(msg string, keysAndValues ...interface{}) {
	sugar().Fatalw(msg, keysAndValues...)
}

// Fatalf method output fatal level log.
func Fatalf(format string, v ...interface{}) {
	sugar().Fatalf(format, v...)
}
