// Package log provides the logging functionality for portbounce.
package log

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logger, replaced by SetLogger once
// the CLI has parsed its logging flags.
var Logger *runLogger

var nopLogger = zap.NewNop().Sugar()

func init() {
	Logger = CreateLoggerWithConfig(DefaultLoggerConfig())
}

func DefaultLoggerConfig() *zap.Config {
	c := zap.NewProductionConfig()
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return &c
}

// ParseLogLevel parses the level string, defaulting to info when empty.
func ParseLogLevel(logLevel string) (zap.AtomicLevel, error) {
	if logLevel == "" || logLevel == "info" {
		return zap.NewAtomicLevel(), nil
	}
	return zap.ParseAtomicLevel(logLevel)
}

// CreateLogger writes to stderr unless a log file is given,
// in which case the output is rotated by lumberjack.
func CreateLogger(logLevel zap.AtomicLevel, logFile string) *runLogger {
	if logFile != "" {
		return CreateLoggerWithLumberjack(logFile, 128, logLevel.Level())
	}

	cfg := DefaultLoggerConfig()
	cfg.Level = logLevel
	return CreateLoggerWithConfig(cfg)
}

func CreateLoggerWithLumberjack(logFile string, maxSizeMB int, logLevel zapcore.Level) *runLogger {
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxSizeMB,
		MaxBackups: 5,
		MaxAge:     7, // days
		Compress:   true,
	})

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), w, logLevel)
	return newRunLogger(zap.New(core, zap.AddCaller()).Sugar())
}

func CreateLoggerWithConfig(config *zap.Config) *runLogger {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	l, err := config.Build()
	if err != nil {
		panic(err)
	}
	return newRunLogger(l.Sugar())
}

// NewFromZap wraps an existing zap logger (e.g., zaptest.NewLogger in tests).
func NewFromZap(l *zap.Logger) *runLogger {
	return newRunLogger(l.Sugar())
}

// runLogger keeps the logger as given for With and Desugar, and a copy
// that skips the wrapper frame so the caller field points at the call site.
type runLogger struct {
	logger atomic.Pointer[sugaredPair]
}

type sugaredPair struct {
	base    *zap.SugaredLogger
	wrapped *zap.SugaredLogger
}

var nopPair = &sugaredPair{base: nopLogger, wrapped: nopLogger}

func newRunLogger(logger *zap.SugaredLogger) *runLogger {
	l := &runLogger{}
	l.set(logger)
	return l
}

func (l *runLogger) load() *sugaredPair {
	if l == nil {
		return nopPair
	}
	p := l.logger.Load()
	if p == nil {
		return nopPair
	}
	return p
}

func (l *runLogger) get() *zap.SugaredLogger {
	return l.load().base
}

func (l *runLogger) callers() *zap.SugaredLogger {
	return l.load().wrapped
}

func (l *runLogger) set(logger *zap.SugaredLogger) {
	if logger == nil {
		l.logger.Store(nopPair)
		return
	}
	l.logger.Store(&sugaredPair{
		base:    logger,
		wrapped: logger.WithOptions(zap.AddCallerSkip(1)),
	})
}

// SetLogger swaps the process-wide logger in place so that
// references taken before the swap observe the new sink.
func SetLogger(logger *runLogger) {
	if logger == nil {
		Logger.set(nil)
		return
	}
	Logger.set(logger.get())
}

func (l *runLogger) Debugw(msg string, keysAndValues ...interface{}) {
	l.callers().Debugw(msg, keysAndValues...)
}

func (l *runLogger) Debugf(template string, args ...interface{}) {
	l.callers().Debugf(template, args...)
}

func (l *runLogger) Infow(msg string, keysAndValues ...interface{}) {
	l.callers().Infow(msg, keysAndValues...)
}

func (l *runLogger) Infof(template string, args ...interface{}) {
	l.callers().Infof(template, args...)
}

func (l *runLogger) Warnw(msg string, keysAndValues ...interface{}) {
	l.callers().Warnw(msg, keysAndValues...)
}

func (l *runLogger) Errorw(msg string, keysAndValues ...interface{}) {
	l.callers().Errorw(msg, keysAndValues...)
}

func (l *runLogger) Errorf(template string, args ...interface{}) {
	l.callers().Errorf(template, args...)
}

func (l *runLogger) With(args ...interface{}) *zap.SugaredLogger {
	return l.get().With(args...)
}

func (l *runLogger) Desugar() *zap.Logger {
	return l.get().Desugar()
}

func (l *runLogger) Sync() error {
	return l.get().Sync()
}
