package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name (case-insensitive) to a LogLevel.
func ParseLevel(name string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG, true
	case "INFO":
		return INFO, true
	case "WARN", "WARNING":
		return WARN, true
	case "ERROR":
		return ERROR, true
	case "FATAL":
		return FATAL, true
	}
	return INFO, false
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is a leveled printf-style logger backed by zap.
type Logger struct {
	mu    sync.Mutex
	cfg   Config
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
	// pkg carries one extra caller skip for the package-level helpers.
	pkg *zap.SugaredLogger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

type Config struct {
	Level      LogLevel
	Prefix     string
	Colorize   bool
	ShowCaller bool
	ShowTime   bool
	TimeFormat string
	Output     io.Writer
}

func DefaultConfig() Config {
	return Config{
		Level:      INFO,
		Prefix:     "",
		Colorize:   true,
		ShowCaller: false,
		ShowTime:   true,
		TimeFormat: "2006-01-02 15:04:05",
		Output:     os.Stdout,
	}
}

func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = "2006-01-02 15:04:05"
	}

	l := &Logger{
		cfg:   cfg,
		level: zap.NewAtomicLevelAt(cfg.Level.zapLevel()),
	}
	l.build()
	return l
}

// build (re)creates the zap core from the current config. Callers hold mu
// or own the logger exclusively.
func (l *Logger) build() {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(l.cfg.TimeFormat),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if l.cfg.Colorize {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if !l.cfg.ShowTime {
		encCfg.TimeKey = ""
	}
	if !l.cfg.ShowCaller {
		encCfg.CallerKey = ""
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(l.cfg.Output),
		l.level,
	)

	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	if l.cfg.Prefix != "" {
		base = base.Named(l.cfg.Prefix)
	}
	l.sugar = base.Sugar()
	l.pkg = base.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func GetLogger() *Logger {
	once.Do(func() {
		cfg := DefaultConfig()
		if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
			if level, ok := ParseLevel(envLevel); ok {
				cfg.Level = level
			}
		}
		defaultLogger = New(cfg)
	})
	return defaultLogger
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	cfg := DefaultConfig()
	cfg.Output = io.Discard
	cfg.Colorize = false
	cfg.Level = FATAL
	return New(cfg)
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.Level = level
	l.level.SetLevel(level.zapLevel())
}

func (l *Logger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg.Level
}

func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.Output = w
	l.build()
}

func (l *Logger) SetColorize(colorize bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.Colorize = colorize
	l.build()
}

func (l *Logger) SetShowCaller(show bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.ShowCaller = show
	l.build()
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.current().Sync()
}

func (l *Logger) current() *zap.SugaredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sugar
}

func (l *Logger) forPackage() *zap.SugaredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pkg
}

// Debug logs a message at DEBUG level
func (l *Logger) Debug(msg string, args ...any) {
	l.current().Debugf(msg, args...)
}

// Info logs a message at INFO level
func (l *Logger) Info(msg string, args ...any) {
	l.current().Infof(msg, args...)
}

// Warn logs a message at WARN level
func (l *Logger) Warn(msg string, args ...any) {
	l.current().Warnf(msg, args...)
}

// Error logs a message at ERROR level
func (l *Logger) Error(msg string, args ...any) {
	l.current().Errorf(msg, args...)
}

// Fatal logs a message at FATAL level and exits the program
func (l *Logger) Fatal(msg string, args ...any) {
	l.current().Fatalf(msg, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.current().Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.current().Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.current().Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.current().Errorf(format, args...)
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.current().Fatalf(format, args...)
}

// Package-level convenience functions using the default logger

func Debug(msg string, args ...any) {
	GetLogger().forPackage().Debugf(msg, args...)
}

func Info(msg string, args ...any) {
	GetLogger().forPackage().Infof(msg, args...)
}

func Warn(msg string, args ...any) {
	GetLogger().forPackage().Warnf(msg, args...)
}

func Error(msg string, args ...any) {
	GetLogger().forPackage().Errorf(msg, args...)
}

func Fatal(msg string, args ...any) {
	GetLogger().forPackage().Fatalf(msg, args...)
}

func Debugf(format string, args ...any) {
	GetLogger().forPackage().Debugf(format, args...)
}

func Infof(format string, args ...any) {
	GetLogger().forPackage().Infof(format, args...)
}

func Warnf(format string, args ...any) {
	GetLogger().forPackage().Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	GetLogger().forPackage().Errorf(format, args...)
}

func Fatalf(format string, args ...any) {
	GetLogger().forPackage().Fatalf(format, args...)
}

// SetLevel sets the log level for the default logger
func SetLevel(level LogLevel) {
	GetLogger().SetLevel(level)
}

// SetOutput sets the output for the default logger
func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

// SetColorize enables or disables colored output for the default logger
func SetColorize(colorize bool) {
	GetLogger().SetColorize(colorize)
}

// SetShowCaller enables or disables caller information for the default logger
func SetShowCaller(show bool) {
	GetLogger().SetShowCaller(show)
}
