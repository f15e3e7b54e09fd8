package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/IRandonation/AutoTikTokSendComment/internal/config"
)

var (
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once

	// consoleLevel gates only the terminal core so the status view can silence it
	// while the file core keeps recording.
	consoleLevel = zap.NewAtomicLevel()
)

const ansiReset = "\x1b[0m"

// ansiColors maps the color names accepted in logger.colors to escape codes.
var ansiColors = map[string]string{
	"black":   "\x1b[30m",
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

// InitializeLogger builds the process logger: a terminal core in the
// configured format plus, when logger.log_file is set, a rotating JSON file.
// Only the first call has any effect.
func InitializeLogger(cfg config.LoggerConfig) {
	initializeLogger(cfg, zapcore.Lock(os.Stderr))
}

func initializeLogger(cfg config.LoggerConfig, console zapcore.WriteSyncer) {
	once.Do(func() {
		level := zap.NewAtomicLevel()
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level.SetLevel(zap.InfoLevel)
		}
		consoleLevel.SetLevel(level.Level())

		cores := []zapcore.Core{
			zapcore.NewCore(newEncoder(cfg.Format, cfg.Colors), console, consoleLevel),
		}
		if cfg.LogFile != "" {
			cores = append(cores, zapcore.NewCore(newEncoder("json", config.ColorConfig{}), rotatingFile(cfg), level))
		}

		options := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
		if cfg.AddSource {
			options = append(options, zap.AddCaller())
		}

		logger := zap.New(zapcore.NewTee(cores...), options...).Named(cfg.ServiceName)
		globalLogger.Store(logger)

		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
}

func rotatingFile(cfg config.LoggerConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

// MuteConsole stops terminal output below fatal. File output is unaffected.
// It returns a function restoring the previous console level.
func MuteConsole() (restore func()) {
	prev := consoleLevel.Level()
	consoleLevel.SetLevel(zapcore.FatalLevel)
	return func() { consoleLevel.SetLevel(prev) }
}

// palette resolves the configured color names per level. Unknown or empty
// names leave the level uncolored.
func palette(colors config.ColorConfig) map[zapcore.Level]string {
	names := map[zapcore.Level]string{
		zapcore.DebugLevel:  colors.Debug,
		zapcore.InfoLevel:   colors.Info,
		zapcore.WarnLevel:   colors.Warn,
		zapcore.ErrorLevel:  colors.Error,
		zapcore.DPanicLevel: colors.DPanic,
		zapcore.PanicLevel:  colors.Panic,
		zapcore.FatalLevel:  colors.Fatal,
	}
	out := make(map[zapcore.Level]string, len(names))
	for lvl, name := range names {
		if code, ok := ansiColors[strings.ToLower(name)]; ok {
			out[lvl] = code
		}
	}
	return out
}

func colorLevelEncoder(colors config.ColorConfig) zapcore.LevelEncoder {
	codes := palette(colors)
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		name := level.CapitalString()
		if code, ok := codes[level]; ok {
			name = code + name + ansiReset
		}
		enc.AppendString(name)
	}
}

// newEncoder returns a console encoder for "console" and JSON otherwise.
func newEncoder(format string, colors config.ColorConfig) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder

	if format == "console" {
		ec.EncodeLevel = colorLevelEncoder(colors)
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// GetLogger returns the process logger, or a development logger named
// "fallback" before InitializeLogger has run.
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l.Named("fallback")
}

// Sync flushes buffered entries.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil && !isIgnorableSyncError(err) {
		fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
	}
}

// Syncing a terminal returns EINVAL or ENOTTY on most platforms.
func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}
