package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bigscope/internal/config"
)

// encoderConfig — plain text с короткими ключами
var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "T",
	LevelKey:       "L",
	NameKey:        "N",
	CallerKey:      "C",
	MessageKey:     "M",
	StacktraceKey:  "S",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// InitZap собирает логгер из нескольких ядер:
// stderr от уровня cfg.Level (stdout занят выводом таблиц в CLI),
// файл cfg.LogFile только для Error+, при EnableSentry Error+ уходят в Sentry.
func InitZap(cfg *config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("неизвестный уровень логирования %q: %w", cfg.Level, err)
	}

	encoder := zapcore.NewConsoleEncoder(encoderConfig)
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level),
	}

	if cfg.LogFile != "" {
		ws, err := openLogFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), ws, zapcore.ErrorLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	if cfg.EnableSentry && cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			logger.Warn("Sentry не инициализирован", zap.Error(err))
		} else {
			logger = logger.WithOptions(zap.Hooks(sentryHook))
		}
	}
	return logger, nil
}

// openLogFile открывает файл логов на дозапись, создавая каталог
func openLogFile(path string) (zapcore.WriteSyncer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть лог-файл %s: %w", path, err)
	}
	return zapcore.AddSync(f), nil
}

func sentryHook(entry zapcore.Entry) error {
	if entry.Level < zapcore.ErrorLevel {
		return nil
	}
	event := sentry.NewEvent()
	event.Level = sentry.LevelError
	event.Logger = entry.LoggerName
	event.Message = entry.Message
	if entry.Caller.Defined {
		event.Extra = map[string]interface{}{"caller": entry.Caller.TrimmedPath()}
	}
	sentry.CaptureEvent(event)
	sentry.Flush(2 * time.Second)
	return nil
}
