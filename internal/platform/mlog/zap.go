package mlog

import "go.uber.org/zap"

// ZapLogger is a zap-backed implementation of Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a production zap logger at the given level name
// ("debug", "info", "warn", "error"; anything else falls back to "info").
func NewZapLogger(level string) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()

	l, err := zap.ParseAtomicLevel(level)
	if err != nil {
		l = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg.Level = l

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{sugar: logger.Sugar()}, nil
}

func (z *ZapLogger) Info(args ...any)                  { z.sugar.Info(args...) }
func (z *ZapLogger) Infof(format string, args ...any)  { z.sugar.Infof(format, args...) }
func (z *ZapLogger) Error(args ...any)                 { z.sugar.Error(args...) }
func (z *ZapLogger) Errorf(format string, args ...any) { z.sugar.Errorf(format, args...) }
func (z *ZapLogger) Warn(args ...any)                  { z.sugar.Warn(args...) }
func (z *ZapLogger) Warnf(format string, args ...any)  { z.sugar.Warnf(format, args...) }
func (z *ZapLogger) Debug(args ...any)                 { z.sugar.Debug(args...) }
func (z *ZapLogger) Debugf(format string, args ...any) { z.sugar.Debugf(format, args...) }
func (z *ZapLogger) Sync() error                       { return z.sugar.Sync() }

//nolint:ireturn
func (z *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{sugar: z.sugar.With(fields...)}
}
