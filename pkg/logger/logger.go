package logger

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"greyfuzz/config"
	"greyfuzz/pkg/telemetry"
)

type LoggerParams struct {
	fx.In
	Lc        fx.Lifecycle
	AppConfig *config.AppConfig
	Telemetry telemetry.Telemetry `optional:"true"`
}

func NewLogger(p LoggerParams) *zap.Logger {
	loggerCtx, cancel := context.WithCancel(context.Background())
	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})

	level := zapcore.InfoLevel
	switch strings.ToLower(p.AppConfig.LogLevel) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	var cfg zap.Config
	if level > zapcore.InfoLevel {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	if p.Telemetry == nil || p.Telemetry.GetLogger() == nil {
		lg, err := cfg.Build()
		if err != nil {
			// log failed to build, return a default one
			return zap.NewExample()
		}
		return lg
	}

	lg, err := cfg.Build(
		zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return &telemetryCore{
				Core:  core,
				telem: p.Telemetry,
				ctx:   loggerCtx,
			}
		}),
		zap.AddCaller(),
	)
	if err != nil {
		return zap.NewExample()
	}
	lg.Info("logger with telemetry enabled")
	return lg
}

// telemetryCore decorates a zapcore.Core so every entry also flows into
// OpenTelemetry, with each zap.Field converted to a log attribute.
type telemetryCore struct {
	zapcore.Core
	telem telemetry.Telemetry
	ctx   context.Context
}

// With keeps the wrapper on child cores created by logger.With(...).
func (t *telemetryCore) With(fields []zapcore.Field) zapcore.Core {
	return &telemetryCore{
		Core:  t.Core.With(fields),
		telem: t.telem,
		ctx:   t.ctx,
	}
}

// Check adds this core (not the inner one) to the CheckedEntry.
func (t *telemetryCore) Check(ent zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if t.Enabled(ent.Level) {
		return checked.AddCore(ent, t)
	}
	return checked
}

func (t *telemetryCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if err := t.Core.Write(ent, fields); err != nil {
		return err
	}

	rec := log.Record{}
	rec.SetTimestamp(ent.Time)
	rec.SetBody(log.StringValue(ent.Message))
	rec.SetSeverityText(ent.Level.String())
	rec.AddAttributes(log.String("service.component", ent.LoggerName))

	for _, f := range fields {
		rec.AddAttributes(fieldToAttribute(f))
	}

	t.telem.GetLogger().Emit(t.ctx, rec)
	return nil
}

func fieldToAttribute(f zapcore.Field) log.KeyValue {
	switch f.Type {
	case zapcore.BoolType:
		return log.Bool(f.Key, f.Integer != 0)
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return log.Int64(f.Key, f.Integer)
	case zapcore.Float64Type:
		return log.Float64(f.Key, math.Float64frombits(uint64(f.Integer)))
	case zapcore.Float32Type:
		return log.Float64(f.Key, float64(math.Float32frombits(uint32(f.Integer))))
	case zapcore.StringType:
		return log.String(f.Key, f.String)
	case zapcore.ErrorType:
		if errVal, ok := f.Interface.(error); ok {
			return log.String(f.Key, errVal.Error())
		}
		return log.String(f.Key, fmt.Sprint(f.Interface))
	default:
		return log.String(f.Key, fmt.Sprint(f.Interface))
	}
}
