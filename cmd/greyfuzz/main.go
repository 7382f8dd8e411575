package main

import (
	"greyfuzz/config"
	"greyfuzz/internal/corpus"
	"greyfuzz/internal/crash"
	"greyfuzz/internal/orchestrator"
	"greyfuzz/internal/seedimport"
	"greyfuzz/internal/target"
	"greyfuzz/pkg/database"
	"greyfuzz/pkg/logger"
	"greyfuzz/pkg/telemetry"
	"greyfuzz/pkg/watchdog"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,          // inject config
			logger.NewLogger,           // inject logger
			telemetry.NewTelemetry,     // inject telemetry
			telemetry.NewTracerFactory, // inject telemetry tracer factory
			database.NewDBConnection,   // inject findings db (nil when disabled)
			target.NewBuilder,          // inject target builder
			corpus.NewFromConfig,       // inject shared corpus
			corpus.NewStoreFromConfig,  // inject on-disk corpus store
			crash.NewManager,           // inject crash manager
			watchdog.NewFactory,        // inject watchdog factory
		),
		fx.Invoke(
			seedimport.NewImporter, // watch the import dir for live seeds
			orchestrator.New,       // run the fuzzing session
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			zlogger := fxevent.ZapLogger{Logger: log}
			zlogger.UseLogLevel(zap.DebugLevel)
			return &zlogger
		}),
	)
	app.Run()
}
