package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/bookkeeping/internal/config"
	"github.com/smallbiznis/bookkeeping/internal/observability/logger"
	"github.com/smallbiznis/bookkeeping/internal/observability/metrics"
	"github.com/smallbiznis/bookkeeping/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.NewLevel,
		logger.New,
		provideTracingConfig,
		tracing.NewProvider,
		provideMetrics,
	),
	fx.Invoke(ensureTracingProvider),
	fx.Invoke(watchLogLevel),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Debug(),
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}

func provideMetrics(cfg Config) *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer, metrics.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
}

// watchLogLevel applies log level edits from the config file without a restart.
func watchLogLevel(w *config.Watcher, level zap.AtomicLevel, log *zap.Logger) {
	w.OnChange(func(next config.Config) {
		if err := logger.SetLevel(level, next.Observability.LogLevel); err != nil {
			log.Warn("ignoring invalid log level", zap.Error(err))
			return
		}
		log.Info("log level reloaded", zap.String("level", level.String()))
	})
}
