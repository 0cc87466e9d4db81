package telemetry

import (
	"context"
	"errors"

	"github.com/canteen/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Providers groups the three signal providers built from one configuration
type Providers struct {
	Tracer *TracerProvider
	Meter  *MeterProvider
	Logs   *LoggerProvider
}

// Setup builds the tracer, meter and logger providers from cfg. Each signal
// stays on its no-op provider unless enabled; a failure shuts down whatever
// was already started.
func Setup(ctx context.Context, cfg config.TelemetryConfig, serviceVersion string, logger *zap.Logger) (*Providers, error) {
	if serviceVersion == "" {
		serviceVersion = DefaultServiceVersion
	}
	p := &Providers{}

	var err error
	p.Tracer, err = NewTracerProvider(ctx, Config{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		SamplingRatio:     cfg.SamplingRatio,
		ServiceName:       cfg.ServiceName,
		ServiceVersion:    serviceVersion,
		Insecure:          cfg.Insecure,
	}, logger)
	if err != nil {
		return nil, err
	}

	p.Meter, err = NewMeterProvider(ctx, MetricsConfig{
		Enabled:           cfg.Enabled && cfg.MetricsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ExportInterval:    cfg.ExportInterval,
		ServiceName:       cfg.ServiceName,
		ServiceVersion:    serviceVersion,
		Insecure:          cfg.Insecure,
	}, logger)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}

	p.Logs, err = NewLoggerProvider(ctx, LogsConfig{
		Enabled:           cfg.Enabled && cfg.LogsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ServiceName:       cfg.ServiceName,
		ServiceVersion:    serviceVersion,
		Insecure:          cfg.Insecure,
	}, logger)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}

	return p, nil
}

// DBTracing returns the gorm tracing configuration matching cfg
func DBTracing(cfg config.TelemetryConfig, dbSystem string) DBTracingConfig {
	dbCfg := DefaultDBTracingConfig()
	dbCfg.Enabled = cfg.Enabled && cfg.DBTraceEnabled
	dbCfg.LogFullSQL = cfg.DBLogFullSQL
	if dbSystem != "" {
		dbCfg.DBSystem = dbSystem
	}
	return dbCfg
}

// Shutdown flushes and stops every started provider, logs last so the other
// providers can still report
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	if p.Logs != nil {
		errs = append(errs, p.Logs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
