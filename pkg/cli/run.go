package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimburion/docprobe/pkg/checker"
	"github.com/nimburion/docprobe/pkg/config"
	"github.com/nimburion/docprobe/pkg/observability/logger"
	"github.com/nimburion/docprobe/pkg/observability/metrics"
	"github.com/nimburion/docprobe/pkg/observability/tracing"
	"github.com/nimburion/docprobe/pkg/repository/document"
	"github.com/nimburion/docprobe/pkg/service"
	"github.com/nimburion/docprobe/pkg/suite"
	"github.com/nimburion/docprobe/pkg/version"
)

const (
	tracerName  = "github.com/nimburion/docprobe"
	pushTimeout = 10 * time.Second
)

// ErrUnhealthy is returned by the healthcheck command when the store is not healthy.
var ErrUnhealthy = errors.New("store is unhealthy")

func runChecks(ctx context.Context, cfg *config.Config, log logger.Logger, adapter document.Adapter, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	info := version.Current(cfg.Service.Name)
	log.Info("starting checklist", "build", info.String(), "store", cfg.Store.Type, "extended", cfg.Checker.Extended)
	tp, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: info.Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
		Insecure:       true,
	})
	if err != nil {
		return fmt.Errorf("create tracer provider: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to shutdown tracer provider", "error", err)
		}
	}()

	svc := service.New(service.Options{
		Name:           cfg.Service.Name,
		Collection:     cfg.Store.Collection,
		Store:          cfg.Store,
		Adapter:        adapter,
		AfterConnected: suite.AfterConnected(cfg.Store.TextIndexFields),
	}, log)
	defer func() {
		if err := svc.Stop(context.WithoutCancel(ctx)); err != nil {
			log.Error("failed to stop service", "error", err)
		}
	}()
	if err := svc.Start(ctx); err != nil {
		return err
	}

	registry := metrics.NewRegistry()
	opts := suite.Options{Extended: cfg.Checker.Extended}
	c := checker.New(
		checker.WithLogger(log),
		checker.WithOutput(out),
		checker.WithCheckTimeout(cfg.Checker.CheckTimeout),
		checker.WithMetrics(registry),
		checker.WithTracer(tp.Tracer(tracerName)),
		checker.WithExpected(suite.ExpectedAssertions(opts)),
	)
	suite.Register(c, svc.Adapter, &suite.IDs{}, opts)

	if err := waitStartup(ctx, cfg.Checker.StartupDelay); err != nil {
		return err
	}

	report, err := c.Run(ctx)
	if err != nil {
		return err
	}
	if err := svc.Stop(ctx); err != nil {
		log.Error("failed to stop service", "error", err)
	}
	if err := report.Print(out); err != nil {
		return fmt.Errorf("print report: %w", err)
	}
	pushMetrics(ctx, cfg, log, registry)

	if cfg.Checker.FailOnError {
		return suite.Verify(report)
	}
	return nil
}

func waitStartup(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func pushMetrics(ctx context.Context, cfg *config.Config, log logger.Logger, registry *metrics.Registry) {
	url := cfg.Observability.MetricsPushURL
	if url == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()

	grouping := map[string]string{"store": cfg.Store.Type, "collection": cfg.Store.Collection}
	if err := registry.Push(pushCtx, url, cfg.Observability.MetricsJob, grouping); err != nil {
		log.Warn("failed to push metrics", "url", url, "error", err)
		return
	}
	log.Info("metrics pushed", "url", url, "job", cfg.Observability.MetricsJob)
}

func checkHealth(ctx context.Context, cfg *config.Config, log logger.Logger, adapter document.Adapter, out io.Writer) error {
	svc := service.New(service.Options{
		Name:       cfg.Service.Name,
		Collection: cfg.Store.Collection,
		Store:      cfg.Store,
		Adapter:    adapter,
	}, log)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := svc.Stop(context.WithoutCancel(ctx)); err != nil {
			log.Error("failed to stop service", "error", err)
		}
	}()

	result, err := svc.Health(ctx)
	if err != nil {
		return err
	}
	if err := result.Print(out); err != nil {
		return fmt.Errorf("print health: %w", err)
	}
	if !result.IsHealthy() {
		return ErrUnhealthy
	}
	return nil
}
