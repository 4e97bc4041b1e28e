package main

import (
	"context"
	"io"

	"gennotes/internal/archive"
	"gennotes/internal/blob"
	"gennotes/internal/config"
	"gennotes/internal/core"
	"gennotes/internal/logging"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// app bundles the process-wide dependencies shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	store    core.PersistentStore
	svc      *core.Service
}

func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return nil, errors.Wrap(err, "register metrics")
	}

	store, err := core.OpenPersistentStore(ctx, core.StorageOptions{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, errors.Wrapf(err, "open %s store", cfg.Storage.Driver)
	}
	logger.Debug("store opened", zap.String("driver", cfg.Storage.Driver))

	svc := core.NewService(store,
		core.WithLogger(logging.NewCoreLogger(logger, "core")),
		core.WithAuditRecorder(logging.NewAuditRecorder(logger)),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(logging.NewTracer(logger)),
	)
	return &app{cfg: cfg, logger: logger, registry: registry, store: store, svc: svc}, nil
}

// exporter opens the configured blob store and wraps it in an archive exporter.
func (a *app) exporter(ctx context.Context) (*archive.Exporter, error) {
	bc := a.cfg.Blob
	store, err := blob.Open(ctx, blob.Options{
		Driver: blob.Driver(bc.Driver),
		FSRoot: bc.FSRoot,
		S3: blob.S3Config{
			Region:          bc.S3.Region,
			Bucket:          bc.S3.Bucket,
			Prefix:          bc.S3.Prefix,
			Endpoint:        bc.S3.Endpoint,
			AccessKeyID:     bc.S3.AccessKeyID,
			SecretAccessKey: bc.S3.SecretAccessKey,
			PathStyle:       bc.S3.UsePathStyle,
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s blob store", bc.Driver)
	}
	return archive.NewExporter(a.svc, store, a.logger.Named("archive")), nil
}

// Close releases the store and flushes the logger.
func (a *app) Close() {
	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
