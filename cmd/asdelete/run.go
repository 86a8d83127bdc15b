package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dray-io/asdelete/internal/audit"
	"github.com/dray-io/asdelete/internal/config"
	"github.com/dray-io/asdelete/internal/logging"
	"github.com/dray-io/asdelete/internal/metrics"
	"github.com/dray-io/asdelete/internal/purge"
	"github.com/dray-io/asdelete/internal/store"
	"github.com/dray-io/asdelete/internal/store/aerospike"
	"github.com/dray-io/asdelete/internal/store/oxia"
)

// openStore connects the configured backend. Tests replace it.
var openStore = func(ctx context.Context, cfg *config.Config, opts options) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendOxia:
		return oxia.New(ctx, oxia.Config{
			ServiceAddress: net.JoinHostPort(opts.host, strconv.Itoa(opts.port)),
			RequestTimeout: time.Duration(cfg.Store.Oxia.RequestTimeoutMs) * time.Millisecond,
		})
	default:
		as := cfg.Store.Aerospike
		return aerospike.New(ctx, aerospike.Config{
			Host:               opts.host,
			Port:               opts.port,
			User:               as.User,
			Password:           as.Password,
			Timeout:            time.Duration(as.TimeoutMs) * time.Millisecond,
			SocketTimeout:      time.Duration(as.SocketTimeoutMs) * time.Millisecond,
			RecordsPerSecond:   as.RecordsPerSecond,
			MaxConcurrentNodes: as.MaxConcurrentNodes,
		})
	}
}

// openAudit builds the configured audit sinks. Tests replace it.
var openAudit = func(ctx context.Context, cfg *config.Config) (audit.Sink, error) {
	var sinks []audit.Sink

	if s3 := cfg.Audit.S3; s3.Enabled {
		compression, err := audit.ParseCompression(s3.Compression)
		if err != nil {
			return nil, err
		}
		sink, err := audit.NewS3Sink(ctx, audit.S3Config{
			Bucket:          s3.Bucket,
			Region:          s3.Region,
			Endpoint:        s3.Endpoint,
			AccessKeyID:     s3.AccessKey,
			SecretAccessKey: s3.SecretKey,
			UsePathStyle:    s3.UsePathStyle,
			Prefix:          s3.Prefix,
			Compression:     compression,
			BatchSize:       s3.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	if k := cfg.Audit.Kafka; k.Enabled {
		sink, err := audit.NewKafkaSink(audit.KafkaConfig{
			Brokers:  k.Brokers,
			Topic:    k.Topic,
			ClientID: k.ClientID,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	return audit.NewMulti(sinks...), nil
}

func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	// Command line flags override file and environment.
	if opts.backend != "" {
		cfg.Store.Backend = opts.backend
	}
	if opts.metricsAddr != "" {
		cfg.Observability.MetricsAddr = opts.metricsAddr
	}
	if opts.schedule != "" {
		cfg.Purge.Schedule = opts.schedule
	}
	if opts.logLevel != "" {
		cfg.Observability.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Observability.LogFormat = opts.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func execute(opts options, stdout io.Writer) int {
	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stdout, "failed to load config: %v\n", err)
		return exitFailure
	}

	logger := logging.Configure(cfg.Observability.LogLevel, cfg.Observability.LogFormat, stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLoggerCtx(ctx, logger)

	reg := prometheus.NewRegistry()
	purgeMetrics := metrics.NewPurgeMetricsWithRegistry(reg)
	storeMetrics := metrics.NewStoreMetricsWithRegistry(reg)

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		srv := metrics.NewServerWithRegistry(addr, reg)
		if err := srv.Start(); err != nil {
			logger.Warnf("metrics server failed to start", map[string]any{"addr": addr, "error": err.Error()})
		} else {
			logger.Infof("metrics server listening", map[string]any{"addr": srv.Addr()})
			defer func() {
				if err := srv.Err(); err != nil {
					logger.Warnf("metrics server stopped serving", map[string]any{"addr": srv.Addr(), "error": err.Error()})
				}
				srv.Close()
			}()
		}
	}

	logger.Infof(fmt.Sprintf("Host: %s, Port: %d", opts.host, opts.port), map[string]any{"backend": cfg.Store.Backend})
	st, err := openStore(ctx, cfg, opts)
	if err != nil {
		logger.Error(store.ResultMessage(err))
		logger.Errorf("Error details", map[string]any{"error": err.Error()})
		return exitFailure
	}
	defer st.Close()

	sink, err := openAudit(ctx, cfg)
	if err != nil {
		logger.Warnf("audit trail disabled", map[string]any{"error": err.Error()})
		sink = audit.Nop{}
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sink.Close(closeCtx); err != nil {
			logger.Warnf("audit close failed", map[string]any{"error": err.Error()})
		}
	}()

	ctrl := purge.NewController(
		store.NewInstrumentedStore(st, storeMetrics),
		nil,
		purge.WithMetrics(purgeMetrics),
		purge.WithAudit(sink),
		purge.WithProgressEvery(cfg.Purge.ProgressEvery),
		purge.WithStopOnDeleteError(cfg.Purge.StopOnDeleteError),
	)
	req := purge.Request{
		Host:       opts.host,
		Port:       opts.port,
		Namespace:  opts.namespace,
		Collection: opts.set,
		Days:       opts.days,
		Limit:      opts.limit,
		Verbose:    opts.verbose,
	}

	if cfg.Purge.Schedule != "" {
		sched := purge.NewScheduler(ctrl, cfg.Purge.Schedule, req, logger)
		if err := sched.Start(ctx); err != nil {
			logger.Errorf("failed to start scheduler", map[string]any{"error": err.Error()})
			return exitFailure
		}
		<-ctx.Done()
		logger.Info("received shutdown signal")
		sched.Stop()
		return exitOK
	}

	req.RunID = uuid.NewString()
	_, runErr := ctrl.Run(ctx, req)

	if url := cfg.Observability.PushGatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := metrics.Push(pushCtx, url, "asdelete", reg, map[string]string{
			"namespace": opts.namespace,
			"set":       opts.set,
		})
		cancel()
		if err != nil {
			logger.Warnf("metrics push failed", map[string]any{"error": err.Error()})
		}
	}

	if runErr != nil {
		return exitFailure
	}
	return exitOK
}
