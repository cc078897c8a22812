// Package factory owns construction and lifecycle of every dependency:
// nothing in this codebase is wired at import time, so tests can build
// isolated instances and shutdown can stop background work explicitly.
package factory

import (
	"context"
	"fmt"
	"sync"

	"codepath-guard/internal/auditlog"
	"codepath-guard/internal/client"
	"codepath-guard/internal/config"
	"codepath-guard/internal/handler"
	"codepath-guard/internal/ratelimit"
	"codepath-guard/internal/tls"
	"codepath-guard/internal/util"
	"codepath-guard/internal/validation"
)

type Factory struct {
	config     *config.Config
	tlsManager *tls.Manager

	redisClient   *client.RedisClient
	kafkaProducer *client.KafkaProducer

	limiter       ratelimit.Limiter
	memoryLimiter *ratelimit.MemoryLimiter
	auditLogger   *auditlog.Logger
	registry      *validation.Registry

	closeOnce sync.Once
}

// NewFactory loads configuration and initializes all dependencies. The
// Redis-backed limiter and the Kafka publisher are optional: when their
// backends are not configured the service runs self-contained.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	f := &Factory{config: cfg}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewManager(&tls.Config{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			Email:       cfg.Server.Email,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Environment: cfg.Environment,
		})
	}

	if err := f.initializeClients(); err != nil {
		return nil, err
	}
	if err := f.initializeCore(); err != nil {
		f.Close()
		return nil, err
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("redis_limiter", f.redisClient != nil),
		util.Bool("kafka_publisher", f.kafkaProducer != nil),
	)

	return f, nil
}

func (f *Factory) initializeClients() error {
	if f.config.Redis.URL != "" {
		redisClient, err := client.NewRedisClient(f.config, util.Get())
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		f.redisClient = redisClient
	}

	if len(f.config.Kafka.Brokers) > 0 && f.config.AuditLog.KafkaTopic != "" {
		producer, err := client.NewKafkaProducer(f.config, util.Get())
		if err != nil {
			// The file trail is the source of truth; Kafka is a mirror.
			util.Warn("Kafka producer initialization failed - proceeding without publisher",
				util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	return nil
}

func (f *Factory) initializeCore() error {
	limiterCfg := ratelimit.Config{
		Window:          f.config.RateLimit.Window,
		MaxRequests:     f.config.RateLimit.MaxRequests,
		CleanupInterval: f.config.RateLimit.CleanupInterval,
		Shards:          f.config.RateLimit.Shards,
	}

	if f.redisClient != nil {
		f.limiter = ratelimit.NewRedisLimiter(f.redisClient, limiterCfg, util.Get())
	} else {
		f.memoryLimiter = ratelimit.NewMemoryLimiter(limiterCfg, util.Get())
		f.memoryLimiter.Start()
		f.limiter = f.memoryLimiter
	}

	var publisher auditlog.Publisher
	if f.kafkaProducer != nil {
		publisher = &kafkaPublisher{
			producer: f.kafkaProducer,
			topic:    f.config.AuditLog.KafkaTopic,
		}
	}

	auditLogger, err := auditlog.New(f.config.AuditLog.Dir, f.config.AuditLog.QueueSize, util.Get(), publisher)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	f.auditLogger = auditLogger

	f.registry = validation.NewRegistry()
	if err := validation.RegisterBuiltins(f.registry); err != nil {
		return fmt.Errorf("schema registry: %w", err)
	}

	return nil
}

func (f *Factory) Config() *config.Config { return f.config }

func (f *Factory) TLSManager() *tls.Manager { return f.tlsManager }

func (f *Factory) Limiter() ratelimit.Limiter { return f.limiter }

func (f *Factory) AuditLogger() *auditlog.Logger { return f.auditLogger }

func (f *Factory) Registry() *validation.Registry { return f.registry }

// HealthChecks lists the optional backends the health endpoint probes.
func (f *Factory) HealthChecks() map[string]handler.HealthChecker {
	checks := make(map[string]handler.HealthChecker)
	if f.redisClient != nil {
		checks["redis"] = f.redisClient
	}
	return checks
}

// Close stops background work in reverse dependency order. Safe to call
// more than once.
func (f *Factory) Close() {
	f.closeOnce.Do(func() {
		if f.memoryLimiter != nil {
			f.memoryLimiter.Stop()
		}
		if f.auditLogger != nil {
			f.auditLogger.Close()
		}
		if f.kafkaProducer != nil {
			_ = f.kafkaProducer.Close()
		}
		if f.redisClient != nil {
			_ = f.redisClient.Close()
		}
	})
}

// kafkaPublisher adapts the Kafka producer to the audit log's sink
// interface.
type kafkaPublisher struct {
	producer *client.KafkaProducer
	topic    string
}

func (p *kafkaPublisher) Publish(ctx context.Context, key string, value []byte) error {
	return p.producer.ProduceMessage(ctx, p.topic, []byte(key), value)
}
