package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"telemux/internal/acada"
	"telemux/internal/config"
	"telemux/internal/correlate"
	"telemux/internal/domain"
	"telemux/internal/emit/kafka"
	"telemux/internal/emit/rabbitmq"
	"telemux/internal/instrument"
	"telemux/internal/provenance"
	"telemux/internal/stream"
)

type summaryEmitter interface {
	Publish(context.Context, domain.EventSummary) error
	Close() error
}

func main() {
	cfgPath := flag.String("config", "telemux.yaml", "path to config file")
	triggerPath := flag.String("trigger", "", "path to the first trigger chunk file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *triggerPath == "" {
		log.Fatalf("-trigger is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, missing, err := run(ctx, cfg, *triggerPath, logger)
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
	fmt.Printf("telemuxd events=%d missing=%d kafka=%t rabbitmq=%t\n",
		events, missing, cfg.Emit.Kafka.Enabled, cfg.Emit.RabbitMQ.Enabled)
}

func run(ctx context.Context, cfg config.Config, triggerPath string, logger *zap.Logger) (events, missing uint64, err error) {
	registry, err := instrument.Load()
	if err != nil {
		return 0, 0, fmt.Errorf("load instrument registry: %w", err)
	}

	tels, err := subarrayTelescopes(cfg, triggerPath, registry)
	if err != nil {
		return 0, 0, err
	}

	telescopePaths := make(map[domain.TelescopeID]string, len(tels))
	for _, tel := range tels {
		path, err := cfg.Layout.TelescopeChunkPath(triggerPath, tel, acada.Convention(cfg.Source.Convention))
		if err != nil {
			return 0, 0, fmt.Errorf("derive path for %s: %w", registry.ElementName(tel), err)
		}
		telescopePaths[tel] = path
	}

	var recorder stream.Recorder
	if cfg.Provenance.Enabled {
		store, err := provenance.Open(cfg.Provenance.Path)
		if err != nil {
			return 0, 0, fmt.Errorf("open provenance store: %w", err)
		}
		defer store.Close()
		recorder = store
	}

	emitters, err := openEmitters(cfg)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		for _, e := range emitters {
			_ = e.Close()
		}
	}()

	opts := correlate.Options{Stream: cfg.StreamOptions(), Strict: cfg.Correlate.Strict, Names: registry}
	corr, err := correlate.Open(triggerPath, telescopePaths, opts, logger, recorder)
	if err != nil {
		return 0, 0, err
	}
	defer corr.Close()

	for {
		if ctx.Err() != nil {
			logger.Info("interrupted", zap.Uint64("events", events))
			return events, corr.MissingCount(), nil
		}
		ev, ok, err := corr.Next()
		if err != nil {
			return events, corr.MissingCount(), err
		}
		if !ok {
			return events, corr.MissingCount(), nil
		}
		events++
		sum := ev.Summary()
		for _, e := range emitters {
			if err := e.Publish(ctx, sum); err != nil {
				return events, corr.MissingCount(), fmt.Errorf("emit event %d: %w", sum.EventID, err)
			}
		}
	}
}

// subarrayTelescopes resolves the telescope set to correlate. An explicit
// correlate.subarray wins; otherwise the subarray id is taken from the
// trigger file name.
func subarrayTelescopes(cfg config.Config, triggerPath string, registry *instrument.Registry) ([]domain.TelescopeID, error) {
	id := cfg.Correlate.Subarray
	if id == 0 {
		info, err := acada.Parse(triggerPath, acada.Convention(cfg.Source.Convention))
		if err != nil {
			return nil, fmt.Errorf("parse trigger path: %w", err)
		}
		if info.ElementType != acada.ElementSubarray {
			return nil, fmt.Errorf("trigger path %q is not a subarray file and correlate.subarray is unset", triggerPath)
		}
		id = info.ElementID
	}
	tels, err := registry.SubarrayTelescopes(id)
	if err != nil {
		return nil, err
	}
	return tels, nil
}

func openEmitters(cfg config.Config) ([]summaryEmitter, error) {
	var emitters []summaryEmitter
	if cfg.Emit.Kafka.Enabled {
		e, err := kafka.NewEmitter(kafka.Config{
			Enabled:  true,
			Brokers:  cfg.Emit.Kafka.Brokers,
			Topic:    cfg.Emit.Kafka.Topic,
			ClientID: cfg.Emit.Kafka.ClientID,
			Auth: kafka.AuthConfig{TLS: kafka.TLSConfig{
				Enabled:            cfg.Emit.Kafka.TLS.Enabled,
				InsecureSkipVerify: cfg.Emit.Kafka.TLS.InsecureSkipVerify,
			}},
		})
		if err != nil {
			return nil, fmt.Errorf("open kafka emitter: %w", err)
		}
		emitters = append(emitters, e)
	}
	if cfg.Emit.RabbitMQ.Enabled {
		p, err := rabbitmq.NewPublisher(rabbitmq.Config{
			Enabled:    true,
			URL:        cfg.Emit.RabbitMQ.URL,
			Exchange:   cfg.Emit.RabbitMQ.Exchange,
			RoutingKey: cfg.Emit.RabbitMQ.RoutingKey,
			Auth: rabbitmq.AuthConfig{
				Username: cfg.Emit.RabbitMQ.Auth.Username,
				Password: cfg.Emit.RabbitMQ.Auth.Password,
			},
			TLS: rabbitmq.TLSConfig{
				Enabled:            cfg.Emit.RabbitMQ.TLS.Enabled,
				InsecureSkipVerify: cfg.Emit.RabbitMQ.TLS.InsecureSkipVerify,
				ServerName:         cfg.Emit.RabbitMQ.TLS.ServerName,
				CAFile:             cfg.Emit.RabbitMQ.TLS.CAFile,
				CertFile:           cfg.Emit.RabbitMQ.TLS.CertFile,
				KeyFile:            cfg.Emit.RabbitMQ.TLS.KeyFile,
			},
		})
		if err != nil {
			for _, e := range emitters {
				_ = e.Close()
			}
			return nil, fmt.Errorf("open rabbitmq publisher: %w", err)
		}
		emitters = append(emitters, p)
	}
	return emitters, nil
}
