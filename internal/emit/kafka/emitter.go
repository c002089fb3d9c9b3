// Package kafka publishes correlated event summaries to a Kafka topic.
package kafka

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"telemux/internal/domain"

	"github.com/twmb/franz-go/pkg/kgo"
)

type Config struct {
	Enabled  bool
	Brokers  []string
	Topic    string
	ClientID string
	Auth     AuthConfig
}

type AuthConfig struct {
	TLS TLSConfig
}

type TLSConfig struct {
	Enabled            bool
	InsecureSkipVerify bool
}

type jsonSummary struct {
	EventID               uint64               `json:"event_id"`
	SBID                  uint64               `json:"sb_id"`
	ObsID                 uint64               `json:"obs_id"`
	TriggerTimeUTC        string               `json:"trigger_time_utc"`
	TelescopesWithTrigger []domain.TelescopeID `json:"telescopes_with_trigger"`
	TelescopesWithData    []domain.TelescopeID `json:"telescopes_with_data"`
	MissingTelescopes     []domain.TelescopeID `json:"missing_telescopes"`
}

type Emitter struct {
	cfg    Config
	client *kgo.Client
	closed atomic.Bool

	produce func(context.Context, *kgo.Record) error
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return errors.New("kafka.brokers is required")
	}
	if c.Topic == "" {
		return errors.New("kafka.topic is required")
	}
	return nil
}

func NewEmitter(cfg Config, opts ...kgo.Opt) (*Emitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kopts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.ZstdCompression()),
	}
	if cfg.ClientID != "" {
		kopts = append(kopts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.Auth.TLS.Enabled {
		kopts = append(kopts, kgo.DialTLSConfig(&tls.Config{InsecureSkipVerify: cfg.Auth.TLS.InsecureSkipVerify}))
	}
	kopts = append(kopts, opts...)

	cl, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("new kafka client: %w", err)
	}

	e := &Emitter{cfg: cfg, client: cl}
	e.produce = func(ctx context.Context, rec *kgo.Record) error {
		return cl.ProduceSync(ctx, rec).FirstErr()
	}
	return e, nil
}

// Publish writes one summary, keyed by event id so that replays of the same
// run land in the same partition.
func (e *Emitter) Publish(ctx context.Context, sum domain.EventSummary) error {
	if e.closed.Load() {
		return errors.New("kafka emitter closed")
	}
	rec, err := encodeSummary(e.cfg.Topic, sum)
	if err != nil {
		return err
	}
	if err := e.produce(ctx, rec); err != nil {
		return fmt.Errorf("produce event %d: %w", sum.EventID, err)
	}
	return nil
}

func (e *Emitter) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	if e.client != nil {
		e.client.Close()
	}
	return nil
}

func encodeSummary(topic string, sum domain.EventSummary) (*kgo.Record, error) {
	body, err := json.Marshal(jsonSummary{
		EventID:               sum.EventID,
		SBID:                  sum.SBID,
		ObsID:                 sum.ObsID,
		TriggerTimeUTC:        sum.TriggerTime.UTC().Format(time.RFC3339Nano),
		TelescopesWithTrigger: sum.TelescopesWithTrigger,
		TelescopesWithData:    sum.TelescopesWithData,
		MissingTelescopes:     sum.MissingTelescopes,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(strconv.FormatUint(sum.EventID, 10)),
		Value: body,
	}, nil
}
