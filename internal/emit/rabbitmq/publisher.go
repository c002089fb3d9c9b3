// Package rabbitmq publishes correlated event summaries to an AMQP exchange.
package rabbitmq

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"telemux/internal/domain"

	"github.com/rabbitmq/amqp091-go"
)

type Config struct {
	Enabled    bool
	URL        string
	Exchange   string
	RoutingKey string
	TLS        TLSConfig
	Auth       AuthConfig
}

type TLSConfig struct {
	Enabled            bool
	InsecureSkipVerify bool
	ServerName         string
	CAFile             string
	CertFile           string
	KeyFile            string
}

type AuthConfig struct {
	Username string
	Password string
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

type Publisher struct {
	cfg  Config
	conn *amqp091.Connection
	ch   *amqp091.Channel

	mu     sync.Mutex
	closed bool

	publish func(context.Context, string, amqp091.Publishing) error
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("rabbitmq url is required")
	}
	if c.Exchange == "" {
		return fmt.Errorf("rabbitmq exchange is required")
	}
	return nil
}

// NewPublisher dials the broker and declares the exchange. The exchange is a
// durable topic exchange so downstream consumers can bind per routing key.
func NewPublisher(cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = "telemetry.correlated"
	}

	dialCfg := amqp091.Config{}
	if cfg.Auth.Username != "" {
		dialCfg.SASL = []amqp091.Authentication{&amqp091.PlainAuth{Username: cfg.Auth.Username, Password: cfg.Auth.Password}}
	}
	if tlsCfg, err := buildTLSConfig(cfg.TLS); err != nil {
		return nil, err
	} else if tlsCfg != nil {
		dialCfg.TLSClientConfig = tlsCfg
	}
	conn, err := amqp091.DialConfig(cfg.URL, dialCfg)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := &Publisher{cfg: cfg, conn: conn, ch: ch}
	p.publish = func(ctx context.Context, key string, msg amqp091.Publishing) error {
		return ch.PublishWithContext(ctx, cfg.Exchange, key, false, false, msg)
	}
	return p, nil
}

// Publish writes one summary as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, sum domain.EventSummary) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errors.New("rabbitmq publisher closed")
	}
	msg, err := encodeSummary(sum)
	if err != nil {
		return err
	}
	if err := p.publish(ctx, p.cfg.RoutingKey, msg); err != nil {
		return fmt.Errorf("publish event %d: %w", sum.EventID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func encodeSummary(sum domain.EventSummary) (amqp091.Publishing, error) {
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
		return amqp091.Publishing{}, fmt.Errorf("marshal summary: %w", err)
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    strconv.FormatUint(sum.EventID, 10),
		Timestamp:    sum.TriggerTime.UTC(),
		Body:         body,
	}, nil
}

func buildTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: cfg.InsecureSkipVerify, ServerName: cfg.ServerName}
	if cfg.CAFile != "" {
		pemBytes, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read rabbitmq ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, fmt.Errorf("parse rabbitmq ca_file")
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.CertFile != "" || cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load rabbitmq cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}
