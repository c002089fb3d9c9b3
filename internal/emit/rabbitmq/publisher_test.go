package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"telemux/internal/domain"

	"github.com/rabbitmq/amqp091-go"
)

func TestConfigValidate(t *testing.T) {
	cfg := Config{Enabled: true, URL: "amqp://127.0.0.1:5672/", Exchange: "telemetry"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := (Config{Enabled: true, Exchange: "telemetry"}).Validate(); err == nil {
		t.Fatalf("expected missing url error")
	}
	if err := (Config{Enabled: true, URL: "amqp://h/"}).Validate(); err == nil {
		t.Fatalf("expected missing exchange error")
	}
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("disabled config should not validate: %v", err)
	}
}

func TestEncodeSummary(t *testing.T) {
	sum := domain.EventSummary{
		EventID:            11,
		SBID:               100,
		ObsID:              200,
		TriggerTime:        time.Date(2023, 8, 1, 0, 0, 37, 0, time.UTC),
		TelescopesWithData: []domain.TelescopeID{1},
		MissingTelescopes:  []domain.TelescopeID{2},
	}
	msg, err := encodeSummary(sum)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if msg.MessageId != "11" {
		t.Fatalf("unexpected message id: %q", msg.MessageId)
	}
	if msg.DeliveryMode != amqp091.Persistent {
		t.Fatalf("expected persistent delivery mode")
	}
	var decoded jsonSummary
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if decoded.EventID != 11 || decoded.TriggerTimeUTC != "2023-08-01T00:00:37Z" {
		t.Fatalf("unexpected summary: %+v", decoded)
	}
}

func TestPublishRoutingKeyAndClose(t *testing.T) {
	p := &Publisher{cfg: Config{Exchange: "telemetry", RoutingKey: "dl0.sub003"}}
	var keys []string
	p.publish = func(_ context.Context, key string, _ amqp091.Publishing) error {
		keys = append(keys, key)
		return nil
	}

	if err := p.Publish(context.Background(), domain.EventSummary{EventID: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(keys) != 1 || keys[0] != "dl0.sub003" {
		t.Fatalf("unexpected routing keys: %v", keys)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := p.Publish(context.Background(), domain.EventSummary{EventID: 2}); err == nil {
		t.Fatalf("expected publish after close to fail")
	}
}

func TestPublishWrapsError(t *testing.T) {
	p := &Publisher{cfg: Config{Exchange: "telemetry", RoutingKey: "k"}}
	pubErr := errors.New("channel closed")
	p.publish = func(context.Context, string, amqp091.Publishing) error { return pubErr }

	err := p.Publish(context.Background(), domain.EventSummary{EventID: 3})
	if !errors.Is(err, pubErr) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}
