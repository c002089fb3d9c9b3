package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"telemux/internal/domain"

	"github.com/twmb/franz-go/pkg/kgo"
)

func TestConfigValidate(t *testing.T) {
	cfg := Config{Enabled: true, Brokers: []string{"127.0.0.1:9092"}, Topic: "dl0.correlated"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := (Config{Enabled: true, Topic: "t"}).Validate(); err == nil {
		t.Fatalf("expected missing brokers error")
	}
	if err := (Config{Enabled: true, Brokers: []string{"b:9092"}}).Validate(); err == nil {
		t.Fatalf("expected missing topic error")
	}
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("disabled config should not validate: %v", err)
	}
}

func TestEncodeSummary(t *testing.T) {
	sum := domain.EventSummary{
		EventID:               42,
		SBID:                  123,
		ObsID:                 456,
		TriggerTime:           time.Date(2023, 8, 1, 12, 0, 0, 500, time.UTC),
		TelescopesWithTrigger: []domain.TelescopeID{1, 2, 3},
		TelescopesWithData:    []domain.TelescopeID{1, 2},
		MissingTelescopes:     []domain.TelescopeID{3},
	}
	rec, err := encodeSummary("dl0.correlated", sum)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(rec.Key) != "42" {
		t.Fatalf("unexpected record key: %q", rec.Key)
	}
	var decoded jsonSummary
	if err := json.Unmarshal(rec.Value, &decoded); err != nil {
		t.Fatalf("unmarshal record body: %v", err)
	}
	if decoded.EventID != 42 || decoded.SBID != 123 || decoded.ObsID != 456 {
		t.Fatalf("unexpected ids: %+v", decoded)
	}
	if decoded.TriggerTimeUTC != "2023-08-01T12:00:00.0000005Z" {
		t.Fatalf("unexpected trigger time: %q", decoded.TriggerTimeUTC)
	}
	if len(decoded.MissingTelescopes) != 1 || decoded.MissingTelescopes[0] != 3 {
		t.Fatalf("unexpected missing telescopes: %v", decoded.MissingTelescopes)
	}
}

func TestPublishAfterClose(t *testing.T) {
	e := &Emitter{cfg: Config{Topic: "t"}}
	produced := 0
	e.produce = func(context.Context, *kgo.Record) error { produced++; return nil }

	if err := e.Publish(context.Background(), domain.EventSummary{EventID: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := e.Publish(context.Background(), domain.EventSummary{EventID: 2}); err == nil {
		t.Fatalf("expected publish after close to fail")
	}
	if produced != 1 {
		t.Fatalf("expected exactly one produced record, got %d", produced)
	}
}

func TestPublishWrapsProduceError(t *testing.T) {
	e := &Emitter{cfg: Config{Topic: "t"}}
	produceErr := errors.New("broker unreachable")
	e.produce = func(context.Context, *kgo.Record) error { return produceErr }

	err := e.Publish(context.Background(), domain.EventSummary{EventID: 9})
	if !errors.Is(err, produceErr) {
		t.Fatalf("expected wrapped produce error, got %v", err)
	}
}
