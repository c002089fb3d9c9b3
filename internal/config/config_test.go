package config

import (
	"os"
	"path/filepath"
	"testing"

	"telemux/internal/acada"
	"telemux/internal/stream"
)

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	t.Setenv("TELEMUX_CORRELATE_STRICT", "true")

	path := filepath.Join(t.TempDir(), "telemux.yaml")
	content := []byte(`
source:
  convention: acada_rel1
  rollover: true
  ignore_timestamp: true
correlate:
  strict: false
  subarray: 3
provenance:
  enabled: true
  path: /var/lib/telemux/provenance.db
emit:
  kafka:
    enabled: true
    brokers: ["127.0.0.1:9092"]
    topic: dl0.correlated
  rabbitmq:
    enabled: false
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if !cfg.Correlate.Strict {
		t.Fatalf("expected env override to enable strict mode")
	}
	if cfg.Source.Convention != string(acada.ConventionRel1) {
		t.Fatalf("unexpected convention: %q", cfg.Source.Convention)
	}
	if cfg.Emit.Kafka.Topic != "dl0.correlated" {
		t.Fatalf("unexpected kafka topic: %q", cfg.Emit.Kafka.Topic)
	}
	if cfg.Correlate.Subarray != 3 {
		t.Fatalf("unexpected subarray: %d", cfg.Correlate.Subarray)
	}
}

func TestLoadTOMLDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemux.toml")
	content := []byte(`
[correlate]
strict = true
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}
	if cfg.Source.Convention != string(acada.ConventionDPPSICD) {
		t.Fatalf("unexpected default convention: %q", cfg.Source.Convention)
	}
	if !cfg.Source.Rollover || !cfg.Source.DiscoverSources {
		t.Fatalf("expected rollover and discovery on by default")
	}
	if cfg.Layout != acada.DefaultLayout() {
		t.Fatalf("unexpected default layout: %+v", cfg.Layout)
	}
	if cfg.Provenance.Path != "telemux-provenance.db" {
		t.Fatalf("unexpected default provenance path: %q", cfg.Provenance.Path)
	}
}

func TestValidateUnknownConvention(t *testing.T) {
	cfg := Config{
		Source: SourceConfig{Convention: "lst_private", Duplicates: string(stream.DuplicateTakeLast)},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected convention validation error")
	}
}

func TestValidateKafkaRequiresBrokers(t *testing.T) {
	cfg := Config{
		Source: SourceConfig{
			Convention: string(acada.ConventionDPPSICD),
			Duplicates: string(stream.DuplicateTakeLast),
		},
		Emit: EmitConfig{Kafka: KafkaConfig{Enabled: true, Topic: "t"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected kafka validation error")
	}
}

func TestStreamOptions(t *testing.T) {
	cfg := Config{
		Source: SourceConfig{
			Convention:      string(acada.ConventionRel1),
			Rollover:        true,
			IgnoreTimestamp: true,
			Duplicates:      string(stream.DuplicateReject),
		},
	}
	opts := cfg.StreamOptions()
	if opts.Convention != acada.ConventionRel1 {
		t.Fatalf("unexpected convention: %q", opts.Convention)
	}
	if !opts.Rollover || opts.DiscoverSources {
		t.Fatalf("unexpected rollover/discovery flags: %+v", opts)
	}
	if opts.Duplicates != stream.DuplicateReject {
		t.Fatalf("unexpected duplicate policy: %q", opts.Duplicates)
	}
}
