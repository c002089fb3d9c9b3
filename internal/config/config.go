package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"telemux/internal/acada"
	"telemux/internal/stream"
)

type Config struct {
	Source     SourceConfig     `mapstructure:"source"`
	Correlate  CorrelateConfig  `mapstructure:"correlate"`
	Layout     acada.Layout     `mapstructure:"layout"`
	Provenance ProvenanceConfig `mapstructure:"provenance"`
	Emit       EmitConfig       `mapstructure:"emit"`
}

type SourceConfig struct {
	Convention      string `mapstructure:"convention"`
	Rollover        bool   `mapstructure:"rollover"`
	DiscoverSources bool   `mapstructure:"discover_sources"`
	IgnoreTimestamp bool   `mapstructure:"ignore_timestamp"`
	Duplicates      string `mapstructure:"duplicates"`
}

type CorrelateConfig struct {
	Strict   bool `mapstructure:"strict"`
	Subarray int  `mapstructure:"subarray"`
}

type ProvenanceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type EmitConfig struct {
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type KafkaConfig struct {
	Enabled  bool      `mapstructure:"enabled"`
	Brokers  []string  `mapstructure:"brokers"`
	Topic    string    `mapstructure:"topic"`
	ClientID string    `mapstructure:"client_id"`
	TLS      TLSConfig `mapstructure:"tls"`
}

type RabbitMQConfig struct {
	Enabled    bool       `mapstructure:"enabled"`
	URL        string     `mapstructure:"url"`
	Exchange   string     `mapstructure:"exchange"`
	RoutingKey string     `mapstructure:"routing_key"`
	Auth       AuthConfig `mapstructure:"auth"`
	TLS        TLSConfig  `mapstructure:"tls"`
}

type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	ServerName         string `mapstructure:"server_name"`
	CAFile             string `mapstructure:"ca_file"`
	CertFile           string `mapstructure:"cert_file"`
	KeyFile            string `mapstructure:"key_file"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("telemux")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.convention", string(acada.ConventionDPPSICD))
	v.SetDefault("source.rollover", true)
	v.SetDefault("source.discover_sources", true)
	v.SetDefault("source.duplicates", string(stream.DuplicateTakeLast))

	layout := acada.DefaultLayout()
	v.SetDefault("layout.array_segment", layout.ArraySegment)
	v.SetDefault("layout.triggers_segment", layout.TriggersSegment)
	v.SetDefault("layout.events_segment", layout.EventsSegment)
	v.SetDefault("layout.telescope_template", layout.TelescopeTemplate)

	v.SetDefault("provenance.enabled", true)
	v.SetDefault("provenance.path", "telemux-provenance.db")

	v.SetDefault("emit.kafka.topic", "telemetry.correlated")
	v.SetDefault("emit.rabbitmq.exchange", "telemetry")
	v.SetDefault("emit.rabbitmq.routing_key", "telemetry.correlated")
}

func (c Config) Validate() error {
	switch acada.Convention(c.Source.Convention) {
	case acada.ConventionRel1, acada.ConventionDPPSICD:
	default:
		return fmt.Errorf("unknown source.convention %q", c.Source.Convention)
	}
	switch stream.DuplicatePolicy(c.Source.Duplicates) {
	case stream.DuplicateTakeLast, stream.DuplicateReject:
	default:
		return fmt.Errorf("unknown source.duplicates policy %q", c.Source.Duplicates)
	}
	if c.Provenance.Enabled && c.Provenance.Path == "" {
		return fmt.Errorf("provenance.path is required when provenance is enabled")
	}
	if c.Emit.Kafka.Enabled {
		if len(c.Emit.Kafka.Brokers) == 0 {
			return fmt.Errorf("emit.kafka.brokers is required")
		}
		if c.Emit.Kafka.Topic == "" {
			return fmt.Errorf("emit.kafka.topic is required")
		}
	}
	if c.Emit.RabbitMQ.Enabled {
		if c.Emit.RabbitMQ.URL == "" {
			return fmt.Errorf("emit.rabbitmq.url is required")
		}
		if c.Emit.RabbitMQ.Exchange == "" {
			return fmt.Errorf("emit.rabbitmq.exchange is required")
		}
	}
	return nil
}

// StreamOptions translates the source section into the stream layer's options.
func (c Config) StreamOptions() stream.Options {
	return stream.Options{
		Convention:      acada.Convention(c.Source.Convention),
		Rollover:        c.Source.Rollover,
		DiscoverSources: c.Source.DiscoverSources,
		IgnoreTimestamp: c.Source.IgnoreTimestamp,
		Duplicates:      stream.DuplicatePolicy(c.Source.Duplicates),
	}
}
