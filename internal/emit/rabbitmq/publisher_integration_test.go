package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"telemux/internal/domain"

	"github.com/rabbitmq/amqp091-go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func runRabbitMQ(t *testing.T) (string, func()) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("rabbitmq container unavailable: %v", err)
	}
	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5672")
	if err != nil {
		_ = c.Terminate(ctx)
		t.Fatalf("mapped port: %v", err)
	}
	url := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
	cleanup := func() { _ = c.Terminate(ctx) }
	return url, cleanup
}

func TestPublisherIntegration(t *testing.T) {
	url, cleanup := runRabbitMQ(t)
	defer cleanup()

	cfg := Config{Enabled: true, URL: url, Exchange: "telemetry", RoutingKey: "dl0.correlated"}
	pub, err := NewPublisher(cfg)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer pub.Close()

	conn, err := amqp091.Dial(url)
	if err != nil {
		t.Fatalf("dial amqp: %v", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	defer ch.Close()
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		t.Fatalf("declare queue: %v", err)
	}
	if err := ch.QueueBind(q.Name, "dl0.#", cfg.Exchange, false, nil); err != nil {
		t.Fatalf("bind queue: %v", err)
	}
	deliveries, err := ch.Consume(q.Name, "verify", true, true, false, false, nil)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	sum := domain.EventSummary{
		EventID:            21,
		SBID:               100,
		ObsID:              200,
		TriggerTime:        time.Now().UTC(),
		TelescopesWithData: []domain.TelescopeID{1, 3},
		MissingTelescopes:  []domain.TelescopeID{2},
	}
	if err := pub.Publish(context.Background(), sum); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case d := <-deliveries:
		var decoded jsonSummary
		if err := json.Unmarshal(d.Body, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if decoded.EventID != 21 {
			t.Fatalf("unexpected event id: %d", decoded.EventID)
		}
		if d.RoutingKey != "dl0.correlated" {
			t.Fatalf("unexpected routing key: %q", d.RoutingKey)
		}
	case <-time.After(8 * time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
}
