package mqttbus

import (
	"context"
	"log"
	"strings"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IConsumer delivers inbound events on a channel consumed by a dedicated
// processing loop, decoupling transport callbacks from application logic.
type IConsumer interface {
	Events() <-chan Event
	Run(ctx context.Context) error
}

// Consumer subscribes to one or more topics on a shared Conn. A full channel
// drops the delivery rather than blocking the transport callback; the bus is
// at-most-once anyway.
type Consumer struct {
	conn    *Conn
	topics  []string
	events  chan Event
	dropped atomic.Uint64
}

func NewConsumer(conn *Conn, buffer int, topics ...string) *Consumer {
	if buffer <= 0 {
		buffer = 64
	}
	return &Consumer{
		conn:   conn,
		topics: topics,
		events: make(chan Event, buffer),
	}
}

func (c *Consumer) Events() <-chan Event { return c.events }

// Dropped counts deliveries lost to a full inbound channel.
func (c *Consumer) Dropped() uint64 { return c.dropped.Load() }

// Run subscribes and blocks until the context is cancelled, then
// unsubscribes to clean up.
func (c *Consumer) Run(ctx context.Context) error {
	for _, topic := range c.topics {
		if err := c.conn.subscribe(topic, qosFor(topic), c.deliver); err != nil {
			return err
		}
		log.Printf("mqttbus: subscribed to %s", topic)
	}

	<-ctx.Done()
	c.conn.unsubscribe(c.topics...)
	return nil
}

func (c *Consumer) deliver(_ mqtt.Client, m mqtt.Message) {
	// copy the payload: paho may reuse the buffer after the callback returns
	payload := make([]byte, len(m.Payload()))
	copy(payload, m.Payload())

	select {
	case c.events <- Event{Topic: m.Topic(), Payload: payload}:
	default:
		n := c.dropped.Add(1)
		log.Printf("mqttbus: inbound channel full, dropping message on %s (dropped=%d)", m.Topic(), n)
	}
}

// qosFor picks per-topic QoS: control traffic rides QoS 1, telemetry QoS 0.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "sensors/control") {
		return 1
	}
	return 0
}
