// Package mqttbus wraps the external MQTT transport behind a small
// publish/subscribe surface. It owns the connect/reconnect lifecycle:
// connection state transitions only through the client callbacks, and every
// registered subscription is re-issued on reconnect before publication
// resumes, since commands missed during a disconnect window are never
// retried.
package mqttbus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected gates publish attempts while the broker is unreachable.
// Callers treat it as a skipped publish, not a failure.
var ErrNotConnected = errors.New("mqttbus: not connected")

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
}

// Event is one inbound delivery: topic plus raw payload.
type Event struct {
	Topic   string
	Payload []byte
}

type subscription struct {
	topic   string
	qos     byte
	handler mqtt.MessageHandler
}

// Conn is a shared broker connection. Publishers and Consumers are built on
// top of one Conn per process.
type Conn struct {
	client mqtt.Client

	mu        sync.Mutex
	connected bool
	subs      []subscription
}

// Dial connects to the broker, retrying with exponential backoff. Failure to
// connect after the retry budget is the only unrecoverable transport error;
// callers abort startup on it.
func Dial(ctx context.Context, cfg *Config) (*Conn, error) {
	connAddr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	c := &Conn{}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(connAddr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	maxRetries := 5

	err := backoff.Retry(func() error {
		c.client = mqtt.NewClient(opts)
		if token := c.client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("mqttbus: connect to %s failed: %v", connAddr, token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithMaxRetries(bo, uint64(maxRetries-1)))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	log.Printf("mqttbus: connected to broker at %s", connAddr)

	go func() {
		<-ctx.Done()
		c.client.Disconnect(250)
		log.Println("mqttbus: connection closed")
	}()

	return c, nil
}

// IsConnected reflects the state driven by the client callbacks.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Conn) onConnect(client mqtt.Client) {
	c.mu.Lock()
	subs := append([]subscription(nil), c.subs...)
	c.mu.Unlock()

	// Resubscribe before flipping the connected flag: publishers gate on it,
	// and a command arriving between resumed publication and a still-pending
	// control subscription would be lost for good. Clean sessions drop
	// subscriptions across reconnects, so every registered one is re-issued.
	for _, s := range subs {
		if token := client.Subscribe(s.topic, s.qos, s.handler); token.Wait() && token.Error() != nil {
			log.Printf("mqttbus: resubscribe %s failed: %v", s.topic, token.Error())
		}
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
}

func (c *Conn) onConnectionLost(_ mqtt.Client, err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	log.Printf("mqttbus: connection lost: %v", err)
}

// subscribe registers the topic so reconnects re-issue it, then subscribes
// immediately when already connected.
func (c *Conn) subscribe(topic string, qos byte, h mqtt.MessageHandler) error {
	c.mu.Lock()
	c.subs = append(c.subs, subscription{topic: topic, qos: qos, handler: h})
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		return nil // issued by onConnect
	}
	if token := c.client.Subscribe(topic, qos, h); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func (c *Conn) unsubscribe(topics ...string) {
	c.mu.Lock()
	kept := c.subs[:0]
	for _, s := range c.subs {
		drop := false
		for _, t := range topics {
			if s.topic == t {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, s)
		}
	}
	c.subs = kept
	c.mu.Unlock()

	token := c.client.Unsubscribe(topics...)
	token.Wait()
}
