package mqttbus

import "fmt"

// IPublisher publishes payloads on a fixed topic.
type IPublisher interface {
	Publish(payload []byte) error
	Topic() string
}

// Publisher is bound to one topic at construction.
type Publisher struct {
	conn  *Conn
	topic string
	qos   byte
}

func NewPublisher(conn *Conn, topic string) *Publisher {
	return &Publisher{conn: conn, topic: topic, qos: qosFor(topic)}
}

func (p *Publisher) Topic() string { return p.topic }

// Publish sends one payload. While disconnected it returns ErrNotConnected;
// there is no retry on individual publishes.
func (p *Publisher) Publish(payload []byte) error {
	if !p.conn.IsConnected() {
		return ErrNotConnected
	}
	token := p.conn.client.Publish(p.topic, p.qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, token.Error())
	}
	return nil
}
