package mqtt

import (
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher implements message.Publisher over MQTT.
type Publisher struct {
	client client
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

var _ message.Publisher = (*Publisher)(nil)

func NewPublisher(c client, logger watermill.LoggerAdapter) *Publisher {
	return &Publisher{client: c, logger: logger}
}

func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	for _, msg := range messages {
		data, err := marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode message %s: %w", msg.UUID, err)
		}

		if err := wait(p.client.Publish(mqttTopic(topic), qos, false, data)); err != nil {
			return fmt.Errorf("failed to publish message %s: %w", msg.UUID, err)
		}

		p.logger.Trace("Message published to MQTT", watermill.LogFields{"uuid": msg.UUID, "topic": topic})
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
	p.client.Disconnect(250)

	return nil
}
