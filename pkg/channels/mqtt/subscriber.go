package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// Subscriber implements message.Subscriber over MQTT. Each delivery waits for Ack before the
// next message on the topic is handed out; a Nack redelivers.
type Subscriber struct {
	client client
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	closed  bool
	closing chan struct{}
	outputs map[string]chan *message.Message
	wg      sync.WaitGroup
}

var _ message.Subscriber = (*Subscriber)(nil)

func NewSubscriber(c client, logger watermill.LoggerAdapter) *Subscriber {
	return &Subscriber{
		client:  c,
		logger:  logger,
		closing: make(chan struct{}),
		outputs: make(map[string]chan *message.Message),
	}
}

func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	output := make(chan *message.Message)

	err := wait(s.client.Subscribe(mqttTopic(topic), qos, s.handler(ctx, topic, output)))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	s.outputs[topic] = output

	return output, nil
}

func (s *Subscriber) handler(ctx context.Context, topic string, output chan *message.Message) paho.MessageHandler {
	return func(_ paho.Client, raw paho.Message) {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()

			return
		}

		s.wg.Add(1)
		s.mu.Unlock()

		defer s.wg.Done()

		fields := watermill.LogFields{"topic": topic}

		for {
			msg, err := unmarshal(raw.Payload())
			if err != nil {
				s.logger.Error("Dropping undecodable MQTT message", err, fields)

				return
			}

			msgCtx, cancel := context.WithCancel(ctx)
			msg.SetContext(msgCtx)

			select {
			case output <- msg:
			case <-s.closing:
				cancel()

				return
			case <-ctx.Done():
				cancel()

				return
			}

			select {
			case <-msg.Acked():
				cancel()

				return
			case <-msg.Nacked():
				cancel()
				s.logger.Debug("Message nacked, redelivering", fields.Add(watermill.LogFields{"uuid": msg.UUID}))
			case <-s.closing:
				cancel()

				return
			case <-ctx.Done():
				cancel()

				return
			}
		}
	}
}

func (s *Subscriber) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	close(s.closing)

	topics := make([]string, 0, len(s.outputs))
	for topic := range s.outputs {
		topics = append(topics, mqttTopic(topic))
	}
	s.mu.Unlock()

	if len(topics) > 0 {
		if err := wait(s.client.Unsubscribe(topics...)); err != nil {
			s.logger.Error("Failed to unsubscribe", err, nil)
		}
	}

	s.client.Disconnect(250)
	s.wg.Wait()

	s.mu.Lock()
	for _, output := range s.outputs {
		close(output)
	}
	s.mu.Unlock()

	return nil
}
