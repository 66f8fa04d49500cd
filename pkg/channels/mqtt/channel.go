// Package mqtt bridges watermill messages onto an MQTT broker so shop-floor displays can follow
// schedule changes.
package mqtt

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultBrokerURL = "tcp://localhost:1883"
	qos              = byte(1)
	tokenTimeout     = 10 * time.Second
)

var (
	ErrTimeout = errors.New("mqtt operation timed out")
	ErrClosed  = errors.New("mqtt channel closed")
)

// client is the part of paho.Client the channel needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
	Disconnect(quiesce uint)
}

// BrokerURL returns the MQTT broker URL from env or default.
func BrokerURL() string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}

	return defaultBrokerURL
}

// CreateChannel connects one client for publishing and one for subscribing.
func CreateChannel(logger watermill.LoggerAdapter, serviceName string) (*Publisher, *Subscriber, error) {
	pubClient, err := connect(serviceName + "-pub-" + watermill.NewShortUUID())
	if err != nil {
		return nil, nil, err
	}

	subClient, err := connect(serviceName + "-sub-" + watermill.NewShortUUID())
	if err != nil {
		pubClient.Disconnect(250)

		return nil, nil, err
	}

	return NewPublisher(pubClient, logger), NewSubscriber(subClient, logger), nil
}

func connect(clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(BrokerURL()).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetOrderMatters(true)

	c := paho.NewClient(opts)

	if err := wait(c.Connect()); err != nil {
		return nil, err
	}

	return c, nil
}

func wait(token paho.Token) error {
	if !token.WaitTimeout(tokenTimeout) {
		return ErrTimeout
	}

	return token.Error()
}

// mqttTopic maps a dotted watermill topic onto the MQTT level separator.
func mqttTopic(topic string) string {
	return strings.ReplaceAll(topic, ".", "/")
}
