package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
)

// envelope carries the watermill UUID and metadata, which MQTT 3.1.1 has no headers for.
type envelope struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  json.RawMessage   `json:"payload"`
}

func marshal(msg *message.Message) ([]byte, error) {
	payload := json.RawMessage(msg.Payload)
	if !json.Valid(payload) {
		quoted, err := json.Marshal(string(msg.Payload))
		if err != nil {
			return nil, err
		}

		payload = quoted
	}

	return json.Marshal(envelope{
		UUID:     msg.UUID,
		Metadata: msg.Metadata,
		Payload:  payload,
	})
}

func unmarshal(data []byte) (*message.Message, error) {
	var env envelope

	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode mqtt envelope: %w", err)
	}

	msg := message.NewMessage(env.UUID, message.Payload(env.Payload))
	for key, value := range env.Metadata {
		msg.Metadata.Set(key, value)
	}

	return msg, nil
}
