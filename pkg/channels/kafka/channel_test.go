package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	_, err := Brokers()
	require.Error(t, err)

	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	brokers, err := Brokers()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, brokers)
}

func TestPartitionKey(t *testing.T) {
	msg := message.NewMessage("uuid", nil)
	msg.Metadata.Set("key", "WO-1001")

	key, err := partitionKey("topic", msg)
	require.NoError(t, err)
	assert.Equal(t, "WO-1001", key)
}
