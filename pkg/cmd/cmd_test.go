package cmd

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/machineline/pkg/locking/memory"
	"github.com/dukex/machineline/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

func TestParsePersistenceProvider(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"file:///var/lib/machineline":   "file",
		"./data":                        "file",
		"postgres://u:p@localhost/db":   "postgres",
		"postgresql://u:p@localhost/db": "postgresql",
		"mysql://u:p@localhost/db":      "file",
		"":                              "file",
	}

	for url, want := range tests {
		assert.Equal(t, want, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence_File(t *testing.T) {
	t.Parallel()

	p, err := NewPersistence(t.Context(), logger, "file://"+t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)
	require.NoError(t, p.HealthCheck(t.Context()))
}

func TestNewEventBus(t *testing.T) {
	t.Parallel()

	for _, provider := range []string{"", "gochannel", "memory"} {
		bus, err := NewEventBus(provider, logger)
		require.NoError(t, err, provider)
		require.NoError(t, bus.Close())
	}

	_, err := NewEventBus("rabbitmq", logger)
	require.Error(t, err)
}

func TestNewLocker(t *testing.T) {
	t.Parallel()

	for _, url := range []string{"", "memory"} {
		locker, err := NewLocker(t.Context(), logger, url, time.Second)
		require.NoError(t, err)
		assert.IsType(t, &memory.Locker{}, locker)
	}

	_, err := NewLocker(t.Context(), logger, "etcd://localhost:2379", time.Second)
	require.Error(t, err)
}

func TestSetupTracing_Disabled(t *testing.T) {
	t.Parallel()

	shutdown, err := SetupTracing(t.Context(), false, "machineline-test", logger)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	shutdown(t.Context())
}
