package sqlbase

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationManager_Versions(t *testing.T) {
	t.Parallel()

	m := NewMigrationManager(slog.Default(), nil, map[int]string{3: "c", 1: "a", 2: "b"})

	assert.Equal(t, []int{1, 2, 3}, m.versions())
	assert.Equal(t, 3, m.latestVersion())
}

func TestMigrationManager_LatestVersion_Empty(t *testing.T) {
	t.Parallel()

	m := NewMigrationManager(slog.Default(), nil, map[int]string{})

	assert.Equal(t, 0, m.latestVersion())
}
