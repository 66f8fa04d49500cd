package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
)

// VersionRepository stores the commit sequence number of every machine in machine_versions.json.
type VersionRepository struct {
	root string
}

func NewVersionRepository(root string) *VersionRepository {
	return &VersionRepository{root: root}
}

func (vr *VersionRepository) Load() (map[string]int64, error) {
	versions := make(map[string]int64)

	body, err := os.ReadFile(vr.path())
	if err != nil {
		if os.IsNotExist(err) {
			return versions, nil
		}

		return nil, fmt.Errorf("failed to read machine versions: %w", err)
	}

	if err := json.Unmarshal(body, &versions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal machine versions: %w", err)
	}

	return versions, nil
}

func (vr *VersionRepository) Save(versions map[string]int64) error {
	if err := os.MkdirAll(vr.root, 0750); err != nil {
		return fmt.Errorf("failed to create persistence root: %w", err)
	}

	data, err := json.MarshalIndent(versions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal machine versions: %w", err)
	}

	return writeFileAtomic(vr.path(), data)
}

func (vr *VersionRepository) path() string {
	return path.Join(vr.root, "machine_versions.json")
}
