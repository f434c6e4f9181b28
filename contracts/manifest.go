package contracts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// ArtifactManifest maps contract identifiers to the content IDs of their
// artifacts in a storage backend.
type ArtifactManifest struct {
	Contracts map[string]string `json:"contracts"`
}

// ParseManifest decodes a JSON manifest.
func ParseManifest(data []byte) (*ArtifactManifest, error) {
	var m ArtifactManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: invalid artifact manifest: %v", interfaces.ErrValidation, err)
	}
	if len(m.Contracts) == 0 {
		return nil, fmt.Errorf("%w: artifact manifest lists no contracts", interfaces.ErrValidation)
	}
	return &m, nil
}

// Resolve fetches every listed artifact from backend and checks that its
// bytes hash to the manifest entry.
func (m *ArtifactManifest) Resolve(ctx context.Context, backend interfaces.StorageBackend) (*ArtifactSet, error) {
	set := NewArtifactSet()
	for name, idHex := range m.Contracts {
		id, err := interfaces.NewContentIDFromHex(idHex)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %s: %w", name, err)
		}

		data, err := backend.Fetch(ctx, id, interfaces.ArtifactType)
		if err != nil {
			return nil, fmt.Errorf("fetching artifact %s from %s: %w", name, backend.Name(), err)
		}

		if interfaces.ComputeID(data) != id {
			return nil, fmt.Errorf("artifact %s: %w", name, interfaces.ErrContentMismatch)
		}

		a, err := ParseArtifact(data, name)
		if err != nil {
			return nil, err
		}
		if a.Name != name {
			return nil, fmt.Errorf("%w: manifest entry %s resolves to artifact %s", interfaces.ErrValidation, name, a.Name)
		}
		set.Add(a, data)
	}
	return set, nil
}

// PublishArtifacts stores the source documents of set in backend and returns
// the manifest describing them.
func PublishArtifacts(ctx context.Context, backend interfaces.StorageBackend, set *ArtifactSet) (*ArtifactManifest, error) {
	m := &ArtifactManifest{Contracts: make(map[string]string)}
	for _, name := range set.Names() {
		data, ok := set.Raw(name)
		if !ok {
			continue
		}
		id, err := backend.Store(ctx, data, interfaces.ArtifactType)
		if err != nil {
			return nil, fmt.Errorf("storing artifact %s: %w", name, err)
		}
		m.Contracts[name] = id.String()
	}
	if len(m.Contracts) == 0 {
		return nil, fmt.Errorf("%w: no artifact sources to publish", interfaces.ErrPrecondition)
	}
	return m, nil
}
