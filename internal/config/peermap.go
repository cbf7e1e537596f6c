package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PeerMap is the static node-to-account/peer configuration loaded once at
// process start. It is an immutable snapshot: callers receive it by pointer
// but never mutate it, which keeps the collector substitutable with test
// fixtures.
type PeerMap struct {
	Nodes map[string]PeerMapEntry `yaml:"nodes"`
}

// PeerMapEntry supplements one node's heartbeat-supplied metrics config.
type PeerMapEntry struct {
	Account          string   `yaml:"account"`
	PeerIDs          []string `yaml:"peer_ids"`
	OffchainIdentity string   `yaml:"offchain_identity"`
}

// Entry returns the static config for a node ID, if any.
func (m *PeerMap) Entry(nodeID string) (PeerMapEntry, bool) {
	if m == nil {
		return PeerMapEntry{}, false
	}
	e, ok := m.Nodes[nodeID]
	return e, ok
}

// LoadPeerMap reads the YAML peer map. An empty path yields an empty map;
// a missing or malformed file is an error, because silently running without
// configured peers would look like every peer disappeared.
func LoadPeerMap(path string) (*PeerMap, error) {
	if path == "" {
		return &PeerMap{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read peer map %s: %w", path, err)
	}

	var m PeerMap
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse peer map %s: %w", path, err)
	}
	return &m, nil
}
