// Package tokenmap loads the immutable chain-A <-> chain-B token
// bijections described in spec §3 ("Token map"). The two directions are
// loaded from separate files and never merged: confusing them was a
// defect in the source this system was modeled on.
package tokenmap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind is a closed tagged variant: native coin vs an ERC-20-style
// fungible token. Dispatch on Kind, never on an interface hierarchy.
type Kind string

const (
	KindNative Kind = "native"
	KindToken  Kind = "token"
)

// Entry describes one side of a token bijection.
type Entry struct {
	Kind      Kind   `yaml:"kind"`
	EthAddr   string `yaml:"eth_addr,omitempty"`   // empty for native
	ScrtAddr  string `yaml:"scrt_addr"`
	Decimals  int    `yaml:"decimals"`
	Symbol    string `yaml:"symbol"`
}

// file is the on-disk shape of a token_map_eth / token_map_scrt file:
// a list of entries keyed by the source-chain address (or "native").
type file struct {
	Entries map[string]Entry `yaml:"entries"`
}

// Map is an immutable, process-wide lookup from a source-chain key
// ("native" or a hex/bech32 address) to the matching Entry describing
// the destination-chain coordinates. Once Load returns, a Map is never
// mutated; it has no exported mutating methods.
type Map struct {
	entries map[string]Entry
}

// New builds a Map directly from entries, bypassing file I/O. Used by
// tests and by callers that already have the bijection in memory.
func New(entries map[string]Entry) *Map {
	m := &Map{entries: make(map[string]Entry, len(entries))}
	for k, v := range entries {
		m.entries[k] = v
	}
	return m
}

// Load reads a token map file from disk. direction is purely a label
// used in error messages ("eth->scrt" or "scrt->eth") so the two
// directions are never silently interchanged by a caller.
func Load(path, direction string) (*Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("token map (%s): read %s: %w", direction, path, err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("token map (%s): parse %s: %w", direction, path, err)
	}

	m := &Map{entries: make(map[string]Entry, len(f.Entries))}
	for key, entry := range f.Entries {
		if entry.Kind != KindNative && entry.Kind != KindToken {
			return nil, fmt.Errorf("token map (%s): entry %q has unknown kind %q", direction, key, entry.Kind)
		}
		m.entries[key] = entry
	}
	return m, nil
}

// Resolve looks up the destination-chain coordinates for a source-chain
// key ("native" or an address). The bool reports whether the key is
// mapped; an unmapped key must fail validation (spec §4.4: "fail
// validation if unmapped"), never fall back to a default.
func (m *Map) Resolve(key string) (Entry, bool) {
	e, ok := m.entries[key]
	return e, ok
}

// Len reports how many entries this direction maps, useful for readiness
// logging and tests.
func (m *Map) Len() int {
	return len(m.entries)
}
