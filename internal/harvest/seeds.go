package harvest

import (
	"encoding/base64"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Seed is one settled value, msgpack encoded.
type Seed struct {
	Key   string `msgpack:"k" json:"key"`
	Value []byte `msgpack:"v" json:"value"`
}

// Seeds is an ordered snapshot of settled values. Order follows the
// traversal order in which the values were first requested.
type Seeds []Seed

// Lookup returns the encoded value stored under key.
func (s Seeds) Lookup(key string) ([]byte, bool) {
	for _, seed := range s {
		if seed.Key == key {
			return seed.Value, true
		}
	}
	return nil, false
}

// Keys returns the snapshot's keys in order.
func (s Seeds) Keys() []string {
	keys := make([]string, len(s))
	for i, seed := range s {
		keys[i] = seed.Key
	}
	return keys
}

// EncodeSeeds serializes a snapshot into a string safe to embed in HTML.
// An empty snapshot encodes to the empty string.
func EncodeSeeds(seeds Seeds) (string, error) {
	if len(seeds) == 0 {
		return "", nil
	}
	packed, err := msgpack.Marshal(seeds)
	if err != nil {
		return "", fmt.Errorf("encoding seeds: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(packed), nil
}

// DecodeSeeds parses a string produced by EncodeSeeds.
func DecodeSeeds(encoded string) (Seeds, error) {
	if encoded == "" {
		return nil, nil
	}
	packed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding seeds: %w", err)
	}
	var seeds Seeds
	if err := msgpack.Unmarshal(packed, &seeds); err != nil {
		return nil, fmt.Errorf("decoding seeds: %w", err)
	}
	return seeds, nil
}
