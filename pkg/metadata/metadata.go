// Package metadata loads AMO (addons.mozilla.org) extension metadata and
// serves cached lookups by extension id for the user-count filter flavor.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Record is one extension's AMO metadata, keyed by extension id.
type Record struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UserCount int64  `json:"user_count"`
}

// ErrMissingAddon is returned by Store.Get when an id has no metadata
// record.
var ErrMissingAddon = fmt.Errorf("metadata: extension id not found")

// Store serves metadata records loaded once from an AMO metadata JSON file,
// with an LRU in front of the lookup for corpora where the same handful of
// extension ids recur within one driver run. The cache lives only as long
// as the Store.
type Store struct {
	records map[string]Record
	cache   *lru.Cache[string, Record]
}

// Load reads path (the value of AMO_METADATA_JSON) as a JSON array of
// Record and builds a Store over it. A missing or malformed file is a
// fatal error at startup; the returned error carries a remediation string
// naming the env var.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("metadata: read %s (set AMO_METADATA_JSON to a valid metadata file): %w", path, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("metadata: parse %s as a JSON array of records (set AMO_METADATA_JSON to a valid metadata file): %w", path, err)
	}

	byID := make(map[string]Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	cache, err := lru.New[string, Record](len(records) + 1)
	if err != nil {
		return nil, fmt.Errorf("metadata: create lookup cache: %w", err)
	}

	return &Store{records: byID, cache: cache}, nil
}

// Get returns the metadata record for id, or ErrMissingAddon if none
// exists.
func (s *Store) Get(id string) (Record, error) {
	if r, ok := s.cache.Get(id); ok {
		return r, nil
	}
	r, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrMissingAddon, id)
	}
	s.cache.Add(id, r)
	return r, nil
}
