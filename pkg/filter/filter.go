// Package filter implements three post-match filter flavors — permissions,
// manifest, and user-count. Each is a thin predicate over one
// corpus.Extension, applied by the driver after a Matcher has already
// decided an extension matched the query set.
package filter

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/praetorian-inc/weapifinder/pkg/corpus"
	"github.com/praetorian-inc/weapifinder/pkg/metadata"
)

// Func decides whether ext should be kept in the output.
type Func func(ext corpus.Extension) (bool, error)

// manifest is the subset of a browser extension's manifest.json this
// package reads. Extra fields are ignored.
type manifest struct {
	Permissions []string `json:"permissions"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
}

func readManifest(ext corpus.Extension) (manifest, error) {
	for name, content := range ext.Scripts {
		if path.Base(name) != "manifest.json" {
			continue
		}
		var m manifest
		if err := json.Unmarshal(content, &m); err != nil {
			return manifest{}, fmt.Errorf("filter: parse manifest.json in %s: %w", ext.Root, err)
		}
		return m, nil
	}
	return manifest{}, fmt.Errorf("filter: no manifest.json found in %s", ext.Root)
}

// ByPermissions keeps extensions whose manifest declares every permission
// in want.
func ByPermissions(want []string) Func {
	return func(ext corpus.Extension) (bool, error) {
		m, err := readManifest(ext)
		if err != nil {
			return false, err
		}
		declared := make(map[string]bool, len(m.Permissions))
		for _, p := range m.Permissions {
			declared[strings.ToLower(p)] = true
		}
		for _, p := range want {
			if !declared[strings.ToLower(p)] {
				return false, nil
			}
		}
		return true, nil
	}
}

// ByManifestVersion keeps extensions declaring one of the given manifest
// versions (e.g. "2", "3").
func ByManifestVersion(versions []string) Func {
	allowed := make(map[string]bool, len(versions))
	for _, v := range versions {
		allowed[v] = true
	}
	return func(ext corpus.Extension) (bool, error) {
		for name, content := range ext.Scripts {
			if path.Base(name) != "manifest.json" {
				continue
			}
			var raw struct {
				ManifestVersion json.Number `json:"manifest_version"`
			}
			if err := json.Unmarshal(content, &raw); err != nil {
				return false, fmt.Errorf("filter: parse manifest.json in %s: %w", ext.Root, err)
			}
			return allowed[raw.ManifestVersion.String()], nil
		}
		return false, fmt.Errorf("filter: no manifest.json found in %s", ext.Root)
	}
}

// ByUserCount keeps extensions whose AMO metadata user count is at least
// min. extensionID resolves an Extension's root to the id metadata.Store is
// keyed by (the driver supplies this since the id is derived from corpus
// layout conventions the engine has no opinion about).
func ByUserCount(store *metadata.Store, min int64, extensionID func(corpus.Extension) string) Func {
	return func(ext corpus.Extension) (bool, error) {
		id := extensionID(ext)
		record, err := store.Get(id)
		if err != nil {
			return false, err
		}
		return record.UserCount >= min, nil
	}
}
