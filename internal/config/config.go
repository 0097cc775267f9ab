// Package config resolves the driver's configuration from flags,
// environment variables, and defaults, in that precedence order.
package config

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/spf13/viper"
)

// Filter names the three recognized filter flavors.
const (
	FilterPermissions = "permissions"
	FilterManifest    = "manifest"
	FilterUserCount   = "user-count"
)

// Config is the driver's resolved configuration. None of these fields are
// read by pkg/queryengine itself — NumThreads crosses into
// queryengine.NewWorkerPool only as an already-resolved int.
type Config struct {
	// NumThreads bounds the worker pool's ceiling. Resolved from
	// WE_API_FINDER_NUM_THREADS if set and positive, else host
	// parallelism, else runtime.NumCPU(), else 1.
	NumThreads int

	// MetadataPath is the AMO metadata JSON file path (AMO_METADATA_JSON),
	// required only when Filter == FilterUserCount.
	MetadataPath string

	// IgnoreMissingAddon makes an AMO metadata file that cannot be loaded at
	// startup disable the user-count filter instead of being a fatal error
	// (IGNORE_MISSING_ADDON). It does not change how a scanned extension
	// with no metadata record is handled.
	IgnoreMissingAddon bool

	// Filter selects which filter.Func flavor the driver applies.
	Filter string

	// Async selects the pooled AsyncMatcher flavor over the default
	// synchronous Matcher.
	Async bool

	// Queries is the list of dotted API queries to compile.
	Queries []string
}

// Load resolves Config from cobra flags already bound into v, falling back
// to WE_API_FINDER_NUM_THREADS / AMO_METADATA_JSON / IGNORE_MISSING_ADDON
// via viper's AutomaticEnv, and finally to host-parallelism/CPU-count
// defaults for NumThreads. Flags > environment > defaults.
func Load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.BindEnv("numthreads", "WE_API_FINDER_NUM_THREADS")
	v.BindEnv("metadatapath", "AMO_METADATA_JSON")
	v.BindEnv("ignoremissingaddon", "IGNORE_MISSING_ADDON")

	cfg := Config{
		NumThreads:         resolveNumThreads(v.GetString("numthreads")),
		MetadataPath:       v.GetString("metadatapath"),
		IgnoreMissingAddon: v.GetBool("ignoremissingaddon"),
		Filter:             v.GetString("filter"),
		Async:              v.GetBool("async"),
		Queries:            v.GetStringSlice("queries"),
	}

	if cfg.Filter != "" {
		switch cfg.Filter {
		case FilterPermissions, FilterManifest, FilterUserCount:
		default:
			return Config{}, fmt.Errorf("config: unknown filter flavor %q (want %q, %q, or %q)",
				cfg.Filter, FilterPermissions, FilterManifest, FilterUserCount)
		}
	}
	if cfg.Filter == FilterUserCount && cfg.MetadataPath == "" {
		return Config{}, fmt.Errorf("config: filter=%s requires AMO_METADATA_JSON", FilterUserCount)
	}

	return cfg, nil
}

// resolveNumThreads implements the WE_API_FINDER_NUM_THREADS > host
// parallelism > runtime.NumCPU() > 1 fallback chain.
func resolveNumThreads(envValue string) int {
	if envValue != "" {
		if n, err := strconv.Atoi(envValue); err == nil && n > 0 {
			return n
		}
	}
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
