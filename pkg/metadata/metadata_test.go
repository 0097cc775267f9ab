package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeMetadataFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "amo-metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_MissingFileIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "AMO_METADATA_JSON")
}

func TestLoad_MalformedJSONIsFatal(t *testing.T) {
	path := writeMetadataFile(t, "not json")
	_, err := Load(path)
	require.Error(t, err)
}

func TestStore_GetKnownID(t *testing.T) {
	path := writeMetadataFile(t, `[{"id":"ext-1","name":"Example","user_count":42}]`)
	s, err := Load(path)
	require.NoError(t, err)

	r, err := s.Get("ext-1")
	require.NoError(t, err)
	require.Equal(t, "Example", r.Name)
	require.EqualValues(t, 42, r.UserCount)
}

func TestStore_GetUnknownID(t *testing.T) {
	path := writeMetadataFile(t, `[{"id":"ext-1","name":"Example","user_count":42}]`)
	s, err := Load(path)
	require.NoError(t, err)

	_, err = s.Get("ext-missing")
	require.True(t, errors.Is(err, ErrMissingAddon))
}

func TestStore_GetIsCachedAfterFirstLookup(t *testing.T) {
	path := writeMetadataFile(t, `[{"id":"ext-1","name":"Example","user_count":42}]`)
	s, err := Load(path)
	require.NoError(t, err)

	first, err := s.Get("ext-1")
	require.NoError(t, err)
	second, err := s.Get("ext-1")
	require.NoError(t, err)
	require.Equal(t, first, second)
}
