package corpus

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bodgit/sevenzip"
)

// ExtractArchive unpacks a .zip or .7z extension archive into in-memory
// script sources keyed by their path within the archive, filtered to the
// same scriptExtensions set LocalSource reads from disk. .zip is the
// standard Chrome/Firefox packaging; .7z shows up in some corpus mirrors.
func ExtractArchive(name string, content []byte) (map[string][]byte, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".zip":
		return extractZip(content)
	case ".7z":
		return extract7z(content)
	default:
		return nil, fmt.Errorf("corpus: unsupported archive type: %s", name)
	}
}

func extractZip(content []byte) (map[string][]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("corpus: open zip archive: %w", err)
	}

	scripts := make(map[string][]byte)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !scriptExtensions[strings.ToLower(path.Ext(f.Name))] {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("corpus: open zip member %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("corpus: read zip member %s: %w", f.Name, err)
		}
		scripts[f.Name] = data
	}
	return scripts, nil
}

func extract7z(content []byte) (map[string][]byte, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("corpus: open 7z archive: %w", err)
	}

	scripts := make(map[string][]byte)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !scriptExtensions[strings.ToLower(path.Ext(f.Name))] {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("corpus: open 7z member %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("corpus: read 7z member %s: %w", f.Name, err)
		}
		scripts[f.Name] = data
	}
	return scripts, nil
}
