package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// scriptExtensions are the file types considered part of an extension's
// scannable surface: JavaScript/TypeScript sources, HTML pages, and every
// JSON file (the manifest among them).
var scriptExtensions = map[string]bool{
	".js":   true,
	".mjs":  true,
	".cjs":  true,
	".ts":   true,
	".json": true,
	".html": true,
}

// skippedDirs are never descended into, regardless of .gitignore contents.
var skippedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
}

// LocalSource walks a directory of extension roots: each immediate entry of
// Dir is resolved with ReadRoot, so a subdirectory (every script file
// beneath it) or a .zip/.7z archive is handed to the callback as a single
// Extension. Any other kind of entry makes Walk return an error.
type LocalSource struct {
	Dir string
}

// NewLocalSource creates a LocalSource rooted at dir.
func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{Dir: dir}
}

// Walk implements Source.
func (s *LocalSource) Walk(ctx context.Context, callback func(Extension) error) error {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return fmt.Errorf("corpus: read extension root directory %s: %w", s.Dir, err)
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		path := filepath.Join(s.Dir, entry.Name())

		ext, err := ReadRoot(ctx, path)
		if err != nil {
			return err
		}
		if len(ext.Scripts) == 0 {
			continue
		}
		if err := callback(ext); err != nil {
			return err
		}
	}
	return nil
}

// isArchive reports whether name has an extension ExtractArchive knows how
// to unpack.
func isArchive(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip", ".7z":
		return true
	default:
		return false
	}
}

// readArchive unpacks a .zip/.7z extension archive directly off disk into an
// Extension, without an intervening directory walk.
func readArchive(path string) (Extension, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Extension{}, fmt.Errorf("corpus: read archive %s: %w", path, err)
	}
	scripts, err := ExtractArchive(path, content)
	if err != nil {
		return Extension{}, err
	}
	return Extension{Root: path, Scripts: scripts}, nil
}

// ReadRoot resolves a single extension root named by path: a directory is
// walked and read the way LocalSource.Walk reads one of its subdirectories,
// a .zip/.7z file is unpacked directly. This is the entry point the driver
// uses to resolve each input line into an Extension without requiring the
// line to live inside a LocalSource's own Dir.
func ReadRoot(ctx context.Context, path string) (Extension, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Extension{}, fmt.Errorf("corpus: stat extension root %s: %w", path, err)
	}
	if !info.IsDir() {
		if isArchive(path) {
			return readArchive(path)
		}
		return Extension{}, fmt.Errorf("corpus: %s is neither a directory nor a recognized archive", path)
	}
	return readExtension(ctx, path)
}

// readExtension walks one extension root's tree (phase 1) and reads every
// eligible script file in parallel (phase 2).
func readExtension(ctx context.Context, root string) (Extension, error) {
	var ignore *gitignore.GitIgnore
	gitignorePath := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		ignore, _ = gitignore.CompileIgnoreFile(gitignorePath)
	}

	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if skippedDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !scriptExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if ignore != nil {
			relPath, err := filepath.Rel(root, path)
			if err == nil && ignore.MatchesPath(relPath) {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return Extension{}, fmt.Errorf("corpus: walk extension root %s: %w", root, err)
	}

	scripts := make(map[string][]byte, len(paths))
	if len(paths) == 0 {
		return Extension{Root: root, Scripts: scripts}, nil
	}

	numReaders := runtime.NumCPU()
	if numReaders < 1 {
		numReaders = 1
	}
	if numReaders > len(paths) {
		numReaders = len(paths)
	}

	g, gctx := errgroup.WithContext(ctx)
	pathsCh := make(chan string, numReaders*2)
	var mu sync.Mutex

	g.Go(func() error {
		defer close(pathsCh)
		for _, p := range paths {
			select {
			case pathsCh <- p:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < numReaders; i++ {
		g.Go(func() error {
			for p := range pathsCh {
				content, err := os.ReadFile(p)
				if err != nil {
					return fmt.Errorf("corpus: read script %s: %w", p, err)
				}
				rel, err := filepath.Rel(root, p)
				if err != nil {
					rel = p
				}
				mu.Lock()
				scripts[rel] = content
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Extension{}, err
	}
	return Extension{Root: root, Scripts: scripts}, nil
}
