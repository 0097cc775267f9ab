// Package corpus enumerates browser-extension roots from local disk, S3, or
// Azure Blob Storage and yields each extension's script file contents to the
// driver for scanning.
package corpus

import "context"

// Extension is one extension root yielded by a Source: its identifying path
// (or bucket/blob key prefix) and the contents of every script file found
// under it.
type Extension struct {
	// Root is the directory path, S3 key prefix, or blob prefix this
	// extension was read from.
	Root string
	// Scripts maps each script's relative path to its raw text content.
	Scripts map[string][]byte
}

// Source enumerates extension roots and reads their script contents.
// Callback is invoked once per extension; a non-nil error from callback
// aborts enumeration and is returned from Walk.
type Source interface {
	Walk(ctx context.Context, callback func(Extension) error) error
}
