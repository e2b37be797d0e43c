// Package storage defines the managed-install directory abstraction.
//
// Everything the engine persists (cached manifests and catalogs, staged
// installer payloads, the plan document) lives under one root. Writes are
// atomic so the privileged installer never observes a partial file.
package storage

// Provider is the interface for managed-directory file operations.
type Provider interface {
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
	// Exists reports whether a file exists at path (relative to root).
	Exists(path string) bool
	// List returns the relative paths of all regular files under dir.
	List(dir string) ([]string, error)
	// Abs resolves a relative path against the root, rejecting escapes.
	Abs(path string) (string, error)
}
