// Package storage keeps documents as files in a flat vault directory.
package storage

import "github.com/starford/questcard/internal/models"

// Provider is the interface for vault file operations. Paths are bare file
// names inside the vault; the vault has no subdirectories.
type Provider interface {
	// List returns metadata for every document in the vault, sorted by path.
	List() ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of a document.
	Read(path string) ([]byte, error)
	// Write atomically replaces a document's content.
	Write(path string, content []byte) error
	// Delete removes a document.
	Delete(path string) error
	// Exists reports whether a document is present.
	Exists(path string) (bool, error)
}
