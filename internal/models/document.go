// Package models defines the domain types for questcard.
package models

import "time"

// DocumentExt is the file extension of stored documents.
const DocumentExt = ".json"

// DocumentMetadata is a lightweight representation returned by list operations.
type DocumentMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
