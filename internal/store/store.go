// Package store persists library documents keyed by (collection, id).
//
// The store is both the cache of remote metadata and the record of migration progress: every stage
// finds its pending work by listing a collection and checking a field on each document.
// Writes replace a single document atomically; there are no multi-document transactions.
package store

import (
	"fmt"
	"strings"

	"github.com/desertthunder/pmx/internal/shared"
)

// Store is a durable keyed document store.
type Store interface {
	// Get returns the document stored under (collection, id), or [shared.ErrNotFound].
	Get(collection, id string) ([]byte, error)
	// Put creates or fully replaces the document under (collection, id).
	Put(collection, id string, doc []byte) error
	// List returns the ids of every document in collection, sorted. A missing collection is empty.
	List(collection string) ([]string, error)
	// Collections returns every collection that holds at least one document, sorted.
	Collections() ([]string, error)
}

// validKey rejects keys that cannot be mapped onto a single path segment.
func validKey(parts ...string) error {
	for _, part := range parts {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) || strings.HasPrefix(part, ".") {
			return fmt.Errorf("%w: %q", shared.ErrInvalidKey, part)
		}
	}
	return nil
}
