package models

import "fmt"

// Album is one source album and, once created, its destination counterpart.
type Album struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Created            int64    `json:"created,omitempty"` // unix seconds
	PhotoIDs           []string `json:"photo_ids"`
	DestinationAlbumID string   `json:"destination_album_id,omitempty"`
}

// Validate checks that the album can be keyed and stored.
func (a *Album) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("album id is required")
	}
	if a.ID == Unsorted {
		return fmt.Errorf("album id %q is reserved", Unsorted)
	}
	return nil
}
