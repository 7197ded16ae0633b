package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/shared"
)

// albumDocID names the album document inside its collection (metadata.json on disk).
const albumDocID = "metadata"

// Entry is a photo together with the collection it is filed under.
type Entry struct {
	Collection string
	Photo      *models.Photo
}

// Library reads and writes typed [models.Photo] and [models.Album] documents on top of a [Store].
type Library struct {
	store Store
}

// NewLibrary wraps s.
func NewLibrary(s Store) *Library {
	return &Library{store: s}
}

// GetPhoto returns the photo stored under collection, or [shared.ErrNotFound].
func (l *Library) GetPhoto(collection, id string) (*models.Photo, error) {
	var photo models.Photo
	if err := l.get(collection, id, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

// PutPhoto validates and writes photo under collection.
func (l *Library) PutPhoto(collection string, photo *models.Photo) error {
	if photo.ID == albumDocID {
		return fmt.Errorf("%w: photo id %q is reserved", shared.ErrInvalidKey, photo.ID)
	}
	if err := photo.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return l.put(collection, photo.ID, photo)
}

// Locations maps every stored photo id to the collection holding it.
func (l *Library) Locations() (map[string]string, error) {
	collections, err := l.store.Collections()
	if err != nil {
		return nil, err
	}

	locations := map[string]string{}
	for _, collection := range collections {
		ids, err := l.store.List(collection)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if id != albumDocID {
				locations[id] = collection
			}
		}
	}
	return locations, nil
}

// GetAlbum returns the album document of collection id, or [shared.ErrNotFound].
func (l *Library) GetAlbum(id string) (*models.Album, error) {
	var album models.Album
	if err := l.get(id, albumDocID, &album); err != nil {
		return nil, err
	}
	return &album, nil
}

// PutAlbum validates and writes album as the metadata document of its own collection.
func (l *Library) PutAlbum(album *models.Album) error {
	if err := album.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if album.PhotoIDs == nil {
		album.PhotoIDs = []string{}
	}
	return l.put(album.ID, albumDocID, album)
}

// Albums returns every album document, ordered by collection id.
func (l *Library) Albums() ([]*models.Album, error) {
	collections, err := l.store.Collections()
	if err != nil {
		return nil, err
	}

	albums := []*models.Album{}
	for _, collection := range collections {
		if collection == models.Unsorted {
			continue
		}
		album, err := l.GetAlbum(collection)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}
	return albums, nil
}

// Photos returns every photo filed under collection, ordered by id.
func (l *Library) Photos(collection string) ([]*models.Photo, error) {
	ids, err := l.store.List(collection)
	if err != nil {
		return nil, err
	}

	photos := make([]*models.Photo, 0, len(ids))
	for _, id := range ids {
		if id == albumDocID {
			continue
		}
		photo, err := l.GetPhoto(collection, id)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, nil
}

// Entries returns every photo in every collection, ordered by collection then id.
func (l *Library) Entries() ([]Entry, error) {
	collections, err := l.store.Collections()
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	for _, collection := range collections {
		photos, err := l.Photos(collection)
		if err != nil {
			return nil, err
		}
		for _, photo := range photos {
			entries = append(entries, Entry{Collection: collection, Photo: photo})
		}
	}
	return entries, nil
}

// Pending returns the entries for which keep returns true.
func (l *Library) Pending(keep func(Entry) bool) ([]Entry, error) {
	entries, err := l.Entries()
	if err != nil {
		return nil, err
	}
	pending := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if keep(entry) {
			pending = append(pending, entry)
		}
	}
	return pending, nil
}

func (l *Library) get(collection, id string, v any) error {
	data, err := l.store.Get(collection, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", shared.ErrDecode, collection, id, err)
	}
	return nil
}

func (l *Library) put(collection, id string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	return l.store.Put(collection, id, data)
}
