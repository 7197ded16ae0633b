package store

import (
	"path/filepath"
	"testing"

	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibrary(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		lib := NewLibrary(s)

		album := &models.Album{ID: "721", Title: "Trip", PhotoIDs: []string{"1", "2"}}
		require.NoError(t, lib.PutAlbum(album))
		require.NoError(t, lib.PutPhoto("721", models.NewPhoto("1")))
		require.NoError(t, lib.PutPhoto("721", models.NewPhoto("2")))
		require.NoError(t, lib.PutPhoto(models.Unsorted, &models.Photo{ID: "3", URL: "https://x/3.jpg"}))

		t.Run("albums skip the unsorted collection", func(t *testing.T) {
			albums, err := lib.Albums()
			require.NoError(t, err)
			require.Len(t, albums, 1)
			assert.Equal(t, "Trip", albums[0].Title)
			assert.Equal(t, []string{"1", "2"}, albums[0].PhotoIDs)
		})

		t.Run("photos skip the album document", func(t *testing.T) {
			photos, err := lib.Photos("721")
			require.NoError(t, err)
			require.Len(t, photos, 2)
			assert.Equal(t, "1", photos[0].ID)
		})

		t.Run("entries span collections", func(t *testing.T) {
			entries, err := lib.Entries()
			require.NoError(t, err)
			require.Len(t, entries, 3)
			assert.Equal(t, models.Unsorted, entries[2].Collection)
		})

		t.Run("pending filters", func(t *testing.T) {
			pending, err := lib.Pending(func(e Entry) bool { return e.Photo.URL == "" })
			require.NoError(t, err)
			assert.Len(t, pending, 2)
		})

		t.Run("locations skip the album document", func(t *testing.T) {
			locations, err := lib.Locations()
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"1": "721", "2": "721", "3": models.Unsorted}, locations)
		})

		t.Run("missing album", func(t *testing.T) {
			_, err := lib.GetAlbum("nope")
			assert.ErrorIs(t, err, shared.ErrNotFound)
		})
	})
}

func TestLibraryRejectsInvalidDocuments(t *testing.T) {
	lib := NewLibrary(NewFileStore(filepath.Join(t.TempDir(), "library")))

	assert.ErrorIs(t, lib.PutPhoto("721", &models.Photo{ID: "metadata"}), shared.ErrInvalidKey)
	assert.ErrorIs(t, lib.PutPhoto("721", &models.Photo{ID: "1", DownloadPath: "/x"}), shared.ErrInvalidInput)
	assert.ErrorIs(t, lib.PutAlbum(&models.Album{ID: models.Unsorted}), shared.ErrInvalidInput)
}

func TestLibraryDecodeError(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "library"))
	require.NoError(t, s.Put("721", "1", []byte("not json")))

	_, err := NewLibrary(s).GetPhoto("721", "1")
	assert.ErrorIs(t, err, shared.ErrDecode)
}
