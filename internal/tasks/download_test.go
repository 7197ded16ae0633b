package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/store"
	tu "github.com/desertthunder/pmx/internal/testing"
)

func populated(t *testing.T, lib *store.Library, collection string, photos ...*models.Photo) {
	t.Helper()
	for _, p := range photos {
		mustPutPhoto(t, lib, collection, p)
	}
}

func TestDownload(t *testing.T) {
	ctx := context.Background()

	photo := func(id string) *models.Photo {
		return &models.Photo{ID: id, Title: "Title " + id, Posted: 1400000000, Media: models.MediaPhoto, URL: "https://live.example/" + id + "_o.jpg"}
	}
	video := func(id string) *models.Photo {
		return &models.Photo{ID: id, Media: models.MediaVideo, URL: "https://video.example/" + id}
	}

	t.Run("writes files and records paths", func(t *testing.T) {
		src := newFakeSource(nil)
		lib := newLibrary(t)
		root := t.TempDir()
		patcher := &fakePatcher{}
		engine := newTestEngine(t, src, nil, lib, EngineOpts{MediaRoot: root, Patcher: patcher})
		populated(t, lib, "a1", photo("p1"), video("v1"))

		tally, err := engine.Download(DownloadOpts{}).Process(ctx)
		require.NoError(t, err)
		assert.Equal(t, Tally{Succeeded: 2, Attempted: 2}, tally)

		p1 := mustGetPhoto(t, lib, "a1", "p1")
		assert.Equal(t, filepath.Join(root, "a1", "p1.jpg"), p1.DownloadPath)
		assert.True(t, p1.DidUpdateEXIF)
		assert.Equal(t, models.StateDownloaded, p1.State())
		assert.Equal(t, "patched jpeg bytes", tu.MustReadFile(t, p1.DownloadPath))

		v1 := mustGetPhoto(t, lib, "a1", "v1")
		assert.Equal(t, filepath.Join(root, "a1", "v1.mp4"), v1.DownloadPath)
		assert.False(t, v1.DidUpdateEXIF)
		tu.AssertFileExists(t, v1.DownloadPath)

		assert.Equal(t, []string{"jpeg bytes"}, patcher.seen, "videos are not patched")
		assert.True(t, src.cookies["https://video.example/v1"])
		assert.False(t, src.cookies["https://live.example/p1_o.jpg"])
	})

	t.Run("failed fetch leaves the photo pending", func(t *testing.T) {
		src := newFakeSource(nil)
		src.failFetch["gone"] = true
		lib := newLibrary(t)
		engine := newTestEngine(t, src, nil, lib, EngineOpts{})
		populated(t, lib, models.Unsorted, photo("ok"), photo("gone"))

		tally, err := engine.Download(DownloadOpts{}).Process(ctx)
		require.NoError(t, err)
		assert.Equal(t, Tally{Succeeded: 1, Attempted: 2}, tally)
		assert.Empty(t, mustGetPhoto(t, lib, models.Unsorted, "gone").DownloadPath)
	})

	t.Run("skips seeded and downloaded photos", func(t *testing.T) {
		src := newFakeSource(nil)
		lib := newLibrary(t)
		engine := newTestEngine(t, src, nil, lib, EngineOpts{})
		done := photo("done")
		done.DownloadPath = "/elsewhere/done.jpg"
		populated(t, lib, models.Unsorted, models.NewPhoto("bare"), done)

		tally, err := engine.Download(DownloadOpts{}).Process(ctx)
		require.NoError(t, err)
		assert.Equal(t, Tally{}, tally)
		assert.Zero(t, src.totalCalls())
	})

	t.Run("videos only", func(t *testing.T) {
		src := newFakeSource(nil)
		lib := newLibrary(t)
		engine := newTestEngine(t, src, nil, lib, EngineOpts{})
		populated(t, lib, models.Unsorted, photo("p1"), video("v1"))

		tally, err := engine.Download(DownloadOpts{VideosOnly: true}).Process(ctx)
		require.NoError(t, err)
		assert.Equal(t, Tally{Succeeded: 1, Attempted: 1}, tally)
		assert.Empty(t, mustGetPhoto(t, lib, models.Unsorted, "p1").DownloadPath)
	})

	t.Run("all re-downloads into a new root", func(t *testing.T) {
		src := newFakeSource(nil)
		lib := newLibrary(t)
		engine := newTestEngine(t, src, nil, lib, EngineOpts{})
		populated(t, lib, models.Unsorted, photo("p1"))

		_, err := engine.Download(DownloadOpts{}).Process(ctx)
		require.NoError(t, err)

		second := t.TempDir()
		tally, err := engine.Download(DownloadOpts{All: true, Root: second}).Process(ctx)
		require.NoError(t, err)
		assert.Equal(t, Tally{Succeeded: 1, Attempted: 1}, tally)

		p1 := mustGetPhoto(t, lib, models.Unsorted, "p1")
		assert.Equal(t, filepath.Join(second, models.Unsorted, "p1.jpg"), p1.DownloadPath)
		_, err = os.Stat(p1.DownloadPath)
		assert.NoError(t, err)
	})
}
