package tasks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/services"
	"github.com/desertthunder/pmx/internal/store"
)

func paging(page, pages int) services.Paging {
	n := services.FlexInt(pages)
	return services.Paging{Page: services.FlexInt(page), Pages: &n}
}

func pageOf[T any](items []T, page, perPage int) ([]T, int) {
	pages := max((len(items)+perPage-1)/perPage, 1)
	start := min((page-1)*perPage, len(items))
	end := min(page*perPage, len(items))
	return items[start:end], pages
}

func refs(ids []string) []services.PhotoRef {
	out := make([]services.PhotoRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, services.PhotoRef{ID: id})
	}
	return out
}

type fakeAlbum struct {
	id      string
	title   string
	members []string
}

// fakeSource serves a fixed library. Videos are the ids listed in videos.
type fakeSource struct {
	mu        sync.Mutex
	perPage   int
	photos    []string
	albums    []fakeAlbum
	videos    map[string]bool
	failInfo  map[string]bool
	failFetch map[string]bool
	noSource  map[string]bool // original listed without a source url
	failAlbum string
	calls     map[string]int
	cookies   map[string]bool // url -> cookies attached
}

func newFakeSource(photos []string, albums ...fakeAlbum) *fakeSource {
	return &fakeSource{
		perPage:   2,
		photos:    photos,
		albums:    albums,
		videos:    map[string]bool{},
		failInfo:  map[string]bool{},
		failFetch: map[string]bool{},
		noSource:  map[string]bool{},
		calls:     map[string]int{},
		cookies:   map[string]bool{},
	}
}

func (f *fakeSource) count(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
}

func (f *fakeSource) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeSource) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeSource) Photos(_ context.Context, page int) (*services.PhotosPage, error) {
	f.count("photos")
	items, pages := pageOf(f.photos, page, f.perPage)
	return &services.PhotosPage{Paging: paging(page, pages), Photo: refs(items)}, nil
}

func (f *fakeSource) Albums(_ context.Context, page int) (*services.AlbumsPage, error) {
	f.count("albums")
	var list []services.AlbumRef
	for _, a := range f.albums {
		list = append(list, services.AlbumRef{ID: a.id, Title: services.Content{Content: a.title}, DateCreate: 1300000000})
	}
	items, pages := pageOf(list, page, f.perPage)
	return &services.AlbumsPage{Paging: paging(page, pages), Photoset: items}, nil
}

func (f *fakeSource) AlbumPhotos(_ context.Context, albumID string, page int) (*services.PhotosPage, error) {
	f.count("album_photos")
	if albumID == f.failAlbum {
		return nil, &services.HTTPError{StatusCode: http.StatusInternalServerError}
	}
	for _, a := range f.albums {
		if a.id == albumID {
			items, pages := pageOf(a.members, page, f.perPage)
			return &services.PhotosPage{Paging: paging(page, pages), Photo: refs(items)}, nil
		}
	}
	return nil, fmt.Errorf("unknown album %s", albumID)
}

func (f *fakeSource) PhotoInfo(_ context.Context, id string) (*services.PhotoInfo, error) {
	f.count("info")
	f.mu.Lock()
	fail := f.failInfo[id]
	f.mu.Unlock()
	if fail {
		return nil, &services.HTTPError{StatusCode: http.StatusBadGateway}
	}

	info := &services.PhotoInfo{
		ID:          id,
		Title:       services.Content{Content: "Title " + id},
		Description: services.Content{Content: "About " + id},
		Media:       "photo",
	}
	info.Dates.Posted = 1400000000
	if f.videos[id] {
		info.Media = "video"
	}
	return info, nil
}

func (f *fakeSource) PhotoSizes(_ context.Context, id string) ([]services.Size, error) {
	f.count("sizes")
	dim := func(v int) services.Dimension { return services.Dimension{Value: v, Valid: true} }
	if f.videos[id] {
		return []services.Size{
			{Label: "Small", Width: dim(240), Height: dim(180), Source: "https://live.example/" + id + "_s.jpg", Media: "photo"},
			{Label: "Video Original", Width: dim(1920), Height: dim(1080), Source: "https://video.example/" + id, Media: "video"},
		}, nil
	}
	original := "https://live.example/" + id + "_o.jpg"
	if f.noSource[id] {
		original = ""
	}
	return []services.Size{
		{Label: "Small", Width: dim(100), Height: dim(100), Source: "https://live.example/" + id + "_s.jpg", Media: "photo"},
		{Label: "Original", Width: dim(4000), Height: dim(3000), Source: original, Media: "photo"},
	}, nil
}

func (f *fakeSource) Fetch(_ context.Context, rawURL string, withCookies bool) (*services.Download, error) {
	f.count("fetch")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies[rawURL] = withCookies

	for id := range f.failFetch {
		if strings.Contains(rawURL, id) {
			return nil, &services.HTTPError{StatusCode: http.StatusNotFound}
		}
	}
	if strings.HasPrefix(rawURL, "https://video.example/") {
		return &services.Download{Data: []byte("video bytes"), ContentType: "video/mp4", FinalURL: rawURL + "/orig.mp4?s=1"}, nil
	}
	return &services.Download{Data: []byte("jpeg bytes"), ContentType: "image/jpeg", FinalURL: rawURL}, nil
}

// fakeDestination records calls. Upload tokens are "tok-<bytes>" plus a counter.
type fakeDestination struct {
	mu          sync.Mutex
	albums      []string
	failAlbums  map[string]bool
	inFlight    atomic.Int32
	peak        atomic.Int32
	albumDelay  time.Duration
	uploads     int
	batches     []fakeBatch
	failItems   map[string]bool // upload tokens the batchCreate call rejects, matched by prefix
	omitFailed  bool
	batchErr    error
	tokenSerial int
}

type fakeBatch struct {
	albumID string
	items   []services.NewMediaItem
}

func newFakeDestination() *fakeDestination {
	return &fakeDestination{failAlbums: map[string]bool{}, failItems: map[string]bool{}}
}

func (f *fakeDestination) track() func() {
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeDestination) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.albums) + f.uploads + len(f.batches)
}

func (f *fakeDestination) CreateAlbum(_ context.Context, title string) (string, error) {
	done := f.track()
	defer done()
	time.Sleep(f.albumDelay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.albums = append(f.albums, title)
	if f.failAlbums[title] {
		return "", &services.HTTPError{StatusCode: http.StatusConflict}
	}
	return "g-" + strings.ReplaceAll(strings.ToLower(title), " ", "-"), nil
}

func (f *fakeDestination) UploadBytes(_ context.Context, data []byte, contentType string) (string, error) {
	done := f.track()
	defer done()
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	f.tokenSerial++
	return fmt.Sprintf("tok-%s-%d", data, f.tokenSerial), nil
}

func (f *fakeDestination) BatchCreate(_ context.Context, albumID string, items []services.NewMediaItem) ([]services.MediaItemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, fakeBatch{albumID: albumID, items: items})
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	var results []services.MediaItemResult
	for i := len(items) - 1; i >= 0; i-- {
		token := items[i].SimpleMediaItem.UploadToken
		if f.rejects(token) {
			if f.omitFailed {
				continue
			}
			results = append(results, services.MediaItemResult{
				UploadToken: token,
				Status:      services.MediaItemStatus{Code: 3, Message: "Failed: There was an error while trying to create this media item."},
			})
			continue
		}
		results = append(results, services.MediaItemResult{
			UploadToken: token,
			Status:      services.MediaItemStatus{Message: "Success"},
			MediaItem:   &services.MediaItem{ID: "m-" + token},
		})
	}
	return results, nil
}

func (f *fakeDestination) rejects(token string) bool {
	for prefix := range f.failItems {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}

// fakePatcher marks every image it sees as patched.
type fakePatcher struct {
	mu   sync.Mutex
	seen []string
}

func (p *fakePatcher) Patch(data []byte, posted time.Time) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, string(data))
	return append([]byte("patched "), data...), true, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newLibrary(t *testing.T) *store.Library {
	t.Helper()
	return store.NewLibrary(store.NewFileStore(t.TempDir()))
}

func newTestEngine(t *testing.T, src services.Source, dst services.Destination, lib *store.Library, opts EngineOpts) *Engine {
	t.Helper()
	opts.Logger = quietLogger()
	if opts.MediaRoot == "" {
		opts.MediaRoot = t.TempDir()
	}
	if opts.SourceBatchSize == 0 {
		opts.SourceBatchSize = 3
	}
	return NewEngine(src, dst, lib, opts)
}

func mustPutPhoto(t *testing.T, lib *store.Library, collection string, photo *models.Photo) {
	t.Helper()
	require.NoError(t, lib.PutPhoto(collection, photo))
}

func mustGetPhoto(t *testing.T, lib *store.Library, collection, id string) *models.Photo {
	t.Helper()
	photo, err := lib.GetPhoto(collection, id)
	require.NoError(t, err)
	return photo
}
