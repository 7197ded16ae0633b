package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/pmx/internal/media"
	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/query"
	"github.com/desertthunder/pmx/internal/services"
	"github.com/desertthunder/pmx/internal/shared"
	"github.com/desertthunder/pmx/internal/store"
)

// UploadOpts selects which downloaded photos the upload stage sends.
type UploadOpts struct {
	All             bool // also re-link photos that already have a destination media id
	VideosOnly      bool
	MissingEXIFOnly bool // only photos whose capture date was patched locally
}

type uploadStage struct {
	*Engine
	cfg UploadOpts
}

// Upload returns the content upload stage. Photos are handled per collection in batches of at most
// EngineOpts.ContentBatchLimit: their bytes are uploaded with EngineOpts.UploadBatchSize concurrent
// requests, then the resulting tokens are redeemed in one batchCreate call that adds the items to
// the collection's destination album. Unsorted photos are created without an album.
//
// Every collection with pending photos other than [models.Unsorted] must already have a
// destination album; otherwise the stage fails with [shared.ErrAlbumNotCreated].
func (e *Engine) Upload(opts UploadOpts) Stage {
	return &uploadStage{Engine: e, cfg: opts}
}

func (s *uploadStage) Name() string { return "upload" }

func (s *uploadStage) Process(ctx context.Context) (Tally, error) {
	if err := s.requireDestination(); err != nil {
		return Tally{}, err
	}
	logger := s.stageLogger(s.Name())

	pending, err := s.library.Pending(s.eligible)
	if err != nil {
		return Tally{}, err
	}

	var collections []string
	byCollection := map[string][]store.Entry{}
	for _, entry := range pending {
		if _, ok := byCollection[entry.Collection]; !ok {
			collections = append(collections, entry.Collection)
		}
		byCollection[entry.Collection] = append(byCollection[entry.Collection], entry)
	}

	albumIDs := make(map[string]string, len(collections))
	for _, collection := range collections {
		id, err := s.destinationAlbum(collection)
		if err != nil {
			return Tally{}, err
		}
		albumIDs[collection] = id
	}
	logger.Info("uploading content", "pending", len(pending), "collections", len(collections))

	batches := 0
	for _, collection := range collections {
		n := len(byCollection[collection])
		batches += (n + s.opts.ContentBatchLimit - 1) / s.opts.ContentBatchLimit
	}

	var t Tally
	step := 0
	for _, collection := range collections {
		entries := byCollection[collection]
		for start := 0; start < len(entries); start += s.opts.ContentBatchLimit {
			batch := entries[start:min(start+s.opts.ContentBatchLimit, len(entries))]
			result := s.uploadBatch(ctx, albumIDs[collection], batch)
			t.add(result)

			step++
			s.sendProgress(linkUpdate(step, batches, collection, result.Succeeded, result.Attempted))
		}
	}
	return t, nil
}

func (s *uploadStage) eligible(e store.Entry) bool {
	p := e.Photo
	if p.DownloadPath == "" {
		return false
	}
	if s.cfg.VideosOnly && !p.IsVideo() {
		return false
	}
	if s.cfg.MissingEXIFOnly && !p.DidUpdateEXIF {
		return false
	}
	return s.cfg.All || p.DestinationMediaID == ""
}

func (s *uploadStage) destinationAlbum(collection string) (string, error) {
	if collection == models.Unsorted {
		return "", nil
	}
	album, err := s.library.GetAlbum(collection)
	if errors.Is(err, shared.ErrNotFound) {
		return "", fmt.Errorf("%w: collection %s has no album document", shared.ErrAlbumNotCreated, collection)
	}
	if err != nil {
		return "", err
	}
	if album.DestinationAlbumID == "" {
		return "", fmt.Errorf("%w: %s (%s)", shared.ErrAlbumNotCreated, album.Title, album.ID)
	}
	return album.DestinationAlbumID, nil
}

type uploaded struct {
	collection string
	photo      *models.Photo
}

// uploadBatch uploads the bytes of every entry, then links the uploaded ones in a single call.
// Results are matched back by upload token since the destination may drop or reorder entries.
func (s *uploadStage) uploadBatch(ctx context.Context, albumID string, batch []store.Entry) Tally {
	logger := s.stageLogger(s.Name())
	now := s.opts.Now()

	ops := make([]query.Op[*models.Photo], 0, len(batch))
	for _, entry := range batch {
		ops = append(ops, func(ctx context.Context) (*models.Photo, error) {
			photo, err := s.uploadBytes(ctx, entry, now)
			if err != nil {
				logger.Warn("failed to upload bytes", "id", entry.Photo.ID, "collection", entry.Collection, "error", err)
			}
			return photo, err
		})
	}
	results := query.RunChunked(ctx, ops, s.opts.UploadBatchSize, func(p query.Progress) {
		s.sendProgress(chunkUpdate(UploadBytes, "Uploaded bytes of", p))
	})

	var (
		ready []uploaded
		items []services.NewMediaItem
	)
	for i, res := range results {
		if !res.OK() {
			continue
		}
		ready = append(ready, uploaded{collection: batch[i].Collection, photo: res.Value})
		items = append(items, newMediaItem(res.Value))
	}

	t := Tally{Attempted: len(batch)}
	if len(items) == 0 {
		return t
	}

	created, err := s.dest.BatchCreate(ctx, albumID, items)
	if err != nil {
		logger.Warn("failed to create media items", "album", albumID, "items", len(items), "error", err)
		return t
	}

	byToken := make(map[string]services.MediaItemResult, len(created))
	for _, res := range created {
		byToken[res.UploadToken] = res
	}

	for _, u := range ready {
		photo := u.photo
		res, ok := byToken[photo.DestinationUploadToken]
		if !ok || !res.OK() {
			logger.Warn("media item not created", "id", photo.ID, "collection", u.collection,
				"code", res.Status.Code, "message", res.Status.Message)
			// The token may have been consumed or rejected; upload fresh bytes next pass.
			photo.DestinationUploadAt = 0
			if err := s.library.PutPhoto(u.collection, photo); err != nil {
				logger.Warn("failed to store photo", "id", photo.ID, "error", err)
			}
			continue
		}

		photo.DestinationMediaID = res.MediaItem.ID
		if err := s.library.PutPhoto(u.collection, photo); err != nil {
			logger.Warn("failed to store photo", "id", photo.ID, "error", err)
			continue
		}
		t.Succeeded++
	}
	return t
}

// uploadBytes returns the photo carrying a usable upload token, uploading its bytes unless a fresh
// token is already stored.
func (s *uploadStage) uploadBytes(ctx context.Context, entry store.Entry, now time.Time) (*models.Photo, error) {
	photo := *entry.Photo
	if !s.cfg.All && photo.TokenFresh(now, s.opts.TokenTTL) {
		return &photo, nil
	}

	data, err := s.readContent(ctx, &photo)
	if err != nil {
		return nil, err
	}

	token, err := s.dest.UploadBytes(ctx, data, media.ContentType(photo.DownloadPath, data))
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("destination returned no upload token")
	}

	photo.DestinationUploadToken = token
	photo.DestinationUploadAt = now.Unix()
	if err := s.library.PutPhoto(entry.Collection, &photo); err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}
	return &photo, nil
}

// readContent reads the downloaded file, fetching it again from the source when it is gone.
func (s *uploadStage) readContent(ctx context.Context, photo *models.Photo) ([]byte, error) {
	data, err := os.ReadFile(photo.DownloadPath)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || s.source == nil {
		return nil, err
	}

	data, _, _, err = s.fetch(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("local file missing and refetch failed: %w", err)
	}
	if err := shared.WriteFileAtomic(photo.DownloadPath, data, 0644); err != nil {
		s.logger.Debug("could not restore local file", "path", photo.DownloadPath, "error", err)
	}
	return data, nil
}

func newMediaItem(photo *models.Photo) services.NewMediaItem {
	name := filepath.Base(photo.DownloadPath)
	if photo.Title != "" {
		name = photo.Title + filepath.Ext(photo.DownloadPath)
	}
	return services.NewMediaItem{
		Description: photo.Description,
		SimpleMediaItem: services.SimpleMediaItem{
			FileName:    name,
			UploadToken: photo.DestinationUploadToken,
		},
	}
}
