package tasks

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/desertthunder/pmx/internal/media"
	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/query"
	"github.com/desertthunder/pmx/internal/shared"
	"github.com/desertthunder/pmx/internal/store"
)

// DownloadOpts selects which photos the download stage fetches.
type DownloadOpts struct {
	All        bool   // re-download photos that already have a local file
	VideosOnly bool   // only fetch videos
	Root       string // overrides EngineOpts.MediaRoot
}

type downloadStage struct {
	*Engine
	cfg DownloadOpts
}

// Download returns the content download stage. Each populated photo is fetched from its source URL
// and written under <root>/<collection>/<id><ext>. Images without a capture date are patched with
// the posting date when a [Patcher] is configured.
func (e *Engine) Download(opts DownloadOpts) Stage {
	if opts.Root == "" {
		opts.Root = e.opts.MediaRoot
	}
	return &downloadStage{Engine: e, cfg: opts}
}

func (s *downloadStage) Name() string { return "download" }

func (s *downloadStage) Process(ctx context.Context) (Tally, error) {
	if err := s.requireSource(); err != nil {
		return Tally{}, err
	}
	if s.cfg.Root == "" {
		return Tally{}, fmt.Errorf("%w: download root is required", shared.ErrMissingArgument)
	}
	logger := s.stageLogger(s.Name())

	pending, err := s.library.Pending(func(e store.Entry) bool {
		p := e.Photo
		if p.URL == "" {
			return false
		}
		if s.cfg.VideosOnly && !p.IsVideo() {
			return false
		}
		return s.cfg.All || p.DownloadPath == ""
	})
	if err != nil {
		return Tally{}, err
	}
	logger.Info("downloading content", "pending", len(pending), "root", s.cfg.Root)

	ops := make([]query.Op[string], 0, len(pending))
	for _, entry := range pending {
		ops = append(ops, func(ctx context.Context) (string, error) {
			path, err := s.download(ctx, entry)
			if err != nil {
				logger.Warn("failed to download photo", "id", entry.Photo.ID, "collection", entry.Collection, "error", err)
			}
			return path, err
		})
	}

	results := query.RunChunked(ctx, ops, s.opts.SourceBatchSize, func(p query.Progress) {
		s.sendProgress(chunkUpdate(DownloadContent, "Downloaded", p))
	})
	return tally(results), nil
}

func (s *downloadStage) download(ctx context.Context, entry store.Entry) (string, error) {
	photo := *entry.Photo

	data, ext, patched, err := s.fetch(ctx, &photo)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.cfg.Root, entry.Collection, photo.ID+ext)
	if err := shared.WriteFileAtomic(path, data, 0644); err != nil {
		return "", err
	}

	photo.DownloadPath = path
	photo.DidUpdateEXIF = photo.DidUpdateEXIF || patched
	if err := s.library.PutPhoto(entry.Collection, &photo); err != nil {
		return "", fmt.Errorf("failed to store photo: %w", err)
	}
	return path, nil
}

// fetch downloads a photo's bytes, patching the capture date of images. Cookies are only sent for
// videos, which the source serves in full resolution to logged-in sessions only.
func (e *Engine) fetch(ctx context.Context, photo *models.Photo) ([]byte, string, bool, error) {
	dl, err := e.source.Fetch(ctx, photo.URL, photo.IsVideo())
	if err != nil {
		return nil, "", false, err
	}
	ext := media.Extension(dl.FinalURL, dl.ContentType)

	data := dl.Data
	if photo.IsVideo() || e.opts.Patcher == nil {
		return data, ext, false, nil
	}

	out, patched, err := e.opts.Patcher.Patch(data, photo.PostedTime())
	if err != nil {
		e.logger.Debug("keeping original bytes", "id", photo.ID, "error", err)
		return data, ext, false, nil
	}
	return out, ext, patched, nil
}
