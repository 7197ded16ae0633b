package tasks

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/query"
	"github.com/desertthunder/pmx/internal/services"
	"github.com/desertthunder/pmx/internal/store"
)

type populateStage struct{ *Engine }

// Populate returns the metadata population stage. Each skeleton photo gets its title, description,
// posting date, media kind and best source URL.
func (e *Engine) Populate() Stage {
	return &populateStage{e}
}

func (s *populateStage) Name() string { return "populate" }

func (s *populateStage) Process(ctx context.Context) (Tally, error) {
	if err := s.requireSource(); err != nil {
		return Tally{}, err
	}
	logger := s.stageLogger(s.Name())

	pending, err := s.library.Pending(func(e store.Entry) bool {
		return e.Photo.URL == ""
	})
	if err != nil {
		return Tally{}, err
	}
	logger.Info("populating metadata", "pending", len(pending))

	ops := make([]query.Op[struct{}], 0, len(pending))
	for _, entry := range pending {
		ops = append(ops, func(ctx context.Context) (struct{}, error) {
			err := s.populate(ctx, entry)
			if err != nil {
				logger.Warn("failed to populate photo", "id", entry.Photo.ID, "collection", entry.Collection, "error", err)
			}
			return struct{}{}, err
		})
	}

	results := query.RunChunked(ctx, ops, s.opts.SourceBatchSize, func(p query.Progress) {
		s.sendProgress(chunkUpdate(PopulateMetadata, "Populated", p))
	})
	return tally(results), nil
}

func (s *populateStage) populate(ctx context.Context, entry store.Entry) error {
	var (
		info  *services.PhotoInfo
		sizes []services.Size
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = s.source.PhotoInfo(gctx, entry.Photo.ID)
		return err
	})
	g.Go(func() error {
		var err error
		sizes, err = s.source.PhotoSizes(gctx, entry.Photo.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	url, err := services.SelectSource(sizes)
	if err != nil {
		return err
	}

	photo := *entry.Photo
	photo.Title = info.Title.Content
	photo.Description = info.Description.Content
	photo.Posted = int64(info.Dates.Posted)
	photo.Media = mediaKind(info.Media)
	photo.URL = url

	if err := s.library.PutPhoto(entry.Collection, &photo); err != nil {
		return fmt.Errorf("failed to store photo: %w", err)
	}
	return nil
}

func mediaKind(media string) models.MediaKind {
	if media == string(models.MediaVideo) {
		return models.MediaVideo
	}
	return models.MediaPhoto
}

func tally[T any](results []query.Result[T]) Tally {
	t := Tally{Attempted: len(results)}
	for _, res := range results {
		if res.OK() {
			t.Succeeded++
		}
	}
	return t
}
