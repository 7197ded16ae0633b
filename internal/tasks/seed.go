package tasks

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/query"
	"github.com/desertthunder/pmx/internal/services"
	"github.com/desertthunder/pmx/internal/shared"
)

type seedStage struct{ *Engine }

// Seed returns the directory seeding stage: it lists every source item and album once and writes
// skeleton photos and full album documents. Any listing failure or membership inconsistency is
// fatal; the stage is meant to run once rather than under a [Retrier].
func (e *Engine) Seed() Stage {
	return &seedStage{e}
}

func (s *seedStage) Name() string { return "seed" }

type albumListing struct {
	ref     services.AlbumRef
	members []string
}

func (s *seedStage) Process(ctx context.Context) (Tally, error) {
	if err := s.requireSource(); err != nil {
		return Tally{}, err
	}
	logger := s.stageLogger(s.Name())

	var (
		photoIDs []string
		refs     []services.AlbumRef
	)
	s.sendProgress(listingUpdate(0, 2, "photos and albums"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := query.FetchItems(gctx, s.source.Photos, s.opts.SourceBatchSize, (*services.PhotosPage).IDs)
		if err != nil {
			return fmt.Errorf("failed to list photos: %w", err)
		}
		photoIDs = ids
		return nil
	})
	g.Go(func() error {
		list, err := query.FetchItems(gctx, s.source.Albums, s.opts.SourceBatchSize,
			func(p *services.AlbumsPage) []services.AlbumRef { return p.Photoset })
		if err != nil {
			return fmt.Errorf("failed to list albums: %w", err)
		}
		refs = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return Tally{}, err
	}

	s.sendProgress(listingUpdate(1, 2, fmt.Sprintf("members of %d album(s)", len(refs))))
	listings, err := s.listMembers(ctx, refs)
	if err != nil {
		return Tally{}, err
	}
	s.sendProgress(listingUpdate(2, 2, "done"))

	collections, err := assignCollections(photoIDs, listings)
	if err != nil {
		return Tally{}, err
	}

	albumsWritten, err := s.writeAlbums(listings)
	if err != nil {
		return Tally{}, err
	}

	stored, err := s.library.Locations()
	if err != nil {
		return Tally{}, err
	}

	photosWritten := 0
	for _, id := range photoIDs {
		collection := collections[id]
		if current, ok := stored[id]; ok {
			if current != collection {
				logger.Debug("photo stays in its seeded collection", "id", id, "collection", current, "listed_in", collection)
			}
			continue
		}
		if err := s.library.PutPhoto(collection, models.NewPhoto(id)); err != nil {
			return Tally{}, err
		}
		photosWritten++
	}

	logger.Info("seeded library", "photos", len(photoIDs), "albums", len(listings),
		"new_photos", photosWritten, "new_albums", albumsWritten)
	s.sendProgress(seededUpdate(photosWritten, albumsWritten))

	n := photosWritten + albumsWritten
	return Tally{Succeeded: n, Attempted: n}, nil
}

// listMembers lists every album's members; a failure on any album fails the stage.
func (s *seedStage) listMembers(ctx context.Context, refs []services.AlbumRef) ([]albumListing, error) {
	ops := make([]query.Op[[]string], 0, len(refs))
	for _, ref := range refs {
		ops = append(ops, func(ctx context.Context) ([]string, error) {
			fetch := func(ctx context.Context, page int) (*services.PhotosPage, error) {
				return s.source.AlbumPhotos(ctx, ref.ID, page)
			}
			return query.FetchItems(ctx, fetch, s.opts.SourceBatchSize, (*services.PhotosPage).IDs)
		})
	}

	results := query.RunChunked(ctx, ops, s.opts.SourceBatchSize, nil)
	listings := make([]albumListing, 0, len(refs))
	for i, res := range results {
		if res.Err != nil {
			return nil, fmt.Errorf("failed to list album %s: %w", refs[i].ID, res.Err)
		}
		listings = append(listings, albumListing{ref: refs[i], members: res.Value})
	}
	return listings, nil
}

// assignCollections files every photo under the last album listing it, or under [models.Unsorted].
// A member missing from the photo listing means the source is inconsistent.
func assignCollections(photoIDs []string, listings []albumListing) (map[string]string, error) {
	collections := make(map[string]string, len(photoIDs))
	for _, id := range photoIDs {
		collections[id] = models.Unsorted
	}

	for _, listing := range listings {
		for _, id := range listing.members {
			if _, ok := collections[id]; !ok {
				return nil, fmt.Errorf("%w: album %s lists %s", shared.ErrInconsistentSource, listing.ref.ID, id)
			}
			collections[id] = listing.ref.ID
		}
	}
	return collections, nil
}

// writeAlbums stores every album document, keeping destination ids from earlier runs.
// It returns the number of albums that were not stored before.
func (s *seedStage) writeAlbums(listings []albumListing) (int, error) {
	created := 0
	for _, listing := range listings {
		album := &models.Album{
			ID:       listing.ref.ID,
			Title:    listing.ref.Title.Content,
			Created:  int64(listing.ref.DateCreate),
			PhotoIDs: listing.members,
		}

		existing, err := s.library.GetAlbum(album.ID)
		switch {
		case err == nil:
			album.DestinationAlbumID = existing.DestinationAlbumID
		case errors.Is(err, shared.ErrNotFound):
			created++
		default:
			return created, err
		}

		if err := s.library.PutAlbum(album); err != nil {
			return created, err
		}
	}
	return created, nil
}
