package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/pmx/internal/models"
)

type albumStage struct{ *Engine }

// CreateAlbums returns the album creation stage. Albums are created one at a time: the destination
// rejects concurrent album writes from the same account.
func (e *Engine) CreateAlbums() Stage {
	return &albumStage{e}
}

func (s *albumStage) Name() string { return "albums" }

func (s *albumStage) Process(ctx context.Context) (Tally, error) {
	if err := s.requireDestination(); err != nil {
		return Tally{}, err
	}
	logger := s.stageLogger(s.Name())

	albums, err := s.library.Albums()
	if err != nil {
		return Tally{}, err
	}

	pending := make([]*models.Album, 0, len(albums))
	for _, album := range albums {
		if album.DestinationAlbumID == "" {
			pending = append(pending, album)
		}
	}
	logger.Info("creating albums", "pending", len(pending))

	t := Tally{Attempted: len(pending)}
	for i, album := range pending {
		err := s.create(ctx, album)
		if err != nil {
			logger.Warn("failed to create album", "id", album.ID, "title", album.Title, "error", err)
		} else {
			t.Succeeded++
		}
		s.sendProgress(albumUpdate(i+1, len(pending), album, err))
	}
	return t, nil
}

func (s *albumStage) create(ctx context.Context, album *models.Album) error {
	id, err := s.dest.CreateAlbum(ctx, album.Title)
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("destination returned no album id")
	}

	updated := *album
	updated.DestinationAlbumID = id
	if err := s.library.PutAlbum(&updated); err != nil {
		return fmt.Errorf("failed to store album: %w", err)
	}
	return nil
}
