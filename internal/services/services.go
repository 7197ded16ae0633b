package services

import (
	"context"
)

// Source is the library being migrated from.
type Source interface {
	// Photos lists one page of every item the user owns.
	Photos(ctx context.Context, page int) (*PhotosPage, error)
	// Albums lists one page of the user's albums.
	Albums(ctx context.Context, page int) (*AlbumsPage, error)
	// AlbumPhotos lists one page of an album's members.
	AlbumPhotos(ctx context.Context, albumID string, page int) (*PhotosPage, error)
	// PhotoInfo returns title, description, posting date and media kind of an item.
	PhotoInfo(ctx context.Context, id string) (*PhotoInfo, error)
	// PhotoSizes returns every rendition of an item.
	PhotoSizes(ctx context.Context, id string) ([]Size, error)
	// Fetch downloads rawURL, attaching session cookies when withCookies is set.
	Fetch(ctx context.Context, rawURL string, withCookies bool) (*Download, error)
}

// Destination is the library being migrated to.
type Destination interface {
	// CreateAlbum creates an album and returns its id.
	CreateAlbum(ctx context.Context, title string) (string, error)
	// UploadBytes uploads raw media and returns a short-lived upload token.
	UploadBytes(ctx context.Context, data []byte, contentType string) (string, error)
	// BatchCreate redeems upload tokens as media items, optionally adding them to albumID.
	BatchCreate(ctx context.Context, albumID string, items []NewMediaItem) ([]MediaItemResult, error)
}

// Download is the body of a fetched file.
type Download struct {
	Data        []byte
	ContentType string
	FinalURL    string // after redirects
}
