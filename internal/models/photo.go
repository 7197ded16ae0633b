package models

import (
	"fmt"
	"time"
)

// Unsorted is the pseudo-collection holding photos that belong to no album.
//
// It never has an [Album] document and its photos are linked without an album.
const Unsorted = "photostream"

// MediaKind distinguishes still images from videos.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// State is a photo's position in the pipeline.
type State int

const (
	StateSeeded State = iota
	StateMetadataPopulated
	StateDownloaded
	StateBytesUploaded
	StateLinked
)

func (s State) String() string {
	switch s {
	case StateSeeded:
		return "seeded"
	case StateMetadataPopulated:
		return "metadata-populated"
	case StateDownloaded:
		return "downloaded"
	case StateBytesUploaded:
		return "bytes-uploaded"
	case StateLinked:
		return "linked"
	default:
		return "unknown"
	}
}

// States lists every state in pipeline order.
func States() []State {
	return []State{StateSeeded, StateMetadataPopulated, StateDownloaded, StateBytesUploaded, StateLinked}
}

// Photo is one source media item.
type Photo struct {
	ID                     string    `json:"id"`
	Title                  string    `json:"title,omitempty"`
	Description            string    `json:"description,omitempty"`
	Posted                 int64     `json:"posted,omitempty"` // unix seconds
	Media                  MediaKind `json:"media,omitempty"`
	URL                    string    `json:"url,omitempty"`
	DownloadPath           string    `json:"download_path,omitempty"`
	DidUpdateEXIF          bool      `json:"did_update_exif,omitempty"`
	DestinationUploadToken string    `json:"destination_upload_token,omitempty"`
	DestinationUploadAt    int64     `json:"destination_upload_at,omitempty"` // unix seconds
	DestinationMediaID     string    `json:"destination_media_id,omitempty"`
}

// NewPhoto returns a skeleton photo carrying only its id.
func NewPhoto(id string) *Photo {
	return &Photo{ID: id}
}

// State reports the furthest stage this photo has reached.
func (p *Photo) State() State {
	switch {
	case p.DestinationMediaID != "":
		return StateLinked
	case p.DestinationUploadToken != "":
		return StateBytesUploaded
	case p.DownloadPath != "":
		return StateDownloaded
	case p.URL != "":
		return StateMetadataPopulated
	default:
		return StateSeeded
	}
}

// IsVideo reports whether the photo is a video.
func (p *Photo) IsVideo() bool {
	return p.Media == MediaVideo
}

// PostedTime returns the source posting time, or the zero time when unknown.
func (p *Photo) PostedTime() time.Time {
	if p.Posted == 0 {
		return time.Time{}
	}
	return time.Unix(p.Posted, 0)
}

// TokenFresh reports whether the stored upload token was obtained within ttl of now.
func (p *Photo) TokenFresh(now time.Time, ttl time.Duration) bool {
	if p.DestinationUploadToken == "" || p.DestinationUploadAt == 0 {
		return false
	}
	return now.Sub(time.Unix(p.DestinationUploadAt, 0)) < ttl
}

// Validate checks the field-presence chain: a field is only set when every earlier one is.
func (p *Photo) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("photo id is required")
	}
	if p.DestinationMediaID != "" && p.DestinationUploadToken == "" {
		return fmt.Errorf("photo %s: destination_media_id without destination_upload_token", p.ID)
	}
	if p.DestinationUploadToken != "" && p.DownloadPath == "" {
		return fmt.Errorf("photo %s: destination_upload_token without download_path", p.ID)
	}
	if p.DownloadPath != "" && p.URL == "" {
		return fmt.Errorf("photo %s: download_path without url", p.ID)
	}
	return nil
}
