// Google Photos Library API client, see https://developers.google.com/photos/library/reference/rest
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/desertthunder/pmx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	photosBaseURL  = "https://photoslibrary.googleapis.com/v1"
)

// GoogleOAuthConfig returns the OAuth2 configuration for the Photos Library scopes.
func GoogleOAuthConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"https://www.googleapis.com/auth/photoslibrary.appendonly",
			"https://www.googleapis.com/auth/photoslibrary.sharing",
			"https://www.googleapis.com/auth/photoslibrary.readonly",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  googleAuthURL,
			TokenURL: googleTokenURL,
		},
	}
}

// LoadToken reads an OAuth2 token saved by [SaveToken].
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("%w: invalid token file: %v", shared.ErrNotAuthenticated, err)
	}
	return &token, nil
}

// SaveToken writes token as JSON readable only by the owner.
func SaveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return shared.WriteFileAtomic(path, data, 0600)
}

// NewMediaItem is one entry of a batchCreate request.
type NewMediaItem struct {
	Description     string          `json:"description,omitempty"`
	SimpleMediaItem SimpleMediaItem `json:"simpleMediaItem"`
}

// SimpleMediaItem references uploaded bytes by token.
type SimpleMediaItem struct {
	FileName    string `json:"fileName,omitempty"`
	UploadToken string `json:"uploadToken"`
}

// MediaItemStatus is the per-item status of a batchCreate result.
type MediaItemStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MediaItem is the subset of a created media item the pipeline keeps.
type MediaItem struct {
	ID         string `json:"id"`
	ProductURL string `json:"productUrl"`
	Filename   string `json:"filename"`
}

// MediaItemResult is one entry of a batchCreate response.
type MediaItemResult struct {
	UploadToken string          `json:"uploadToken"`
	Status      MediaItemStatus `json:"status"`
	MediaItem   *MediaItem      `json:"mediaItem"`
}

// OK reports whether the item was created.
func (r MediaItemResult) OK() bool {
	return r.Status.Code == 0 && r.MediaItem != nil && r.MediaItem.ID != ""
}

// PhotosOpts configures a [PhotosService].
type PhotosOpts struct {
	BaseURL    string
	RateLimit  float64
	Auth       Authorizer
	HTTPClient *http.Client
}

// PhotosService implements [Destination] for the Google Photos Library API.
type PhotosService struct {
	baseURL string
	client  *apiClient
}

// NewPhotosService creates a destination client. An empty BaseURL targets the public API.
func NewPhotosService(opts PhotosOpts) *PhotosService {
	if opts.BaseURL == "" {
		opts.BaseURL = photosBaseURL
	}
	return &PhotosService{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		client:  newAPIClient(opts.HTTPClient, opts.RateLimit, opts.Auth),
	}
}

// postJSON sends a request that creates remote state.
func (s *PhotosService) postJSON(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := s.client.do(ctx, callOpts{authorize: true, creates: true}, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrDecode, endpoint, err)
	}
	return nil
}

// CreateAlbum creates an album titled title.
func (s *PhotosService) CreateAlbum(ctx context.Context, title string) (string, error) {
	body := map[string]any{"album": map[string]string{"title": title}}
	var album struct {
		ID string `json:"id"`
	}
	if err := s.postJSON(ctx, "/albums", body, &album); err != nil {
		return "", err
	}
	if album.ID == "" {
		return "", fmt.Errorf("%w: album created without id", shared.ErrDecode)
	}
	return album.ID, nil
}

// UploadBytes uploads data with the raw protocol; the response body is the upload token.
func (s *PhotosService) UploadBytes(ctx context.Context, data []byte, contentType string) (string, error) {
	resp, err := s.client.do(ctx, callOpts{authorize: true}, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/uploads", bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		req.Header.Set("X-Goog-Upload-Protocol", "raw")
		if contentType != "" {
			req.Header.Set("X-Goog-Upload-Content-Type", contentType)
		}
		return req, nil
	})
	if err != nil {
		return "", err
	}

	token := strings.TrimSpace(string(resp.Body))
	if token == "" {
		return "", fmt.Errorf("%w: empty upload token", shared.ErrDecode)
	}
	return token, nil
}

// BatchCreate redeems upload tokens. Results are returned as sent by the API; callers must match
// them to items by upload token since failed entries may be reordered or omitted.
func (s *PhotosService) BatchCreate(ctx context.Context, albumID string, items []NewMediaItem) ([]MediaItemResult, error) {
	body := struct {
		AlbumID       string         `json:"albumId,omitempty"`
		NewMediaItems []NewMediaItem `json:"newMediaItems"`
	}{AlbumID: albumID, NewMediaItems: items}

	var payload struct {
		NewMediaItemResults []MediaItemResult `json:"newMediaItemResults"`
	}
	if err := s.postJSON(ctx, "/mediaItems:batchCreate", body, &payload); err != nil {
		return nil, err
	}
	return payload.NewMediaItemResults, nil
}
