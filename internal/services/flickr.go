package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/pmx/internal/shared"
)

const (
	flickrBaseURL = "https://www.flickr.com/services"
	flickrPerPage = 500
)

// FlickrOpts configures a [FlickrService].
type FlickrOpts struct {
	BaseURL       string
	APIKey        string
	UserID        string
	PerPage       int
	RateLimit     float64
	CookieSession string
	CookieEpass   string
	Auth          Authorizer
	HTTPClient    *http.Client
}

// FlickrService implements [Source] for a single Flickr account.
type FlickrService struct {
	endpoint string
	apiKey   string
	userID   string
	perPage  int
	cookies  []*http.Cookie
	client   *apiClient
}

// NewFlickrService creates a Flickr client. An empty BaseURL targets the public API.
func NewFlickrService(opts FlickrOpts) (*FlickrService, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: flickr api_key is required", shared.ErrMissingCredentials)
	}
	if opts.UserID == "" {
		return nil, fmt.Errorf("%w: flickr user_id is required", shared.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = flickrBaseURL
	}
	if opts.PerPage <= 0 {
		opts.PerPage = flickrPerPage
	}

	var cookies []*http.Cookie
	if opts.CookieSession != "" {
		cookies = append(cookies, &http.Cookie{Name: "cookie_session", Value: opts.CookieSession})
	}
	if opts.CookieEpass != "" {
		cookies = append(cookies, &http.Cookie{Name: "cookie_epass", Value: opts.CookieEpass})
	}

	return &FlickrService{
		endpoint: strings.TrimSuffix(opts.BaseURL, "/") + "/rest/",
		apiKey:   opts.APIKey,
		userID:   opts.UserID,
		perPage:  opts.PerPage,
		cookies:  cookies,
		client:   newAPIClient(opts.HTTPClient, opts.RateLimit, opts.Auth),
	}, nil
}

// call issues a signed GET for method and decodes the payload into out.
func (s *FlickrService) call(ctx context.Context, method string, params url.Values, out any) error {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("method", method)
	query.Set("api_key", s.apiKey)
	query.Set("format", "json")
	query.Set("nojsoncallback", "1")

	resp, err := s.client.do(ctx, callOpts{authorize: true}, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+query.Encode(), nil)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return decodeFlickr(method, resp.Body, out)
}

func (s *FlickrService) pageParams(page int) url.Values {
	return url.Values{
		"user_id":  {s.userID},
		"per_page": {strconv.Itoa(s.perPage)},
		"page":     {strconv.Itoa(page)},
	}
}

// Photos lists one page of every photo and video the user owns.
func (s *FlickrService) Photos(ctx context.Context, page int) (*PhotosPage, error) {
	var payload struct {
		Photos PhotosPage `json:"photos"`
	}
	if err := s.call(ctx, "flickr.people.getPhotos", s.pageParams(page), &payload); err != nil {
		return nil, err
	}
	return &payload.Photos, nil
}

// Albums lists one page of the user's photosets.
func (s *FlickrService) Albums(ctx context.Context, page int) (*AlbumsPage, error) {
	var payload struct {
		Photosets AlbumsPage `json:"photosets"`
	}
	if err := s.call(ctx, "flickr.photosets.getList", s.pageParams(page), &payload); err != nil {
		return nil, err
	}
	for _, ref := range payload.Photosets.Photoset {
		if ref.ID == "" {
			return nil, fmt.Errorf("%w: photoset without id", shared.ErrDecode)
		}
	}
	return &payload.Photosets, nil
}

// AlbumPhotos lists one page of a photoset's members.
func (s *FlickrService) AlbumPhotos(ctx context.Context, albumID string, page int) (*PhotosPage, error) {
	params := s.pageParams(page)
	params.Set("photoset_id", albumID)

	var payload struct {
		Photoset PhotosPage `json:"photoset"`
	}
	if err := s.call(ctx, "flickr.photosets.getPhotos", params, &payload); err != nil {
		return nil, err
	}
	return &payload.Photoset, nil
}

// PhotoInfo returns the detail of a single item.
func (s *FlickrService) PhotoInfo(ctx context.Context, id string) (*PhotoInfo, error) {
	var payload struct {
		Photo PhotoInfo `json:"photo"`
	}
	if err := s.call(ctx, "flickr.photos.getInfo", url.Values{"photo_id": {id}}, &payload); err != nil {
		return nil, err
	}
	if err := payload.Photo.Validate(); err != nil {
		return nil, err
	}
	return &payload.Photo, nil
}

// PhotoSizes returns every available rendition of an item.
func (s *FlickrService) PhotoSizes(ctx context.Context, id string) ([]Size, error) {
	var payload struct {
		Sizes struct {
			Size []Size `json:"size"`
		} `json:"sizes"`
	}
	if err := s.call(ctx, "flickr.photos.getSizes", url.Values{"photo_id": {id}}, &payload); err != nil {
		return nil, err
	}
	return payload.Sizes.Size, nil
}

// Fetch downloads rawURL without API signing. Session cookies are attached when withCookies is set,
// since original videos are only served to a logged-in session.
func (s *FlickrService) Fetch(ctx context.Context, rawURL string, withCookies bool) (*Download, error) {
	resp, err := s.client.do(ctx, callOpts{}, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		if withCookies {
			for _, cookie := range s.cookies {
				req.AddCookie(cookie)
			}
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	return &Download{
		Data:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.FinalURL.String(),
	}, nil
}
