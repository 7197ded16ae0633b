// Flickr REST response types, see https://www.flickr.com/services/api/
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/pmx/internal/shared"
)

// FlexInt decodes integers that Flickr sends either as JSON numbers or as strings.
// Null and empty strings decode to zero.
type FlexInt int64

func (n *FlexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", data, err)
	}
	*n = FlexInt(v)
	return nil
}

// Dimension is a width or height that may be absent (null) for some renditions.
type Dimension struct {
	Value int
	Valid bool
}

func (d *Dimension) UnmarshalJSON(data []byte) error {
	var n FlexInt
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*d = Dimension{}
		return nil
	}
	if err := n.UnmarshalJSON(data); err != nil {
		return err
	}
	*d = Dimension{Value: int(n), Valid: true}
	return nil
}

// Content wraps Flickr's {"_content": "..."} text fields.
type Content struct {
	Content string `json:"_content"`
}

// Paging holds the page counters shared by every paginated listing.
type Paging struct {
	Page    FlexInt  `json:"page"`
	Pages   *FlexInt `json:"pages"`
	PerPage FlexInt  `json:"perpage"`
	Total   FlexInt  `json:"total"`
}

// PageCount returns the total page count, or false when the response carries none.
func (p Paging) PageCount() (int, bool) {
	if p.Pages == nil {
		return 0, false
	}
	return int(*p.Pages), true
}

// PhotoRef is a listing entry; only the id is used.
type PhotoRef struct {
	ID string `json:"id"`
}

// PhotosPage is one page of people.getPhotos or photosets.getPhotos.
type PhotosPage struct {
	Paging
	Photo []PhotoRef `json:"photo"`
}

// IDs returns the ids of every listed photo.
func (p *PhotosPage) IDs() []string {
	ids := make([]string, 0, len(p.Photo))
	for _, ref := range p.Photo {
		ids = append(ids, ref.ID)
	}
	return ids
}

// AlbumRef is a photosets.getList entry.
type AlbumRef struct {
	ID         string  `json:"id"`
	Title      Content `json:"title"`
	DateCreate FlexInt `json:"date_create"`
}

// AlbumsPage is one page of photosets.getList.
type AlbumsPage struct {
	Paging
	Photoset []AlbumRef `json:"photoset"`
}

// PhotoInfo is the photos.getInfo payload.
type PhotoInfo struct {
	ID          string  `json:"id"`
	Title       Content `json:"title"`
	Description Content `json:"description"`
	Dates       struct {
		Posted FlexInt `json:"posted"`
	} `json:"dates"`
	Media string `json:"media"`
}

// Validate checks the fields the pipeline depends on.
func (p *PhotoInfo) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: photo info without id", shared.ErrDecode)
	}
	if p.Media == "" {
		return fmt.Errorf("%w: photo info %s without media", shared.ErrDecode, p.ID)
	}
	return nil
}

// Size is one rendition from photos.getSizes.
type Size struct {
	Label  string    `json:"label"`
	Width  Dimension `json:"width"`
	Height Dimension `json:"height"`
	Source string    `json:"source"`
	Media  string    `json:"media"`
}

type flickrStatus struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// APIError is a Flickr "stat": "fail" payload.
type APIError struct {
	Method  string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed with code %d: %s", e.Method, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return shared.ErrAPIRequest }

// unwrapJSONP strips a jsonFlickrApi(...) callback wrapper.
func unwrapJSONP(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	const prefix = "jsonFlickrApi("
	if bytes.HasPrefix(trimmed, []byte(prefix)) && bytes.HasSuffix(trimmed, []byte(")")) {
		return trimmed[len(prefix) : len(trimmed)-1]
	}
	return trimmed
}

func decodeFlickr(method string, body []byte, out any) error {
	body = unwrapJSONP(body)

	var status flickrStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrDecode, method, err)
	}
	if status.Stat != "ok" {
		return &APIError{Method: method, Code: status.Code, Message: status.Message}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrDecode, method, err)
	}
	return nil
}
