package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtension(t *testing.T) {
	tc := []struct {
		name        string
		url         string
		contentType string
		want        string
	}{
		{name: "from url path", url: "https://live.staticflickr.com/1/2_abc_o.JPG", want: ".jpg"},
		{name: "query ignored", url: "https://www.flickr.com/download?id=1", contentType: "video/mp4", want: ".mp4"},
		{name: "content type with params", url: "https://x/file", contentType: "image/jpeg; charset=binary", want: ".jpg"},
		{name: "quicktime", url: "https://x/", contentType: "video/quicktime", want: ".mov"},
		{name: "nothing known", url: "https://x/file", contentType: "", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extension(tt.url, tt.contentType))
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentType("1.JPG", nil))
	assert.Equal(t, "video/mp4", ContentType("/lib/2.mp4", nil))
	assert.Equal(t, "image/png", ContentType("noext", []byte("\x89PNG\r\n\x1a\n0000")))
}
