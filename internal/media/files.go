package media

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

var preferredExt = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/heic":      ".heic",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/x-msvideo": ".avi",
	"video/mpeg":      ".mpg",
}

var preferredType = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".heic": "image/heic",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mpg":  "video/mpeg",
}

// Extension returns the lowercase extension of the final URL's path, falling back to one derived
// from the content type. It returns "" when neither yields one.
func Extension(finalURL, contentType string) string {
	if u, err := url.Parse(finalURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && ext != "." {
			return ext
		}
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if ext, ok := preferredExt[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// ContentType guesses a file's MIME type from its name, then from its leading bytes.
func ContentType(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := preferredType[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
