// Package media holds local byte-level helpers used around downloads: capture-date patching of
// JPEG metadata and file extension and content type resolution.
package media
