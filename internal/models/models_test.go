package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPhotoState(t *testing.T) {
	tc := []struct {
		name  string
		photo Photo
		want  State
	}{
		{name: "skeleton", photo: Photo{ID: "1"}, want: StateSeeded},
		{name: "populated", photo: Photo{ID: "1", URL: "u"}, want: StateMetadataPopulated},
		{name: "downloaded", photo: Photo{ID: "1", URL: "u", DownloadPath: "p"}, want: StateDownloaded},
		{name: "uploaded", photo: Photo{ID: "1", URL: "u", DownloadPath: "p", DestinationUploadToken: "t"}, want: StateBytesUploaded},
		{name: "linked", photo: Photo{ID: "1", URL: "u", DownloadPath: "p", DestinationUploadToken: "t", DestinationMediaID: "m"}, want: StateLinked},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.photo.State())
			assert.NoError(t, tt.photo.Validate())
		})
	}
}

func TestPhotoValidate(t *testing.T) {
	tc := []struct {
		name  string
		photo Photo
	}{
		{name: "missing id", photo: Photo{}},
		{name: "path without url", photo: Photo{ID: "1", DownloadPath: "p"}},
		{name: "token without path", photo: Photo{ID: "1", URL: "u", DestinationUploadToken: "t"}},
		{name: "media id without token", photo: Photo{ID: "1", URL: "u", DownloadPath: "p", DestinationMediaID: "m"}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.photo.Validate())
		})
	}
}

func TestPhotoTokenFresh(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	photo := Photo{ID: "1", DestinationUploadToken: "tok", DestinationUploadAt: now.Add(-2 * time.Hour).Unix()}

	assert.True(t, photo.TokenFresh(now, 23*time.Hour))
	assert.False(t, photo.TokenFresh(now, time.Hour))

	photo.DestinationUploadAt = 0
	assert.False(t, photo.TokenFresh(now, 23*time.Hour))
}

func TestAlbumValidate(t *testing.T) {
	assert.NoError(t, (&Album{ID: "721"}).Validate())
	assert.Error(t, (&Album{}).Validate())
	assert.Error(t, (&Album{ID: Unsorted}).Validate())
}

func TestStageRunValidate(t *testing.T) {
	run := NewStageRun("run", "populate", 1, time.Now())
	run.Outcome = OutcomePartial
	run.Succeeded, run.Attempted = 7, 10
	assert.NoError(t, run.Validate())

	run.Succeeded = 11
	assert.Error(t, run.Validate())

	run.Succeeded = 1
	run.Pass = 0
	assert.Error(t, run.Validate())

	run.Pass = 1
	run.Outcome = "maybe"
	assert.Error(t, run.Validate())
}
