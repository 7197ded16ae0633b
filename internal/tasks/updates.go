package tasks

import (
	"fmt"

	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/query"
)

// ProgressUpdate represents a progress event during a stage pass.
//
// Sent to the CLI layer after each group of remote operations.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Operations finished within phase
	Total   int    // Total operations in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ListSource Phase = iota
	SeedLibrary
	PopulateMetadata
	DownloadContent
	CreateAlbums
	UploadBytes
	LinkItems
)

func (p Phase) String() string {
	switch p {
	case ListSource:
		return "list_source"
	case SeedLibrary:
		return "seed_library"
	case PopulateMetadata:
		return "populate_metadata"
	case DownloadContent:
		return "download_content"
	case CreateAlbums:
		return "create_albums"
	case UploadBytes:
		return "upload_bytes"
	case LinkItems:
		return "link_items"
	default:
		return ""
	}
}

func listingUpdate(step, total int, what string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Listing %s...", what),
	}
}

func seededUpdate(photos, albums int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SeedLibrary,
		Step:    photos + albums,
		Total:   photos + albums,
		Message: fmt.Sprintf("Seeded %d new photo(s) and %d album(s).", photos, albums),
	}
}

// chunkUpdate reports a finished group of a chunked phase; verb is the past tense of the action.
func chunkUpdate(phase Phase, verb string, p query.Progress) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    p.Done,
		Total:   p.Total,
		Message: fmt.Sprintf("%s %d out of %d photo(s).", verb, p.Succeeded, p.Done),
		Data:    p,
	}
}

func albumUpdate(step, total int, album *models.Album, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   CreateAlbums,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, album.Title, err),
		}
	}
	return ProgressUpdate{
		Phase:   CreateAlbums,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, album.Title),
		Data:    album,
	}
}

func linkUpdate(step, total int, collection string, linked, attempted int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LinkItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%s] Uploaded %d out of %d photo(s).", collection, linked, attempted),
	}
}
