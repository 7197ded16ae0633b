package services

import (
	"fmt"

	"github.com/desertthunder/pmx/internal/shared"
)

// SelectSource picks the URL of the best rendition.
//
// Video renditions take precedence when any exist. Renditions without both dimensions are ignored;
// among the rest an "Original" or "Video Original" label wins, otherwise the largest width*height.
// When no rendition reports dimensions the last one listed is used, as sizes are listed smallest first.
func SelectSource(sizes []Size) (string, error) {
	if len(sizes) == 0 {
		return "", shared.ErrNoSizes
	}

	candidates := sizes
	var videos []Size
	for _, size := range sizes {
		if size.Media == "video" {
			videos = append(videos, size)
		}
	}
	if len(videos) > 0 {
		candidates = videos
	}

	var sized []Size
	for _, size := range candidates {
		if size.Width.Valid && size.Height.Valid {
			sized = append(sized, size)
		}
	}

	if len(sized) == 0 {
		last := candidates[len(candidates)-1]
		if last.Source == "" {
			return "", fmt.Errorf("%w: rendition %q has no source", shared.ErrNoSizes, last.Label)
		}
		return last.Source, nil
	}

	for _, size := range sized {
		if size.Label == "Original" || size.Label == "Video Original" {
			if size.Source == "" {
				return "", fmt.Errorf("%w: rendition %q has no source", shared.ErrNoSizes, size.Label)
			}
			return size.Source, nil
		}
	}

	best := sized[0]
	for _, size := range sized[1:] {
		if size.Width.Value*size.Height.Value > best.Width.Value*best.Height.Value {
			best = size
		}
	}
	if best.Source == "" {
		return "", fmt.Errorf("%w: rendition %q has no source", shared.ErrNoSizes, best.Label)
	}
	return best.Source, nil
}
