package media

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	jis "github.com/dsoprea/go-jpeg-image-structure/v2"
	goexif "github.com/rwcarlsen/goexif/exif"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// DatePatcher adds a capture date to JPEG images that carry none.
type DatePatcher struct {
	// Location is used to render the posting time; EXIF dates carry no zone. Defaults to [time.Local].
	Location *time.Location
}

// NewDatePatcher returns a patcher rendering dates in local time.
func NewDatePatcher() *DatePatcher {
	return &DatePatcher{Location: time.Local}
}

// HasCaptureDate reports whether data holds EXIF with DateTime, DateTimeOriginal or DateTimeDigitized.
func HasCaptureDate(data []byte) bool {
	x, err := goexif.Decode(bytes.NewReader(data))
	if err != nil {
		return false
	}
	for _, field := range []goexif.FieldName{goexif.DateTimeOriginal, goexif.DateTimeDigitized, goexif.DateTime} {
		if _, err := x.Get(field); err == nil {
			return true
		}
	}
	return false
}

// Patch returns data with EXIF dates set to posted when data is a JPEG without a capture date.
// The second result reports whether data was changed. Non-JPEG input is returned unchanged.
//
// Tags of an existing date-less EXIF segment are kept. A new segment goes after the JFIF header.
func (p *DatePatcher) Patch(data []byte, posted time.Time) ([]byte, bool, error) {
	if posted.IsZero() || !isJPEG(data) || HasCaptureDate(data) {
		return data, false, nil
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
		return data, false, fmt.Errorf("corrupt jpeg: %w", err)
	}

	parsed, err := jis.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return data, false, fmt.Errorf("failed to parse jpeg: %w", err)
	}
	sl := parsed.(*jis.SegmentList)

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		return data, false, fmt.Errorf("failed to read exif: %w", err)
	}

	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	if err := setDates(rootIb, posted.In(loc).Format(exifTimeLayout)); err != nil {
		return data, false, err
	}

	if _, _, err := sl.FindExif(); err == nil {
		if err := sl.SetExif(rootIb); err != nil {
			return data, false, fmt.Errorf("failed to write exif: %w", err)
		}
	} else {
		segment := &jis.Segment{MarkerId: jis.MARKER_APP1, MarkerName: "APP1"}
		if err := segment.SetExif(rootIb); err != nil {
			return data, false, fmt.Errorf("failed to write exif: %w", err)
		}
		sl = jis.NewSegmentList(insertAfterHeader(sl.Segments(), segment))
	}

	var out bytes.Buffer
	out.Grow(len(data) + 256)
	if err := sl.Write(&out); err != nil {
		return data, false, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return out.Bytes(), true, nil
}

func setDates(rootIb *exif.IfdBuilder, date string) error {
	if err := rootIb.SetStandardWithName("DateTime", date); err != nil {
		return fmt.Errorf("failed to set DateTime: %w", err)
	}
	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return fmt.Errorf("failed to open exif ifd: %w", err)
	}
	for _, name := range []string{"DateTimeOriginal", "DateTimeDigitized"} {
		if err := exifIb.SetStandardWithName(name, date); err != nil {
			return fmt.Errorf("failed to set %s: %w", name, err)
		}
	}
	return nil
}

// insertAfterHeader places segment after SOI, or after SOI and APP0 when a JFIF header is present.
func insertAfterHeader(segments []*jis.Segment, segment *jis.Segment) []*jis.Segment {
	at := 1
	if len(segments) > 1 && segments[1].MarkerId == jis.MARKER_APP0 {
		at = 2
	}
	out := make([]*jis.Segment, 0, len(segments)+1)
	out = append(out, segments[:at]...)
	out = append(out, segment)
	return append(out, segments[at:]...)
}

func isJPEG(data []byte) bool {
	return len(data) > 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}
