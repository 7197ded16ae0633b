// package formatter renders library status reports as text, CSV and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/shared"
	"github.com/desertthunder/pmx/internal/store"
)

// StateCounts maps every pipeline state name to the number of photos in it.
type StateCounts map[string]int

// CollectionStatus summarizes one collection of the library.
type CollectionStatus struct {
	Collection         string      `json:"collection"`
	Title              string      `json:"title,omitempty"`
	DestinationAlbumID string      `json:"destination_album_id,omitempty"`
	Photos             int         `json:"photos"`
	Videos             int         `json:"videos"`
	States             StateCounts `json:"states"`
}

// Report is the status of the whole library.
type Report struct {
	Collections   []CollectionStatus `json:"collections"`
	Totals        StateCounts        `json:"totals"`
	Photos        int                `json:"photos"`
	Albums        int                `json:"albums"`
	AlbumsCreated int                `json:"albums_created"`
}

func newCounts() StateCounts {
	counts := StateCounts{}
	for _, s := range models.States() {
		counts[s.String()] = 0
	}
	return counts
}

// NewReport counts entries per collection and state. Collections keep the order of entries; albums
// without photos are listed too.
func NewReport(entries []store.Entry, albums []*models.Album) *Report {
	report := &Report{Totals: newCounts(), Albums: len(albums)}

	index := map[string]int{}
	status := func(collection string) *CollectionStatus {
		i, ok := index[collection]
		if !ok {
			i = len(report.Collections)
			index[collection] = i
			report.Collections = append(report.Collections, CollectionStatus{Collection: collection, States: newCounts()})
		}
		return &report.Collections[i]
	}

	for _, entry := range entries {
		cs := status(entry.Collection)
		cs.Photos++
		if entry.Photo.IsVideo() {
			cs.Videos++
		}
		state := entry.Photo.State().String()
		cs.States[state]++
		report.Totals[state]++
		report.Photos++
	}

	for _, album := range albums {
		cs := status(album.ID)
		cs.Title = album.Title
		cs.DestinationAlbumID = album.DestinationAlbumID
		if album.DestinationAlbumID != "" {
			report.AlbumsCreated++
		}
	}
	return report
}

// Linked is the number of photos that reached the destination library.
func (r *Report) Linked() int {
	return r.Totals[models.StateLinked.String()]
}

// ExportToText renders the report as an aligned table with one row per collection.
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	header := []string{"COLLECTION", "TITLE", "ALBUM"}
	for _, s := range models.States() {
		header = append(header, strings.ToUpper(s.String()))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, cs := range report.Collections {
		album := "-"
		switch {
		case cs.Collection == models.Unsorted:
			album = "n/a"
		case cs.DestinationAlbumID != "":
			album = "created"
		}
		row := []string{cs.Collection, cs.Title, album}
		for _, s := range models.States() {
			row = append(row, strconv.Itoa(cs.States[s.String()]))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render table: %w", err)
	}

	fmt.Fprintf(&buf, "\n%d photo(s), %d linked. %d out of %d album(s) created.\n",
		report.Photos, report.Linked(), report.AlbumsCreated, report.Albums)
	return buf.Bytes(), nil
}

// ExportToJSON renders the report as indented JSON.
func ExportToJSON(report *Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

var csvHeaders = []string{
	"Collection", "ID", "Title", "Media", "State", "URL", "DownloadPath", "DidUpdateEXIF", "DestinationMediaID",
}

// ExportToCSV writes one row per photo.
func ExportToCSV(entries []store.Entry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range entries {
		p := entry.Photo
		record := []string{
			entry.Collection,
			p.ID,
			p.Title,
			string(p.Media),
			p.State().String(),
			p.URL,
			p.DownloadPath,
			strconv.FormatBool(p.DidUpdateEXIF),
			p.DestinationMediaID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteCSVExport writes [ExportToCSV] output to path.
func WriteCSVExport(entries []store.Entry, path string) error {
	data, err := ExportToCSV(entries)
	if err != nil {
		return err
	}
	if err := shared.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return nil
}
