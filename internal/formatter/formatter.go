// package formatter renders playlist track listings as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

// Format is an output format accepted by [Write].
type Format string

const (
	CSV      Format = "csv"
	Markdown Format = "md"
	Text     Format = "txt"
	JSON     Format = "json"
)

// ParseFormat accepts a format name or file extension.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "csv":
		return CSV, nil
	case "md", "markdown":
		return Markdown, nil
	case "txt", "text", "":
		return Text, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, name)
	}
}

// Export is a playlist with its tracks flattened for output.
type Export struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Owner       string               `json:"owner,omitempty"`
	Tracks      []models.CachedTrack `json:"tracks"`
}

// FromPlaylist builds an Export from a live fetch. Unavailable entries are skipped.
func FromPlaylist(playlist models.SimplePlaylist, items []models.PlaylistItem) *Export {
	e := &Export{
		ID:          playlist.ID,
		Name:        playlist.Name,
		Description: playlist.Description,
		Owner:       playlist.Owner.DisplayName,
		Tracks:      make([]models.CachedTrack, 0, len(items)),
	}
	for i, item := range items {
		if item.Track != nil {
			e.Tracks = append(e.Tracks, models.NewCachedTrack(playlist.ID, i, item))
		}
	}
	return e
}

// FromCache builds an Export from the local track cache.
func FromCache(playlist models.CachedPlaylist, tracks []models.CachedTrack) *Export {
	return &Export{ID: playlist.ID, Name: playlist.Name, Owner: playlist.OwnerID, Tracks: tracks}
}

// ToCSV renders one row per track with columns: Position, ID, Name, Artists, Album, Duration, Added, URI
func ToCSV(e *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Name", "Artists", "Album", "Duration", "Added", "URI"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range e.Tracks {
		record := []string{
			strconv.Itoa(t.Position + 1),
			t.TrackID,
			t.Name,
			t.Artists,
			t.Album,
			FormatDuration(t.DurationMS),
			t.AddedAt,
			t.URI,
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

func ToMarkdown(e *Export) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", e.Name)
	if e.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", e.Description)
	}
	if e.Owner != "" {
		fmt.Fprintf(&buf, "**Owner**: %s\n", e.Owner)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(e.Tracks))

	buf.WriteString("## Tracks\n\n")
	for i, t := range e.Tracks {
		album := ""
		if t.Album != "" {
			album = fmt.Sprintf(" (%s)", t.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, t.Artists, t.Name, album, FormatDuration(t.DurationMS))
	}
	return buf.Bytes()
}

func ToText(e *Export) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", e.Name)
	if e.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", e.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(e.Tracks))

	for i, t := range e.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, t.Artists, t.Name)
	}
	return buf.Bytes()
}

func ToJSON(e *Export, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(e, "", "  ")
	}
	return json.Marshal(e)
}

// Render encodes e in format.
func Render(e *Export, format Format) ([]byte, error) {
	switch format {
	case CSV:
		return ToCSV(e)
	case Markdown:
		return ToMarkdown(e), nil
	case Text:
		return ToText(e), nil
	case JSON:
		return ToJSON(e, true)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// Write renders e and writes it to path, creating parent directories.
//
// Defaults to {playlist.ID}_tracks.{format} in the working directory.
func Write(e *Export, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.%s", e.ID, format)
	}

	data, err := Render(e, format)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
