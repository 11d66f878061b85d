package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IshaanNene/xmarks/internal/types"
)

// Supported export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// DefaultPrefix is the filename prefix used when none is configured.
const DefaultPrefix = "x-bookmarks"

var csvHeader = []string{"id", "author", "handle", "text", "url", "timestamp", "media_urls", "quote_tweet_url"}

// Payload is a serialized export ready to be written somewhere.
type Payload struct {
	Filename    string
	ContentType string
	Format      string
	Count       int
	Data        []byte
}

// Formatter serializes collected posts.
type Formatter struct {
	prefix string
	now    func() time.Time
}

// NewFormatter creates a Formatter whose filenames start with prefix.
func NewFormatter(prefix string) *Formatter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Formatter{prefix: prefix, now: time.Now}
}

// Format serializes posts in the given format. Posts are written in the
// order given; the slice is not modified.
func (f *Formatter) Format(posts []types.Post, format string) (*Payload, error) {
	var (
		data        []byte
		contentType string
		err         error
	)

	switch strings.ToLower(format) {
	case FormatJSON:
		data, err = encodeJSON(posts)
		contentType = "application/json"
	case FormatCSV:
		data = encodeCSV(posts)
		contentType = "text/csv"
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	format = strings.ToLower(format)
	return &Payload{
		Filename:    Filename(f.prefix, format, f.now()),
		ContentType: contentType,
		Format:      format,
		Count:       len(posts),
		Data:        data,
	}, nil
}

// Filename returns "<prefix>-YYYY-MM-DD.<ext>" using the UTC calendar date.
func Filename(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", prefix, now.UTC().Format("2006-01-02"), ext)
}

// encodeJSON writes a two-space indented array without HTML escaping.
func encodeJSON(posts []types.Post) ([]byte, error) {
	if posts == nil {
		posts = []types.Post{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(posts); err != nil {
		return nil, fmt.Errorf("encode JSON: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
