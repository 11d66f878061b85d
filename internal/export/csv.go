package export

import (
	"strings"

	"github.com/IshaanNene/xmarks/internal/types"
)

// encodeCSV renders the fixed eight-column layout. Only author, text and
// media_urls are quoted; id, handle, url and timestamp are written as-is.
func encodeCSV(posts []types.Post) []byte {
	lines := make([]string, 0, len(posts)+1)
	lines = append(lines, strings.Join(csvHeader, ","))

	for i := range posts {
		p := &posts[i]

		quoteURL := ""
		if p.QuoteTweet != nil {
			quoteURL = p.QuoteTweet.URL
		}

		row := []string{
			p.ID,
			quote(p.Author),
			p.Handle,
			quote(strings.ReplaceAll(p.Text, "\n", " ")),
			p.URL,
			p.Timestamp,
			quote(strings.Join(p.MediaURLs(), "; ")),
			quoteURL,
		}
		lines = append(lines, strings.Join(row, ","))
	}

	return []byte(strings.Join(lines, "\n"))
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
