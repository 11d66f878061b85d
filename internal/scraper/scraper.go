package scraper

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/xmarks/internal/types"
)

var (
	profilePathRe = regexp.MustCompile(`^/[^/]+$`)
	statusIDRe    = regexp.MustCompile(`/status/(\d+)`)
)

// Pass is the outcome of scraping one DOM snapshot.
type Pass struct {
	// Posts holds one record per feed item with a derivable id, in DOM order.
	Posts []types.Post

	// Items is the number of feed items found in the snapshot.
	Items int

	// Skipped counts items dropped for lack of an id or a parse failure.
	Skipped int
}

// Scraper extracts post records from a rendered feed page.
type Scraper struct {
	origin    string
	mediaHost string
	logger    *slog.Logger
}

// Option configures the Scraper.
type Option func(*Scraper)

// WithOrigin sets the canonical origin prefixed to relative permalinks.
func WithOrigin(origin string) Option {
	return func(s *Scraper) { s.origin = strings.TrimRight(origin, "/") }
}

// WithMediaHost sets the host/path fragment identifying feed media images.
func WithMediaHost(host string) Option {
	return func(s *Scraper) { s.mediaHost = host }
}

// New creates a Scraper for the X bookmarks feed.
func New(logger *slog.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		origin:    defaultFeedOrigin,
		mediaHost: defaultMediaHost,
		logger:    logger.With("component", "page_scraper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape parses an HTML snapshot and returns the posts currently in the DOM.
// Malformed items are skipped; only an unparsable document is an error.
func (s *Scraper) Scrape(snapshot string) (*Pass, error) {
	root, err := html.Parse(strings.NewReader(snapshot))
	if err != nil {
		return nil, &types.ParseError{URL: s.origin, Err: err}
	}
	doc := goquery.NewDocumentFromNode(root)

	pass := &Pass{Posts: make([]types.Post, 0)}
	doc.Find(ItemSelector).Each(func(i int, item *goquery.Selection) {
		pass.Items++

		post, err := s.scrapeItem(item)
		if err != nil {
			pass.Skipped++
			s.logger.Debug("feed item skipped", "index", i, "error", err)
			return
		}
		if post == nil {
			pass.Skipped++
			return
		}
		pass.Posts = append(pass.Posts, *post)
	})

	s.logger.Debug("snapshot scraped", "items", pass.Items, "posts", len(pass.Posts), "skipped", pass.Skipped)
	return pass, nil
}

// scrapeItem extracts one post. It returns nil when the item has no permalink id.
func (s *Scraper) scrapeItem(item *goquery.Selection) (post *types.Post, err error) {
	defer func() {
		if r := recover(); r != nil {
			post, err = nil, fmt.Errorf("recovered: %v", r)
		}
	}()

	url, id := s.permalink(item)
	if id == "" {
		return nil, nil
	}

	handle, author := profile(item)
	timestamp, _ := item.Find(TimeElement).First().Attr("datetime")

	return &types.Post{
		ID:         id,
		Author:     author,
		Handle:     handle,
		Text:       item.Find(TextContainer).First().Text(),
		URL:        url,
		Timestamp:  timestamp,
		Media:      s.media(item),
		QuoteTweet: s.quoted(item),
	}, nil
}

// profile returns the handle and display name from the first single-segment profile link.
func profile(item *goquery.Selection) (handle, author string) {
	item.Find(ProfileLink).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if !profilePathRe.MatchString(href) || strings.Contains(href, permalinkMarker) {
			return true
		}
		handle = strings.TrimPrefix(href, "/")
		if label := link.Find(AuthorLabel).First(); label.Length() > 0 {
			author = label.Text()
		}
		return false
	})
	return handle, author
}

// permalink returns the absolute permalink and numeric id of the first status link.
func (s *Scraper) permalink(sel *goquery.Selection) (url, id string) {
	href, ok := sel.Find(PermalinkLink).First().Attr("href")
	if !ok {
		return "", ""
	}
	url = s.origin + href
	if m := statusIDRe.FindStringSubmatch(url); m != nil {
		id = m[1]
	}
	return url, id
}

func (s *Scraper) media(item *goquery.Selection) []types.Media {
	media := make([]types.Media, 0)

	item.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" || !strings.Contains(src, s.mediaHost) {
			return
		}
		media = append(media, types.Media{Kind: types.MediaImage, URL: largeImageURL(src)})
	})

	item.Find(VideoElement).Each(func(_ int, video *goquery.Selection) {
		if poster, _ := video.Attr("poster"); poster != "" {
			media = append(media, types.Media{Kind: types.MediaVideoThumbnail, URL: poster})
		}
	})

	return media
}

func (s *Scraper) quoted(item *goquery.Selection) *types.QuotedPost {
	container := item.Find(QuoteContainer).First()
	if container.Length() == 0 {
		return nil
	}

	quote := &types.QuotedPost{
		Text: container.Find(TextContainer).First().Text(),
	}
	if href, ok := container.Find(PermalinkLink).First().Attr("href"); ok {
		quote.URL = s.origin + href
	}
	return quote
}

// largeImageURL drops any query string and requests the large JPEG rendition.
func largeImageURL(src string) string {
	if i := strings.IndexByte(src, '?'); i >= 0 {
		src = src[:i]
	}
	return src + largeImageQuery
}
