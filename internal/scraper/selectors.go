package scraper

// Feed DOM selectors. X changes its markup often; keep them in one place.
const (
	ItemSelector      = `article[data-testid="tweet"]`
	ProfileLink       = `a[href^="/"]`
	PermalinkLink     = `a[href*="/status/"]`
	TimeElement       = `time`
	TextContainer     = `[data-testid="tweetText"]`
	QuoteContainer    = `[data-testid="quoteTweet"]`
	VideoElement      = `video`
	AuthorLabel       = `span`
	permalinkMarker   = "/status/"
	largeImageQuery   = "?format=jpg&name=large"
	defaultMediaHost  = "pbs.twimg.com/media"
	defaultFeedOrigin = "https://x.com"
)
