package types

// MediaKind identifies the kind of media attached to a post.
type MediaKind string

const (
	MediaImage          MediaKind = "image"
	MediaVideoThumbnail MediaKind = "video_thumbnail"
)

// Media is a single media attachment of a post.
type Media struct {
	Kind MediaKind `json:"type" bson:"type"`
	URL  string    `json:"url"  bson:"url"`
}

// QuotedPost is the reduced view of a post embedded inside another post.
type QuotedPost struct {
	Text string `json:"text" bson:"text"`
	URL  string `json:"url"  bson:"url"`
}

// Post represents one scraped bookmark entry.
type Post struct {
	// ID is the numeric status identifier taken from the permalink.
	ID string `json:"id" bson:"_id"`

	Author    string `json:"author"    bson:"author"`
	Handle    string `json:"handle"    bson:"handle"`
	Text      string `json:"text"      bson:"text"`
	URL       string `json:"url"       bson:"url"`
	Timestamp string `json:"timestamp" bson:"timestamp"`

	// Media is kept in DOM order. It is never nil for scraped posts.
	Media []Media `json:"media" bson:"media"`

	// QuoteTweet is nil when the post does not embed another post.
	QuoteTweet *QuotedPost `json:"quoteTweet" bson:"quote_tweet,omitempty"`
}

// MediaURLs returns the URLs of all media attachments in order.
func (p *Post) MediaURLs() []string {
	urls := make([]string, len(p.Media))
	for i, m := range p.Media {
		urls[i] = m.URL
	}
	return urls
}

// Clone creates a deep copy of the post.
func (p *Post) Clone() *Post {
	clone := *p
	clone.Media = make([]Media, len(p.Media))
	copy(clone.Media, p.Media)
	if p.QuoteTweet != nil {
		q := *p.QuoteTweet
		clone.QuoteTweet = &q
	}
	return &clone
}
