package sources

type Kind string

const (
	KindBlog  Kind = "blog"
	KindVideo Kind = "video"
)

// Config describes a single content source. Kind selects the adapter;
// the remaining fields are interpreted per kind (FeedURL for blogs,
// Channel for video platform channels).
type Config struct {
	ID    string // Derived from filename (without .yml extension)
	Kind  Kind   `yaml:"kind"`
	Label string `yaml:"label"`

	FeedURL string `yaml:"feed_url"` // blog: RSS/Atom feed URL
	Channel string `yaml:"channel"`  // video: channel ID (UC...), @handle, or legacy username

	Settings ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled        bool `yaml:"enabled"`
	MaxItems       int  `yaml:"max_items"`
	ExtractExcerpt bool `yaml:"extract_excerpt"` // blog: fetch the page when the feed has no excerpt
	Transcript     bool `yaml:"transcript"`      // video: use the English transcript as the item excerpt
}
