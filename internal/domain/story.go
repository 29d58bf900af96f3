package domain

// Source identifies an upstream content provider.
type Source string

const (
	SourceHackerNews     Source = "hacker-news"
	SourceGitHubTrending Source = "github-trending"
	SourceProductHunt    Source = "product-hunt"
	SourceDevTo          Source = "dev-to"
)

// Story is one aggregated content item. Identity is (Source, ID).
type Story struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url,omitempty"`
	SourceURL   string `json:"sourceUrl,omitempty"`
	Source      Source `json:"source"`
	Description string `json:"description,omitempty"`
	Stars       int    `json:"stars,omitempty"`
	Votes       int    `json:"votes,omitempty"`
}

// Valid reports whether the story carries the fields every extractor must fill.
func (s Story) Valid() bool {
	return s.ID != "" && s.Title != "" && (s.URL != "" || s.SourceURL != "")
}

// Link returns the URL used to fetch the story body.
func (s Story) Link() string {
	if s.URL != "" {
		return s.URL
	}
	return s.SourceURL
}

// StoryContent is the fetched text body of one Story.
type StoryContent struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  Source `json:"source,omitempty"`
}

// GroupBySource splits stories per source while keeping the first-seen source order.
func GroupBySource(stories []Story) ([]Source, map[Source][]Story) {
	order := make([]Source, 0)
	groups := make(map[Source][]Story)
	for _, story := range stories {
		source := story.Source
		if source == "" {
			source = "unknown"
		}
		if _, ok := groups[source]; !ok {
			order = append(order, source)
		}
		groups[source] = append(groups[source], story)
	}
	return order, groups
}
