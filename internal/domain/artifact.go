package domain

import "time"

// AudioRef points at the combined podcast object.
type AudioRef struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Chunks int    `json:"chunks"`
	Bytes  int64  `json:"bytes"`
}

// Artifact is the complete published output for one date.
type Artifact struct {
	Date           string        `json:"date"`
	Title          string        `json:"title"`
	Stories        []Story       `json:"stories"`
	PodcastContent string        `json:"podcastContent"`
	PodcastScript  PodcastScript `json:"podcastScript"`
	BlogContent    string        `json:"blogContent"`
	IntroContent   string        `json:"introContent"`
	Audio          string        `json:"audio"`
	AudioRef       AudioRef      `json:"audioRef"`
	UpdatedAt      int64         `json:"updatedAt"`
}

// Lock marks an in-flight run for a date.
type Lock struct {
	Date      string    `json:"date"`
	Owner     string    `json:"ownerInstanceId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Live reports whether the lock has not expired at now.
func (l Lock) Live(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}
