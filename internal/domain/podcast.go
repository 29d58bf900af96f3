package domain

import "strings"

// Speaker is one of the two podcast hosts.
type Speaker string

const (
	SpeakerA Speaker = "A"
	SpeakerB Speaker = "B"
)

// Speakers lists the accepted speaker values in schema order.
var Speakers = []Speaker{SpeakerA, SpeakerB}

// ParseSpeaker normalizes incidental whitespace and casing.
func ParseSpeaker(raw string) (Speaker, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range Speakers {
		if strings.EqualFold(trimmed, string(s)) {
			return s, true
		}
	}
	return "", false
}

// DialogueLine is one turn of the script.
type DialogueLine struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// PodcastScript is the ordered dialogue; order is playback order.
type PodcastScript struct {
	Dialogue []DialogueLine `json:"dialogue"`
}

// Flatten renders the script as "label: text" lines.
func (p PodcastScript) Flatten(labels map[Speaker]string) string {
	lines := make([]string, 0, len(p.Dialogue))
	for _, line := range p.Dialogue {
		label := labels[line.Speaker]
		if label == "" {
			label = string(line.Speaker)
		}
		lines = append(lines, label+": "+line.Text)
	}
	return strings.Join(lines, "\n")
}
