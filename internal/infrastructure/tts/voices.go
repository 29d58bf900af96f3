// Package tts adapts speech synthesis providers to ports.Synthesizer.
package tts

import "DailyPodcast/internal/domain"

// Voices maps speaker roles to provider voice ids. Speaker A is the male
// host, speaker B the female host.
type Voices struct {
	Man   string
	Woman string
}

func (v Voices) For(speaker domain.Speaker) string {
	if speaker == domain.SpeakerA {
		return v.Man
	}
	return v.Woman
}

func (v Voices) withDefaults(man, woman string) Voices {
	if v.Man == "" {
		v.Man = man
	}
	if v.Woman == "" {
		v.Woman = woman
	}
	return v
}
