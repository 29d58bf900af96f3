// Package summary turns a batched summarization response into per-story
// summaries. Model output format is not guaranteed, so parsing walks an
// ordered list of strategies and keeps the first non-empty result.
package summary

import "strings"

const (
	openTag   = "<story-summary"
	closeTag  = "</story-summary>"
	separator = "---"
)

// Strategy extracts summaries from raw text; ok is false when it found nothing.
type Strategy struct {
	Name  string
	Parse func(text string) (summaries []string, ok bool)
}

// Parser tries strategies in order.
type Parser struct {
	strategies []Strategy
}

// NewParser builds a parser from explicit strategies.
func NewParser(strategies ...Strategy) *Parser {
	return &Parser{strategies: strategies}
}

// DefaultParser is tagged pairs, then separator split, then the whole text.
func DefaultParser() *Parser {
	return NewParser(
		Strategy{Name: "tagged", Parse: Tagged},
		Strategy{Name: "separator", Parse: Separated},
		Strategy{Name: "whole", Parse: Whole},
	)
}

// Parse returns the summaries and the name of the strategy that produced them.
func (p *Parser) Parse(text string) ([]string, string) {
	for _, s := range p.strategies {
		if out, ok := s.Parse(text); ok && len(out) > 0 {
			return out, s.Name
		}
	}
	return nil, ""
}

// Tagged extracts the inner text of every <story-summary ...>...</story-summary> pair.
func Tagged(text string) ([]string, bool) {
	parts := strings.Split(text, openTag)
	if len(parts) < 2 {
		return nil, false
	}

	var out []string
	for _, part := range parts[1:] {
		end := strings.Index(part, closeTag)
		if end == -1 {
			continue
		}
		start := strings.Index(part, ">")
		if start == -1 || start > end {
			continue
		}
		if inner := strings.TrimSpace(part[start+1 : end]); inner != "" {
			out = append(out, inner)
		}
	}
	return out, len(out) > 0
}

// Separated splits on the "---" separator and drops blank parts.
func Separated(text string) ([]string, bool) {
	var out []string
	for _, part := range strings.Split(text, separator) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, len(out) > 0
}

// Whole treats the entire response as one summary.
func Whole(text string) ([]string, bool) {
	return []string{text}, true
}

// Wrap encloses a summary in the <story> tag downstream prompts expect.
func Wrap(summaries []string) []string {
	out := make([]string, len(summaries))
	for i, s := range summaries {
		out[i] = "<story>" + s + "</story>"
	}
	return out
}
