// Package moderation masks forbidden words in message content.
package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator finds dictionary words in a message, whatever their case, leet
// spelling or inner punctuation, and masks them rune by rune.
// A match is only masked when it stands as a whole word: "loser" is masked in
// "what a loser!" but not in "a closer look".
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

// folded is a message reduced to its meaningful runes. origIdx[i] is the index
// in the original runes of folded rune i.
type folded struct {
	runes   []rune
	origIdx []int
}

// NewModerator builds the automaton. Dictionary entries made only of noise are ignored.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		pattern := fold([]rune(word)).runes
		if len(pattern) == 0 {
			log.Debug("Ignoring censored word without letters", "word", word)
			continue
		}
		patterns = append(patterns, pattern)
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	log.Debug("Moderator ready", "patterns", len(patterns))
	return &Moderator{matcher: m, censoredChar: censoredChar, log: log}, nil
}

// Censor returns the content with every forbidden word masked, spacing and
// punctuation around it preserved, plus the dictionary form of the masked
// words. Clean content is returned unchanged with nil words.
func (m *Moderator) Censor(content string) (string, []string) {
	orig := []rune(content)
	f := fold(orig)
	if len(f.runes) == 0 {
		return content, nil
	}

	var words []string
	for _, span := range m.matcher.MultiPatternSearch(f.runes, false) {
		end := span.Pos + len(span.Word)
		if span.Pos < 0 || end > len(f.origIdx) {
			continue
		}
		from, to := f.origIdx[span.Pos], f.origIdx[end-1]+1
		if !wholeWord(orig, from, to) {
			continue
		}
		for i := from; i < to; i++ {
			orig[i] = m.censoredChar
		}
		words = append(words, string(span.Word))
	}
	if len(words) == 0 {
		return content, nil
	}
	return string(orig), words
}

func fold(input []rune) folded {
	f := folded{runes: make([]rune, 0, len(input)), origIdx: make([]int, 0, len(input))}
	for i, r := range input {
		clean := unleet(r)
		if isNoise(clean) {
			continue
		}
		f.runes = append(f.runes, unicode.ToLower(clean))
		f.origIdx = append(f.origIdx, i)
	}
	return f
}

// wholeWord reports whether orig[from:to] is not glued to a letter or a digit.
func wholeWord(orig []rune, from, to int) bool {
	if from > 0 && isWordRune(orig[from-1]) {
		return false
	}
	if to < len(orig) && isWordRune(orig[to]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// unleet maps the usual leet speak substitutions back to letters.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
