// Package tags normalizes the casing of item tags.
package tags

import (
	"strings"
	"unicode"
)

// WordSet is a set of lowercased words.
type WordSet map[string]struct{}

// NewWordSet builds a WordSet, lowercasing every word.
func NewWordSet(words ...string) WordSet {
	s := make(WordSet, len(words))
	for _, w := range words {
		s[strings.ToLower(w)] = struct{}{}
	}
	return s
}

// Has reports whether word (already lowercased) is in the set.
func (s WordSet) Has(word string) bool {
	_, ok := s[word]
	return ok
}

// Normalize recases a tag word by word: periods are removed, words found in
// upper are uppercased, words found in lower are lowercased and everything
// else is title cased. Articles are lowercased even at the start of a tag.
//
//	Normalize("u.s. bureau Of Geoinformation", {"us"}, {"of"}) == "US Bureau of Geoinformation"
func Normalize(tag string, upper, lower WordSet) string {
	fields := strings.Fields(tag)
	words := make([]string, 0, len(fields))
	for _, word := range fields {
		cleaned := strings.ReplaceAll(word, ".", "")
		key := strings.ToLower(cleaned)
		switch {
		case upper.Has(key):
			words = append(words, strings.ToUpper(cleaned))
		case lower.Has(key):
			words = append(words, key)
		default:
			words = append(words, Title(cleaned))
		}
	}
	return strings.Join(words, " ")
}

// Title uppercases the first letter of every letter run and lowercases the
// rest, so "water-related" becomes "Water-Related" and "3d" becomes "3D".
func Title(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
