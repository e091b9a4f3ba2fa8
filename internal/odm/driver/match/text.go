package match

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/conduit-lang/docmodel/internal/odm/driver"
)

// Search is a parsed $search string
type Search struct {
	Terms          []string
	Phrases        []string
	NegatedTerms   []string
	NegatedPhrases []string
}

// IsEmpty reports whether the search has no positive terms or phrases. Such a
// search matches nothing.
func (s Search) IsEmpty() bool {
	return len(s.Terms) == 0 && len(s.Phrases) == 0
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {},
	"by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "no": {},
	"not": {}, "of": {}, "on": {}, "or": {}, "such": {}, "that": {}, "the": {},
	"their": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "to": {},
	"was": {}, "will": {}, "with": {}, "more": {},
}

// words lowercases text and splits it on anything that is not a letter or
// digit. Stop words are kept.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalizePhrase joins the words of text with single spaces so phrases
// compare on the same token stream as terms
func normalizePhrase(text string) string {
	return strings.Join(words(text), " ")
}

// containsPhrase reports whether the normalized phrase occurs in joined on
// word boundaries
func containsPhrase(joined, phrase string) bool {
	return strings.Contains(" "+joined+" ", " "+phrase+" ")
}

// Tokenize lowercases text, splits it on anything that is not a letter or
// digit, and drops stop words
func Tokenize(text string) []string {
	all := words(text)
	out := all[:0]
	for _, w := range all {
		if _, stop := stopWords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

// ParseSearch parses a $search string. Words prefixed with '-' are negated,
// double-quoted runs are phrases, and a '-' directly before a quote negates the
// phrase.
func ParseSearch(search string) Search {
	var s Search
	seen := make(map[string]bool)
	addTerms := func(raw string, negated bool) {
		for _, term := range Tokenize(raw) {
			key := fmt.Sprintf("%t:%s", negated, term)
			if seen[key] {
				continue
			}
			seen[key] = true
			if negated {
				s.NegatedTerms = append(s.NegatedTerms, term)
			} else {
				s.Terms = append(s.Terms, term)
			}
		}
	}

	rest := search
	for {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if rest == "" {
			break
		}
		negated := false
		if rest[0] == '-' {
			negated = true
			rest = rest[1:]
		}
		if strings.HasPrefix(rest, `"`) {
			end := strings.IndexByte(rest[1:], '"')
			var phrase string
			if end < 0 {
				phrase, rest = rest[1:], ""
			} else {
				phrase, rest = rest[1:end+1], rest[end+2:]
			}
			phrase = normalizePhrase(phrase)
			if phrase == "" {
				continue
			}
			if negated {
				s.NegatedPhrases = append(s.NegatedPhrases, phrase)
			} else {
				s.Phrases = append(s.Phrases, phrase)
				// Phrase words are also scored as terms
				addTerms(phrase, false)
			}
			continue
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		var word string
		if end < 0 {
			word, rest = rest, ""
		} else {
			word, rest = rest[:end], rest[end:]
		}
		addTerms(word, negated)
	}
	return s
}

// TextSearch extracts the $search string of a $text clause
func TextSearch(clause interface{}) (string, error) {
	m, ok := asMap(clause)
	if !ok {
		return "", fmt.Errorf("%w: $text requires a document", driver.ErrBadFilter)
	}
	search, ok := m["$search"].(string)
	if !ok {
		return "", fmt.Errorf("%w: $text requires a $search string", driver.ErrBadFilter)
	}
	return search, nil
}

// SplitText separates a top-level $text clause from the rest of a filter
func SplitText(filter map[string]interface{}) (rest map[string]interface{}, search string, hasText bool, err error) {
	clause, ok := filter["$text"]
	if !ok {
		return filter, "", false, nil
	}
	search, err = TextSearch(clause)
	if err != nil {
		return nil, "", false, err
	}
	rest = make(map[string]interface{}, len(filter)-1)
	for k, v := range filter {
		if k != "$text" {
			rest[k] = v
		}
	}
	return rest, search, true, nil
}

// fieldText flattens a field value into searchable text
func fieldText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	}
	if items, ok := asSlice(v); ok {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// Score computes the relevance of a record for a search over weighted fields.
// Each distinct positive term adds the weight of every field it occurs in;
// each phrase adds the weight of every field containing it. ok is false when
// the record does not match: it contains a negated term or phrase, lacks a
// required phrase, or contains no positive term at all.
func Score(record map[string]interface{}, search Search, weights map[string]int) (float64, bool) {
	if search.IsEmpty() {
		return 0, false
	}

	type indexed struct {
		weight int
		tokens map[string]struct{}
		joined string
	}
	fields := make([]indexed, 0, len(weights))
	for field, weight := range weights {
		v, found := Lookup(record, field)
		if !found {
			continue
		}
		text := fieldText(v)
		if text == "" {
			continue
		}
		tokens := make(map[string]struct{})
		for _, t := range Tokenize(text) {
			tokens[t] = struct{}{}
		}
		fields = append(fields, indexed{
			weight: weight,
			tokens: tokens,
			joined: normalizePhrase(text),
		})
	}

	for _, f := range fields {
		for _, t := range search.NegatedTerms {
			if _, hit := f.tokens[t]; hit {
				return 0, false
			}
		}
		for _, p := range search.NegatedPhrases {
			if containsPhrase(f.joined, p) {
				return 0, false
			}
		}
	}

	for _, p := range search.Phrases {
		present := false
		for _, f := range fields {
			if containsPhrase(f.joined, p) {
				present = true
				break
			}
		}
		if !present {
			return 0, false
		}
	}

	var score float64
	for _, t := range search.Terms {
		for _, f := range fields {
			if _, hit := f.tokens[t]; hit {
				score += float64(f.weight)
			}
		}
	}
	for _, p := range search.Phrases {
		for _, f := range fields {
			if containsPhrase(f.joined, p) {
				score += float64(f.weight)
			}
		}
	}
	return score, score > 0
}
