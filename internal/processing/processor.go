package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\s]+`)
	// keeps hyphens and apostrophes that sit between two word characters
	looseHyphen = regexp.MustCompile(`(^|[^\p{L}\p{N}])[-']+|[-']+([^\p{L}\p{N}]|$)`)
	wordPunct   = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\s'-]+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {}, "of": {}, "and": {},
	"or": {}, "is": {}, "are": {}, "was": {}, "be": {}, "by": {}, "with": {}, "on": {},
	"as": {}, "at": {}, "it": {}, "its": {}, "this": {}, "that": {}, "from": {},
	"el": {}, "la": {}, "los": {}, "las": {}, "de": {}, "del": {}, "y": {}, "en": {},
	"le": {}, "les": {}, "des": {}, "du": {}, "et": {}, "un": {}, "une": {},
	"है": {}, "के": {}, "की": {}, "का": {}, "में": {}, "और": {},
}

// abbreviations never end a sentence even when followed by a capital letter.
var abbreviations = map[string]struct{}{
	"e.g.": {}, "i.e.": {}, "dr.": {}, "mr.": {}, "mrs.": {}, "ms.": {}, "vs.": {},
	"approx.": {}, "st.": {}, "no.": {}, "fig.": {}, "al.": {}, "ca.": {}, "cf.": {},
}

// IsStopword reports whether the lower-cased token carries no topical meaning.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// ExtractURLs extracts all HTTP(S) URLs from the input text.
func ExtractURLs(input string) []string {
	if input == "" {
		return nil
	}
	matches := urlRegex.FindAllString(input, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var urls []string
	for _, url := range matches {
		if _, ok := seen[url]; !ok {
			seen[url] = struct{}{}
			urls = append(urls, url)
		}
	}
	return urls
}

// RemoveURLs removes all URLs from the input text.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// CleanText strips HTML entities, punctuation, squeezes whitespace, and removes URLs.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = RemoveURLs(decoded)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// NormalizeQuery lower-cases the input, drops punctuation except hyphens and
// apostrophes inside words, and collapses whitespace.
func NormalizeQuery(input string) string {
	if input == "" {
		return ""
	}
	out := strings.ToLower(html.UnescapeString(input))
	out = strings.ReplaceAll(out, "’", "'")
	out = wordPunct.ReplaceAllString(out, " ")
	out = looseHyphen.ReplaceAllString(out, "$1 $2")
	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// CollapseWhitespace squeezes every whitespace run into one space.
func CollapseWhitespace(input string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(input, " "))
}

// SplitSentences breaks text on ., ! and ? (and the Devanagari danda) when the
// terminator is followed by a space and a word that does not start lower-case.
func SplitSentences(text string) []string {
	runes := []rune(CollapseWhitespace(text))
	if len(runes) == 0 {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && (isTerminator(runes[end]) || isCloser(runes[end])) {
			end++
		}
		if end < len(runes) {
			if runes[end] != ' ' || (end+1 < len(runes) && unicode.IsLower(runes[end+1])) {
				i = end - 1
				continue
			}
			if runes[i] == '.' && endsWithAbbreviation(runes[start:i+1]) {
				i = end - 1
				continue
			}
		}
		if sentence := strings.TrimSpace(string(runes[start:end])); sentence != "" {
			out = append(out, sentence)
		}
		start = end
		i = end - 1
	}
	if start < len(runes) {
		if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
			out = append(out, tail)
		}
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '।'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’'
}

func endsWithAbbreviation(sentence []rune) bool {
	s := string(sentence)
	if idx := strings.LastIndexByte(s, ' '); idx >= 0 {
		s = s[idx+1:]
	}
	_, ok := abbreviations[strings.ToLower(strings.TrimLeft(s, "(\"'"))]
	return ok
}

// ExtractKeywords returns the most frequent words that are not stop-words.
func ExtractKeywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if IsStopword(token) {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	max := limit
	if max <= 0 || max > len(pairs) {
		max = len(pairs)
	}

	keywords := make([]string, 0, max)
	for i := 0; i < max; i++ {
		keywords = append(keywords, pairs[i].word)
	}

	return keywords
}

// BuildDocumentID hashes the most stable fields to form deterministic IDs.
func BuildDocumentID(title, text string, ts time.Time) string {
	s := sha1.Sum([]byte(title + "|" + text + "|" + ts.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(s[:])
}

// GenerateTitleFromText creates a title from the first sentence, cut to maxWords.
func GenerateTitleFromText(text string, maxWords int) string {
	if text == "" {
		return ""
	}

	sentences := SplitSentences(RemoveURLs(text))
	if len(sentences) == 0 {
		return ""
	}
	first := strings.TrimRight(sentences[0], ".!?। ")

	words := strings.Fields(first)
	if len(words) == 0 {
		return ""
	}

	if maxWords > 0 && len(words) > maxWords {
		return strings.Join(words[:maxWords], " ") + "..."
	}

	return strings.Join(words, " ")
}
