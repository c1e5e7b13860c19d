// Package topic derives a short lookup subject from a free-text health question.
//
// The extractor is a deliberately simple heuristic, not a language model:
// question scaffolding and stop words are removed using a pattern table, the
// remaining words form candidate phrases, and the longest candidate wins.
package topic

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/dr-haathi/healthbot/internal/models"
	"github.com/dr-haathi/healthbot/internal/processing"
)

//go:embed patterns.yaml
var defaultPatterns []byte

// Patterns is the versioned table driving extraction.
type Patterns struct {
	Version     int               `yaml:"version"`
	Scaffolding []string          `yaml:"scaffolding"`
	Stopwords   []string          `yaml:"stopwords"`
	Invariant   []string          `yaml:"invariant"`
	Irregular   map[string]string `yaml:"irregular"`
}

// ParsePatterns decodes a YAML pattern table.
func ParsePatterns(data []byte) (*Patterns, error) {
	var p Patterns
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse topic patterns: %w", err)
	}
	if p.Version <= 0 {
		return nil, fmt.Errorf("topic patterns: version must be positive")
	}
	if len(p.Scaffolding) == 0 {
		return nil, fmt.Errorf("topic patterns: scaffolding table is empty")
	}
	return &p, nil
}

// LoadPatterns reads a pattern table from path, or the embedded default when
// path is empty.
func LoadPatterns(path string) (*Patterns, error) {
	if path == "" {
		return ParsePatterns(defaultPatterns)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topic patterns: %w", err)
	}
	return ParsePatterns(data)
}

// Extractor turns normalized question text into a Topic. It is read-only
// after construction and safe for concurrent use.
type Extractor struct {
	version     int
	scaffolding [][]string // longest first
	stopwords   map[string]struct{}
	invariant   map[string]struct{}
	irregular   map[string]string
}

// New compiles a pattern table into an Extractor.
func New(p *Patterns) *Extractor {
	e := &Extractor{
		version:   p.Version,
		stopwords: toSet(p.Stopwords),
		invariant: toSet(p.Invariant),
		irregular: make(map[string]string, len(p.Irregular)),
	}
	for plural, singular := range p.Irregular {
		e.irregular[strings.ToLower(plural)] = strings.ToLower(singular)
	}
	for _, phrase := range p.Scaffolding {
		if words := strings.Fields(processing.NormalizeQuery(phrase)); len(words) > 0 {
			e.scaffolding = append(e.scaffolding, words)
		}
	}
	sort.SliceStable(e.scaffolding, func(i, j int) bool {
		return len(e.scaffolding[i]) > len(e.scaffolding[j])
	})
	return e
}

// NewDefault builds an Extractor from the embedded pattern table.
func NewDefault() (*Extractor, error) {
	p, err := LoadPatterns("")
	if err != nil {
		return nil, err
	}
	return New(p), nil
}

// Version reports the pattern table version in use.
func (e *Extractor) Version() int {
	return e.version
}

// Extract returns the topic of text or models.ErrEmptyTopic when nothing
// topical remains after stripping.
func (e *Extractor) Extract(text string) (models.Topic, error) {
	tokens := strings.Fields(processing.NormalizeQuery(text))

	keep := make([]bool, len(tokens))
	for i := 0; i < len(tokens); {
		if n := e.matchScaffolding(tokens[i:]); n > 0 {
			i += n
			continue
		}
		keep[i] = !e.isStopword(tokens[i])
		i++
	}

	var candidates [][]string
	var current []string
	for i, tok := range tokens {
		if keep[i] {
			current = append(current, tok)
			continue
		}
		if len(current) > 0 {
			candidates = append(candidates, current)
			current = nil
		}
	}
	if len(current) > 0 {
		candidates = append(candidates, current)
	}
	if len(candidates) == 0 {
		return models.Topic{}, fmt.Errorf("%w: %q", models.ErrEmptyTopic, text)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if longer(c, best) {
			best = c
		}
	}

	words := append([]string(nil), best...)
	words[len(words)-1] = e.singularize(words[len(words)-1])

	return models.Topic{
		Subject:   strings.Join(words, " "),
		Ambiguous: len(candidates) > 1,
	}, nil
}

func (e *Extractor) matchScaffolding(tokens []string) int {
	for _, phrase := range e.scaffolding {
		if len(phrase) > len(tokens) {
			continue
		}
		matched := true
		for i, w := range phrase {
			if tokens[i] != w {
				matched = false
				break
			}
		}
		if matched {
			return len(phrase)
		}
	}
	return 0
}

func (e *Extractor) isStopword(token string) bool {
	if _, ok := e.stopwords[token]; ok {
		return true
	}
	return processing.IsStopword(token)
}

func (e *Extractor) singularize(word string) string {
	if s, ok := e.irregular[word]; ok {
		return s
	}
	if _, ok := e.invariant[word]; ok {
		return word
	}
	if utf8.RuneCountInString(word) <= 3 {
		return word
	}
	switch {
	case strings.HasSuffix(word, "'s"):
		// possessive, as in alzheimer's
		return word
	case strings.HasSuffix(word, "ss"), strings.HasSuffix(word, "us"),
		strings.HasSuffix(word, "is"), strings.HasSuffix(word, "os"):
		return word
	case strings.HasSuffix(word, "ies"):
		return strings.TrimSuffix(word, "ies") + "y"
	case strings.HasSuffix(word, "aches"):
		return strings.TrimSuffix(word, "s")
	case strings.HasSuffix(word, "sses"), strings.HasSuffix(word, "shes"),
		strings.HasSuffix(word, "ches"), strings.HasSuffix(word, "xes"),
		strings.HasSuffix(word, "zzes"):
		return strings.TrimSuffix(word, "es")
	case strings.HasSuffix(word, "s"):
		return strings.TrimSuffix(word, "s")
	}
	return word
}

// longer reports whether a beats b: more words first, then more characters.
func longer(a, b []string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return utf8.RuneCountInString(strings.Join(a, " ")) > utf8.RuneCountInString(strings.Join(b, " "))
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return set
}
