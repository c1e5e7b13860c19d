package formatter

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/dr-haathi/healthbot/internal/models"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// Lexicon maps section categories to the phrases that signal them.
type Lexicon struct {
	Version    int           `yaml:"version"`
	Categories []CategoryRule `yaml:"categories"`
}

// CategoryRule lists the phrases of one category.
type CategoryRule struct {
	Name    models.Category `yaml:"name"`
	Phrases []string        `yaml:"phrases"`
}

// ParseLexicon decodes and validates a YAML lexicon.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var lx Lexicon
	if err := yaml.Unmarshal(data, &lx); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if lx.Version <= 0 {
		return nil, fmt.Errorf("lexicon: version must be positive")
	}
	if len(lx.Categories) == 0 {
		return nil, fmt.Errorf("lexicon: no categories")
	}
	seen := make(map[models.Category]bool, len(lx.Categories))
	for i, rule := range lx.Categories {
		if rule.Name == models.CategoryDefinition || !slices.Contains(models.Categories, rule.Name) {
			return nil, fmt.Errorf("lexicon: category %q cannot be classified", rule.Name)
		}
		if seen[rule.Name] {
			return nil, fmt.Errorf("lexicon: duplicate category %q", rule.Name)
		}
		seen[rule.Name] = true
		for j, p := range rule.Phrases {
			lx.Categories[i].Phrases[j] = strings.ToLower(strings.TrimSpace(p))
		}
	}
	return &lx, nil
}

// LoadLexicon reads a lexicon from path, or the embedded default when path is empty.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		return ParseLexicon(defaultLexicon)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	return ParseLexicon(data)
}

// classify returns the category whose phrase occurs earliest in sentence, or
// "" when none matches. Ties go to the category listed first.
func (lx *Lexicon) classify(sentence string) models.Category {
	lower := strings.ToLower(sentence)
	best := models.Category("")
	bestPos := -1
	for _, rule := range lx.Categories {
		for _, phrase := range rule.Phrases {
			pos := indexWordStart(lower, phrase)
			if pos < 0 {
				continue
			}
			if bestPos < 0 || pos < bestPos {
				best, bestPos = rule.Name, pos
			}
		}
	}
	return best
}

// indexWordStart finds phrase in s where it begins at a word boundary.
func indexWordStart(s, phrase string) int {
	if phrase == "" {
		return -1
	}
	offset := 0
	for {
		idx := strings.Index(s[offset:], phrase)
		if idx < 0 {
			return -1
		}
		pos := offset + idx
		if pos == 0 {
			return pos
		}
		prev, _ := utf8.DecodeLastRuneInString(s[:pos])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return pos
		}
		offset = pos + len(phrase)
	}
}
