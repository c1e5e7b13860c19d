// Package language moves query text into the working language and answer
// sections back into the language the user asked for.
package language

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dr-haathi/healthbot/internal/logger"
	"github.com/dr-haathi/healthbot/internal/models"
)

// Translator converts text between two languages.
type Translator interface {
	Translate(ctx context.Context, text string, source, target models.Language) (string, error)
}

// Translation is the outcome of a best-effort translation. Passthrough is set
// when the provider failed and Text is the untranslated input.
type Translation struct {
	Text        string
	Passthrough bool
}

// Normalizer wraps a Translator with passthrough-on-failure semantics.
type Normalizer struct {
	translator Translator
	working    models.Language
	supported  []models.Language
	log        *slog.Logger
}

// NewNormalizer builds a Normalizer. A nil translator makes every
// cross-language call degrade to passthrough.
func NewNormalizer(translator Translator, working models.Language, supported []models.Language, log *slog.Logger) *Normalizer {
	return &Normalizer{
		translator: translator,
		working:    working,
		supported:  slices.Clone(supported),
		log:        logger.OrDiscard(log),
	}
}

// Working returns the internal working language.
func (n *Normalizer) Working() models.Language {
	return n.working
}

// Supported lists the accepted language codes.
func (n *Normalizer) Supported() []models.Language {
	return slices.Clone(n.supported)
}

// Check fails with models.ErrUnsupportedLanguage for codes outside the set.
func (n *Normalizer) Check(lang models.Language) error {
	if !slices.Contains(n.supported, lang) {
		return fmt.Errorf("%w: %q", models.ErrUnsupportedLanguage, lang)
	}
	return nil
}

// ToWorking translates text from source into the working language.
func (n *Normalizer) ToWorking(ctx context.Context, text string, source models.Language) (Translation, error) {
	if err := n.Check(source); err != nil {
		return Translation{}, err
	}
	if source == n.working {
		return Translation{Text: text}, nil
	}

	translated, err := n.translate(ctx, text, source, n.working)
	if err != nil {
		n.log.Warn("query translation failed, using original text",
			slog.String("source", string(source)),
			slog.Any("err", err),
		)
		return Translation{Text: text, Passthrough: true}, nil
	}
	return Translation{Text: translated}, nil
}

// FromWorking translates section bodies from the working language into target.
// On any provider failure the original sections are returned with
// passthrough set, so the answer never mixes languages.
func (n *Normalizer) FromWorking(ctx context.Context, sections []models.Section, target models.Language) ([]models.Section, bool, error) {
	if err := n.Check(target); err != nil {
		return nil, false, err
	}
	if target == n.working || len(sections) == 0 {
		return sections, false, nil
	}

	out := make([]models.Section, 0, len(sections))
	for _, section := range sections {
		translated, err := n.translate(ctx, strings.Join(section.Sentences, "\n"), n.working, target)
		if err != nil {
			n.log.Warn("answer translation failed, returning working language",
				slog.String("target", string(target)),
				slog.String("category", string(section.Category)),
				slog.Any("err", err),
			)
			return sections, true, nil
		}
		out = append(out, models.Section{
			Category:    section.Category,
			Sentences:   splitTranslated(translated, len(section.Sentences)),
			CitationIDs: slices.Clone(section.CitationIDs),
		})
	}
	return out, false, nil
}

func (n *Normalizer) translate(ctx context.Context, text string, source, target models.Language) (string, error) {
	if n.translator == nil {
		return "", fmt.Errorf("%w: no provider configured", models.ErrTranslationUnavailable)
	}
	return n.translator.Translate(ctx, text, source, target)
}

// splitTranslated maps a newline-joined translation back onto sentences. When
// the provider merged or split lines the whole body becomes one sentence.
func splitTranslated(translated string, want int) []string {
	lines := strings.Split(translated, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if len(out) == want {
		return out
	}
	return []string{strings.Join(strings.Fields(translated), " ")}
}
