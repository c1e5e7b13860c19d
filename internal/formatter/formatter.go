// Package formatter reshapes unstructured topic summaries into the canonical
// medical answer sections and numbers their citations.
package formatter

import (
	"github.com/dr-haathi/healthbot/internal/models"
	"github.com/dr-haathi/healthbot/internal/processing"
)

// Result is the formatted body of an answer.
type Result struct {
	Sections  []models.Section
	Citations []models.Citation
}

// Formatter classifies summary sentences with a Lexicon. It holds no mutable
// state and is safe for concurrent use.
type Formatter struct {
	lexicon *Lexicon
}

// New returns a Formatter using lx.
func New(lx *Lexicon) *Formatter {
	return &Formatter{lexicon: lx}
}

// NewDefault returns a Formatter using the embedded lexicon.
func NewDefault() (*Formatter, error) {
	lx, err := LoadLexicon("")
	if err != nil {
		return nil, err
	}
	return New(lx), nil
}

// LexiconVersion reports the lexicon version in use.
func (f *Formatter) LexiconVersion() int {
	return f.lexicon.Version
}

type classified struct {
	summary models.RawSummary
	buckets map[models.Category][]string
}

// Format segments the summaries into sections. Formatting never fails: a
// summary whose later sentences match no category collapses into a single
// definition holding its full extract. Summaries with the same URL (or title
// when no URL is set) are consulted once.
func (f *Formatter) Format(summaries ...models.RawSummary) Result {
	var parts []classified
	seen := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		key := citationKey(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		if buckets := f.classify(s); len(buckets) > 0 {
			parts = append(parts, classified{summary: s, buckets: buckets})
		}
	}

	var res Result
	ids := make(map[string]int, len(parts))
	for _, category := range models.Categories {
		var section models.Section
		for _, part := range parts {
			sentences := part.buckets[category]
			if len(sentences) == 0 {
				continue
			}
			key := citationKey(part.summary)
			id, ok := ids[key]
			if !ok {
				id = len(res.Citations) + 1
				ids[key] = id
				res.Citations = append(res.Citations, models.Citation{
					ID:     id,
					Source: part.summary.CitationLabel(),
					URL:    part.summary.URL,
				})
			}
			section.Category = category
			section.Sentences = append(section.Sentences, sentences...)
			section.CitationIDs = append(section.CitationIDs, id)
		}
		if len(section.Sentences) > 0 {
			res.Sections = append(res.Sections, section)
		}
	}
	return res
}

// classify buckets the sentences of one summary. The first sentence and any
// unclassified sentences directly after it form the definition; later
// sentences go to the category they match or are dropped.
func (f *Formatter) classify(s models.RawSummary) map[models.Category][]string {
	sentences := processing.SplitSentences(s.Extract)
	if len(sentences) == 0 {
		return nil
	}

	buckets := map[models.Category][]string{
		models.CategoryDefinition: {sentences[0]},
	}
	i := 1
	for ; i < len(sentences) && f.lexicon.classify(sentences[i]) == ""; i++ {
		buckets[models.CategoryDefinition] = append(buckets[models.CategoryDefinition], sentences[i])
	}

	matched := 0
	for ; i < len(sentences); i++ {
		if c := f.lexicon.classify(sentences[i]); c != "" {
			buckets[c] = append(buckets[c], sentences[i])
			matched++
		}
	}

	if matched == 0 {
		return map[models.Category][]string{
			models.CategoryDefinition: {s.Extract},
		}
	}
	return buckets
}

func citationKey(s models.RawSummary) string {
	if s.URL != "" {
		return "url:" + s.URL
	}
	return "title:" + s.Title
}
