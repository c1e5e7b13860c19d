// Package knowledge holds the built-in reference library used as the last
// retrieval fallback and as seed data for the knowledge index.
package knowledge

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dr-haathi/healthbot/internal/models"
	"github.com/dr-haathi/healthbot/internal/processing"
)

var published = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

var documents = []models.KnowledgeDocument{
	{
		ID:       "kb-diabetes",
		Title:    "Diabetes",
		Text:     "Diabetes is a chronic condition that affects how your body processes blood sugar (glucose). Type 1 diabetes occurs when your immune system attacks insulin-producing cells. Type 2 diabetes occurs when your body becomes resistant to insulin or doesn't make enough insulin.",
		URL:      "https://www.who.int/news-room/fact-sheets/detail/diabetes",
		Source:   "WHO Diabetes Fact Sheet 2023",
		Keywords: []string{"diabetes", "diabetic", "blood sugar", "glucose", "insulin", "type 1 diabetes", "type 2 diabetes"},
	},
	{
		ID:       "kb-hypertension",
		Title:    "Hypertension",
		Text:     "Hypertension (high blood pressure) is a serious medical condition that significantly increases the risks of heart, brain, kidney and other diseases. Blood pressure is measured in millimeters of mercury (mmHg) and is recorded as two numbers: systolic pressure (when the heart beats) over diastolic pressure (when the heart rests between beats).",
		URL:      "https://www.heart.org/en/health-topics/high-blood-pressure",
		Source:   "American Heart Association Guidelines 2023",
		Keywords: []string{"hypertension", "blood pressure", "high blood pressure", "systolic", "diastolic"},
	},
	{
		ID:       "kb-exercise",
		Title:    "Physical activity",
		Text:     "Regular physical activity is one of the most important things you can do for your health. It can help control your weight, reduce your risk of heart disease, strengthen your bones and muscles, and improve your mental health and mood. Adults should aim for at least 150 minutes of moderate-intensity aerobic activity per week.",
		URL:      "https://www.cdc.gov/physicalactivity/basics/adults/index.htm",
		Source:   "CDC Physical Activity Guidelines 2023",
		Keywords: []string{"exercise", "physical activity", "workout", "fitness", "aerobic"},
	},
	{
		ID:       "kb-nutrition",
		Title:    "Healthy diet",
		Text:     "A balanced diet includes a variety of foods from all food groups: fruits, vegetables, whole grains, lean proteins, and healthy fats. Limiting processed foods, added sugars, and excessive sodium can help prevent chronic diseases and maintain optimal health.",
		URL:      "https://www.hsph.harvard.edu/nutritionsource/healthy-eating-plate/",
		Source:   "Harvard School of Public Health 2023",
		Keywords: []string{"diet", "nutrition", "healthy eating", "healthy food", "food groups", "balanced diet"},
	},
	{
		ID:       "kb-mental-health",
		Title:    "Mental health",
		Text:     "Mental health includes our emotional, psychological, and social well-being. It affects how we think, feel, and act. Good mental health is essential at every stage of life. Common mental health conditions include depression, anxiety disorders, and stress-related disorders.",
		URL:      "https://www.nimh.nih.gov/health/topics/mental-health-information",
		Source:   "National Institute of Mental Health 2023",
		Keywords: []string{"mental health", "depression", "anxiety", "chronic stress", "stress management", "well-being"},
	},
}

// Documents returns copies of the built-in documents in the given language
// tag. The library is written in English.
func Documents(lang models.Language) []models.KnowledgeDocument {
	out := make([]models.KnowledgeDocument, len(documents))
	for i, doc := range documents {
		doc.Keywords = slices.Clone(doc.Keywords)
		doc.Language = lang
		doc.Timestamp = published
		out[i] = doc
	}
	return out
}

// Library answers topic lookups from the built-in documents.
type Library struct {
	lang models.Language
	docs []models.KnowledgeDocument
	now  func() time.Time
}

// NewLibrary returns a Library serving lookups in lang, normally the working
// language.
func NewLibrary(lang models.Language) *Library {
	return &Library{lang: lang, docs: Documents(lang), now: time.Now}
}

// Name identifies the source in logs.
func (l *Library) Name() string {
	return "library"
}

// FetchSummary returns the best keyword match for topic. Lookups in any
// language other than the library's fail with models.ErrNotFound.
func (l *Library) FetchSummary(ctx context.Context, topic string, lang models.Language) (models.RawSummary, error) {
	if err := ctx.Err(); err != nil {
		return models.RawSummary{}, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	if lang != l.lang {
		return models.RawSummary{}, fmt.Errorf("%w: library has no %q documents", models.ErrNotFound, lang)
	}

	doc, ok := l.match(topic)
	if !ok {
		return models.RawSummary{}, fmt.Errorf("%w: %q", models.ErrNotFound, topic)
	}
	return doc.Summary(l.now().UTC()), nil
}

// match scores each document by the keywords that appear as whole words in
// the topic, preferring longer keywords. A document only matches when its
// keywords and title cover every word of the topic. Ties keep library order.
func (l *Library) match(topic string) (models.KnowledgeDocument, bool) {
	words := strings.Fields(processing.NormalizeQuery(topic))
	if len(words) == 0 {
		return models.KnowledgeDocument{}, false
	}

	best, bestScore := -1, 0
	for i, doc := range l.docs {
		covered := make([]bool, len(words))
		score := 0
		for _, kw := range doc.Keywords {
			score += cover(words, strings.Fields(kw), covered)
		}
		if cover(words, strings.Fields(strings.ToLower(doc.Title)), covered) > 0 {
			score++
		}
		if slices.Contains(covered, false) {
			continue
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return models.KnowledgeDocument{}, false
	}
	return l.docs[best], true
}

// cover marks every occurrence of phrase in words and returns the phrase
// length when it occurs at least once.
func cover(words, phrase []string, covered []bool) int {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return 0
	}
	found := false
	for i := 0; i+len(phrase) <= len(words); i++ {
		if slices.Equal(words[i:i+len(phrase)], phrase) {
			for j := range phrase {
				covered[i+j] = true
			}
			found = true
		}
	}
	if !found {
		return 0
	}
	return len(phrase)
}
