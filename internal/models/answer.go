package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// Language is a two-letter language code such as "en".
type Language string

// Query is one inbound question. It is immutable once built by NewQuery.
type Query struct {
	Message  string
	Language Language
}

// NewQuery validates the raw message and requested language.
func NewQuery(message string, lang Language, supported []Language, maxLen int) (Query, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Query{}, fmt.Errorf("%w: message is required", ErrInvalidQuery)
	}
	if maxLen > 0 && utf8.RuneCountInString(message) > maxLen {
		return Query{}, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidQuery, maxLen)
	}
	lang = Language(strings.ToLower(strings.TrimSpace(string(lang))))
	if !slices.Contains(supported, lang) {
		return Query{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return Query{Message: message, Language: lang}, nil
}

// Topic is the normalized lookup subject derived from a query.
type Topic struct {
	Subject   string
	Ambiguous bool
}

// RawSummary is an unstructured topic summary fetched from a reference source.
// Source is the citation label; the title is cited when it is empty.
type RawSummary struct {
	Title         string    `json:"title"`
	URL           string    `json:"url,omitempty"`
	Extract       string    `json:"extract"`
	Source        string    `json:"source"`
	RetrievedAt   time.Time `json:"retrieved_at"`
	Disambiguated bool      `json:"disambiguated,omitempty"`
}

// CitationLabel returns the label used when citing the summary.
func (s RawSummary) CitationLabel() string {
	if s.Source != "" {
		return s.Source
	}
	return s.Title
}

// Category names one of the canonical answer sections.
type Category string

const (
	CategoryDefinition Category = "definition"
	CategorySymptoms   Category = "symptoms"
	CategoryCauses     Category = "causes"
	CategoryTreatment  Category = "treatment"
	CategoryPrevention Category = "prevention"
)

// Categories lists the section categories in output order.
var Categories = []Category{
	CategoryDefinition,
	CategorySymptoms,
	CategoryCauses,
	CategoryTreatment,
	CategoryPrevention,
}

// Section is a labeled group of sentences taken from one or more summaries.
type Section struct {
	Category    Category `json:"category"`
	Sentences   []string `json:"sentences"`
	CitationIDs []int    `json:"citation_ids,omitempty"`
}

// Text joins the section sentences with single spaces.
func (s Section) Text() string {
	return strings.Join(s.Sentences, " ")
}

// Citation identifies a source consulted for an answer.
type Citation struct {
	ID     int    `json:"id"`
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
}

// StructuredAnswer is the value handed back to the transport layer.
type StructuredAnswer struct {
	Topic       string     `json:"topic,omitempty"`
	Sections    []Section  `json:"sections"`
	Citations   []Citation `json:"citations"`
	Language    Language   `json:"language"`
	Notices     []string   `json:"notices,omitempty"`
	Disclaimer  string     `json:"disclaimer"`
	Fallback    bool       `json:"fallback"`
	GeneratedAt time.Time  `json:"generated_at"`
}
