package models

import "time"

// KnowledgeDocument represents a reference document stored in the knowledge index.
type KnowledgeDocument struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	Source    string    `json:"source"`
	Language  Language  `json:"language"`
	Keywords  []string  `json:"keywords"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary converts the document into a RawSummary for the formatter.
func (d KnowledgeDocument) Summary(retrievedAt time.Time) RawSummary {
	return RawSummary{
		Title:       d.Title,
		URL:         d.URL,
		Extract:     d.Text,
		Source:      d.Source,
		RetrievedAt: retrievedAt,
	}
}
