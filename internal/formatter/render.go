package formatter

import (
	"fmt"
	"strings"

	"github.com/dr-haathi/healthbot/internal/language"
	"github.com/dr-haathi/healthbot/internal/models"
)

var icons = map[models.Category]string{
	models.CategoryDefinition: "📖",
	models.CategorySymptoms:   "🩺",
	models.CategoryCauses:     "🦠",
	models.CategoryTreatment:  "💊",
	models.CategoryPrevention: "🛡️",
}

// Render turns an answer into the plain text shown by chat surfaces.
func Render(answer models.StructuredAnswer) string {
	labels := language.LabelsFor(answer.Language)

	var b strings.Builder
	for _, notice := range answer.Notices {
		fmt.Fprintf(&b, "ℹ️ %s\n\n", notice)
	}

	for _, section := range answer.Sections {
		if answer.Fallback {
			b.WriteString(section.Text())
			b.WriteString("\n\n")
			continue
		}
		fmt.Fprintf(&b, "%s **%s**\n", icons[section.Category], labels.Heading(section.Category))
		b.WriteString(section.Text())
		for _, id := range section.CitationIDs {
			fmt.Fprintf(&b, " [%d]", id)
		}
		b.WriteString("\n\n")
	}

	if len(answer.Citations) > 0 {
		fmt.Fprintf(&b, "%s:\n", labels.Sources)
		for _, c := range answer.Citations {
			if c.URL != "" {
				fmt.Fprintf(&b, "[%d] %s - %s\n", c.ID, c.Source, c.URL)
			} else {
				fmt.Fprintf(&b, "[%d] %s\n", c.ID, c.Source)
			}
		}
		b.WriteString("\n")
	}

	if answer.Disclaimer != "" {
		fmt.Fprintf(&b, "⚠️ *%s*", answer.Disclaimer)
	}
	return strings.TrimSpace(b.String())
}
