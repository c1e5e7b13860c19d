package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/dr-haathi/healthbot/internal/models"
)

func TestPrintAnswer(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printAnswer(&buf, models.StructuredAnswer{
		Sections: []models.Section{
			{Category: models.CategoryDefinition, Sentences: []string{"El dengue es una enfermedad."}, CitationIDs: []int{1}},
			{Category: models.CategorySymptoms, Sentences: []string{"Fiebre alta."}, CitationIDs: []int{1}},
		},
		Citations:  []models.Citation{{ID: 1, Source: "Dengue fever", URL: "https://en.wikipedia.org/wiki/Dengue_fever"}},
		Language:   "es",
		Notices:    []string{"aviso"},
		Disclaimer: "Consulte a un médico.",
	})

	want := "aviso\n\n" +
		"Definición\nEl dengue es una enfermedad. [1]\n\n" +
		"Síntomas\nFiebre alta. [1]\n\n" +
		"Fuentes\n[1] Dengue fever https://en.wikipedia.org/wiki/Dengue_fever\n\n" +
		"Consulte a un médico.\n"
	require.Equal(t, want, buf.String())
}

func TestPrintFallbackAnswer(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printAnswer(&buf, models.StructuredAnswer{
		Sections: []models.Section{{Category: models.CategoryDefinition, Sentences: []string{"Nothing found."}}},
		Language: "en",
		Fallback: true,
	})
	require.Equal(t, "Nothing found.\n\n", buf.String())
}
