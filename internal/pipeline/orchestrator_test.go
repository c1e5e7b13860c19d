package pipeline_test

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dr-haathi/healthbot/internal/formatter"
	"github.com/dr-haathi/healthbot/internal/language"
	"github.com/dr-haathi/healthbot/internal/models"
	"github.com/dr-haathi/healthbot/internal/pipeline"
	"github.com/dr-haathi/healthbot/internal/retrieval"
	"github.com/dr-haathi/healthbot/internal/topic"
)

var supported = []models.Language{"en", "hi", "es", "fr"}

var dengueSummary = models.RawSummary{
	Title: "Dengue fever",
	URL:   "https://en.wikipedia.org/wiki/Dengue_fever",
	Extract: "Dengue fever is a mosquito-borne tropical disease caused by the dengue virus. " +
		"Symptoms typically begin three to fourteen days after infection.",
}

type stubSource struct {
	calls atomic.Int32
	fn    func(ctx context.Context, topic string) (models.RawSummary, error)
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchSummary(ctx context.Context, topic string, _ models.Language) (models.RawSummary, error) {
	s.calls.Add(1)
	return s.fn(ctx, topic)
}

// stubTranslator translates queries into fixed English text and prefixes
// every line translated out of English with the target code.
type stubTranslator struct {
	queries map[string]string
	fail    bool
}

func (s *stubTranslator) Translate(_ context.Context, text string, source, target models.Language) (string, error) {
	if s.fail {
		return "", fmt.Errorf("%w: connection refused", models.ErrTranslationUnavailable)
	}
	if target == "en" {
		if out, ok := s.queries[text]; ok {
			return out, nil
		}
		return "", fmt.Errorf("%w: no stub for %q", models.ErrTranslationUnavailable, text)
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = "[" + string(target) + "] " + line
	}
	return strings.Join(lines, "\n"), nil
}

func newOrchestrator(t *testing.T, translator language.Translator, src retrieval.Source, opts pipeline.Options) *pipeline.Orchestrator {
	t.Helper()
	extractor, err := topic.NewDefault()
	require.NoError(t, err)
	f, err := formatter.NewDefault()
	require.NoError(t, err)
	retriever, err := retrieval.New(src, retrieval.Options{MaxAttempts: 1, FetchTimeout: time.Second}, nil)
	require.NoError(t, err)

	normalizer := language.NewNormalizer(translator, "en", supported, nil)
	return pipeline.New(normalizer, extractor, retriever, f, opts, nil)
}

func dengueSource() *stubSource {
	return &stubSource{fn: func(_ context.Context, topic string) (models.RawSummary, error) {
		if topic != "dengue" {
			return models.RawSummary{}, models.ErrNotFound
		}
		return dengueSummary, nil
	}}
}

func TestAnswerEnglishDengue(t *testing.T) {
	o := newOrchestrator(t, nil, dengueSource(), pipeline.Options{})

	answer, err := o.Ask(context.Background(), "What are the symptoms of dengue?", "en")
	require.NoError(t, err)

	require.False(t, answer.Fallback)
	require.Equal(t, "dengue", answer.Topic)
	require.Equal(t, models.Language("en"), answer.Language)
	require.Len(t, answer.Sections, 2)
	require.Equal(t, models.CategoryDefinition, answer.Sections[0].Category)
	require.Equal(t, models.CategorySymptoms, answer.Sections[1].Category)
	require.Equal(t, []models.Citation{{ID: 1, Source: "Dengue fever", URL: dengueSummary.URL}}, answer.Citations)
	require.Equal(t, language.LabelsFor("en").Disclaimer, answer.Disclaimer)
	require.Empty(t, answer.Notices)
	require.False(t, answer.GeneratedAt.IsZero())
}

func TestAnswerTranslatesRoundTrip(t *testing.T) {
	translator := &stubTranslator{queries: map[string]string{"¿Qué es el dengue?": "What is dengue?"}}
	o := newOrchestrator(t, translator, dengueSource(), pipeline.Options{})

	answer, err := o.Ask(context.Background(), "¿Qué es el dengue?", "es")
	require.NoError(t, err)
	require.False(t, answer.Fallback)
	require.Equal(t, models.Language("es"), answer.Language)
	require.Empty(t, answer.Notices)
	for _, s := range answer.Sections {
		for _, sentence := range s.Sentences {
			require.True(t, strings.HasPrefix(sentence, "[es] "), sentence)
		}
	}
	require.Equal(t, language.LabelsFor("es").Disclaimer, answer.Disclaimer)
}

func TestAnswerTranslationUnavailablePassesThrough(t *testing.T) {
	src := &stubSource{fn: func(context.Context, string) (models.RawSummary, error) {
		return dengueSummary, nil
	}}
	o := newOrchestrator(t, &stubTranslator{fail: true}, src, pipeline.Options{})

	answer, err := o.Ask(context.Background(), "¿Qué es el dengue?", "es")
	require.NoError(t, err)
	require.False(t, answer.Fallback)

	f, err := formatter.NewDefault()
	require.NoError(t, err)
	require.Equal(t, f.Format(dengueSummary).Sections, answer.Sections)
	require.Equal(t, []string{language.LabelsFor("es").TranslationNotice}, answer.Notices)
}

func TestAnswerUnresolvableHindiTopicFallsBack(t *testing.T) {
	translator := &stubTranslator{queries: map[string]string{"ज़िज़्ज़िटिस क्या है?": "What is xyzzyitis?"}}
	src := &stubSource{fn: func(context.Context, string) (models.RawSummary, error) {
		return models.RawSummary{}, fmt.Errorf("%w: %q", models.ErrNotFound, "xyzzyitis")
	}}
	o := newOrchestrator(t, translator, src, pipeline.Options{})

	answer, err := o.Ask(context.Background(), "ज़िज़्ज़िटिस क्या है?", "hi")
	require.NoError(t, err)
	require.True(t, answer.Fallback)
	require.Equal(t, "xyzzyitis", answer.Topic)
	require.Empty(t, answer.Citations)
	require.NotNil(t, answer.Citations)
	require.Len(t, answer.Sections, 1)
	require.Equal(t, []string{language.LabelsFor("hi").Fallback}, answer.Sections[0].Sentences)
	require.Equal(t, models.Language("hi"), answer.Language)
}

func TestAnswerFallbackCases(t *testing.T) {
	tests := []struct {
		name    string
		message string
		err     error
	}{
		{name: "empty topic", message: "?!", err: nil},
		{name: "upstream unavailable", message: "what is dengue", err: models.ErrUpstreamUnavailable},
		{name: "malformed", message: "what is dengue", err: models.ErrUpstreamMalformed},
		{name: "ambiguous", message: "what is dengue", err: models.ErrAmbiguous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &stubSource{fn: func(context.Context, string) (models.RawSummary, error) {
				return models.RawSummary{}, tt.err
			}}
			o := newOrchestrator(t, nil, src, pipeline.Options{})

			answer, err := o.Ask(context.Background(), tt.message, "fr")
			require.NoError(t, err)
			require.True(t, answer.Fallback)
			require.Empty(t, answer.Citations)
			require.Equal(t, language.LabelsFor("fr").Fallback, answer.Sections[0].Text())
			if tt.err == nil {
				require.Zero(t, src.calls.Load())
			}
		})
	}
}

func TestAnswerEmptyExtractFallsBack(t *testing.T) {
	src := &stubSource{fn: func(context.Context, string) (models.RawSummary, error) {
		return models.RawSummary{Title: "Dengue", Extract: " "}, nil
	}}
	o := newOrchestrator(t, nil, src, pipeline.Options{})

	answer, err := o.Ask(context.Background(), "what is dengue", "en")
	require.NoError(t, err)
	require.True(t, answer.Fallback)
}

func TestAnswerRequestTimeoutFallsBack(t *testing.T) {
	src := &stubSource{fn: func(ctx context.Context, _ string) (models.RawSummary, error) {
		<-ctx.Done()
		return models.RawSummary{}, models.ErrUpstreamUnavailable
	}}
	o := newOrchestrator(t, nil, src, pipeline.Options{RequestTimeout: 20 * time.Millisecond})

	start := time.Now()
	answer, err := o.Ask(context.Background(), "what is dengue", "en")
	require.NoError(t, err)
	require.True(t, answer.Fallback)
	require.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestAnswerValidation(t *testing.T) {
	o := newOrchestrator(t, nil, dengueSource(), pipeline.Options{MaxQueryLength: 10})

	_, err := o.Ask(context.Background(), "what is dengue", "de")
	require.ErrorIs(t, err, models.ErrInvalidQuery)

	_, err = o.Ask(context.Background(), "dengue", "de")
	require.ErrorIs(t, err, models.ErrUnsupportedLanguage)
	require.True(t, models.IsValidation(err))

	_, err = o.Ask(context.Background(), "   ", "en")
	require.ErrorIs(t, err, models.ErrInvalidQuery)

	_, err = o.Answer(context.Background(), models.Query{Message: "dengue", Language: "xx"})
	require.ErrorIs(t, err, models.ErrUnsupportedLanguage)
}

func TestAnswerSharesCacheAcrossLanguages(t *testing.T) {
	src := dengueSource()
	translator := &stubTranslator{queries: map[string]string{"Qu'est-ce que la dengue ?": "What is dengue?"}}
	o := newOrchestrator(t, translator, src, pipeline.Options{})

	_, err := o.Ask(context.Background(), "What is dengue?", "en")
	require.NoError(t, err)
	answer, err := o.Ask(context.Background(), "Qu'est-ce que la dengue ?", "fr")
	require.NoError(t, err)
	require.False(t, answer.Fallback)
	require.EqualValues(t, 1, src.calls.Load())
}

func TestSupported(t *testing.T) {
	o := newOrchestrator(t, nil, dengueSource(), pipeline.Options{})
	require.Equal(t, supported, o.Supported())
}
