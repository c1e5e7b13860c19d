// Package pipeline turns a user question into a structured, cited answer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dr-haathi/healthbot/internal/formatter"
	"github.com/dr-haathi/healthbot/internal/language"
	"github.com/dr-haathi/healthbot/internal/logger"
	"github.com/dr-haathi/healthbot/internal/models"
	"github.com/dr-haathi/healthbot/internal/retrieval"
	"github.com/dr-haathi/healthbot/internal/topic"
)

// Options bound a single request.
type Options struct {
	RequestTimeout time.Duration
	MaxQueryLength int
}

// Orchestrator runs normalize, extract, retrieve, format and translate back
// for each query. It is safe for concurrent use; the retriever's cache is the
// only state shared between requests.
type Orchestrator struct {
	normalizer *language.Normalizer
	extractor  *topic.Extractor
	retriever  *retrieval.Retriever
	formatter  *formatter.Formatter
	opts       Options
	log        *slog.Logger
	now        func() time.Time
}

// New assembles an Orchestrator from its stages.
func New(
	normalizer *language.Normalizer,
	extractor *topic.Extractor,
	retriever *retrieval.Retriever,
	f *formatter.Formatter,
	opts Options,
	log *slog.Logger,
) *Orchestrator {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	return &Orchestrator{
		normalizer: normalizer,
		extractor:  extractor,
		retriever:  retriever,
		formatter:  f,
		opts:       opts,
		log:        logger.OrDiscard(log),
		now:        time.Now,
	}
}

// Supported lists the languages a query may be asked in.
func (o *Orchestrator) Supported() []models.Language {
	return o.normalizer.Supported()
}

// Ask validates a raw message and answers it.
func (o *Orchestrator) Ask(ctx context.Context, message string, lang models.Language) (models.StructuredAnswer, error) {
	q, err := models.NewQuery(message, lang, o.normalizer.Supported(), o.opts.MaxQueryLength)
	if err != nil {
		return models.StructuredAnswer{}, err
	}
	return o.Answer(ctx, q)
}

// Answer produces the answer for q. Only validation failures are returned as
// errors; anything that goes wrong inside the pipeline yields the localized
// fallback answer instead.
func (o *Orchestrator) Answer(ctx context.Context, q models.Query) (models.StructuredAnswer, error) {
	if err := o.normalizer.Check(q.Language); err != nil {
		return models.StructuredAnswer{}, err
	}
	if strings.TrimSpace(q.Message) == "" {
		return models.StructuredAnswer{}, fmt.Errorf("%w: message is required", models.ErrInvalidQuery)
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()

	working, err := o.normalizer.ToWorking(ctx, q.Message, q.Language)
	if err != nil {
		return models.StructuredAnswer{}, err
	}

	t, err := o.extractor.Extract(working.Text)
	if err != nil {
		return o.fallback(q, "", err), nil
	}
	o.log.Info("topic extracted",
		slog.String("topic", t.Subject),
		slog.Bool("ambiguous", t.Ambiguous),
		slog.String("language", string(q.Language)),
		slog.Bool("query_passthrough", working.Passthrough),
	)
	o.log.Debug("query normalized", slog.String("text", working.Text))

	summary, err := o.retriever.Retrieve(ctx, t.Subject, o.normalizer.Working())
	if err != nil {
		return o.fallback(q, t.Subject, err), nil
	}

	body := o.formatter.Format(summary)
	if len(body.Sections) == 0 {
		return o.fallback(q, t.Subject, fmt.Errorf("%w: %q has no usable text", models.ErrUpstreamMalformed, summary.Title)), nil
	}

	sections, passthrough, err := o.normalizer.FromWorking(ctx, body.Sections, q.Language)
	if err != nil {
		return models.StructuredAnswer{}, err
	}

	labels := language.LabelsFor(q.Language)
	answer := models.StructuredAnswer{
		Topic:       t.Subject,
		Sections:    sections,
		Citations:   body.Citations,
		Language:    q.Language,
		Disclaimer:  labels.Disclaimer,
		GeneratedAt: o.now().UTC(),
	}
	if passthrough {
		answer.Notices = append(answer.Notices, labels.TranslationNotice)
	}
	return answer, nil
}

// fallback is the informational answer shown when no summary could be used.
func (o *Orchestrator) fallback(q models.Query, subject string, cause error) models.StructuredAnswer {
	level := slog.LevelInfo
	if errors.Is(cause, models.ErrUpstreamUnavailable) || errors.Is(cause, models.ErrUpstreamMalformed) ||
		errors.Is(cause, context.DeadlineExceeded) {
		level = slog.LevelWarn
	}
	o.log.Log(context.Background(), level, "answering with fallback",
		slog.String("topic", subject),
		slog.String("language", string(q.Language)),
		slog.Any("err", cause),
	)

	labels := language.LabelsFor(q.Language)
	return models.StructuredAnswer{
		Topic: subject,
		Sections: []models.Section{{
			Category:  models.CategoryDefinition,
			Sentences: []string{labels.Fallback},
		}},
		Citations:   []models.Citation{},
		Language:    q.Language,
		Disclaimer:  labels.Disclaimer,
		Fallback:    true,
		GeneratedAt: o.now().UTC(),
	}
}
