// Command seed loads the built-in health library into the knowledge index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/dr-haathi/healthbot/internal/config"
	"github.com/dr-haathi/healthbot/internal/elasticsearch"
	"github.com/dr-haathi/healthbot/internal/knowledge"
	"github.com/dr-haathi/healthbot/internal/logger"
	"github.com/dr-haathi/healthbot/internal/models"
	"github.com/dr-haathi/healthbot/internal/processing"
)

type documentIndexer interface {
	IndexDocument(ctx context.Context, doc models.KnowledgeDocument) error
}

func main() {
	log := logger.New("seed")
	if err := config.LoadDotEnv(); err != nil {
		log.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}
	cfg, err := config.LoadSeed()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := esClient.EnsureIndex(ctx); err != nil {
		color.Red("Cannot prepare index %s: %v\n", cfg.ElasticsearchIndex, err)
		os.Exit(1)
	}

	docs := prepare(knowledge.Documents(cfg.Language), cfg.KeywordLimit, time.Now().UTC())
	bar := newProgressBar(len(docs), "Indexing health library")
	indexed, err := seed(ctx, esClient, docs, bar)
	if err != nil {
		color.Red("\nSeeding stopped after %d documents: %v\n", indexed, err)
		os.Exit(1)
	}
	color.Green("\n✓ Indexed %d documents into %s\n", indexed, cfg.ElasticsearchIndex)
}

// prepare stamps each document with the seeding time and widens its keywords
// with terms extracted from the text.
func prepare(docs []models.KnowledgeDocument, keywordLimit int, now time.Time) []models.KnowledgeDocument {
	out := make([]models.KnowledgeDocument, 0, len(docs))
	for _, doc := range docs {
		for _, kw := range processing.ExtractKeywords(doc.Title+" "+doc.Text, keywordLimit, 4) {
			if !slices.Contains(doc.Keywords, kw) {
				doc.Keywords = append(doc.Keywords, kw)
			}
		}
		doc.Timestamp = now
		out = append(out, doc)
	}
	return out
}

func seed(ctx context.Context, indexer documentIndexer, docs []models.KnowledgeDocument, bar *progressbar.ProgressBar) (int, error) {
	for i, doc := range docs {
		if err := indexer.IndexDocument(ctx, doc); err != nil {
			return i, fmt.Errorf("index %s: %w", doc.ID, err)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	return len(docs), nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
