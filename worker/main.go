package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/segmentio/kafka-go"

	"github.com/dr-haathi/healthbot/internal/cache"
	"github.com/dr-haathi/healthbot/internal/config"
	"github.com/dr-haathi/healthbot/internal/elasticsearch"
	"github.com/dr-haathi/healthbot/internal/logger"
	"github.com/dr-haathi/healthbot/internal/models"
	"github.com/dr-haathi/healthbot/internal/processing"
)

const dlqAttempts = 5

type rawDocument struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	URL       string `json:"url"`
	Source    string `json:"source"`
	Language  string `json:"language"`
	Timestamp string `json:"timestamp"`
}

type documentIndexer interface {
	IndexDocument(ctx context.Context, doc models.KnowledgeDocument) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func main() {
	log := logger.New("worker")
	if err := config.LoadDotEnv(); err != nil {
		log.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	seen := cache.New[string, struct{}](cfg.DedupeCapacity, cfg.DedupeTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := esClient.EnsureIndex(ctx); err != nil {
		log.Warn("ensure knowledge index", slog.Any("err", err))
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       dlqTopic,
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, seen, cfg, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			// Commit only after the DLQ holds the message; otherwise it is
			// redelivered on restart.
			if sendErr := sendToDLQ(ctx, log, dlqWriter, msg, err, time.Second); sendErr != nil {
				if errors.Is(sendErr, context.Canceled) {
					log.Info("context canceled during DLQ retry")
					return
				}
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
			if err := reader.CommitMessages(ctx, msg); err != nil {
				log.Error("commit failed message to dlq", slog.Any("err", err))
			}
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// sendToDLQ writes msg with failure headers, doubling baseBackoff between attempts.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error, baseBackoff time.Duration) error {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	var lastErr error
	for attempt := 0; attempt < dlqAttempts; attempt++ {
		lastErr = w.WriteMessages(ctx, dlqMsg)
		if lastErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return nil
		}

		backoff := baseBackoff << uint(attempt)
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", lastErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("dlq write: %w", lastErr)
}

func processMessage(ctx context.Context, log *slog.Logger, indexer documentIndexer, seen *cache.Cache[string, struct{}], cfg *config.Worker, msg kafka.Message) error {
	var payload rawDocument
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return err
	}

	title := strings.TrimSpace(payload.Title)
	text := plainText(payload.Text)
	if text == "" {
		return errors.New("empty document text")
	}

	if title == "" {
		title = processing.GenerateTitleFromText(text, 10)
	}

	url := strings.TrimSpace(payload.URL)
	if url == "" {
		if urls := processing.ExtractURLs(payload.Text); len(urls) > 0 {
			url = urls[0]
		}
	}

	ts := parseTimestamp(payload.Timestamp)
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	lang := models.Language(strings.ToLower(strings.TrimSpace(payload.Language)))
	if lang == "" {
		lang = cfg.DefaultLanguage
	}

	source := strings.TrimSpace(payload.Source)
	if source == "" {
		source = title
	}

	cleanedText := processing.CleanText(text)
	doc := models.KnowledgeDocument{
		ID:        strings.TrimSpace(payload.ID),
		Title:     title,
		Text:      text,
		URL:       url,
		Source:    source,
		Language:  lang,
		Keywords:  processing.ExtractKeywords(title+" "+cleanedText, cfg.KeywordLimit, cfg.KeywordMinLength),
		Timestamp: ts,
	}
	if doc.ID == "" {
		doc.ID = processing.BuildDocumentID(title, cleanedText, ts)
	}

	if seen.Contains(doc.ID) {
		log.Debug("duplicate document", slog.String("id", doc.ID))
		return nil
	}

	if err := indexer.IndexDocument(ctx, doc); err != nil {
		return err
	}

	seen.Set(doc.ID, struct{}{})
	log.Info("indexed knowledge document",
		slog.String("id", doc.ID),
		slog.String("title", doc.Title),
		slog.String("language", string(doc.Language)),
	)
	return nil
}

// plainText strips markup from ingested text and collapses whitespace.
func plainText(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "<") {
		return processing.CollapseWhitespace(raw)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return processing.CollapseWhitespace(raw)
	}
	return processing.CollapseWhitespace(doc.Text())
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts
		}
	}

	return time.Time{}
}
