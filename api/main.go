package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dr-haathi/healthbot/internal/config"
	"github.com/dr-haathi/healthbot/internal/formatter"
	"github.com/dr-haathi/healthbot/internal/language"
	"github.com/dr-haathi/healthbot/internal/logger"
	"github.com/dr-haathi/healthbot/internal/models"
	"github.com/dr-haathi/healthbot/internal/pipeline"
)

const maxBodyBytes = 16 << 10

func main() {
	log := logger.New("api")
	if err := config.LoadDotEnv(); err != nil {
		log.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	orchestrator, index, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		log.Error("init pipeline", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{log: log, answerer: orchestrator, defaultLang: cfg.WorkingLanguage}
	if index != nil {
		srv.index = index
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type answerer interface {
	Ask(ctx context.Context, message string, lang models.Language) (models.StructuredAnswer, error)
	Supported() []models.Language
}

type healthChecker interface {
	Health(ctx context.Context) error
}

type server struct {
	log         *slog.Logger
	answerer    answerer
	index       healthChecker // nil when the knowledge index is disabled
	defaultLang models.Language
}

type errorResponse struct {
	Error string `json:"error"`
}

type chatRequest struct {
	Message  string          `json:"message"`
	Language models.Language `json:"language"`
}

type chatResponse struct {
	Response  string            `json:"response"`
	Topic     string            `json:"topic,omitempty"`
	Sections  []models.Section  `json:"sections"`
	Citations []models.Citation `json:"citations"`
	Notices   []string          `json:"notices,omitempty"`
	Language  models.Language   `json:"language"`
	Fallback  bool              `json:"fallback"`
	Timestamp time.Time         `json:"timestamp"`
}

type languageInfo struct {
	Code models.Language `json:"code"`
	Name string          `json:"name"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/languages", s.handleLanguages)
	r.Post("/chat", s.handleChat)
	return r
}

// requestID accepts a caller supplied X-Request-Id or assigns a UUID, and
// exposes it through middleware.GetReqID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "disabled"
	if s.index != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status = "ok"
		if err := s.index.Health(ctx); err != nil {
			s.log.Warn("knowledge index unhealthy", slog.Any("err", err))
			status = "unavailable"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "healthy",
		"service":         "healthbot",
		"knowledge_index": status,
	})
}

func (s *server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	supported := s.answerer.Supported()
	out := make([]languageInfo, 0, len(supported))
	for _, code := range supported {
		out = append(out, languageInfo{Code: code, Name: language.LabelsFor(code).Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"languages": out})
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := s.log.With(slog.String("request_id", middleware.GetReqID(r.Context())))

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Language == "" {
		req.Language = s.defaultLang
	}

	answer, err := s.answerer.Ask(r.Context(), req.Message, req.Language)
	if err != nil {
		if models.IsValidation(err) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		log.Error("chat failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	log.Info("chat answered",
		slog.String("language", string(answer.Language)),
		slog.String("topic", answer.Topic),
		slog.Bool("fallback", answer.Fallback),
		slog.Int("citations", len(answer.Citations)),
		slog.Duration("took", time.Since(start)),
	)

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  formatter.Render(answer),
		Topic:     answer.Topic,
		Sections:  answer.Sections,
		Citations: answer.Citations,
		Notices:   answer.Notices,
		Language:  answer.Language,
		Fallback:  answer.Fallback,
		Timestamp: answer.GeneratedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
