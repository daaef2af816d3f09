package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/review-factory/internal/cache/memory"
	"github.com/kitbuilder587/review-factory/internal/config"
	"github.com/kitbuilder587/review-factory/internal/domain"
	"github.com/kitbuilder587/review-factory/internal/factory"
	"github.com/kitbuilder587/review-factory/internal/llm"
	llmMock "github.com/kitbuilder587/review-factory/internal/llm/mock"
	"github.com/kitbuilder587/review-factory/internal/llm/openrouter"
	"github.com/kitbuilder587/review-factory/internal/metrics"
	"github.com/kitbuilder587/review-factory/internal/ratelimit"
)

const maxLineBytes = 1 << 20

// ответ mock-провайдера годится и стадиям, и критику: сухой прогон пайплайна
const mockVerdict = `{"approved": true, "reasoning": "mock provider approves everything", "confidence": 1}`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "review-factory:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	client := newLLMClient(cfg, logger, m)
	if rpm := cfg.RateLimit.RequestsPerMinute; rpm > 0 {
		limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: rpm})
		defer limiter.Stop()
		client = ratelimit.WrapClient(client, limiter, cfg.LLM.Provider)
	}

	var cache *memory.Cache[domain.KnowledgeNode]
	if cfg.Cache.TTL > 0 {
		cache = memory.NewWithContext[domain.KnowledgeNode](ctx, 0)
		defer cache.Stop()
	}

	f, err := factory.New(factory.Deps{
		LLM:     client,
		Logger:  logger,
		Metrics: m,
		Cache:   cache,
		Config: factory.Config{
			Workers:  cfg.Factory.Workers,
			Adaptive: cfg.AdaptiveConfig(),
			CacheTTL: cfg.Cache.TTL,
		},
	})
	if err != nil {
		return fmt.Errorf("init factory: %w", err)
	}

	reviews, err := readReviews(os.Stdin)
	if err != nil {
		return fmt.Errorf("read reviews: %w", err)
	}

	logger.Info("starting batch",
		zap.Int("reviews", len(reviews)),
		zap.Int("workers", f.Workers()),
		zap.String("provider", cfg.LLM.Provider),
	)

	report, err := f.ProcessBatch(ctx, reviews)
	if err != nil {
		return fmt.Errorf("process batch: %w", err)
	}

	if err := writeNodes(os.Stdout, report.Nodes); err != nil {
		return fmt.Errorf("write nodes: %w", err)
	}

	for _, fr := range report.Failed {
		logger.Warn("review failed",
			zap.String("review_id", fr.ReviewID),
			zap.Error(fr.Err),
		)
	}

	logStatistics(logger, f)
	return nil
}

func newLLMClient(cfg *config.Config, logger *zap.Logger, recorder llm.Recorder) llm.Client {
	switch cfg.LLM.Provider {
	case config.ProviderOpenRouter:
		return openrouter.New(openrouter.Config{
			APIKey:      cfg.LLM.OpenRouter.APIKey,
			Model:       cfg.LLM.OpenRouter.Model,
			BaseURL:     cfg.LLM.OpenRouter.BaseURL,
			Timeout:     cfg.LLM.Timeout,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}, logger, recorder)
	default:
		return llmMock.New().WithResponse(mockVerdict)
	}
}

func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("metrics server started", zap.String("addr", addr))

	return srv
}

// readReviews - по отзыву на строку, ID - номер строки. Пустые строки пропускаем.
func readReviews(r io.Reader) ([]domain.Review, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var reviews []domain.Review
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		reviews = append(reviews, domain.Review{ID: strconv.Itoa(line), Text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}

func writeNodes(w io.Writer, nodes []domain.KnowledgeNode) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for i := range nodes {
		if err := enc.Encode(&nodes[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func logStatistics(logger *zap.Logger, f *factory.Factory) {
	stats := f.Statistics()
	budgets := f.StageStatistics()

	for _, s := range factory.Stages {
		st := stats[string(s)]
		fields := []zap.Field{
			zap.String("stage", string(s)),
			zap.Int("total", st.TotalExecutions),
			zap.Int("successful", st.SuccessfulExecutions),
			zap.Int("failed", st.FailedExecutions),
			zap.Float64("success_rate", st.SuccessRate),
		}

		retries := make([]int, 0, len(budgets[string(s)]))
		for _, b := range budgets[string(s)] {
			retries = append(retries, b.MaxRetries)
		}
		fields = append(fields, zap.Ints("max_retries", retries))

		logger.Info("stage statistics", fields...)
	}
}
