package factory

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/review-factory/internal/cache/memory"
	"github.com/kitbuilder587/review-factory/internal/domain"
	"github.com/kitbuilder587/review-factory/internal/llm"
	"github.com/kitbuilder587/review-factory/internal/metrics"
	"github.com/kitbuilder587/review-factory/internal/verification"
)

var (
	ErrNoLLM          = errors.New("llm client is required")
	ErrInvalidWorkers = fmt.Errorf("%w: workers must be positive", domain.ErrInvalidConfiguration)
)

const defaultCacheTTL = time.Hour

type Config struct {
	Workers int
	// шаблон для всех стадий, Loop.Name подставляется по стадии
	Adaptive domain.AdaptiveConfig
	CacheTTL time.Duration
}

// Deps - зависимости фабрики. Metrics и Cache опциональны.
type Deps struct {
	LLM     llm.Client
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Cache   *memory.Cache[domain.KnowledgeNode]
	Config  Config
}

// Factory прогоняет отзывы через стадии clean -> decode -> weigh -> compress.
// Держит Workers независимых pipeline, каждый со своими адаптивными циклами.
type Factory struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cache    *memory.Cache[domain.KnowledgeNode]
	cacheTTL time.Duration

	workers int
	pool    chan *pipeline
}

type FailedReview struct {
	ReviewID string
	Err      error
}

type BatchReport struct {
	Nodes    []domain.KnowledgeNode // в порядке входа, без упавших
	Failed   []FailedReview
	Verified int
	Duration time.Duration
}

func New(deps Deps) (*Factory, error) {
	if deps.LLM == nil {
		return nil, ErrNoLLM
	}
	if deps.Config.Workers <= 0 {
		return nil, ErrInvalidWorkers
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.CacheTTL == 0 {
		deps.Config.CacheTTL = defaultCacheTTL
	}

	f := &Factory{
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		cache:    deps.Cache,
		cacheTTL: deps.Config.CacheTTL,
		workers:  deps.Config.Workers,
		pool:     make(chan *pipeline, deps.Config.Workers),
	}

	for i := 0; i < deps.Config.Workers; i++ {
		opts := []verification.Option{verification.WithLogger(deps.Logger)}
		if deps.Metrics != nil {
			opts = append(opts, verification.WithObserver(deps.Metrics.ForWorker(i)))
		}

		p, err := newPipeline(i, deps.LLM, deps.Logger.With(zap.Int("worker", i)), deps.Config.Adaptive, opts...)
		if err != nil {
			return nil, err
		}
		f.pool <- p
	}

	return f, nil
}

func (f *Factory) Workers() int { return f.workers }

// Process прогоняет один отзыв. Ошибка LLM или нарушение контракта критиком
// на любой стадии обрывают отзыв.
func (f *Factory) Process(ctx context.Context, review domain.Review) (*domain.KnowledgeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.metrics != nil {
		f.metrics.IncReviewsInFlight()
		defer f.metrics.DecReviewsInFlight()
	}

	if err := review.Validate(); err != nil {
		f.recordReview("invalid")
		return nil, err
	}
	review.Sanitize()

	key := cacheKey(review.Text)
	if node, ok := f.cached(key); ok {
		node.ReviewID = review.ID
		f.logger.Debug("review served from cache", zap.String("review_id", review.ID))
		f.recordReview("cached")
		return node, nil
	}

	p, err := f.acquire(ctx)
	if err != nil {
		return nil, err
	}
	node, err := p.run(ctx, review)
	f.release(p)

	if err != nil {
		f.logger.Warn("review processing failed",
			zap.String("review_id", review.ID),
			zap.Error(err),
		)
		f.recordReview("failed")
		return nil, err
	}

	if node.Verified {
		f.recordReview("verified")
		if f.cache != nil {
			f.cache.Set(key, cloneNode(*node), f.cacheTTL)
		}
	} else {
		f.recordReview("unverified")
	}

	return node, nil
}

// ProcessBatch не падает на отдельных отзывах, они уходят в Failed.
// Отмена ctx прерывает весь батч.
func (f *Factory) ProcessBatch(ctx context.Context, reviews []domain.Review) (*BatchReport, error) {
	start := time.Now()

	nodes := make([]*domain.KnowledgeNode, len(reviews))
	errs := make([]error, len(reviews))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for i, r := range reviews {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			node, err := f.Process(gctx, r)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = err
				return nil
			}
			nodes[i] = node
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &BatchReport{Nodes: make([]domain.KnowledgeNode, 0, len(reviews))}
	for i, r := range reviews {
		if errs[i] != nil {
			report.Failed = append(report.Failed, FailedReview{ReviewID: r.ID, Err: errs[i]})
			continue
		}
		report.Nodes = append(report.Nodes, *nodes[i])
		if nodes[i].Verified {
			report.Verified++
		}
	}
	report.Duration = time.Since(start)

	f.logger.Info("batch processed",
		zap.Int("reviews", len(reviews)),
		zap.Int("verified", report.Verified),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("duration", report.Duration),
	)

	return report, nil
}

// Statistics - статистика по стадиям, сложенная по всем воркерам.
// Ждет пока освободятся все pipeline.
func (f *Factory) Statistics() map[string]domain.Statistics {
	ps := f.acquireAll()
	defer f.releaseAll(ps)

	out := make(map[string]domain.Statistics, len(Stages))
	for _, p := range ps {
		for s, sl := range p.stages {
			out[string(s)] = out[string(s)].Merge(sl.loop.Statistics())
		}
	}
	return out
}

// StageStatistics - состояние адаптации каждого цикла, элемент i - воркер i
func (f *Factory) StageStatistics() map[string][]verification.AdaptiveStatistics {
	ps := f.acquireAll()
	defer f.releaseAll(ps)

	out := make(map[string][]verification.AdaptiveStatistics, len(Stages))
	for _, p := range ps {
		for _, s := range Stages {
			out[string(s)] = append(out[string(s)], p.stages[s].loop.AdaptiveStatistics())
		}
	}
	return out
}

func (f *Factory) ResetStatistics() {
	ps := f.acquireAll()
	defer f.releaseAll(ps)

	for _, p := range ps {
		for _, sl := range p.stages {
			sl.loop.ResetStatistics()
		}
	}
}

// SetStrictness меняет строгость критиков всех стадий
func (f *Factory) SetStrictness(level float64) error {
	if err := domain.ValidateStrictness(level); err != nil {
		return err
	}

	ps := f.acquireAll()
	defer f.releaseAll(ps)

	for _, p := range ps {
		for _, sl := range p.stages {
			if err := sl.loop.SetStrictnessLevel(level); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Factory) acquire(ctx context.Context) (*pipeline, error) {
	select {
	case p := <-f.pool:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Factory) release(p *pipeline) {
	f.pool <- p
}

// acquireAll забирает все pipeline, индекс в слайсе - номер воркера
func (f *Factory) acquireAll() []*pipeline {
	ps := make([]*pipeline, f.workers)
	for range ps {
		p := <-f.pool
		ps[p.worker] = p
	}
	return ps
}

func (f *Factory) releaseAll(ps []*pipeline) {
	for _, p := range ps {
		f.pool <- p
	}
}

func (f *Factory) cached(key string) (*domain.KnowledgeNode, bool) {
	if f.cache == nil {
		return nil, false
	}
	node, ok := f.cache.Get(key)
	if !ok {
		return nil, false
	}
	clone := cloneNode(node)
	return &clone, true
}

func (f *Factory) recordReview(status string) {
	if f.metrics != nil {
		f.metrics.RecordReview(status)
	}
}

func cacheKey(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("review:%x", hash[:8])
}

func cloneNode(n domain.KnowledgeNode) domain.KnowledgeNode {
	n.Stages = append([]domain.StageReport(nil), n.Stages...)
	return n
}
