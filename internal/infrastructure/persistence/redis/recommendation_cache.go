package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alem-hub/academic-risk-hub/config"
	"github.com/alem-hub/academic-risk-hub/internal/domain/recommendation"
	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

// Store is the subset of Cache used by RecommendationCache.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// FeatureGate reports whether caching is enabled for a student.
type FeatureGate interface {
	IsEnabled(name string, ctx *config.FeatureContext) bool
}

// LookupMetrics counts cache hits and misses.
type LookupMetrics interface {
	RecordCacheLookup(hit bool)
}

// cachedResult is the JSON shape of a cached result.
type cachedResult struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	RiskLevel string    `json:"risk_level"`
	Text      string    `json:"recommendation"`
	Source    string    `json:"source"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RecommendationCache decorates a recommendation.Repository with a
// read-through cache of the latest result per student. Saves invalidate the
// key; cache failures fall through to the repository.
//
// A read that loaded from the repository only fills the cache when no
// invalidation for the same student happened while it was loading.
type RecommendationCache struct {
	next    recommendation.Repository
	store   Store
	flags   FeatureGate
	metrics LookupMetrics
	ttl     time.Duration
	logger  *logger.Logger

	mu          sync.Mutex
	generations map[int64]uint64
}

// RecommendationCacheConfig contains the optional parts of the decorator.
type RecommendationCacheConfig struct {
	TTL     time.Duration
	Flags   FeatureGate
	Metrics LookupMetrics
	Logger  *logger.Logger
}

// NewRecommendationCache wraps next.
func NewRecommendationCache(next recommendation.Repository, store Store, cfg RecommendationCacheConfig) *RecommendationCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &RecommendationCache{
		next:    next,
		store:   store,
		flags:   cfg.Flags,
		metrics: cfg.Metrics,
		ttl:     cfg.TTL,
		logger:  cfg.Logger.With(logger.Component("recommendation_cache")),

		generations: make(map[int64]uint64),
	}
}

var _ recommendation.Repository = (*RecommendationCache)(nil)

func (c *RecommendationCache) enabled(studentID int64) bool {
	if c.flags == nil {
		return true
	}
	return c.flags.IsEnabled(config.FeatureResultCache, &config.FeatureContext{StudentID: studentID})
}

// Save stores through to the repository and drops the cached entry.
func (c *RecommendationCache) Save(ctx context.Context, r *recommendation.Result) error {
	if err := c.next.Save(ctx, r); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, r.StudentID); err != nil {
		c.logger.Warn("failed to invalidate cached result",
			logger.StudentID(r.StudentID),
			logger.Err(err),
		)
	}
	return nil
}

// Latest serves from the cache when possible.
func (c *RecommendationCache) Latest(ctx context.Context, studentID int64) (*recommendation.Result, error) {
	if !c.enabled(studentID) {
		return c.next.Latest(ctx, studentID)
	}

	key := RecommendationKey(studentID)

	var cached cachedResult
	err := c.store.Get(ctx, key, &cached)
	if err == nil {
		if res, convErr := cached.toResult(); convErr == nil {
			c.recordLookup(true)
			return res, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("cache read failed", logger.StudentID(studentID), logger.Err(err))
	}
	c.recordLookup(false)

	gen := c.generation(studentID)
	res, err := c.next.Latest(ctx, studentID)
	if err != nil {
		return nil, err
	}

	if c.generation(studentID) != gen {
		c.logger.Debug("skipping cache fill, result changed during read", logger.StudentID(studentID))
		return res, nil
	}
	if err := c.store.Set(ctx, key, fromResult(res), c.ttl); err != nil {
		c.logger.Warn("cache write failed", logger.StudentID(studentID), logger.Err(err))
		return res, nil
	}
	// An invalidation may land between the check and Set.
	if c.generation(studentID) != gen {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("failed to drop stale cache entry", logger.StudentID(studentID), logger.Err(err))
		}
	}
	return res, nil
}

// CountAll delegates to the repository.
func (c *RecommendationCache) CountAll(ctx context.Context) (int, error) {
	return c.next.CountAll(ctx)
}

// RiskDistribution delegates to the repository.
func (c *RecommendationCache) RiskDistribution(ctx context.Context) (map[risk.Level]int, error) {
	return c.next.RiskDistribution(ctx)
}

// Invalidate drops the cached latest result of a student. Reads that are
// still loading the previous result will not write it back.
func (c *RecommendationCache) Invalidate(ctx context.Context, studentID int64) error {
	c.mu.Lock()
	c.generations[studentID]++
	c.mu.Unlock()
	return c.store.Delete(ctx, RecommendationKey(studentID))
}

func (c *RecommendationCache) generation(studentID int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[studentID]
}

func (c *RecommendationCache) recordLookup(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(hit)
	}
}

func fromResult(r *recommendation.Result) cachedResult {
	return cachedResult{
		ID:        r.ID,
		StudentID: r.StudentID,
		RiskLevel: r.RiskLevel.String(),
		Text:      r.Text,
		Source:    string(r.Source),
		RunID:     r.RunID,
		CreatedAt: r.CreatedAt,
	}
}

func (c cachedResult) toResult() (*recommendation.Result, error) {
	level, err := risk.ParseLevel(c.RiskLevel)
	if err != nil {
		return nil, err
	}
	return &recommendation.Result{
		ID:        c.ID,
		StudentID: c.StudentID,
		RiskLevel: level,
		Text:      c.Text,
		Source:    recommendation.Source(c.Source),
		RunID:     c.RunID,
		CreatedAt: c.CreatedAt,
	}, nil
}
