// Package rag coordinates query answering: cache lookup, department-scoped
// vector search, confidence gating, and answer synthesis.
package rag

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/coragem/retrieval"
	"github.com/coragem/retrieval/answergen"
	"github.com/coragem/retrieval/docstore"
	"github.com/coragem/retrieval/embedding"
	"github.com/coragem/retrieval/resultcache"
	"github.com/coragem/retrieval/vectorstore"
)

// Coordinator defaults.
const (
	DefaultConfidenceThreshold = float32(0.7)
	DefaultSearchLimit         = 10
	DefaultContextLimit        = 5
	DefaultCacheTTL            = time.Hour
	DefaultNoAnswerTTL         = 30 * time.Minute
)

// NoAnswerMessage is returned when no retrieved chunk clears the
// confidence threshold.
const NoAnswerMessage = "I don't have enough information in the knowledge base to answer that question."

// Config holds retrieval coordinator configuration.
type Config struct {
	Index     vectorstore.Index
	Embedder  embedding.Embedder
	Generator answergen.Generator
	Cache     resultcache.Cache

	// Store receives best-effort query logs; may be nil.
	Store docstore.Store

	// Departments is the closed allow-list of valid departments.
	Departments []string

	Logger *logrus.Logger

	// ConfidenceThreshold gates answer synthesis; a chunk scoring exactly
	// at the threshold is included.
	ConfidenceThreshold float32

	// SearchLimit is how many chunks are requested from the index.
	SearchLimit int

	// ContextLimit is how many gated chunks are handed to the generator.
	ContextLimit int

	// CacheTTL applies to synthesized answers, NoAnswerTTL to the
	// low-confidence fallback. The fallback expires sooner so freshly
	// ingested content becomes answerable quickly.
	CacheTTL    time.Duration
	NoAnswerTTL time.Duration
}

// Request describes one query.
type Request struct {
	Query string

	// TargetDepartment selects a department other than the caller's own.
	// Only admins may set it; empty means the caller's department.
	TargetDepartment string
}

// Coordinator answers queries against a single department's knowledge.
type Coordinator struct {
	index       vectorstore.Index
	embedder    embedding.Embedder
	generator   answergen.Generator
	cache       resultcache.Cache
	store       docstore.Store
	departments []string
	logger      *logrus.Logger

	threshold    float32
	searchLimit  int
	contextLimit int
	cacheTTL     time.Duration
	noAnswerTTL  time.Duration

	flight singleflight.Group
}

// New creates a new retrieval coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Index == nil || cfg.Embedder == nil || cfg.Generator == nil {
		return nil, fmt.Errorf("%w: index, embedder, and generator are required", retrieval.ErrInvalidConfig)
	}
	if len(cfg.Departments) == 0 {
		cfg.Departments = retrieval.DefaultDepartments
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = DefaultContextLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.NoAnswerTTL <= 0 {
		cfg.NoAnswerTTL = DefaultNoAnswerTTL
	}

	return &Coordinator{
		index:        cfg.Index,
		embedder:     cfg.Embedder,
		generator:    cfg.Generator,
		cache:        cfg.Cache,
		store:        cfg.Store,
		departments:  cfg.Departments,
		logger:       cfg.Logger,
		threshold:    cfg.ConfidenceThreshold,
		searchLimit:  cfg.SearchLimit,
		contextLimit: cfg.ContextLimit,
		cacheTTL:     cfg.CacheTTL,
		noAnswerTTL:  cfg.NoAnswerTTL,
	}, nil
}

// resolveDepartment applies the permission rules: callers query their own
// department; only admins may name another one, and the override is audited.
func (c *Coordinator) resolveDepartment(caller retrieval.Identity, target string) (string, error) {
	if target == "" || target == caller.Department {
		if !slices.Contains(c.departments, caller.Department) {
			return "", fmt.Errorf("%w: %q", retrieval.ErrInvalidDepartment, caller.Department)
		}
		return caller.Department, nil
	}

	if !caller.IsAdmin() {
		return "", fmt.Errorf("%w: caller in %q may not query %q",
			retrieval.ErrPermissionDenied, caller.Department, target)
	}
	if !slices.Contains(c.departments, target) {
		return "", fmt.Errorf("%w: %q", retrieval.ErrInvalidDepartment, target)
	}

	c.logger.WithFields(logrus.Fields{
		"audit":             "department_override",
		"user_id":           caller.UserID,
		"caller_department": caller.Department,
		"target_department": target,
	}).Info("admin querying across department boundary")
	return target, nil
}

// Query answers a question from the caller's department knowledge.
func (c *Coordinator) Query(ctx context.Context, caller retrieval.Identity, req Request) (*retrieval.QueryResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	department, err := c.resolveDepartment(caller, req.TargetDepartment)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	key := resultcache.NewKey(query, department)
	log := c.logger.WithFields(logrus.Fields{
		"user_id":    caller.UserID,
		"department": department,
	})

	if cached := c.cacheGet(ctx, key, log); cached != nil {
		log.Debug("cache hit")
		c.recordQueryLog(ctx, caller, department, query, cached, true, started)
		return cached, nil
	}

	// Identical concurrent misses collapse into one pipeline execution.
	value, err, _ := c.flight.Do(key.String(), func() (any, error) {
		return c.answer(ctx, key, department, query, log)
	})
	if err != nil {
		return nil, err
	}

	result := value.(*retrieval.QueryResult)
	c.recordQueryLog(ctx, caller, department, query, result, false, started)
	return result, nil
}

// answer runs the uncached pipeline: embed, search, gate, synthesize.
func (c *Coordinator) answer(ctx context.Context, key resultcache.Key, department, query string, log *logrus.Entry) (*retrieval.QueryResult, error) {
	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	filter := vectorstore.SearchFilter{Department: department, ActiveOnly: true}
	results, err := c.index.Search(ctx, vector, filter, c.searchLimit)
	if err != nil {
		return nil, err
	}

	// Inclusive gate: a chunk at exactly the threshold counts.
	confident := results[:0:0]
	for _, r := range results {
		if r.Score >= c.threshold {
			confident = append(confident, r)
		}
	}

	if len(confident) == 0 {
		result := &retrieval.QueryResult{
			Answer:     NoAnswerMessage,
			Confidence: retrieval.ConfidenceLow,
			Sources:    []retrieval.SourceRef{},
		}
		c.cacheSet(ctx, key, result, c.noAnswerTTL, log)
		log.WithField("retrieved", len(results)).Info("no confident context, returning fallback")
		return result, nil
	}

	if len(confident) > c.contextLimit {
		confident = confident[:c.contextLimit]
	}

	passages := make([]answergen.Passage, len(confident))
	sources := make([]retrieval.SourceRef, len(confident))
	for i, r := range confident {
		passages[i] = answergen.Passage{Title: r.Payload.Title, Content: r.Content}
		sources[i] = retrieval.SourceRef{
			DocumentID: r.Payload.DocumentID,
			Title:      r.Payload.Title,
			Department: r.Payload.Department,
			ChunkIndex: r.Payload.ChunkIndex,
			DocType:    r.Payload.DocType,
			Score:      r.Score,
		}
	}

	answer, err := c.generator.Generate(ctx, query, passages)
	if err != nil {
		// A provider outage is not "no information"; it must never be
		// cached as a low-confidence answer.
		return nil, err
	}

	result := &retrieval.QueryResult{
		Answer:     answer,
		Confidence: retrieval.ConfidenceHigh,
		Sources:    sources,
	}
	c.cacheSet(ctx, key, result, c.cacheTTL, log)
	log.WithField("sources", len(sources)).Info("answer synthesized")
	return result, nil
}

// cacheGet treats cache failures as misses; the cache is an optimization,
// never a dependency.
func (c *Coordinator) cacheGet(ctx context.Context, key resultcache.Key, log *logrus.Entry) *retrieval.QueryResult {
	if c.cache == nil {
		return nil
	}
	result, err := c.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).Warn("result cache read failed, treating as miss")
		return nil
	}
	return result
}

// cacheSet skips the write when the caller is already gone, so an
// abandoned request cannot populate the cache with a result nobody
// validated.
func (c *Coordinator) cacheSet(ctx context.Context, key resultcache.Key, result *retrieval.QueryResult, ttl time.Duration, log *logrus.Entry) {
	if c.cache == nil || ctx.Err() != nil {
		return
	}
	if err := c.cache.Set(ctx, key, result, ttl); err != nil {
		log.WithError(err).Warn("result cache write failed")
	}
}

// recordQueryLog inserts an analytics row. Best effort: failures are
// logged and never surface to the caller.
func (c *Coordinator) recordQueryLog(ctx context.Context, caller retrieval.Identity, department, query string, result *retrieval.QueryResult, cached bool, started time.Time) {
	if c.store == nil {
		return
	}
	entry := &retrieval.QueryLog{
		ID:          uuid.NewString(),
		Query:       query,
		UserID:      caller.UserID,
		Department:  department,
		ResultCount: len(result.Sources),
		LatencyMS:   float64(time.Since(started).Microseconds()) / 1000,
		Cached:      cached,
		Confidence:  string(result.Confidence),
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.store.InsertQueryLog(ctx, entry); err != nil {
		c.logger.WithError(err).Warn("failed to record query log")
	}
}
