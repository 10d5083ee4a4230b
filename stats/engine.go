package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/profile-analytics/api"
	"github.com/brettboylen/profile-analytics/cache"
	"github.com/brettboylen/profile-analytics/models"
	"github.com/brettboylen/profile-analytics/utils"
)

const defaultMaxPosts = 50

// generateStrategy is swapped in tests to exercise computation failures
var generateStrategy = GenerateStrategy

// DataSource returns raw profile attributes and recent posts
type DataSource interface {
	FetchProfile(ctx context.Context, username string) (*models.Profile, error)
	FetchPosts(ctx context.Context, profileID string, maxResults int) ([]models.Post, error)
}

// AnalyzeOptions tunes a single Analyze call
type AnalyzeOptions struct {
	ForceRefresh bool
}

// Engine turns profile data into analytics, caching results and degrading
// to cached or estimated data when the data source fails
type Engine struct {
	source      DataSource
	cache       *cache.Cache
	history     *cache.History
	synthesizer *Synthesizer
	maxPosts    int
	now         func() time.Time
	log         *logrus.Logger
}

// NewEngine creates a new engine. history may be nil.
func NewEngine(source DataSource, resultCache *cache.Cache, history *cache.History, maxPosts int, log *logrus.Logger) *Engine {
	if maxPosts <= 0 {
		maxPosts = defaultMaxPosts
	}
	return &Engine{
		source:      source,
		cache:       resultCache,
		history:     history,
		synthesizer: NewSynthesizer(nil),
		maxPosts:    maxPosts,
		now:         time.Now,
		log:         log,
	}
}

// WithClock replaces the engine clock
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithSynthesizer replaces the fallback synthesizer
func (e *Engine) WithSynthesizer(s *Synthesizer) *Engine {
	e.synthesizer = s
	return e
}

// ClassifyError maps a data source error onto an ErrorKind
func ClassifyError(err error) models.ErrorKind {
	if err == nil {
		return models.ErrorKindNone
	}

	var rateErr *api.RateLimitError
	switch {
	case errors.Is(err, api.ErrNotFound):
		return models.ErrorKindNotFound
	case errors.As(err, &rateErr):
		return models.ErrorKindRateLimited
	default:
		return models.ErrorKindTransient
	}
}

func rateLimitReset(err error) *time.Time {
	var rateErr *api.RateLimitError
	if errors.As(err, &rateErr) && !rateErr.ResetAt.IsZero() {
		reset := rateErr.ResetAt
		return &reset
	}
	return nil
}

// Analyze returns the analysis of the profile named by input, which may be a
// handle, an @handle or a profile URL. It always returns a result; callers
// tell real data from fallback data by its Provenance and IsEstimated fields.
func (e *Engine) Analyze(ctx context.Context, input string, opts AnalyzeOptions) *models.AnalysisResult {
	username := utils.NormalizeUsername(input)
	if username == "" {
		e.log.WithField("input", input).Warn("Could not extract a username, returning estimated data")
		result := e.synthesizer.Synthesize(strings.TrimPrefix(strings.TrimSpace(input), "@"), e.now())
		result.ErrorKind = models.ErrorKindNotFound
		result.Warning = fmt.Sprintf("%q is not a valid username or profile URL; showing estimated data", input)
		return result
	}

	logger := e.log.WithFields(logrus.Fields{
		"username":      username,
		"force_refresh": opts.ForceRefresh,
	})

	if !opts.ForceRefresh {
		cached, found, err := e.cache.Get(ctx, username, false)
		if err != nil {
			logger.WithError(err).Error("Cache lookup failed")
		}
		if found {
			logger.Debug("Serving analysis from cache")
			cached.Provenance = models.ProvenanceCached
			e.recordHistory(ctx, username)
			return cached
		}
		logger.Debug("Cache miss")
	}

	result, err := e.analyzeLive(ctx, username)

	// the fetch may have failed because ctx ended; store I/O must still run
	storeCtx := context.WithoutCancel(ctx)
	if err != nil {
		return e.fallback(storeCtx, username, err)
	}

	if err := e.cache.Put(storeCtx, username, result); err != nil {
		logger.WithError(err).Error("Failed to cache analysis")
	}
	e.recordHistory(storeCtx, username)

	logger.WithFields(logrus.Fields{
		"posts":           len(result.Posts),
		"engagement_rate": result.Analytics.EngagementRate,
	}).Info("Analysis complete")

	return result
}

// analyzeLive fetches the profile then its posts and computes the result
func (e *Engine) analyzeLive(ctx context.Context, username string) (*models.AnalysisResult, error) {
	profile, err := e.source.FetchProfile(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("data source returned no profile for %s", username)
	}
	profile.Sanitize()

	posts, err := e.source.FetchPosts(ctx, profile.ID, e.maxPosts)
	if err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}

	now := e.now()
	analytics, strategy, err := compute(*profile, posts, now)
	if err != nil {
		return nil, err
	}

	return &models.AnalysisResult{
		Username:   username,
		Profile:    *profile,
		Posts:      posts,
		Analytics:  analytics,
		Strategy:   strategy,
		Timestamp:  now,
		Provenance: models.ProvenanceLive,
	}, nil
}

func compute(profile models.Profile, posts []models.Post, now time.Time) (analytics models.Analytics, strategy models.Strategy, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analytics computation failed: %v", r)
		}
	}()

	analytics = CalculateAnalytics(profile, posts, now)
	strategy = generateStrategy(profile, analytics)
	return analytics, strategy, nil
}

// fallback serves the most recent cached result regardless of age, or
// estimated data when nothing was ever cached
func (e *Engine) fallback(ctx context.Context, username string, cause error) *models.AnalysisResult {
	kind := ClassifyError(cause)
	reset := rateLimitReset(cause)

	logger := e.log.WithError(cause).WithFields(logrus.Fields{
		"username":   username,
		"error_kind": kind,
	})

	stale, found, err := e.cache.Get(ctx, username, true)
	if err != nil {
		logger.WithField("cache_error", err.Error()).Error("Stale cache lookup failed")
	}
	if found {
		logger.WithField("cached_at", stale.Timestamp).Warn("Data source failed, serving stale cached analysis")
		stale.Provenance = models.ProvenanceStaleCacheFallback
		stale.ErrorKind = kind
		stale.RateLimitReset = reset
		stale.Warning = fmt.Sprintf("%s; showing cached data from %s", describeFailure(username, kind, reset), stale.Timestamp.UTC().Format(time.RFC3339))
		e.recordHistory(ctx, username)
		return stale
	}

	logger.Warn("Data source failed and nothing cached, serving estimated analysis")
	result := e.synthesizer.Synthesize(username, e.now())
	result.ErrorKind = kind
	result.RateLimitReset = reset
	result.Warning = describeFailure(username, kind, reset) + "; showing estimated data"
	e.recordHistory(ctx, username)
	return result
}

func describeFailure(username string, kind models.ErrorKind, reset *time.Time) string {
	switch kind {
	case models.ErrorKindNotFound:
		return fmt.Sprintf("Profile @%s was not found", username)
	case models.ErrorKindRateLimited:
		if reset != nil {
			return fmt.Sprintf("X API rate limit reached (resets at %s)", reset.UTC().Format(time.RFC3339))
		}
		return "X API rate limit reached"
	default:
		return "X API is unavailable"
	}
}

func (e *Engine) recordHistory(ctx context.Context, username string) {
	if e.history == nil {
		return
	}
	if err := e.history.Add(ctx, username); err != nil {
		e.log.WithError(err).WithField("username", username).Error("Failed to record search history")
	}
}

// ClearCache drops the cached analysis of the profile named by input
func (e *Engine) ClearCache(ctx context.Context, input string) error {
	username := utils.NormalizeUsername(input)
	if username == "" {
		return fmt.Errorf("invalid username %q", input)
	}
	return e.cache.Clear(ctx, username)
}

// ClearAllCache drops every cached analysis
func (e *Engine) ClearAllCache(ctx context.Context) (int, error) {
	return e.cache.ClearAll(ctx)
}

// History returns the most recently analyzed usernames, newest first
func (e *Engine) History(ctx context.Context) ([]string, error) {
	if e.history == nil {
		return []string{}, nil
	}
	return e.history.List(ctx)
}
