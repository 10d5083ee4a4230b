package stats

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brettboylen/profile-analytics/models"
)

const maxEstimatedAgeDays = 5 * 365

// Synthesizer produces estimated results for when no real data is available
type Synthesizer struct {
	rng   *rand.Rand
	mutex sync.Mutex
}

// NewSynthesizer creates a synthesizer drawing from rng; nil seeds from the clock
func NewSynthesizer(rng *rand.Rand) *Synthesizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Synthesizer{rng: rng}
}

// between returns a random int in [lo, hi]
func (s *Synthesizer) between(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}

// Synthesize builds a structurally complete, estimated result for username
func (s *Synthesizer) Synthesize(username string, now time.Time) *models.AnalysisResult {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		id = uuid.New()
	}

	ageDays := s.between(1, maxEstimatedAgeDays)
	profile := models.Profile{
		ID:          "estimated-" + id.String(),
		Username:    username,
		DisplayName: username,
		CreatedAt:   now.Add(-time.Duration(ageDays) * 24 * time.Hour).UTC(),
		Metrics: models.ProfileMetrics{
			Followers: s.between(500, 5500),
			Following: s.between(200, 2200),
			PostCount: s.between(1000, 16000),
		},
	}

	// 0.50% .. 5.00%
	rate := float64(s.between(50, 500)) / 100
	ratio, ratioValue := FollowerRatio(profile.Metrics.Followers, profile.Metrics.Following)
	avgEngagement := round2(rate * float64(profile.Metrics.Followers) / 100)

	analytics := models.Analytics{
		EngagementRate:       fmt.Sprintf("%.2f%%", rate),
		EngagementRateValue:  rate,
		AverageEngagement:    avgEngagement,
		AccountAgeDays:       ageDays,
		PostsPerDay:          exposedPostsPerDay(profile.Metrics.PostCount, ageDays),
		FollowerRatio:        ratio,
		FollowerRatioValue:   ratioValue,
		BestPostingTimes:     s.postingTimes(avgEngagement),
		TopPerformingContent: s.contentPerformance(avgEngagement),
		ContentMix: []models.ContentShare{
			{Type: ContentTextOnly, Percentage: 40},
			{Type: ContentImages, Percentage: 30},
			{Type: ContentLinks, Percentage: 20},
			{Type: ContentVideos, Percentage: 10},
		},
		PopularHashtags:   []string{},
		AnalyzedPostCount: 0,
	}

	return &models.AnalysisResult{
		Username:    username,
		Profile:     profile,
		Posts:       []models.Post{},
		Analytics:   analytics,
		Strategy:    GenerateStrategy(profile, analytics),
		Timestamp:   now,
		Provenance:  models.ProvenanceSyntheticFallback,
		IsEstimated: true,
	}
}

// jitter returns base scaled by a random factor in [0.5, 1.5]
func (s *Synthesizer) jitter(base float64) float64 {
	return round2(base * (0.5 + s.rng.Float64()))
}

func (s *Synthesizer) postingTimes(base float64) []models.PostingTime {
	times := []models.PostingTime{
		{Day: DayWeekdays, Hour: "8:00-10:00"},
		{Day: DayWeekdays, Hour: "12:00-14:00"},
		{Day: DayWeekends, Hour: "10:00-12:00"},
	}
	for i := range times {
		avg := s.jitter(base)
		times[i].AverageEngagement = fmt.Sprintf("%.2f", avg)
		times[i].AverageEngagementValue = avg
	}

	sort.SliceStable(times, func(i, j int) bool {
		return times[i].AverageEngagementValue > times[j].AverageEngagementValue
	})
	return times
}

func (s *Synthesizer) contentPerformance(base float64) []models.ContentPerformance {
	ranked := []models.ContentPerformance{
		{Type: ContentImages, AverageEngagement: s.jitter(base)},
		{Type: ContentVideos, AverageEngagement: s.jitter(base)},
		{Type: ContentTextOnly, AverageEngagement: s.jitter(base)},
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AverageEngagement > ranked[j].AverageEngagement
	})
	return ranked
}
