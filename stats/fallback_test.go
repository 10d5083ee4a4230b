package stats

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/profile-analytics/models"
)

func TestSynthesizeShape(t *testing.T) {
	now := monday.Add(8 * time.Hour)

	for seed := int64(0); seed < 50; seed++ {
		result := NewSynthesizer(rand.New(rand.NewSource(seed))).Synthesize("golang", now)

		assert.True(t, result.IsEstimated)
		assert.Equal(t, models.ProvenanceSyntheticFallback, result.Provenance)
		assert.Equal(t, "golang", result.Username)
		assert.Equal(t, now, result.Timestamp)
		assert.NotNil(t, result.Posts)

		metrics := result.Profile.Metrics
		assert.GreaterOrEqual(t, metrics.Followers, 500)
		assert.LessOrEqual(t, metrics.Followers, 5500)
		assert.GreaterOrEqual(t, metrics.Following, 200)
		assert.LessOrEqual(t, metrics.Following, 2200)
		assert.GreaterOrEqual(t, metrics.PostCount, 1000)
		assert.LessOrEqual(t, metrics.PostCount, 16000)
		assert.True(t, strings.HasPrefix(result.Profile.ID, "estimated-"))

		analytics := result.Analytics
		assert.LessOrEqual(t, analytics.AccountAgeDays, 5*365)
		assert.GreaterOrEqual(t, analytics.AccountAgeDays, 1)
		assert.Equal(t, analytics.AccountAgeDays, AccountAgeDays(result.Profile.CreatedAt, now))
		assert.Regexp(t, `^\d+\.\d{2}%$`, analytics.EngagementRate)
		assert.Regexp(t, `^\d+\.\d{2}$`, analytics.FollowerRatio)
		assert.Greater(t, analytics.PostsPerDay, 0.0)

		require.Len(t, analytics.BestPostingTimes, 3)
		for i, pt := range analytics.BestPostingTimes {
			assert.NotEmpty(t, pt.Day)
			assert.NotEmpty(t, pt.Hour)
			assert.Regexp(t, `^\d+\.\d{2}$`, pt.AverageEngagement)
			if i > 0 {
				assert.GreaterOrEqual(t, analytics.BestPostingTimes[i-1].AverageEngagementValue, pt.AverageEngagementValue)
			}
		}

		require.Len(t, analytics.TopPerformingContent, 3)
		for i := 1; i < 3; i++ {
			assert.GreaterOrEqual(t, analytics.TopPerformingContent[i-1].AverageEngagement, analytics.TopPerformingContent[i].AverageEngagement)
		}
		assert.NotNil(t, analytics.PopularHashtags)
		assert.NotEmpty(t, analytics.ContentMix)

		assert.NotEmpty(t, result.Strategy.PostingFrequency)
		assert.NotEmpty(t, result.Strategy.BestTimeToPost)
		assert.NotEmpty(t, result.Strategy.TopContentType)
		require.NotEmpty(t, result.Strategy.Recommendations)
		assert.Equal(t, RecommendEngageComments, result.Strategy.Recommendations[len(result.Strategy.Recommendations)-1])
	}
}

func TestSynthesizeSeededIsReproducible(t *testing.T) {
	now := monday

	first := NewSynthesizer(rand.New(rand.NewSource(7))).Synthesize("golang", now)
	second := NewSynthesizer(rand.New(rand.NewSource(7))).Synthesize("golang", now)
	assert.Equal(t, first, second)
}

func TestSynthesizeUnseeded(t *testing.T) {
	result := NewSynthesizer(nil).Synthesize("golang", time.Now())
	assert.True(t, result.IsEstimated)
}
