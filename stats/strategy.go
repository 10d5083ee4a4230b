package stats

import (
	"github.com/brettboylen/profile-analytics/models"
)

const (
	lowFrequencyThreshold  = 0.5 // posts per day
	highFrequencyThreshold = 3.0
	minMediaShare          = 30.0 // percent of posts
	maxLinkShare           = 50.0
	smallAudience          = 1000
	mediumAudience         = 10000
)

const (
	RecommendPostConsistently = "Post more consistently: aim for at least one post a day to stay visible in your followers' feeds."
	RecommendQualityOverCount = "Focus on quality over quantity: fewer, stronger posts tend to earn more engagement per post."
	RecommendVisualContent    = "Use more visual content: posts with images or videos typically draw more engagement."
	RecommendNativeContent    = "Balance link posts with native content: threads, images and opinions keep people on your profile."
	RecommendGrowSmall        = "Grow your base: reply to and engage with larger accounts in your niche to get discovered."
	RecommendGrowMedium       = "Collaborate with accounts of similar size and join trending conversations to widen your reach."
	RecommendGrowLarge        = "Leverage your reach: run polls, host Spaces and share exclusive insights to deepen loyalty."
	RecommendEngageComments   = "Engage with comments: replying to your audience builds community and boosts visibility."
)

// PostingFrequency labels a posts-per-day cadence
func PostingFrequency(postsPerDay float64) string {
	switch {
	case postsPerDay > 3:
		return "Very High (3+ posts per day)"
	case postsPerDay > 1:
		return "High (1-3 posts per day)"
	case postsPerDay > 0.5:
		return "Medium (3-7 posts per week)"
	case postsPerDay > 0.1:
		return "Low (1-3 posts per week)"
	default:
		return "Very Low (less than weekly)"
	}
}

// GenerateStrategy turns computed analytics into posting advice. Cadence
// rules use the unrounded posts per day of the profile.
func GenerateStrategy(profile models.Profile, analytics models.Analytics) models.Strategy {
	postsPerDay := PostsPerDay(profile.Metrics.PostCount, analytics.AccountAgeDays)

	return models.Strategy{
		PostingFrequency: PostingFrequency(postsPerDay),
		BestTimeToPost:   bestTimeToPost(analytics.BestPostingTimes),
		TopContentType:   topContentType(analytics.TopPerformingContent),
		Recommendations:  recommendations(profile, analytics, postsPerDay),
	}
}

func bestTimeToPost(times []models.PostingTime) string {
	if len(times) == 0 {
		return placeholderPostingTime.Day + " " + placeholderPostingTime.Hour
	}
	return times[0].Day + " " + times[0].Hour + " UTC"
}

func topContentType(ranked []models.ContentPerformance) string {
	if len(ranked) == 0 {
		return notAvailable
	}
	return ranked[0].Type
}

func recommendations(profile models.Profile, analytics models.Analytics, postsPerDay float64) []string {
	recs := make([]string, 0, 5)

	switch {
	case postsPerDay < lowFrequencyThreshold:
		recs = append(recs, RecommendPostConsistently)
	case postsPerDay > highFrequencyThreshold:
		recs = append(recs, RecommendQualityOverCount)
	}

	mediaShare := shareOf(analytics.ContentMix, ContentImages) + shareOf(analytics.ContentMix, ContentVideos)
	if mediaShare < minMediaShare {
		recs = append(recs, RecommendVisualContent)
	}

	if shareOf(analytics.ContentMix, ContentLinks) > maxLinkShare {
		recs = append(recs, RecommendNativeContent)
	}

	switch followers := profile.Metrics.Followers; {
	case followers < smallAudience:
		recs = append(recs, RecommendGrowSmall)
	case followers < mediumAudience:
		recs = append(recs, RecommendGrowMedium)
	default:
		recs = append(recs, RecommendGrowLarge)
	}

	return append(recs, RecommendEngageComments)
}
