package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/brettboylen/profile-analytics/models"
)

const (
	DayWeekdays = "Weekdays"
	DayWeekends = "Weekends"

	bucketHours    = 2
	bucketsPerDay  = 24 / bucketHours
	topTimesLimit  = 3
	topTypesLimit  = 3
	topTagsLimit   = 5
	notAvailable   = "N/A"
	zeroEngagement = "0.00%"
)

// content types, in the order they are reported when averages tie
const (
	ContentTextOnly = "Text only"
	ContentImages   = "With images"
	ContentVideos   = "With videos"
	ContentLinks    = "With links"
	ContentHashtags = "With hashtags"
	ContentMentions = "With mentions"
	ContentPolls    = "With polls"
)

var contentTypes = []string{
	ContentTextOnly,
	ContentImages,
	ContentVideos,
	ContentLinks,
	ContentHashtags,
	ContentMentions,
	ContentPolls,
}

// placeholderPostingTime is returned when there is nothing to bucket
var placeholderPostingTime = models.PostingTime{
	Day:               DayWeekdays,
	Hour:              "9:00-11:00",
	AverageEngagement: notAvailable,
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CalculateAnalytics derives every metric of an analysis from a profile and its posts
func CalculateAnalytics(profile models.Profile, posts []models.Post, now time.Time) models.Analytics {
	profile.Sanitize()

	ageDays := AccountAgeDays(profile.CreatedAt, now)
	rate, rateValue := EngagementRate(profile.Metrics.Followers, posts)
	ratio, ratioValue := FollowerRatio(profile.Metrics.Followers, profile.Metrics.Following)

	return models.Analytics{
		EngagementRate:       rate,
		EngagementRateValue:  rateValue,
		AverageEngagement:    round2(AverageEngagement(posts)),
		AccountAgeDays:       ageDays,
		PostsPerDay:          exposedPostsPerDay(profile.Metrics.PostCount, ageDays),
		FollowerRatio:        ratio,
		FollowerRatioValue:   ratioValue,
		BestPostingTimes:     BestPostingTimes(posts),
		TopPerformingContent: TopPerformingContent(posts),
		ContentMix:           ContentMix(posts),
		PopularHashtags:      PopularHashtags(posts),
		AnalyzedPostCount:    len(posts),
	}
}

// AverageEngagement is the mean of likes+reposts+replies across posts
func AverageEngagement(posts []models.Post) float64 {
	if len(posts) == 0 {
		return 0
	}

	total := 0
	for _, post := range posts {
		total += post.Engagement.Total()
	}
	return float64(total) / float64(len(posts))
}

// EngagementRate returns the average engagement per post relative to followers,
// formatted as "x.xx%" along with its numeric value
func EngagementRate(followers int, posts []models.Post) (string, float64) {
	if len(posts) == 0 || followers <= 0 {
		return zeroEngagement, 0
	}

	rate := AverageEngagement(posts) / float64(followers) * 100
	return fmt.Sprintf("%.2f%%", rate), round2(rate)
}

// AccountAgeDays returns whole days since createdAt; 0 when unknown or in the future
func AccountAgeDays(createdAt, now time.Time) int {
	if createdAt.IsZero() || now.Before(createdAt) {
		return 0
	}
	return int(now.Sub(createdAt) / (24 * time.Hour))
}

// PostsPerDay is the lifetime posting cadence of an account
func PostsPerDay(postCount, ageDays int) float64 {
	if postCount <= 0 {
		return 0
	}
	return float64(postCount) / float64(max(ageDays, 1))
}

// exposedPostsPerDay is the reported cadence; it stays 0 until the account is a day old
func exposedPostsPerDay(postCount, ageDays int) float64 {
	if ageDays <= 0 {
		return 0
	}
	return round2(PostsPerDay(postCount, ageDays))
}

// FollowerRatio returns followers/following to two decimals, or "N/A" when following is 0
func FollowerRatio(followers, following int) (string, float64) {
	if following <= 0 {
		return notAvailable, 0
	}

	ratio := float64(followers) / float64(following)
	return fmt.Sprintf("%.2f", ratio), round2(ratio)
}

type timeBucket struct {
	day        string
	startHour  int
	engagement int
	count      int
}

func (b timeBucket) average() float64 {
	return float64(b.engagement) / float64(b.count)
}

// BestPostingTimes ranks weekday/weekend two-hour UTC windows by average engagement.
// It always returns at least one entry.
func BestPostingTimes(posts []models.Post) []models.PostingTime {
	buckets := make([]timeBucket, 0, 2*bucketsPerDay)
	for _, day := range []string{DayWeekdays, DayWeekends} {
		for i := 0; i < bucketsPerDay; i++ {
			buckets = append(buckets, timeBucket{day: day, startHour: i * bucketHours})
		}
	}

	for _, post := range posts {
		// posts without a timestamp cannot be placed
		if post.CreatedAt.IsZero() {
			continue
		}

		created := post.CreatedAt.UTC()
		index := created.Hour() / bucketHours
		if weekday := created.Weekday(); weekday == time.Saturday || weekday == time.Sunday {
			index += bucketsPerDay
		}

		buckets[index].engagement += post.Engagement.Total()
		buckets[index].count++
	}

	filled := make([]timeBucket, 0, len(buckets))
	for _, b := range buckets {
		if b.count > 0 {
			filled = append(filled, b)
		}
	}

	if len(filled) == 0 {
		return []models.PostingTime{placeholderPostingTime}
	}

	sort.SliceStable(filled, func(i, j int) bool {
		return filled[i].average() > filled[j].average()
	})

	if len(filled) > topTimesLimit {
		filled = filled[:topTimesLimit]
	}

	times := make([]models.PostingTime, 0, len(filled))
	for _, b := range filled {
		avg := b.average()
		times = append(times, models.PostingTime{
			Day:                    b.day,
			Hour:                   fmt.Sprintf("%d:00-%d:00", b.startHour, b.startHour+bucketHours),
			AverageEngagement:      fmt.Sprintf("%.2f", avg),
			AverageEngagementValue: round2(avg),
			PostCount:              b.count,
		})
	}

	return times
}

// ClassifyContent returns the content types a post counts toward. Media and
// polls are independent of each other; a post is text only when it carries
// no media, link, hashtag or mention.
func ClassifyContent(flags models.ContentFlags) []string {
	// a repost carries someone else's content
	if flags.IsRepost {
		return []string{ContentTextOnly}
	}

	types := make([]string, 0, 2)

	switch {
	case flags.HasVideo:
		types = append(types, ContentVideos)
	case flags.HasMedia:
		types = append(types, ContentImages)
	case flags.HasLink:
		types = append(types, ContentLinks)
	case flags.HasHashtag:
		types = append(types, ContentHashtags)
	case flags.HasMention:
		types = append(types, ContentMentions)
	default:
		types = append(types, ContentTextOnly)
	}

	if flags.HasPoll {
		types = append(types, ContentPolls)
	}

	return types
}

type contentTally struct {
	count      int
	engagement int
}

func tallyContent(posts []models.Post) map[string]*contentTally {
	tallies := make(map[string]*contentTally, len(contentTypes))
	for _, t := range contentTypes {
		tallies[t] = &contentTally{}
	}

	for _, post := range posts {
		for _, t := range ClassifyContent(post.ContentFlags) {
			tallies[t].count++
			tallies[t].engagement += post.Engagement.Total()
		}
	}

	return tallies
}

// TopPerformingContent returns up to three content types ranked by average engagement
func TopPerformingContent(posts []models.Post) []models.ContentPerformance {
	tallies := tallyContent(posts)

	type scored struct {
		contentType string
		count       int
		average     float64
	}

	candidates := make([]scored, 0, len(contentTypes))
	for _, t := range contentTypes {
		tally := tallies[t]
		if tally.count == 0 {
			continue
		}
		candidates = append(candidates, scored{
			contentType: t,
			count:       tally.count,
			average:     float64(tally.engagement) / float64(tally.count),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].average > candidates[j].average
	})

	if len(candidates) > topTypesLimit {
		candidates = candidates[:topTypesLimit]
	}

	ranked := make([]models.ContentPerformance, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, models.ContentPerformance{
			Type:              c.contentType,
			Count:             c.count,
			AverageEngagement: round2(c.average),
		})
	}
	return ranked
}

// ContentMix returns the share of posts per content type. Shares can sum
// past 100% because polls overlap with the other types.
func ContentMix(posts []models.Post) []models.ContentShare {
	mix := make([]models.ContentShare, 0, len(contentTypes))
	if len(posts) == 0 {
		return mix
	}

	tallies := tallyContent(posts)
	for _, t := range contentTypes {
		tally := tallies[t]
		if tally.count == 0 {
			continue
		}
		mix = append(mix, models.ContentShare{
			Type:       t,
			Count:      tally.count,
			Percentage: round2(float64(tally.count) / float64(len(posts)) * 100),
		})
	}

	return mix
}

// PopularHashtags returns the five most used tags, "#"-prefixed. Equal counts
// keep the order in which the tags were first seen.
func PopularHashtags(posts []models.Post) []string {
	counts := make(map[string]int)
	order := make([]string, 0)

	for _, post := range posts {
		for _, raw := range post.Hashtags {
			tag := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
			if tag == "" {
				continue
			}
			if _, seen := counts[tag]; !seen {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > topTagsLimit {
		order = order[:topTagsLimit]
	}

	tags := make([]string, 0, len(order))
	for _, tag := range order {
		tags = append(tags, "#"+tag)
	}
	return tags
}

// shareOf returns the percentage of posts of the given content type
func shareOf(mix []models.ContentShare, contentType string) float64 {
	for _, share := range mix {
		if share.Type == contentType {
			return share.Percentage
		}
	}
	return 0
}
