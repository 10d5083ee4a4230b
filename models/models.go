package models

import (
	"time"
)

// Provenance tells callers where an AnalysisResult came from
type Provenance string

const (
	ProvenanceLive               Provenance = "live"
	ProvenanceCached             Provenance = "cached"
	ProvenanceStaleCacheFallback Provenance = "stale_cache_fallback"
	ProvenanceSyntheticFallback  Provenance = "synthetic_fallback"
)

// ErrorKind classifies a data source failure
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindNotFound    ErrorKind = "not_found"
	ErrorKindRateLimited ErrorKind = "rate_limited"
	ErrorKindTransient   ErrorKind = "transient"
)

// ProfileMetrics holds the public counters of a profile
type ProfileMetrics struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
	PostCount int `json:"post_count"`
}

// Profile represents a social profile at analysis time
type Profile struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	Metrics     ProfileMetrics `json:"metrics"`
	Verified    bool           `json:"verified"`
}

// Engagement holds the interaction counters of a single post
type Engagement struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
}

// Total returns likes + reposts + replies, ignoring negative counters
func (e Engagement) Total() int {
	return nonNegative(e.Likes) + nonNegative(e.Reposts) + nonNegative(e.Replies)
}

// ContentFlags describes what a post contains
type ContentFlags struct {
	HasMedia   bool `json:"has_media"`
	HasVideo   bool `json:"has_video"`
	HasLink    bool `json:"has_link"`
	HasHashtag bool `json:"has_hashtag"`
	HasMention bool `json:"has_mention"`
	HasPoll    bool `json:"has_poll"`
	IsRepost   bool `json:"is_repost"`
	IsReply    bool `json:"is_reply"`
}

// Post represents one unit of user-generated content
type Post struct {
	ID           string       `json:"id"`
	CreatedAt    time.Time    `json:"created_at"`
	Engagement   Engagement   `json:"engagement"`
	ContentFlags ContentFlags `json:"content_flags"`
	Hashtags     []string     `json:"hashtags"`
}

// PostingTime is one entry of the best posting times ranking
type PostingTime struct {
	Day                    string  `json:"day"`
	Hour                   string  `json:"hour"`
	AverageEngagement      string  `json:"average_engagement"`
	AverageEngagementValue float64 `json:"average_engagement_value"`
	PostCount              int     `json:"post_count"`
}

// ContentPerformance is one entry of the top performing content types ranking
type ContentPerformance struct {
	Type              string  `json:"type"`
	Count             int     `json:"count"`
	AverageEngagement float64 `json:"average_engagement"`
}

// ContentShare is the percentage of analyzed posts falling into a content type
type ContentShare struct {
	Type       string  `json:"type"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Analytics holds the derived metrics of an analysis
type Analytics struct {
	EngagementRate       string               `json:"engagement_rate"`
	EngagementRateValue  float64              `json:"engagement_rate_value"`
	AverageEngagement    float64              `json:"average_engagement"`
	AccountAgeDays       int                  `json:"account_age_days"`
	PostsPerDay          float64              `json:"posts_per_day"`
	FollowerRatio        string               `json:"follower_ratio"`
	FollowerRatioValue   float64              `json:"follower_ratio_value"`
	BestPostingTimes     []PostingTime        `json:"best_posting_times"`
	TopPerformingContent []ContentPerformance `json:"top_performing_content"`
	ContentMix           []ContentShare       `json:"content_mix"`
	PopularHashtags      []string             `json:"popular_hashtags"`
	AnalyzedPostCount    int                  `json:"analyzed_post_count"`
}

// Strategy holds the advisory output of the strategy generator
type Strategy struct {
	PostingFrequency string   `json:"posting_frequency"`
	BestTimeToPost   string   `json:"best_time_to_post"`
	TopContentType   string   `json:"top_content_type"`
	Recommendations  []string `json:"recommendations"`
}

// AnalysisResult is the unit stored in the cache and returned to callers
type AnalysisResult struct {
	Username       string     `json:"username"`
	Profile        Profile    `json:"profile"`
	Posts          []Post     `json:"posts"`
	Analytics      Analytics  `json:"analytics"`
	Strategy       Strategy   `json:"strategy"`
	Timestamp      time.Time  `json:"timestamp"`
	Provenance     Provenance `json:"provenance"`
	IsEstimated    bool       `json:"is_estimated"`
	Warning        string     `json:"warning,omitempty"`
	ErrorKind      ErrorKind  `json:"error_kind,omitempty"`
	RateLimitReset *time.Time `json:"rate_limit_reset,omitempty"`
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// Sanitize clamps negative counters to zero so downstream arithmetic stays total
func (p *Profile) Sanitize() {
	p.Metrics.Followers = nonNegative(p.Metrics.Followers)
	p.Metrics.Following = nonNegative(p.Metrics.Following)
	p.Metrics.PostCount = nonNegative(p.Metrics.PostCount)
}
