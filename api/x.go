package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/brettboylen/profile-analytics/models"
)

const (
	defaultBaseURL    = "https://api.twitter.com/2"
	defaultMaxResults = 50
	minMaxResults     = 5   // the API rejects max_results below 5
	maxMaxResults     = 100 // max number of posts per request
)

// ErrNotFound is returned when a username does not resolve to a profile
var ErrNotFound = errors.New("profile not found")

// RateLimitError is returned when the API answers 429
type RateLimitError struct {
	ResetAt time.Time // zero when the API sent no reset header
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return "rate limited by X API"
	}
	return fmt.Sprintf("rate limited by X API until %s", e.ResetAt.UTC().Format(time.RFC3339))
}

// XClient fetches profiles and recent posts from the X API v2
type XClient struct {
	bearerToken      string
	baseURL          string
	httpClient       *http.Client
	log              *logrus.Logger
	rateLimiter      *rate.Limiter
	rateRemaining    int
	rateLimit        int
	rateReset        time.Time
	rateHeadersMutex sync.RWMutex
}

// xUser is the X API v2 user object
type xUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	CreatedAt     string `json:"created_at"`
	Verified      bool   `json:"verified"`
	PublicMetrics struct {
		FollowersCount int `json:"followers_count"`
		FollowingCount int `json:"following_count"`
		TweetCount     int `json:"tweet_count"`
	} `json:"public_metrics"`
}

type xError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

type xUserResponse struct {
	Data   *xUser   `json:"data"`
	Errors []xError `json:"errors"`
}

type xEntity struct {
	Start int    `json:"start"`
	Tag   string `json:"tag"`
}

// xTweet is the X API v2 tweet object
type xTweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
		LikeCount    int `json:"like_count"`
	} `json:"public_metrics"`
	Entities struct {
		Hashtags []xEntity         `json:"hashtags"`
		URLs     []json.RawMessage `json:"urls"`
		Mentions []json.RawMessage `json:"mentions"`
	} `json:"entities"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
		PollIDs   []string `json:"poll_ids"`
	} `json:"attachments"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

// xTweetsResponse keeps tweets raw so one malformed tweet can be skipped
type xTweetsResponse struct {
	Data     []json.RawMessage `json:"data"`
	Includes struct {
		Media []struct {
			MediaKey string `json:"media_key"`
			Type     string `json:"type"`
		} `json:"media"`
	} `json:"includes"`
	Errors []xError `json:"errors"`
}

// NewXClient creates a new X API client
func NewXClient(bearerToken, baseURL string, maxRequestsPerMinute int, timeout time.Duration, log *logrus.Logger) *XClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = 60
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	// no burst; spread requests evenly across the minute
	limit := rate.Limit(float64(maxRequestsPerMinute) / 60.0)

	return &XClient{
		bearerToken: bearerToken,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		log:         log,
		rateLimiter: rate.NewLimiter(limit, 1),
	}
}

// GetRateLimitStatus returns the last seen rate limit headers (remaining, limit, reset time)
func (x *XClient) GetRateLimitStatus() (int, int, time.Time) {
	x.rateHeadersMutex.RLock()
	defer x.rateHeadersMutex.RUnlock()
	return x.rateRemaining, x.rateLimit, x.rateReset
}

// FetchProfile fetches the profile of username
func (x *XClient) FetchProfile(ctx context.Context, username string) (*models.Profile, error) {
	params := url.Values{}
	params.Set("user.fields", "created_at,description,public_metrics,verified")

	body, err := x.get(ctx, "/users/by/username/"+url.PathEscape(username), params)
	if err != nil {
		return nil, err
	}

	var resp xUserResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode user response: %w", err)
	}

	if resp.Data == nil {
		if hasNotFoundError(resp.Errors) {
			return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("user response for %s carried no data", username)
	}

	profile := toProfile(resp.Data)

	x.log.WithFields(logrus.Fields{
		"username":  profile.Username,
		"followers": profile.Metrics.Followers,
	}).Info("Fetched profile from X API")

	return profile, nil
}

// FetchPosts fetches up to maxResults recent posts of the profile with the given id
func (x *XClient) FetchPosts(ctx context.Context, profileID string, maxResults int) ([]models.Post, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults < minMaxResults {
		maxResults = minMaxResults
	}
	if maxResults > maxMaxResults {
		maxResults = maxMaxResults
	}

	params := url.Values{}
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("tweet.fields", "created_at,public_metrics,entities,attachments,referenced_tweets")
	params.Set("expansions", "attachments.media_keys")
	params.Set("media.fields", "type")

	body, err := x.get(ctx, "/users/"+url.PathEscape(profileID)+"/tweets", params)
	if err != nil {
		return nil, err
	}

	var resp xTweetsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode tweets response: %w", err)
	}

	mediaTypes := make(map[string]string, len(resp.Includes.Media))
	for _, media := range resp.Includes.Media {
		mediaTypes[media.MediaKey] = media.Type
	}

	posts := make([]models.Post, 0, len(resp.Data))
	skipped := 0
	for i, raw := range resp.Data {
		var tweet xTweet
		if err := json.Unmarshal(raw, &tweet); err != nil {
			x.log.WithError(err).WithFields(logrus.Fields{
				"profile_id": profileID,
				"index":      i,
			}).Warn("Skipping malformed tweet")
			skipped++
			continue
		}
		posts = append(posts, toPost(&tweet, mediaTypes))
	}

	x.log.WithFields(logrus.Fields{
		"profile_id":  profileID,
		"post_count":  len(posts),
		"skipped":     skipped,
		"max_results": maxResults,
	}).Info("Fetched posts from X API")

	return posts, nil
}

// get performs an authenticated GET and maps failures onto the error taxonomy
func (x *XClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := x.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	endpoint := x.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+x.bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	x.updateRateLimits(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	case http.StatusTooManyRequests:
		var reset time.Time
		if unix := getHeaderAsInt(resp.Header, "X-Rate-Limit-Reset"); unix > 0 {
			reset = time.Unix(int64(unix), 0).UTC()
		}
		x.log.WithField("reset_at", reset).Warn("X API rate limit hit")
		return nil, &RateLimitError{ResetAt: reset}
	}

	x.log.WithFields(logrus.Fields{
		"path":          path,
		"status_code":   resp.StatusCode,
		"response_body": string(body),
	}).Error("X API error response")
	return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
}

// updateRateLimits records the x-rate-limit-* headers of a response
func (x *XClient) updateRateLimits(resp *http.Response) {
	limit := getHeaderAsInt(resp.Header, "X-Rate-Limit-Limit")
	remaining := getHeaderAsInt(resp.Header, "X-Rate-Limit-Remaining")
	reset := getHeaderAsInt(resp.Header, "X-Rate-Limit-Reset")

	// skip if we didn't get valid headers for some reason
	if limit == 0 && reset == 0 {
		return
	}

	x.rateHeadersMutex.Lock()
	x.rateLimit = limit
	x.rateRemaining = remaining
	if reset > 0 {
		x.rateReset = time.Unix(int64(reset), 0).UTC()
	}
	x.rateHeadersMutex.Unlock()

	x.log.WithFields(logrus.Fields{
		"limit":     limit,
		"remaining": remaining,
		"reset":     reset,
	}).Debug("Updated rate limit status from X headers")
}

func getHeaderAsInt(header http.Header, name string) int {
	value := header.Get(name)
	if value == "" {
		return 0
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	return intValue
}

func hasNotFoundError(errs []xError) bool {
	for _, e := range errs {
		if e.Title == "Not Found Error" || strings.HasSuffix(e.Type, "/resource-not-found") {
			return true
		}
	}
	return false
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func toProfile(u *xUser) *models.Profile {
	profile := &models.Profile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.Name,
		Description: u.Description,
		CreatedAt:   parseTimestamp(u.CreatedAt),
		Verified:    u.Verified,
		Metrics: models.ProfileMetrics{
			Followers: u.PublicMetrics.FollowersCount,
			Following: u.PublicMetrics.FollowingCount,
			PostCount: u.PublicMetrics.TweetCount,
		},
	}
	profile.Sanitize()
	return profile
}

func toPost(t *xTweet, mediaTypes map[string]string) models.Post {
	post := models.Post{
		ID:        t.ID,
		CreatedAt: parseTimestamp(t.CreatedAt),
		Engagement: models.Engagement{
			Likes:   max(t.PublicMetrics.LikeCount, 0),
			Reposts: max(t.PublicMetrics.RetweetCount, 0),
			Replies: max(t.PublicMetrics.ReplyCount, 0),
		},
		Hashtags: []string{},
	}

	for _, ref := range t.ReferencedTweets {
		switch ref.Type {
		case "retweeted":
			post.ContentFlags.IsRepost = true
		case "replied_to":
			post.ContentFlags.IsReply = true
		}
	}

	// a repost carries someone else's content; none of the other flags apply
	if post.ContentFlags.IsRepost {
		post.ContentFlags = models.ContentFlags{IsRepost: true}
		return post
	}

	for _, key := range t.Attachments.MediaKeys {
		switch mediaTypes[key] {
		case "video", "animated_gif":
			post.ContentFlags.HasVideo = true
			post.ContentFlags.HasMedia = true
		default:
			post.ContentFlags.HasMedia = true
		}
	}

	post.ContentFlags.HasPoll = len(t.Attachments.PollIDs) > 0
	post.ContentFlags.HasLink = len(t.Entities.URLs) > 0
	post.ContentFlags.HasMention = len(t.Entities.Mentions) > 0
	post.ContentFlags.HasHashtag = len(t.Entities.Hashtags) > 0

	hashtags := append([]xEntity(nil), t.Entities.Hashtags...)
	sort.SliceStable(hashtags, func(i, j int) bool {
		return hashtags[i].Start < hashtags[j].Start
	})
	for _, tag := range hashtags {
		if tag.Tag != "" {
			post.Hashtags = append(post.Hashtags, strings.ToLower(tag.Tag))
		}
	}

	return post
}
