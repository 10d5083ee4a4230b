package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/profile-analytics/models"
)

const userJSON = `{
	"data": {
		"id": "2244994945",
		"username": "XDevelopers",
		"name": "Developers",
		"description": "The voice of the X Dev team",
		"created_at": "2013-12-14T04:35:55.000Z",
		"verified": true,
		"public_metrics": {"followers_count": 583423, "following_count": 2048, "tweet_count": 14052}
	}
}`

const tweetsJSON = `{
	"data": [
		{
			"id": "1",
			"text": "Launch day! #Go #golang https://go.dev @gopher",
			"created_at": "2024-03-04T15:30:00.000Z",
			"public_metrics": {"retweet_count": 5, "reply_count": 2, "like_count": 40},
			"entities": {
				"hashtags": [{"start": 16, "tag": "golang"}, {"start": 12, "tag": "Go"}],
				"urls": [{"start": 24, "url": "https://t.co/x"}],
				"mentions": [{"start": 41, "username": "gopher"}]
			}
		},
		{
			"id": "2",
			"text": "Watch this",
			"created_at": "2024-03-09T09:00:00.000Z",
			"public_metrics": {"retweet_count": 1, "reply_count": 0, "like_count": 3},
			"attachments": {"media_keys": ["7_1"], "poll_ids": ["p1"]}
		},
		{
			"id": "3",
			"text": "RT @someone: look #trending",
			"created_at": "2024-03-10T20:00:00.000Z",
			"public_metrics": {"retweet_count": 9, "reply_count": 0, "like_count": 0},
			"entities": {"hashtags": [{"start": 19, "tag": "trending"}]},
			"referenced_tweets": [{"type": "retweeted", "id": "99"}]
		},
		{
			"id": "4",
			"text": "photo reply",
			"created_at": "not-a-date",
			"public_metrics": {"retweet_count": -3, "reply_count": 1, "like_count": 2},
			"attachments": {"media_keys": ["3_1"]},
			"referenced_tweets": [{"type": "replied_to", "id": "98"}]
		}
	],
	"includes": {"media": [{"media_key": "7_1", "type": "video"}, {"media_key": "3_1", "type": "photo"}]}
}`

func newTestClient(serverURL string) *XClient {
	log := logrus.New()
	log.SetOutput(io.Discard)
	// generous limit so tests are not throttled
	return NewXClient("test-token", serverURL, 60000, 5*time.Second, log)
}

func TestGetHeaderAsInt(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string][]string
		key      string
		expected int
	}{
		{
			name: "Valid integer header",
			headers: map[string][]string{
				"X-Rate-Limit-Remaining": {"42"},
			},
			key:      "X-Rate-Limit-Remaining",
			expected: 42,
		},
		{
			name: "Empty header value",
			headers: map[string][]string{
				"X-Rate-Limit-Remaining": {""},
			},
			key:      "X-Rate-Limit-Remaining",
			expected: 0,
		},
		{
			name: "Missing header",
			headers: map[string][]string{
				"X-Rate-Limit-Limit": {"10"},
			},
			key:      "X-Rate-Limit-Remaining",
			expected: 0,
		},
		{
			name: "Non-integer header value",
			headers: map[string][]string{
				"X-Rate-Limit-Remaining": {"not-a-number"},
			},
			key:      "X-Rate-Limit-Remaining",
			expected: 0,
		},
		{
			name: "Multiple values for same header (should use first)",
			headers: map[string][]string{
				"X-Rate-Limit-Remaining": {"100", "200"},
			},
			key:      "X-Rate-Limit-Remaining",
			expected: 100,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			header := http.Header(tc.headers)
			result := getHeaderAsInt(header, tc.key)
			if result != tc.expected {
				t.Errorf("getHeaderAsInt(%v, %q) = %d; want %d",
					header, tc.key, result, tc.expected)
			}
		})
	}
}

func TestFetchProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/by/username/XDevelopers", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("user.fields"), "public_metrics")

		w.Header().Set("X-Rate-Limit-Limit", "300")
		w.Header().Set("X-Rate-Limit-Remaining", "299")
		w.Header().Set("X-Rate-Limit-Reset", "1710000000")
		io.WriteString(w, userJSON)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	profile, err := client.FetchProfile(context.Background(), "XDevelopers")
	require.NoError(t, err)

	assert.Equal(t, "2244994945", profile.ID)
	assert.Equal(t, "XDevelopers", profile.Username)
	assert.Equal(t, "Developers", profile.DisplayName)
	assert.True(t, profile.Verified)
	assert.Equal(t, models.ProfileMetrics{Followers: 583423, Following: 2048, PostCount: 14052}, profile.Metrics)
	assert.Equal(t, time.Date(2013, 12, 14, 4, 35, 55, 0, time.UTC), profile.CreatedAt)

	remaining, limit, reset := client.GetRateLimitStatus()
	assert.Equal(t, 299, remaining)
	assert.Equal(t, 300, limit)
	assert.Equal(t, time.Unix(1710000000, 0).UTC(), reset)
}

func TestFetchProfileNotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{
			name:   "Errors payload with 200",
			status: http.StatusOK,
			body:   `{"errors":[{"title":"Not Found Error","detail":"Could not find user with username: [nobody].","type":"https://api.twitter.com/2/problems/resource-not-found"}]}`,
		},
		{
			name:   "Plain 404",
			status: http.StatusNotFound,
			body:   `{}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).FetchProfile(context.Background(), "nobody")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestFetchProfileRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Rate-Limit-Limit", "300")
		w.Header().Set("X-Rate-Limit-Remaining", "0")
		w.Header().Set("X-Rate-Limit-Reset", "1710000900")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"title":"Too Many Requests"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchProfile(context.Background(), "golang")
	require.Error(t, err)

	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, time.Unix(1710000900, 0).UTC(), rateErr.ResetAt)
	assert.Contains(t, rateErr.Error(), "2024-03-09T")
}

func TestFetchProfileServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "upstream down")
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchProfile(context.Background(), "golang")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))

	var rateErr *RateLimitError
	assert.False(t, errors.As(err, &rateErr))
	assert.Contains(t, err.Error(), "503")
}

func TestFetchPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/2244994945/tweets", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("max_results"))
		assert.Equal(t, "attachments.media_keys", r.URL.Query().Get("expansions"))
		io.WriteString(w, tweetsJSON)
	}))
	defer server.Close()

	posts, err := newTestClient(server.URL).FetchPosts(context.Background(), "2244994945", 50)
	require.NoError(t, err)
	require.Len(t, posts, 4)

	// hashtags ordered by position in the text, lowercased
	first := posts[0]
	assert.Equal(t, []string{"go", "golang"}, first.Hashtags)
	assert.Equal(t, models.Engagement{Likes: 40, Reposts: 5, Replies: 2}, first.Engagement)
	assert.Equal(t, models.ContentFlags{HasLink: true, HasHashtag: true, HasMention: true}, first.ContentFlags)
	assert.Equal(t, time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC), first.CreatedAt)

	video := posts[1]
	assert.Equal(t, models.ContentFlags{HasMedia: true, HasVideo: true, HasPoll: true}, video.ContentFlags)
	assert.Empty(t, video.Hashtags)

	// reposts short-circuit every other flag
	repost := posts[2]
	assert.Equal(t, models.ContentFlags{IsRepost: true}, repost.ContentFlags)
	assert.Empty(t, repost.Hashtags)

	// malformed values default rather than fail
	reply := posts[3]
	assert.True(t, reply.CreatedAt.IsZero())
	assert.Equal(t, 0, reply.Engagement.Reposts)
	assert.Equal(t, models.ContentFlags{HasMedia: true, IsReply: true}, reply.ContentFlags)
}

func TestFetchPostsSkipsMalformedTweet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[
			{"id":"good","created_at":"2024-03-04T15:30:00.000Z","public_metrics":{"like_count":40}},
			{"id":"bad","created_at":"2024-03-04T16:30:00.000Z","public_metrics":{"like_count":"lots"}},
			{"id":"also-good","public_metrics":{"reply_count":3}}
		]}`)
	}))
	defer server.Close()

	posts, err := newTestClient(server.URL).FetchPosts(context.Background(), "1", 50)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "good", posts[0].ID)
	assert.Equal(t, 40, posts[0].Engagement.Likes)
	assert.Equal(t, "also-good", posts[1].ID)
	assert.Equal(t, 3, posts[1].Engagement.Replies)
}

func TestFetchPostsClampsMaxResults(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Query().Get("max_results"))
		io.WriteString(w, `{"meta":{"result_count":0}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	for _, n := range []int{0, 2, 500} {
		posts, err := client.FetchPosts(context.Background(), "1", n)
		require.NoError(t, err)
		assert.Empty(t, posts)
	}

	assert.Equal(t, []string{"50", "5", "100"}, seen)
}

func TestFetchHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, userJSON)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).FetchProfile(ctx, "XDevelopers")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
