package x

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"postgame-agent/internal/models"
	"postgame-agent/shared/config"
	"postgame-agent/shared/retry"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	ErrRateLimited  = errors.New("x api rate limit reached")
	ErrUnauthorized = errors.New("x api rejected credentials")
)

// maxPageSize is the recent-search page limit
const maxPageSize = 100

const (
	tweetFields = "created_at,public_metrics,conversation_id,context_annotations,referenced_tweets"
	userFields  = "created_at,public_metrics,verified,description"
	expansions  = "author_id,referenced_tweets.id"
)

// Client queries the X API v2 recent-search endpoint
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxResults int
	policy     retry.Policy
}

// NewClient authenticates with the bearer token when set, otherwise with the
// app-only client-credentials flow.
func NewClient(cfg *config.XConfig, policy retry.Policy) (*Client, error) {
	ctx := context.Background()

	var httpClient *http.Client
	switch {
	case cfg.BearerToken != "":
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.BearerToken,
			TokenType:   "Bearer",
		}))
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = cc.Client(ctx)
	default:
		return nil, errors.New("X_BEARER_TOKEN not set. Use --dry-run or add to .env.")
	}
	httpClient.Timeout = 30 * time.Second

	maxResults := cfg.MaxResultsPerQuery
	if maxResults <= 0 {
		maxResults = maxPageSize
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		maxResults: maxResults,
		policy:     policy,
	}, nil
}

type publicMetrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	QuoteCount   int `json:"quote_count"`
	ReplyCount   int `json:"reply_count"`
}

type userMetrics struct {
	FollowersCount int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
	TweetCount     int `json:"tweet_count"`
}

type apiTweet struct {
	ID                 string        `json:"id"`
	Text               string        `json:"text"`
	AuthorID           string        `json:"author_id"`
	CreatedAt          time.Time     `json:"created_at"`
	ConversationID     string        `json:"conversation_id"`
	PublicMetrics      publicMetrics `json:"public_metrics"`
	ContextAnnotations []struct {
		Entity struct {
			Name string `json:"name"`
		} `json:"entity"`
	} `json:"context_annotations"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

type apiUser struct {
	ID            string      `json:"id"`
	Username      string      `json:"username"`
	Name          string      `json:"name"`
	Verified      bool        `json:"verified"`
	Description   string      `json:"description"`
	CreatedAt     time.Time   `json:"created_at"`
	PublicMetrics userMetrics `json:"public_metrics"`
}

type searchResponse struct {
	Data     []apiTweet `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// Search returns up to the configured number of posts for query created in
// [start, end). A 429 surfaces as ErrRateLimited and 401/403 as
// ErrUnauthorized; neither is retried.
func (c *Client) Search(ctx context.Context, query string, start, end time.Time) ([]*models.Post, error) {
	var posts []*models.Post
	nextToken := ""

	for len(posts) < c.maxResults {
		pageSize := min(c.maxResults-len(posts), maxPageSize)
		// the endpoint rejects max_results below 10
		pageSize = max(pageSize, 10)

		page, err := retry.Do(ctx, c.policy, func() (*searchResponse, error) {
			return c.fetchPage(ctx, query, start, end, pageSize, nextToken)
		})
		if err != nil {
			return posts, err
		}

		posts = append(posts, toPosts(page)...)
		if page.Meta.NextToken == "" {
			break
		}
		nextToken = page.Meta.NextToken
	}

	if len(posts) > c.maxResults {
		posts = posts[:c.maxResults]
	}
	return posts, nil
}

func (c *Client) fetchPage(ctx context.Context, query string, start, end time.Time, pageSize int, nextToken string) (*searchResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start_time", start.UTC().Format(time.RFC3339))
	params.Set("end_time", end.UTC().Format(time.RFC3339))
	params.Set("max_results", strconv.Itoa(pageSize))
	params.Set("tweet.fields", tweetFields)
	params.Set("user.fields", userFields)
	params.Set("expansions", expansions)
	if nextToken != "" {
		params.Set("next_token", nextToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tweets/search/recent?"+params.Encode(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retry.Permanent(ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, retry.Permanent(fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("x api returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, retry.Permanent(fmt.Errorf("x api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var page searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &page, nil
}

func toPosts(page *searchResponse) []*models.Post {
	users := make(map[string]apiUser, len(page.Includes.Users))
	for _, u := range page.Includes.Users {
		users[u.ID] = u
	}

	posts := make([]*models.Post, 0, len(page.Data))
	for _, t := range page.Data {
		u, ok := users[t.AuthorID]
		if !ok {
			u = apiUser{ID: t.AuthorID, Username: "unknown"}
		}

		author := models.Author{
			ID:             u.ID,
			Username:       u.Username,
			Name:           u.Name,
			FollowersCount: u.PublicMetrics.FollowersCount,
			FollowingCount: u.PublicMetrics.FollowingCount,
			PostCount:      u.PublicMetrics.TweetCount,
			Verified:       u.Verified,
			Description:    u.Description,
			CreatedAt:      u.CreatedAt,
		}
		metrics := models.Metrics{
			Likes:       t.PublicMetrics.LikeCount,
			Reposts:     t.PublicMetrics.RetweetCount,
			QuoteTweets: t.PublicMetrics.QuoteCount,
			Replies:     t.PublicMetrics.ReplyCount,
		}

		p := models.NewPost(t.ID, t.Text, t.CreatedAt, author, metrics)
		p.ConversationID = t.ConversationID
		for _, ref := range t.ReferencedTweets {
			p.ReferencedIDs = append(p.ReferencedIDs, ref.ID)
		}
		for _, ca := range t.ContextAnnotations {
			if ca.Entity.Name != "" {
				p.ContextAnnotations = append(p.ContextAnnotations, ca.Entity.Name)
			}
		}
		posts = append(posts, p)
	}
	return posts
}
