package models

import "time"

// Author holds the public metadata of a post's author
type Author struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	PostCount      int       `json:"post_count"`
	Verified       bool      `json:"verified"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

// AccountAgeDays returns the account age in whole days, at least 1 when the
// creation time is known and 0 when it is not.
func (a Author) AccountAgeDays(now time.Time) int {
	if a.CreatedAt.IsZero() {
		return 0
	}
	days := int(now.Sub(a.CreatedAt).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// ActivityRatio is posts per follower, a proxy for real engagement
func (a Author) ActivityRatio() float64 {
	if a.FollowersCount == 0 {
		return 0
	}
	return float64(a.PostCount) / float64(a.FollowersCount)
}

// Metrics are the public engagement counters of a post
type Metrics struct {
	Likes       int `json:"likes"`
	Reposts     int `json:"reposts"`
	QuoteTweets int `json:"quote_tweets"`
	Replies     int `json:"replies"`
}

// Total is the sum of all four counters
func (m Metrics) Total() int {
	return m.Likes + m.Reposts + m.QuoteTweets + m.Replies
}

// Post is a normalized social post plus the scores computed by the pipeline.
// Each computed field has exactly one pipeline stage that writes it.
type Post struct {
	ID                 string    `json:"id"`
	Text               string    `json:"text"`
	CreatedAt          time.Time `json:"created_at"`
	Author             Author    `json:"author"`
	Metrics            Metrics   `json:"metrics"`
	ConversationID     string    `json:"conversation_id,omitempty"`
	ReferencedIDs      []string  `json:"referenced_ids,omitempty"`
	ContextAnnotations []string  `json:"context_annotations,omitempty"`

	EngagementScore    float64 `json:"engagement_score"`
	CredibilityScore   float64 `json:"credibility_score"`
	SentimentLabel     string  `json:"sentiment_label"`
	SentimentIntensity float64 `json:"sentiment_intensity"`
	NarrativeCluster   int     `json:"narrative_cluster"`
}

// UnassignedCluster marks a post that belongs to no narrative
const UnassignedCluster = -1

// NewPost returns a post with its computed fields at their defaults
func NewPost(id, text string, createdAt time.Time, author Author, metrics Metrics) *Post {
	return &Post{
		ID:               id,
		Text:             text,
		CreatedAt:        createdAt,
		Author:           author,
		Metrics:          metrics,
		NarrativeCluster: UnassignedCluster,
	}
}

// Clone returns a deep copy so a stage can write its computed field without
// touching the posts held by earlier state fields.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	c.ReferencedIDs = append([]string(nil), p.ReferencedIDs...)
	c.ContextAnnotations = append([]string(nil), p.ContextAnnotations...)
	return &c
}

// ClonePosts deep-copies a slice of posts
func ClonePosts(posts []*Post) []*Post {
	if posts == nil {
		return nil
	}
	out := make([]*Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}
