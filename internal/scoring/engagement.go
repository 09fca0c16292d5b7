package scoring

import (
	"math"
	"time"

	"postgame-agent/internal/models"
)

// Engagement weights per counter
const (
	LikeWeight    = 1.0
	RepostWeight  = 2.0
	QuoteWeight   = 3.0
	ReplyWeight   = 2.5
	VerifiedBoost = 1.5
)

// Accounts below this follower count must show a minimum activity ratio
const (
	lowFollowerThreshold = 1000
	minActivityRatio     = 0.05
)

// RawEngagement is the weighted sum of the four engagement counters
func RawEngagement(m models.Metrics) float64 {
	return float64(m.Likes)*LikeWeight +
		float64(m.Reposts)*RepostWeight +
		float64(m.QuoteTweets)*QuoteWeight +
		float64(m.Replies)*ReplyWeight
}

// Engagement returns the follower-normalized, age-adjusted engagement score.
// Follower count and account age are floored at 1.
func Engagement(p *models.Post, now time.Time) float64 {
	followers := math.Max(float64(p.Author.FollowersCount), 1)
	ageDays := math.Max(float64(p.Author.AccountAgeDays(now)), 1)

	normalized := RawEngagement(p.Metrics) / math.Log10(followers+1)
	ageFactor := 0.7 + 0.3*math.Min(math.Log10(ageDays+1), 3)/3

	score := normalized * ageFactor
	if p.Author.Verified {
		score *= VerifiedBoost
	}
	return round(score, 4)
}

// PassesPreFilter rejects posts with no engagement at all and low-follower
// accounts that barely post relative to their audience.
func PassesPreFilter(p *models.Post) bool {
	if p.Metrics.Total() == 0 {
		return false
	}
	if p.Author.FollowersCount < lowFollowerThreshold && p.Author.ActivityRatio() < minActivityRatio {
		return false
	}
	return true
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
