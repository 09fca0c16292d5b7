package scoring

import (
	"math"
	"regexp"
	"strings"
	"time"

	"postgame-agent/internal/models"
)

var insiderKeywords = []string{
	"nfl insider", "nfl network", "espn", "beat reporter", "reporter",
	"analyst", "correspondent", "nfl draft", "senior writer", "staff writer",
	"columnist", "editor", "host",
}

var formerPlayerKeywords = []string{
	"former nfl", "retired nfl", "super bowl champion", "pro bowl",
	"ex-nfl", "played in the nfl", "nfl veteran",
}

// Handle fragments of established outlets and reporters
var majorOutlets = []string{
	"espn", "nfl", "theringer", "theathletic", "bleacherreport",
	"foxsports", "cbssports", "nbcsports", "profootballtalk", "pff",
	"nflnetwork", "adamschefter", "rapsheet", "fieldyates", "diannaespn",
	"taborgate",
}

var memePattern = regexp.MustCompile(`(?i)(parody|meme|fan page|not affiliated|satire)`)

const (
	verifiedPoints    = 20.0
	keywordPoints     = 10.0
	keywordCap        = 30.0
	formerPlayerScale = 0.8
	outletPoints      = 25.0
	outletCap         = 25.0
	memePenalty       = 0.3
	maxCredibility    = 100.0
)

type tier struct {
	min    int
	points float64
}

var followerTiers = []tier{
	{500_000, 25},
	{100_000, 20},
	{25_000, 12},
	{5_000, 6},
}

var accountAgeTiers = []tier{
	{5 * 365, 10},
	{2 * 365, 6},
	{365, 3},
}

// Credibility returns an additive source-credibility score in [0, 100]
func Credibility(p *models.Post, now time.Time) float64 {
	a := p.Author
	bio := strings.ToLower(a.Description)
	handle := strings.ToLower(a.Username)

	score := 0.0
	if a.Verified {
		score += verifiedPoints
	}
	score += tierPoints(followerTiers, a.FollowersCount)

	score += math.Min(float64(countMatches(bio, insiderKeywords))*keywordPoints, keywordCap)
	score += math.Min(float64(countMatches(bio, formerPlayerKeywords))*keywordPoints, keywordCap) * formerPlayerScale
	score += math.Min(float64(countMatches(handle, majorOutlets))*outletPoints, outletCap)

	score += tierPoints(accountAgeTiers, a.AccountAgeDays(now))

	if memePattern.MatchString(a.Description) {
		score *= memePenalty
	}

	return round(math.Max(0, math.Min(score, maxCredibility)), 2)
}

func tierPoints(tiers []tier, v int) float64 {
	for _, t := range tiers {
		if v >= t.min {
			return t.points
		}
	}
	return 0
}

func countMatches(s string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			n++
		}
	}
	return n
}
