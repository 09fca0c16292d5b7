package scriptwriter

import (
	"time"

	"postgame-agent/internal/models"
)

type sample struct {
	id, username, name, bio, text string
	followers                     int
	verified                      bool
	likes, reposts, quotes, reply int
}

var samples = []sample{
	{
		id: "mock_001", username: "NFLAnalyst", name: "NFL Analyst",
		bio:       "NFL analyst for ESPN. 15 years covering football.",
		text:      "Mahomes just did it AGAIN. Down 10 in the 4th quarter and he engineers two scoring drives like it's nothing. At this point you can't bet against him. Chiefs Kingdom! 🏈🔥",
		followers: 250000, verified: true,
		likes: 4500, reposts: 1200, quotes: 350, reply: 800,
	},
	{
		id: "mock_002", username: "DetroitBeatWriter", name: "Detroit Beat",
		bio:       "Beat reporter covering the Detroit Lions for The Athletic.",
		text:      "That pass interference no-call on 3rd down changed the entire game. The Lions were ROBBED. The league needs to look at how these calls are made in crunch time.",
		followers: 85000, verified: true,
		likes: 8200, reposts: 3100, quotes: 900, reply: 2400,
	},
	{
		id: "mock_003", username: "PFF", name: "Pro Football Focus",
		bio:       "The leader in football analytics. Data-driven NFL coverage.",
		text:      "Brock Purdy today: 340 yds, 4 TD, 0 INT. Every week the 'system QB' label looks worse. The tape says he's throwing guys open and reading the field at an elite level.",
		followers: 1500000, verified: true,
		likes: 12000, reposts: 4500, quotes: 1200, reply: 3500,
	},
	{
		id: "mock_004", username: "CowboysInsider", name: "CowboysInsider",
		bio:       "Senior NFL correspondent. Former player, 8 years in the league.",
		text:      "Another fourth-quarter collapse for the Cowboys. The coaching staff has to answer for that clock management. Burning two timeouts before the two-minute warning is inexcusable.",
		followers: 120000, verified: true,
		likes: 6800, reposts: 2200, quotes: 750, reply: 1900,
	},
	{
		id: "mock_005", username: "NFLDraftScout", name: "NFLDraftScout",
		bio:       "Football analyst and draft scout. Film study and player evaluations.",
		text:      "The Bills defense is legit. 6 sacks and 3 turnovers against a top-10 offense. Nobody is talking about this unit and they might be the best in the AFC.",
		followers: 45000, verified: false,
		likes: 2100, reposts: 600, quotes: 180, reply: 420,
	},
	{
		id: "mock_006", username: "PhillyFootball", name: "Philly Football Talk",
		bio:       "Philadelphia Eagles coverage. Fan account with hot takes.",
		text:      "Eagles drop another one and Hurts looked lost out there. Something has to change before the trade deadline or this season is slipping away.",
		followers: 68000, verified: false,
		likes: 3400, reposts: 980, quotes: 290, reply: 1100,
	},
	{
		id: "mock_007", username: "RavensReport", name: "RavensReport",
		bio:       "Covering the Baltimore Ravens. NFL Network contributor.",
		text:      "Lamar Jackson is the MVP and it isn't close. 3 passing TDs and 95 rushing yards. No other player in the league changes a game plan like he does.",
		followers: 95000, verified: true,
		likes: 7600, reposts: 2800, quotes: 680, reply: 1600,
	},
	{
		id: "mock_008", username: "AdamSchefter", name: "AdamSchefter",
		bio:       "ESPN Senior NFL Insider. Breaking news and analysis.",
		text:      "This rookie QB class is historic. Five first-round quarterbacks started today and three of them won. The future of the league is arriving faster than anyone expected.",
		followers: 10000000, verified: true,
		likes: 25000, reposts: 8500, quotes: 2100, reply: 5200,
	},
}

// SamplePosts returns the eight built-in posts used by dry runs. They are
// stamped with now so scoring sees them as fresh.
func SamplePosts(now time.Time) []*models.Post {
	authorCreated := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

	posts := make([]*models.Post, 0, len(samples))
	for _, s := range samples {
		author := models.Author{
			ID:             "user_" + s.id,
			Username:       s.username,
			Name:           s.name,
			FollowersCount: s.followers,
			Verified:       s.verified,
			Description:    s.bio,
			CreatedAt:      authorCreated,
		}
		metrics := models.Metrics{
			Likes:       s.likes,
			Reposts:     s.reposts,
			QuoteTweets: s.quotes,
			Replies:     s.reply,
		}
		posts = append(posts, models.NewPost(s.id, s.text, now, author, metrics))
	}
	return posts
}
