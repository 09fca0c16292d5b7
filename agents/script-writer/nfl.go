package scriptwriter

import (
	"fmt"
	"sort"
	"strings"

	"postgame-agent/internal/models"
)

// Teams are the 32 NFL team names used to tag what a window talked about
var Teams = []string{
	"Cardinals", "Falcons", "Ravens", "Bills", "Panthers", "Bears", "Bengals", "Browns",
	"Cowboys", "Broncos", "Lions", "Packers", "Texans", "Colts", "Jaguars", "Chiefs",
	"Raiders", "Chargers", "Rams", "Dolphins", "Vikings", "Patriots", "Saints", "Giants",
	"Jets", "Eagles", "Steelers", "49ers", "Seahawks", "Buccaneers", "Titans", "Commanders",
}

// BaseTerms are always searched
var BaseTerms = []string{"NFL", "NFL Sunday", "postgame"}

// BuildQueries renders the base terms plus extras as recent-search queries,
// skipping blanks and duplicates
func BuildQueries(extra []string) []string {
	seen := make(map[string]bool)
	var queries []string
	for _, term := range append(append([]string(nil), BaseTerms...), extra...) {
		term = strings.TrimSpace(term)
		if term == "" || seen[strings.ToLower(term)] {
			continue
		}
		seen[strings.ToLower(term)] = true
		queries = append(queries, fmt.Sprintf("(%s) lang:en -is:retweet -is:reply", term))
	}
	return queries
}

// TeamsMentioned returns the teams named in the posts, most mentioned first
func TeamsMentioned(posts []*models.Post) []string {
	counts := make(map[string]int)
	for _, p := range posts {
		text := strings.ToLower(p.Text)
		for _, team := range Teams {
			if strings.Contains(text, strings.ToLower(team)) {
				counts[team]++
			}
		}
	}

	teams := make([]string, 0, len(counts))
	for team := range counts {
		teams = append(teams, team)
	}
	sort.Slice(teams, func(i, j int) bool {
		if counts[teams[i]] != counts[teams[j]] {
			return counts[teams[i]] > counts[teams[j]]
		}
		return teams[i] < teams[j]
	})
	return teams
}
