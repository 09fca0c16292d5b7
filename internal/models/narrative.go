package models

// SentimentAnnotation is the per-post payload produced by sentiment analysis
type SentimentAnnotation struct {
	PostID     string   `json:"post_id"`
	Sentiment  string   `json:"sentiment"` // positive / negative / neutral / mixed
	Intensity  float64  `json:"intensity"` // 0-1
	Emotion    string   `json:"emotion"`
	KeyPhrases []string `json:"key_phrases"`
}

// Stance values for a narrative
const (
	StanceConsensus = "consensus"
	StanceDivided   = "divided"
	StancePolarized = "polarized"
)

// Narrative is a dominant storyline extracted from the scored posts
type Narrative struct {
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	Emotion          string   `json:"emotion"`
	Intensity        float64  `json:"intensity"`
	Stance           string   `json:"stance"`
	SupportingIDs    []string `json:"supporting_post_ids"`
	KeyPhrases       []string `json:"key_phrases"`
	CounterArguments []string `json:"counter_arguments"`
	RelevanceScore   float64  `json:"relevance_score"` // 0-100
}

// Titles returns the narrative titles in order
func Titles(narratives []Narrative) []string {
	titles := make([]string, 0, len(narratives))
	for _, n := range narratives {
		titles = append(titles, n.Title)
	}
	return titles
}
