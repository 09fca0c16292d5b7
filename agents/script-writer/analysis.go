package scriptwriter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"postgame-agent/internal/models"
	"postgame-agent/internal/pipeline"
	"postgame-agent/shared/ai"
	"postgame-agent/shared/config"
	"postgame-agent/shared/retry"

	"github.com/sirupsen/logrus"
)

// llm bundles what every model-backed stage needs
type llm struct {
	completer ai.Completer
	policy    retry.Policy
	logger    logrus.FieldLogger
}

func marshalIndent(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "null"
	}
	return string(data)
}

type sentimentInput struct {
	TweetID         string  `json:"tweet_id"`
	Text            string  `json:"text"`
	EngagementScore float64 `json:"engagement_score"`
}

type sentimentWire struct {
	TweetID    string   `json:"tweet_id"`
	Sentiment  string   `json:"sentiment"`
	Intensity  float64  `json:"intensity"`
	Emotion    string   `json:"emotion"`
	KeyPhrases []string `json:"key_phrases"`
}

type sentimentStage struct {
	llm
	cfg config.PipelineConfig
}

func (st *sentimentStage) Name() pipeline.StageID { return pipeline.StageClusterSentiment }

// Run annotates the filtered posts in fixed-size batches. A batch that fails
// after retries is skipped and its posts keep the default sentiment.
func (st *sentimentStage) Run(ctx context.Context, s *pipeline.State) pipeline.Result {
	if len(s.FilteredPosts) == 0 {
		return pipeline.SentimentResult{Report: pipeline.Report{Err: "No tweets for sentiment analysis."}}
	}

	posts := models.ClonePosts(s.FilteredPosts)
	annotations := make(map[string]models.SentimentAnnotation)
	batchSize := max(st.cfg.SentimentBatchSize, 1)
	failed := 0

	for i := 0; i < len(posts); i += batchSize {
		batch := posts[i:min(i+batchSize, len(posts))]
		inputs := make([]sentimentInput, 0, len(batch))
		for _, p := range batch {
			inputs = append(inputs, sentimentInput{TweetID: p.ID, Text: p.Text, EngagementScore: p.EngagementScore})
		}

		out, err := ai.CompleteJSON[[]sentimentWire](ctx, st.completer, st.policy, sentimentPrompt(len(batch), marshalIndent(inputs)))
		if err != nil {
			failed++
			st.logger.WithError(err).Warnf("⚠️  Sentiment batch %d failed, skipping", i/batchSize+1)
			continue
		}

		for _, w := range out {
			if w.TweetID == "" {
				continue
			}
			label := w.Sentiment
			if label == "" {
				label = "neutral"
			}
			annotations[w.TweetID] = models.SentimentAnnotation{
				PostID:     w.TweetID,
				Sentiment:  label,
				Intensity:  w.Intensity,
				Emotion:    w.Emotion,
				KeyPhrases: w.KeyPhrases,
			}
		}
	}

	for _, p := range posts {
		if a, ok := annotations[p.ID]; ok {
			p.SentimentLabel = a.Sentiment
			p.SentimentIntensity = a.Intensity
		}
	}

	note := fmt.Sprintf("annotated %d/%d posts", len(annotations), len(posts))
	if failed > 0 {
		note += fmt.Sprintf(", %d batch(es) skipped", failed)
	}
	return pipeline.SentimentResult{
		Report:      pipeline.Report{Note: note},
		Annotations: annotations,
		Posts:       posts,
	}
}

type narrativeInput struct {
	TweetID          string   `json:"tweet_id"`
	Text             string   `json:"text"`
	EngagementScore  float64  `json:"engagement_score"`
	CredibilityScore float64  `json:"credibility_score"`
	Author           string   `json:"author"`
	Verified         bool     `json:"verified"`
	Sentiment        string   `json:"sentiment,omitempty"`
	Intensity        *float64 `json:"intensity,omitempty"`
	Emotion          string   `json:"emotion,omitempty"`
	KeyPhrases       []string `json:"key_phrases,omitempty"`
}

type narrativeWire struct {
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	Emotion          string   `json:"emotion"`
	Intensity        *float64 `json:"intensity"`
	Stance           string   `json:"stance"`
	TweetIDs         []string `json:"tweet_ids"`
	KeyPhrases       []string `json:"key_phrases"`
	CounterArguments []string `json:"counter_arguments"`
	RelevanceScore   *float64 `json:"relevance_score"`
}

type narrativeStage struct {
	llm
	cfg config.PipelineConfig
}

func (st *narrativeStage) Name() pipeline.StageID { return pipeline.StageExtractNarratives }

// Run extracts the ranked narratives and writes each filtered post's cluster
// index. The posts are re-emitted on every path since the stage owns them.
func (st *narrativeStage) Run(ctx context.Context, s *pipeline.State) pipeline.Result {
	if len(s.FilteredPosts) == 0 {
		return pipeline.NarrativeResult{Report: pipeline.Report{Err: "No tweets for narrative extraction."}}
	}

	inputs := make([]narrativeInput, 0, len(s.FilteredPosts))
	for _, p := range s.FilteredPosts {
		in := narrativeInput{
			TweetID:          p.ID,
			Text:             p.Text,
			EngagementScore:  p.EngagementScore,
			CredibilityScore: p.CredibilityScore,
			Author:           p.Author.Username,
			Verified:         p.Author.Verified,
		}
		if a, ok := s.Sentiment[p.ID]; ok {
			intensity := a.Intensity
			in.Sentiment = a.Sentiment
			in.Intensity = &intensity
			in.Emotion = a.Emotion
			in.KeyPhrases = a.KeyPhrases
		}
		inputs = append(inputs, in)
	}

	numClusters := max(st.cfg.NumNarratives, 1)
	raw, err := ai.CompleteJSON[[]narrativeWire](ctx, st.completer, st.policy, narrativesPrompt(len(inputs), numClusters, marshalIndent(inputs)))
	if err != nil {
		st.logger.WithError(err).Error("Narrative extraction failed")
		return pipeline.NarrativeResult{
			Report: pipeline.Report{Err: fmt.Sprintf("Narrative extraction error: %v", err)},
			Posts:  s.FilteredPosts,
		}
	}
	if len(raw) == 0 {
		return pipeline.NarrativeResult{
			Report: pipeline.Report{Err: "Narrative extraction returned no narratives."},
			Posts:  s.FilteredPosts,
		}
	}

	narratives := make([]models.Narrative, 0, len(raw))
	for i, w := range raw {
		narratives = append(narratives, narrativeFromWire(i, w))
	}
	sort.SliceStable(narratives, func(i, j int) bool {
		return narratives[i].RelevanceScore > narratives[j].RelevanceScore
	})

	posts := assignClusters(s.FilteredPosts, narratives)
	return pipeline.NarrativeResult{
		Report:     pipeline.Report{Note: fmt.Sprintf("extracted %d narratives", len(narratives))},
		Narratives: narratives,
		Posts:      posts,
	}
}

func narrativeFromWire(i int, w narrativeWire) models.Narrative {
	n := models.Narrative{
		Title:            w.Title,
		Summary:          w.Summary,
		Emotion:          w.Emotion,
		Intensity:        0.5,
		Stance:           w.Stance,
		SupportingIDs:    w.TweetIDs,
		KeyPhrases:       w.KeyPhrases,
		CounterArguments: w.CounterArguments,
		RelevanceScore:   float64(100 - i*15),
	}
	if n.Title == "" {
		n.Title = fmt.Sprintf("Narrative %d", i+1)
	}
	if n.Emotion == "" {
		n.Emotion = "neutral"
	}
	if n.Stance == "" {
		n.Stance = models.StanceDivided
	}
	if w.Intensity != nil {
		n.Intensity = *w.Intensity
	}
	if w.RelevanceScore != nil {
		n.RelevanceScore = *w.RelevanceScore
	}
	return n
}

// assignClusters returns copies of posts with NarrativeCluster set to the
// index of the first narrative that lists them
func assignClusters(posts []*models.Post, narratives []models.Narrative) []*models.Post {
	cluster := make(map[string]int)
	for i, n := range narratives {
		for _, id := range n.SupportingIDs {
			if _, ok := cluster[id]; !ok {
				cluster[id] = i
			}
		}
	}

	out := models.ClonePosts(posts)
	for _, p := range out {
		p.NarrativeCluster = models.UnassignedCluster
		if i, ok := cluster[p.ID]; ok {
			p.NarrativeCluster = i
		}
	}
	return out
}
