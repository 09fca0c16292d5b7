package scriptwriter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"postgame-agent/internal/models"
	"postgame-agent/internal/pipeline"
	"postgame-agent/internal/scoring"
	"postgame-agent/shared/config"
)

type engagementStage struct {
	cfg config.PipelineConfig
	now func() time.Time
}

func (e *engagementStage) Name() pipeline.StageID { return pipeline.StageScoreEngagement }

// Run scores the posts that survive the pre-filter and keeps those at or above
// the engagement threshold. When none qualify it keeps the best scored posts
// up to the fallback cap; when none survive the pre-filter every raw post is
// scored instead so a non-empty input never yields an empty output.
func (e *engagementStage) Run(_ context.Context, s *pipeline.State) pipeline.Result {
	if len(s.RawPosts) == 0 {
		return pipeline.ScoreResult{Report: pipeline.Report{Err: "No raw tweets to score."}}
	}

	now := e.now()
	var pool []*models.Post
	for _, p := range s.RawPosts {
		if scoring.PassesPreFilter(p) {
			pool = append(pool, p)
		}
	}
	rejected := len(s.RawPosts) - len(pool)
	if len(pool) == 0 {
		pool = s.RawPosts
	}

	scored := make([]*models.Post, 0, len(pool))
	for _, p := range pool {
		c := p.Clone()
		c.EngagementScore = scoring.Engagement(c, now)
		scored = append(scored, c)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].EngagementScore > scored[j].EngagementScore
	})

	var kept []*models.Post
	for _, p := range scored {
		if p.EngagementScore >= e.cfg.MinEngagement {
			kept = append(kept, p)
		}
	}

	note := fmt.Sprintf("%d/%d posts at engagement >= %.0f (%d pre-filtered)", len(kept), len(s.RawPosts), e.cfg.MinEngagement, rejected)
	if len(kept) == 0 {
		kept = scored[:min(len(scored), max(e.cfg.EngagementFallbackCap, 1))]
		note = fmt.Sprintf("no post reached engagement %.0f, kept top %d", e.cfg.MinEngagement, len(kept))
	}
	return pipeline.ScoreResult{Report: pipeline.Report{Note: note}, Posts: kept}
}

type credibilityStage struct {
	cfg config.PipelineConfig
	now func() time.Time
}

func (c *credibilityStage) Name() pipeline.StageID { return pipeline.StageFilterCredibility }

func (c *credibilityStage) Run(_ context.Context, s *pipeline.State) pipeline.Result {
	if len(s.ScoredPosts) == 0 {
		return pipeline.FilterResult{Report: pipeline.Report{Err: "No scored tweets to filter."}}
	}

	now := c.now()
	rated := make([]*models.Post, 0, len(s.ScoredPosts))
	var kept []*models.Post
	for _, p := range s.ScoredPosts {
		r := p.Clone()
		r.CredibilityScore = scoring.Credibility(r, now)
		rated = append(rated, r)
		if r.CredibilityScore >= c.cfg.MinCredibility {
			kept = append(kept, r)
		}
	}

	if len(kept) > 0 {
		return pipeline.FilterResult{
			Report: pipeline.Report{Note: fmt.Sprintf("%d/%d posts at credibility >= %.0f", len(kept), len(rated), c.cfg.MinCredibility)},
			Posts:  kept,
		}
	}

	sort.SliceStable(rated, func(i, j int) bool {
		return rated[i].CredibilityScore > rated[j].CredibilityScore
	})
	kept = rated[:min(len(rated), max(c.cfg.CredibilityFallbackCap, 1))]
	return pipeline.FilterResult{
		Report: pipeline.Report{Note: fmt.Sprintf("no post reached credibility %.0f, kept top %d", c.cfg.MinCredibility, len(kept))},
		Posts:  kept,
	}
}
