package scriptwriter

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"postgame-agent/internal/models"
	"postgame-agent/internal/pipeline"
	"postgame-agent/shared/ai"
	"postgame-agent/shared/config"
)

type sectionWire struct {
	SectionName    string `json:"section_name"`
	Timestamp      string `json:"timestamp"`
	ContentNotes   string `json:"content_notes"`
	Content        string `json:"content"`
	StageDirection string `json:"stage_direction"`
}

type outlineWire struct {
	Title          string        `json:"title"`
	ThumbnailHook  string        `json:"thumbnail_hook"`
	TargetMinutes  float64       `json:"target_minutes"`
	Sections       []sectionWire `json:"sections"`
	NarrativesUsed []string      `json:"narratives_used"`
}

type outlineStage struct {
	llm
	cfg config.PipelineConfig
}

func (st *outlineStage) Name() pipeline.StageID { return pipeline.StageBuildOutline }

func (st *outlineStage) Run(ctx context.Context, s *pipeline.State) pipeline.Result {
	if len(s.Narratives) == 0 {
		return pipeline.OutlineResult{Report: pipeline.Report{Err: "No narratives available for outline."}}
	}

	raw, err := ai.CompleteJSON[outlineWire](ctx, st.completer, st.policy, outlinePrompt(marshalIndent(s.Narratives), st.cfg.TargetMinutes))
	if err != nil {
		st.logger.WithError(err).Error("Outline generation failed")
		return pipeline.OutlineResult{Report: pipeline.Report{Err: fmt.Sprintf("Outline error: %v", err)}}
	}

	outline := &models.ScriptOutline{
		Title:          raw.Title,
		ThumbnailHook:  raw.ThumbnailHook,
		TargetMinutes:  int(math.Round(raw.TargetMinutes)),
		NarrativesUsed: raw.NarrativesUsed,
	}
	if outline.Title == "" {
		outline.Title = "Untitled Video"
	}
	if outline.TargetMinutes <= 0 {
		outline.TargetMinutes = st.cfg.TargetMinutes
	}
	if len(outline.NarrativesUsed) == 0 {
		outline.NarrativesUsed = models.Titles(s.Narratives)
	}
	for _, sec := range raw.Sections {
		name := sec.SectionName
		if name == "" {
			name = "Untitled"
		}
		notes := sec.ContentNotes
		if notes == "" {
			notes = sec.Content
		}
		outline.Sections = append(outline.Sections, models.ScriptSection{
			Name:           name,
			Timestamp:      sec.Timestamp,
			Content:        notes,
			StageDirection: sec.StageDirection,
		})
	}

	return pipeline.OutlineResult{
		Report:  pipeline.Report{Note: fmt.Sprintf("outline %q with %d sections", outline.Title, len(outline.Sections))},
		Outline: outline,
	}
}

type scriptWire struct {
	Title                    string        `json:"title"`
	ThumbnailText            string        `json:"thumbnail_text"`
	Description              string        `json:"description"`
	Tags                     []string      `json:"tags"`
	EstimatedDurationMinutes *float64      `json:"estimated_duration_minutes"`
	Sections                 []sectionWire `json:"sections"`
}

type scriptStage struct {
	llm
	cfg config.PipelineConfig
}

func (st *scriptStage) Name() pipeline.StageID { return pipeline.StageGenerateScript }

// Run writes the full script from the outline. On a regeneration pass the
// previous quality feedback is handed to the model.
func (st *scriptStage) Run(ctx context.Context, s *pipeline.State) pipeline.Result {
	if s.Outline == nil {
		return pipeline.ScriptResult{Report: pipeline.Report{Err: "No outline available for script generation."}}
	}

	feedback := ""
	if s.RetryCount > 0 {
		feedback = s.QualityFeedback
	}
	req := scriptPrompt(marshalIndent(s.Outline), marshalIndent(s.Narratives), samplePosts(s.FilteredPosts, st.cfg.SamplePosts), feedback)

	raw, err := ai.CompleteJSON[scriptWire](ctx, st.completer, st.policy, req)
	if err != nil {
		st.logger.WithError(err).Error("Script generation failed")
		return pipeline.ScriptResult{Report: pipeline.Report{Err: fmt.Sprintf("Script generation error: %v", err)}}
	}

	script := &models.FinalScript{
		Title:                    raw.Title,
		ThumbnailText:            raw.ThumbnailText,
		Description:              raw.Description,
		Tags:                     raw.Tags,
		EstimatedDurationMinutes: 10.0,
	}
	if script.Title == "" {
		script.Title = s.Outline.Title
	}
	if script.ThumbnailText == "" {
		script.ThumbnailText = s.Outline.ThumbnailHook
	}
	if raw.EstimatedDurationMinutes != nil {
		script.EstimatedDurationMinutes = *raw.EstimatedDurationMinutes
	}
	for _, sec := range raw.Sections {
		script.Sections = append(script.Sections, models.ScriptSection{
			Name:           sec.SectionName,
			Timestamp:      sec.Timestamp,
			Content:        sec.Content,
			StageDirection: sec.StageDirection,
		})
	}
	script.FullText = models.JoinSpokenText(script.Sections)

	st.logger.Infof("✅ Script generated: '%s' (~%.1f min)", script.Title, script.EstimatedDurationMinutes)
	return pipeline.ScriptResult{
		Report: pipeline.Report{Note: fmt.Sprintf("script %q, %d sections", script.Title, len(script.Sections))},
		Script: script,
	}
}

// samplePosts formats the highest-engagement posts as paraphrase material
func samplePosts(posts []*models.Post, limit int) string {
	top := append([]*models.Post(nil), posts...)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].EngagementScore > top[j].EngagementScore
	})
	top = top[:min(len(top), max(limit, 0))]
	if len(top) == 0 {
		return "(no sample tweets available)"
	}

	lines := make([]string, 0, len(top))
	for _, p := range top {
		text := []rune(p.Text)
		if len(text) > 200 {
			text = text[:200]
		}
		lines = append(lines, fmt.Sprintf("- @%s (%s followers, cred=%.0f): %q",
			p.Author.Username, thousands(p.Author.FollowersCount), p.CredibilityScore, string(text)))
	}
	return strings.Join(lines, "\n")
}

// thousands renders n with comma separators
func thousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

type qualityWire struct {
	Passed            bool     `json:"passed"`
	OverallScore      float64  `json:"overall_score"`
	RetentionEstimate float64  `json:"retention_estimate"`
	Feedback          string   `json:"feedback"`
	Issues            []string `json:"issues"`
}

type qualityStage struct {
	llm
}

func (st *qualityStage) Name() pipeline.StageID { return pipeline.StageCheckQuality }

// Run grades the script. A failed call counts as a failed gate and keeps the
// current script so the retry loop can regenerate it.
func (st *qualityStage) Run(ctx context.Context, s *pipeline.State) pipeline.Result {
	if s.Script == nil {
		return pipeline.QualityResult{
			Report:   pipeline.Report{Err: "No script available for quality check."},
			Feedback: "No script to evaluate.",
		}
	}

	raw, err := ai.CompleteJSON[qualityWire](ctx, st.completer, st.policy, qualityPrompt(marshalIndent(s.Script)))
	if err != nil {
		st.logger.WithError(err).Error("Quality check failed")
		return pipeline.QualityResult{
			Report:   pipeline.Report{Err: err.Error()},
			Feedback: fmt.Sprintf("Quality check error: %v", err),
			Script:   s.Script,
		}
	}

	report := models.QualityReport{
		Passed:            raw.Passed,
		OverallScore:      raw.OverallScore,
		RetentionEstimate: raw.RetentionEstimate,
		Feedback:          raw.Feedback,
		Issues:            raw.Issues,
	}

	verdict := "FAILED"
	if report.Passed {
		verdict = "PASSED"
	}
	summary := fmt.Sprintf("%s (score %.0f, retention %.0f%%)", verdict, report.OverallScore, report.RetentionEstimate*100)
	st.logger.Infof("Quality %s", summary)

	return pipeline.QualityResult{
		Report:   pipeline.Report{Note: summary},
		Passed:   report.Passed,
		Feedback: report.Feedback,
		Script:   s.Script.WithQualityReport(report),
	}
}
