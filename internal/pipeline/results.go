package pipeline

import "postgame-agent/internal/models"

// Result is what a stage returns. The engine translates it into the exact
// set of fields the stage owns, so a stage cannot leave a stale value behind.
type Result interface {
	Update() Update
	// Failure is the stage error message, empty on success
	Failure() string
	// Summary is a short human-readable note for the diagnostic log
	Summary() string
}

// Report carries the parts every result shares
type Report struct {
	Err  string
	Note string
}

func (r Report) Failure() string { return r.Err }
func (r Report) Summary() string { return r.Note }

// FetchResult replaces the raw posts
type FetchResult struct {
	Report
	Posts []*models.Post
}

func (r FetchResult) Update() Update {
	return Update{
		Values: State{RawPosts: r.Posts, Error: r.Err},
		Fields: []Field{FieldRawPosts, FieldError},
	}
}

// ScoreResult replaces the engagement-scored posts
type ScoreResult struct {
	Report
	Posts []*models.Post
}

func (r ScoreResult) Update() Update {
	return Update{
		Values: State{ScoredPosts: r.Posts, Error: r.Err},
		Fields: []Field{FieldScoredPosts, FieldError},
	}
}

// FilterResult replaces the credibility-filtered posts
type FilterResult struct {
	Report
	Posts []*models.Post
}

func (r FilterResult) Update() Update {
	return Update{
		Values: State{FilteredPosts: r.Posts, Error: r.Err},
		Fields: []Field{FieldFilteredPosts, FieldError},
	}
}

// SentimentResult carries the per-post annotations and the filtered posts
// with their sentiment fields written.
type SentimentResult struct {
	Report
	Annotations map[string]models.SentimentAnnotation
	Posts       []*models.Post
}

func (r SentimentResult) Update() Update {
	return Update{
		Values: State{Sentiment: r.Annotations, FilteredPosts: r.Posts, Error: r.Err},
		Fields: []Field{FieldSentiment, FieldFilteredPosts, FieldError},
	}
}

// NarrativeResult carries the ranked narratives and the filtered posts with
// their narrative cluster written. A failed extraction must re-emit the
// posts it was given.
type NarrativeResult struct {
	Report
	Narratives []models.Narrative
	Posts      []*models.Post
}

func (r NarrativeResult) Update() Update {
	return Update{
		Values: State{Narratives: r.Narratives, FilteredPosts: r.Posts, Error: r.Err},
		Fields: []Field{FieldNarratives, FieldFilteredPosts, FieldError},
	}
}

type OutlineResult struct {
	Report
	Outline *models.ScriptOutline
}

func (r OutlineResult) Update() Update {
	return Update{
		Values: State{Outline: r.Outline, Error: r.Err},
		Fields: []Field{FieldOutline, FieldError},
	}
}

type ScriptResult struct {
	Report
	Script *models.FinalScript
}

func (r ScriptResult) Update() Update {
	return Update{
		Values: State{Script: r.Script, Error: r.Err},
		Fields: []Field{FieldScript, FieldError},
	}
}

// QualityResult carries the verdict and a new script value with the report
// attached. A failed check still returns the unchanged script.
type QualityResult struct {
	Report
	Passed   bool
	Feedback string
	Script   *models.FinalScript
}

func (r QualityResult) Update() Update {
	return Update{
		Values: State{
			QualityPassed:   r.Passed,
			QualityFeedback: r.Feedback,
			Script:          r.Script,
			Error:           r.Err,
		},
		Fields: []Field{FieldQualityPassed, FieldQualityFeedback, FieldScript, FieldError},
	}
}

// RetryResult advances the quality retry counter
type RetryResult struct {
	Report
	Count int
}

func (r RetryResult) Update() Update {
	return Update{
		Values: State{RetryCount: r.Count},
		Fields: []Field{FieldRetryCount},
	}
}

// abortResult records an engine-level failure such as a recovered panic
type abortResult struct {
	Report
}

func (r abortResult) Update() Update {
	return Update{
		Values: State{Error: r.Err},
		Fields: []Field{FieldError},
	}
}
