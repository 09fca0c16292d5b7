package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Stage is one unit of pipeline work. Run must treat the state as read-only
// and report everything, failures included, through its Result.
type Stage interface {
	Name() StageID
	Run(ctx context.Context, s *State) Result
}

// Status is the terminal condition of a run
type Status string

const (
	StatusCompleted         Status = "completed"
	StatusAbortedEmptyInput Status = "aborted_empty_input"
	StatusAbortedError      Status = "aborted_error"
)

// Outcome is the result of one graph execution
type Outcome struct {
	Status   Status
	State    *State
	Steps    int
	Duration time.Duration
}

// Observer receives stage and run completions, e.g. for metrics
type Observer interface {
	StageCompleted(stage StageID, duration time.Duration, failed bool)
	RunCompleted(status Status, duration time.Duration)
}

// Stages are the eight stage implementations the script graph wires together
type Stages struct {
	Fetch             Stage
	ScoreEngagement   Stage
	FilterCredibility Stage
	ClusterSentiment  Stage
	ExtractNarratives Stage
	BuildOutline      Stage
	GenerateScript    Stage
	CheckQuality      Stage
}

// Graph executes stages strictly one at a time from the entry stage until a
// transition returns End.
type Graph struct {
	entry      StageID
	stages     map[StageID]Stage
	edges      map[StageID]Transition
	maxRetries int
	maxSteps   int
	observer   Observer
	logger     logrus.FieldLogger
}

type Option func(*Graph)

func WithObserver(o Observer) Option {
	return func(g *Graph) { g.observer = o }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(g *Graph) { g.logger = l }
}

// New wires the fixed script graph:
//
//	fetch → score_engagement → filter_credibility → cluster_sentiment →
//	extract_narratives → build_outline → generate_script → check_quality
//
// with an early end after an empty fetch and a bounded loop from
// check_quality back to generate_script through increment_retry.
func New(st Stages, maxRetries int, opts ...Option) (*Graph, error) {
	if maxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", maxRetries)
	}

	g := &Graph{
		entry:      StageFetch,
		stages:     make(map[StageID]Stage),
		edges:      make(map[StageID]Transition),
		maxRetries: maxRetries,
		logger:     logrus.StandardLogger(),
	}

	named := []struct {
		id    StageID
		stage Stage
	}{
		{StageFetch, st.Fetch},
		{StageScoreEngagement, st.ScoreEngagement},
		{StageFilterCredibility, st.FilterCredibility},
		{StageClusterSentiment, st.ClusterSentiment},
		{StageExtractNarratives, st.ExtractNarratives},
		{StageBuildOutline, st.BuildOutline},
		{StageGenerateScript, st.GenerateScript},
		{StageCheckQuality, st.CheckQuality},
	}
	for _, n := range named {
		if n.stage == nil {
			return nil, fmt.Errorf("stage %s is not set", n.id)
		}
		g.stages[n.id] = n.stage
	}
	g.stages[StageIncrementRetry] = retryStage{}

	g.edges[StageFetch] = AfterFetch
	g.edges[StageScoreEngagement] = requireOutput(StageFilterCredibility, hasScored)
	g.edges[StageFilterCredibility] = requireOutput(StageClusterSentiment, hasFiltered)
	g.edges[StageClusterSentiment] = requireOutput(StageExtractNarratives, hasFiltered)
	g.edges[StageExtractNarratives] = requireOutput(StageBuildOutline, hasNarratives)
	g.edges[StageBuildOutline] = requireOutput(StageGenerateScript, hasOutline)
	g.edges[StageGenerateScript] = always(StageCheckQuality)
	g.edges[StageCheckQuality] = func(s *State) StageID { return AfterQuality(s, g.maxRetries) }
	g.edges[StageIncrementRetry] = always(StageGenerateScript)

	// Linear pass plus three stages per retry; anything beyond is a wiring bug
	g.maxSteps = 2 * (len(named) + 3*maxRetries)

	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// MaxRetries is the number of script regenerations allowed after a failed
// quality check.
func (g *Graph) MaxRetries() int {
	return g.maxRetries
}

// Run executes the graph against a copy of initial. Cancelling ctx abandons
// the run between stages.
func (g *Graph) Run(ctx context.Context, initial *State) Outcome {
	start := time.Now()
	if initial == nil {
		initial = NewState(nil)
	}
	state := initial.Clone()

	current := g.entry
	last := g.entry
	steps := 0
	aborted := false

	for current != End {
		if err := ctx.Err(); err != nil {
			g.abort(state, current, fmt.Sprintf("run abandoned before %s: %v", current, err))
			aborted = true
			break
		}
		if steps >= g.maxSteps {
			g.abort(state, current, fmt.Sprintf("step limit %d reached before %s", g.maxSteps, current))
			aborted = true
			break
		}

		stage, ok := g.stages[current]
		if !ok {
			g.abort(state, current, fmt.Sprintf("no stage registered for %s", current))
			aborted = true
			break
		}

		log := g.logger.WithField("stage", current)
		stageStart := time.Now()
		res, panicked := g.invoke(ctx, stage, state)
		elapsed := time.Since(stageStart)
		steps++
		last = current

		if err := state.Merge(res.Update().WithMessage(diagnostic(current, res))); err != nil {
			g.abort(state, current, fmt.Sprintf("%s: %v", current, err))
			aborted = true
			break
		}

		failed := res.Failure() != ""
		if g.observer != nil {
			g.observer.StageCompleted(current, elapsed, failed)
		}
		if failed {
			log.WithField("duration", elapsed).Warnf("⚠️  Stage failed: %s", res.Failure())
		} else {
			log.WithField("duration", elapsed).Debugf("Stage completed: %s", res.Summary())
		}

		if panicked {
			aborted = true
			break
		}

		next := g.edges[current](state)
		if current == StageCheckQuality && next == End && !state.QualityPassed {
			if state.Script == nil {
				log.Warnf("No script produced after %d retries", state.RetryCount)
			} else {
				log.Warnf("Quality check not passed after %d retries, accepting script as-is", state.RetryCount)
			}
		}
		current = next
	}

	status := classify(state, aborted)
	if status == StatusAbortedError && state.Error == "" {
		state.Error = fmt.Sprintf("%s produced no output", last)
	}

	elapsed := time.Since(start)
	if g.observer != nil {
		g.observer.RunCompleted(status, elapsed)
	}
	return Outcome{Status: status, State: state, Steps: steps, Duration: elapsed}
}

// invoke runs a stage and converts a panic into a failed result
func (g *Graph) invoke(ctx context.Context, stage Stage, state *State) (res Result, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			res = abortResult{Report{Err: fmt.Sprintf("%s panicked: %v", stage.Name(), r)}}
			panicked = true
		}
	}()
	res = stage.Run(ctx, state)
	if res == nil {
		return abortResult{Report{Err: fmt.Sprintf("%s returned no result", stage.Name())}}, false
	}
	return res, false
}

func (g *Graph) abort(state *State, stage StageID, msg string) {
	g.logger.WithField("stage", stage).Errorf("🚨 %s", msg)
	_ = state.Merge(abortResult{Report{Err: msg}}.Update().WithMessage(msg))
}

func classify(state *State, aborted bool) Status {
	switch {
	case aborted:
		return StatusAbortedError
	case state.Script != nil:
		return StatusCompleted
	case len(state.RawPosts) == 0:
		return StatusAbortedEmptyInput
	default:
		return StatusAbortedError
	}
}

func diagnostic(stage StageID, res Result) string {
	if msg := res.Failure(); msg != "" {
		return fmt.Sprintf("%s failed: %s", stage, msg)
	}
	if note := res.Summary(); note != "" {
		return fmt.Sprintf("%s: %s", stage, note)
	}
	return fmt.Sprintf("%s: done", stage)
}

// retryStage advances the retry counter between quality checks
type retryStage struct{}

func (retryStage) Name() StageID { return StageIncrementRetry }

func (retryStage) Run(_ context.Context, s *State) Result {
	n := s.RetryCount + 1
	return RetryResult{
		Report: Report{Note: fmt.Sprintf("retry %d", n)},
		Count:  n,
	}
}
