package scriptwriter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"postgame-agent/agents/script-writer/x"
	"postgame-agent/internal/models"
	"postgame-agent/internal/pipeline"
	"postgame-agent/shared/ai"
	"postgame-agent/shared/config"
	"postgame-agent/shared/email"
	"postgame-agent/shared/monitoring"
	"postgame-agent/shared/scheduler"
	"postgame-agent/shared/storage"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ScriptAgent implements the scheduler.Agent interface
type ScriptAgent struct {
	config      *config.Config
	dryRun      bool
	logger      logrus.FieldLogger
	now         func() time.Time
	completer   ai.Completer
	source      PostSource
	cache       storage.SearchCache
	store       *storage.ScriptStore
	emailSender *email.Sender
	metrics     *monitoring.PipelineMetrics

	mu         sync.Mutex
	lastScript *models.FinalScript
	lastPath   string
}

type Option func(*ScriptAgent)

// WithDryRun feeds the built-in sample posts instead of searching
func WithDryRun(dryRun bool) Option {
	return func(a *ScriptAgent) { a.dryRun = dryRun }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(a *ScriptAgent) { a.logger = l }
}

func WithCompleter(c ai.Completer) Option {
	return func(a *ScriptAgent) { a.completer = c }
}

func WithSource(s PostSource) Option {
	return func(a *ScriptAgent) { a.source = s }
}

func WithSearchCache(c storage.SearchCache) Option {
	return func(a *ScriptAgent) { a.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(a *ScriptAgent) { a.now = now }
}

func NewScriptAgent(cfg *config.Config, opts ...Option) *ScriptAgent {
	a := &ScriptAgent{
		config:  cfg,
		logger:  logrus.StandardLogger(),
		now:     time.Now,
		metrics: monitoring.NewPipelineMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ScriptAgent) Name() string {
	return "Script Writer"
}

// Metrics exposes the pipeline metrics for the /metrics endpoint
func (a *ScriptAgent) Metrics() *monitoring.PipelineMetrics {
	return a.metrics
}

func (a *ScriptAgent) Initialize() error {
	a.logger.Infof("Initializing %s...", a.Name())

	if a.completer == nil {
		completer, err := ai.NewCompleter(&a.config.AI)
		if err != nil {
			return fmt.Errorf("failed to create AI completer: %w", err)
		}
		a.completer = completer
		a.logger.Infof("AI completer initialized (%s, %s)", a.config.AI.Provider, a.config.AI.Model)
	}

	if a.source == nil && !a.dryRun {
		client, err := x.NewClient(&a.config.X, a.config.Retry.Policy())
		if err != nil {
			return fmt.Errorf("failed to create X client: %w", err)
		}
		a.source = client
		a.logger.Info("X client initialized")
	}

	if a.cache == nil && !a.dryRun && a.config.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     a.config.Redis.Addr,
			Password: a.config.Redis.Password,
			DB:       a.config.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			a.logger.Warnf("⚠️  Redis unavailable at %s, search cache disabled: %v", a.config.Redis.Addr, err)
			client.Close()
		} else {
			a.cache = storage.NewRedisSearchCache(client, a.config.Redis.TTL)
			a.logger.Infof("Search cache initialized (%s, ttl %v)", a.config.Redis.Addr, a.config.Redis.TTL)
		}
	}

	if a.store == nil {
		store, err := storage.NewScriptStore(a.config.Output.Dir)
		if err != nil {
			return fmt.Errorf("failed to create script store: %w", err)
		}
		a.store = store
		a.logger.Infof("Script store initialized (%s)", store.Dir())
	}

	if a.emailSender == nil && a.config.Email.Enabled {
		a.emailSender = email.NewSender(&a.config.Email)
		a.logger.Info("Email sender initialized")
	}

	return nil
}

// buildGraph wires the stages for one run
func (a *ScriptAgent) buildGraph(log logrus.FieldLogger) (*pipeline.Graph, error) {
	pc := a.config.Pipeline
	policy := a.config.Retry.Policy()
	withStage := func(id pipeline.StageID) llm {
		return llm{completer: a.completer, policy: policy, logger: log.WithField("stage", id)}
	}

	window := time.Duration(a.config.X.WindowHours) * time.Hour
	if window <= 0 {
		window = 12 * time.Hour
	}

	stages := pipeline.Stages{
		Fetch: &fetchStage{
			source:  a.source,
			cache:   a.cache,
			queries: BuildQueries(a.config.X.ExtraTerms),
			window:  window,
			now:     a.now,
			logger:  log.WithField("stage", pipeline.StageFetch),
		},
		ScoreEngagement:   &engagementStage{cfg: pc, now: a.now},
		FilterCredibility: &credibilityStage{cfg: pc, now: a.now},
		ClusterSentiment:  &sentimentStage{llm: withStage(pipeline.StageClusterSentiment), cfg: pc},
		ExtractNarratives: &narrativeStage{llm: withStage(pipeline.StageExtractNarratives), cfg: pc},
		BuildOutline:      &outlineStage{llm: withStage(pipeline.StageBuildOutline), cfg: pc},
		GenerateScript:    &scriptStage{llm: withStage(pipeline.StageGenerateScript), cfg: pc},
		CheckQuality:      &qualityStage{llm: withStage(pipeline.StageCheckQuality)},
	}

	return pipeline.New(stages, pc.MaxQualityRetries,
		pipeline.WithObserver(a.metrics),
		pipeline.WithLogger(log),
	)
}

// RunOnce executes one pipeline run, saves the script and optionally e-mails
// it. The returned error carries the last pipeline error verbatim.
func (a *ScriptAgent) RunOnce(ctx context.Context, events *scheduler.AgentEvents) error {
	startTime := time.Now()
	runID := uuid.NewString()
	log := a.logger.WithField("run_id", runID)

	critical := func(err error) error {
		if events != nil && events.OnCriticalFailure != nil {
			events.OnCriticalFailure(err, time.Since(startTime))
		}
		return err
	}

	if a.completer == nil || a.store == nil {
		return critical(errors.New("agent is not initialized"))
	}

	g, err := a.buildGraph(log)
	if err != nil {
		return critical(fmt.Errorf("failed to build pipeline: %w", err))
	}

	var preloaded []*models.Post
	if a.dryRun {
		preloaded = SamplePosts(a.now())
		log.Infof("Dry run: using %d sample posts", len(preloaded))
	}

	outcome := g.Run(ctx, pipeline.NewState(preloaded))
	metrics := newRunMetrics(runID, outcome)

	if outcome.State.Script == nil {
		msg := outcome.State.Error
		if msg == "" {
			msg = fmt.Sprintf("pipeline ended with status %s", outcome.Status)
		}
		return critical(errors.New(msg))
	}

	script := outcome.State.Script
	if !outcome.State.QualityPassed {
		log.Warnf("⚠️  Script did not pass quality review: %s", outcome.State.QualityFeedback)
	}

	path, err := a.store.Save(script)
	if err != nil {
		return critical(fmt.Errorf("failed to save script: %w", err))
	}
	metrics.OutputPath = path
	log.Infof("📄 Script saved to %s", path)

	a.mu.Lock()
	a.lastScript = script
	a.lastPath = path
	a.mu.Unlock()

	if a.emailSender != nil {
		if err := a.emailSender.SendScript(script, path); err != nil {
			log.Warnf("Failed to email script: %v", err)
			if events != nil && events.OnPartialFailure != nil {
				events.OnPartialFailure(fmt.Errorf("failed to email script: %w", err), time.Since(startTime))
			}
		} else {
			log.Info("Script emailed")
		}
	}

	if events != nil && events.OnSuccess != nil {
		events.OnSuccess(metrics, time.Since(startTime))
	}
	return nil
}

// LastScript returns the script and path of the latest successful run
func (a *ScriptAgent) LastScript() (*models.FinalScript, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastScript, a.lastPath
}

// RunMetrics summarizes one pipeline run
type RunMetrics struct {
	RunID         string
	Status        pipeline.Status
	RawPosts      int
	FilteredPosts int
	Narratives    int
	Retries       int
	QualityPassed bool
	QualityScore  float64
	Steps         int
	OutputPath    string
}

func newRunMetrics(runID string, outcome pipeline.Outcome) *RunMetrics {
	s := outcome.State
	m := &RunMetrics{
		RunID:         runID,
		Status:        outcome.Status,
		RawPosts:      len(s.RawPosts),
		FilteredPosts: len(s.FilteredPosts),
		Narratives:    len(s.Narratives),
		Retries:       s.RetryCount,
		QualityPassed: s.QualityPassed,
		Steps:         outcome.Steps,
	}
	if s.Script != nil && s.Script.QualityReport != nil {
		m.QualityScore = s.Script.QualityReport.OverallScore
	}
	return m
}

func (m *RunMetrics) GetSummary() string {
	verdict := "quality passed"
	if !m.QualityPassed {
		verdict = "quality not passed"
	}
	return fmt.Sprintf("%d posts, %d filtered, %d narratives, %d retries, %s (%.0f)",
		m.RawPosts, m.FilteredPosts, m.Narratives, m.Retries, verdict, m.QualityScore)
}
