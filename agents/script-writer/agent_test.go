package scriptwriter

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"postgame-agent/internal/models"
	"postgame-agent/shared/ai"
	"postgame-agent/shared/logging"
	"postgame-agent/shared/scheduler"
)

func TestScriptAgentName(t *testing.T) {
	if name := NewScriptAgent(testConfig(t)).Name(); name != "Script Writer" {
		t.Errorf("Name() = %s, want Script Writer", name)
	}
}

func newDryRunAgent(t *testing.T, fc *fakeCompleter) *ScriptAgent {
	t.Helper()
	agent := NewScriptAgent(testConfig(t),
		WithDryRun(true),
		WithCompleter(fc),
		WithClock(clock),
		WithLogger(logging.NewDiscardLogger()),
	)
	if err := agent.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return agent
}

type recordedEvents struct {
	summary  string
	critical error
	partial  error
}

func (r *recordedEvents) events() *scheduler.AgentEvents {
	return &scheduler.AgentEvents{
		OnSuccess:         func(m scheduler.Metrics, _ time.Duration) { r.summary = m.GetSummary() },
		OnPartialFailure:  func(err error, _ time.Duration) { r.partial = err },
		OnCriticalFailure: func(err error, _ time.Duration) { r.critical = err },
	}
}

func TestDryRunWritesScript(t *testing.T) {
	fc := newFakeCompleter()
	agent := newDryRunAgent(t, fc)
	rec := &recordedEvents{}

	if err := agent.RunOnce(context.Background(), rec.events()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if rec.critical != nil || rec.partial != nil {
		t.Errorf("unexpected failure events: %v / %v", rec.critical, rec.partial)
	}
	if !strings.Contains(rec.summary, "8 posts") || !strings.Contains(rec.summary, "quality passed (82)") {
		t.Errorf("summary = %q", rec.summary)
	}

	script, path := agent.LastScript()
	if script == nil || script.QualityReport == nil || !script.QualityReport.Passed {
		t.Fatalf("script = %+v", script)
	}

	text, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	title, sections, err := models.ParseRendered(string(text))
	if err != nil || title != script.Title || sections != len(script.Sections) {
		t.Errorf("saved script parses to (%q, %d, %v)", title, sections, err)
	}
	if _, err := os.Stat(strings.TrimSuffix(path, ".txt") + ".json"); err != nil {
		t.Errorf("json artifact missing: %v", err)
	}

	if fc.count(promptSentiment) != 1 || fc.count(promptScript) != 1 || fc.count(promptQuality) != 1 {
		t.Errorf("unexpected call counts: %v", fc.calls)
	}
}

func TestQualityAlwaysFailingRetriesTwice(t *testing.T) {
	fc := newFakeCompleter()
	fc.qualityPasses(0)
	agent := newDryRunAgent(t, fc)
	rec := &recordedEvents{}

	if err := agent.RunOnce(context.Background(), rec.events()); err != nil {
		t.Fatalf("a failed quality gate must still complete the run: %v", err)
	}
	if got := fc.count(promptScript); got != 3 {
		t.Errorf("script generated %d times, want 3", got)
	}
	if got := fc.count(promptQuality); got != 3 {
		t.Errorf("quality checked %d times, want 3", got)
	}
	if got := fc.count(promptOutline); got != 1 {
		t.Errorf("outline built %d times, want 1", got)
	}

	script, _ := agent.LastScript()
	if script.QualityReport == nil || script.QualityReport.Passed || script.QualityReport.Feedback != "Hook is too slow." {
		t.Errorf("final script should carry the failing report: %+v", script.QualityReport)
	}
	if !strings.Contains(rec.summary, "2 retries") || !strings.Contains(rec.summary, "quality not passed") {
		t.Errorf("summary = %q", rec.summary)
	}
}

func TestQualityPassesOnRetry(t *testing.T) {
	fc := newFakeCompleter()
	fc.qualityPasses(2)
	agent := newDryRunAgent(t, fc)

	if err := agent.RunOnce(context.Background(), nil); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := fc.count(promptScript); got != 2 {
		t.Errorf("script generated %d times, want 2", got)
	}
	if !strings.Contains(fc.lastRequest(promptScript).User, "Hook is too slow.") {
		t.Error("regenerated script prompt should include the feedback")
	}
}

func TestEmptyFetchFailsRun(t *testing.T) {
	fc := newFakeCompleter()
	agent := NewScriptAgent(testConfig(t),
		WithCompleter(fc),
		WithSource(&stubSource{}),
		WithClock(clock),
		WithLogger(logging.NewDiscardLogger()),
	)
	if err := agent.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	rec := &recordedEvents{}

	err := agent.RunOnce(context.Background(), rec.events())
	if err == nil || err.Error() != errNoPosts {
		t.Fatalf("RunOnce() error = %v, want %q", err, errNoPosts)
	}
	if rec.critical == nil || rec.summary != "" {
		t.Errorf("events = %+v", rec)
	}
	if len(fc.calls) != 0 {
		t.Errorf("no model call expected after an empty fetch, got %v", fc.calls)
	}
	if script, _ := agent.LastScript(); script != nil {
		t.Error("no script expected")
	}
}

func TestLLMFailureSurfacesLastError(t *testing.T) {
	tests := []struct {
		prompt    string
		wantErr   string
		wantCalls int
	}{
		{promptNarratives, "Narrative extraction error: ", 3},
		{promptOutline, "Outline error: ", 3},
		// every pass through the quality loop retries the script
		{promptScript, "No script available for quality check.", 9},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			fc := newFakeCompleter()
			fc.failAlways(tt.prompt)
			agent := newDryRunAgent(t, fc)

			err := agent.RunOnce(context.Background(), nil)
			if err == nil || !strings.HasPrefix(err.Error(), tt.wantErr) {
				t.Errorf("RunOnce() error = %v, want prefix %q", err, tt.wantErr)
			}
			if got := fc.count(tt.prompt); got != tt.wantCalls {
				t.Errorf("%s called %d times, want %d", tt.prompt, got, tt.wantCalls)
			}
		})
	}
}

func TestScriptRecoversAfterFailedRegeneration(t *testing.T) {
	fc := newFakeCompleter()
	fc.qualityPasses(2)
	fc.overrides[promptScript] = func(req ai.Request, n int) (string, error) {
		// attempts 2-4 belong to the first regeneration
		if n >= 2 && n <= 4 {
			return "", errors.New("overloaded")
		}
		return defaultResponse(req)
	}
	agent := newDryRunAgent(t, fc)

	if err := agent.RunOnce(context.Background(), nil); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if script, _ := agent.LastScript(); script == nil || !script.QualityReport.Passed {
		t.Errorf("expected a passing script, got %+v", script)
	}
	if got := fc.count(promptQuality); got != 2 {
		t.Errorf("quality checked %d times, want 2", got)
	}
}

func TestSentimentOutageStillProducesScript(t *testing.T) {
	fc := newFakeCompleter()
	fc.failAlways(promptSentiment)
	agent := newDryRunAgent(t, fc)

	if err := agent.RunOnce(context.Background(), nil); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if script, _ := agent.LastScript(); script == nil {
		t.Error("expected a script")
	}
}

func TestRunOnceRequiresInitialize(t *testing.T) {
	agent := NewScriptAgent(testConfig(t), WithLogger(logging.NewDiscardLogger()))
	if err := agent.RunOnce(context.Background(), nil); err == nil {
		t.Error("expected error before Initialize")
	}
}

func TestCancelledRunFails(t *testing.T) {
	agent := newDryRunAgent(t, newFakeCompleter())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := agent.RunOnce(ctx, nil)
	if err == nil || !strings.Contains(err.Error(), "run abandoned") {
		t.Errorf("RunOnce() error = %v", err)
	}
}

func TestRunMetricsSummary(t *testing.T) {
	tests := []struct {
		name     string
		metrics  RunMetrics
		expected string
	}{
		{
			name:     "All zeros",
			metrics:  RunMetrics{},
			expected: "0 posts, 0 filtered, 0 narratives, 0 retries, quality not passed (0)",
		},
		{
			name:     "Passed",
			metrics:  RunMetrics{RawPosts: 8, FilteredPosts: 6, Narratives: 3, Retries: 1, QualityPassed: true, QualityScore: 81.6},
			expected: "8 posts, 6 filtered, 3 narratives, 1 retries, quality passed (82)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.metrics.GetSummary(); got != tt.expected {
				t.Errorf("GetSummary() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestAgentThroughScheduler(t *testing.T) {
	fc := newFakeCompleter()
	fc.failAlways(promptOutline)
	agent := newDryRunAgent(t, fc)
	s := scheduler.New(testConfig(t), agent, agent.Metrics().Registry(), logging.NewDiscardLogger())

	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected run failure")
	}
	if s.Monitor().IsHealthy() {
		t.Error("monitor should report the failed run")
	}
	if !strings.Contains(s.Monitor().GetStatusSummary(), "(1 runs, 1 failed)") {
		t.Errorf("status = %q", s.Monitor().GetStatusSummary())
	}
}
