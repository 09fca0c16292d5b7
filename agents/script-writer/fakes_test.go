package scriptwriter

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"postgame-agent/internal/models"
	"postgame-agent/shared/ai"
	"postgame-agent/shared/config"
	"postgame-agent/shared/logging"
	"postgame-agent/shared/retry"
)

var fastPolicy = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

var fixedNow = time.Date(2025, 11, 9, 23, 0, 0, 0, time.UTC)

// fakeCompleter answers each prompt with a canned response. Overrides take
// precedence and receive the 1-based call number for that prompt.
type fakeCompleter struct {
	mu        sync.Mutex
	calls     map[string]int
	requests  []ai.Request
	overrides map[string]func(req ai.Request, n int) (string, error)
}

func newFakeCompleter() *fakeCompleter {
	return &fakeCompleter{
		calls:     make(map[string]int),
		overrides: make(map[string]func(ai.Request, int) (string, error)),
	}
}

func (f *fakeCompleter) Complete(_ context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	f.calls[req.PromptID]++
	n := f.calls[req.PromptID]
	f.requests = append(f.requests, req)
	override := f.overrides[req.PromptID]
	f.mu.Unlock()

	if override != nil {
		return override(req, n)
	}
	return defaultResponse(req)
}

func (f *fakeCompleter) count(prompt string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[prompt]
}

func (f *fakeCompleter) lastRequest(prompt string) ai.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].PromptID == prompt {
			return f.requests[i]
		}
	}
	return ai.Request{}
}

func (f *fakeCompleter) failAlways(prompt string) {
	f.overrides[prompt] = func(ai.Request, int) (string, error) {
		return "", fmt.Errorf("%s unavailable", prompt)
	}
}

func (f *fakeCompleter) qualityPasses(onCall int) {
	f.overrides[promptQuality] = func(_ ai.Request, n int) (string, error) {
		return qualityResponse(n >= onCall && onCall > 0), nil
	}
}

var tweetIDPattern = regexp.MustCompile(`"tweet_id": "([^"]+)"`)

func defaultResponse(req ai.Request) (string, error) {
	switch req.PromptID {
	case promptSentiment:
		var items []string
		for _, m := range tweetIDPattern.FindAllStringSubmatch(req.User, -1) {
			items = append(items, fmt.Sprintf(`{"tweet_id": %q, "sentiment": "positive", "intensity": 0.8, "emotion": "hype", "key_phrases": ["comeback"]}`, m[1]))
		}
		return "```json\n[" + strings.Join(items, ",") + "]\n```", nil
	case promptNarratives:
		return `[
  {"title": "Rookie QB class arrives", "summary": "Five rookies started.", "emotion": "hype", "intensity": 0.9, "stance": "consensus", "tweet_ids": ["mock_008", "mock_003"], "relevance_score": 70},
  {"title": "Purdy is for real", "summary": "System QB label fading.", "tweet_ids": ["mock_003"], "relevance_score": 95},
  {"summary": "Refs under fire", "tweet_ids": ["mock_002"]}
]`, nil
	case promptOutline:
		return `{"title": "The NFL Just Changed Forever", "thumbnail_hook": "ROOKIES TOOK OVER", "target_minutes": 10,
  "sections": [
    {"section_name": "Pattern Interrupt Hook", "timestamp": "0:00-0:20", "content_notes": "Open on the stat", "stage_direction": "fast cut"},
    {"section_name": "CTA", "timestamp": "10:00-10:30", "content_notes": "Ask for comments", "stage_direction": "smile"}
  ],
  "narratives_used": ["Purdy is for real"]}`, nil
	case promptScript:
		return `Here is the script: {"title": "Purdy Is Not a System QB", "description": "We break it down.", "tags": ["nfl", "49ers"],
  "estimated_duration_minutes": 10.5,
  "sections": [
    {"section_name": "Pattern Interrupt Hook", "timestamp": "0:00-0:20", "content": "Three hundred forty yards. Four touchdowns.", "stage_direction": "fast cut"},
    {"section_name": "CTA", "timestamp": "10:00-10:30", "content": "Tell me I'm wrong in the comments.", "stage_direction": ""}
  ]}`, nil
	case promptQuality:
		return qualityResponse(true), nil
	}
	return "", fmt.Errorf("unexpected prompt %q", req.PromptID)
}

func qualityResponse(passed bool) string {
	if passed {
		return `{"passed": true, "overall_score": 82, "retention_estimate": 0.55, "feedback": "Strong hook.", "issues": []}`
	}
	return `{"passed": false, "overall_score": 58, "retention_estimate": 0.38, "feedback": "Hook is too slow.", "issues": ["slow hook"]}`
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Output.Dir = filepath.Join(t.TempDir(), "output")
	cfg.Retry = config.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	cfg.Email.Enabled = false
	cfg.Redis.Addr = ""
	return cfg
}

func testLLM(c ai.Completer) llm {
	return llm{completer: c, policy: fastPolicy, logger: logging.NewDiscardLogger()}
}

func post(id string, followers int, verified bool, m models.Metrics) *models.Post {
	return models.NewPost(id, "post "+id, fixedNow, models.Author{
		ID:             "user_" + id,
		Username:       "user" + id,
		FollowersCount: followers,
		PostCount:      followers,
		Verified:       verified,
		CreatedAt:      time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
	}, m)
}
