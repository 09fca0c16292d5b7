package scriptwriter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"postgame-agent/agents/script-writer/x"
	"postgame-agent/internal/models"
	"postgame-agent/internal/pipeline"
	"postgame-agent/shared/ai"
	"postgame-agent/shared/config"
	"postgame-agent/shared/logging"
	"postgame-agent/shared/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func defaultPipeline() config.PipelineConfig {
	return config.PipelineConfig{
		MinEngagement:          15,
		MinCredibility:         25,
		EngagementFallbackCap:  50,
		CredibilityFallbackCap: 30,
		SentimentBatchSize:     30,
		NumNarratives:          5,
		TargetMinutes:          10,
		MaxQualityRetries:      2,
		SamplePosts:            15,
	}
}

func clock() time.Time { return fixedNow }

func TestSamplesSurviveScoringAndFiltering(t *testing.T) {
	state := pipeline.NewState(SamplePosts(fixedNow))

	scored := (&engagementStage{cfg: defaultPipeline(), now: clock}).Run(context.Background(), state)
	if scored.Failure() != "" {
		t.Fatalf("engagement failed: %s", scored.Failure())
	}
	if err := state.Merge(scored.Update()); err != nil {
		t.Fatal(err)
	}
	if len(state.ScoredPosts) == 0 {
		t.Fatal("no scored posts")
	}
	for i := 1; i < len(state.ScoredPosts); i++ {
		if state.ScoredPosts[i-1].EngagementScore < state.ScoredPosts[i].EngagementScore {
			t.Errorf("scored posts not sorted at %d", i)
		}
	}
	if state.RawPosts[0].EngagementScore != 0 {
		t.Error("engagement stage mutated the raw posts")
	}

	filtered := (&credibilityStage{cfg: defaultPipeline(), now: clock}).Run(context.Background(), state)
	if err := state.Merge(filtered.Update()); err != nil {
		t.Fatal(err)
	}
	if len(state.FilteredPosts) == 0 {
		t.Fatal("samples produced an empty filtered set")
	}

	found := false
	for _, p := range state.FilteredPosts {
		if p.Author.Username == "AdamSchefter" {
			found = true
			if p.CredibilityScore != 100 {
				t.Errorf("AdamSchefter credibility = %v, want 100", p.CredibilityScore)
			}
		}
	}
	if !found {
		t.Error("AdamSchefter should clear both thresholds")
	}
}

func TestEngagementFallback(t *testing.T) {
	cfg := defaultPipeline()
	cfg.MinEngagement = 1e9
	cfg.EngagementFallbackCap = 2

	var raw []*models.Post
	for _, id := range []string{"a", "b", "c"} {
		raw = append(raw, post(id, 5000, false, models.Metrics{Likes: 10}))
	}
	raw[1].Metrics.Likes = 100

	res := (&engagementStage{cfg: cfg, now: clock}).Run(context.Background(), pipeline.NewState(raw)).(pipeline.ScoreResult)
	if res.Failure() != "" {
		t.Fatalf("unexpected failure %q", res.Failure())
	}
	if len(res.Posts) != 2 || res.Posts[0].ID != "b" {
		t.Errorf("fallback kept %d posts, first %q; want 2 with b first", len(res.Posts), res.Posts[0].ID)
	}
}

func TestEngagementScoresAllWhenPreFilterRejectsEverything(t *testing.T) {
	// low followers and a low activity ratio fail the pre-filter
	p := post("lurker", 500, false, models.Metrics{Likes: 3})
	p.Author.PostCount = 1

	res := (&engagementStage{cfg: defaultPipeline(), now: clock}).Run(context.Background(), pipeline.NewState([]*models.Post{p})).(pipeline.ScoreResult)
	if len(res.Posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(res.Posts))
	}
}

func TestEngagementEmptyInput(t *testing.T) {
	res := (&engagementStage{cfg: defaultPipeline(), now: clock}).Run(context.Background(), pipeline.NewState(nil))
	if res.Failure() != "No raw tweets to score." {
		t.Errorf("Failure() = %q", res.Failure())
	}
}

func TestCredibilityFallback(t *testing.T) {
	cfg := defaultPipeline()
	cfg.MinCredibility = 101
	cfg.CredibilityFallbackCap = 1

	state := pipeline.NewState(nil)
	state.ScoredPosts = []*models.Post{
		post("small", 2000, false, models.Metrics{Likes: 1}),
		post("big", 600000, true, models.Metrics{Likes: 1}),
	}

	res := (&credibilityStage{cfg: cfg, now: clock}).Run(context.Background(), state).(pipeline.FilterResult)
	if len(res.Posts) != 1 || res.Posts[0].ID != "big" {
		t.Errorf("fallback = %v, want [big]", res.Posts)
	}
}

func TestSentimentSkipsFailedBatch(t *testing.T) {
	fc := newFakeCompleter()
	fc.overrides[promptSentiment] = func(req ai.Request, n int) (string, error) {
		if strings.Contains(req.User, `"tweet_id": "p1"`) {
			return "", errors.New("batch down")
		}
		return defaultResponse(req)
	}

	cfg := defaultPipeline()
	cfg.SentimentBatchSize = 2
	state := pipeline.NewState(nil)
	for _, id := range []string{"p1", "p2", "p3"} {
		state.FilteredPosts = append(state.FilteredPosts, post(id, 1000, false, models.Metrics{Likes: 1}))
	}

	res := (&sentimentStage{llm: testLLM(fc), cfg: cfg}).Run(context.Background(), state).(pipeline.SentimentResult)
	if res.Failure() != "" {
		t.Fatalf("a skipped batch must not fail the stage: %q", res.Failure())
	}
	// first batch (p1, p2) retried 3 times then skipped, second batch once
	if got := fc.count(promptSentiment); got != 4 {
		t.Errorf("sentiment calls = %d, want 4", got)
	}
	if len(res.Annotations) != 1 || res.Annotations["p3"].Sentiment != "positive" {
		t.Errorf("annotations = %v", res.Annotations)
	}
	if len(res.Posts) != 3 {
		t.Fatalf("posts = %d, want 3", len(res.Posts))
	}
	if res.Posts[0].SentimentLabel != "" || res.Posts[2].SentimentLabel != "positive" || res.Posts[2].SentimentIntensity != 0.8 {
		t.Errorf("sentiment not written as expected: %+v / %+v", res.Posts[0], res.Posts[2])
	}
	if state.FilteredPosts[2].SentimentLabel != "" {
		t.Error("sentiment stage mutated its input posts")
	}
}

func TestNarrativesRankAndAssignClusters(t *testing.T) {
	fc := newFakeCompleter()
	state := pipeline.NewState(nil)
	for _, id := range []string{"mock_002", "mock_003", "mock_008", "mock_005"} {
		state.FilteredPosts = append(state.FilteredPosts, post(id, 1000, false, models.Metrics{Likes: 1}))
	}
	state.Sentiment = map[string]models.SentimentAnnotation{
		"mock_003": {PostID: "mock_003", Sentiment: "positive", Intensity: 0.7},
	}

	res := (&narrativeStage{llm: testLLM(fc), cfg: defaultPipeline()}).Run(context.Background(), state).(pipeline.NarrativeResult)
	if res.Failure() != "" {
		t.Fatalf("unexpected failure %q", res.Failure())
	}

	titles := models.Titles(res.Narratives)
	want := []string{"Purdy is for real", "Rookie QB class arrives", "Narrative 3"}
	if strings.Join(titles, "|") != strings.Join(want, "|") {
		t.Errorf("titles = %v, want %v", titles, want)
	}
	third := res.Narratives[2]
	if third.Emotion != "neutral" || third.Intensity != 0.5 || third.Stance != models.StanceDivided || third.RelevanceScore != 70 {
		t.Errorf("defaults not applied: %+v", third)
	}

	clusters := map[string]int{}
	for _, p := range res.Posts {
		clusters[p.ID] = p.NarrativeCluster
	}
	wantClusters := map[string]int{"mock_003": 0, "mock_008": 1, "mock_002": 2, "mock_005": models.UnassignedCluster}
	for id, c := range wantClusters {
		if clusters[id] != c {
			t.Errorf("cluster[%s] = %d, want %d", id, clusters[id], c)
		}
	}

	if !strings.Contains(fc.lastRequest(promptNarratives).User, `"sentiment": "positive"`) {
		t.Error("sentiment annotations not merged into the narrative payload")
	}
}

func TestNarrativeFailureReemitsPosts(t *testing.T) {
	fc := newFakeCompleter()
	fc.failAlways(promptNarratives)

	state := pipeline.NewState(nil)
	state.FilteredPosts = []*models.Post{post("a", 1000, false, models.Metrics{Likes: 1})}

	res := (&narrativeStage{llm: testLLM(fc), cfg: defaultPipeline()}).Run(context.Background(), state).(pipeline.NarrativeResult)
	if !strings.HasPrefix(res.Failure(), "Narrative extraction error: ") {
		t.Errorf("Failure() = %q", res.Failure())
	}
	if len(res.Posts) != 1 || len(res.Narratives) != 0 {
		t.Errorf("got %d posts and %d narratives, want 1 and 0", len(res.Posts), len(res.Narratives))
	}
}

func TestOutlineDefaults(t *testing.T) {
	fc := newFakeCompleter()
	fc.overrides[promptOutline] = func(ai.Request, int) (string, error) {
		return `{"sections": [{"timestamp": "0:00-0:20", "content": "notes"}]}`, nil
	}
	state := pipeline.NewState(nil)
	state.Narratives = []models.Narrative{{Title: "A"}, {Title: "B"}}

	res := (&outlineStage{llm: testLLM(fc), cfg: defaultPipeline()}).Run(context.Background(), state).(pipeline.OutlineResult)
	o := res.Outline
	if o == nil {
		t.Fatalf("no outline: %s", res.Failure())
	}
	if o.Title != "Untitled Video" || o.TargetMinutes != 10 || o.Sections[0].Name != "Untitled" || o.Sections[0].Content != "notes" {
		t.Errorf("outline = %+v", o)
	}
	if strings.Join(o.NarrativesUsed, ",") != "A,B" {
		t.Errorf("narratives used = %v", o.NarrativesUsed)
	}
}

func TestOutlineRequiresNarratives(t *testing.T) {
	res := (&outlineStage{llm: testLLM(newFakeCompleter()), cfg: defaultPipeline()}).Run(context.Background(), pipeline.NewState(nil))
	if res.Failure() != "No narratives available for outline." {
		t.Errorf("Failure() = %q", res.Failure())
	}
}

func TestScriptStage(t *testing.T) {
	fc := newFakeCompleter()
	state := pipeline.NewState(nil)
	state.Outline = &models.ScriptOutline{Title: "Outline Title", ThumbnailHook: "HOOK"}
	state.FilteredPosts = SamplePosts(fixedNow)

	res := (&scriptStage{llm: testLLM(fc), cfg: defaultPipeline()}).Run(context.Background(), state).(pipeline.ScriptResult)
	s := res.Script
	if s == nil {
		t.Fatalf("no script: %s", res.Failure())
	}
	if s.Title != "Purdy Is Not a System QB" || s.ThumbnailText != "HOOK" || s.EstimatedDurationMinutes != 10.5 {
		t.Errorf("script = %+v", s)
	}
	if s.FullText != "Three hundred forty yards. Four touchdowns.\n\nTell me I'm wrong in the comments." {
		t.Errorf("FullText = %q", s.FullText)
	}
	if strings.Contains(fc.lastRequest(promptScript).User, "REVIEWER") {
		t.Error("first pass must not carry reviewer feedback")
	}

	state.RetryCount = 1
	state.QualityFeedback = "Hook is too slow."
	(&scriptStage{llm: testLLM(fc), cfg: defaultPipeline()}).Run(context.Background(), state)
	if !strings.Contains(fc.lastRequest(promptScript).User, "Hook is too slow.") {
		t.Error("regeneration should include the previous feedback")
	}
}

func TestSamplePostsFormatting(t *testing.T) {
	p := post("x", 1500000, true, models.Metrics{})
	p.Author.Username = "PFF"
	p.CredibilityScore = 77.4
	p.Text = strings.Repeat("é", 250)
	p.EngagementScore = 5

	low := post("y", 10, false, models.Metrics{})
	low.EngagementScore = 1

	got := samplePosts([]*models.Post{low, p}, 1)
	want := `- @PFF (1,500,000 followers, cred=77): "` + strings.Repeat("é", 200) + `"`
	if got != want {
		t.Errorf("samplePosts() = %q", got)
	}
	if got := samplePosts(nil, 15); got != "(no sample tweets available)" {
		t.Errorf("empty samplePosts() = %q", got)
	}
}

func TestThousands(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 85000: "85,000", 10000000: "10,000,000", -1234: "-1,234"}
	for n, want := range tests {
		if got := thousands(n); got != want {
			t.Errorf("thousands(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestQualityStage(t *testing.T) {
	script := &models.FinalScript{Title: "T"}

	t.Run("verdict attaches report to a new script", func(t *testing.T) {
		fc := newFakeCompleter()
		fc.qualityPasses(0)
		state := pipeline.NewState(nil)
		state.Script = script

		res := (&qualityStage{llm: testLLM(fc)}).Run(context.Background(), state).(pipeline.QualityResult)
		if res.Passed || res.Feedback != "Hook is too slow." {
			t.Errorf("result = %+v", res)
		}
		if res.Script == script || res.Script.QualityReport == nil || res.Script.QualityReport.OverallScore != 58 {
			t.Errorf("report not attached to a copy: %+v", res.Script)
		}
		if script.QualityReport != nil {
			t.Error("original script was mutated")
		}
	})

	t.Run("call failure is a failed gate", func(t *testing.T) {
		fc := newFakeCompleter()
		fc.failAlways(promptQuality)
		state := pipeline.NewState(nil)
		state.Script = script

		res := (&qualityStage{llm: testLLM(fc)}).Run(context.Background(), state).(pipeline.QualityResult)
		if res.Passed || !strings.HasPrefix(res.Feedback, "Quality check error: ") || res.Failure() == "" {
			t.Errorf("result = %+v", res)
		}
		if res.Script != script {
			t.Error("script should be re-emitted unchanged")
		}
	})

	t.Run("no script", func(t *testing.T) {
		res := (&qualityStage{llm: testLLM(newFakeCompleter())}).Run(context.Background(), pipeline.NewState(nil)).(pipeline.QualityResult)
		if res.Feedback != "No script to evaluate." || res.Failure() != "No script available for quality check." {
			t.Errorf("result = %+v", res)
		}
	})
}

type stubSource struct {
	calls   []string
	results map[string][]*models.Post
	errs    map[string]error
}

func (s *stubSource) Search(_ context.Context, query string, start, end time.Time) ([]*models.Post, error) {
	s.calls = append(s.calls, query)
	return s.results[query], s.errs[query]
}

func newFetchStage(src PostSource, queries []string) *fetchStage {
	return &fetchStage{
		source:  src,
		queries: queries,
		window:  12 * time.Hour,
		now:     clock,
		logger:  logging.NewDiscardLogger(),
	}
}

func TestFetchStage(t *testing.T) {
	a := post("1", 1000, false, models.Metrics{Likes: 1})
	a.Text = "Lions fans are furious"
	b := post("2", 1000, false, models.Metrics{Likes: 1})

	src := &stubSource{
		results: map[string][]*models.Post{"q1": {a, b}, "q3": {b}},
		errs:    map[string]error{"q2": x.ErrRateLimited},
	}

	res := newFetchStage(src, []string{"q1", "q2", "q3"}).Run(context.Background(), pipeline.NewState(nil)).(pipeline.FetchResult)
	if res.Failure() != "" {
		t.Fatalf("unexpected failure %q", res.Failure())
	}
	if len(res.Posts) != 2 {
		t.Errorf("got %d posts, want 2 after dedup", len(res.Posts))
	}
	if len(src.calls) != 3 {
		t.Errorf("rate-limited query should be skipped, not stop the fetch: %v", src.calls)
	}
	if !strings.Contains(res.Summary(), "Lions") {
		t.Errorf("summary %q should mention teams", res.Summary())
	}
}

func TestFetchStageFailures(t *testing.T) {
	tests := []struct {
		name    string
		source  PostSource
		wantErr string
	}{
		{"no source", nil, errNoSource},
		{"empty window", &stubSource{}, errNoPosts},
		{"all rate limited", &stubSource{errs: map[string]error{"q": x.ErrRateLimited}}, errNoPosts},
		{"unauthorized", &stubSource{errs: map[string]error{"q": x.ErrUnauthorized}}, "Fetch error: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newFetchStage(tt.source, []string{"q"}).Run(context.Background(), pipeline.NewState(nil))
			if !strings.HasPrefix(res.Failure(), tt.wantErr) {
				t.Errorf("Failure() = %q, want prefix %q", res.Failure(), tt.wantErr)
			}
		})
	}
}

func TestFetchStageKeepsPostsBeforeRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	src := &stubSource{
		results: map[string][]*models.Post{
			"limited": {post("1", 1000, false, models.Metrics{Likes: 1})},
			"ok":      {post("2", 1000, false, models.Metrics{Likes: 1})},
		},
		errs: map[string]error{"limited": x.ErrRateLimited},
	}
	stage := newFetchStage(src, []string{"limited", "ok"})
	stage.cache = storage.NewRedisSearchCache(client, time.Hour)

	res := stage.Run(context.Background(), pipeline.NewState(nil)).(pipeline.FetchResult)
	if res.Failure() != "" || len(res.Posts) != 2 {
		t.Fatalf("got %d posts, failure %q", len(res.Posts), res.Failure())
	}

	start := fixedNow.Add(-windowEndLag).Add(-12 * time.Hour)
	if _, ok, _ := stage.cache.Get(context.Background(), storage.SearchKey("limited", start)); ok {
		t.Error("partial results must not be cached")
	}
	if _, ok, _ := stage.cache.Get(context.Background(), storage.SearchKey("ok", start)); !ok {
		t.Error("complete results should be cached")
	}
}

func TestFetchStagePassesPreloadedThrough(t *testing.T) {
	src := &stubSource{}
	preloaded := SamplePosts(fixedNow)

	res := newFetchStage(src, []string{"q"}).Run(context.Background(), pipeline.NewState(preloaded)).(pipeline.FetchResult)
	if len(res.Posts) != len(preloaded) || len(src.calls) != 0 {
		t.Errorf("got %d posts and %d searches, want %d and 0", len(res.Posts), len(src.calls), len(preloaded))
	}
}

func TestFetchStageUsesSearchCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	src := &stubSource{results: map[string][]*models.Post{"q": {post("1", 1000, false, models.Metrics{Likes: 1})}}}
	stage := newFetchStage(src, []string{"q"})
	stage.cache = storage.NewRedisSearchCache(client, time.Hour)

	for i := 0; i < 2; i++ {
		res := stage.Run(context.Background(), pipeline.NewState(nil)).(pipeline.FetchResult)
		if len(res.Posts) != 1 {
			t.Fatalf("run %d: got %d posts", i, len(res.Posts))
		}
	}
	if len(src.calls) != 1 {
		t.Errorf("source searched %d times, want 1 (second run from cache)", len(src.calls))
	}

	// a broken cache falls back to the source
	mr.Close()
	res := stage.Run(context.Background(), pipeline.NewState(nil)).(pipeline.FetchResult)
	if len(res.Posts) != 1 || len(src.calls) != 2 {
		t.Errorf("cache outage: %d posts, %d searches", len(res.Posts), len(src.calls))
	}
}

func TestBuildQueries(t *testing.T) {
	got := BuildQueries([]string{"Chiefs", " ", "nfl"})
	want := []string{
		"(NFL) lang:en -is:retweet -is:reply",
		"(NFL Sunday) lang:en -is:retweet -is:reply",
		"(postgame) lang:en -is:retweet -is:reply",
		"(Chiefs) lang:en -is:retweet -is:reply",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("BuildQueries() = %v", got)
	}
}

func TestTeamsMentioned(t *testing.T) {
	if len(Teams) != 32 {
		t.Errorf("len(Teams) = %d, want 32", len(Teams))
	}
	got := TeamsMentioned(SamplePosts(fixedNow))
	if len(got) == 0 || got[0] != "Bills" && got[0] != "Chiefs" && got[0] != "Lions" {
		t.Errorf("TeamsMentioned() = %v", got)
	}
}
