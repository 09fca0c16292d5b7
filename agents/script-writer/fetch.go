package scriptwriter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"postgame-agent/agents/script-writer/x"
	"postgame-agent/internal/models"
	"postgame-agent/internal/pipeline"
	"postgame-agent/shared/storage"

	"github.com/sirupsen/logrus"
)

// PostSource searches for posts created inside a window
type PostSource interface {
	Search(ctx context.Context, query string, start, end time.Time) ([]*models.Post, error)
}

const (
	errNoSource = "X_BEARER_TOKEN not set. Use --dry-run or add to .env."
	errNoPosts  = "No tweets found in post-game window. Check timing or API access."
)

// The window ends slightly in the past; recent search rejects an end_time
// too close to now.
const windowEndLag = 30 * time.Second

type fetchStage struct {
	source  PostSource
	cache   storage.SearchCache
	queries []string
	window  time.Duration
	now     func() time.Time
	logger  logrus.FieldLogger
}

func (f *fetchStage) Name() pipeline.StageID { return pipeline.StageFetch }

func (f *fetchStage) Run(ctx context.Context, s *pipeline.State) pipeline.Result {
	if len(s.RawPosts) > 0 {
		return pipeline.FetchResult{
			Report: pipeline.Report{Note: fmt.Sprintf("using %d preloaded posts", len(s.RawPosts))},
			Posts:  s.RawPosts,
		}
	}
	if f.source == nil {
		return pipeline.FetchResult{Report: pipeline.Report{Err: errNoSource}}
	}

	end := f.now().UTC().Add(-windowEndLag)
	start := end.Add(-f.window)

	seen := make(map[string]bool)
	var posts []*models.Post
	skipped := 0

	for _, query := range f.queries {
		results, err := f.search(ctx, query, start, end)
		if errors.Is(err, x.ErrRateLimited) {
			f.logger.WithField("query", query).Warnf("⚠️  Rate limited, skipping query (keeping %d posts)", len(results))
			skipped++
		} else if err != nil {
			return pipeline.FetchResult{Report: pipeline.Report{Err: fmt.Sprintf("Fetch error: %v", err)}}
		}

		for _, p := range results {
			if p == nil || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			posts = append(posts, p)
		}
	}

	if len(posts) == 0 {
		return pipeline.FetchResult{Report: pipeline.Report{Err: errNoPosts}}
	}

	note := fmt.Sprintf("fetched %d posts from %d queries", len(posts), len(f.queries)-skipped)
	if teams := TeamsMentioned(posts); len(teams) > 0 {
		note += " (teams: " + strings.Join(teams[:min(len(teams), 5)], ", ") + ")"
	}
	return pipeline.FetchResult{Report: pipeline.Report{Note: note}, Posts: posts}
}

// search consults the cache before the source. Cache failures only cost a
// log line.
func (f *fetchStage) search(ctx context.Context, query string, start, end time.Time) ([]*models.Post, error) {
	if f.cache == nil {
		return f.source.Search(ctx, query, start, end)
	}

	key := storage.SearchKey(query, start)
	cached, ok, err := f.cache.Get(ctx, key)
	if err != nil {
		f.logger.WithError(err).Warn("Search cache read failed")
	} else if ok {
		f.logger.WithField("query", query).Debugf("Cache hit: %d posts", len(cached))
		return cached, nil
	}

	// partial pages are returned alongside the error but never cached
	posts, err := f.source.Search(ctx, query, start, end)
	if err != nil {
		return posts, err
	}
	if err := f.cache.Set(ctx, key, posts); err != nil {
		f.logger.WithError(err).Warn("Search cache write failed")
	}
	return posts, nil
}
