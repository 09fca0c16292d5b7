package pipeline

import (
	"testing"

	"postgame-agent/internal/models"
)

func TestAfterFetch(t *testing.T) {
	if got := AfterFetch(&State{}); got != End {
		t.Errorf("AfterFetch(empty) = %q, want End", got)
	}
	s := &State{RawPosts: []*models.Post{{ID: "1"}}}
	if got := AfterFetch(s); got != StageScoreEngagement {
		t.Errorf("AfterFetch(non-empty) = %q, want %q", got, StageScoreEngagement)
	}
}

func TestAfterQuality(t *testing.T) {
	tests := []struct {
		name     string
		passed   bool
		retries  int
		expected StageID
	}{
		{"Passed first try", true, 0, End},
		{"Failed first try", false, 0, StageIncrementRetry},
		{"Failed after one retry", false, 1, StageIncrementRetry},
		{"Failed with budget spent", false, 2, End},
		{"Passed on last retry", true, 2, End},
		{"Counter beyond budget", false, 5, End},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{QualityPassed: tt.passed, RetryCount: tt.retries}
			if got := AfterQuality(s, 2); got != tt.expected {
				t.Errorf("AfterQuality() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRequireOutput(t *testing.T) {
	tr := requireOutput(StageBuildOutline, hasNarratives)
	if got := tr(&State{}); got != End {
		t.Errorf("without narratives = %q, want End", got)
	}
	if got := tr(&State{Narratives: []models.Narrative{{Title: "x"}}}); got != StageBuildOutline {
		t.Errorf("with narratives = %q, want %q", got, StageBuildOutline)
	}
}
