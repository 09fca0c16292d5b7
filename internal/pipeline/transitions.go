package pipeline

// StageID names a node of the graph
type StageID string

const (
	StageFetch             StageID = "fetch"
	StageScoreEngagement   StageID = "score_engagement"
	StageFilterCredibility StageID = "filter_credibility"
	StageClusterSentiment  StageID = "cluster_sentiment"
	StageExtractNarratives StageID = "extract_narratives"
	StageBuildOutline      StageID = "build_outline"
	StageGenerateScript    StageID = "generate_script"
	StageCheckQuality      StageID = "check_quality"
	StageIncrementRetry    StageID = "increment_retry"

	// End terminates the run
	End StageID = ""
)

// Transition picks the next stage from the merged state
type Transition func(s *State) StageID

// AfterFetch ends the run when there is nothing to score
func AfterFetch(s *State) StageID {
	if len(s.RawPosts) == 0 {
		return End
	}
	return StageScoreEngagement
}

// AfterQuality ends the run when the script passed or the retry budget is
// spent, and otherwise schedules another script generation.
func AfterQuality(s *State, maxRetries int) StageID {
	if s.QualityPassed || s.RetryCount >= maxRetries {
		return End
	}
	return StageIncrementRetry
}

// requireOutput continues to next only while the stage left usable output
func requireOutput(next StageID, ok func(s *State) bool) Transition {
	return func(s *State) StageID {
		if !ok(s) {
			return End
		}
		return next
	}
}

func always(next StageID) Transition {
	return func(*State) StageID { return next }
}

func hasScored(s *State) bool     { return len(s.ScoredPosts) > 0 }
func hasFiltered(s *State) bool   { return len(s.FilteredPosts) > 0 }
func hasNarratives(s *State) bool { return len(s.Narratives) > 0 }
func hasOutline(s *State) bool    { return s.Outline != nil }
