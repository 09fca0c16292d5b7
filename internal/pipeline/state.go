package pipeline

import (
	"fmt"

	"postgame-agent/internal/models"
)

// Field names one slot of the shared state
type Field string

const (
	FieldRawPosts        Field = "raw_posts"
	FieldScoredPosts     Field = "scored_posts"
	FieldFilteredPosts   Field = "filtered_posts"
	FieldSentiment       Field = "sentiment"
	FieldNarratives      Field = "narratives"
	FieldOutline         Field = "outline"
	FieldScript          Field = "script"
	FieldQualityPassed   Field = "quality_passed"
	FieldQualityFeedback Field = "quality_feedback"
	FieldMessages        Field = "messages"
	FieldError           Field = "error"
	FieldRetryCount      Field = "retry_count"
)

// MergePolicy decides how an update's value is folded into the state
type MergePolicy int

const (
	// Replace overwrites the old value, even with an empty one
	Replace MergePolicy = iota
	// Append adds new elements after the existing ones
	Append
)

func (p MergePolicy) String() string {
	switch p {
	case Replace:
		return "replace"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("MergePolicy(%d)", int(p))
	}
}

// State is threaded through every stage of a run. Stages receive it
// read-only and describe their changes as an Update.
type State struct {
	RawPosts        []*models.Post
	ScoredPosts     []*models.Post
	FilteredPosts   []*models.Post
	Sentiment       map[string]models.SentimentAnnotation
	Narratives      []models.Narrative
	Outline         *models.ScriptOutline
	Script          *models.FinalScript
	QualityPassed   bool
	QualityFeedback string
	Messages        []string
	Error           string
	RetryCount      int
}

// NewState returns the initial state for a run. Pre-loaded posts are
// passed through by the fetch stage instead of querying the source.
func NewState(preloaded []*models.Post) *State {
	return &State{RawPosts: preloaded}
}

// Clone copies the state so the engine never mutates its caller's value.
// Posts and nested artifacts are treated as immutable and shared.
func (s *State) Clone() *State {
	c := *s
	c.Messages = append([]string(nil), s.Messages...)
	return &c
}

type fieldSpec struct {
	policy MergePolicy
	merge  func(dst, src *State)
}

func replaceOf[T any](ptr func(*State) *T) fieldSpec {
	return fieldSpec{
		policy: Replace,
		merge:  func(dst, src *State) { *ptr(dst) = *ptr(src) },
	}
}

func appendOf[E any](ptr func(*State) *[]E) fieldSpec {
	return fieldSpec{
		policy: Append,
		merge:  func(dst, src *State) { *ptr(dst) = append(*ptr(dst), *ptr(src)...) },
	}
}

var registry = map[Field]fieldSpec{
	FieldRawPosts:        replaceOf(func(s *State) *[]*models.Post { return &s.RawPosts }),
	FieldScoredPosts:     replaceOf(func(s *State) *[]*models.Post { return &s.ScoredPosts }),
	FieldFilteredPosts:   replaceOf(func(s *State) *[]*models.Post { return &s.FilteredPosts }),
	FieldSentiment:       replaceOf(func(s *State) *map[string]models.SentimentAnnotation { return &s.Sentiment }),
	FieldNarratives:      replaceOf(func(s *State) *[]models.Narrative { return &s.Narratives }),
	FieldOutline:         replaceOf(func(s *State) **models.ScriptOutline { return &s.Outline }),
	FieldScript:          replaceOf(func(s *State) **models.FinalScript { return &s.Script }),
	FieldQualityPassed:   replaceOf(func(s *State) *bool { return &s.QualityPassed }),
	FieldQualityFeedback: replaceOf(func(s *State) *string { return &s.QualityFeedback }),
	FieldMessages:        appendOf(func(s *State) *[]string { return &s.Messages }),
	FieldError:           replaceOf(func(s *State) *string { return &s.Error }),
	FieldRetryCount:      replaceOf(func(s *State) *int { return &s.RetryCount }),
}

// PolicyOf returns the declared merge policy for f
func PolicyOf(f Field) (MergePolicy, bool) {
	entry, ok := registry[f]
	return entry.policy, ok
}

// Update is a partial state: the values in Values are only meaningful for
// the fields listed in Fields.
type Update struct {
	Values State
	Fields []Field
}

// Touches reports whether the update carries f
func (u Update) Touches(f Field) bool {
	for _, field := range u.Fields {
		if field == f {
			return true
		}
	}
	return false
}

// WithMessage returns u extended with one diagnostic message
func (u Update) WithMessage(msg string) Update {
	u.Values.Messages = append(append([]string(nil), u.Values.Messages...), msg)
	if !u.Touches(FieldMessages) {
		u.Fields = append(append([]Field(nil), u.Fields...), FieldMessages)
	}
	return u
}

// Merge folds u into s field by field using each field's declared policy.
// Nothing is applied if u names an unregistered field.
func (s *State) Merge(u Update) error {
	for _, f := range u.Fields {
		if _, ok := registry[f]; !ok {
			return fmt.Errorf("update names unregistered field %q", f)
		}
	}
	seen := make(map[Field]bool, len(u.Fields))
	for _, f := range u.Fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		registry[f].merge(s, &u.Values)
	}
	return nil
}
