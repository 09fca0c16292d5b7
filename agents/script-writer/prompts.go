package scriptwriter

import (
	"fmt"

	"postgame-agent/shared/ai"
)

// Prompt identifiers, also used as log fields
const (
	promptSentiment  = "sentiment"
	promptNarratives = "narratives"
	promptOutline    = "outline"
	promptScript     = "script"
	promptQuality    = "quality"
)

type promptSettings struct {
	temperature float32
	maxTokens   int
}

var promptCatalogue = map[string]promptSettings{
	promptSentiment:  {temperature: 0.3, maxTokens: 4096},
	promptNarratives: {temperature: 0.4, maxTokens: 4096},
	promptOutline:    {temperature: 0.5, maxTokens: 4096},
	promptScript:     {temperature: 0.7, maxTokens: 8192},
	promptQuality:    {temperature: 0.2, maxTokens: 2048},
}

func newRequest(id, system, user string) ai.Request {
	s := promptCatalogue[id]
	return ai.Request{
		PromptID:    id,
		System:      system,
		User:        user,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}
}

const jsonOnly = "Respond with valid JSON only, without markdown fences."

const sentimentSystem = `You are an NFL sentiment analyst. For each post in a batch about NFL games:

1. Classify the sentiment as positive, negative, neutral or mixed
2. Rate the emotional intensity from 0.0 to 1.0
3. Name the primary emotion: anger, hype, disbelief, controversy, humor, sadness or celebration
4. Pull out the key phrases carrying the core take

` + jsonOnly

func sentimentPrompt(count int, postsJSON string) ai.Request {
	user := fmt.Sprintf(`Analyze these %d posts for sentiment, intensity and emotion.

POSTS:
%s

Return a JSON array with one object per post:
[
  {
    "tweet_id": "...",
    "sentiment": "positive|negative|neutral|mixed",
    "intensity": 0.0,
    "emotion": "anger|hype|disbelief|controversy|humor|sadness|celebration",
    "key_phrases": ["phrase1", "phrase2"]
  }
]`, count, postsJSON)
	return newRequest(promptSentiment, sentimentSystem, user)
}

func narrativesPrompt(count, numClusters int, postsJSON string) ai.Request {
	system := fmt.Sprintf(`You identify the dominant narratives in sports discourse.
Group the sentiment-labelled posts you are given into %d distinct narrative clusters,
each one a coherent storyline or debate.

%s`, numClusters, jsonOnly)

	user := fmt.Sprintf(`Here are %d scored, sentiment-labelled NFL posts from the latest post-game window.

POSTS:
%s

Identify exactly %d dominant narrative clusters:

[
  {
    "cluster_id": 0,
    "title": "Short narrative title",
    "summary": "2-3 sentence summary",
    "emotion": "primary emotion",
    "intensity": 0.0,
    "stance": "consensus|divided|polarized",
    "tweet_ids": ["id1", "id2"],
    "key_phrases": ["phrase1", "phrase2"],
    "counter_arguments": ["counter1", "counter2"],
    "relevance_score": 0
  }
]

Rank them by relevance and engagement potential for a YouTube audience.`, count, postsJSON, numClusters)
	return newRequest(promptNarratives, system, user)
}

// outlineSections is the fixed section structure every outline must follow
var outlineSections = []struct{ name, timestamp string }{
	{"Pattern Interrupt Hook", "0:00-0:20"},
	{"Emotional Framing", "0:20-1:00"},
	{"Narrative Build-Up", "1:00-3:00"},
	{"Evidence & Public Sentiment", "3:00-5:00"},
	{"Counterargument", "5:00-6:00"},
	{"Escalation", "6:00-8:00"},
	{"Big Take", "8:00-9:30"},
	{"Closing Loop Callback", "9:30-10:00"},
	{"CTA", "10:00-10:30"},
}

const outlineSystem = `You are a top YouTube script writer for NFL channels with 100k+ subscribers.
Your outlines keep more than half of viewers watching to the end. You work with
pattern interrupts, curiosity loops, emotional escalation, data-backed hot takes
and controversy framing that stays defensible.

` + jsonOnly

func outlinePrompt(narrativesJSON string, targetMinutes int) ai.Request {
	sections := ""
	for i, s := range outlineSections {
		sep := ","
		if i == len(outlineSections)-1 {
			sep = ""
		}
		sections += fmt.Sprintf(`    {"section_name": %q, "timestamp": %q, "content_notes": "...", "stage_direction": "..."}%s
`, s.name, s.timestamp, sep)
	}

	user := fmt.Sprintf(`Outline an 8-12 minute NFL YouTube video.

DOMINANT NARRATIVES (ranked by relevance):
%s

REQUIREMENTS:
- A title that earns the click without being clickbait
- Thumbnail hook text of at most 5 words
- Target length: %d minutes
- Cover the top narratives
- Use exactly the section structure below

Return JSON:
{
  "title": "...",
  "thumbnail_hook": "...",
  "target_minutes": %d,
  "sections": [
%s  ],
  "narratives_used": ["narrative title 1", "narrative title 2"]
}`, narrativesJSON, targetMinutes, targetMinutes, sections)
	return newRequest(promptOutline, outlineSystem, user)
}

const scriptSystem = `You write scripts for a top NFL YouTube channel.

RULES:
- First person and spoken-word, it will be read aloud
- Confident and fast-paced, a little controversial but defensible
- Back claims with data and public sentiment
- Paraphrase and synthesise posts, never read them out
- Sound human: contractions, emphasis, natural rhythm
- Use rhetorical questions, callbacks and pattern interrupts
- Every section flows into the next
- About 150 words per minute of target length

AVOID:
- Generic summaries
- Filler such as "many people are saying"
- Stock phrasing like "it's worth noting" or "in conclusion"
- Hedging

` + jsonOnly

func scriptPrompt(outlineJSON, narrativesJSON, samplePosts, feedback string) ai.Request {
	revision := ""
	if feedback != "" {
		revision = fmt.Sprintf(`

A REVIEWER REJECTED THE PREVIOUS DRAFT. Address this feedback:
%s`, feedback)
	}

	user := fmt.Sprintf(`Write the FULL script for this video.

OUTLINE:
%s

NARRATIVES WITH SUPPORTING DATA:
%s

SAMPLE SENTIMENT TO PARAPHRASE (never quote verbatim):
%s%s

Return JSON:
{
  "title": "...",
  "thumbnail_text": "max 5 words",
  "description": "YouTube description, 2-3 SEO-friendly paragraphs",
  "tags": ["tag1", "tag2"],
  "estimated_duration_minutes": 10.0,
  "sections": [
    {
      "section_name": "...",
      "timestamp": "...",
      "content": "the full spoken text of this section",
      "stage_direction": "..."
    }
  ]
}`, outlineJSON, narrativesJSON, samplePosts, revision)
	return newRequest(promptScript, scriptSystem, user)
}

const qualitySystem = `You review NFL YouTube scripts for retention. Score each script on:
1. Hook strength in the first 20 seconds
2. Pacing and flow
3. Retention curve
4. Authenticity
5. Controversy balance
6. CTA effectiveness
7. Production readiness

` + jsonOnly

func qualityPrompt(scriptJSON string) ai.Request {
	user := fmt.Sprintf(`Review this NFL YouTube script for production readiness.

SCRIPT:
%s

Return JSON:
{
  "passed": true,
  "overall_score": 0,
  "retention_estimate": 0.0,
  "feedback": "one detailed paragraph",
  "issues": ["issue1", "issue2"]
}

A script passes when overall_score >= 70 AND retention_estimate >= 0.45.`, scriptJSON)
	return newRequest(promptQuality, qualitySystem, user)
}
