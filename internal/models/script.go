package models

import (
	"fmt"
	"regexp"
	"strings"
)

// ScriptSection is one section of an outline or of the final script.
// In an outline Content holds the section notes, in a script the spoken text.
type ScriptSection struct {
	Name           string `json:"section_name"`
	Timestamp      string `json:"timestamp"` // e.g. "0:00-0:20"
	Content        string `json:"content"`
	StageDirection string `json:"stage_direction"` // visual / tone cues
}

// ScriptOutline is the structure produced before the full script is written
type ScriptOutline struct {
	Title          string          `json:"title"`
	ThumbnailHook  string          `json:"thumbnail_hook"`
	TargetMinutes  int             `json:"target_minutes"`
	Sections       []ScriptSection `json:"sections"`
	NarrativesUsed []string        `json:"narratives_used"`
}

// QualityReport is the verdict of one quality-check attempt
type QualityReport struct {
	Passed            bool     `json:"passed"`
	OverallScore      float64  `json:"overall_score"`      // 0-100
	RetentionEstimate float64  `json:"retention_estimate"` // 0-1
	Feedback          string   `json:"feedback"`
	Issues            []string `json:"issues"`
}

// FinalScript is the ready-to-record script and the pipeline's terminal artifact
type FinalScript struct {
	Title                    string          `json:"title"`
	ThumbnailText            string          `json:"thumbnail_text"`
	Description              string          `json:"description"`
	Tags                     []string        `json:"tags"`
	EstimatedDurationMinutes float64         `json:"estimated_duration_minutes"`
	Sections                 []ScriptSection `json:"sections"`
	FullText                 string          `json:"full_text"`
	QualityReport            *QualityReport  `json:"quality_report,omitempty"`
}

// WithQualityReport returns a copy of the script carrying the given report.
// The receiver is left untouched.
func (s *FinalScript) WithQualityReport(report QualityReport) *FinalScript {
	c := *s
	c.Tags = append([]string(nil), s.Tags...)
	c.Sections = append([]ScriptSection(nil), s.Sections...)
	report.Issues = append([]string(nil), report.Issues...)
	c.QualityReport = &report
	return &c
}

// JoinSpokenText concatenates the non-empty section contents
func JoinSpokenText(sections []ScriptSection) string {
	parts := make([]string, 0, len(sections))
	for _, sec := range sections {
		if sec.Content != "" {
			parts = append(parts, sec.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

const ruleWidth = 72

var rule = strings.Repeat("=", ruleWidth)

// Render returns the human-readable script document. Title and thumbnail
// newlines are escaped, and body lines that would read as a rule or a section
// header get a leading backslash, so ParseRendered stays exact.
func (s *FinalScript) Render() string {
	var lines []string
	lines = append(lines,
		"TITLE: "+escapeLine(s.Title),
		"THUMBNAIL: "+escapeLine(s.ThumbnailText),
		fmt.Sprintf("ESTIMATED DURATION: %.1f min", s.EstimatedDurationMinutes),
		"",
		rule,
	)
	for _, sec := range s.Sections {
		lines = append(lines, fmt.Sprintf("\n## %s  [%s]", flatten(sec.Name), flatten(sec.Timestamp)))
		if sec.StageDirection != "" {
			lines = append(lines, "   🎬 "+escapeBlock(sec.StageDirection))
		}
		lines = append(lines, "", escapeBlock(sec.Content), "")
	}
	lines = append(lines,
		rule,
		"\nDESCRIPTION:\n"+s.Description,
		"\nTAGS: "+strings.Join(s.Tags, ", "),
	)
	return strings.Join(lines, "\n")
}

var sectionHeader = regexp.MustCompile(`^## .*  \[.*\]$`)

var lineEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)

func escapeLine(s string) string {
	return lineEscaper.Replace(s)
}

func unescapeLine(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func escapeBlock(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == rule || sectionHeader.MatchString(line) || strings.HasPrefix(line, `\`) {
			lines[i] = `\` + line
		}
	}
	return strings.Join(lines, "\n")
}

// ParseRendered recovers the title and section count from a rendered script
func ParseRendered(text string) (title string, sections int, err error) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "TITLE: ") {
		return "", 0, fmt.Errorf("rendered script has no title line")
	}
	title = unescapeLine(strings.TrimPrefix(lines[0], "TITLE: "))

	inBody := false
	closed := false
	for _, line := range lines[1:] {
		if line == rule {
			if inBody {
				closed = true
				break
			}
			inBody = true
			continue
		}
		if inBody && sectionHeader.MatchString(line) {
			sections++
		}
	}
	if !closed {
		return "", 0, fmt.Errorf("rendered script body is not closed by a rule line")
	}
	return title, sections, nil
}
