package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"postgame-agent/internal/models"
)

const maxSlugRunes = 50

// ScriptStore writes finished scripts to the output directory as a rendered
// .txt document plus the full .json artifact
type ScriptStore struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewScriptStore creates the output directory if needed
func NewScriptStore(dir string) (*ScriptStore, error) {
	if dir == "" {
		dir = "output"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &ScriptStore{dir: dir, now: time.Now}, nil
}

// Dir returns the output directory
func (s *ScriptStore) Dir() string {
	return s.dir
}

// Save writes <timestamp>_<slug>.txt and .json and returns the .txt path
func (s *ScriptStore) Save(script *models.FinalScript) (string, error) {
	if script == nil {
		return "", fmt.Errorf("script cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := fmt.Sprintf("%s_%s", s.now().UTC().Format("20060102_150405"), Slug(script.Title))
	txtPath := filepath.Join(s.dir, base+".txt")
	jsonPath := filepath.Join(s.dir, base+".json")

	if err := os.WriteFile(txtPath, []byte(script.Render()), 0644); err != nil {
		return "", fmt.Errorf("failed to write script text: %w", err)
	}

	file, err := os.Create(jsonPath)
	if err != nil {
		return "", fmt.Errorf("failed to create script json: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(script); err != nil {
		return "", fmt.Errorf("failed to encode script json: %w", err)
	}

	return txtPath, nil
}

// Load reads a script back from its .json artifact
func (s *ScriptStore) Load(jsonPath string) (*models.FinalScript, error) {
	file, err := os.Open(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open script json: %w", err)
	}
	defer file.Close()

	var script models.FinalScript
	if err := json.NewDecoder(file).Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to decode script json: %w", err)
	}
	return &script, nil
}

// Slug turns a title into a file-name fragment: the first 50 characters,
// lowercased, spaces as underscores, anything path-unsafe dropped.
func Slug(title string) string {
	runes := []rune(title)
	if len(runes) > maxSlugRunes {
		runes = runes[:maxSlugRunes]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(string(runes)) {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r == '_' || r == '-':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}

	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		return "untitled"
	}
	return slug
}
