package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quillan/bleuwatch/internal/config"
)

// Layout resolves the directories and files the evaluator reads and writes.
// Unset paths default to siblings of the model directory so a bare
// --model-dir invocation keeps everything in one place.
type Layout struct {
	ModelDir        string
	TranslationsDir string
	EventsDir       string
	CursorFile      string
	TagSuffix       string
}

func NewLayout(cfg config.Config) Layout {
	translations := cfg.TranslationsDir
	if translations == "" {
		translations = filepath.Join(cfg.ModelDir, "translations"+cfg.TagSuffix)
	}
	events := cfg.EventsDir
	if events == "" {
		events = filepath.Join(cfg.ModelDir, "events"+cfg.TagSuffix)
	}
	return Layout{
		ModelDir:        cfg.ModelDir,
		TranslationsDir: translations,
		EventsDir:       events,
		CursorFile:      filepath.Join(translations, "min_steps.txt"),
		TagSuffix:       cfg.TagSuffix,
	}
}

// TranslationFile is the deterministic hypothesis path for a step count.
// Re-evaluating the same step overwrites rather than appends.
func (l Layout) TranslationFile(steps int64) string {
	return filepath.Join(l.TranslationsDir, fmt.Sprintf("translation_%d.txt", steps))
}

// EventsFile is the metric event stream path.
func (l Layout) EventsFile() string {
	return filepath.Join(l.EventsDir, "events"+l.TagSuffix+".jsonl")
}

// Ensure creates the output directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.TranslationsDir, l.EventsDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
