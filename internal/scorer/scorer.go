package scorer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/quillan/bleuwatch/internal/bleu"
	"github.com/quillan/bleuwatch/internal/output"
	"github.com/quillan/bleuwatch/internal/types"
	"github.com/quillan/bleuwatch/internal/workspace"
)

// ErrEvaluation marks a failed translate-or-score step for one checkpoint.
// The loop surfaces it without advancing the cursor, so a restart resumes at
// the failed checkpoint.
var ErrEvaluation = errors.New("evaluation failed")

// Scorer turns one checkpoint into BLEU values: it runs the external
// translator to produce a hypothesis file, then scores that file against the
// reference for each requested variant.
type Scorer struct {
	Command       string
	SourcePath    string
	ReferencePath string
	Layout        workspace.Layout
	Printer       *output.Printer

	// translate is swapped out by tests.
	translate func(ctx context.Context, cp types.Checkpoint, outPath string) error
}

func New(command, sourcePath, referencePath string, layout workspace.Layout, printer *output.Printer) *Scorer {
	s := &Scorer{
		Command:       command,
		SourcePath:    sourcePath,
		ReferencePath: referencePath,
		Layout:        layout,
		Printer:       printer,
	}
	s.translate = s.runTranslator
	return s
}

// Evaluate produces a map of variant to BLEU percentage for one checkpoint.
// The translate step dominates the cost and fully blocks the caller.
func (s *Scorer) Evaluate(ctx context.Context, cp types.Checkpoint, variants []types.Variant) (map[types.Variant]float64, error) {
	outPath := s.Layout.TranslationFile(cp.Steps)
	if err := s.translate(ctx, cp, outPath); err != nil {
		return nil, fmt.Errorf("%w: translate checkpoint %d: %v", ErrEvaluation, cp.Steps, err)
	}
	scores := make(map[types.Variant]float64, len(variants))
	for _, v := range variants {
		value, err := bleu.Files(s.ReferencePath, outPath, v == types.VariantCased)
		if err != nil {
			return nil, fmt.Errorf("%w: score checkpoint %d (%s): %v", ErrEvaluation, cp.Steps, v, err)
		}
		scores[v] = 100 * value
	}
	return scores, nil
}

// runTranslator expands the configured command template and executes it with
// the model directory as working directory, streaming its output.
func (s *Scorer) runTranslator(ctx context.Context, cp types.Checkpoint, outPath string) error {
	argv, err := ExpandCommand(s.Command, cp.Path, s.SourcePath, outPath)
	if err != nil {
		return err
	}
	if s.Printer != nil {
		_, err = s.Printer.RunCommandStreaming(ctx, s.Layout.ModelDir, argv[0], argv[1:]...)
		return err
	}
	p := output.NewPrinter(nil)
	_, err = p.RunCommandStreaming(ctx, s.Layout.ModelDir, argv[0], argv[1:]...)
	return err
}

// ExpandCommand splits a translator command line into argv and substitutes
// the {checkpoint}, {source} and {output} placeholders. Splitting follows
// shell quoting rules so templates may quote arguments.
func ExpandCommand(command, checkpoint, source, outPath string) ([]string, error) {
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse translator command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("translator command is empty")
	}
	replacer := strings.NewReplacer(
		"{checkpoint}", checkpoint,
		"{source}", source,
		"{output}", outPath,
	)
	for i, arg := range argv {
		argv[i] = replacer.Replace(arg)
	}
	return argv, nil
}
