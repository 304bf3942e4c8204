package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/quillan/bleuwatch/internal/config"
	"github.com/quillan/bleuwatch/internal/loop"
	"github.com/quillan/bleuwatch/internal/sink"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := silenceUsageAndErrors(&cobra.Command{Use: "bleuwatch"})
	root.AddCommand(newRunCmd())
	root.AddCommand(newReportCmd())
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunOneShotIdenticalFiles(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, filepath.Join(dir, "ref.txt"), "The cat sat.\n")
	hyp := writeFile(t, filepath.Join(dir, "hyp.txt"), "The cat sat.\n")

	out, err := execute(t,
		"run", "--reference", ref, "--hypothesis", hyp, "--bleu-variant", "both")
	require.NoError(t, err)
	require.Contains(t, out, "BLEU_uncased = 100.00\n")
	require.Contains(t, out, "BLEU_cased = 100.00\n")
}

func TestRunOneShotNoOverlap(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, filepath.Join(dir, "ref.txt"), "The cat sat.\n")
	hyp := writeFile(t, filepath.Join(dir, "hyp.txt"), "dogs run fast\n")

	out, err := execute(t,
		"run", "--reference", ref, "--hypothesis", hyp, "--bleu-variant", "both")
	require.NoError(t, err)
	require.Contains(t, out, "BLEU_uncased = 0.00\n")
	require.Contains(t, out, "BLEU_cased = 0.00\n")
}

func TestRunBothModesRejectedBeforeAnyIO(t *testing.T) {
	// Paths deliberately do not exist: validation must fire first.
	_, err := execute(t,
		"run",
		"--reference", "/does/not/exist/ref.txt",
		"--hypothesis", "/does/not/exist/hyp.txt",
		"--model-dir", "/does/not/exist/train",
	)
	require.ErrorIs(t, err, config.ErrUsage)
}

func TestRunRequiresAMode(t *testing.T) {
	_, err := execute(t, "run", "--reference", "/tmp/ref.txt")
	require.ErrorIs(t, err, config.ErrUsage)
}

func TestRunWatchModeDelegatesToLoop(t *testing.T) {
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "train")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))
	ref := writeFile(t, filepath.Join(dir, "ref.txt"), "The cat sat.\n")
	src := writeFile(t, filepath.Join(dir, "src.txt"), "Die Katze sass.\n")

	var got loop.Options
	orig := loopRunner
	t.Cleanup(func() { loopRunner = orig })
	loopRunner = func(ctx context.Context, opts loop.Options, eval loop.Evaluator, cur loop.CursorStore, out sink.Sink) error {
		got = opts
		return nil
	}

	_, err := execute(t,
		"run",
		"--model-dir", modelDir,
		"--reference", ref,
		"--source", src,
		"--translator", "decode {checkpoint} {source} {output}",
		"--min-steps", "500",
		"--wait-seconds", "60",
		"--tag-suffix", "_v2",
		"--bleu-variant", "both",
	)
	require.NoError(t, err)
	require.Equal(t, modelDir, got.ModelDir)
	require.Equal(t, int64(500), got.MinSteps)
	require.Equal(t, 60, got.WaitSeconds)
	require.Equal(t, "_v2", got.TagSuffix)
	require.Len(t, got.Variants, 2)

	// The layout directories exist before the loop starts.
	_, statErr := os.Stat(filepath.Join(modelDir, "translations_v2"))
	require.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(modelDir, "events_v2"))
	require.NoError(t, statErr)
}

func TestRunConfigFileWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "train")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))
	ref := writeFile(t, filepath.Join(dir, "ref.txt"), "x\n")
	src := writeFile(t, filepath.Join(dir, "src.txt"), "y\n")
	cfgFile := writeFile(t, filepath.Join(dir, "bleuwatch.yml"), `
model-dir: `+modelDir+`
reference: `+ref+`
source: `+src+`
translator: "decode {checkpoint} {source} {output}"
wait-seconds: 600
tag-suffix: _file
`)

	var got loop.Options
	orig := loopRunner
	t.Cleanup(func() { loopRunner = orig })
	loopRunner = func(ctx context.Context, opts loop.Options, eval loop.Evaluator, cur loop.CursorStore, out sink.Sink) error {
		got = opts
		return nil
	}

	_, err := execute(t, "run", "--config", cfgFile, "--wait-seconds", "30")
	require.NoError(t, err)
	require.Equal(t, 30, got.WaitSeconds, "flag overrides file")
	require.Equal(t, "_file", got.TagSuffix, "file value survives for unset flags")
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	events := writeFile(t, filepath.Join(dir, "events.jsonl"),
		`{"tag":"BLEU_uncased","value":10.5,"wall_time":"2024-03-01T00:00:00Z","step":100}
{"tag":"BLEU_uncased","value":12.1,"wall_time":"2024-03-01T01:00:00Z","step":200}
`)

	out, err := execute(t, "report", events)
	require.NoError(t, err)
	require.Contains(t, out, "BLEU_uncased")
	require.Contains(t, out, "12.10")

	out, err = execute(t, "report", "--csv", events)
	require.NoError(t, err)
	require.Contains(t, out, "tag,count,first_step")
}

func TestReportMissingFile(t *testing.T) {
	_, err := execute(t, "report", filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
}
