package output_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillan/bleuwatch/internal/output"
)

func TestAppLines(t *testing.T) {
	var buf bytes.Buffer
	p := output.NewPrinter(&buf)

	require.NoError(t, p.App("Evaluating checkpoint at step 100."))
	require.NoError(t, p.Appf("BLEU_uncased = %.2f", 27.41))
	require.Equal(t, "Evaluating checkpoint at step 100.\nBLEU_uncased = 27.41\n", buf.String())
}

func TestNilWriterDiscards(t *testing.T) {
	p := output.NewPrinter(nil)
	require.NoError(t, p.App("nothing to see"))
}

func TestRunCommandStreamingCapturesOutput(t *testing.T) {
	var buf bytes.Buffer
	p := output.NewPrinter(&buf)

	out, err := p.RunCommandStreaming(context.Background(), t.TempDir(), "echo", "hello")
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(out))
	require.Contains(t, buf.String(), "echo hello\n")
	require.Contains(t, buf.String(), "hello\n")
}

func TestRunCommandStreamingFailure(t *testing.T) {
	p := output.NewPrinter(nil)
	_, err := p.RunCommandStreaming(context.Background(), t.TempDir(), "false")
	require.Error(t, err)
}

func TestGapBetweenCommandAndApp(t *testing.T) {
	var buf bytes.Buffer
	p := output.NewPrinter(&buf)

	_, err := p.RunCommandStreaming(context.Background(), t.TempDir(), "true")
	require.NoError(t, err)
	require.NoError(t, p.App("done"))
	require.Equal(t, "true\n\ndone\n", buf.String())
}
