package report_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillan/bleuwatch/internal/report"
	"github.com/quillan/bleuwatch/internal/sink"
	"github.com/quillan/bleuwatch/internal/types"
)

func writeStream(t *testing.T, events []types.MetricEvent) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	s, err := sink.OpenJSONL(path)
	require.NoError(t, err)
	require.NoError(t, s.Emit(events))
	require.NoError(t, s.Close())
	return path
}

func at(step int64) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(step) * time.Second)
}

func TestRunAggregatesPerTag(t *testing.T) {
	path := writeStream(t, []types.MetricEvent{
		{Tag: "BLEU_uncased", Value: 0, WallTime: at(0), Step: 0},
		{Tag: "BLEU_cased", Value: 0, WallTime: at(0), Step: 0},
		{Tag: "BLEU_uncased", Value: 10.5, WallTime: at(100), Step: 100},
		{Tag: "BLEU_cased", Value: 9.8, WallTime: at(100), Step: 100},
		{Tag: "BLEU_uncased", Value: 12.1, WallTime: at(200), Step: 200},
		{Tag: "BLEU_cased", Value: 11.0, WallTime: at(200), Step: 200},
	})

	rep, err := report.Run(report.Options{EventsPath: path})
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2)

	// Rows sort by tag name.
	cased := rep.Rows[0]
	require.Equal(t, "BLEU_cased", cased.Tag)
	require.Equal(t, 3, cased.Count)
	require.Equal(t, int64(0), cased.FirstStep)
	require.Equal(t, int64(200), cased.LastStep)
	require.Equal(t, 11.0, cased.Last)

	uncased := rep.Rows[1]
	require.Equal(t, "BLEU_uncased", uncased.Tag)
	require.Equal(t, 0.0, uncased.Min)
	require.Equal(t, 12.1, uncased.Max)
	require.Equal(t, 12.1, uncased.Last)
}

func TestRunTagFilter(t *testing.T) {
	path := writeStream(t, []types.MetricEvent{
		{Tag: "BLEU_uncased", Value: 10.5, WallTime: at(100), Step: 100},
		{Tag: "BLEU_cased", Value: 9.8, WallTime: at(100), Step: 100},
	})

	rep, err := report.Run(report.Options{EventsPath: path, Tags: []string{"BLEU_cased"}})
	require.NoError(t, err)
	require.Len(t, rep.Rows, 1)
	require.Equal(t, "BLEU_cased", rep.Rows[0].Tag)
}

func TestRunMissingStream(t *testing.T) {
	_, err := report.Run(report.Options{EventsPath: filepath.Join(t.TempDir(), "nope.jsonl")})
	require.Error(t, err)
}

func TestRunRequiresPath(t *testing.T) {
	_, err := report.Run(report.Options{})
	require.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	path := writeStream(t, []types.MetricEvent{
		{Tag: "BLEU_uncased", Value: 10.5, WallTime: at(100), Step: 100},
	})
	rep, err := report.Run(report.Options{EventsPath: path})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteCSV(&buf))
	lines := buf.String()
	require.Contains(t, lines, "tag,count,first_step,last_step,min,max,last,last_time")
	require.Contains(t, lines, "BLEU_uncased,1,100,100,10.5000,10.5000,10.5000,")
}

func TestWriteTable(t *testing.T) {
	path := writeStream(t, []types.MetricEvent{
		{Tag: "BLEU_uncased", Value: 10.5, WallTime: at(100), Step: 100},
	})
	rep, err := report.Run(report.Options{EventsPath: path})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteTable(&buf))
	require.Contains(t, buf.String(), "BLEU_uncased")
	require.Contains(t, buf.String(), "TAG")
}
