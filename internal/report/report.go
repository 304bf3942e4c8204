package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/quillan/bleuwatch/internal/sink"
	"github.com/quillan/bleuwatch/internal/types"
)

type Options struct {
	// EventsPath is the JSONL metric stream to summarize.
	EventsPath string
	// Tags filters to the given metric tags; empty means all.
	Tags []string
}

// Row summarizes one metric tag across the stream.
type Row struct {
	Tag       string
	Count     int
	FirstStep int64
	LastStep  int64
	Min       float64
	Max       float64
	Last      float64
	LastTime  time.Time
}

type Report struct {
	Rows []Row
}

// Run aggregates an event stream into per-tag rows, ordered by tag name.
func Run(opts Options) (*Report, error) {
	if strings.TrimSpace(opts.EventsPath) == "" {
		return nil, errors.New("EventsPath is required")
	}
	events, err := sink.ReadJSONL(opts.EventsPath)
	if err != nil {
		return nil, err
	}

	tagSet := sliceToSet(opts.Tags)
	grouped := map[string][]types.MetricEvent{}
	for _, ev := range events {
		if tagSet != nil && !tagSet[ev.Tag] {
			continue
		}
		grouped[ev.Tag] = append(grouped[ev.Tag], ev)
	}

	rows := make([]Row, 0, len(grouped))
	for tag, group := range grouped {
		rows = append(rows, buildRow(tag, group))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Tag < rows[j].Tag })
	return &Report{Rows: rows}, nil
}

func buildRow(tag string, group []types.MetricEvent) Row {
	row := Row{
		Tag:       tag,
		Count:     len(group),
		FirstStep: group[0].Step,
		Min:       group[0].Value,
		Max:       group[0].Value,
	}
	for _, ev := range group {
		if ev.Step < row.FirstStep {
			row.FirstStep = ev.Step
		}
		if ev.Value < row.Min {
			row.Min = ev.Value
		}
		if ev.Value > row.Max {
			row.Max = ev.Value
		}
		// The stream is step-ordered per tag, but tolerate out-of-order
		// input from hand-edited files.
		if ev.Step >= row.LastStep {
			row.LastStep = ev.Step
			row.Last = ev.Value
			row.LastTime = ev.WallTime
		}
	}
	return row
}

// WriteTable renders the report as an aligned text table.
func (r *Report) WriteTable(w io.Writer) error {
	if w == nil {
		return errors.New("writer is nil")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tCOUNT\tFIRST STEP\tLAST STEP\tMIN\tMAX\tLAST")
	for _, row := range r.Rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\t%.2f\t%.2f\n",
			row.Tag, row.Count, row.FirstStep, row.LastStep, row.Min, row.Max, row.Last)
	}
	return tw.Flush()
}

// WriteCSV renders the report as CSV.
func (r *Report) WriteCSV(w io.Writer) error {
	if w == nil {
		return errors.New("writer is nil")
	}
	cw := csv.NewWriter(w)
	header := []string{"tag", "count", "first_step", "last_step", "min", "max", "last", "last_time"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range r.Rows {
		record := []string{
			row.Tag,
			strconv.Itoa(row.Count),
			strconv.FormatInt(row.FirstStep, 10),
			strconv.FormatInt(row.LastStep, 10),
			formatFloat(row.Min),
			formatFloat(row.Max),
			formatFloat(row.Last),
			row.LastTime.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func sliceToSet(vals []string) map[string]bool {
	if len(vals) == 0 {
		return nil
	}
	set := map[string]bool{}
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			set[v] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}
