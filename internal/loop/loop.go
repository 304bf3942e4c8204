package loop

import (
	"context"
	"time"

	"github.com/quillan/bleuwatch/internal/catalog"
	"github.com/quillan/bleuwatch/internal/config"
	"github.com/quillan/bleuwatch/internal/output"
	"github.com/quillan/bleuwatch/internal/sink"
	"github.com/quillan/bleuwatch/internal/types"
)

// DefaultPollInterval is how often the catalog is re-listed while waiting
// for the trainer to produce a new checkpoint.
const DefaultPollInterval = 10 * time.Second

// Clock abstracts time so the wait-deadline policy is testable without real
// time passing.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Evaluator produces BLEU percentages for one checkpoint. Satisfied by
// *scorer.Scorer.
type Evaluator interface {
	Evaluate(ctx context.Context, cp types.Checkpoint, variants []types.Variant) (map[types.Variant]float64, error)
}

// CursorStore persists the evaluated high-water mark. Satisfied by
// *cursor.Cursor.
type CursorStore interface {
	Load() (int64, error)
	Save(steps int64) error
}

// Options configures one evaluation run.
type Options struct {
	ModelDir    string
	RunMetaName string
	Variants    []types.Variant
	TagSuffix   string

	// MinSteps filters out already-evaluated checkpoints. The sentinel
	// config.DeriveMinSteps means "load the persisted cursor".
	MinSteps    int64
	WaitSeconds int

	// ReportBaseline overrides zero-baseline gating; nil applies the
	// default (emit iff the effective min-steps is 0).
	ReportBaseline *bool

	PollInterval time.Duration
	Clock        Clock

	// Notify, when non-nil, wakes a waiting loop early so a freshly
	// written checkpoint is picked up before the next poll tick.
	Notify <-chan struct{}

	Printer *output.Printer

	// List and StartTime default to the catalog package; tests inject
	// their own.
	List      func(dir string, minSteps int64) ([]types.Checkpoint, error)
	StartTime func(dir, metaName string) (time.Time, bool)
}

// Action is what the loop should do next when the backlog is empty.
type Action int

const (
	// Drain means the backlog has work.
	Drain Action = iota
	// SleepThenRetry means wait for the next poll and re-list.
	SleepThenRetry
	// Stop means waiting is disabled or the deadline has elapsed.
	Stop
)

// NextAction decides the state transition from the current observation.
// Pure so the policy is testable without a clock.
func NextAction(now time.Time, backlog int, deadline time.Time, waitSeconds int) Action {
	if backlog > 0 {
		return Drain
	}
	if waitSeconds == 0 {
		return Stop
	}
	if !now.Before(deadline) {
		return Stop
	}
	return SleepThenRetry
}

// Run drives the evaluation state machine until every discovered checkpoint
// is evaluated and no new one appears within the wait deadline. Checkpoints
// are processed strictly one at a time in step order; any evaluation or
// catalog failure is fatal and leaves the cursor at the last success.
func Run(ctx context.Context, opts Options, eval Evaluator, cur CursorStore, out sink.Sink) error {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	list := opts.List
	if list == nil {
		list = catalog.List
	}
	startTime := opts.StartTime
	if startTime == nil {
		startTime = catalog.RunStartTime
	}
	printer := opts.Printer
	if printer == nil {
		printer = output.NewPrinter(nil)
	}

	minSteps := opts.MinSteps
	if minSteps == config.DeriveMinSteps {
		loaded, err := cur.Load()
		if err != nil {
			return err
		}
		minSteps = loaded
		if err := printer.Appf("Resuming above step %d (from cursor).", minSteps); err != nil {
			return err
		}
	}

	baseline := minSteps == 0
	if opts.ReportBaseline != nil {
		baseline = *opts.ReportBaseline
	}
	if baseline {
		if err := emitBaseline(opts, startTime, printer, out); err != nil {
			return err
		}
	}

	wait := time.Duration(opts.WaitSeconds) * time.Second
	deadline := clock.Now().Add(wait)

	for {
		backlog, err := list(opts.ModelDir, minSteps)
		if err != nil {
			return err
		}
		if len(backlog) > 0 {
			if err := printer.Appf("Found %d checkpoint(s) above step %d.", len(backlog), minSteps); err != nil {
				return err
			}
		}
		for _, cp := range backlog {
			deadline = cp.Time.Add(wait)
			if err := printer.Appf("Evaluating checkpoint at step %d.", cp.Steps); err != nil {
				return err
			}
			scores, err := eval.Evaluate(ctx, cp, opts.Variants)
			if err != nil {
				return err
			}
			events := make([]types.MetricEvent, 0, len(opts.Variants))
			for _, v := range opts.Variants {
				events = append(events, types.MetricEvent{
					Tag:      v.Tag(opts.TagSuffix),
					Value:    scores[v],
					WallTime: cp.Time,
					Step:     cp.Steps,
				})
				if err := printer.Appf("%s = %6.2f (step %d)", v.Tag(opts.TagSuffix), scores[v], cp.Steps); err != nil {
					return err
				}
			}
			if err := out.Emit(events); err != nil {
				return err
			}
			if err := out.Flush(); err != nil {
				return err
			}
			if err := cur.Save(cp.Steps); err != nil {
				return err
			}
			minSteps = cp.Steps
		}
		if len(backlog) > 0 {
			// Drained this batch; re-list in case training moved on.
			continue
		}

		switch NextAction(clock.Now(), len(backlog), deadline, opts.WaitSeconds) {
		case Stop:
			if opts.WaitSeconds == 0 {
				return printer.App("No checkpoints left to evaluate.")
			}
			return printer.Appf("No new checkpoint within %ds; giving up.", opts.WaitSeconds)
		case SleepThenRetry:
			sleep := pollInterval
			if remaining := deadline.Sub(clock.Now()); remaining < sleep {
				sleep = remaining
			}
			if err := printer.Appf("Waiting for a new checkpoint (poll in %s).", sleep.Round(time.Millisecond)); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-clock.After(sleep):
			case <-opts.Notify:
			}
		}
	}
}

func emitBaseline(opts Options, startTime func(string, string) (time.Time, bool), printer *output.Printer, out sink.Sink) error {
	start, fromMeta := startTime(opts.ModelDir, opts.RunMetaName)
	if !fromMeta {
		if err := printer.Appf("Run metadata %q not found; anchoring baseline at %s.", opts.RunMetaName, start.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	events := make([]types.MetricEvent, 0, len(opts.Variants))
	for _, v := range opts.Variants {
		events = append(events, types.MetricEvent{
			Tag:      v.Tag(opts.TagSuffix),
			Value:    0,
			WallTime: start,
			Step:     0,
		})
	}
	if err := out.Emit(events); err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return err
	}
	return printer.App("Emitted zero baseline.")
}
