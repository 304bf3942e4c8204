package sink

import (
	"github.com/quillan/bleuwatch/internal/types"
)

// Sink receives ordered metric events. Events must be visible to downstream
// readers in emission order after Flush. Sinks do not deduplicate; the
// single-pass evaluation loop guarantees each step is emitted once.
type Sink interface {
	Emit(events []types.MetricEvent) error
	Flush() error
	Close() error
}

// Multi fans events out to several sinks, preserving order per sink.
type Multi []Sink

func (m Multi) Emit(events []types.MetricEvent) error {
	for _, s := range m {
		if err := s.Emit(events); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Flush() error {
	for _, s := range m {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
