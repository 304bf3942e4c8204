package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/quillan/bleuwatch/internal/types"
)

// JSONL appends metric events to a newline-delimited JSON file. The file is
// the durable event stream other tools (and the report command) read back.
type JSONL struct {
	path string
	file *os.File
	w    *bufio.Writer
}

// OpenJSONL opens (or creates) the event stream at path for appending.
func OpenJSONL(path string) (*JSONL, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event stream %s: %w", path, err)
	}
	return &JSONL{path: path, file: file, w: bufio.NewWriter(file)}, nil
}

func (j *JSONL) Emit(events []types.MetricEvent) error {
	enc := json.NewEncoder(j.w)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("append event to %s: %w", j.path, err)
		}
	}
	return nil
}

// Flush makes all emitted events durable and visible to readers.
func (j *JSONL) Flush() error {
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("flush event stream %s: %w", j.path, err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("sync event stream %s: %w", j.path, err)
	}
	return nil
}

func (j *JSONL) Close() error {
	if err := j.w.Flush(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}

// ReadJSONL loads a complete event stream, in stored order.
func ReadJSONL(path string) ([]types.MetricEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event stream %s: %w", path, err)
	}
	defer file.Close()

	var events []types.MetricEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev types.MetricEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("parse event stream %s: %w", path, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event stream %s: %w", path, err)
	}
	return events, nil
}
