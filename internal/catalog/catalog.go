package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quillan/bleuwatch/internal/types"
)

// ErrUnavailable means the checkpoint directory itself could not be listed.
// An empty directory is not unavailable; it lists as zero checkpoints.
var ErrUnavailable = errors.New("checkpoint directory unavailable")

// Checkpoint index artifacts are named <prefix>-<steps>.index.
var indexName = regexp.MustCompile(`^(.+)-(\d+)\.index$`)

// List returns the checkpoints in dir whose step count exceeds minSteps,
// ordered by step count ascending. Every call re-lists the directory; no
// state is cached between calls.
func List(dir string, minSteps int64) ([]types.Checkpoint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var found []types.Checkpoint
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := indexName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		steps, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		if steps <= minSteps {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("%w: stat %s: %v", ErrUnavailable, entry.Name(), err)
		}
		prefix := filepath.Join(dir, m[1])
		found = append(found, types.Checkpoint{
			Path:  fmt.Sprintf("%s-%d", prefix, steps),
			Steps: steps,
			Time:  info.ModTime(),
		})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Steps < found[j].Steps })
	return found, nil
}

// RunStartTime returns the wall-clock anchor for the zero-baseline event:
// the timestamp of the run-metadata artifact when present, otherwise the
// earliest checkpoint's creation time, otherwise time.Now. The boolean
// reports whether the metadata artifact was found.
func RunStartTime(dir, metaName string) (time.Time, bool) {
	if strings.TrimSpace(metaName) != "" {
		if info, err := os.Stat(filepath.Join(dir, metaName)); err == nil {
			return info.ModTime(), true
		}
	}
	if cps, err := List(dir, -1); err == nil && len(cps) > 0 {
		return cps[0].Time, false
	}
	return time.Now(), false
}
