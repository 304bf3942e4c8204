package cursor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Cursor persists the highest step count that has been successfully
// evaluated. It is a plain-text file holding a single integer so the value
// survives restarts and remains inspectable by hand.
type Cursor struct {
	path string
}

func New(path string) *Cursor {
	return &Cursor{path: path}
}

// Load reads the persisted step count. A missing file is the normal
// first-run state and loads as 0.
func (c *Cursor) Load() (int64, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor %s: %w", c.path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	steps, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cursor %s holds %q, want an integer: %w", c.path, text, err)
	}
	return steps, nil
}

// Save atomically overwrites the persisted step count. The value is written
// to a temp file and renamed into place so a crash mid-save never leaves the
// cursor ahead of what was actually evaluated.
func (c *Cursor) Save(steps int64) error {
	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".cursor-*")
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := fmt.Fprintf(tmp, "%d\n", steps); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save cursor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save cursor: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
