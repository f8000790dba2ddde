package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nvarley/signalrunner/internal/observ"
)

// Cursor persists the id of the last consumed alert so a restart never
// replays old signals. The file belongs to this process alone.
type Cursor struct {
	path string
	last uint64
}

type cursorFile struct {
	LastLogID uint64 `json:"last_log_id"`
}

// OpenCursor reads the cursor file. A missing or corrupt file
// initializes the cursor to zero and rewrites it.
func OpenCursor(path string) *Cursor {
	c := &Cursor{path: path}
	b, err := os.ReadFile(path)
	if err == nil {
		var f cursorFile
		if json.Unmarshal(b, &f) == nil {
			c.last = f.LastLogID
			return c
		}
	}
	if err != nil && !os.IsNotExist(err) {
		observ.Warn("cursor_read_failed", map[string]any{"path": path, "error": err.Error()})
	}
	if err := c.write(); err != nil {
		observ.Warn("cursor_init_failed", map[string]any{"path": path, "error": err.Error()})
	}
	return c
}

// Last returns the highest consumed alert id.
func (c *Cursor) Last() uint64 { return c.last }

// Seen reports whether an alert id is at or below the cursor.
func (c *Cursor) Seen(alertID string) bool {
	n, err := strconv.ParseUint(alertID, 10, 64)
	if err != nil {
		// Unparseable ids are treated as already seen so a malformed
		// record can never loop forever.
		return true
	}
	return n <= c.last
}

// Advance moves the cursor to alertID if it is higher and persists it.
func (c *Cursor) Advance(alertID string) error {
	n, err := strconv.ParseUint(alertID, 10, 64)
	if err != nil {
		return fmt.Errorf("cursor: bad alert id %q: %w", alertID, err)
	}
	if n <= c.last {
		return nil
	}
	c.last = n
	return c.write()
}

func (c *Cursor) write() error {
	b, err := json.Marshal(cursorFile{LastLogID: c.last})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
