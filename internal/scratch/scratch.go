// Package scratch manages the transient files a pipeline run creates.
package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Dir is a directory shared by concurrent runs for their transient files.
type Dir string

// Ensure creates the directory if needed.
func (d Dir) Ensure() error {
	if err := os.MkdirAll(string(d), 0o755); err != nil {
		return eris.Wrapf(err, "scratch: create %s", string(d))
	}
	return nil
}

// Path returns a fresh file name inside d. Names combine the current time with
// a random suffix so concurrent runs never collide.
func (d Dir) Path(prefix, ext string) string {
	name := fmt.Sprintf("%s-%d-%s%s", prefix, time.Now().UnixNano(), uuid.NewString()[:8], ext)
	return filepath.Join(string(d), name)
}

// Remove deletes path. A file that is already gone is not an error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "scratch: remove %s", path)
	}
	return nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
