package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terroirdata/coopaudit/internal/model"
)

// LockPath returns the advisory lock location for an output folder.
// The lock sits next to the folder, not inside it, so the publish swap
// never moves it.
func LockPath(outputDir string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(outputDir)), ".coopaudit.lock")
}

// Lock is an exclusive marker file refusing overlapping runs against
// the same output location.
type Lock struct {
	path string
}

// AcquireLock creates the marker file, failing when another run holds
// it. The file records the holder for the error message a refused run
// sees.
func AcquireLock(path string, run *model.PipelineRun) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		holder := "unknown holder"
		if b, readErr := os.ReadFile(path); readErr == nil && len(b) > 0 {
			holder = strings.ReplaceAll(strings.TrimSpace(string(b)), "\n", ", ")
		}
		return nil, eris.Errorf("pipeline: another run is active against this output location (%s: %s)", path, holder)
	}
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: acquire lock")
	}

	_, writeErr := fmt.Fprintf(f, "pid=%d\nrun_id=%s\nstarted=%s\n",
		os.Getpid(), run.ID, run.StartedAt.Format(time.RFC3339))
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(path)
		return nil, eris.Wrap(errors.Join(writeErr, closeErr), "pipeline: write lock")
	}
	return &Lock{path: path}, nil
}

// Release removes the marker file. Safe to call once per acquired
// lock; a failure is logged rather than returned since the run outcome
// is already decided by then.
func (l *Lock) Release() {
	if err := os.Remove(l.path); err != nil {
		zap.L().Warn("pipeline: release lock",
			zap.String("component", "pipeline"),
			zap.String("path", l.path),
			zap.Error(err),
		)
	}
}
