package artifact

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

type swap struct {
	stage string
	live  string
}

// Stager collects staging directories for one run and swaps them live
// together. A run that fails before Publish leaves every live
// directory untouched; Discard removes its staging leftovers.
type Stager struct {
	runID string
	dirs  []swap
}

// NewStager creates a Stager for one run. The run ID suffixes every
// staging directory so concurrent leftovers never collide.
func NewStager(runID string) *Stager {
	return &Stager{runID: runID}
}

// Dir creates and returns the staging directory standing in for live.
// Callers write artifacts there; Publish moves it into place.
func (s *Stager) Dir(live string) (string, error) {
	stage := live + ".stage-" + s.runID
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return "", eris.Wrapf(err, "artifact: create staging dir for %s", live)
	}
	s.dirs = append(s.dirs, swap{stage: stage, live: live})
	return stage, nil
}

// Publish swaps every staged directory into its live path. The old
// live directory is set aside, the stage renamed over it, and the old
// generation removed only after the rename lands.
func (s *Stager) Publish() error {
	for _, sw := range s.dirs {
		prev := sw.live + ".prev-" + s.runID
		if _, err := os.Stat(sw.live); err == nil {
			if err := os.Rename(sw.live, prev); err != nil {
				return eris.Wrapf(err, "artifact: set aside %s", sw.live)
			}
		}
		if err := os.Rename(sw.stage, sw.live); err != nil {
			return eris.Wrapf(err, "artifact: publish %s", sw.live)
		}
		if err := os.RemoveAll(prev); err != nil {
			return eris.Wrapf(err, "artifact: remove previous generation of %s", sw.live)
		}
		zap.L().Info("artifact: published directory",
			zap.String("dir", sw.live),
			zap.String("run_id", s.runID),
		)
	}
	s.dirs = nil
	return nil
}

// Discard removes all staging directories after a failed run. Live
// output is untouched.
func (s *Stager) Discard() {
	for _, sw := range s.dirs {
		if err := os.RemoveAll(sw.stage); err != nil {
			zap.L().Warn("artifact: discard staging dir",
				zap.String("dir", filepath.Base(sw.stage)),
				zap.Error(err),
			)
		}
	}
	s.dirs = nil
}
