// Package artifact writes the pipeline's derived JSON files.
//
// Every artifact shares one encoding contract: UTF-8, two-space
// indentation, a trailing newline, snake_case fields, RFC 3339 UTC
// timestamps. Empty collections serialize as [], and every file is
// written on every run, so consumers never handle absence.
package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// WriteJSON marshals v with two-space indentation and writes it to
// path with a trailing newline. Values JSON cannot represent (NaN,
// ±Inf) fail the write instead of corrupting the artifact.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "artifact: marshal %s", filepath.Base(path))
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "artifact: write %s", filepath.Base(path))
	}
	zap.L().Debug("artifact: wrote file",
		zap.String("path", path),
		zap.Int("bytes", len(data)),
	)
	return nil
}
