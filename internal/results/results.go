package results

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"turnpp/internal/domain"

	"github.com/cockroachdb/errors"
	"github.com/natefinch/atomic"
)

// Path returns dir + appName + "_" + YYYYMMDD + ".json" for the run date.
func Path(dir, appName string, runTime time.Time) string {
	return dir + appName + "_" + runTime.Format("20060102") + ".json"
}

// Write stores the run results as indented JSON, replacing path atomically.
// An empty run still produces an empty object.
func Write(path string, res domain.RunResults) error {
	if res == nil {
		res = domain.RunResults{}
	}
	data, err := json.MarshalIndent(res, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encoding run results")
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
