package retention

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Report summarizes one sweep. Failures holds per-file errors that did not
// stop the sweep.
type Report struct {
	Scanned  int
	Removed  []string
	Freed    uint64
	Failures []error
}

// Sweep deletes regular files in dir whose modification time is more than
// days before now. Subdirectories are left alone. Only an unreadable dir
// is returned as an error.
func Sweep(dir string, days int, now time.Time, log *zap.SugaredLogger) (Report, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	var rep Report
	if days < 1 {
		return rep, errors.Newf("retention days must be >= 1, got %d", days)
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return rep, errors.Wrapf(err, "reading %s", dir)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		rep.Scanned++
		info, err := e.Info()
		if err != nil {
			rep.Failures = append(rep.Failures, errors.Wrapf(err, "stat %s", e.Name()))
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			log.Warnw("log file removal failed", "file", path, "error", err)
			rep.Failures = append(rep.Failures, errors.Wrapf(err, "remove %s", path))
			continue
		}
		log.Infow("log file removed", "file", path, "modified", info.ModTime().Format(time.RFC3339))
		rep.Removed = append(rep.Removed, path)
		rep.Freed += uint64(info.Size())
	}

	log.Infow("retention sweep done", "dir", dir, "days", days, "scanned", rep.Scanned,
		"removed", len(rep.Removed), "freed", humanize.Bytes(rep.Freed), "failures", len(rep.Failures))
	return rep, nil
}
