package quality

import (
	"sort"
	"strings"

	"turnpp/internal/domain"

	"github.com/cockroachdb/errors"
)

// FileChecker is the per-file step of Aggregate.
type FileChecker interface {
	Check(tf domain.TypedFile) (domain.StatsRecord, error)
}

// Aggregate checks every file of a pair and returns their records keyed by
// type tag. The pair must carry exactly the required tags, one file each.
// Any failure returns a nil result so callers skip the pair entirely.
func Aggregate(c FileChecker, files []domain.TypedFile, requiredTags []string) (domain.QualityResult, error) {
	if err := checkPairShape(files, requiredTags); err != nil {
		return nil, err
	}

	result := make(domain.QualityResult, len(files))
	for _, f := range files {
		rec, err := c.Check(f)
		if err != nil {
			return nil, errors.Wrapf(err, "check %s", f.Name())
		}
		result[f.Tag] = rec
	}
	return result, nil
}

func checkPairShape(files []domain.TypedFile, requiredTags []string) error {
	if len(files) == 0 || len(files) != len(requiredTags) {
		return errors.Wrapf(ErrPairShape, "expected %d files, found %d", len(requiredTags), len(files))
	}
	got := make([]string, 0, len(files))
	for _, f := range files {
		got = append(got, f.Tag)
	}
	want := append([]string(nil), requiredTags...)
	sort.Strings(got)
	sort.Strings(want)
	for i := range want {
		if got[i] != want[i] {
			return errors.Wrapf(ErrPairShape, "expected tags [%s], found [%s]",
				strings.Join(want, ", "), strings.Join(got, ", "))
		}
	}
	return nil
}
