package quality

import (
	"testing"

	"turnpp/internal/domain"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	fail  map[string]bool
	calls []string
}

func (f *fakeChecker) Check(tf domain.TypedFile) (domain.StatsRecord, error) {
	f.calls = append(f.calls, tf.Tag)
	if f.fail[tf.Tag] {
		return domain.StatsRecord{}, errors.Wrap(ErrEmptyData, "fake")
	}
	return domain.StatsRecord{FileName: tf.Name()}, nil
}

var required = []string{"id", "upc"}

func TestAggregateRejectsWrongPairSize(t *testing.T) {
	sets := map[string][]domain.TypedFile{
		"none":  nil,
		"one":   {{Tag: "id", Path: "/d/a_id.csv"}},
		"three": {{Tag: "id", Path: "/d/a_id.csv"}, {Tag: "upc", Path: "/d/a_upc.csv"}, {Tag: "upc", Path: "/d/b_upc.csv"}},
	}
	for name, files := range sets {
		t.Run(name, func(t *testing.T) {
			fc := &fakeChecker{}
			got, err := Aggregate(fc, files, required)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrPairShape))
			assert.Empty(t, fc.calls, "no file should be checked")
		})
	}
}

func TestAggregateRejectsUnexpectedTags(t *testing.T) {
	files := []domain.TypedFile{{Tag: "id", Path: "/d/a_id.csv"}, {Tag: "id", Path: "/d/b_id.csv"}}
	got, err := Aggregate(&fakeChecker{}, files, required)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrPairShape))
}

func TestAggregateAbortsOnFirstFailure(t *testing.T) {
	fc := &fakeChecker{fail: map[string]bool{"id": true}}
	files := []domain.TypedFile{{Tag: "id", Path: "/d/a_id.csv"}, {Tag: "upc", Path: "/d/a_upc.csv"}}

	got, err := Aggregate(fc, files, required)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrEmptyData))
	assert.Equal(t, []string{"id"}, fc.calls)
}

func TestAggregateKeysByTag(t *testing.T) {
	dir := t.TempDir()
	idPath := writeFile(t, dir, "Acme_id.csv", "xid|txn_id\nA1|1\n")
	upcPath := writeFile(t, dir, "Acme_upc.csv", "txn_id|upc\n1|0001\n")
	files := []domain.TypedFile{{Tag: "id", Path: idPath}, {Tag: "upc", Path: upcPath}}

	got, err := Aggregate(NewChecker(nil, nil), files, required)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "upc"}, got.Tags())
	assert.Equal(t, "Acme_id.csv", got["id"].FileName)
	assert.Equal(t, "Acme_upc.csv", got["upc"].FileName)
}
