package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRecordMarshalKeepsOrder(t *testing.T) {
	rec := StatsRecord{
		FileName: "acme_2024_id.csv",
		Rows:     "1,204",
		Columns:  "3",
		Headers:  []string{"xid", "txn_id", "units"},
	}
	rec.Add("units", MeasureMaxValue, "9")
	rec.Add("units", MeasureMinValue, "1")

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	got := string(data)
	order := []string{`"file name"`, `"file rows"`, `"file columns"`, `"column headers"`, `"units max value"`, `"units min value"`}
	last := -1
	for _, key := range order {
		idx := strings.Index(got, key)
		require.GreaterOrEqual(t, idx, 0, "missing key %s in %s", key, got)
		assert.Greater(t, idx, last, "key %s out of order", key)
		last = idx
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "1,204", decoded["file rows"])
	assert.Equal(t, []any{"xid", "txn_id", "units"}, decoded["column headers"])
}

func TestStatsRecordGet(t *testing.T) {
	var rec StatsRecord
	rec.Add("upc", MeasureMaxLength, "12")

	v, ok := rec.Get("upc max length")
	assert.True(t, ok)
	assert.Equal(t, "12", v)

	_, ok = rec.Get("upc min length")
	assert.False(t, ok)
}

func TestQualityResultTagsSorted(t *testing.T) {
	q := QualityResult{"upc": {}, "id": {}}
	assert.Equal(t, []string{"id", "upc"}, q.Tags())
}

func TestTicketHelpers(t *testing.T) {
	tk := Ticket{
		Key:    "CAM-2",
		Labels: []string{"Turn", "ZipFile_Created"},
		Fields: map[string]string{"customfield_10431": " 2024-01-01 "},
	}
	assert.True(t, tk.HasLabel("zipfile_created"))
	assert.False(t, tk.HasLabel("other"))
	assert.Equal(t, "2024-01-01", tk.Field("customfield_10431"))
	assert.Equal(t, "", tk.Field("missing"))

	c := ChildContext{Dir: "/data/CAM-1/CAM-2/", ArchiveBaseName: "Acme_2024-01-01_2024-01-07"}
	assert.Equal(t, "/data/CAM-1/CAM-2/Acme_2024-01-01_2024-01-07.zip", c.ArchivePath())
}
