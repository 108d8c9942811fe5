package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"turnpp/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	run := time.Date(2024, 3, 9, 23, 15, 0, 0, time.UTC)
	assert.Equal(t, "/data/results/turn_pp_20240309.json", Path("/data/results/", "turn_pp", run))
}

func TestWriteKeyedByTicket(t *testing.T) {
	rec := domain.StatsRecord{FileName: "Acme_id.csv", Rows: "2", Columns: "1", Headers: []string{"txn_id"}}
	rec.Add("txn_id", domain.MeasureCount, "2")
	res := domain.RunResults{"CAM-2": {"id": rec}}

	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, Write(path, res))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"CAM-2\": {")

	var decoded map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Acme_id.csv", decoded["CAM-2"]["id"]["file name"])
	assert.Equal(t, "2", decoded["CAM-2"]["id"]["txn_id count"])
}

func TestWriteEmptyRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, Write(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestWriteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "run.json")
	require.NoError(t, Write(path, domain.RunResults{}))
	assert.FileExists(t, path)
}

func TestWriteParentIsFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := Write(filepath.Join(blocker, "run.json"), domain.RunResults{})
	assert.Error(t, err)
}
