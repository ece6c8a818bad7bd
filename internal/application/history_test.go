package application_test

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedlab/powergate/internal/application"
	"github.com/embedlab/powergate/internal/domain/model"
)

func testRecord(sha string, startedAt time.Time) model.RunRecord {
	return model.RunRecord{
		ID:          "run-" + sha,
		HeadSHA:     sha,
		TriggeredBy: "alice",
		StartedAt:   startedAt,
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestHistoryWindow_AppendCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "first_few_seconds.csv")
	h := application.NewHistoryWindow(path)

	started := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, h.Append(testRecord("0fc232abcdef", started), 0.0033))

	rows := readRows(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"2026-08-01", "0fc232a", "alice", "0.0033"}, rows[0])
}

func TestHistoryWindow_CapsAtWindowSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "first_few_seconds.csv")
	h := application.NewHistoryWindow(path)

	started := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		sha := fmt.Sprintf("%07d", i)
		require.NoError(t, h.Append(testRecord(sha, started.Add(time.Duration(i)*time.Hour)), 0.001))
	}

	rows := readRows(t, path)
	require.Len(t, rows, 25, "chart window must drop the oldest rows")
	assert.Equal(t, "0000005", rows[0][1], "oldest surviving row")
	assert.Equal(t, "0000029", rows[24][1], "newest row last")
}
