package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattigo/autobot/model"
)

func request(ts time.Time, id string) model.RunRequest {
	return model.RunRequest{
		Environment:   model.EnvironmentBugs,
		Profile:       model.ProfileSupervisor,
		RequestedAt:   ts,
		CorrelationID: id,
	}
}

func TestRunDirName(t *testing.T) {
	req := request(time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC), "0123abcd-ef45-6789-0000-000000000000")
	require.Equal(t, "20260203-040506-bugs-supervisor-0123abcd", RunDirName(req))
}

func TestStore_RecordAndLoad(t *testing.T) {
	store := NewStore(zerolog.Nop(), t.TempDir())

	entries, err := store.LoadEntries()
	require.NoError(t, err)
	require.Empty(t, entries)

	older := request(time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC), "aaaa1111-0000-0000-0000-000000000000")
	newer := request(older.RequestedAt.Add(time.Hour), "bbbb2222-0000-0000-0000-000000000000")

	for _, req := range []model.RunRequest{older, newer} {
		dir, err := store.Prepare(req)
		require.NoError(t, err)
		require.True(t, filepath.IsAbs(dir))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ReportFile), []byte("<html></html>"), 0o644))

		h := &model.History{
			ID:         req.CorrelationID,
			Type:       model.HistoryTypeCLI,
			Timestamp:  req.RequestedAt,
			Request:    req,
			ExitStatus: model.ExitFailure,
			ExitCode:   1,
		}
		require.NoError(t, store.Record(dir, h, model.RunOutcome{Stdout: "collected 3 items\n"}))
		require.Len(t, h.Artifacts, 2)
		assert.Equal(t, model.ArtifactTypeReport, h.Artifacts[0].Type)
		assert.EqualValues(t, 13, h.Artifacts[0].Size)
		assert.Equal(t, model.ArtifactTypeStdout, h.Artifacts[1].Type)
	}

	entries, err = store.LoadEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, newer.CorrelationID, entries[0].History.ID)
	assert.Equal(t, model.EnvironmentBugs, entries[1].History.Request.Environment)

	data, err := os.ReadFile(filepath.Join(entries[0].FullPath, StdoutFile))
	require.NoError(t, err)
	assert.Equal(t, "collected 3 items\n", string(data))
}

func TestResolve(t *testing.T) {
	entries := []Entry{
		{History: model.History{ID: "bbbb2222"}},
		{History: model.History{ID: "aaaa1111"}},
		{History: model.History{ID: "31415926-0000-4000-8000-000000000000"}},
	}

	tests := []struct {
		arg     string
		wantID  string
		wantErr string
	}{
		{"", "bbbb2222", ""},
		{"0", "bbbb2222", ""},
		{"-1", "aaaa1111", ""},
		{"AAAA", "aaaa1111", ""},
		{"3141", "31415926-0000-4000-8000-000000000000", ""},
		{"1", "", "use 0 for last"},
		{"-2", "31415926-0000-4000-8000-000000000000", ""},
		{"-3", "", "out of range"},
		{"cccc", "", "no history entry found"},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			e, err := Resolve(entries, tt.arg)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, e.History.ID)
		})
	}

	_, err := Resolve(nil, "0")
	require.Error(t, err)
}
