package supervisor

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestLedgerAppendInvokedAndFinished(t *testing.T) {
	dir := t.TempDir()
	l, err := openLedger(
		filepath.Join(dir, "invoked.csv"),
		filepath.Join(dir, "running.csv"),
		filepath.Join(dir, "finished.csv"),
	)
	require.NoError(t, err)
	defer l.close()

	start := time.Date(2026, 7, 29, 10, 30, 5, 0, time.UTC)
	end := start.Add(2 * time.Second)
	run := &Run{
		ID:        newRunID(start, 4242),
		Kind:      KindRunning,
		PID:       4242,
		Cmd:       "/bin/echo hello ",
		StartedAt: start,
	}

	require.NoError(t, l.appendInvoked(run, "/status/RUNNING/"+string(run.ID)))

	invoked := readCSV(t, filepath.Join(dir, "invoked.csv"))
	require.Equal(t, invokedHeader, invoked[0])
	require.Equal(t, string(run.ID), invoked[1][0])
	require.Equal(t, "4242", invoked[1][1])
	require.Equal(t, "RUNNING", invoked[1][2])
	require.Equal(t, "/bin/echo hello ", invoked[1][5])

	run.ExitStatus = 0
	run.EndedAt = end
	require.NoError(t, l.appendFinished(run, "/status/DONE/"+string(run.ID)))

	finished := readCSV(t, filepath.Join(dir, "finished.csv"))
	require.Equal(t, finishedHeader, finished[0])
	require.Equal(t, "0", finished[1][3]) // returnCode
	require.Equal(t, "2", finished[1][6]) // duration seconds
}

func TestLedgerRewriteRunningReplacesFileContentsWholesale(t *testing.T) {
	dir := t.TempDir()
	l, err := openLedger(
		filepath.Join(dir, "invoked.csv"),
		filepath.Join(dir, "running.csv"),
		filepath.Join(dir, "finished.csv"),
	)
	require.NoError(t, err)
	defer l.close()

	require.NoError(t, l.rewriteRunning([][]string{{"a", "1", "RUNNING", "x", "1", "dir", "cmd "}}))
	rows := readCSV(t, l.runningPath)
	require.Len(t, rows, 2)

	// A second, smaller rewrite must fully replace the first, not append.
	require.NoError(t, l.rewriteRunning(nil))
	rows = readCSV(t, l.runningPath)
	require.Equal(t, runningHeader, rows[0])
	require.Len(t, rows, 1)
}

func TestOpenIndexWritesHeader(t *testing.T) {
	dir := t.TempDir()
	f, w, err := openIndex(filepath.Join(dir, "stdindex.csv"))
	require.NoError(t, err)
	require.NoError(t, w.Write([]string{"out", "2026-07-29 10:30.05", "128"}))
	w.Flush()
	require.NoError(t, f.Close())

	rows := readCSV(t, filepath.Join(dir, "stdindex.csv"))
	require.Equal(t, indexHeader, rows[0])
	require.Equal(t, []string{"out", "2026-07-29 10:30.05", "128"}, rows[1])
}
