package wal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Seq  int    `json:"seq"`
	Note string `json:"note"`
}

func replayAll(t *testing.T, w *WAL) []entry {
	t.Helper()
	var out []entry
	require.NoError(t, w.Replay(func(raw json.RawMessage) error {
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	}))
	return out
}

func TestAppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(entry{Seq: 1, Note: "a"}))
	require.NoError(t, w.Append(entry{Seq: 2, Note: "b"}))
	assert.Equal(t, 2, w.Records())
	require.NoError(t, w.Close())

	w, err = Open(path)
	require.NoError(t, err)
	defer w.Close()

	got := replayAll(t, w)
	assert.Equal(t, []entry{{1, "a"}, {2, "b"}}, got)

	// 回放後可以繼續追加
	require.NoError(t, w.Append(entry{Seq: 3, Note: "c"}))
	assert.Len(t, replayAll(t, w), 3)
}

func TestReplayDropsTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	content := `{"seq":1,"note":"ok"}` + "\n" + `{"seq":2,"no`
	require.NoError(t, os.WriteFile(path, []byte(content), FileMode))

	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	got := replayAll(t, w)
	assert.Equal(t, []entry{{1, "ok"}}, got)

	require.NoError(t, w.Append(entry{Seq: 2, Note: "again"}))
	assert.Equal(t, []entry{{1, "ok"}, {2, "again"}}, replayAll(t, w))
}

func TestReplayCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1}\nnot-json\n"), FileMode))

	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	err = w.Replay(func(json.RawMessage) error { return nil })
	assert.Error(t, err)
}

// faultyFile 包裝 *os.File，依設定讓 Write / Sync / Truncate 失敗
type faultyFile struct {
	*os.File
	shortWrite   bool  // 只寫入一半後回傳錯誤
	syncFailures int   // 接下來幾次 Sync 失敗
	truncateErr  error // Truncate 一律失敗
}

var errDisk = errors.New("disk error")

func (f *faultyFile) Write(p []byte) (int, error) {
	if f.shortWrite {
		f.shortWrite = false
		n, _ := f.File.Write(p[:len(p)/2])
		return n, errDisk
	}
	return f.File.Write(p)
}

func (f *faultyFile) Sync() error {
	if f.syncFailures > 0 {
		f.syncFailures--
		return errDisk
	}
	return f.File.Sync()
}

func (f *faultyFile) Truncate(size int64) error {
	if f.truncateErr != nil {
		return f.truncateErr
	}
	return f.File.Truncate(size)
}

func openFaulty(t *testing.T, path string) (*WAL, *faultyFile) {
	t.Helper()
	w, err := Open(path)
	require.NoError(t, err)
	ff := &faultyFile{File: w.file.(*os.File)}
	w.file = ff
	t.Cleanup(func() { _ = w.Close() })
	return w, ff
}

func reopen(t *testing.T, path string) []entry {
	t.Helper()
	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()
	return replayAll(t, w)
}

func TestAppendSyncFailureLeavesNoRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, ff := openFaulty(t, path)
	require.NoError(t, w.Append(entry{Seq: 1, Note: "kept"}))

	ff.syncFailures = 1
	err := w.Append(entry{Seq: 2, Note: "rejected"})
	assert.ErrorIs(t, err, errDisk)
	assert.NotErrorIs(t, err, ErrFailed)
	assert.Equal(t, []entry{{1, "kept"}}, reopen(t, path))

	// 失敗後仍可繼續寫入
	require.NoError(t, w.Append(entry{Seq: 3, Note: "next"}))
	assert.Equal(t, []entry{{1, "kept"}, {3, "next"}}, reopen(t, path))
}

func TestAppendShortWriteLeavesNoPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, ff := openFaulty(t, path)
	require.NoError(t, w.Append(entry{Seq: 1, Note: "kept"}))

	ff.shortWrite = true
	assert.ErrorIs(t, w.Append(entry{Seq: 2, Note: "half written"}), errDisk)

	require.NoError(t, w.Append(entry{Seq: 3, Note: "next"}))
	assert.Equal(t, []entry{{1, "kept"}, {3, "next"}}, reopen(t, path))
}

func TestAppendFailsPermanentlyWhenRollbackFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, ff := openFaulty(t, path)
	require.NoError(t, w.Append(entry{Seq: 1, Note: "kept"}))

	ff.syncFailures = 1
	ff.truncateErr = errors.New("read-only filesystem")
	assert.ErrorIs(t, w.Append(entry{Seq: 2, Note: "rejected"}), ErrFailed)

	// 檔案狀態不明，之後的寫入一律拒絕
	ff.truncateErr = nil
	assert.ErrorIs(t, w.Append(entry{Seq: 3, Note: "refused"}), ErrFailed)
}

func TestAppendOnClosedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(entry{Seq: 1, Note: "kept"}))
	require.NoError(t, w.Close())

	assert.Error(t, w.Append(entry{Seq: 2, Note: "lost"}))
	assert.Equal(t, []entry{{1, "kept"}}, reopen(t, path))
}
