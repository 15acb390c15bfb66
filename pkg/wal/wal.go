package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// rw-r--r-- (擁有者讀寫，其他人唯讀)
const FileMode fs.FileMode = 0644

// ErrFailed 寫入失敗且無法復原檔案內容，WAL 不再接受寫入
var ErrFailed = errors.New("wal failed")

// file 是 WAL 使用到的檔案操作 (*os.File)
type file interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
	Truncate(size int64) error
	Stat() (fs.FileInfo, error)
}

// WAL 是以 JSON Lines 格式追加寫入的 Write-Ahead Log
// 每一行是一筆完整紀錄，Append 回傳前已 fsync
// Append 失敗時檔案內容回到寫入前的狀態；做不到時 WAL 進入 failed 狀態
type WAL struct {
	file    file
	mu      sync.Mutex
	records int
	failed  error
}

// Open 開啟或建立一個 WAL 檔案
// O_RDWR 讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func Open(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileMode)
	if err != nil {
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	return &WAL{file: f}, nil
}

// Append 寫入一筆資料並刷入硬碟
//
// 參數:
//
//	v: 可被 json.Marshal 的紀錄
//
// 回傳:
//
//	error: 寫入失敗 (檔案已截回寫入前長度)，或 ErrFailed
func (w *WAL) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode wal record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return fmt.Errorf("%w: %w", ErrFailed, w.failed)
	}

	info, err := w.file.Stat()
	if err != nil {
		return fmt.Errorf("stat wal: %w", err)
	}
	offset := info.Size()

	if err := w.write(line); err != nil {
		// 寫了一半或 fsync 失敗：截回原長度，避免失敗的紀錄在回放時生效
		if terr := w.rollback(offset); terr != nil {
			w.failed = errors.Join(err, terr)
			return fmt.Errorf("%w: %w", ErrFailed, w.failed)
		}
		return err
	}
	w.records++
	return nil
}

func (w *WAL) write(line []byte) error {
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("write wal record: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync wal: %w", err)
	}
	return nil
}

func (w *WAL) rollback(offset int64) error {
	if err := w.file.Truncate(offset); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}
	if _, err := w.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek wal: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync truncated wal: %w", err)
	}
	return nil
}

// Records 本次開啟後讀取 + 寫入的紀錄數
func (w *WAL) Records() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// Replay 從頭依序讀取所有紀錄
// callback 接收單筆紀錄的原始 JSON，避免一次將所有資料載入記憶體
//
// 檔尾若有寫到一半的紀錄 (例如寫入時當機)，會被截斷丟棄，之前的紀錄照常回放
func (w *WAL) Replay(callback func(raw json.RawMessage) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	var good int64
	for {
		var raw json.RawMessage
		err := decoder.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// torn tail
			if err := w.file.Truncate(good); err != nil {
				return fmt.Errorf("truncate torn wal tail: %w", err)
			}
			break
		}
		if err != nil {
			return fmt.Errorf("decode wal record %d: %w", w.records+1, err)
		}
		if err := callback(raw); err != nil {
			return err
		}
		good = decoder.InputOffset()
		w.records++
	}

	_, err := w.file.Seek(0, io.SeekEnd)
	return err
}
