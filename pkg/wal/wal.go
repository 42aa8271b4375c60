package wal

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// rw-r--r-- (擁有者讀寫，其他人唯讀)
const fileModeDefault fs.FileMode = 0644

// WAL 是 append-only 的 JSON log 檔
//
// 一行一筆 JSON，Append 只寫入 page cache，要落盤呼叫 Sync
type WAL struct {
	file *os.File
	mu   sync.Mutex
}

// Open 開啟或建立 log 檔
// O_APPEND 每次寫入自動跳到檔尾；O_CREATE 不存在則建立
func Open(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, fileModeDefault)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file}, nil
}

// Append 寫入一筆資料
func (w *WAL) Append(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return json.NewEncoder(w.file).Encode(v)
}

// Sync 強制刷入硬碟
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Replay 從頭讀取所有資料，逐筆回呼
// callback 收到的是單筆的 raw JSON，避免一次載入全部
func (w *WAL) Replay(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
	return nil
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}
