package audit

import (
	"errors"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-wallet-ledger/pkg/wal"
)

// JournalSink 把稽核事件追加到 append-only 的 JSON log 檔
//
// 每筆事件寫入後立刻 fsync；這是 commit 之後的 best-effort 通知，
// 寫入失敗由引擎記 log，不影響交易
type JournalSink struct {
	log *wal.WAL
}

// NewJournalSink 建立 journal sink
func NewJournalSink(log *wal.WAL) *JournalSink {
	return &JournalSink{log: log}
}

// Notify implements usecase.AuditSink.
func (s *JournalSink) Notify(event usecase.AuditEvent) error {
	if err := s.log.Append(event); err != nil {
		return err
	}
	return s.log.Sync()
}

// Fanout 把同一筆事件廣播給多個 sink，錯誤彙整後一起回報
type Fanout []usecase.AuditSink

// Notify implements usecase.AuditSink.
func (f Fanout) Notify(event usecase.AuditEvent) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Notify(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ usecase.AuditSink = (*JournalSink)(nil)
	_ usecase.AuditSink = (Fanout)(nil)
)
