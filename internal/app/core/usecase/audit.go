package usecase

import (
	"time"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
)

// AuditEvent 一筆已提交的餘額變動通知
type AuditEvent struct {
	Record    domain.TransactionRecord `json:"record"`
	EmittedAt time.Time                `json:"emitted_at"`
}

// AuditSink 接收 commit 後的稽核通知
//
// Best effort：sink 失敗只記 log，永遠不影響交易結果，也不會回滾
type AuditSink interface {
	Notify(event AuditEvent) error
}
