package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
)

// StoreTx 是一個 atomic scope 內可用的寫入介面
//
// scope 結束時要嘛全部生效、要嘛全部回滾，鎖也一律釋放 (成功、失敗、panic 都一樣)
type StoreTx interface {
	// LockAccount 取得帳戶的排他鎖並回傳最新狀態 (read-with-intent-to-write)
	// 多帳戶操作必須依 domain.LockOrder 的順序呼叫，否則有死鎖風險
	LockAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	// UpdateBalance 覆寫帳戶餘額，呼叫端必須已持有該帳戶的鎖
	UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error
	// InsertRecord 寫入一筆交易紀錄
	// reference 的唯一索引在這裡是 authoritative 的：兩個併發呼叫端
	// 用同一個 reference，後提交的一方必定收到 ErrDuplicateReference
	InsertRecord(ctx context.Context, rec *domain.TransactionRecord) error
}

// LedgerStore 是帳務儲存層的介面 (Account Store + Ledger Record Store)
type LedgerStore interface {
	// WithinTransaction 開啟 atomic scope 執行 fn；fn 回傳錯誤則整個 scope 回滾
	WithinTransaction(ctx context.Context, fn func(tx StoreTx) error) error

	// CreateAccount 建立帳戶 (owner 註冊時呼叫，核心引擎本身不會用到)
	CreateAccount(ctx context.Context, acct *domain.Account) error
	// AccountByOwner 以 owner ID 查帳戶
	AccountByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error)
	// AccountByEmail 以唯一 email 查帳戶 (轉帳收款人解析用)
	AccountByEmail(ctx context.Context, email string) (*domain.Account, error)

	// ReferenceExists 檢查 reference 是否已被使用 (advisory fail-fast)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	// RecordByReference 以 reference 查交易紀錄，限定 owner；查無回傳 (nil, nil)
	RecordByReference(ctx context.Context, reference string, ownerID uuid.UUID) (*domain.TransactionRecord, error)
	// History 分頁查詢 owner 的交易紀錄 (新到舊)，回傳紀錄與總筆數
	History(ctx context.Context, ownerID uuid.UUID, page, pageSize int) ([]domain.TransactionRecord, int64, error)
}
