package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind 交易類型
// 合法集合是固定的封閉集合，使用 uint8 節省空間
type Kind uint8

const (
	// 入帳
	KindCredit Kind = 1
	// 扣款
	KindDebit Kind = 2
	// 轉帳轉出方
	KindTransferOut Kind = 3
	// 轉帳轉入方
	KindTransferIn Kind = 4
)

// String 回傳 Kind 的機器可讀名稱 (API 與稽核事件用)
func (k Kind) String() string {
	switch k {
	case KindCredit:
		return "CREDIT"
	case KindDebit:
		return "DEBIT"
	case KindTransferOut:
		return "TRANSFER_OUT"
	case KindTransferIn:
		return "TRANSFER_IN"
	default:
		return "UNKNOWN"
	}
}

// Inbound 此類型是否為入金方向 (+amount)；否則為出金方向 (-amount)
func (k Kind) Inbound() bool {
	return k == KindCredit || k == KindTransferIn
}

// Status 交易紀錄狀態
// 引擎只會寫入 StatusSuccess；失敗的操作在任何寫入前就中止
type Status uint8

const (
	StatusSuccess Status = 1
	StatusPending Status = 2
	StatusFailed  Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusPending:
		return "PENDING"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// TransactionRecord 不可變的交易紀錄，每筆餘額變動各對應一筆
//
// 不變量: BalanceAfter == BalanceBefore ± Amount (依 Kind 方向)
// Reference 全域唯一，由 store 的唯一索引強制
type TransactionRecord struct {
	ID            uuid.UUID       `json:"id"`
	AccountID     uuid.UUID       `json:"account_id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	Kind          Kind            `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Reference     string          `json:"reference"`
	Description   string          `json:"description,omitempty"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ValidateAmount 檢查金額是否為合法的交易金額
//
// 規則:
//
//	必須 > 0
//	必須能以 2 位小數完整表示 (不做默默捨入)
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// LockOrder 回傳需要鎖定的帳戶 ID，依 ID 位元組遞增排序
//
// 鎖定順序必須是全域一致的 total order，與誰是轉出方無關，
// 否則兩筆反向轉帳併發時會互相等待造成死鎖
func LockOrder(ids ...uuid.UUID) []uuid.UUID {
	ordered := make([]uuid.UUID, len(ids))
	copy(ordered, ids)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && bytes.Compare(ordered[j][:], ordered[j-1][:]) < 0; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}
