package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account 單一 owner 的餘額紀錄
//
// Balance 只能在引擎的 atomic scope 內、持有該帳戶鎖時變動，
// 任何情況下不得為負
type Account struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Email     string          `json:"email"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Apply 依交易類型把金額套用到餘額上
//
// 出金方向會先檢查餘額是否足夠 (呼叫端必須已持有帳戶鎖，
// 讓這個檢查是對最新餘額做的，而不是 stale read)
func (a *Account) Apply(kind Kind, amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}

	if kind.Inbound() {
		a.Balance = a.Balance.Add(amount)
		return nil
	}

	if a.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}
