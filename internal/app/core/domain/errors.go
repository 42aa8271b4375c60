package domain

import "errors"

var (
	// ErrInvalidAmount 金額不合法 (<= 0 或超過 2 位小數精度)
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidRequest 請求格式矛盾 (例如收款人同時給了 ID 和 Email，或都沒給)
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrRecipientNotFound 找不到收款帳戶
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrSelfTransfer 不允許轉帳給自己
	ErrSelfTransfer = errors.New("self transfer not allowed")

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateReference 交易參考號已被使用 (Idempotency)
	// 呼叫端收到此錯誤可視為「該筆交易已套用」，用 GetByReference 取回結果即可
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrLockTimeout 等待帳戶鎖超時，可安全重試 (帶同一個 reference)
	ErrLockTimeout = errors.New("lock wait timeout")

	// ErrStoreUnavailable 底層儲存無法連線或提交
	ErrStoreUnavailable = errors.New("store unavailable")
)
