package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Engine 是餘額的唯一變動者，實作 Credit / Debit / Transfer 三種 atomic 操作
//
// 每次呼叫的流程:
//
//	Validating -> ReferenceCheck -> LockAcquisition -> BalanceCheck -> Mutate&Record -> Committed
//
// 任一關卡失敗直接中止，保證零副作用 (沒有紀錄、沒有餘額變動)。
// 可以被多個 goroutine 併發呼叫
type Engine struct {
	store LedgerStore
	sink  AuditSink
	log   *slog.Logger
}

// NewEngine 建立交易引擎
//
// 參數:
//
//	store: 帳務儲存層
//	sink: 稽核通知接收端，可為 nil (不通知)
//	log: 結構化 logger，nil 則用 slog.Default()
func NewEngine(store LedgerStore, sink AuditSink, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store: store,
		sink:  sink,
		log:   log,
	}
}

// Credit 入帳
//
// description、reference 可為空字串；reference 為空時自動產生。
// 重複的 reference 回傳 domain.ErrDuplicateReference 且不改變任何狀態
func (e *Engine) Credit(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal, description, reference string) (*domain.TransactionRecord, error) {
	return e.applySingle(ctx, ownerID, domain.KindCredit, amount, description, reference)
}

// Debit 扣款
//
// 除了與 Credit 相同的前置檢查外，持鎖後以最新餘額檢查
// balance >= amount，不足回傳 domain.ErrInsufficientBalance
func (e *Engine) Debit(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal, description, reference string) (*domain.TransactionRecord, error) {
	return e.applySingle(ctx, ownerID, domain.KindDebit, amount, description, reference)
}

// applySingle 單帳戶操作的共同路徑 (Credit / Debit)
func (e *Engine) applySingle(ctx context.Context, ownerID uuid.UUID, kind domain.Kind, amount decimal.Decimal, description, reference string) (*domain.TransactionRecord, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	reference, err := e.resolveReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	acct, err := e.store.AccountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var rec *domain.TransactionRecord
	err = e.store.WithinTransaction(ctx, func(tx StoreTx) error {
		fresh, err := tx.LockAccount(ctx, acct.ID)
		if err != nil {
			return err
		}

		before := fresh.Balance
		if err := fresh.Apply(kind, amount); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, fresh.ID, fresh.Balance); err != nil {
			return err
		}

		rec = newRecord(fresh, kind, amount, reference, description, before)
		return tx.InsertRecord(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	e.emit(*rec)
	return rec, nil
}

// RecipientSelector 指定轉帳收款人，OwnerID 與 Email 必須恰好擇一
type RecipientSelector struct {
	OwnerID uuid.UUID
	Email   string
}

// TransferInput 轉帳請求
type TransferInput struct {
	SenderOwnerID uuid.UUID
	Recipient     RecipientSelector
	Amount        decimal.Decimal
	Description   string
	// Reference 為 base 參考號，引擎會衍生 <base>-OUT / <base>-IN 兩筆；
	// 空字串時自動產生
	Reference string
}

// TransferResult 轉帳結果：兩邊各一筆紀錄與提交後餘額
type TransferResult struct {
	OutRecord        *domain.TransactionRecord `json:"out_record"`
	InRecord         *domain.TransactionRecord `json:"in_record"`
	SenderBalance    decimal.Decimal           `json:"sender_balance"`
	RecipientBalance decimal.Decimal           `json:"recipient_balance"`
}

// Transfer 在兩個帳戶之間原子性地搬動資金
//
// 兩帳戶的鎖依 domain.LockOrder 的全域順序取得，與轉出/轉入角色無關，
// 讓反向併發轉帳在結構上不可能死鎖。兩筆紀錄與兩筆餘額變動
// 在同一個 atomic scope 內提交：要嘛全部生效，要嘛全部不生效
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}

	sender, err := e.store.AccountByOwner(ctx, in.SenderOwnerID)
	if err != nil {
		return nil, err
	}

	recipient, err := e.resolveRecipient(ctx, in.Recipient)
	if err != nil {
		return nil, err
	}

	if sender.ID == recipient.ID {
		return nil, domain.ErrSelfTransfer
	}

	base := in.Reference
	if base == "" {
		base = domain.NewReference()
	}
	outRef := domain.OutboundReference(base)
	inRef := domain.InboundReference(base)

	// 兩筆衍生參考號都要在取鎖前通過 advisory 檢查
	for _, ref := range []string{outRef, inRef} {
		used, err := e.store.ReferenceExists(ctx, ref)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, domain.ErrDuplicateReference
		}
	}

	var result *TransferResult
	err = e.store.WithinTransaction(ctx, func(tx StoreTx) error {
		locked := make(map[uuid.UUID]*domain.Account, 2)
		for _, id := range domain.LockOrder(sender.ID, recipient.ID) {
			fresh, err := tx.LockAccount(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = fresh
		}
		from, to := locked[sender.ID], locked[recipient.ID]

		fromBefore := from.Balance
		toBefore := to.Balance

		// 持鎖後用最新餘額再檢查一次
		if err := from.Apply(domain.KindTransferOut, in.Amount); err != nil {
			return err
		}
		if err := to.Apply(domain.KindTransferIn, in.Amount); err != nil {
			return err
		}

		if err := tx.UpdateBalance(ctx, from.ID, from.Balance); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, to.ID, to.Balance); err != nil {
			return err
		}

		outRec := newRecord(from, domain.KindTransferOut, in.Amount, outRef, in.Description, fromBefore)
		inRec := newRecord(to, domain.KindTransferIn, in.Amount, inRef, in.Description, toBefore)
		if err := tx.InsertRecord(ctx, outRec); err != nil {
			return err
		}
		if err := tx.InsertRecord(ctx, inRec); err != nil {
			return err
		}

		result = &TransferResult{
			OutRecord:        outRec,
			InRecord:         inRec,
			SenderBalance:    from.Balance,
			RecipientBalance: to.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emit(*result.OutRecord)
	e.emit(*result.InRecord)
	return result, nil
}

// GetBalance 查詢 owner 的目前餘額與幣別
func (e *Engine) GetBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, string, error) {
	acct, err := e.store.AccountByOwner(ctx, ownerID)
	if err != nil {
		return decimal.Zero, "", err
	}
	return acct.Balance, acct.Currency, nil
}

// HistoryPage 分頁的交易紀錄查詢結果
type HistoryPage struct {
	Records    []domain.TransactionRecord `json:"records"`
	Total      int64                      `json:"total"`
	Page       int                        `json:"page"`
	TotalPages int                        `json:"total_pages"`
}

// GetHistory 分頁查詢交易紀錄 (新到舊)
//
// page 從 1 起算；pageSize <= 0 用預設值 20，上限 100
func (e *Engine) GetHistory(ctx context.Context, ownerID uuid.UUID, page, pageSize int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	records, total, err := e.store.History(ctx, ownerID, page, pageSize)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &HistoryPage{
		Records:    records,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

// GetByReference 以 reference 查詢交易紀錄，限定 owner；查無回傳 (nil, nil)
func (e *Engine) GetByReference(ctx context.Context, reference string, ownerID uuid.UUID) (*domain.TransactionRecord, error) {
	return e.store.RecordByReference(ctx, reference, ownerID)
}

// resolveReference 空 reference 就產生一個，否則做 advisory 的重複檢查 (fail fast)
// 真正的防線是 store 的唯一索引，這裡只是提前擋掉明顯重複的請求
func (e *Engine) resolveReference(ctx context.Context, reference string) (string, error) {
	if reference == "" {
		return domain.NewReference(), nil
	}
	used, err := e.store.ReferenceExists(ctx, reference)
	if err != nil {
		return "", err
	}
	if used {
		return "", domain.ErrDuplicateReference
	}
	return reference, nil
}

// resolveRecipient 解析收款人，OwnerID / Email 必須恰好擇一
func (e *Engine) resolveRecipient(ctx context.Context, sel RecipientSelector) (*domain.Account, error) {
	byID := sel.OwnerID != uuid.Nil
	byEmail := sel.Email != ""
	if byID == byEmail {
		return nil, domain.ErrInvalidRequest
	}

	var (
		acct *domain.Account
		err  error
	)
	if byID {
		acct, err = e.store.AccountByOwner(ctx, sel.OwnerID)
	} else {
		acct, err = e.store.AccountByEmail(ctx, sel.Email)
	}
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrRecipientNotFound
		}
		return nil, err
	}
	return acct, nil
}

// emit 送出稽核通知 (fire-and-forget)
// sink 失敗只記 log，不影響已提交的交易
func (e *Engine) emit(rec domain.TransactionRecord) {
	if e.sink == nil {
		return
	}
	event := AuditEvent{Record: rec, EmittedAt: time.Now().UTC()}
	go func() {
		if err := e.sink.Notify(event); err != nil {
			e.log.Warn("audit notify failed",
				"reference", rec.Reference,
				"kind", rec.Kind.String(),
				"error", err,
			)
		}
	}()
}

func newRecord(acct *domain.Account, kind domain.Kind, amount decimal.Decimal, reference, description string, before decimal.Decimal) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		ID:            uuid.New(),
		AccountID:     acct.ID,
		OwnerID:       acct.OwnerID,
		Kind:          kind,
		Amount:        amount,
		Reference:     reference,
		Description:   description,
		BalanceBefore: before,
		BalanceAfter:  acct.Balance,
		Status:        domain.StatusSuccess,
		CreatedAt:     time.Now().UTC(),
	}
}
