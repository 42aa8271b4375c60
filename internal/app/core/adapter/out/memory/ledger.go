package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
)

// DefaultLockWait 等待單一帳戶鎖的預設上限
const DefaultLockWait = 3 * time.Second

// lockedAccount 帳戶本體加上它的排他鎖
// 鎖用容量 1 的 channel 實作，讓等待可以被 context 取消 (sync.Mutex 做不到)
type lockedAccount struct {
	acct *domain.Account
	lk   chan struct{}
}

// Store 是純記憶體的帳務儲存層 (Level 1)
//
// 每個帳戶一把鎖，不同帳戶的操作完全平行；
// reference 唯一性由 refs / pendingRefs 兩張表強制
type Store struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*lockedAccount
	byOwner  map[uuid.UUID]uuid.UUID
	byEmail  map[string]uuid.UUID
	// 已提交的紀錄，以 reference 為 key
	refs map[string]*domain.TransactionRecord
	// 尚未提交但已被某個 scope 預約的 reference
	pendingRefs map[string]struct{}
	// 每個 owner 的紀錄 (依提交順序 append)
	history map[uuid.UUID][]*domain.TransactionRecord

	// 鎖等待上限 (奈秒)；atomic 讓它可以在有請求在途時被調整
	lockWait atomic.Int64
}

// NewStore 建立記憶體儲存層
func NewStore() *Store {
	s := &Store{
		accounts:    make(map[uuid.UUID]*lockedAccount),
		byOwner:     make(map[uuid.UUID]uuid.UUID),
		byEmail:     make(map[string]uuid.UUID),
		refs:        make(map[string]*domain.TransactionRecord),
		pendingRefs: make(map[string]struct{}),
		history:     make(map[uuid.UUID][]*domain.TransactionRecord),
	}
	s.lockWait.Store(int64(DefaultLockWait))
	return s
}

// SetLockWait 調整鎖等待上限 (測試用)
func (s *Store) SetLockWait(d time.Duration) {
	s.lockWait.Store(int64(d))
}

// CreateAccount 建立帳戶；owner 或 email 已存在回傳 ErrAccountAlreadyExists
func (s *Store) CreateAccount(ctx context.Context, acct *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byOwner[acct.OwnerID]; ok {
		return domain.ErrAccountAlreadyExists
	}
	if acct.Email != "" {
		if _, ok := s.byEmail[acct.Email]; ok {
			return domain.ErrAccountAlreadyExists
		}
	}

	cp := *acct
	s.accounts[cp.ID] = &lockedAccount{
		acct: &cp,
		lk:   make(chan struct{}, 1),
	}
	s.byOwner[cp.OwnerID] = cp.ID
	if cp.Email != "" {
		s.byEmail[cp.Email] = cp.ID
	}
	return nil
}

// AccountByOwner 以 owner ID 查帳戶
func (s *Store) AccountByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOwner[ownerID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *s.accounts[id].acct
	return &cp, nil
}

// AccountByEmail 以 email 查帳戶
func (s *Store) AccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *s.accounts[id].acct
	return &cp, nil
}

// ReferenceExists 已提交或已被預約的 reference 都算使用中
func (s *Store) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.refs[reference]; ok {
		return true, nil
	}
	_, pending := s.pendingRefs[reference]
	return pending, nil
}

// RecordByReference 查無回傳 (nil, nil)
func (s *Store) RecordByReference(ctx context.Context, reference string, ownerID uuid.UUID) (*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.refs[reference]
	if !ok || rec.OwnerID != ownerID {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// History 分頁回傳 owner 的紀錄，新到舊
func (s *Store) History(ctx context.Context, ownerID uuid.UUID, page, pageSize int) ([]domain.TransactionRecord, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.history[ownerID]
	total := int64(len(all))

	// 依建立時間新到舊；同時間依提交順序反轉
	ordered := make([]*domain.TransactionRecord, len(all))
	for i, rec := range all {
		ordered[len(all)-1-i] = rec
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	start := (page - 1) * pageSize
	if start >= len(ordered) {
		return []domain.TransactionRecord{}, total, nil
	}
	end := start + pageSize
	if end > len(ordered) {
		end = len(ordered)
	}

	out := make([]domain.TransactionRecord, 0, end-start)
	for _, rec := range ordered[start:end] {
		out = append(out, *rec)
	}
	return out, total, nil
}

// WithinTransaction 開啟 atomic scope
//
// 寫入先暫存在 tx 裡，fn 成功才一次套用；失敗則釋放預約的 reference、
// 丟棄暫存。無論結果為何，持有的帳戶鎖在 scope 結束時一律釋放
func (s *Store) WithinTransaction(ctx context.Context, fn func(tx usecase.StoreTx) error) error {
	tx := &storeTx{
		s:        s,
		balances: make(map[uuid.UUID]decimal.Decimal),
	}
	defer tx.releaseLocks()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

// storeTx 記憶體版的 atomic scope
type storeTx struct {
	s        *Store
	held     []*lockedAccount
	balances map[uuid.UUID]decimal.Decimal
	records  []*domain.TransactionRecord
	reserved []string
}

// LockAccount 取得帳戶排他鎖
// 超時回傳 ErrLockTimeout (可重試)；呼叫端取消則回傳 ctx.Err()，兩者要分得開
func (t *storeTx) LockAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	t.s.mu.RLock()
	la, ok := t.s.accounts[accountID]
	t.s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	timer := time.NewTimer(time.Duration(t.s.lockWait.Load()))
	defer timer.Stop()

	select {
	case la.lk <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, domain.ErrLockTimeout
	}

	t.held = append(t.held, la)

	cp := *la.acct
	return &cp, nil
}

// UpdateBalance 暫存餘額變更，commit 時才套用
func (t *storeTx) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	if !t.holds(accountID) {
		return domain.ErrStoreUnavailable
	}
	t.balances[accountID] = balance
	return nil
}

// InsertRecord 預約 reference 並暫存紀錄
// 預約立即生效，讓併發 scope 中第二個用同一 reference 的一方馬上失敗
func (t *storeTx) InsertRecord(ctx context.Context, rec *domain.TransactionRecord) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, ok := t.s.refs[rec.Reference]; ok {
		return domain.ErrDuplicateReference
	}
	if _, ok := t.s.pendingRefs[rec.Reference]; ok {
		return domain.ErrDuplicateReference
	}

	t.s.pendingRefs[rec.Reference] = struct{}{}
	t.reserved = append(t.reserved, rec.Reference)

	cp := *rec
	t.records = append(t.records, &cp)
	return nil
}

func (t *storeTx) holds(accountID uuid.UUID) bool {
	for _, la := range t.held {
		if la.acct.ID == accountID {
			return true
		}
	}
	return false
}

// commit 套用暫存的餘額與紀錄
// 餘額寫入必須在 store 鎖內做：AccountByOwner 之類的讀取端只持有 RLock，
// 帳戶鎖擋不住它們
func (t *storeTx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, la := range t.held {
		if b, ok := t.balances[la.acct.ID]; ok {
			la.acct.Balance = b
		}
	}
	for _, rec := range t.records {
		delete(t.s.pendingRefs, rec.Reference)
		t.s.refs[rec.Reference] = rec
		t.s.history[rec.OwnerID] = append(t.s.history[rec.OwnerID], rec)
	}
}

// rollback 釋放預約的 reference，暫存寫入全部丟棄
func (t *storeTx) rollback() {
	t.s.mu.Lock()
	for _, ref := range t.reserved {
		delete(t.s.pendingRefs, ref)
	}
	t.s.mu.Unlock()

	t.records = nil
	t.balances = nil
}

func (t *storeTx) releaseLocks() {
	for _, la := range t.held {
		<-la.lk
	}
	t.held = nil
}

var _ usecase.LedgerStore = (*Store)(nil)
