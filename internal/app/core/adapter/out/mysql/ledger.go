package mysql

import (
	"context"
	"errors"
	"time"

	gosql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
)

// MySQL error 1205: Lock wait timeout exceeded
const mysqlErrLockWaitTimeout = 1205

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID        string          `gorm:"type:char(36);primaryKey"`
	OwnerID   string          `gorm:"type:char(36);uniqueIndex"`
	Email     string          `gorm:"size:191;uniqueIndex"`
	Currency  string          `gorm:"size:8"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,2)"`
	CreatedAt time.Time
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表
// reference 的 uniqueIndex 是冪等性的 authoritative 防線
type sqlTransaction struct {
	ID            string `gorm:"type:char(36);primaryKey"`
	AccountID     string `gorm:"type:char(36);index"`
	OwnerID       string `gorm:"type:char(36);index"`
	Kind          uint8
	Amount        decimal.Decimal `gorm:"type:decimal(20,2)"`
	Reference     string          `gorm:"size:191;uniqueIndex"`
	Description   string          `gorm:"size:255"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(20,2)"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(20,2)"`
	Status        uint8
	CreatedAt     time.Time `gorm:"index"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// Store 是 GORM 實作的帳務儲存層 (Level 0)
//
// atomic scope 對應 DB transaction，帳戶鎖用 SELECT ... FOR UPDATE 悲觀鎖
type Store struct {
	db *gorm.DB
	// sqlite 不支援 FOR UPDATE，測試時靠單一連線序列化
	lockForUpdate bool
}

// NewStore 建立 GORM 儲存層；需搭配開啟 TranslateError 的 gorm.DB
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		lockForUpdate: db.Dialector.Name() != "sqlite",
	}
}

// AutoMigrate 建立/更新資料表結構
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&sqlAccount{}, &sqlTransaction{})
}

// CreateAccount 建立帳戶
func (s *Store) CreateAccount(ctx context.Context, acct *domain.Account) error {
	row := &sqlAccount{
		ID:        acct.ID.String(),
		OwnerID:   acct.OwnerID.String(),
		Email:     acct.Email,
		Currency:  acct.Currency,
		Balance:   acct.Balance,
		CreatedAt: acct.CreatedAt,
	}
	err := s.db.WithContext(ctx).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAccountAlreadyExists
	}
	return translate(err)
}

// AccountByOwner 以 owner ID 查帳戶
func (s *Store) AccountByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	var row sqlAccount
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return row.toDomain()
}

// AccountByEmail 以 email 查帳戶
func (s *Store) AccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var row sqlAccount
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return row.toDomain()
}

// ReferenceExists advisory 檢查 (authoritative 的是唯一索引)
func (s *Store) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&sqlTransaction{}).
		Where("reference = ?", reference).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

// RecordByReference 查無回傳 (nil, nil)
func (s *Store) RecordByReference(ctx context.Context, reference string, ownerID uuid.UUID) (*domain.TransactionRecord, error) {
	var row sqlTransaction
	err := s.db.WithContext(ctx).
		Where("reference = ? AND owner_id = ?", reference, ownerID.String()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return row.toDomain()
}

// History 分頁查詢，新到舊
func (s *Store) History(ctx context.Context, ownerID uuid.UUID, page, pageSize int) ([]domain.TransactionRecord, int64, error) {
	q := s.db.WithContext(ctx).Model(&sqlTransaction{}).Where("owner_id = ?", ownerID.String())

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var rows []sqlTransaction
	err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, translate(err)
	}

	records := make([]domain.TransactionRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toDomain()
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}
	return records, total, nil
}

// WithinTransaction 開啟 DB transaction 作為 atomic scope
// GORM 的 Transaction 在 fn 回傳錯誤或 panic 時自動 rollback，行鎖一併釋放
func (s *Store) WithinTransaction(ctx context.Context, fn func(tx usecase.StoreTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&storeTx{db: tx, lockForUpdate: s.lockForUpdate})
	})
}

type storeTx struct {
	db            *gorm.DB
	lockForUpdate bool
}

// LockAccount SELECT ... FOR UPDATE 取得行鎖並讀回最新餘額
func (t *storeTx) LockAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	q := t.db.WithContext(ctx)
	if t.lockForUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row sqlAccount
	err := q.Where("id = ?", accountID.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return row.toDomain()
}

// UpdateBalance 覆寫餘額 (呼叫端持有行鎖)
func (t *storeTx) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	err := t.db.WithContext(ctx).Model(&sqlAccount{}).
		Where("id = ?", accountID.String()).
		Update("balance", balance).Error
	return translate(err)
}

// InsertRecord 寫入交易紀錄；唯一索引衝突轉為 ErrDuplicateReference
func (t *storeTx) InsertRecord(ctx context.Context, rec *domain.TransactionRecord) error {
	row := &sqlTransaction{
		ID:            rec.ID.String(),
		AccountID:     rec.AccountID.String(),
		OwnerID:       rec.OwnerID.String(),
		Kind:          uint8(rec.Kind),
		Amount:        rec.Amount,
		Reference:     rec.Reference,
		Description:   rec.Description,
		BalanceBefore: rec.BalanceBefore,
		BalanceAfter:  rec.BalanceAfter,
		Status:        uint8(rec.Status),
		CreatedAt:     rec.CreatedAt,
	}
	err := t.db.WithContext(ctx).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateReference
	}
	return translate(err)
}

// translate 把驅動層錯誤轉成 domain 錯誤分類
func translate(err error) error {
	if err == nil {
		return nil
	}
	var myErr *gosql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlErrLockWaitTimeout {
		return domain.ErrLockTimeout
	}
	if errors.Is(err, gosql.ErrInvalidConn) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrStoreUnavailable
	}
	return err
}

func (r *sqlAccount) toDomain() (*domain.Account, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	ownerID, err := uuid.Parse(r.OwnerID)
	if err != nil {
		return nil, err
	}
	return &domain.Account{
		ID:        id,
		OwnerID:   ownerID,
		Email:     r.Email,
		Currency:  r.Currency,
		Balance:   r.Balance,
		CreatedAt: r.CreatedAt,
	}, nil
}

func (r *sqlTransaction) toDomain() (*domain.TransactionRecord, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := uuid.Parse(r.AccountID)
	if err != nil {
		return nil, err
	}
	ownerID, err := uuid.Parse(r.OwnerID)
	if err != nil {
		return nil, err
	}
	return &domain.TransactionRecord{
		ID:            id,
		AccountID:     accountID,
		OwnerID:       ownerID,
		Kind:          domain.Kind(r.Kind),
		Amount:        r.Amount,
		Reference:     r.Reference,
		Description:   r.Description,
		BalanceBefore: r.BalanceBefore,
		BalanceAfter:  r.BalanceAfter,
		Status:        domain.Status(r.Status),
		CreatedAt:     r.CreatedAt,
	}, nil
}

var _ usecase.LedgerStore = (*Store)(nil)
