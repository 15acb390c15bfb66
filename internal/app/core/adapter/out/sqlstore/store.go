package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/gormdb"
)

// Store 以 GORM 實作 usecase.Store (SQLite / MySQL)
type Store struct {
	client  *gormdb.Client
	tracer  trace.Tracer
	metrics *storeMetrics

	// opened_at 時間戳，確保同一個 process 內嚴格遞增
	stampMu   sync.Mutex
	lastStamp int64
}

// NewStore 建立 Store 並執行 schema migration
//
// 參數:
//
//	ctx: 上下文
//	client: 已連線的 gormdb.Client
//	opts: 可選的 tracing / metrics 設定
//
// 回傳:
//
//	*Store: Store 實例
//	error: migration 失敗
func NewStore(ctx context.Context, client *gormdb.Client, opts ...Option) (*Store, error) {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	if err := client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{}); err != nil {
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}
	return s, nil
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.client.DB().WithContext(ctx)
}

func (s *Store) nextStamp() int64 {
	s.stampMu.Lock()
	defer s.stampMu.Unlock()
	now := time.Now().UnixNano()
	if now <= s.lastStamp {
		now = s.lastStamp + 1
	}
	s.lastStamp = now
	return now
}

// AccountExists 帳號是否存在
func (s *Store) AccountExists(ctx context.Context, number domain.AccountNumber) (exists bool, err error) {
	ctx, done := s.observe(ctx, "account_exists", number)
	defer func() { done(err) }()

	var count int64
	if err := s.db(ctx).Model(&sqlAccount{}).
		Where("account_number = ?", int64(number)).
		Count(&count).Error; err != nil {
		return false, domain.NewStorageError("account exists", err)
	}
	return count > 0, nil
}

// InsertAccount 新增帳戶
func (s *Store) InsertAccount(ctx context.Context, account *domain.Account) (err error) {
	ctx, done := s.observe(ctx, "insert_account", account.Number)
	defer func() { done(err) }()

	row := sqlAccount{
		AccountNumber: int64(account.Number),
		Name:          account.Name,
		Age:           account.Age,
		Gender:        account.Gender,
		Balance:       domain.ToMinorUnits(account.Balance),
		OpenedAt:      s.nextStamp(),
	}
	err = s.db(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAccountNumberCollision
	}
	return domain.NewStorageError("insert account", err)
}

// DeleteAccount 刪除帳戶，不刪交易紀錄
func (s *Store) DeleteAccount(ctx context.Context, number domain.AccountNumber) (deleted bool, err error) {
	ctx, done := s.observe(ctx, "delete_account", number)
	defer func() { done(err) }()

	res := s.db(ctx).Where("account_number = ?", int64(number)).Delete(&sqlAccount{})
	if res.Error != nil {
		return false, domain.NewStorageError("delete account", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetAccount 取得帳戶
func (s *Store) GetAccount(ctx context.Context, number domain.AccountNumber) (account *domain.Account, err error) {
	ctx, done := s.observe(ctx, "get_account", number)
	defer func() { done(err) }()

	var row sqlAccount
	err = s.db(ctx).Where("account_number = ?", int64(number)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get account", err)
	}
	return row.toDomain(), nil
}

// ListAccounts 依建立順序列出帳戶
func (s *Store) ListAccounts(ctx context.Context) (accounts []domain.Account, err error) {
	ctx, done := s.observe(ctx, "list_accounts", 0)
	defer func() { done(err) }()

	var rows []sqlAccount
	if err := s.db(ctx).Order("opened_at, account_number").Find(&rows).Error; err != nil {
		return nil, domain.NewStorageError("list accounts", err)
	}
	accounts = make([]domain.Account, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, *rows[i].toDomain())
	}
	return accounts, nil
}

// ListTransactions 依寫入順序列出交易紀錄
func (s *Store) ListTransactions(ctx context.Context, number domain.AccountNumber) (txs []domain.Transaction, err error) {
	ctx, done := s.observe(ctx, "list_transactions", number)
	defer func() { done(err) }()

	var rows []sqlTransaction
	if err := s.db(ctx).
		Where("account_number = ?", int64(number)).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, domain.NewStorageError("list transactions", err)
	}
	txs = make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		tx, err := rows[i].toDomain()
		if err != nil {
			return nil, domain.NewStorageError("decode transaction", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Atomically 在同一個 DB transaction 內鎖定帳戶列並執行 fn
// 悲觀鎖：MySQL 使用 SELECT ... FOR UPDATE；SQLite 單一連線本身即序列化
func (s *Store) Atomically(ctx context.Context, number domain.AccountNumber, fn func(tx usecase.AccountTx) error) (err error) {
	ctx, done := s.observe(ctx, "atomically", number)
	defer func() { done(err) }()

	var fnErr error
	txErr := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		var row sqlAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_number = ?", int64(number)).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fnErr = domain.ErrAccountNotFound
			return fnErr
		}
		if err != nil {
			fnErr = domain.NewStorageError("lock account", err)
			return fnErr
		}

		fnErr = fn(&accountTx{db: tx, row: row, account: row.toDomain()})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	// begin / commit 失敗
	return domain.NewStorageError("commit", txErr)
}

// accountTx 實作 usecase.AccountTx，所有寫入都透過同一個 *gorm.DB transaction
type accountTx struct {
	db      *gorm.DB
	row     sqlAccount
	account *domain.Account
}

func (t *accountTx) Account() *domain.Account {
	return t.account
}

func (t *accountTx) UpdateBalance(ctx context.Context, balance decimal.Decimal) error {
	units := domain.ToMinorUnits(balance)
	err := t.db.WithContext(ctx).Model(&sqlAccount{}).
		Where("account_number = ?", t.row.AccountNumber).
		Update("balance", units).Error
	if err != nil {
		return domain.NewStorageError("update balance", err)
	}
	t.row.Balance = units
	return nil
}

func (t *accountTx) InsertTransaction(ctx context.Context, typ domain.TransactionType, amount decimal.Decimal) (*domain.Transaction, error) {
	row := sqlTransaction{
		RefID:           uuid.NewString(),
		AccountNumber:   t.row.AccountNumber,
		TransactionType: typ.String(),
		Amount:          domain.ToMinorUnits(amount),
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, domain.NewStorageError("insert transaction", err)
	}
	tx, err := row.toDomain()
	if err != nil {
		return nil, domain.NewStorageError("decode transaction", err)
	}
	return &tx, nil
}

var _ usecase.Store = (*Store)(nil)
