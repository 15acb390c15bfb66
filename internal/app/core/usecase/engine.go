package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// LedgerEngine 是核心業務邏輯層
// 負責驗證輸入、維護帳戶狀態機 (Absent <-> Active)，並透過 Store 原子地寫入餘額與交易紀錄
// 本層不寫 log，錯誤一律以型別化 error 回傳給呼叫端
type LedgerEngine struct {
	store    Store
	ids      *IDGenerator
	idOpts   []IDGeneratorOption
	validate *validator.Validate
}

// EngineOption 定義了 LedgerEngine 的配置選項函數
type EngineOption func(*LedgerEngine)

// WithIDGenerator 指定帳號產生器 (預設使用同一個 Store 建立)
func WithIDGenerator(ids *IDGenerator) EngineOption {
	return func(e *LedgerEngine) {
		e.ids = ids
	}
}

// WithMaxIDAttempts 設定預設帳號產生器的嘗試上限
// 已用 WithIDGenerator 指定產生器時無效
func WithMaxIDAttempts(n int) EngineOption {
	return func(e *LedgerEngine) {
		e.idOpts = append(e.idOpts, WithMaxAttempts(n))
	}
}

// NewLedgerEngine 建立帳務引擎
func NewLedgerEngine(store Store, opts ...EngineOption) *LedgerEngine {
	e := &LedgerEngine{
		store:    store,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ids == nil {
		e.ids = NewIDGenerator(store, e.idOpts...)
	}
	return e
}

// CreateAccount 開戶
//
// 參數:
//
//	ctx: 上下文
//	name: 姓名 (不可為空)
//	age: 年齡 (>= 16)
//	gender: 性別 (自由文字)
//
// 回傳:
//
//	domain.AccountNumber: 新帳號
//	error: *domain.ValidationError / *domain.StorageError / *domain.IdentifierSpaceExhaustedError
func (e *LedgerEngine) CreateAccount(ctx context.Context, name string, age int, gender string) (domain.AccountNumber, error) {
	in := openAccountInput{
		Name:   strings.TrimSpace(name),
		Age:    age,
		Gender: strings.TrimSpace(gender),
	}
	if err := validateStruct(e.validate, in); err != nil {
		return 0, err
	}

	return e.ids.Reserve(ctx, func(number domain.AccountNumber) error {
		return e.store.InsertAccount(ctx, domain.NewAccount(number, in.Name, in.Age, in.Gender))
	})
}

// DeleteAccount 刪帳戶，交易紀錄保留
func (e *LedgerEngine) DeleteAccount(ctx context.Context, number domain.AccountNumber) error {
	if !number.Valid() {
		return &domain.NotFoundError{AccountNumber: number}
	}
	deleted, err := e.store.DeleteAccount(ctx, number)
	if err != nil {
		return err
	}
	if !deleted {
		return &domain.NotFoundError{AccountNumber: number}
	}
	return nil
}

// Deposit 存款：餘額 += amount，並新增一筆 Deposit 紀錄
func (e *LedgerEngine) Deposit(ctx context.Context, number domain.AccountNumber, amount decimal.Decimal) (*domain.Transaction, error) {
	return e.post(ctx, number, domain.TransactionTypeDeposit, amount)
}

// Withdraw 提款：餘額 -= amount，並新增一筆 Withdraw 紀錄
// 餘額檢查與扣款在同一個 Atomically 內完成
func (e *LedgerEngine) Withdraw(ctx context.Context, number domain.AccountNumber, amount decimal.Decimal) (*domain.Transaction, error) {
	return e.post(ctx, number, domain.TransactionTypeWithdraw, amount)
}

func (e *LedgerEngine) post(ctx context.Context, number domain.AccountNumber, typ domain.TransactionType, amount decimal.Decimal) (*domain.Transaction, error) {
	if err := validateAmount(e.validate, amount); err != nil {
		return nil, err
	}
	if !number.Valid() {
		return nil, &domain.NotFoundError{AccountNumber: number}
	}

	var posted *domain.Transaction
	err := e.store.Atomically(ctx, number, func(tx AccountTx) error {
		account := tx.Account()

		var err error
		switch typ {
		case domain.TransactionTypeDeposit:
			err = account.Deposit(amount)
		case domain.TransactionTypeWithdraw:
			err = account.Withdraw(amount)
		}
		if err != nil {
			return err
		}

		if err := tx.UpdateBalance(ctx, account.Balance); err != nil {
			return err
		}
		posted, err = tx.InsertTransaction(ctx, typ, amount)
		return err
	})
	if err != nil {
		return nil, notFound(number, err)
	}
	return posted, nil
}

// GetBalance 查詢帳戶資料與餘額
func (e *LedgerEngine) GetBalance(ctx context.Context, number domain.AccountNumber) (*domain.Account, error) {
	if !number.Valid() {
		return nil, &domain.NotFoundError{AccountNumber: number}
	}
	account, err := e.store.GetAccount(ctx, number)
	if err != nil {
		return nil, notFound(number, err)
	}
	return account, nil
}

// GetHistory 依時間順序回傳交易紀錄
// 帳戶不存在與沒有交易一樣回傳空切片，需要區分時請先呼叫 GetBalance
func (e *LedgerEngine) GetHistory(ctx context.Context, number domain.AccountNumber) ([]domain.Transaction, error) {
	if !number.Valid() {
		return []domain.Transaction{}, nil
	}
	txs, err := e.store.ListTransactions(ctx, number)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

// ListAllAccounts 依開戶順序列出所有帳戶，顯示用序號由呼叫端附加
func (e *LedgerEngine) ListAllAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return accounts, nil
}

// notFound 把 Store 回傳的 sentinel 轉成帶帳號的 *domain.NotFoundError
func notFound(number domain.AccountNumber, err error) error {
	var typed *domain.NotFoundError
	if errors.Is(err, domain.ErrAccountNotFound) && !errors.As(err, &typed) {
		return &domain.NotFoundError{AccountNumber: number}
	}
	return err
}
