package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// Store 是帳務資料持久化的介面，唯一接觸儲存層的元件
type Store interface {
	// AccountExists 帳號目前是否存在 (僅看 Active 帳戶)
	AccountExists(ctx context.Context, number domain.AccountNumber) (bool, error)
	// InsertAccount 新增帳戶，帳號重複時回傳 domain.ErrAccountNumberCollision
	InsertAccount(ctx context.Context, account *domain.Account) error
	// DeleteAccount 刪除帳戶，回傳是否真的刪除了一筆；交易紀錄不連帶刪除
	DeleteAccount(ctx context.Context, number domain.AccountNumber) (bool, error)
	// GetAccount 取得帳戶，不存在時回傳 domain.ErrAccountNotFound
	GetAccount(ctx context.Context, number domain.AccountNumber) (*domain.Account, error)
	// ListAccounts 依建立順序列出所有帳戶
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	// ListTransactions 依寫入順序列出帳號的交易紀錄，可能為空
	ListTransactions(ctx context.Context, number domain.AccountNumber) ([]domain.Transaction, error)
	// Atomically 鎖定帳戶並執行 fn，fn 回傳 nil 時餘額與交易紀錄一起提交，否則全部捨棄
	Atomically(ctx context.Context, number domain.AccountNumber, fn func(tx AccountTx) error) error
}

// AccountTx 是 Atomically 內對單一帳戶的工作單元
type AccountTx interface {
	// Account 回傳已鎖定帳戶的可修改副本
	Account() *domain.Account
	// UpdateBalance 寫入新餘額
	UpdateBalance(ctx context.Context, balance decimal.Decimal) error
	// InsertTransaction 新增交易紀錄並回傳 (含 Store 分配的 ID)
	InsertTransaction(ctx context.Context, typ domain.TransactionType, amount decimal.Decimal) (*domain.Transaction, error)
}
