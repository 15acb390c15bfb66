package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/wal"
)

// WAL 紀錄類型
const (
	opOpen  = "open"  // 開戶
	opClose = "close" // 刪戶
	opPost  = "post"  // 餘額異動 + 交易紀錄
)

// walRecord 單筆 WAL 紀錄
// post 把新餘額與交易紀錄放在同一行，回放時兩者一起生效
type walRecord struct {
	Op           string               `json:"op"`
	Account      *domain.Account      `json:"account,omitempty"`
	Number       domain.AccountNumber `json:"number,omitempty"`
	Balance      decimal.Decimal      `json:"balance"`
	Transactions []domain.Transaction `json:"transactions,omitempty"`
}

// MutexStore 是一個使用 Mutex 實現的 Store
//
// 結構:
//
//	accounts: 帳戶資料 Map
//	order: 帳戶建立順序
//	transactions: 所有交易紀錄 (依 ID 排序)
//	byAccount: 帳號對應的交易紀錄索引
//	mu: RWMutex 用於保護以上資料
//	wal: Write-Ahead Log 實例，nil 表示不落地
type MutexStore struct {
	mu           sync.RWMutex
	accounts     map[domain.AccountNumber]*domain.Account
	order        []domain.AccountNumber
	transactions []domain.Transaction
	byAccount    map[domain.AccountNumber][]int
	nextTxID     int64
	// Write-Ahead Logging
	wal *wal.WAL
	log *zap.Logger
}

// NewMutexStore 建立一個新的 MutexStore 實例
//
// 參數:
//
//	w: Write-Ahead Log 實例 (可為 nil)
//	log: 回放訊息輸出 (可為 nil)
//
// 回傳:
//
//	*MutexStore: MutexStore 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexStore(w *wal.WAL, log *zap.Logger) (*MutexStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	store := &MutexStore{
		accounts:  make(map[domain.AccountNumber]*domain.Account),
		byAccount: make(map[domain.AccountNumber][]int),
		wal:       w,
		log:       log,
	}
	if w == nil {
		return store, nil
	}
	if err := store.recoverFromWAL(); err != nil {
		return nil, err
	}
	return store, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 NewMutexStore 呼叫，無需 Lock (單執行緒)
func (m *MutexStore) recoverFromWAL() error {
	replayed := 0
	err := m.wal.Replay(func(raw json.RawMessage) error {
		var rec walRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if err := m.apply(&rec); err != nil {
			return fmt.Errorf("replay wal record %d: %w", replayed+1, err)
		}
		replayed++
		return nil
	})
	if err != nil {
		return err
	}
	m.log.Info("ledger recovered from wal",
		zap.Int("records", replayed),
		zap.Int("accounts", len(m.accounts)),
		zap.Int("transactions", len(m.transactions)),
	)
	return nil
}

// apply 套用一筆紀錄至記憶體，呼叫端需持有寫鎖 (或處於初始化階段)
func (m *MutexStore) apply(rec *walRecord) error {
	switch rec.Op {
	case opOpen:
		if rec.Account == nil {
			return fmt.Errorf("open record without account")
		}
		acct := *rec.Account
		m.accounts[acct.Number] = &acct
		m.order = append(m.order, acct.Number)
	case opClose:
		if _, ok := m.accounts[rec.Number]; !ok {
			return nil
		}
		delete(m.accounts, rec.Number)
		for i, n := range m.order {
			if n == rec.Number {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	case opPost:
		acct, ok := m.accounts[rec.Number]
		if !ok {
			return domain.ErrAccountNotFound
		}
		acct.Balance = rec.Balance
		for _, tx := range rec.Transactions {
			m.byAccount[tx.AccountNumber] = append(m.byAccount[tx.AccountNumber], len(m.transactions))
			m.transactions = append(m.transactions, tx)
			if tx.ID > m.nextTxID {
				m.nextTxID = tx.ID
			}
		}
	default:
		return fmt.Errorf("unknown wal op %q", rec.Op)
	}
	return nil
}

// commit 先寫 WAL (Critical Path) 再更新記憶體，呼叫端需持有寫鎖
func (m *MutexStore) commit(op string, rec *walRecord) error {
	if m.wal != nil {
		if err := m.wal.Append(rec); err != nil {
			return domain.NewStorageError(op, err)
		}
	}
	return m.apply(rec)
}

// AccountExists 帳號是否存在
func (m *MutexStore) AccountExists(ctx context.Context, number domain.AccountNumber) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[number]
	return ok, nil
}

// InsertAccount 新增帳戶，檢查與寫入在同一把鎖內
func (m *MutexStore) InsertAccount(ctx context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.Number]; ok {
		return domain.ErrAccountNumberCollision
	}
	acct := *account
	return m.commit("insert account", &walRecord{Op: opOpen, Account: &acct, Balance: acct.Balance})
}

// DeleteAccount 刪除帳戶，交易紀錄保留
func (m *MutexStore) DeleteAccount(ctx context.Context, number domain.AccountNumber) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[number]; !ok {
		return false, nil
	}
	if err := m.commit("delete account", &walRecord{Op: opClose, Number: number}); err != nil {
		return false, err
	}
	return true, nil
}

// GetAccount 取得帳戶副本
func (m *MutexStore) GetAccount(ctx context.Context, number domain.AccountNumber) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.accounts[number]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

// ListAccounts 依建立順序列出帳戶
func (m *MutexStore) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Account, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, *m.accounts[n])
	}
	return out, nil
}

// ListTransactions 依寫入順序列出交易紀錄
func (m *MutexStore) ListTransactions(ctx context.Context, number domain.AccountNumber) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := m.byAccount[number]
	out := make([]domain.Transaction, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.transactions[i])
	}
	return out, nil
}

// Atomically 以寫鎖序列化所有異動；fn 成功才寫 WAL 並套用
func (m *MutexStore) Atomically(ctx context.Context, number domain.AccountNumber, fn func(tx usecase.AccountTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[number]
	if !ok {
		return domain.ErrAccountNotFound
	}

	work := *acct
	tx := &memTx{
		account:  &work,
		balance:  acct.Balance,
		nextTxID: m.nextTxID,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}
	return m.commit("post transaction", &walRecord{
		Op:           opPost,
		Number:       number,
		Balance:      tx.balance,
		Transactions: tx.pending,
	})
}

// memTx 實作 usecase.AccountTx，變更先暫存，commit 時一次套用
type memTx struct {
	account  *domain.Account // 工作副本，未 commit 前不影響 Store
	balance  decimal.Decimal
	pending  []domain.Transaction
	nextTxID int64
	dirty    bool
}

func (t *memTx) Account() *domain.Account {
	return t.account
}

func (t *memTx) UpdateBalance(ctx context.Context, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return domain.NewStorageError("update balance", fmt.Errorf("negative balance %s", balance))
	}
	t.balance = balance
	t.dirty = true
	return nil
}

func (t *memTx) InsertTransaction(ctx context.Context, typ domain.TransactionType, amount decimal.Decimal) (*domain.Transaction, error) {
	t.nextTxID++
	tx := domain.Transaction{
		ID:            t.nextTxID,
		RefID:         uuid.New(),
		AccountNumber: t.account.Number,
		Type:          typ,
		Amount:        amount,
		CreatedAt:     time.Now().UTC(),
	}
	t.pending = append(t.pending, tx)
	t.dirty = true
	return &tx, nil
}

var _ usecase.Store = (*MutexStore)(nil)
