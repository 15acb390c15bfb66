package memory_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/wal"
)

func deposit(t *testing.T, s usecase.Store, number domain.AccountNumber, amount int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Atomically(ctx, number, func(tx usecase.AccountTx) error {
		acct := tx.Account()
		if err := acct.Deposit(decimal.NewFromInt(amount)); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, acct.Balance); err != nil {
			return err
		}
		_, err := tx.InsertTransaction(ctx, domain.TransactionTypeDeposit, decimal.NewFromInt(amount))
		return err
	}))
}

func TestMutexStoreVolatile(t *testing.T) {
	ctx := context.Background()
	s, err := memory.NewMutexStore(nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.InsertAccount(ctx, domain.NewAccount(22222222, "Bob", 20, "Male")))
	require.NoError(t, s.InsertAccount(ctx, domain.NewAccount(11111111, "Alice", 30, "Female")))
	assert.ErrorIs(t, s.InsertAccount(ctx, domain.NewAccount(11111111, "Eve", 40, "")), domain.ErrAccountNumberCollision)

	accounts, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, domain.AccountNumber(22222222), accounts[0].Number)
	assert.Equal(t, domain.AccountNumber(11111111), accounts[1].Number)

	deposit(t, s, 11111111, 100)
	deposit(t, s, 11111111, 5)

	got, err := s.GetAccount(ctx, 11111111)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(105).Equal(got.Balance))

	// 回傳的是副本
	got.Balance = decimal.NewFromInt(1)
	again, err := s.GetAccount(ctx, 11111111)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(105).Equal(again.Balance))

	txs, err := s.ListTransactions(ctx, 11111111)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Less(t, txs[0].ID, txs[1].ID)

	txs, err = s.ListTransactions(ctx, 22222222)
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
}

func TestMutexStoreAtomicallyDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s, err := memory.NewMutexStore(nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.InsertAccount(ctx, domain.NewAccount(12345678, "Alice", 30, "")))

	boom := errors.New("boom")
	err = s.Atomically(ctx, 12345678, func(tx usecase.AccountTx) error {
		tx.Account().Balance = decimal.NewFromInt(99)
		require.NoError(t, tx.UpdateBalance(ctx, decimal.NewFromInt(99)))
		_, err := tx.InsertTransaction(ctx, domain.TransactionTypeDeposit, decimal.NewFromInt(99))
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetAccount(ctx, 12345678)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())

	txs, err := s.ListTransactions(ctx, 12345678)
	require.NoError(t, err)
	assert.Empty(t, txs)

	err = s.Atomically(ctx, 87654321, func(usecase.AccountTx) error { return nil })
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestMutexStoreNegativeBalanceRejected(t *testing.T) {
	ctx := context.Background()
	s, err := memory.NewMutexStore(nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.InsertAccount(ctx, domain.NewAccount(12345678, "Alice", 30, "")))

	err = s.Atomically(ctx, 12345678, func(tx usecase.AccountTx) error {
		return tx.UpdateBalance(ctx, decimal.NewFromInt(-1))
	})
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestMutexStoreRecoversFromWAL(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.wal")

	w, err := wal.Open(path)
	require.NoError(t, err)
	s, err := memory.NewMutexStore(w, nil)
	require.NoError(t, err)

	require.NoError(t, s.InsertAccount(ctx, domain.NewAccount(11111111, "Alice", 30, "Female")))
	require.NoError(t, s.InsertAccount(ctx, domain.NewAccount(22222222, "Bob", 20, "Male")))
	require.NoError(t, s.InsertAccount(ctx, domain.NewAccount(33333333, "Carol", 50, "Other")))
	deposit(t, s, 11111111, 100)
	deposit(t, s, 22222222, 7)
	deposit(t, s, 11111111, 1)
	deleted, err := s.DeleteAccount(ctx, 22222222)
	require.NoError(t, err)
	require.True(t, deleted)
	require.NoError(t, w.Close())

	// 重新開啟並回放
	w, err = wal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	core, logs := observer.New(zap.InfoLevel)
	recovered, err := memory.NewMutexStore(w, zap.New(core))
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("ledger recovered from wal").Len())

	accounts, err := recovered.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, domain.AccountNumber(11111111), accounts[0].Number)
	assert.Equal(t, domain.AccountNumber(33333333), accounts[1].Number)
	assert.True(t, decimal.NewFromInt(101).Equal(accounts[0].Balance))

	// 刪除的帳戶交易紀錄仍在
	txs, err := recovered.ListTransactions(ctx, 22222222)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	// 交易序號延續
	deposit(t, recovered, 33333333, 3)
	txs, err = recovered.ListTransactions(ctx, 33333333)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(4), txs[0].ID)
}

func TestMutexStoreRejectsUnknownWALRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	require.NoError(t, os.WriteFile(path, []byte(`{"op":"rename","number":12345678}`+"\n"), wal.FileMode))

	w, err := wal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	_, err = memory.NewMutexStore(w, nil)
	assert.Error(t, err)
}

func TestMutexStoreFailedAppendIsNotReplayed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.wal")

	w, err := wal.Open(path)
	require.NoError(t, err)
	s, err := memory.NewMutexStore(w, nil)
	require.NoError(t, err)
	require.NoError(t, s.InsertAccount(ctx, domain.NewAccount(12345678, "Alice", 30, "")))
	deposit(t, s, 12345678, 10)

	// WAL 檔案在底下被關閉，之後的寫入都會失敗
	require.NoError(t, w.Close())
	err = s.Atomically(ctx, 12345678, func(tx usecase.AccountTx) error {
		if err := tx.UpdateBalance(ctx, decimal.NewFromInt(15)); err != nil {
			return err
		}
		_, err := tx.InsertTransaction(ctx, domain.TransactionTypeDeposit, decimal.NewFromInt(5))
		return err
	})
	assert.ErrorIs(t, err, domain.ErrStorage)
	_, err = s.DeleteAccount(ctx, 12345678)
	assert.ErrorIs(t, err, domain.ErrStorage)

	got, err := s.GetAccount(ctx, 12345678)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(got.Balance))

	w, err = wal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	recovered, err := memory.NewMutexStore(w, nil)
	require.NoError(t, err)

	got, err = recovered.GetAccount(ctx, 12345678)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(got.Balance))
	txs, err := recovered.ListTransactions(ctx, 12345678)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}
