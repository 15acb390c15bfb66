package sqlstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/sqlstore"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/gormdb"
)

func newTestStore(t *testing.T, opts ...sqlstore.Option) *sqlstore.Store {
	t.Helper()
	client, err := gormdb.NewClient(gormdb.Config{
		Driver:   gormdb.DriverSQLite,
		Path:     ":memory:",
		LogLevel: "error",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := sqlstore.NewStore(context.Background(), client, opts...)
	require.NoError(t, err)
	return store
}

func insert(t *testing.T, s *sqlstore.Store, number domain.AccountNumber, name string) {
	t.Helper()
	require.NoError(t, s.InsertAccount(context.Background(), domain.NewAccount(number, name, 30, "Other")))
}

func TestInsertGetExists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	exists, err := s.AccountExists(ctx, 12345678)
	require.NoError(t, err)
	assert.False(t, exists)

	insert(t, s, 12345678, "Alice")

	exists, err = s.AccountExists(ctx, 12345678)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.GetAccount(ctx, 12345678)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, 30, got.Age)
	assert.Equal(t, "Other", got.Gender)
	assert.True(t, got.Balance.IsZero())

	_, err = s.GetAccount(ctx, 87654321)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestInsertDuplicateIsCollision(t *testing.T) {
	s := newTestStore(t)
	insert(t, s, 12345678, "Alice")

	err := s.InsertAccount(context.Background(), domain.NewAccount(12345678, "Bob", 40, "Male"))
	assert.ErrorIs(t, err, domain.ErrAccountNumberCollision)
	assert.NotErrorIs(t, err, domain.ErrStorage)
}

func TestListAccountsInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	numbers := []domain.AccountNumber{55555555, 11111111, 99999999, 22222222}
	for _, n := range numbers {
		insert(t, s, n, "holder-"+n.String())
	}

	accounts, err := s.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, len(numbers))
	for i, n := range numbers {
		assert.Equal(t, n, accounts[i].Number)
	}
}

func TestAtomicallyCommitsBalanceAndTransaction(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	insert(t, s, 12345678, "Alice")

	var posted *domain.Transaction
	err := s.Atomically(ctx, 12345678, func(tx usecase.AccountTx) error {
		acct := tx.Account()
		assert.Equal(t, domain.AccountNumber(12345678), acct.Number)
		if err := tx.UpdateBalance(ctx, decimal.RequireFromString("100.25")); err != nil {
			return err
		}
		var err error
		posted, err = tx.InsertTransaction(ctx, domain.TransactionTypeDeposit, decimal.RequireFromString("100.25"))
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, posted)
	assert.Positive(t, posted.ID)
	assert.NotEmpty(t, posted.RefID.String())

	got, err := s.GetAccount(ctx, 12345678)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("100.25").Equal(got.Balance), "balance %s", got.Balance)

	txs, err := s.ListTransactions(ctx, 12345678)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionTypeDeposit, txs[0].Type)
	assert.Equal(t, posted.RefID, txs[0].RefID)
}

func TestAtomicallyRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	insert(t, s, 12345678, "Alice")

	boom := errors.New("boom")
	err := s.Atomically(ctx, 12345678, func(tx usecase.AccountTx) error {
		require.NoError(t, tx.UpdateBalance(ctx, decimal.NewFromInt(50)))
		_, err := tx.InsertTransaction(ctx, domain.TransactionTypeDeposit, decimal.NewFromInt(50))
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom, "fn error is returned unchanged")

	got, err := s.GetAccount(ctx, 12345678)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())

	txs, err := s.ListTransactions(ctx, 12345678)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestAtomicallyUnknownAccount(t *testing.T) {
	called := false
	err := newTestStore(t).Atomically(context.Background(), 12345678, func(usecase.AccountTx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.False(t, called)
}

func TestBalanceCheckConstraint(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	insert(t, s, 12345678, "Alice")

	err := s.Atomically(ctx, 12345678, func(tx usecase.AccountTx) error {
		return tx.UpdateBalance(ctx, decimal.NewFromInt(-1))
	})
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestDeleteKeepsTransactions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	insert(t, s, 12345678, "Alice")

	require.NoError(t, s.Atomically(ctx, 12345678, func(tx usecase.AccountTx) error {
		if err := tx.UpdateBalance(ctx, decimal.NewFromInt(10)); err != nil {
			return err
		}
		_, err := tx.InsertTransaction(ctx, domain.TransactionTypeDeposit, decimal.NewFromInt(10))
		return err
	}))

	deleted, err := s.DeleteAccount(ctx, 12345678)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteAccount(ctx, 12345678)
	require.NoError(t, err)
	assert.False(t, deleted)

	txs, err := s.ListTransactions(ctx, 12345678)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestTracingSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s := newTestStore(t, sqlstore.WithTracer(tp.Tracer("test")))
	insert(t, s, 12345678, "Alice")
	_, err := s.GetAccount(context.Background(), 87654321)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "store.insert_account", spans[0].Name())
	assert.Equal(t, "store.get_account", spans[1].Name())
	// 找不到帳戶不算錯誤
	assert.NotEqual(t, codes.Error, spans[1].Status().Code)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })

	s := newTestStore(t, sqlstore.WithMeter(mp.Meter("test")))
	insert(t, s, 12345678, "Alice")
	_, err := s.GetAccount(ctx, 12345678)
	require.NoError(t, err)
	_, err = s.GetAccount(ctx, 87654321)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	var sawDuration bool
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				sawDuration = m.Name == "ledger.store.duration"
			}
		}
	}
	assert.Equal(t, int64(3), sums["ledger.store.ops"])
	assert.Zero(t, sums["ledger.store.errors"])
	assert.True(t, sawDuration)
}
