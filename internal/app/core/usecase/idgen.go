package usecase

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// DefaultMaxAttempts 帳號產生器預設嘗試上限
// 帳號空間約 9 千萬，正常規模下碰撞機率極低，上限只用來避免無窮迴圈
const DefaultMaxAttempts = 1_000_000

// IDGenerator 隨機產生不重複的 8 位數帳號
type IDGenerator struct {
	store       Store
	maxAttempts int
	// int64N 回傳 [0, n) 的均勻亂數
	int64N func(n int64) int64
}

// IDGeneratorOption 定義了 IDGenerator 的配置選項函數
type IDGeneratorOption func(*IDGenerator)

// WithMaxAttempts 設定最大嘗試次數 (<= 0 時使用預設值)
func WithMaxAttempts(n int) IDGeneratorOption {
	return func(g *IDGenerator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithRandom 替換亂數來源，主要用於測試
func WithRandom(int64N func(n int64) int64) IDGeneratorOption {
	return func(g *IDGenerator) {
		if int64N != nil {
			g.int64N = int64N
		}
	}
}

// NewIDGenerator 建立帳號產生器
//
// 參數:
//
//	store: 用於檢查帳號是否已存在
//	opts: 可選的配置
//
// 回傳:
//
//	*IDGenerator: 帳號產生器
func NewIDGenerator(store Store, opts ...IDGeneratorOption) *IDGenerator {
	g := &IDGenerator{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		int64N:      rand.Int64N, // 全域來源，goroutine-safe
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *IDGenerator) candidate() domain.AccountNumber {
	span := int64(domain.MaxAccountNumber-domain.MinAccountNumber) + 1
	return domain.MinAccountNumber + domain.AccountNumber(g.int64N(span))
}

// Generate 產生一個目前未被使用的帳號
//
// 回傳:
//
//	domain.AccountNumber: 可用帳號
//	error: 儲存層錯誤或 *domain.IdentifierSpaceExhaustedError
func (g *IDGenerator) Generate(ctx context.Context) (domain.AccountNumber, error) {
	return g.Reserve(ctx, nil)
}

// Reserve 產生帳號並交給 insert 寫入，把「檢查 + 寫入」視為一個步驟
// insert 回傳 domain.ErrAccountNumberCollision 代表被其他請求搶先，換一個帳號重試
func (g *IDGenerator) Reserve(ctx context.Context, insert func(domain.AccountNumber) error) (domain.AccountNumber, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		number := g.candidate()

		exists, err := g.store.AccountExists(ctx, number)
		if err != nil {
			return 0, err
		}
		if exists {
			continue
		}
		if insert == nil {
			return number, nil
		}

		err = insert(number)
		if errors.Is(err, domain.ErrAccountNumberCollision) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return number, nil
	}
	return 0, &domain.IdentifierSpaceExhaustedError{Attempts: g.maxAttempts}
}
