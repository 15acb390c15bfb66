package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/internal/app/storage"
	"github.com/JoeShih716/go-account-ledger/internal/config"
	"github.com/JoeShih716/go-account-ledger/pkg/logger"
)

const (
	TotalCount  = 100000
	Concurrency = 1000
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	driver := flag.String("driver", "", "override store.driver (memory, sqlite, mysql)")
	total := flag.Int("n", TotalCount, "number of deposits")
	concurrency := flag.Int("c", Concurrency, "concurrent workers")
	amount := flag.String("amount", "1", "amount per deposit")
	flag.Parse()

	if err := run(*configPath, *driver, *total, *concurrency, *amount); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, driver string, total, concurrency int, amount string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if driver != "" {
		cfg.Store.Driver = driver
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	perDeposit, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	opened, err := storage.Open(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() { _ = opened.Close() }()

	engine := usecase.NewLedgerEngine(opened.Store, cfg.Ledger.EngineOptions()...)
	number, err := engine.CreateAccount(ctx, "bench", 30, "Other")
	if err != nil {
		return err
	}
	log.Info("benchmark started",
		zap.String("driver", cfg.Store.Driver),
		zap.Stringer("account", number),
		zap.Int("total", total),
		zap.Int("concurrency", concurrency),
	)

	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(concurrency)

	startTime := time.Now()
	for i := 0; i < total; i++ {
		g.Go(func() error {
			if _, err := engine.Deposit(ctx, number, perDeposit); err != nil {
				// 只記錄第一筆，避免洗版
				if failed.Add(1) == 1 {
					log.Warn("deposit failed", zap.Int("index", i), zap.Error(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(startTime)

	account, err := engine.GetBalance(ctx, number)
	if err != nil {
		return err
	}
	succeeded := int64(total) - failed.Load()
	expected := perDeposit.Mul(decimal.NewFromInt(succeeded))

	fmt.Printf("Completed %d deposits (%d failed) in %v\n", total, failed.Load(), elapsed)
	fmt.Printf("TPS: %.2f\n", float64(total)/elapsed.Seconds())
	fmt.Printf("Account %s balance: %s (expected %s)\n",
		number, account.Balance.StringFixed(domain.CurrencyScale), expected.StringFixed(domain.CurrencyScale))
	if !account.Balance.Equal(expected) {
		return fmt.Errorf("balance mismatch: got %s, want %s", account.Balance, expected)
	}
	return nil
}
