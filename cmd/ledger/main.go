package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/sqlstore"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/internal/app/storage"
	"github.com/JoeShih716/go-account-ledger/internal/config"
	"github.com/JoeShih716/go-account-ledger/pkg/logger"
)

const usage = `usage: ledger [-config path] <command> [flags]

commands:
  create   -name NAME -age AGE [-gender GENDER]
  delete   -account NUMBER
  deposit  -account NUMBER -amount AMOUNT
  withdraw -account NUMBER -amount AMOUNT
  balance  -account NUMBER
  history  -account NUMBER
  list
  export   -format csv|xlsx [-out PATH]
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("ledger", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", config.DefaultPath, "path to the YAML config file")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	// 2. 初始化 Logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化 Store
	opened, err := storage.Open(ctx, cfg.Store, log,
		sqlstore.WithDefaultTracer(),
		sqlstore.WithDefaultMeter(),
	)
	if err != nil {
		log.Error("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
		return 1
	}
	defer func() {
		if err := opened.Close(); err != nil {
			log.Warn("failed to close store", zap.Error(err))
		}
	}()

	// 4. 初始化 Engine
	engine := usecase.NewLedgerEngine(opened.Store, cfg.Ledger.EngineOptions()...)

	cli := &commandLine{engine: engine, out: stdout, errOut: stderr, openFile: createFile}
	name, rest := global.Arg(0), global.Args()[1:]
	err = cli.dispatch(ctx, name, rest)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return 2
	case isBusinessError(err):
		// 業務錯誤直接顯示給使用者
		fmt.Fprintln(stderr, err)
		return 1
	default:
		log.Error("command failed", zap.String("command", name), zap.Error(err))
		return 1
	}
}

// isBusinessError 輸入錯誤、找不到帳戶、餘額不足
func isBusinessError(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrAccountNotFound) ||
		errors.Is(err, domain.ErrInsufficientBalance)
}
