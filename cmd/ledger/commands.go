package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/in/report"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

var errUsage = errors.New("usage")

// commandLine 把子命令轉成 LedgerEngine 呼叫
type commandLine struct {
	engine *usecase.LedgerEngine
	out    io.Writer
	errOut io.Writer
	// openFile 開啟匯出檔案
	openFile func(path string) (io.WriteCloser, error)
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

func (c *commandLine) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "create":
		return c.create(ctx, args)
	case "delete":
		return c.delete(ctx, args)
	case "deposit":
		return c.post(ctx, args, c.engine.Deposit)
	case "withdraw":
		return c.post(ctx, args, c.engine.Withdraw)
	case "balance":
		return c.balance(ctx, args)
	case "history":
		return c.history(ctx, args)
	case "list":
		return c.list(ctx, args)
	case "export":
		return c.export(ctx, args)
	default:
		fmt.Fprintf(c.errOut, "unknown command %q\n\n%s", name, usage)
		return errUsage
	}
}

func (c *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

// parseAccount 解析 -account 參數
func parseAccount(fs *flag.FlagSet, args []string) (domain.AccountNumber, error) {
	raw := fs.String("account", "", "8-digit account number")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	return domain.ParseAccountNumber(*raw)
}

func (c *commandLine) create(ctx context.Context, args []string) error {
	fs := c.flagSet("create")
	name := fs.String("name", "", "account holder name")
	age := fs.Int("age", 0, "account holder age")
	gender := fs.String("gender", "", "Male, Female or Other")
	if err := fs.Parse(args); err != nil {
		return err
	}

	number, err := c.engine.CreateAccount(ctx, *name, *age, *gender)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Account created. Account number: %s\n", number)
	return nil
}

func (c *commandLine) delete(ctx context.Context, args []string) error {
	number, err := parseAccount(c.flagSet("delete"), args)
	if err != nil {
		return err
	}
	if err := c.engine.DeleteAccount(ctx, number); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Account %s deleted.\n", number)
	return nil
}

type postFunc func(ctx context.Context, number domain.AccountNumber, amount decimal.Decimal) (*domain.Transaction, error)

func (c *commandLine) post(ctx context.Context, args []string, fn postFunc) error {
	fs := c.flagSet("post")
	raw := fs.String("account", "", "8-digit account number")
	rawAmount := fs.String("amount", "", "amount, at most 4 decimal places")
	if err := fs.Parse(args); err != nil {
		return err
	}
	number, err := domain.ParseAccountNumber(*raw)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(*rawAmount)
	if err != nil {
		return &domain.ValidationError{Field: "amount", Reason: "must be a number"}
	}

	tx, err := fn(ctx, number, amount)
	if err != nil {
		return err
	}
	account, err := c.engine.GetBalance(ctx, number)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s of %s recorded (ref %s). Balance: %s\n",
		tx.Type, tx.Amount.StringFixed(domain.CurrencyScale), tx.RefID,
		account.Balance.StringFixed(domain.CurrencyScale))
	return nil
}

func (c *commandLine) balance(ctx context.Context, args []string) error {
	number, err := parseAccount(c.flagSet("balance"), args)
	if err != nil {
		return err
	}
	account, err := c.engine.GetBalance(ctx, number)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Name: %s\nAge: %d\nGender: %s\nBalance: %s\n",
		account.Name, account.Age, account.Gender, account.Balance.StringFixed(domain.CurrencyScale))
	return nil
}

func (c *commandLine) history(ctx context.Context, args []string) error {
	number, err := parseAccount(c.flagSet("history"), args)
	if err != nil {
		return err
	}
	txs, err := c.engine.GetHistory(ctx, number)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Fprintln(c.out, "No transactions.")
		return nil
	}
	for _, tx := range txs {
		fmt.Fprintf(c.out, "%s\t%s\n", tx.Type, tx.Amount.StringFixed(domain.CurrencyScale))
	}
	return nil
}

func (c *commandLine) list(ctx context.Context, args []string) error {
	if err := c.flagSet("list").Parse(args); err != nil {
		return err
	}
	accounts, err := c.engine.ListAllAccounts(ctx)
	if err != nil {
		return err
	}
	return report.WriteCSV(c.out, accounts)
}

func (c *commandLine) export(ctx context.Context, args []string) (err error) {
	fs := c.flagSet("export")
	format := fs.String("format", "csv", "csv or xlsx")
	path := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var write func(io.Writer, []domain.Account) error
	switch *format {
	case "csv":
		write = report.WriteCSV
	case "xlsx":
		write = report.WriteXLSX
	default:
		return &domain.ValidationError{Field: "format", Reason: "must be csv or xlsx"}
	}

	accounts, err := c.engine.ListAllAccounts(ctx)
	if err != nil {
		return err
	}

	if *path == "" {
		return write(c.out, accounts)
	}

	f, err := c.openFile(*path)
	if err != nil {
		return err
	}
	// 關檔失敗代表內容可能沒有完整寫入
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", *path, cerr)
		}
	}()
	return write(f, accounts)
}
