package domain

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// 帳號範圍：8 位數字
const (
	MinAccountNumber AccountNumber = 10_000_000
	MaxAccountNumber AccountNumber = 99_999_999
)

// MinimumAge 開戶最低年齡
const MinimumAge = 16

// AccountNumber 帳戶號碼，所有比較與儲存一律使用數值型態
type AccountNumber int64

// Valid 是否落在 8 位數帳號範圍內
func (n AccountNumber) Valid() bool {
	return n >= MinAccountNumber && n <= MaxAccountNumber
}

func (n AccountNumber) String() string {
	return fmt.Sprintf("%08d", int64(n))
}

// ParseAccountNumber 解析使用者輸入的帳號，只接受 8 位十進位數字
func ParseAccountNumber(s string) (AccountNumber, error) {
	if len(s) != 8 {
		return 0, &ValidationError{Field: "account_number", Reason: "must be exactly 8 digits"}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, &ValidationError{Field: "account_number", Reason: "must be numeric"}
	}
	n := AccountNumber(v)
	if !n.Valid() {
		return 0, &ValidationError{Field: "account_number", Reason: "out of range"}
	}
	return n, nil
}

// Account 客戶帳戶
type Account struct {
	Number  AccountNumber   `json:"account_number"`
	Name    string          `json:"name"`
	Age     int             `json:"age"`
	Gender  string          `json:"gender"`
	Balance decimal.Decimal `json:"balance"`
}

// NewAccount 建立餘額為 0 的帳戶
func NewAccount(number AccountNumber, name string, age int, gender string) *Account {
	return &Account{
		Number:  number,
		Name:    name,
		Age:     age,
		Gender:  gender,
		Balance: decimal.Zero,
	}
}

// Deposit 存款
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}

	balance := a.Balance.Add(amount)
	if balance.GreaterThan(MaxAmount) {
		return &ValidationError{Field: "amount", Reason: "balance would exceed " + MaxAmount.StringFixed(CurrencyScale)}
	}
	a.Balance = balance
	return nil
}

// Withdraw 提款，餘額不足時不修改帳戶
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}

	if a.Balance.LessThan(amount) {
		return &InsufficientFundsError{
			AccountNumber: a.Number,
			Balance:       a.Balance,
			Amount:        amount,
		}
	}

	a.Balance = a.Balance.Sub(amount)
	return nil
}
