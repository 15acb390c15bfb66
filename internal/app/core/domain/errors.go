package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInput 輸入不合法 (呼叫端錯誤，不自動重試)
	ErrInvalidInput = errors.New("invalid input")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAccountNumberCollision 帳號已被使用 (內部錯誤，由帳號產生器重試)
	ErrAccountNumberCollision = errors.New("account number collision")

	// ErrIdentifierSpaceExhausted 嘗試次數用盡仍找不到可用帳號
	ErrIdentifierSpaceExhausted = errors.New("account number space exhausted")

	// ErrStorage 底層儲存失敗
	ErrStorage = errors.New("storage failure")
)

// ValidationError 年齡、姓名、金額等欄位驗證失敗
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NotFoundError 操作的帳戶不存在
type NotFoundError struct {
	AccountNumber AccountNumber
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.AccountNumber)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrAccountNotFound
}

// InsufficientFundsError 提款金額大於餘額
type InsufficientFundsError struct {
	AccountNumber AccountNumber
	Balance       decimal.Decimal
	Amount        decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance on account %s: balance %s, requested %s",
		e.AccountNumber, e.Balance, e.Amount)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// StorageError 包裝底層資料庫 / 檔案錯誤
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// NewStorageError 包裝 err，err 為 nil 時回傳 nil
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IdentifierSpaceExhaustedError 帳號產生器超過嘗試上限
type IdentifierSpaceExhaustedError struct {
	Attempts int
}

func (e *IdentifierSpaceExhaustedError) Error() string {
	return fmt.Sprintf("no free account number after %d attempts", e.Attempts)
}

func (e *IdentifierSpaceExhaustedError) Is(target error) bool {
	return target == ErrIdentifierSpaceExhausted
}
