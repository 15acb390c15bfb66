package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// amount 使用 decimal，並定義精度：小數點後 4 位
const (
	CurrencyScale = 4
)

// MaxAmount 單筆金額與餘額上限 (99,999,999,999,999.9999)
// 換算成最小單位後仍在 int64 範圍內
var MaxAmount = decimal.New(1, 14).Sub(decimal.New(1, -CurrencyScale))

// ToMinorUnits 金額轉成最小單位 (amount * 10^CurrencyScale)
// 呼叫端需先確認精度不超過 CurrencyScale 且不超過 MaxAmount
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(CurrencyScale).IntPart()
}

// FromMinorUnits 最小單位轉回金額
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -CurrencyScale)
}

// TransactionType 交易類型
type TransactionType uint8

const (
	// 存款
	TransactionTypeDeposit TransactionType = 1
	// 提款
	TransactionTypeWithdraw TransactionType = 2
)

// String 回傳儲存層使用的交易類型字串 ("Deposit" / "Withdraw")
func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "Deposit"
	case TransactionTypeWithdraw:
		return "Withdraw"
	default:
		return fmt.Sprintf("TransactionType(%d)", uint8(t))
	}
}

// ParseTransactionType 將儲存層字串轉回 TransactionType
func ParseTransactionType(s string) (TransactionType, error) {
	switch s {
	case "Deposit":
		return TransactionTypeDeposit, nil
	case "Withdraw":
		return TransactionTypeWithdraw, nil
	default:
		return 0, fmt.Errorf("unknown transaction type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t TransactionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TransactionType) UnmarshalText(b []byte) error {
	parsed, err := ParseTransactionType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Transaction 單筆餘額異動紀錄，建立後不再修改
type Transaction struct {
	// ID: 由 Store 分配的遞增序號 (1, 2, 3...)
	ID int64 `json:"id"`
	// RefID: 外部追蹤號 (UUID)
	RefID uuid.UUID `json:"ref_id"`
	// AccountNumber: 帳戶號碼，帳戶刪除後紀錄仍保留
	AccountNumber AccountNumber `json:"account_number"`
	// Type: Deposit / Withdraw
	Type TransactionType `json:"transaction_type"`
	// Amount: 金額 (恆為正數)
	Amount decimal.Decimal `json:"amount"`
	// CreatedAt: 交易時間
	CreatedAt time.Time `json:"created_at"`
}
