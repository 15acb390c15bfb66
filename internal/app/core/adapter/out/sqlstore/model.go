package sqlstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// sqlAccount 對應資料庫的 accounts 表
// 金額欄位存最小單位 (amount * 10^CurrencyScale)，不使用 DECIMAL 欄位
type sqlAccount struct {
	AccountNumber int64  `gorm:"column:account_number;primaryKey;autoIncrement:false"`
	Name          string `gorm:"size:255;not null"`
	Age           int    `gorm:"not null"`
	Gender        string `gorm:"size:32;not null;default:''"`
	Balance       int64  `gorm:"not null;check:chk_accounts_balance,balance >= 0"`
	OpenedAt      int64  `gorm:"column:opened_at;not null;index"` // 建立順序 (嚴格遞增的 ns)
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (a *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		Number:  domain.AccountNumber(a.AccountNumber),
		Name:    a.Name,
		Age:     a.Age,
		Gender:  a.Gender,
		Balance: domain.FromMinorUnits(a.Balance),
	}
}

// sqlTransaction 對應資料庫的 transactions 表
// account_number 不設外鍵：帳戶刪除後交易紀錄仍保留
type sqlTransaction struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	RefID           string `gorm:"column:ref_id;type:char(36);uniqueIndex"` // 對應 domain.Transaction.RefID
	AccountNumber   int64  `gorm:"column:account_number;not null;index"`
	TransactionType string `gorm:"column:transaction_type;size:16;not null"`
	Amount          int64  `gorm:"not null"`             // 最小單位
	CreatedAt       int64  `gorm:"autoCreateTime:milli"` // 自動寫入時間
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func (t *sqlTransaction) toDomain() (domain.Transaction, error) {
	typ, err := domain.ParseTransactionType(t.TransactionType)
	if err != nil {
		return domain.Transaction{}, err
	}
	ref, err := uuid.Parse(t.RefID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return domain.Transaction{
		ID:            t.ID,
		RefID:         ref,
		AccountNumber: domain.AccountNumber(t.AccountNumber),
		Type:          typ,
		Amount:        domain.FromMinorUnits(t.Amount),
		CreatedAt:     time.UnixMilli(t.CreatedAt),
	}, nil
}
