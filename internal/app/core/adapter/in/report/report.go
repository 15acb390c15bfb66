package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// SheetName xlsx 匯出的工作表名稱
const SheetName = "Accounts"

// Header 帳戶清單欄位
var Header = []string{"Serial Number", "Account Number", "Name", "Age", "Gender", "Balance"}

// Row 帳戶清單的一列，Serial 為顯示用序號 (從 1 開始)
type Row struct {
	Serial  int
	Account domain.Account
}

// Rank 依傳入順序附加序號
func Rank(accounts []domain.Account) []Row {
	rows := make([]Row, 0, len(accounts))
	for i, acct := range accounts {
		rows = append(rows, Row{Serial: i + 1, Account: acct})
	}
	return rows
}

func (r Row) strings() []string {
	return []string{
		strconv.Itoa(r.Serial),
		r.Account.Number.String(),
		r.Account.Name,
		strconv.Itoa(r.Account.Age),
		r.Account.Gender,
		r.Account.Balance.StringFixed(domain.CurrencyScale),
	}
}

// WriteCSV 輸出帳戶清單 CSV
func WriteCSV(w io.Writer, accounts []domain.Account) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range Rank(accounts) {
		if err := cw.Write(row.strings()); err != nil {
			return fmt.Errorf("write csv row %d: %w", row.Serial, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX 輸出帳戶清單 Excel
//
// 參數:
//
//	w: 輸出目標
//	accounts: 依開戶順序排列的帳戶
//
// 回傳:
//
//	error: 產生或寫出失敗
func WriteXLSX(w io.Writer, accounts []domain.Account) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	// 預設工作表改名
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, row := range Rank(accounts) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		// 帳號以文字寫入，保留 8 位格式；金額以字串寫入避免浮點誤差
		values := []any{
			row.Serial,
			row.Account.Number.String(),
			row.Account.Name,
			row.Account.Age,
			row.Account.Gender,
			row.Account.Balance.StringFixed(domain.CurrencyScale),
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", row.Serial, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
