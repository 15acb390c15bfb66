package usecase

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

// openAccountInput 開戶參數
type openAccountInput struct {
	Name   string `validate:"required"`
	Age    int    `validate:"gte=16"`
	Gender string
}

// movementInput 存提款參數
type movementInput struct {
	Amount decimal.Decimal `validate:"gt=0"`
}

// newValidator 建立 validator，decimal 以 float64 形式比較正負
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validateStruct 把 validator 錯誤轉成 *domain.ValidationError (只取第一個)
func validateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Field: "input", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	return &domain.ValidationError{
		Field:  strings.ToLower(fe.Field()),
		Reason: reason(fe),
	}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "gte":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// validateAmount 金額需為正數、不超過 MaxAmount，且不超過 CurrencyScale 位小數
func validateAmount(v *validator.Validate, amount decimal.Decimal) error {
	if err := validateStruct(v, movementInput{Amount: amount}); err != nil {
		return err
	}
	if amount.GreaterThan(domain.MaxAmount) {
		return &domain.ValidationError{Field: "amount", Reason: "must not exceed " + domain.MaxAmount.StringFixed(domain.CurrencyScale)}
	}
	if !amount.Equal(amount.Truncate(domain.CurrencyScale)) {
		return &domain.ValidationError{Field: "amount", Reason: "too many decimal places"}
	}
	return nil
}
