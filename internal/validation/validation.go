// Package validation содержит проверки входных данных заявок на пожертвование.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pledge-service/internal/model"
)

// ErrInvalidInput возвращается, если заявка содержит некорректные данные.
var ErrInvalidInput = errors.New("invalid input")

// MaxMonthlyAmountCents ограничивает ежемесячный взнос максимальной суммой, которую
// принимает платёжный шлюз за одну позицию.
const MaxMonthlyAmountCents = 99_999_999

var maxMonthlyAmount = decimal.New(MaxMonthlyAmountCents, -2)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidatePledge проверяет обязательные поля заявки и допустимость суммы взноса.
func ValidatePledge(req model.PledgeRequest) error {
	if err := validate.Struct(req); err != nil {
		var validateErrs validator.ValidationErrors
		if errors.As(err, &validateErrs) {
			fields := make([]string, 0, len(validateErrs))
			for _, fe := range validateErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return validateAmount(req.MonthlyAmount)
}

// validateAmount допускает суммы от 0.01 до MaxMonthlyAmountCents центов с точностью до цента.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: monthlyAmount must be positive", ErrInvalidInput)
	}
	if !amount.Equal(amount.Truncate(2)) {
		return fmt.Errorf("%w: monthlyAmount must have at most 2 decimal places", ErrInvalidInput)
	}
	if amount.GreaterThan(maxMonthlyAmount) {
		return fmt.Errorf("%w: monthlyAmount must not exceed %s", ErrInvalidInput, maxMonthlyAmount.StringFixed(2))
	}

	return nil
}
