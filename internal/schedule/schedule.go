// Package schedule рассчитывает график ежемесячных взносов в пределах финансового года.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pledge-service/internal/model"
)

// DateLayout задаёт формат календарной даты во входных данных и конфигурации.
const DateLayout = "2006-01-02"

// ErrInvalidDate возвращается, если строка не является корректной календарной датой.
var ErrInvalidDate = errors.New("invalid calendar date")

// ParseDate разбирает дату формата YYYY-MM-DD без преобразования часового пояса.
func ParseDate(s string) (model.Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return model.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return model.DateOf(t), nil
}

// Compute рассчитывает график взносов. Функция детерминирована и не имеет побочных эффектов.
func Compute(start model.Date, monthly decimal.Decimal, fiscalEnd, today model.Date) model.Schedule {
	months := (fiscalEnd.Year-start.Year)*12 + int(fiscalEnd.Month-start.Month) + 1
	if months <= 0 {
		months = 1
	}

	return model.Schedule{
		Start:           start,
		Installments:    months,
		LastInstallment: AddMonths(start, months-1),
		MonthlyAmount:   monthly,
		TotalPledge:     monthly.Mul(decimal.NewFromInt(int64(months))).Round(0),
		ImmediateStart:  !start.After(today),
	}
}

// AddMonths сдвигает дату на n целых месяцев. Если в целевом месяце нет такого дня,
// берётся последний день месяца: 31 января + 1 месяц = 29 февраля в високосный год.
func AddMonths(d model.Date, n int) model.Date {
	year := d.Year
	month := int(d.Month) + n
	for month > 12 {
		month -= 12
		year++
	}
	for month < 1 {
		month += 12
		year--
	}

	day := d.Day
	if last := daysIn(year, time.Month(month)); day > last {
		day = last
	}

	return model.NewDate(year, time.Month(month), day)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
