// Package model содержит доменные сущности сервиса приёма пожертвований.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Date представляет календарную дату без времени суток и часового пояса.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate создаёт календарную дату.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf возвращает календарную дату момента t в его часовом поясе.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String форматирует дату в виде YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// In возвращает полночь даты в указанном часовом поясе.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Before сообщает, что d строго раньше other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After сообщает, что d строго позже other.
func (d Date) After(other Date) bool {
	return other.Before(d)
}

// FiscalConfig содержит конфигурацию финансового года, загружаемую один раз при старте.
type FiscalConfig struct {
	YearEnd  Date
	Location *time.Location
}

// CancelAt возвращает момент окончания финансового года (полночь даты окончания).
func (f FiscalConfig) CancelAt() time.Time {
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	return f.YearEnd.In(loc)
}

// PledgeRequest описывает заявку на ежемесячное пожертвование из веб-формы.
type PledgeRequest struct {
	Email         string          `json:"email" validate:"required,email"`
	DonorName     string          `json:"donorName" validate:"required"`
	Phone         string          `json:"phone"`
	MonthlyAmount decimal.Decimal `json:"monthlyAmount"`
	StartDate     string          `json:"startDate" validate:"required,datetime=2006-01-02"`
}

// Schedule описывает рассчитанный график взносов до конца финансового года.
type Schedule struct {
	Start           Date
	Installments    int
	LastInstallment Date
	MonthlyAmount   decimal.Decimal
	TotalPledge     decimal.Decimal
	ImmediateStart  bool
}

// PledgeResult содержит результат успешного оформления пожертвования.
type PledgeResult struct {
	SessionID string
	URL       string
	Schedule  Schedule
}

// CancelResult содержит результат отмены автопродления.
type CancelResult struct {
	SubscriptionID   string
	EffectiveEnd     time.Time
	AlreadyCancelled bool
}

// CheckoutRequest описывает запрос на создание сессии оплаты с подпиской.
type CheckoutRequest struct {
	CustomerEmail        string
	ProductName          string
	ProductDescription   string
	UnitAmountCents      int64
	Currency             string
	Metadata             map[string]string
	SubscriptionMetadata map[string]string
	// BillingCycleAnchor равен нулю, если списания начинаются сразу.
	BillingCycleAnchor time.Time
	SuccessURL         string
	CancelURL          string
}

// CheckoutSession описывает сессию оплаты на стороне платёжного шлюза.
type CheckoutSession struct {
	ID                   string
	URL                  string
	SubscriptionID       string
	Metadata             map[string]string
	SubscriptionMetadata map[string]string
	SubscriptionCancelAt time.Time
}

// SubscriptionUpdate описывает изменение подписки на стороне платёжного шлюза.
type SubscriptionUpdate struct {
	CancelAt time.Time
	Metadata map[string]string
}

// Значения признака автопродления в журнале.
const (
	AutoRenewOn        = "Y"
	AutoRenewCancelled = "N (Cancelled)"
)

// LedgerPlaceholder подставляется вместо полей графика в записях об отмене.
const LedgerPlaceholder = "---"

// LedgerRecord описывает одну строку журнала пожертвований.
type LedgerRecord struct {
	EventID             string
	Timestamp           time.Time
	DonorName           string
	Email               string
	Phone               string
	AutoRenew           string
	StartDate           string
	LastInstallmentDate string
	MonthlyAmount       string
	TotalPledge         string
	Installments        string
}

// Fields возвращает значения полей записи в порядке колонок журнала.
func (r LedgerRecord) Fields(timestampLayout string) []string {
	return []string{
		r.Timestamp.Format(timestampLayout),
		r.DonorName,
		r.Email,
		r.Phone,
		r.AutoRenew,
		r.StartDate,
		r.LastInstallmentDate,
		r.MonthlyAmount,
		r.TotalPledge,
		r.Installments,
	}
}

// LedgerColumns перечисляет колонки журнала в порядке записи.
var LedgerColumns = []string{
	"Timestamp",
	"DonorName",
	"Email",
	"Phone",
	"AutoRenew",
	"StartDate",
	"LastInstallmentDate",
	"MonthlyAmount",
	"TotalPledge",
	"Installments",
}

// FormatAmount форматирует денежную сумму без символа валюты: целые суммы без копеек, иначе с двумя знаками.
func FormatAmount(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.Truncate(0).String()
	}
	return d.StringFixed(2)
}

// FormatUSD форматирует денежную сумму с символом доллара.
func FormatUSD(d decimal.Decimal) string {
	return "$" + FormatAmount(d)
}
