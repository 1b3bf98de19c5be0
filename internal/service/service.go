// Package service реализует оформление пожертвований и отмену их автопродления.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/pledge-service/internal/model"
	"github.com/mmeshcher/pledge-service/internal/schedule"
	"github.com/mmeshcher/pledge-service/internal/validation"
)

// Gateway описывает операции платёжного шлюза, используемые сервисом.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req model.CheckoutRequest) (*model.CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*model.CheckoutSession, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, upd model.SubscriptionUpdate) error
}

// Ledger описывает журнал, в который сервис добавляет записи о событиях.
type Ledger interface {
	Append(ctx context.Context, rec model.LedgerRecord) error
}

// ErrNoSubscription возвращается, если у сессии оплаты ещё нет подписки.
var ErrNoSubscription = errors.New("checkout session has no subscription")

const (
	currency          = "usd"
	sessionIDTemplate = "{CHECKOUT_SESSION_ID}"
	cancelUpdateLabel = "UPDATE"
)

// Ключи метаданных сессии и подписки на стороне шлюза.
const (
	metaDonorName           = "donor_name"
	metaDonorPhone          = "donor_phone"
	metaDonorEmail          = "donor_email"
	metaAutoRenew           = "auto_renew"
	metaStartDate           = "start_date"
	metaLastInstallmentDate = "last_installment_date"
	metaMonthlyAmount       = "monthly_amount"
	metaTotalPledgeValue    = "total_pledge_value"
	metaActualEndDate       = "actual_end_date"
)

// Service содержит бизнес-логику оформления пожертвований.
type Service struct {
	gateway Gateway
	ledger  Ledger
	fiscal  model.FiscalConfig
	domain  string
	logger  *zap.Logger
	now     func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger задаёт логгер сервиса.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService создаёт сервис с указанным шлюзом, журналом и конфигурацией финансового года.
func NewService(gw Gateway, ledger Ledger, fiscal model.FiscalConfig, domain string, opts ...Option) *Service {
	if fiscal.Location == nil {
		fiscal.Location = time.Local
	}

	s := &Service{
		gateway: gw,
		ledger:  ledger,
		fiscal:  fiscal,
		domain:  strings.TrimRight(domain, "/"),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// FiscalYearEnd возвращает дату окончания финансового года.
func (s *Service) FiscalYearEnd() model.Date {
	return s.fiscal.YearEnd
}

func (s *Service) today() model.Date {
	return model.DateOf(s.now().In(s.fiscal.Location))
}

// CreatePledge рассчитывает график взносов, создаёт подписку в платёжном шлюзе и
// записывает пожертвование в журнал. Запись в журнал выполняется только после
// успешного ответа шлюза.
func (s *Service) CreatePledge(ctx context.Context, req model.PledgeRequest) (*model.PledgeResult, error) {
	if err := validation.ValidatePledge(req); err != nil {
		return nil, err
	}

	start, err := schedule.ParseDate(req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", validation.ErrInvalidInput, err)
	}

	sched := schedule.Compute(start, req.MonthlyAmount, s.fiscal.YearEnd, s.today())

	session, err := s.gateway.CreateCheckoutSession(ctx, s.checkoutRequest(req, sched))
	if err != nil {
		s.logger.Error("create checkout session error", zap.Error(err), zap.String("email", req.Email))
		return nil, err
	}

	rec := model.LedgerRecord{
		EventID:             ulid.Make().String(),
		Timestamp:           s.now().In(s.fiscal.Location),
		DonorName:           req.DonorName,
		Email:               req.Email,
		Phone:               req.Phone,
		AutoRenew:           model.AutoRenewOn,
		StartDate:           sched.Start.String(),
		LastInstallmentDate: sched.LastInstallment.String(),
		MonthlyAmount:       model.FormatUSD(sched.MonthlyAmount),
		TotalPledge:         model.FormatUSD(sched.TotalPledge),
		Installments:        strconv.Itoa(sched.Installments),
	}
	s.record(ctx, rec, zap.String("session_id", session.ID))

	return &model.PledgeResult{
		SessionID: session.ID,
		URL:       session.URL,
		Schedule:  sched,
	}, nil
}

func (s *Service) checkoutRequest(req model.PledgeRequest, sched model.Schedule) model.CheckoutRequest {
	monthly := model.FormatAmount(sched.MonthlyAmount)
	last := sched.LastInstallment.String()

	cr := model.CheckoutRequest{
		CustomerEmail:      req.Email,
		ProductName:        "Monthly Donation: $" + monthly,
		ProductDescription: "Final installment scheduled for " + last,
		UnitAmountCents:    sched.MonthlyAmount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Currency:           currency,
		Metadata: map[string]string{
			metaDonorName:           req.DonorName,
			metaDonorPhone:          req.Phone,
			metaDonorEmail:          req.Email,
			metaAutoRenew:           model.AutoRenewOn,
			metaStartDate:           sched.Start.String(),
			metaLastInstallmentDate: last,
			metaMonthlyAmount:       model.FormatUSD(sched.MonthlyAmount),
			metaTotalPledgeValue:    model.FormatUSD(sched.TotalPledge),
		},
		SubscriptionMetadata: map[string]string{
			metaDonorName:           req.DonorName,
			metaLastInstallmentDate: last,
		},
		SuccessURL: s.successURL(req.DonorName, sched),
		CancelURL:  s.domain + "/cancel.html",
	}

	if !sched.ImmediateStart {
		cr.BillingCycleAnchor = sched.Start.In(s.fiscal.Location)
	}

	return cr
}

// successURL собирает адрес страницы подтверждения. Шаблон идентификатора сессии
// подставляет шлюз, поэтому он не экранируется.
func (s *Service) successURL(donorName string, sched model.Schedule) string {
	q := url.Values{}
	q.Set("name", donorName)
	q.Set("total", model.FormatAmount(sched.TotalPledge))
	q.Set("monthly", model.FormatAmount(sched.MonthlyAmount))
	q.Set("start", sched.Start.String())
	q.Set("count", strconv.Itoa(sched.Installments))
	q.Set("lastDate", sched.LastInstallment.String())

	return s.domain + "/success.html?session_id=" + sessionIDTemplate + "&" + q.Encode()
}

// CancelAutoRenew назначает отмену подписки на конец финансового года. Уже
// запланированные взносы сохраняются. Повторный вызов для уже отменённой подписки
// завершается успешно без повторного обращения к шлюзу и без новой записи в журнале.
// Если первая отмена прошла в шлюзе, но не попала в журнал, повторный вызов эту
// запись не восстанавливает: о пропуске остаётся только ошибка в логе первого вызова.
func (s *Service) CancelAutoRenew(ctx context.Context, sessionID string) (*model.CancelResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: sessionId is required", validation.ErrInvalidInput)
	}

	session, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		s.logger.Error("retrieve checkout session error", zap.Error(err), zap.String("session_id", sessionID))
		return nil, err
	}

	if session.SubscriptionID == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoSubscription, sessionID)
	}

	cancelAt := s.fiscal.CancelAt()
	res := &model.CancelResult{
		SubscriptionID: session.SubscriptionID,
		EffectiveEnd:   cancelAt,
	}

	if alreadyCancelled(session, cancelAt) {
		s.logger.Info("auto-renew already cancelled",
			zap.String("session_id", sessionID),
			zap.String("subscription_id", session.SubscriptionID))
		res.AlreadyCancelled = true
		return res, nil
	}

	err = s.gateway.UpdateSubscription(ctx, session.SubscriptionID, model.SubscriptionUpdate{
		CancelAt: cancelAt,
		Metadata: map[string]string{
			metaAutoRenew:     "N",
			metaActualEndDate: s.fiscal.YearEnd.String(),
		},
	})
	if err != nil {
		s.logger.Error("update subscription error", zap.Error(err), zap.String("subscription_id", session.SubscriptionID))
		return nil, err
	}

	rec := model.LedgerRecord{
		EventID:             ulid.Make().String(),
		Timestamp:           s.now().In(s.fiscal.Location),
		DonorName:           session.Metadata[metaDonorName],
		Email:               session.Metadata[metaDonorEmail],
		Phone:               cancelUpdateLabel,
		AutoRenew:           model.AutoRenewCancelled,
		StartDate:           model.LedgerPlaceholder,
		LastInstallmentDate: model.LedgerPlaceholder,
		MonthlyAmount:       model.LedgerPlaceholder,
		TotalPledge:         model.LedgerPlaceholder,
		Installments:        model.LedgerPlaceholder,
	}
	s.record(ctx, rec, zap.String("subscription_id", session.SubscriptionID))

	return res, nil
}

func alreadyCancelled(session *model.CheckoutSession, cancelAt time.Time) bool {
	return session.SubscriptionMetadata[metaAutoRenew] == "N" &&
		session.SubscriptionCancelAt.Equal(cancelAt)
}

// record пишет событие в журнал. Состояние шлюза к этому моменту уже зафиксировано,
// поэтому ошибка записи только логируется.
func (s *Service) record(ctx context.Context, rec model.LedgerRecord, fields ...zap.Field) {
	if s.ledger == nil {
		return
	}

	if err := s.ledger.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("ledger write error",
			append(fields,
				zap.Error(err),
				zap.String("event_id", rec.EventID),
				zap.String("auto_renew", rec.AutoRenew))...)
	}
}
