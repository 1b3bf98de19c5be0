// Package gateway предоставляет клиент платёжного шлюза Stripe.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/mmeshcher/pledge-service/internal/model"
)

// ErrGateway отмечает ошибки, возвращённые платёжным шлюзом.
var ErrGateway = errors.New("payment gateway error")

// Error содержит сообщение платёжного шлюза без изменений.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap возвращает исходную ошибку шлюза.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с ErrGateway.
func (e *Error) Is(target error) bool {
	return target == ErrGateway
}

func wrapError(op string, err error) error {
	msg := err.Error()

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		msg = stripeErr.Msg
	}

	return &Error{Op: op, Message: msg, Err: err}
}

var paymentMethodTypes = []string{"card", "us_bank_account"}

// StripeGateway инкапсулирует вызовы Stripe API для сессий оплаты и подписок.
type StripeGateway struct {
	client *stripe.Client
}

// NewStripeGateway создаёт клиент Stripe с указанным секретным ключом.
func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{
		client: stripe.NewClient(secretKey, nil),
	}
}

// CreateCheckoutSession создаёт сессию оплаты в режиме подписки.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req model.CheckoutRequest) (*model.CheckoutSession, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("stripe gateway not configured")
	}

	session, err := g.client.V1CheckoutSessions.Create(ctx, checkoutParams(req))
	if err != nil {
		return nil, wrapError("create checkout session", err)
	}

	return sessionFromStripe(session), nil
}

// RetrieveSession возвращает сессию оплаты вместе с данными её подписки.
func (g *StripeGateway) RetrieveSession(ctx context.Context, sessionID string) (*model.CheckoutSession, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("stripe gateway not configured")
	}

	params := &stripe.CheckoutSessionRetrieveParams{
		Expand: []*string{
			stripe.String("subscription"),
		},
	}

	session, err := g.client.V1CheckoutSessions.Retrieve(ctx, sessionID, params)
	if err != nil {
		return nil, wrapError("retrieve checkout session", err)
	}

	return sessionFromStripe(session), nil
}

// UpdateSubscription назначает момент отмены подписки и обновляет её метаданные.
func (g *StripeGateway) UpdateSubscription(ctx context.Context, subscriptionID string, upd model.SubscriptionUpdate) error {
	if g == nil || g.client == nil {
		return fmt.Errorf("stripe gateway not configured")
	}

	if _, err := g.client.V1Subscriptions.Update(ctx, subscriptionID, subscriptionParams(upd)); err != nil {
		return wrapError("update subscription", err)
	}

	return nil
}

func checkoutParams(req model.CheckoutRequest) *stripe.CheckoutSessionCreateParams {
	methods := make([]*string, 0, len(paymentMethodTypes))
	for _, m := range paymentMethodTypes {
		methods = append(methods, stripe.String(m))
	}

	subscriptionData := &stripe.CheckoutSessionCreateSubscriptionDataParams{
		Metadata: req.SubscriptionMetadata,
	}
	// Для будущей даты первое списание привязывается к дате начала без пропорционального расчёта.
	if !req.BillingCycleAnchor.IsZero() {
		subscriptionData.BillingCycleAnchor = stripe.Int64(req.BillingCycleAnchor.Unix())
		subscriptionData.ProrationBehavior = stripe.String("none")
	}

	return &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String("subscription"),
		PaymentMethodTypes: methods,
		CustomerEmail:      stripe.String(req.CustomerEmail),
		Metadata:           req.Metadata,
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					Recurring: &stripe.CheckoutSessionCreateLineItemPriceDataRecurringParams{
						Interval: stripe.String("month"),
					},
					UnitAmount: stripe.Int64(req.UnitAmountCents),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.ProductName),
						Description: stripe.String(req.ProductDescription),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: subscriptionData,
		SuccessURL:       stripe.String(req.SuccessURL),
		CancelURL:        stripe.String(req.CancelURL),
	}
}

func subscriptionParams(upd model.SubscriptionUpdate) *stripe.SubscriptionUpdateParams {
	return &stripe.SubscriptionUpdateParams{
		CancelAt: stripe.Int64(upd.CancelAt.Unix()),
		Metadata: upd.Metadata,
	}
}

func sessionFromStripe(s *stripe.CheckoutSession) *model.CheckoutSession {
	res := &model.CheckoutSession{
		ID:       s.ID,
		URL:      s.URL,
		Metadata: s.Metadata,
	}

	if s.Subscription != nil {
		res.SubscriptionID = s.Subscription.ID
		res.SubscriptionMetadata = s.Subscription.Metadata
		if s.Subscription.CancelAt > 0 {
			res.SubscriptionCancelAt = time.Unix(s.Subscription.CancelAt, 0)
		}
	}

	return res
}
