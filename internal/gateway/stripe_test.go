package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/mmeshcher/pledge-service/internal/model"
)

func testCheckoutRequest() model.CheckoutRequest {
	return model.CheckoutRequest{
		CustomerEmail:      "donor@example.org",
		ProductName:        "Monthly Donation: $100",
		ProductDescription: "Final installment scheduled for 2024-06-01",
		UnitAmountCents:    10000,
		Currency:           "usd",
		Metadata: map[string]string{
			"donor_name": "Jane Doe",
			"auto_renew": "Y",
		},
		SubscriptionMetadata: map[string]string{
			"donor_name":            "Jane Doe",
			"last_installment_date": "2024-06-01",
		},
		SuccessURL: "https://donate.example.org/success.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://donate.example.org/cancel.html",
	}
}

func TestCheckoutParams_ImmediateStart(t *testing.T) {
	p := checkoutParams(testCheckoutRequest())

	assert.Equal(t, "subscription", *p.Mode)
	assert.Equal(t, "donor@example.org", *p.CustomerEmail)
	require.Len(t, p.PaymentMethodTypes, 2)
	assert.Equal(t, "card", *p.PaymentMethodTypes[0])
	assert.Equal(t, "us_bank_account", *p.PaymentMethodTypes[1])

	require.Len(t, p.LineItems, 1)
	item := p.LineItems[0]
	assert.Equal(t, int64(1), *item.Quantity)
	assert.Equal(t, "usd", *item.PriceData.Currency)
	assert.Equal(t, "month", *item.PriceData.Recurring.Interval)
	assert.Equal(t, int64(10000), *item.PriceData.UnitAmount)
	assert.Equal(t, "Monthly Donation: $100", *item.PriceData.ProductData.Name)

	require.NotNil(t, p.SubscriptionData)
	assert.Nil(t, p.SubscriptionData.BillingCycleAnchor)
	assert.Nil(t, p.SubscriptionData.ProrationBehavior)
	assert.Equal(t, "2024-06-01", p.SubscriptionData.Metadata["last_installment_date"])
	assert.Equal(t, "Y", p.Metadata["auto_renew"])
}

func TestCheckoutParams_FutureStartAnchorsBilling(t *testing.T) {
	req := testCheckoutRequest()
	anchor := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	req.BillingCycleAnchor = anchor

	p := checkoutParams(req)

	require.NotNil(t, p.SubscriptionData.BillingCycleAnchor)
	assert.Equal(t, anchor.Unix(), *p.SubscriptionData.BillingCycleAnchor)
	require.NotNil(t, p.SubscriptionData.ProrationBehavior)
	assert.Equal(t, "none", *p.SubscriptionData.ProrationBehavior)
}

func TestSubscriptionParams(t *testing.T) {
	cancelAt := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)

	p := subscriptionParams(model.SubscriptionUpdate{
		CancelAt: cancelAt,
		Metadata: map[string]string{"auto_renew": "N", "actual_end_date": "2024-06-30"},
	})

	assert.Equal(t, cancelAt.Unix(), *p.CancelAt)
	assert.Equal(t, "N", p.Metadata["auto_renew"])
	assert.Equal(t, "2024-06-30", p.Metadata["actual_end_date"])
}

func TestSessionFromStripe(t *testing.T) {
	cancelAt := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)

	s := sessionFromStripe(&stripe.CheckoutSession{
		ID:       "cs_test_1",
		URL:      "https://checkout.stripe.com/c/pay/cs_test_1",
		Metadata: map[string]string{"donor_name": "Jane Doe"},
		Subscription: &stripe.Subscription{
			ID:       "sub_1",
			CancelAt: cancelAt.Unix(),
			Metadata: map[string]string{"auto_renew": "N"},
		},
	})

	assert.Equal(t, "cs_test_1", s.ID)
	assert.Equal(t, "sub_1", s.SubscriptionID)
	assert.True(t, cancelAt.Equal(s.SubscriptionCancelAt))
	assert.Equal(t, "N", s.SubscriptionMetadata["auto_renew"])
	assert.Equal(t, "Jane Doe", s.Metadata["donor_name"])
}

func TestSessionFromStripe_NoSubscription(t *testing.T) {
	s := sessionFromStripe(&stripe.CheckoutSession{ID: "cs_test_2"})

	assert.Empty(t, s.SubscriptionID)
	assert.True(t, s.SubscriptionCancelAt.IsZero())
}

func TestWrapError_KeepsGatewayMessage(t *testing.T) {
	err := wrapError("retrieve checkout session", &stripe.Error{
		Msg: "No such checkout.session: cs_missing",
	})

	assert.Equal(t, "No such checkout.session: cs_missing", err.Error())
	assert.True(t, errors.Is(err, ErrGateway))

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "retrieve checkout session", gwErr.Op)
}

func TestWrapError_PlainError(t *testing.T) {
	err := wrapError("update subscription", fmt.Errorf("dial tcp: connection refused"))

	assert.Equal(t, "dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, ErrGateway)
}

func TestNilGateway(t *testing.T) {
	var g *StripeGateway

	_, err := g.RetrieveSession(context.Background(), "cs_test")
	assert.Error(t, err)
}
