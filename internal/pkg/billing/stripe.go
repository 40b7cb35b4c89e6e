package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"gorm.io/gorm"
)

// StripeClient wraps the provider SDK for the checkout and portal flows.
// Webhook reconciliation never calls the provider API; it only consumes
// verified events.
type StripeClient struct {
	api  *client.API
	repo Repository
}

func NewStripeClient(apiKey string, repo Repository) *StripeClient {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &StripeClient{api: sc, repo: repo}
}

// GetOrCreateCustomer returns the user's provider customer id, creating the
// customer and the local linkage row on first checkout. The customer id is
// immutable once assigned.
func (s *StripeClient) GetOrCreateCustomer(ctx context.Context, userID uint, email string) (string, error) {
	sub, err := s.repo.FindByUserID(ctx, userID)
	if err == nil && sub.StripeCustomerID != "" {
		return sub.StripeCustomerID, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			"user_id": fmt.Sprintf("%d", userID),
		},
	}
	params.Context = ctx

	customer, err := s.api.Customers.New(params)
	if err != nil {
		return "", err
	}

	if _, err := s.repo.UpsertCustomerLink(ctx, userID, customer.ID); err != nil {
		return "", err
	}
	return customer.ID, nil
}

// CreateCheckoutSession starts a hosted subscription checkout and returns the
// redirect URL. The price id travels in the session metadata so the
// completion event can resolve the purchased tier.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx
	params.AddMetadata("price_id", priceID)
	params.SetIdempotencyKey(uuid.NewString())

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// CreatePortalSession opens the provider's customer portal for subscription
// self-management and returns the redirect URL.
func (s *StripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}
