package billing

import (
	"context"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/mbd888/saaskit/internal/org"
)

// Gateway mirrors subscription state to an external billing provider.
// nil disables the sync, which is the mode local development runs in.
type Gateway interface {
	EnsureCustomer(ctx context.Context, o *org.Organization) (string, error)
	CancelSubscription(ctx context.Context, stripeSubID string) error
}

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(apiKey string) *StripeGateway {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeGateway{api: api}
}

// EnsureCustomer returns the org's Stripe customer, creating one on
// first use.
func (g *StripeGateway) EnsureCustomer(ctx context.Context, o *org.Organization) (string, error) {
	if o.StripeCustomerID != "" {
		return o.StripeCustomerID, nil
	}
	params := &stripe.CustomerParams{
		Name: stripe.String(o.Name),
	}
	params.Context = ctx
	params.AddMetadata("org_id", o.ID)
	params.AddMetadata("org_slug", o.Slug)
	cus, err := g.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return cus.ID, nil
}

// CancelSubscription cancels the remote subscription immediately.
func (g *StripeGateway) CancelSubscription(ctx context.Context, stripeSubID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	_, err := g.api.Subscriptions.Cancel(stripeSubID, params)
	return err
}
