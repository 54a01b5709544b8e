package settlement

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/transfer"
)

// StripeTransferClient exposes the subset of Stripe operations required by the orchestrator.
type StripeTransferClient interface {
	CreateTransfer(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error)
}

type stripeClientWrapper struct{}

// NewStripeClient returns the live transfer client. The bindings draw their
// credentials from the one-time initialization in pkg/stripe.
func NewStripeClient() StripeTransferClient {
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) CreateTransfer(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error) {
	if params != nil {
		params.Context = ctx
	}
	return transfer.New(params)
}
