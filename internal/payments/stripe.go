package payments

import (
	"context"
	"math"
	"sync"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/ride-dispatch/internal/models"
)

// StripeFlow holds the quoted amount when an offer is assigned and captures
// it once the driver marks the job complete. The hold uses
// capture_method=manual so an abandoned job can be released by support.
type StripeFlow struct {
	Currency string

	mu    sync.Mutex
	holds map[string]string // offer id -> payment intent id
}

// NewStripeFlow initializes the stripe client with the given API key.
func NewStripeFlow(apiKey, currency string) *StripeFlow {
	stripe.Key = apiKey
	if currency == "" {
		currency = "mxn"
	}
	return &StripeFlow{Currency: currency, holds: make(map[string]string)}
}

// OnAssigned places a manual-capture hold for the offer's quoted price.
func (s *StripeFlow) OnAssigned(ctx context.Context, o models.Offer) error {
	amount := int64(math.Round(o.PriceQuote * 100))
	if amount <= 0 {
		return nil
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(s.Currency),
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	if o.RequesterID != "" {
		params.AddMetadata("requester_id", o.RequesterID)
	}
	params.AddMetadata("offer_id", o.ID)
	pi, err := paymentintent.New(params)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.holds[o.ID] = pi.ID
	s.mu.Unlock()
	return nil
}

// OnCompleted captures the hold placed at assignment, if one exists.
func (s *StripeFlow) OnCompleted(ctx context.Context, o models.Offer) error {
	s.mu.Lock()
	piID, ok := s.holds[o.ID]
	delete(s.holds, o.ID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	_, err := paymentintent.Capture(piID, nil)
	return err
}

// Release cancels the hold for an offer that will not complete.
func (s *StripeFlow) Release(ctx context.Context, offerID string) error {
	s.mu.Lock()
	piID, ok := s.holds[offerID]
	delete(s.holds, offerID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	_, err := paymentintent.Cancel(piID, nil)
	return err
}
