package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"invitedoffer/offerroom/internal/models"
)

// planMetadataKey is the product metadata key that links a Stripe product
// to a room plan type.
const planMetadataKey = "planType"

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider creates a Stripe-backed payment provider.
// The client is owned by the provider; no package-global key is set.
func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

// CreateCheckoutSession looks up the active product for the room's plan and
// opens a hosted checkout session for its active price.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, room *models.Room, successURL, cancelURL string) (*CheckoutSession, error) {
	productParams := &stripe.ProductListParams{Active: stripe.Bool(true)}
	productParams.Context = ctx

	var productID string
	iter := p.api.Products.List(productParams)
	for iter.Next() {
		product := iter.Product()
		if product.Metadata[planMetadataKey] == string(room.PlanType) {
			productID = product.ID
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe product list failed: %w", err)
	}
	if productID == "" {
		return nil, fmt.Errorf("no active product for plan %q", room.PlanType)
	}

	priceParams := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}
	priceParams.Context = ctx
	priceParams.Limit = stripe.Int64(1)

	var priceID string
	priceIter := p.api.Prices.List(priceParams)
	if priceIter.Next() {
		priceID = priceIter.Price().ID
	}
	if err := priceIter.Err(); err != nil {
		return nil, fmt.Errorf("stripe price list failed: %w", err)
	}
	if priceID == "" {
		return nil, fmt.Errorf("no active price for plan %q", room.PlanType)
	}

	sessionParams := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(successURL),
		CancelURL:     stripe.String(cancelURL),
		CustomerEmail: stripe.String(room.SellerEmail),
	}
	sessionParams.Context = ctx
	sessionParams.AddMetadata("roomId", room.ID)

	session, err := p.api.CheckoutSessions.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session create failed: %w", err)
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL, PriceID: priceID}, nil
}

// IsSessionPaid retrieves the session and reports its payment status.
func (p *StripeProvider) IsSessionPaid(ctx context.Context, sessionID string) (bool, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return false, fmt.Errorf("stripe checkout session retrieve failed: %w", err)
	}
	return session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid, nil
}

// ParseWebhookEvent verifies the signature and extracts the fields the
// activation bridge needs. Events other than checkout completion are
// returned with their type so callers can log and ignore them.
func (p *StripeProvider) ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	out := &WebhookEvent{Type: string(event.Type)}
	if out.Type != EventCheckoutCompleted {
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout session from event: %w", err)
	}
	out.SessionID = session.ID
	out.RoomID = session.Metadata["roomId"]
	if out.RoomID == "" {
		log.Printf("Stripe checkout session %s completed without roomId metadata", session.ID)
	}
	return out, nil
}
