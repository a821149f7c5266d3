// Package billing applies Stripe subscription events to subscription records.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	apperrors "github.com/vladimiradmaev/diabetes-companion/internal/errors"
)

// UserIDMetadataKey is the subscription metadata key carrying our user id.
const UserIDMetadataKey = "user_id"

// Processor verifies webhook payloads and upserts the matching subscription.
type Processor struct {
	webhookSecret string
	subscriptions domain.SubscriptionStore
	log           *slog.Logger
}

func NewProcessor(webhookSecret string, subscriptions domain.SubscriptionStore, log *slog.Logger) *Processor {
	return &Processor{webhookSecret: webhookSecret, subscriptions: subscriptions, log: log}
}

// Configured reports whether a webhook secret is set.
func (p *Processor) Configured() bool {
	return p.webhookSecret != ""
}

// Process handles one webhook delivery. Unknown event types are acknowledged
// without side effects.
func (p *Processor) Process(ctx context.Context, payload []byte, signature string) error {
	if !p.Configured() {
		return apperrors.New(apperrors.KindConfig, "Webhook secret is not configured")
	}
	if signature == "" {
		return apperrors.NewInvalidRequest("Missing Stripe signature")
	}

	// ConstructEvent also rejects events whose api_version differs from the
	// SDK's pinned version, so only the signature is checked here.
	if err := webhook.ValidatePayload(payload, signature, p.webhookSecret); err != nil {
		return apperrors.Wrap(err, apperrors.KindInvalidRequest, "Invalid Stripe signature")
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return apperrors.Wrap(err, apperrors.KindInvalidRequest, "Failed to parse Stripe event")
	}
	if event.Data == nil {
		return apperrors.NewInvalidRequest("Stripe event has no data")
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return apperrors.Wrap(err, apperrors.KindInvalidRequest, "Failed to parse subscription")
		}
		return p.applySubscription(ctx, event.Type, &sub)

	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return apperrors.Wrap(err, apperrors.KindInvalidRequest, "Failed to parse checkout session")
		}
		p.log.Info("Checkout completed", "user_id", session.ClientReferenceID, "session_id", session.ID)

	default:
		p.log.Debug("Ignoring Stripe event", "type", event.Type, "event_id", event.ID)
	}
	return nil
}

func (p *Processor) applySubscription(ctx context.Context, eventType string, sub *stripe.Subscription) error {
	userID := sub.Metadata[UserIDMetadataKey]
	if userID == "" {
		p.log.Warn("Subscription event without user id", "type", eventType, "subscription_id", sub.ID)
		return nil
	}

	record := &domain.Subscription{
		UserID:               userID,
		Plan:                 domain.PlanPro,
		Status:               string(sub.Status),
		StripeSubscriptionID: sub.ID,
	}
	if sub.Customer != nil {
		record.StripeCustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		record.CurrentPeriodEnd = &end
	}

	if err := p.subscriptions.Upsert(ctx, record); err != nil {
		return apperrors.NewServerError(fmt.Errorf("upsert subscription %s: %w", sub.ID, err))
	}
	p.log.Info("Subscription updated",
		"user_id", userID,
		"status", record.Status,
		"type", eventType)
	return nil
}
