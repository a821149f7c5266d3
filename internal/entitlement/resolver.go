package entitlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	"github.com/vladimiradmaev/diabetes-companion/internal/utils"
)

// Resolver combines the subscription record and today's ledger rows into an entitlement.
type Resolver struct {
	verifier      domain.IdentityVerifier
	subscriptions domain.SubscriptionStore
	ledger        domain.UsageLedger
	log           *slog.Logger
	now           func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(
	verifier domain.IdentityVerifier,
	subscriptions domain.SubscriptionStore,
	ledger domain.UsageLedger,
	log *slog.Logger,
	opts ...Option,
) *Resolver {
	r := &Resolver{
		verifier:      verifier,
		subscriptions: subscriptions,
		ledger:        ledger,
		log:           log,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve never fails: a missing or rejected token yields the anonymous free view,
// and lookup failures degrade to the free plan or zero usage.
func (r *Resolver) Resolve(ctx context.Context, token string) domain.Entitlement {
	now := r.now().UTC()
	ent := Free(utils.UTCDate(now))
	if token == "" {
		return ent
	}

	userID, err := r.verifier.Verify(ctx, token)
	if err != nil {
		r.log.Debug("Entitlement requested with rejected token", "error", err)
		return ent
	}

	plan := r.PlanFor(ctx, userID)
	ent.Plan = plan
	ent.IsPro = plan == domain.PlanPro
	ent.Quotas = QuotasFor(plan)

	counts, err := r.ledger.CountByFeatureSince(ctx, userID, utils.StartOfUTCDay(now))
	if err != nil {
		r.log.Warn("Failed to count usage for entitlement", "user_id", userID, "error", err)
		return ent
	}
	ent.Usage.DailyChatCount = int(counts[domain.FeatureChat])
	ent.Usage.DailyVisionCount = int(counts[domain.FeatureVision])
	return ent
}

// PlanFor returns "pro" only for an active, unexpired subscription. Lookup
// failures are logged and treated as the free plan.
func (r *Resolver) PlanFor(ctx context.Context, userID string) domain.PlanID {
	sub, err := r.subscriptions.GetByUserID(ctx, userID)
	if err != nil {
		r.log.Warn("Failed to load subscription, assuming free plan", "user_id", userID, "error", err)
		return domain.PlanFree
	}
	if sub.IsActive(r.now()) && sub.Plan == domain.PlanPro {
		return domain.PlanPro
	}
	return domain.PlanFree
}
