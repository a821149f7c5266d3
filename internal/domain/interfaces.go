package domain

import (
	"context"
	"time"
)

// UsageLedger is the append-only log of billable AI calls.
type UsageLedger interface {
	Append(ctx context.Context, event *UsageEvent) error
	CountSince(ctx context.Context, userID string, feature Feature, since time.Time) (int64, error)
	CountByFeatureSince(ctx context.Context, userID string, since time.Time) (map[Feature]int64, error)
}

// SubscriptionStore reads and writes billing state.
type SubscriptionStore interface {
	// GetByUserID returns nil and no error when the user has no subscription.
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)
	Upsert(ctx context.Context, sub *Subscription) error
}

// IdentityVerifier resolves a bearer token to a user id.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}
