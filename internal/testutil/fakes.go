// Package testutil holds in-memory doubles of the server-side stores.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
)

// ErrBadToken is returned by StaticVerifier for unknown tokens.
var ErrBadToken = errors.New("bad token")

// StaticVerifier maps tokens to user ids.
type StaticVerifier map[string]string

func (v StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", ErrBadToken
}

// Ledger is an in-memory usage ledger.
type Ledger struct {
	mu        sync.Mutex
	Events    []domain.UsageEvent
	AppendErr error
	CountErr  error
}

func (l *Ledger) Append(_ context.Context, ev *domain.UsageEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.AppendErr != nil {
		return l.AppendErr
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	ev.ID = uint(len(l.Events) + 1)
	l.Events = append(l.Events, *ev)
	return nil
}

// Seed adds n events for userID and feature at the given time.
func (l *Ledger) Seed(userID string, feature domain.Feature, at time.Time, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 0; i < n; i++ {
		l.Events = append(l.Events, domain.UsageEvent{
			ID: uint(len(l.Events) + 1), UserID: userID, Feature: feature, CreatedAt: at,
		})
	}
}

func (l *Ledger) CountSince(_ context.Context, userID string, feature domain.Feature, since time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.CountErr != nil {
		return 0, l.CountErr
	}
	var n int64
	for _, ev := range l.Events {
		if ev.UserID == userID && ev.Feature == feature && !ev.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (l *Ledger) CountByFeatureSince(_ context.Context, userID string, since time.Time) (map[domain.Feature]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.CountErr != nil {
		return nil, l.CountErr
	}
	out := make(map[domain.Feature]int64)
	for _, ev := range l.Events {
		if ev.UserID == userID && !ev.CreatedAt.Before(since) {
			out[ev.Feature]++
		}
	}
	return out, nil
}

// Len returns the number of recorded events.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Events)
}

// Subscriptions is an in-memory subscription store.
type Subscriptions struct {
	mu     sync.Mutex
	ByUser map[string]domain.Subscription
	GetErr error
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{ByUser: make(map[string]domain.Subscription)}
}

func (s *Subscriptions) GetByUserID(_ context.Context, userID string) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	sub, ok := s.ByUser[userID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (s *Subscriptions) Upsert(_ context.Context, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ByUser[sub.UserID] = *sub
	return nil
}
