package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	apperrors "github.com/vladimiradmaev/diabetes-companion/internal/errors"
	"github.com/vladimiradmaev/diabetes-companion/internal/logger"
	"github.com/vladimiradmaev/diabetes-companion/internal/testutil"
)

const secret = "whsec_test"

func sign(payload []byte, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func subscriptionEvent(eventType, status string, periodEnd int64, userID string) []byte {
	return subscriptionEventVersion(stripe.APIVersion, eventType, status, periodEnd, userID)
}

func subscriptionEventVersion(apiVersion, eventType, status string, periodEnd int64, userID string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_1",
  "object": "event",
  "api_version": %q,
  "type": %q,
  "data": {"object": {
    "id": "sub_123",
    "object": "subscription",
    "status": %q,
    "current_period_end": %d,
    "customer": "cus_9",
    "metadata": {"user_id": %q}
  }}
}`, apiVersion, eventType, status, periodEnd, userID))
}

func TestProcessSubscriptionUpdated(t *testing.T) {
	subs := testutil.NewSubscriptions()
	p := NewProcessor(secret, subs, logger.Discard())
	end := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	payload := subscriptionEvent("customer.subscription.updated", "active", end.Unix(), "user-1")
	require.NoError(t, p.Process(context.Background(), payload, sign(payload, time.Now())))

	rec, ok := subs.ByUser["user-1"]
	require.True(t, ok)
	assert.Equal(t, domain.PlanPro, rec.Plan)
	assert.Equal(t, "active", rec.Status)
	assert.Equal(t, "sub_123", rec.StripeSubscriptionID)
	assert.Equal(t, "cus_9", rec.StripeCustomerID)
	require.NotNil(t, rec.CurrentPeriodEnd)
	assert.True(t, end.Equal(*rec.CurrentPeriodEnd))
}

func TestProcessAcceptsNewerAPIVersion(t *testing.T) {
	subs := testutil.NewSubscriptions()
	p := NewProcessor(secret, subs, logger.Discard())

	payload := subscriptionEventVersion("2024-06-20", "customer.subscription.created", "active", 0, "user-3")
	require.NoError(t, p.Process(context.Background(), payload, sign(payload, time.Now())))
	assert.Equal(t, "active", subs.ByUser["user-3"].Status)
}

func TestProcessSubscriptionDeleted(t *testing.T) {
	subs := testutil.NewSubscriptions()
	p := NewProcessor(secret, subs, logger.Discard())

	payload := subscriptionEvent("customer.subscription.deleted", "canceled", time.Now().Unix(), "user-2")
	require.NoError(t, p.Process(context.Background(), payload, sign(payload, time.Now())))
	assert.Equal(t, "canceled", subs.ByUser["user-2"].Status)
	assert.False(t, (&domain.Subscription{Status: subs.ByUser["user-2"].Status}).IsActive(time.Now()))
}

func TestProcessIgnoresMissingUser(t *testing.T) {
	subs := testutil.NewSubscriptions()
	p := NewProcessor(secret, subs, logger.Discard())

	payload := subscriptionEvent("customer.subscription.created", "active", 0, "")
	require.NoError(t, p.Process(context.Background(), payload, sign(payload, time.Now())))
	assert.Empty(t, subs.ByUser)
}

func TestProcessRejectsBadSignature(t *testing.T) {
	p := NewProcessor(secret, testutil.NewSubscriptions(), logger.Discard())
	payload := subscriptionEvent("customer.subscription.updated", "active", 0, "user-1")

	err := p.Process(context.Background(), payload, "t=1,v1=deadbeef")
	assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))

	err = p.Process(context.Background(), payload, "")
	assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))
}

func TestProcessUnconfigured(t *testing.T) {
	p := NewProcessor("", testutil.NewSubscriptions(), logger.Discard())
	err := p.Process(context.Background(), []byte(`{}`), "t=1,v1=00")
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
}

func TestProcessUnknownEventAcknowledged(t *testing.T) {
	subs := testutil.NewSubscriptions()
	p := NewProcessor(secret, subs, logger.Discard())
	payload := []byte(fmt.Sprintf(`{"id":"evt_2","object":"event","api_version":%q,"type":"invoice.paid","data":{"object":{}}}`, stripe.APIVersion))

	require.NoError(t, p.Process(context.Background(), payload, sign(payload, time.Now())))
	assert.Empty(t, subs.ByUser)
}
