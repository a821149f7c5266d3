// Package gate runs AI operations behind the per-user daily quota.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	apperrors "github.com/vladimiradmaev/diabetes-companion/internal/errors"
	"github.com/vladimiradmaev/diabetes-companion/internal/utils"
)

// PlanSource resolves the effective plan of a verified user.
type PlanSource interface {
	PlanFor(ctx context.Context, userID string) domain.PlanID
}

// Request describes one gated call.
type Request struct {
	UserID   string
	Feature  domain.Feature
	Limit    int
	ClientIP string
	Lang     domain.Lang
}

// Gate enforces the daily limit of a feature and records successful calls in the ledger.
type Gate struct {
	plans  PlanSource
	ledger domain.UsageLedger
	log    *slog.Logger
	now    func() time.Time
}

func New(plans PlanSource, ledger domain.UsageLedger, log *slog.Logger) *Gate {
	return &Gate{plans: plans, ledger: ledger, log: log, now: time.Now}
}

// WithClock returns a copy of g using now as its time source.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	c := *g
	c.now = now
	return &c
}

// Run checks the quota, runs op and appends a usage row when op succeeds.
// Pro users skip the check but are still recorded. Ledger insert failures
// are logged and never fail the call.
func (g *Gate) Run(ctx context.Context, req Request, op func(ctx context.Context) error) error {
	if g.plans.PlanFor(ctx, req.UserID) != domain.PlanPro {
		since := utils.StartOfUTCDay(g.now())
		used, err := g.ledger.CountSince(ctx, req.UserID, req.Feature, since)
		if err != nil {
			return apperrors.NewServerError(fmt.Errorf("count %s usage: %w", req.Feature, err))
		}
		if used >= int64(req.Limit) {
			return apperrors.NewQuotaExceeded(quotaMessage(req.Lang, req.Feature, req.Limit)).
				WithContext("user_id", req.UserID).
				WithContext("feature", string(req.Feature)).
				WithContext("used", used)
		}
	}

	if err := op(ctx); err != nil {
		return err
	}

	event := &domain.UsageEvent{
		UserID:    req.UserID,
		Feature:   req.Feature,
		ClientIP:  req.ClientIP,
		CreatedAt: g.now().UTC(),
	}
	if err := g.ledger.Append(ctx, event); err != nil {
		g.log.Error("Failed to record usage",
			"user_id", req.UserID,
			"feature", req.Feature,
			"error", err)
	}
	return nil
}

func quotaMessage(lang domain.Lang, feature domain.Feature, limit int) string {
	if lang == domain.LangEN {
		name := "AI chat"
		if feature == domain.FeatureVision {
			name = "meal photo analysis"
		}
		return fmt.Sprintf("You have used all %d of today's free %s requests (0 remaining). Upgrade to Pro for unlimited access.", limit, name)
	}
	name := "AI sohbet"
	if feature == domain.FeatureVision {
		name = "yemek fotoğrafı analizi"
	}
	return fmt.Sprintf("Bugünkü %d ücretsiz %s hakkınızın tamamını kullandınız (kalan 0). Sınırsız erişim için Pro'ya geçin.", limit, name)
}
