package domain

import (
	"strings"
	"time"
)

// Feature tags a billable AI capability.
type Feature string

const (
	FeatureChat   Feature = "chat"
	FeatureVision Feature = "vision"
)

// PlanID identifies a subscription plan.
type PlanID string

const (
	PlanFree PlanID = "free"
	PlanPro  PlanID = "pro"
)

// SubscriptionStatusActive is the only status that grants a paid plan.
const SubscriptionStatusActive = "active"

// Lang is a supported response language.
type Lang string

const (
	LangTR Lang = "tr"
	LangEN Lang = "en"
)

// ParseLang normalizes a client supplied language, defaulting to Turkish.
func ParseLang(s string) Lang {
	if strings.EqualFold(strings.TrimSpace(s), string(LangEN)) {
		return LangEN
	}
	return LangTR
}

// Quotas are the per-day limits and feature flags of a plan.
type Quotas struct {
	ChatPerDay   int  `json:"chatPerDay"`
	VisionPerDay int  `json:"visionPerDay"`
	AIMemory     bool `json:"aiMemory"`
	WeeklyReport bool `json:"weeklyReport"`
	ExportData   bool `json:"exportData"`
}

// Limit returns the daily cap for f.
func (q Quotas) Limit(f Feature) int {
	switch f {
	case FeatureChat:
		return q.ChatPerDay
	case FeatureVision:
		return q.VisionPerDay
	default:
		return 0
	}
}

// Usage holds today's consumption of the gated features.
type Usage struct {
	DailyChatCount   int    `json:"dailyChatCount"`
	DailyVisionCount int    `json:"dailyVisionCount"`
	LastResetDate    string `json:"lastResetDate"`
}

// Count returns today's usage of f.
func (u Usage) Count(f Feature) int {
	switch f {
	case FeatureChat:
		return u.DailyChatCount
	case FeatureVision:
		return u.DailyVisionCount
	default:
		return 0
	}
}

// Increment bumps the counter of f by one.
func (u *Usage) Increment(f Feature) {
	switch f {
	case FeatureChat:
		u.DailyChatCount++
	case FeatureVision:
		u.DailyVisionCount++
	}
}

// Entitlement is the resolved plan, limits and current usage of one identity.
type Entitlement struct {
	IsPro  bool   `json:"isPro"`
	Plan   PlanID `json:"plan"`
	Quotas Quotas `json:"quotas"`
	Usage  Usage  `json:"usage"`
}

// Remaining returns how many calls of f are left today, never negative.
func (e Entitlement) Remaining(f Feature) int {
	left := e.Quotas.Limit(f) - e.Usage.Count(f)
	if left < 0 {
		return 0
	}
	return left
}

// UsageEvent is one row of the append-only usage ledger.
type UsageEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"not null;index:idx_usage_events_user_feature_time,priority:1" json:"user_id"`
	Feature   Feature   `gorm:"not null;size:32;index:idx_usage_events_user_feature_time,priority:2" json:"feature"`
	ClientIP  string    `gorm:"size:64" json:"client_ip"`
	CreatedAt time.Time `gorm:"not null;index:idx_usage_events_user_feature_time,priority:3" json:"created_at"`
}

func (UsageEvent) TableName() string { return "usage_events" }

// Subscription is the billing state of a user, written by the billing integration.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               string     `gorm:"uniqueIndex;not null" json:"user_id"`
	Plan                 PlanID     `gorm:"size:32;not null;default:'free'" json:"plan"`
	Status               string     `gorm:"size:32;not null;default:'inactive'" json:"status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	StripeCustomerID     string     `gorm:"size:255" json:"stripe_customer_id"`
	StripeSubscriptionID string     `gorm:"size:255;index" json:"stripe_subscription_id"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

// IsActive reports whether the subscription grants its plan at now: the status
// must be active and the period either open-ended or not yet over.
func (s *Subscription) IsActive(now time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusActive {
		return false
	}
	return s.CurrentPeriodEnd == nil || s.CurrentPeriodEnd.After(now)
}
