package entitlement

import "github.com/vladimiradmaev/diabetes-companion/internal/domain"

// UnlimitedPerDay is the sentinel daily cap of paid plans.
const UnlimitedPerDay = 999

var plans = map[domain.PlanID]domain.Quotas{
	domain.PlanFree: {
		ChatPerDay:   5,
		VisionPerDay: 2,
	},
	domain.PlanPro: {
		ChatPerDay:   UnlimitedPerDay,
		VisionPerDay: UnlimitedPerDay,
		AIMemory:     true,
		WeeklyReport: true,
		ExportData:   true,
	},
}

// QuotasFor returns the quota table entry of plan. Unknown plans get the free tier.
func QuotasFor(plan domain.PlanID) domain.Quotas {
	if q, ok := plans[plan]; ok {
		return q
	}
	return plans[domain.PlanFree]
}

// Free returns the entitlement of an anonymous caller with no usage.
func Free(today string) domain.Entitlement {
	return domain.Entitlement{
		Plan:   domain.PlanFree,
		Quotas: QuotasFor(domain.PlanFree),
		Usage:  domain.Usage{LastResetDate: today},
	}
}
