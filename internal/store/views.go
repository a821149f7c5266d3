package store

import (
	"math"
	"strconv"
	"strings"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	"github.com/vladimiradmaev/diabetes-companion/internal/utils"
)

type windowStats struct {
	count       int
	avg         int
	timeInRange int
	hypo        int
	hyper       int
}

func computeWindow(readings []GlucoseReading, low, high int) windowStats {
	var ws windowStats
	var sum float64
	inRange := 0
	for _, r := range readings {
		ws.count++
		sum += r.Value
		if r.Value >= float64(low) && r.Value <= float64(high) {
			inRange++
		}
		if r.Value < HypoThreshold {
			ws.hypo++
		}
		if r.Value > HyperThreshold {
			ws.hyper++
		}
	}
	if ws.count > 0 {
		ws.avg = int(math.Round(sum / float64(ws.count)))
		ws.timeInRange = int(math.Round(float64(inRange) * 100 / float64(ws.count)))
	}
	return ws
}

// recentReadings returns readings at or after now minus the recent window. Caller holds s.mu.
func (s *Store) recentReadings() []GlucoseReading {
	cutoff := s.now().Add(-RecentWindow)
	var out []GlucoseReading
	for _, r := range s.state.Readings {
		if !r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// GetRecentContext builds the personalization payload for chat requests. It is
// empty when personalization is off or no reading falls in the last seven days.
func (s *Store) GetRecentContext() domain.RecentContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Profile.PersonalizationEnabled {
		return domain.RecentContext{}
	}
	recent := s.recentReadings()
	if len(recent) == 0 {
		return domain.RecentContext{}
	}

	low, high := s.state.Profile.TargetRange()
	ws := computeWindow(recent, low, high)

	cutoff := s.now().Add(-RecentWindow)
	meals := 0
	for _, m := range s.state.Meals {
		if !m.Timestamp.Before(cutoff) {
			meals++
		}
	}

	facts := make(map[string]string, len(s.state.AIMemory.ProfileFacts)+5)
	for k, v := range s.state.AIMemory.ProfileFacts {
		facts[k] = v
	}
	for k, v := range profileFacts(s.state.Profile) {
		facts[k] = v
	}

	return domain.RecentContext{
		Stats: &domain.RecentStats{
			Days:         int(RecentWindow.Hours() / 24),
			AvgGlucose:   ws.avg,
			TimeInRange:  ws.timeInRange,
			TargetLow:    low,
			TargetHigh:   high,
			HypoCount:    ws.hypo,
			HyperCount:   ws.hyper,
			ReadingCount: ws.count,
			MealsLogged:  meals,
		},
		ProfileFacts:  facts,
		MemorySummary: s.state.AIMemory.MemorySummary,
	}
}

func profileFacts(p Profile) map[string]string {
	facts := make(map[string]string, 5)
	if p.CarbRatio > 0 {
		facts["carbRatio"] = "1:" + formatFloat(p.CarbRatio)
	}
	if p.CorrectionFactor > 0 {
		facts["correctionFactor"] = formatFloat(p.CorrectionFactor) + " mg/dL"
	}
	low, high := p.TargetRange()
	facts["targetRange"] = strconv.Itoa(low) + "-" + strconv.Itoa(high) + " mg/dL"
	if p.ActiveInsulinMinutes > 0 {
		facts["activeInsulinDuration"] = strconv.Itoa(p.ActiveInsulinMinutes) + " min"
	}
	if t := strings.TrimSpace(p.InsulinType); t != "" {
		facts["insulinType"] = t
	}
	return facts
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// GetTodayGlucose returns readings taken since local midnight, newest first.
func (s *Store) GetTodayGlucose() []GlucoseReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	midnight := utils.StartOfDay(s.now(), s.loc)
	out := []GlucoseReading{}
	for _, r := range s.state.Readings {
		if !r.Timestamp.Before(midnight) {
			out = append(out, r)
		}
	}
	return out
}

// GetWeekStats summarizes the last seven days. Averages are nil when empty.
func (s *Store) GetWeekStats() WeekStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	low, high := s.state.Profile.TargetRange()
	ws := computeWindow(s.recentReadings(), low, high)
	stats := WeekStats{Readings: ws.count, HypoCount: ws.hypo, HyperCount: ws.hyper}
	if ws.count > 0 {
		avg, tir := ws.avg, ws.timeInRange
		stats.AvgBG = &avg
		stats.TimeInRange = &tir
	}
	return stats
}

func (s *Store) Readings() []GlucoseReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GlucoseReading{}, s.state.Readings...)
}

func (s *Store) Meals() []MealLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MealLog{}, s.state.Meals...)
}

func (s *Store) Favorites() []FavoriteMeal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FavoriteMeal{}, s.state.Favorites...)
}

func (s *Store) Entitlement() domain.Entitlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Entitlement
}

func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Settings
}
