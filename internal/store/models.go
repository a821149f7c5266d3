package store

import (
	"time"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	"github.com/vladimiradmaev/diabetes-companion/internal/entitlement"
)

const (
	MaxReadings          = 1000
	MaxPersistedReadings = 500
	MaxMeals             = 500
	MaxPersistedMeals    = 200
	MaxFavorites         = 50

	// DedupWindow is the minimum spacing between manually added readings.
	DedupWindow = 5 * time.Minute
	// RecentWindow is the trailing window of the computed stats.
	RecentWindow = 7 * 24 * time.Hour

	DefaultTargetLow  = 70
	DefaultTargetHigh = 180
	HypoThreshold     = 70
	HyperThreshold    = 250
)

// GlucoseReading is one sample in mg/dL.
type GlucoseReading struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Source    string    `json:"source,omitempty"`
}

type MealLog struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Name         string    `json:"name"`
	CarbsG       float64   `json:"carbs_g"`
	ProteinG     float64   `json:"protein_g"`
	FatG         float64   `json:"fat_g"`
	FiberG       float64   `json:"fiber_g"`
	Calories     float64   `json:"calories"`
	InsulinUnits float64   `json:"insulin_units,omitempty"`
}

// FavoriteMeal is a reusable meal template.
type FavoriteMeal struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CarbsG     float64   `json:"carbs_g"`
	ProteinG   float64   `json:"protein_g"`
	FatG       float64   `json:"fat_g"`
	FiberG     float64   `json:"fiber_g"`
	Calories   float64   `json:"calories"`
	UsageCount int       `json:"usageCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AIMemory is the personalization context kept for the assistant.
type AIMemory struct {
	ProfileFacts        map[string]string  `json:"profileFacts"`
	MemorySummary       string             `json:"memorySummary"`
	ConversationHistory []ConversationTurn `json:"conversationHistory"`
}

// AIMemoryUpdate is a shallow patch. Nil fields are left untouched; a non-nil
// ProfileFacts replaces the whole map.
type AIMemoryUpdate struct {
	ProfileFacts        map[string]string
	MemorySummary       *string
	ConversationHistory []ConversationTurn
}

// Profile holds the insulin therapy settings of the user. Zero numeric values mean unset.
type Profile struct {
	TargetLow              int     `json:"targetLow"`
	TargetHigh             int     `json:"targetHigh"`
	CarbRatio              float64 `json:"carbRatio"`
	CorrectionFactor       float64 `json:"correctionFactor"`
	ActiveInsulinMinutes   int     `json:"activeInsulinMinutes"`
	InsulinType            string  `json:"insulinType"`
	PersonalizationEnabled bool    `json:"personalizationEnabled"`
}

// TargetRange returns the configured range or the default [70,180].
func (p Profile) TargetRange() (low, high int) {
	low, high = p.TargetLow, p.TargetHigh
	if low <= 0 || high <= 0 || low >= high {
		return DefaultTargetLow, DefaultTargetHigh
	}
	return low, high
}

// Settings are device-wide preferences that survive logout.
type Settings struct {
	Language domain.Lang `json:"language"`
}

// WeekStats summarizes the trailing week. AvgBG and TimeInRange are null when
// there are no readings.
type WeekStats struct {
	AvgBG       *int `json:"avgBG"`
	TimeInRange *int `json:"timeInRange"`
	Readings    int  `json:"readings"`
	HypoCount   int  `json:"hypoCount"`
	HyperCount  int  `json:"hyperCount"`
}

// State is the full client state. Readings and meals are ordered newest first;
// favorites oldest first.
type State struct {
	Readings       []GlucoseReading   `json:"readings"`
	Meals          []MealLog          `json:"meals"`
	Favorites      []FavoriteMeal     `json:"favorites"`
	AIMemory       AIMemory           `json:"aiMemory"`
	Profile        Profile            `json:"profile"`
	Settings       Settings           `json:"settings"`
	Entitlement    domain.Entitlement `json:"entitlement"`
	LastHealthSync *time.Time         `json:"lastHealthSync,omitempty"`
}

func defaultAIMemory() AIMemory {
	return AIMemory{
		ProfileFacts:        map[string]string{},
		ConversationHistory: []ConversationTurn{},
	}
}

func defaultUserState(lang domain.Lang) State {
	return State{
		Readings:    []GlucoseReading{},
		Meals:       []MealLog{},
		Favorites:   []FavoriteMeal{},
		AIMemory:    defaultAIMemory(),
		Profile:     Profile{PersonalizationEnabled: true},
		Settings:    Settings{Language: lang},
		Entitlement: entitlement.Free(""),
	}
}

// projection is the persisted subset with the tighter device limits.
func (s State) projection() State {
	p := s
	if len(p.Readings) > MaxPersistedReadings {
		p.Readings = p.Readings[:MaxPersistedReadings]
	}
	if len(p.Meals) > MaxPersistedMeals {
		p.Meals = p.Meals[:MaxPersistedMeals]
	}
	return p
}

// clone deep-copies the slices and maps of s.
func (s State) clone() State {
	c := s
	c.Readings = append([]GlucoseReading{}, s.Readings...)
	c.Meals = append([]MealLog{}, s.Meals...)
	c.Favorites = append([]FavoriteMeal{}, s.Favorites...)
	c.AIMemory.ProfileFacts = make(map[string]string, len(s.AIMemory.ProfileFacts))
	for k, v := range s.AIMemory.ProfileFacts {
		c.AIMemory.ProfileFacts[k] = v
	}
	c.AIMemory.ConversationHistory = append([]ConversationTurn{}, s.AIMemory.ConversationHistory...)
	if s.LastHealthSync != nil {
		t := *s.LastHealthSync
		c.LastHealthSync = &t
	}
	return c
}

// normalize repairs a decoded state: nil collections, over-limit slices and
// a missing language.
func (s *State) normalize() {
	if s.Readings == nil {
		s.Readings = []GlucoseReading{}
	}
	if len(s.Readings) > MaxReadings {
		s.Readings = s.Readings[:MaxReadings]
	}
	if s.Meals == nil {
		s.Meals = []MealLog{}
	}
	if len(s.Meals) > MaxMeals {
		s.Meals = s.Meals[:MaxMeals]
	}
	if s.Favorites == nil {
		s.Favorites = []FavoriteMeal{}
	}
	if len(s.Favorites) > MaxFavorites {
		s.Favorites = s.Favorites[len(s.Favorites)-MaxFavorites:]
	}
	if s.AIMemory.ProfileFacts == nil {
		s.AIMemory.ProfileFacts = map[string]string{}
	}
	if s.AIMemory.ConversationHistory == nil {
		s.AIMemory.ConversationHistory = []ConversationTurn{}
	}
	s.Settings.Language = domain.ParseLang(string(s.Settings.Language))
	if s.Entitlement.Plan == "" {
		s.Entitlement = entitlement.Free(s.Entitlement.Usage.LastResetDate)
	}
}
