package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	"github.com/vladimiradmaev/diabetes-companion/internal/logger"
	"github.com/vladimiradmaev/diabetes-companion/internal/store/persist"
)

var baseTime = time.Date(2026, 7, 15, 14, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newTestStore(t *testing.T) (*Store, *persist.Memory, *clock) {
	t.Helper()
	repo := persist.NewMemory()
	clk := &clock{t: baseTime}
	s := New(repo, logger.Discard(), WithClock(clk.Now), WithLocation(time.UTC))
	t.Cleanup(s.Flush)
	return s, repo, clk
}

func reading(offset time.Duration, value float64) GlucoseReading {
	return GlucoseReading{Timestamp: baseTime.Add(offset), Value: value}
}

func persisted(t *testing.T, s *Store, repo *persist.Memory) State {
	t.Helper()
	s.Flush()
	data, err := repo.Load(context.Background())
	require.NoError(t, err)
	var st State
	require.NoError(t, json.Unmarshal(data, &st))
	return st
}

func TestAddGlucoseReadingDedupWindow(t *testing.T) {
	s, _, _ := newTestStore(t)

	assert.True(t, s.AddGlucoseReading(reading(0, 120)))
	assert.False(t, s.AddGlucoseReading(reading(4*time.Minute+59*time.Second, 125)))
	assert.False(t, s.AddGlucoseReading(reading(-299999*time.Millisecond, 118)))
	assert.True(t, s.AddGlucoseReading(reading(5*time.Minute, 130)))
	assert.True(t, s.AddGlucoseReading(reading(-5*time.Minute, 110)))

	got := s.Readings()
	require.Len(t, got, 3)
	assert.Equal(t, 110.0, got[0].Value, "latest insert first")
}

func TestAddGlucoseReadingCap(t *testing.T) {
	s, repo, _ := newTestStore(t)
	for i := 0; i < MaxReadings+20; i++ {
		s.AddGlucoseReading(reading(time.Duration(i)*DedupWindow, 100))
	}
	got := s.Readings()
	require.Len(t, got, MaxReadings)
	assert.Equal(t, baseTime.Add(time.Duration(MaxReadings+19)*DedupWindow), got[0].Timestamp)

	assert.Len(t, persisted(t, s, repo).Readings, MaxPersistedReadings)
}

func TestSyncHealthData(t *testing.T) {
	s, _, clk := newTestStore(t)
	s.AddGlucoseReading(reading(-time.Hour, 100))

	batch := []GlucoseReading{reading(-time.Hour, 999), reading(-2*time.Hour, 90), reading(-time.Minute, 140), reading(-time.Minute, 141)}
	clk.Set(baseTime.Add(time.Second))
	assert.Equal(t, 2, s.SyncHealthData(batch))

	got := s.Readings()
	require.Len(t, got, 3)
	assert.Equal(t, 140.0, got[0].Value)
	assert.Equal(t, 100.0, got[1].Value, "existing timestamp wins")
	assert.Equal(t, 90.0, got[2].Value)

	snap := s.Snapshot()
	require.NotNil(t, snap.LastHealthSync)
	assert.Equal(t, baseTime.Add(time.Second), *snap.LastHealthSync)

	assert.Zero(t, s.SyncHealthData(batch))
	assert.Equal(t, got, s.Readings())
}

func TestSyncAllowsReadingsInsideDedupWindow(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.SyncHealthData([]GlucoseReading{reading(0, 100), reading(time.Minute, 101)})
	assert.Len(t, s.Readings(), 2)
}

func TestAddMealLog(t *testing.T) {
	s, repo, _ := newTestStore(t)
	m := s.AddMealLog(MealLog{Name: "menemen", CarbsG: 12})
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, baseTime, m.Timestamp)

	for i := 0; i < MaxMeals+5; i++ {
		s.AddMealLog(MealLog{Name: "snack"})
	}
	assert.Len(t, s.Meals(), MaxMeals)
	assert.Len(t, persisted(t, s, repo).Meals, MaxPersistedMeals)
}

func TestFavorites(t *testing.T) {
	s, _, _ := newTestStore(t)
	a := s.AddFavoriteMeal(FavoriteMeal{Name: "oatmeal", CarbsG: 40})
	b := s.AddFavoriteMeal(FavoriteMeal{Name: "lentil soup", CarbsG: 25})

	assert.True(t, s.UseFavoriteMeal(a.ID))
	assert.True(t, s.UseFavoriteMeal(a.ID))
	assert.False(t, s.UseFavoriteMeal("missing"))

	favs := s.Favorites()
	assert.Equal(t, 2, favs[0].UsageCount)
	assert.Equal(t, 0, favs[1].UsageCount)

	assert.True(t, s.RemoveFavoriteMeal(b.ID))
	assert.False(t, s.RemoveFavoriteMeal(b.ID))
	assert.Len(t, s.Favorites(), 1)
}

func TestFavoritesCapDropsOldest(t *testing.T) {
	s, _, _ := newTestStore(t)
	first := s.AddFavoriteMeal(FavoriteMeal{Name: "first"})
	for i := 0; i < MaxFavorites; i++ {
		s.AddFavoriteMeal(FavoriteMeal{Name: "more"})
	}
	favs := s.Favorites()
	require.Len(t, favs, MaxFavorites)
	for _, f := range favs {
		assert.NotEqual(t, first.ID, f.ID)
	}
}

func TestUpdateAIMemoryShallowMerge(t *testing.T) {
	s, _, _ := newTestStore(t)
	summary := "Runs in the mornings."
	s.UpdateAIMemory(AIMemoryUpdate{ProfileFacts: map[string]string{"a": "1", "b": "2"}, MemorySummary: &summary})
	s.UpdateAIMemory(AIMemoryUpdate{ProfileFacts: map[string]string{"c": "3"}})

	mem := s.Snapshot().AIMemory
	assert.Equal(t, map[string]string{"c": "3"}, mem.ProfileFacts)
	assert.Equal(t, summary, mem.MemorySummary)

	s.SetProfileFact("d", "4")
	assert.Equal(t, map[string]string{"c": "3", "d": "4"}, s.Snapshot().AIMemory.ProfileFacts)

	s.ClearAIMemory()
	mem = s.Snapshot().AIMemory
	assert.Empty(t, mem.ProfileFacts)
	assert.Empty(t, mem.MemorySummary)
	assert.NotNil(t, mem.ConversationHistory)
}

func TestGetRecentContext(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.SetProfile(Profile{CarbRatio: 10, CorrectionFactor: 40, TargetLow: 80, TargetHigh: 160, ActiveInsulinMinutes: 240, InsulinType: "aspart", PersonalizationEnabled: true})
	s.SetProfileFact("targetRange", "stale")
	s.SetProfileFact("diet", "vegetarian")

	s.SyncHealthData([]GlucoseReading{
		reading(-RecentWindow, 60),
		reading(-time.Hour, 100),
		reading(-2*time.Hour, 150),
		reading(-3*time.Hour, 300),
		reading(-RecentWindow-time.Second, 400),
	})
	s.AddMealLog(MealLog{Timestamp: baseTime.Add(-time.Hour)})
	s.AddMealLog(MealLog{Timestamp: baseTime.Add(-8 * 24 * time.Hour)})

	rc := s.GetRecentContext()
	require.NotNil(t, rc.Stats)
	assert.Equal(t, domain.RecentStats{
		Days: 7, AvgGlucose: 153, TimeInRange: 50, TargetLow: 80, TargetHigh: 160,
		HypoCount: 1, HyperCount: 1, ReadingCount: 4, MealsLogged: 1,
	}, *rc.Stats)
	assert.Equal(t, "1:10", rc.ProfileFacts["carbRatio"])
	assert.Equal(t, "40 mg/dL", rc.ProfileFacts["correctionFactor"])
	assert.Equal(t, "80-160 mg/dL", rc.ProfileFacts["targetRange"])
	assert.Equal(t, "240 min", rc.ProfileFacts["activeInsulinDuration"])
	assert.Equal(t, "aspart", rc.ProfileFacts["insulinType"])
	assert.Equal(t, "vegetarian", rc.ProfileFacts["diet"])
}

func TestGetRecentContextEmpty(t *testing.T) {
	s, _, _ := newTestStore(t)
	rc := s.GetRecentContext()
	data, err := json.Marshal(rc)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	s.AddGlucoseReading(reading(-time.Hour, 120))
	s.SetProfile(Profile{PersonalizationEnabled: false})
	assert.True(t, s.GetRecentContext().IsEmpty())
}

func TestGetWeekStats(t *testing.T) {
	s, _, _ := newTestStore(t)
	data, err := json.Marshal(s.GetWeekStats())
	require.NoError(t, err)
	assert.JSONEq(t, `{"avgBG":null,"timeInRange":null,"readings":0,"hypoCount":0,"hyperCount":0}`, string(data))

	s.SyncHealthData([]GlucoseReading{reading(-time.Hour, 65), reading(-2*time.Hour, 175), reading(-3*time.Hour, 260)})
	ws := s.GetWeekStats()
	require.NotNil(t, ws.AvgBG)
	assert.Equal(t, 167, *ws.AvgBG)
	assert.Equal(t, 33, *ws.TimeInRange)
	assert.Equal(t, 3, ws.Readings)
	assert.Equal(t, 1, ws.HypoCount)
	assert.Equal(t, 1, ws.HyperCount)
}

func TestGetTodayGlucose(t *testing.T) {
	repo := persist.NewMemory()
	istanbul := time.FixedZone("TRT", 3*60*60)
	// 14:00 UTC is 17:00 local; local midnight is 21:00 UTC the previous day.
	s := New(repo, logger.Discard(), WithClock(func() time.Time { return baseTime }), WithLocation(istanbul))
	defer s.Flush()

	s.SyncHealthData([]GlucoseReading{
		reading(-17*time.Hour, 100),
		reading(-17*time.Hour-time.Second, 110),
		reading(-time.Hour, 120),
	})
	today := s.GetTodayGlucose()
	require.Len(t, today, 2)
	assert.Equal(t, 120.0, today[0].Value)
	assert.Equal(t, 100.0, today[1].Value)
}

func TestInitializeDayRollover(t *testing.T) {
	s, _, clk := newTestStore(t)
	s.SetEntitlement(domain.Entitlement{
		Plan:  domain.PlanFree,
		Usage: domain.Usage{DailyChatCount: 4, DailyVisionCount: 2, LastResetDate: "2026-07-14"},
	})

	s.Initialize()
	usage := s.Entitlement().Usage
	assert.Equal(t, domain.Usage{LastResetDate: "2026-07-15"}, usage)

	s.RecordUsage(domain.FeatureChat)
	s.Initialize()
	assert.Equal(t, 1, s.Entitlement().Usage.DailyChatCount)

	clk.Set(baseTime.Add(10 * time.Hour))
	s.Initialize()
	assert.Equal(t, domain.Usage{LastResetDate: "2026-07-16"}, s.Entitlement().Usage)
}

func TestCanUseAndRecordUsage(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.Initialize()
	for i := 0; i < 2; i++ {
		require.True(t, s.CanUse(domain.FeatureVision))
		s.RecordUsage(domain.FeatureVision)
	}
	assert.False(t, s.CanUse(domain.FeatureVision))
	assert.True(t, s.CanUse(domain.FeatureChat))

	s.SetEntitlement(domain.Entitlement{IsPro: true, Plan: domain.PlanPro, Usage: domain.Usage{DailyVisionCount: 5000}})
	assert.True(t, s.CanUse(domain.FeatureVision))
}

func TestLogoutKeepsLanguage(t *testing.T) {
	s, repo, _ := newTestStore(t)
	s.SetSettings(Settings{Language: domain.LangEN})
	s.AddGlucoseReading(reading(0, 100))
	s.AddFavoriteMeal(FavoriteMeal{Name: "x"})
	s.SetProfileFact("k", "v")
	s.SetEntitlement(domain.Entitlement{IsPro: true, Plan: domain.PlanPro})

	s.Logout()
	snap := s.Snapshot()
	assert.Empty(t, snap.Readings)
	assert.Empty(t, snap.Favorites)
	assert.Empty(t, snap.AIMemory.ProfileFacts)
	assert.False(t, snap.Entitlement.IsPro)
	assert.Equal(t, domain.LangEN, snap.Settings.Language)

	assert.Equal(t, domain.LangEN, persisted(t, s, repo).Settings.Language)
}

func TestHydrate(t *testing.T) {
	repo := persist.NewMemory()
	src := New(repo, logger.Discard(), WithClock(func() time.Time { return baseTime }))
	src.AddGlucoseReading(reading(0, 101))
	src.AddMealLog(MealLog{Name: "pide"})
	src.SetSettings(Settings{Language: domain.LangEN})
	src.Flush()

	dst := New(repo, logger.Discard(), WithClock(func() time.Time { return baseTime }))
	dst.Hydrate(context.Background())
	dst.Flush()

	assert.Equal(t, src.Readings(), dst.Readings())
	assert.Equal(t, "pide", dst.Meals()[0].Name)
	assert.Equal(t, domain.LangEN, dst.Settings().Language)
	assert.Equal(t, "2026-07-15", dst.Entitlement().Usage.LastResetDate)
}

func TestHydrateFailsSoft(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"missing", nil},
		{"corrupt", []byte("{not json")},
		{"wrong shape", []byte(`{"readings": "lots"}`)},
		{"nulls", []byte(`{"readings": null, "aiMemory": {"profileFacts": null}, "settings": {"language": "xx"}}`)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := persist.NewMemory()
			if tc.data != nil {
				repo.Put(tc.data)
			}
			s := New(repo, logger.Discard(), WithClock(func() time.Time { return baseTime }))
			s.Hydrate(context.Background())
			s.Flush()

			snap := s.Snapshot()
			assert.NotNil(t, snap.Readings)
			assert.NotNil(t, snap.AIMemory.ProfileFacts)
			assert.Equal(t, domain.LangTR, snap.Settings.Language)
			assert.Equal(t, domain.PlanFree, snap.Entitlement.Plan)
		})
	}
}

func TestSaveFailureIsNotFatal(t *testing.T) {
	s, repo, _ := newTestStore(t)
	repo.FailSaves(errors.New("disk full"))
	assert.True(t, s.AddGlucoseReading(reading(0, 100)))
	s.Flush()

	repo.FailSaves(nil)
	s.AddGlucoseReading(reading(time.Hour, 110))
	assert.Len(t, persisted(t, s, repo).Readings, 2)
}

func TestLatestSaveWins(t *testing.T) {
	s, repo, _ := newTestStore(t)
	for i := 0; i < 50; i++ {
		s.AddMealLog(MealLog{Name: "m"})
	}
	assert.Len(t, persisted(t, s, repo).Meals, 50)
	assert.LessOrEqual(t, repo.Saves(), 50)
}
