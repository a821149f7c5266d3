// Package store is the client-side health data store. One Store is created
// by the application and shared by everything that reads or mutates state.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	"github.com/vladimiradmaev/diabetes-companion/internal/store/persist"
	"github.com/vladimiradmaev/diabetes-companion/internal/utils"
)

const saveTimeout = 5 * time.Second

type Store struct {
	mu    sync.Mutex
	state State
	now   func() time.Time
	loc   *time.Location

	repo persist.Repository
	log  *slog.Logger

	version      uint64
	saveMu       sync.Mutex
	savedVersion uint64
	saves        sync.WaitGroup
}

type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the zone used for "today" views. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

func New(repo persist.Repository, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		state: defaultUserState(domain.LangTR),
		now:   time.Now,
		loc:   time.Local,
		repo:  repo,
		log:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate replaces the state with the persisted copy. Missing or unreadable
// data leaves the defaults in place; it is logged and never returned as an error.
func (s *Store) Hydrate(ctx context.Context) {
	data, err := s.repo.Load(ctx)
	switch {
	case errors.Is(err, persist.ErrNotFound):
		s.log.Debug("No persisted state, starting fresh")
	case err != nil:
		s.log.Warn("Failed to load persisted state, using defaults", "error", err)
	default:
		loaded := defaultUserState(domain.LangTR)
		if err := json.Unmarshal(data, &loaded); err != nil {
			s.log.Warn("Persisted state is corrupt, using defaults", "error", err)
			break
		}
		loaded.normalize()
		s.mu.Lock()
		s.state = loaded
		s.mu.Unlock()
	}
	s.Initialize()
}

// Initialize resets the daily usage counters when the stored reset date is
// not today (UTC). Calling it again on the same day does nothing.
func (s *Store) Initialize() {
	today := utils.UTCDate(s.now())
	s.mutateIf(func(st *State) bool {
		if st.Entitlement.Usage.LastResetDate == today {
			return false
		}
		st.Entitlement.Usage = domain.Usage{LastResetDate: today}
		return true
	})
}

// AddGlucoseReading stores r unless an existing reading lies within five
// minutes of it. It reports whether r was added.
func (s *Store) AddGlucoseReading(r GlucoseReading) bool {
	added := false
	s.mutateIf(func(st *State) bool {
		for _, existing := range st.Readings {
			if absDuration(existing.Timestamp.Sub(r.Timestamp)) < DedupWindow {
				return false
			}
		}
		st.Readings = prepend(st.Readings, r, MaxReadings)
		added = true
		return true
	})
	return added
}

// SyncHealthData merges an external batch. Readings whose exact timestamp is
// already stored are skipped; the result is sorted newest first. It returns
// how many readings were added.
func (s *Store) SyncHealthData(readings []GlucoseReading) int {
	now := s.now()
	added := 0
	s.mutate(func(st *State) {
		seen := make(map[int64]struct{}, len(st.Readings)+len(readings))
		for _, r := range st.Readings {
			seen[r.Timestamp.UnixNano()] = struct{}{}
		}
		merged := append([]GlucoseReading{}, st.Readings...)
		for _, r := range readings {
			key := r.Timestamp.UnixNano()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, r)
			added++
		}
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Timestamp.After(merged[j].Timestamp)
		})
		if len(merged) > MaxReadings {
			merged = merged[:MaxReadings]
		}
		st.Readings = merged
		st.LastHealthSync = &now
	})
	return added
}

// AddMealLog stores m as the most recent meal, assigning an id and timestamp when missing.
func (s *Store) AddMealLog(m MealLog) MealLog {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	s.mutate(func(st *State) {
		st.Meals = prepend(st.Meals, m, MaxMeals)
	})
	return m
}

// AddFavoriteMeal appends f, dropping the oldest favorites beyond the cap.
func (s *Store) AddFavoriteMeal(f FavoriteMeal) FavoriteMeal {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	s.mutate(func(st *State) {
		st.Favorites = append(st.Favorites, f)
		if len(st.Favorites) > MaxFavorites {
			st.Favorites = append([]FavoriteMeal{}, st.Favorites[len(st.Favorites)-MaxFavorites:]...)
		}
	})
	return f
}

// RemoveFavoriteMeal deletes the favorite with id and reports whether it existed.
func (s *Store) RemoveFavoriteMeal(id string) bool {
	removed := false
	s.mutateIf(func(st *State) bool {
		kept := st.Favorites[:0:0]
		for _, f := range st.Favorites {
			if f.ID == id {
				removed = true
				continue
			}
			kept = append(kept, f)
		}
		st.Favorites = kept
		return removed
	})
	return removed
}

// UseFavoriteMeal increments the usage count of the favorite with id. Unknown ids are a no-op.
func (s *Store) UseFavoriteMeal(id string) bool {
	found := false
	s.mutateIf(func(st *State) bool {
		for i := range st.Favorites {
			if st.Favorites[i].ID == id {
				st.Favorites[i].UsageCount++
				found = true
				return true
			}
		}
		return false
	})
	return found
}

// UpdateAIMemory shallow-merges u into the AI memory.
func (s *Store) UpdateAIMemory(u AIMemoryUpdate) {
	s.mutate(func(st *State) {
		if u.ProfileFacts != nil {
			facts := make(map[string]string, len(u.ProfileFacts))
			for k, v := range u.ProfileFacts {
				facts[k] = v
			}
			st.AIMemory.ProfileFacts = facts
		}
		if u.MemorySummary != nil {
			st.AIMemory.MemorySummary = *u.MemorySummary
		}
		if u.ConversationHistory != nil {
			st.AIMemory.ConversationHistory = append([]ConversationTurn{}, u.ConversationHistory...)
		}
	})
}

// SetProfileFact sets one fact, keeping the others.
func (s *Store) SetProfileFact(key, value string) {
	s.mutate(func(st *State) {
		facts := make(map[string]string, len(st.AIMemory.ProfileFacts)+1)
		for k, v := range st.AIMemory.ProfileFacts {
			facts[k] = v
		}
		facts[key] = value
		st.AIMemory.ProfileFacts = facts
	})
}

func (s *Store) ClearAIMemory() {
	s.mutate(func(st *State) {
		st.AIMemory = defaultAIMemory()
	})
}

func (s *Store) SetProfile(p Profile) {
	s.mutate(func(st *State) { st.Profile = p })
}

func (s *Store) SetSettings(settings Settings) {
	settings.Language = domain.ParseLang(string(settings.Language))
	s.mutate(func(st *State) { st.Settings = settings })
}

// SetEntitlement replaces the entitlement snapshot with one fetched from the server.
func (s *Store) SetEntitlement(e domain.Entitlement) {
	if e.Usage.LastResetDate == "" {
		e.Usage.LastResetDate = utils.UTCDate(s.now())
	}
	s.mutate(func(st *State) { st.Entitlement = e })
}

// CanUse reports whether the local snapshot allows another call of f today.
func (s *Store) CanUse(f domain.Feature) bool {
	s.Initialize()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Entitlement.IsPro || s.state.Entitlement.Remaining(f) > 0
}

// RecordUsage counts one local call of f against today's snapshot.
func (s *Store) RecordUsage(f domain.Feature) {
	s.Initialize()
	s.mutate(func(st *State) { st.Entitlement.Usage.Increment(f) })
}

// Logout resets every user-scoped field. The language setting is kept.
func (s *Store) Logout() {
	s.mutate(func(st *State) {
		*st = defaultUserState(st.Settings.Language)
		st.Entitlement.Usage.LastResetDate = utils.UTCDate(s.now())
	})
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Flush waits for scheduled saves to finish.
func (s *Store) Flush() {
	s.saves.Wait()
}

func (s *Store) mutate(fn func(st *State)) {
	s.mutateIf(func(st *State) bool {
		fn(st)
		return true
	})
}

// mutateIf applies fn under the lock and schedules a save when fn reports a change.
func (s *Store) mutateIf(fn func(st *State) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	s.version++
	version := s.version
	data, err := json.Marshal(s.state.projection())
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Failed to encode state", "error", err)
		return
	}
	s.scheduleSave(version, data)
}

// scheduleSave writes data in the background. A save never overwrites a newer one.
func (s *Store) scheduleSave(version uint64, data []byte) {
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		s.saveMu.Lock()
		defer s.saveMu.Unlock()
		if version <= s.savedVersion {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := s.repo.Save(ctx, data); err != nil {
			s.log.Warn("Failed to persist state", "version", version, "error", err)
			return
		}
		s.savedVersion = version
	}()
}

func prepend[T any](items []T, item T, limit int) []T {
	out := make([]T, 0, min(len(items)+1, limit))
	out = append(out, item)
	for _, it := range items {
		if len(out) == limit {
			break
		}
		out = append(out, it)
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
