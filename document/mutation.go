package document

import "github.com/google/uuid"

// Mutation is a typed partial update produced by a game-event source and
// merged into the Document by the state store. ApplyTo mutates |d| in place
// and returns a ValidationError if the mutation cannot apply, in which case
// |d| is unchanged.
type Mutation interface {
	ApplyTo(d *Document) error
}

// RunMutation records the outcome of a completed run on a level.
type RunMutation struct {
	LevelID  string
	Score    int64
	Progress float64
	// Earned is currency awarded for the run.
	Earned int64
}

// ApplyTo implements Mutation.
func (m RunMutation) ApplyTo(d *Document) error {
	if m.LevelID == "" {
		return NewValidationError("missing levelId")
	} else if m.Score < 0 {
		return NewValidationError("invalid score (%d; expected >= 0)", m.Score)
	} else if !(m.Progress >= 0 && m.Progress <= 1) { // Also rejects NaN.
		return NewValidationError("invalid progress (%v; expected 0 <= p <= 1)", m.Progress)
	} else if m.Earned < 0 {
		return NewValidationError("invalid earned (%d; expected >= 0)", m.Earned)
	}

	d.Player.TotalScore += m.Score
	d.Player.Currency += m.Earned
	d.Statistics.TotalRuns++
	d.Statistics.TotalCurrencyEarned += m.Earned

	if m.Score > d.Levels.BestScores[m.LevelID] {
		d.Levels.BestScores[m.LevelID] = m.Score
	}
	if m.Progress > d.Levels.Progress[m.LevelID] {
		d.Levels.Progress[m.LevelID] = m.Progress
	}
	if m.Progress >= 1 {
		d.Levels.Completed = insertSorted(d.Levels.Completed, m.LevelID)
	}
	d.Session.LastLevelID = m.LevelID
	d.Session.Checkpoint = m.Progress
	return nil
}

// CurrencyMutation adjusts the player's balance. Spends which would drive
// the balance negative are rejected.
type CurrencyMutation struct {
	Delta int64
}

// ApplyTo implements Mutation.
func (m CurrencyMutation) ApplyTo(d *Document) error {
	if d.Player.Currency+m.Delta < 0 {
		return NewValidationError("insufficient currency (have %d, spend %d)", d.Player.Currency, -m.Delta)
	}
	d.Player.Currency += m.Delta
	if m.Delta > 0 {
		d.Statistics.TotalCurrencyEarned += m.Delta
	}
	return nil
}

// PurchaseVehicleMutation buys a vehicle, debiting its cost.
type PurchaseVehicleMutation struct {
	VehicleID string
	Cost      int64
}

// ApplyTo implements Mutation.
func (m PurchaseVehicleMutation) ApplyTo(d *Document) error {
	if m.VehicleID == "" {
		return NewValidationError("missing vehicleId")
	} else if containsSorted(d.Vehicles.Owned, m.VehicleID) {
		return NewValidationError("vehicle already owned (%s)", m.VehicleID)
	} else if m.Cost < 0 || d.Player.Currency < m.Cost {
		return NewValidationError("insufficient currency (have %d, cost %d)", d.Player.Currency, m.Cost)
	}
	d.Player.Currency -= m.Cost
	d.Vehicles.Owned = insertSorted(d.Vehicles.Owned, m.VehicleID)
	return nil
}

// SelectVehicleMutation changes the selected vehicle.
type SelectVehicleMutation struct {
	VehicleID string
}

// ApplyTo implements Mutation.
func (m SelectVehicleMutation) ApplyTo(d *Document) error {
	if !containsSorted(d.Vehicles.Owned, m.VehicleID) {
		return NewValidationError("vehicle is not owned (%s)", m.VehicleID)
	}
	d.Vehicles.SelectedID = m.VehicleID
	return nil
}

// UpgradeVehicleMutation raises one upgrade part of an owned vehicle by a
// single level, debiting its cost.
type UpgradeVehicleMutation struct {
	VehicleID string
	Part      string
	Cost      int64
}

// ApplyTo implements Mutation.
func (m UpgradeVehicleMutation) ApplyTo(d *Document) error {
	if !containsSorted(d.Vehicles.Owned, m.VehicleID) {
		return NewValidationError("vehicle is not owned (%s)", m.VehicleID)
	} else if m.Part == "" {
		return NewValidationError("missing part")
	} else if m.Cost < 0 || d.Player.Currency < m.Cost {
		return NewValidationError("insufficient currency (have %d, cost %d)", d.Player.Currency, m.Cost)
	}
	d.Player.Currency -= m.Cost
	if d.Vehicles.Upgrades[m.VehicleID] == nil {
		d.Vehicles.Upgrades[m.VehicleID] = map[string]int{}
	}
	d.Vehicles.Upgrades[m.VehicleID][m.Part]++
	return nil
}

// UnlockLevelMutation adds a level to the unlocked set.
type UnlockLevelMutation struct {
	LevelID string
}

// ApplyTo implements Mutation.
func (m UnlockLevelMutation) ApplyTo(d *Document) error {
	if m.LevelID == "" {
		return NewValidationError("missing levelId")
	}
	d.Levels.Unlocked = insertSorted(d.Levels.Unlocked, m.LevelID)
	return nil
}

// AchievementMutation records an unlocked achievement. Re-unlocking an
// already-held achievement is a no-op rather than an error.
type AchievementMutation struct {
	ID string
}

// ApplyTo implements Mutation.
func (m AchievementMutation) ApplyTo(d *Document) error {
	if m.ID == "" {
		return NewValidationError("missing id")
	}
	for _, a := range d.Achievements {
		if a.ID == m.ID {
			return nil
		}
	}
	d.Achievements = append(d.Achievements, Achievement{ID: m.ID, UnlockedAt: d.SavedAt})
	return nil
}

// SettingsMutation partially updates Settings. Nil fields are untouched.
type SettingsMutation struct {
	MusicVolume   *float64
	EffectsVolume *float64
	Difficulty    *string
	Language      *string
	ShowTutorials *bool
}

// ApplyTo implements Mutation.
func (m SettingsMutation) ApplyTo(d *Document) error {
	var next = d.Settings
	if m.MusicVolume != nil {
		next.MusicVolume = *m.MusicVolume
	}
	if m.EffectsVolume != nil {
		next.EffectsVolume = *m.EffectsVolume
	}
	if m.Difficulty != nil {
		next.Difficulty = *m.Difficulty
	}
	if m.Language != nil {
		next.Language = *m.Language
	}
	if m.ShowTutorials != nil {
		next.ShowTutorials = *m.ShowTutorials
	}
	if err := next.Validate(); err != nil {
		return ExtendContext(err, "settings")
	}
	d.Settings = next
	return nil
}

// StatisticsMutation adds deltas to the lifetime counters.
type StatisticsMutation struct {
	Runs           int64
	ZombiesKilled  int64
	DistanceMeters int64
	Crashes        int64
}

// ApplyTo implements Mutation.
func (m StatisticsMutation) ApplyTo(d *Document) error {
	if m.Runs < 0 || m.ZombiesKilled < 0 || m.DistanceMeters < 0 || m.Crashes < 0 {
		return NewValidationError("statistics deltas must be >= 0")
	}
	d.Statistics.TotalRuns += m.Runs
	d.Statistics.TotalZombiesKilled += m.ZombiesKilled
	d.Statistics.TotalDistanceMeters += m.DistanceMeters
	d.Statistics.TotalCrashes += m.Crashes
	return nil
}

// PlayTimeMutation accumulates seconds of play.
type PlayTimeMutation struct {
	Seconds int64
}

// ApplyTo implements Mutation.
func (m PlayTimeMutation) ApplyTo(d *Document) error {
	if m.Seconds < 0 {
		return NewValidationError("invalid seconds (%d; expected >= 0)", m.Seconds)
	}
	d.Player.PlayTime += m.Seconds
	return nil
}

// NewSessionMutation begins a fresh play session.
type NewSessionMutation struct{}

// ApplyTo implements Mutation.
func (NewSessionMutation) ApplyTo(d *Document) error {
	d.Session = Session{ID: uuid.NewString()}
	return nil
}
