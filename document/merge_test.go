package document

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildFixture(savedAt int64) Document {
	var d = New()
	d.Player.ID = "p-1" // Stable identity across fixtures.
	d.SavedAt = savedAt
	return d
}

func TestMergeCounterAggregation(t *testing.T) {
	var a = buildFixture(100)
	a.Statistics.TotalZombiesKilled = 500
	a.Player.TotalScore = 9000

	var b = buildFixture(200)
	b.Statistics.TotalZombiesKilled = 350
	b.Player.TotalScore = 12000

	// max() holds regardless of argument order.
	for _, m := range []Document{Merge(a, b), Merge(b, a)} {
		require.Equal(t, int64(500), m.Statistics.TotalZombiesKilled)
		require.Equal(t, int64(12000), m.Player.TotalScore)
		require.Equal(t, int64(201), m.SavedAt) // max(a, b) + 1.
		require.NoError(t, m.Validate())
	}
}

func TestMergeLatestWinsScalars(t *testing.T) {
	var a = buildFixture(100)
	a.Settings.Difficulty = DifficultyHard
	a.Player.Currency = 500

	var b = buildFixture(200)
	b.Settings.Difficulty = DifficultyEasy
	b.Player.Currency = 120 // Spent since |a| was taken.

	var m = Merge(a, b)
	require.Equal(t, DifficultyEasy, m.Settings.Difficulty)
	require.Equal(t, int64(120), m.Player.Currency)
}

func TestMergeSetsAndMaps(t *testing.T) {
	var a = buildFixture(100)
	a.Vehicles.Owned = []string{"mustang", "rusty-sedan"}
	a.Vehicles.SelectedID = "mustang"
	a.Vehicles.Upgrades = map[string]map[string]int{"mustang": {"engine": 3, "tires": 1}}
	a.Levels.Unlocked = []string{"highway-01", "highway-02"}
	a.Levels.BestScores = map[string]int64{"highway-01": 100, "highway-02": 50}
	a.Achievements = []Achievement{{ID: "first-blood", UnlockedAt: 10}}

	var b = buildFixture(200)
	b.Vehicles.SelectedID = ""
	b.Vehicles.Upgrades = map[string]map[string]int{"rusty-sedan": {"engine": 2}}
	b.Levels.Unlocked = []string{"highway-01", "swamp-01"}
	b.Levels.BestScores = map[string]int64{"highway-01": 80, "swamp-01": 40}
	b.Achievements = []Achievement{{ID: "first-blood", UnlockedAt: 5}, {ID: "road-warrior", UnlockedAt: 60}}

	var m = Merge(a, b)
	require.Equal(t, []string{"mustang", "rusty-sedan"}, m.Vehicles.Owned)
	require.Equal(t, 3, m.Vehicles.Upgrades["mustang"]["engine"])
	require.Equal(t, 2, m.Vehicles.Upgrades["rusty-sedan"]["engine"])
	require.Equal(t, []string{"highway-01", "highway-02", "swamp-01"}, m.Levels.Unlocked)
	require.Equal(t, int64(100), m.Levels.BestScores["highway-01"])
	require.Equal(t, int64(50), m.Levels.BestScores["highway-02"])
	require.Equal(t, int64(40), m.Levels.BestScores["swamp-01"])

	// Achievement union is unique by ID, earliest unlock wins.
	require.Equal(t, []Achievement{
		{ID: "first-blood", UnlockedAt: 5},
		{ID: "road-warrior", UnlockedAt: 60},
	}, m.Achievements)

	// Selection falls back to the older side when the latest has none.
	require.Equal(t, "mustang", m.Vehicles.SelectedID)
	require.NoError(t, m.Validate())
}

func TestMutationCases(t *testing.T) {
	var d = New()
	d.Player.Currency = 1000

	// Case: a completed run updates bests, totals and session.
	require.NoError(t, RunMutation{LevelID: "highway-01", Score: 300, Progress: 1, Earned: 75}.ApplyTo(&d))
	require.Equal(t, int64(300), d.Levels.BestScores["highway-01"])
	require.Contains(t, d.Levels.Completed, "highway-01")
	require.Equal(t, int64(1075), d.Player.Currency)
	require.Equal(t, "highway-01", d.Session.LastLevelID)

	// Case: a worse score does not regress the best.
	require.NoError(t, RunMutation{LevelID: "highway-01", Score: 100, Progress: 0.4}.ApplyTo(&d))
	require.Equal(t, int64(300), d.Levels.BestScores["highway-01"])

	// Case: purchase, select, then upgrade a vehicle.
	require.NoError(t, PurchaseVehicleMutation{VehicleID: "mustang", Cost: 500}.ApplyTo(&d))
	require.NoError(t, SelectVehicleMutation{VehicleID: "mustang"}.ApplyTo(&d))
	require.NoError(t, UpgradeVehicleMutation{VehicleID: "mustang", Part: "engine", Cost: 100}.ApplyTo(&d))
	require.Equal(t, int64(475), d.Player.Currency)
	require.Equal(t, 1, d.Vehicles.Upgrades["mustang"]["engine"])

	// Case: overdrafts are rejected and leave the document unchanged.
	require.Error(t, CurrencyMutation{Delta: -10000}.ApplyTo(&d))
	require.Equal(t, int64(475), d.Player.Currency)
	require.Error(t, PurchaseVehicleMutation{VehicleID: "tank", Cost: 99999}.ApplyTo(&d))

	// Case: selecting an unowned vehicle is rejected.
	require.Error(t, SelectVehicleMutation{VehicleID: "tank"}.ApplyTo(&d))

	// Case: non-finite progress is rejected. A NaN which reached the
	// document would fail every subsequent json.Marshal, poisoning writes.
	for _, p := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		require.Error(t, RunMutation{LevelID: "highway-01", Progress: p}.ApplyTo(&d))
	}
	var nan = math.NaN()
	require.Error(t, SettingsMutation{MusicVolume: &nan}.ApplyTo(&d))

	// Case: achievements are unique; re-unlock is a no-op.
	require.NoError(t, AchievementMutation{ID: "first-blood"}.ApplyTo(&d))
	require.NoError(t, AchievementMutation{ID: "first-blood"}.ApplyTo(&d))
	require.Len(t, d.Achievements, 1)

	// Case: partial settings update validates the combined result.
	var bad = 4.2
	require.Error(t, SettingsMutation{MusicVolume: &bad}.ApplyTo(&d))
	var ok = 0.25
	require.NoError(t, SettingsMutation{MusicVolume: &ok}.ApplyTo(&d))
	require.Equal(t, 0.25, d.Settings.MusicVolume)

	// Case: statistics deltas accumulate.
	require.NoError(t, StatisticsMutation{ZombiesKilled: 12, DistanceMeters: 800}.ApplyTo(&d))
	require.NoError(t, StatisticsMutation{ZombiesKilled: 5}.ApplyTo(&d))
	require.Equal(t, int64(17), d.Statistics.TotalZombiesKilled)

	// The document remains valid throughout.
	require.NoError(t, d.Validate())
}
