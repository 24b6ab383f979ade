package document

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current Document schema version. Documents persisted
// under an older version are migrated (or repaired) on load; a remote holding
// a newer version is incompatible for automatic merge.
const SchemaVersion = 3

// MaxDocumentAge is the retention horizon. A Document whose wall-clock save
// time is older than this is flagged stale and treated as invalid.
var MaxDocumentAge = 365 * 24 * time.Hour

// Document is the canonical record of a player's progress.
type Document struct {
	// SchemaVersion of the Document. Always present.
	SchemaVersion int `json:"schemaVersion"`
	// SavedAt is a logical timestamp which is non-decreasing across
	// successive persisted generations of the Document.
	SavedAt int64 `json:"savedAt"`
	// SavedWall is the wall-clock time of the last save, used only for
	// staleness checks (never for sync ordering).
	SavedWall time.Time `json:"savedWall"`

	Player       Player        `json:"player"`
	Vehicles     Vehicles      `json:"vehicles"`
	Levels       Levels        `json:"levels"`
	Settings     Settings      `json:"settings"`
	Achievements []Achievement `json:"achievements"`
	Statistics   Statistics    `json:"statistics"`
	Session      Session       `json:"session"`
}

// Player is the identity and top-line progression of the player.
type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Currency   int64  `json:"currency"`
	Level      int    `json:"level"`
	TotalScore int64  `json:"totalScore"`
	// PlayTime is cumulative seconds of play.
	PlayTime int64 `json:"playTime"`
}

// Vehicles is the player's garage: owned vehicles, the current selection, and
// per-vehicle upgrade levels keyed by upgrade part.
type Vehicles struct {
	// Owned is a sorted set of owned vehicle IDs.
	Owned []string `json:"owned"`
	// SelectedID is the currently selected vehicle, and must be a member of
	// Owned whenever set.
	SelectedID string `json:"selectedId,omitempty"`
	// Upgrades maps vehicle ID => upgrade part => level.
	Upgrades map[string]map[string]int `json:"upgrades"`
}

// Levels is per-level progression.
type Levels struct {
	// Unlocked and Completed are sorted sets of level IDs.
	Unlocked  []string `json:"unlocked"`
	Completed []string `json:"completed"`
	// BestScores maps level ID to the best score achieved, always >= 0.
	BestScores map[string]int64 `json:"bestScores"`
	// Progress maps level ID to furthest fractional progress in [0, 1].
	Progress map[string]float64 `json:"progress"`
}

// Settings are player preferences. They carry no progression value but are
// synchronized so a reinstall restores them.
type Settings struct {
	MusicVolume   float64 `json:"musicVolume"`
	EffectsVolume float64 `json:"effectsVolume"`
	Difficulty    string  `json:"difficulty"`
	Language      string  `json:"language"`
	ShowTutorials bool    `json:"showTutorials"`
}

// Achievement is a single unlocked achievement. Achievements are held as an
// ordered list, unique by ID.
type Achievement struct {
	ID string `json:"id"`
	// UnlockedAt is the logical timestamp at which the achievement unlocked.
	UnlockedAt int64 `json:"unlockedAt"`
}

// Statistics are lifetime counters. Every field is monotonically
// non-decreasing, which is what makes max() a safe merge aggregation.
type Statistics struct {
	TotalRuns           int64 `json:"totalRuns"`
	TotalZombiesKilled  int64 `json:"totalZombiesKilled"`
	TotalDistanceMeters int64 `json:"totalDistanceMeters"`
	TotalCurrencyEarned int64 `json:"totalCurrencyEarned"`
	TotalCrashes        int64 `json:"totalCrashes"`
}

// Session is transient-but-persisted state of the current play session,
// letting a crashed client resume from its last checkpoint.
type Session struct {
	ID          string  `json:"id"`
	LastLevelID string  `json:"lastLevelId,omitempty"`
	Checkpoint  float64 `json:"checkpoint"`
}

// Difficulty values accepted by Settings.Difficulty.
const (
	DifficultyEasy   = "easy"
	DifficultyNormal = "normal"
	DifficultyHard   = "hard"
)

// New returns a Document initialized with schema defaults: a fresh player
// owning the starter vehicle with the first level unlocked.
func New() Document {
	return Document{
		SchemaVersion: SchemaVersion,
		SavedAt:       0,
		SavedWall:     timeNow(),
		Player: Player{
			ID:   uuid.NewString(),
			Name: "player",
		},
		Vehicles: Vehicles{
			Owned:      []string{"rusty-sedan"},
			SelectedID: "rusty-sedan",
			Upgrades:   map[string]map[string]int{},
		},
		Levels: Levels{
			Unlocked:   []string{"highway-01"},
			Completed:  []string{},
			BestScores: map[string]int64{},
			Progress:   map[string]float64{},
		},
		Settings: Settings{
			MusicVolume:   0.8,
			EffectsVolume: 1.0,
			Difficulty:    DifficultyNormal,
			Language:      "en",
			ShowTutorials: true,
		},
		Achievements: []Achievement{},
		Session: Session{
			ID: uuid.NewString(),
		},
	}
}

// Copy returns a deep copy of the Document. Accessors of the state store
// return copies so that callers can never alias internal state.
func (d Document) Copy() Document {
	var out = d

	out.Vehicles.Owned = append([]string(nil), d.Vehicles.Owned...)
	out.Vehicles.Upgrades = make(map[string]map[string]int, len(d.Vehicles.Upgrades))
	for id, parts := range d.Vehicles.Upgrades {
		var p = make(map[string]int, len(parts))
		for k, v := range parts {
			p[k] = v
		}
		out.Vehicles.Upgrades[id] = p
	}

	out.Levels.Unlocked = append([]string(nil), d.Levels.Unlocked...)
	out.Levels.Completed = append([]string(nil), d.Levels.Completed...)
	out.Levels.BestScores = make(map[string]int64, len(d.Levels.BestScores))
	for k, v := range d.Levels.BestScores {
		out.Levels.BestScores[k] = v
	}
	out.Levels.Progress = make(map[string]float64, len(d.Levels.Progress))
	for k, v := range d.Levels.Progress {
		out.Levels.Progress[k] = v
	}

	out.Achievements = append([]Achievement(nil), d.Achievements...)
	return out
}

// insertSorted adds |v| to sorted set |s|, returning the (possibly unchanged)
// set. Sets are represented as sorted string slices for stable serialization.
func insertSorted(s []string, v string) []string {
	var i = sort.SearchStrings(s, v)
	if i < len(s) && s[i] == v {
		return s
	}
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// containsSorted returns whether sorted set |s| contains |v|.
func containsSorted(s []string, v string) bool {
	var i = sort.SearchStrings(s, v)
	return i < len(s) && s[i] == v
}

// unionSorted returns the union of sorted sets |a| and |b|.
func unionSorted(a, b []string) []string {
	var out = make([]string, 0, len(a)+len(b))
	var i, j int
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i, j = i+1, j+1
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// timeNow is swapped for deterministic time in tests.
var timeNow = func() time.Time { return time.Now().UTC() }
