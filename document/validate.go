package document

import (
	"fmt"
	"strings"
)

// Validator is a type able to validate itself. Validate inspects the type for
// structural or semantic issues and returns a descriptive error if any
// violations are encountered. Validators return instances of ValidationError
// where possible, which enables tracking nested field contexts.
type Validator interface {
	Validate() error
}

// ValidationError is an error implementation which captures its validation context.
type ValidationError struct {
	Context []string
	Err     error
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	if len(ve.Context) != 0 {
		return strings.Join(ve.Context, ".") + ": " + ve.Err.Error()
	}
	return ve.Err.Error()
}

// ExtendContext type-checks |err| to a *ValidationError, and if matched
// extends it with |context|. In all cases the value of |err| is returned.
func ExtendContext(err error, format string, args ...interface{}) error {
	if ve, ok := err.(*ValidationError); ok {
		ve.Context = append([]string{fmt.Sprintf(format, args...)}, ve.Context...)
	}
	return err
}

// NewValidationError parallels fmt.Errorf to return a new ValidationError instance.
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

// Validate returns the first violation of the Document's invariants, or nil
// if the Document is valid.
func (d Document) Validate() error {
	if d.SchemaVersion <= 0 {
		return NewValidationError("missing schemaVersion")
	} else if d.SchemaVersion > SchemaVersion {
		return NewValidationError("unknown schemaVersion (%d; expected <= %d)", d.SchemaVersion, SchemaVersion)
	} else if d.SavedAt < 0 {
		return NewValidationError("invalid savedAt (%d; expected >= 0)", d.SavedAt)
	} else if !d.SavedWall.IsZero() && timeNow().Sub(d.SavedWall) > MaxDocumentAge {
		return NewValidationError("document is stale (saved %s)", d.SavedWall)
	} else if err := d.Player.Validate(); err != nil {
		return ExtendContext(err, "player")
	} else if err = d.Vehicles.Validate(); err != nil {
		return ExtendContext(err, "vehicles")
	} else if err = d.Levels.Validate(); err != nil {
		return ExtendContext(err, "levels")
	} else if err = d.Settings.Validate(); err != nil {
		return ExtendContext(err, "settings")
	} else if err = validateAchievements(d.Achievements); err != nil {
		return ExtendContext(err, "achievements")
	} else if err = d.Statistics.Validate(); err != nil {
		return ExtendContext(err, "statistics")
	} else if err = d.Session.Validate(); err != nil {
		return ExtendContext(err, "session")
	}
	return nil
}

// Validate returns an error if the Player violates its invariants.
func (p Player) Validate() error {
	if p.ID == "" {
		return NewValidationError("missing id")
	} else if p.Currency < 0 {
		return NewValidationError("invalid currency (%d; expected >= 0)", p.Currency)
	} else if p.Level < 0 {
		return NewValidationError("invalid level (%d; expected >= 0)", p.Level)
	} else if p.TotalScore < 0 {
		return NewValidationError("invalid totalScore (%d; expected >= 0)", p.TotalScore)
	} else if p.PlayTime < 0 {
		return NewValidationError("invalid playTime (%d; expected >= 0)", p.PlayTime)
	}
	return nil
}

// Validate returns an error if the Vehicles section violates its invariants.
func (v Vehicles) Validate() error {
	if err := validateSortedSet(v.Owned); err != nil {
		return ExtendContext(err, "owned")
	}
	if v.SelectedID != "" && !containsSorted(v.Owned, v.SelectedID) {
		return NewValidationError("selectedId (%s) is not an owned vehicle", v.SelectedID)
	}
	for id, parts := range v.Upgrades {
		if !containsSorted(v.Owned, id) {
			return NewValidationError("upgrades[%s]: vehicle is not owned", id)
		}
		for part, level := range parts {
			if level < 0 {
				return NewValidationError("upgrades[%s].%s: invalid level (%d; expected >= 0)", id, part, level)
			}
		}
	}
	return nil
}

// Validate returns an error if the Levels section violates its invariants.
func (l Levels) Validate() error {
	if err := validateSortedSet(l.Unlocked); err != nil {
		return ExtendContext(err, "unlocked")
	} else if err = validateSortedSet(l.Completed); err != nil {
		return ExtendContext(err, "completed")
	}
	for id, score := range l.BestScores {
		if score < 0 {
			return NewValidationError("bestScores[%s]: invalid score (%d; expected >= 0)", id, score)
		}
	}
	for id, p := range l.Progress {
		// A non-finite value also fails here, and must: NaN poisons every
		// subsequent json.Marshal of the document.
		if !(p >= 0 && p <= 1) {
			return NewValidationError("progress[%s]: invalid progress (%v; expected 0 <= p <= 1)", id, p)
		}
	}
	return nil
}

// Validate returns an error if the Settings violate their invariants.
func (s Settings) Validate() error {
	if !(s.MusicVolume >= 0 && s.MusicVolume <= 1) {
		return NewValidationError("invalid musicVolume (%v; expected 0 <= v <= 1)", s.MusicVolume)
	} else if !(s.EffectsVolume >= 0 && s.EffectsVolume <= 1) {
		return NewValidationError("invalid effectsVolume (%v; expected 0 <= v <= 1)", s.EffectsVolume)
	}
	switch s.Difficulty {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
	default:
		return NewValidationError("invalid difficulty (%s)", s.Difficulty)
	}
	if s.Language == "" {
		return NewValidationError("missing language")
	}
	return nil
}

// Validate returns an error if the Statistics violate their invariants.
func (s Statistics) Validate() error {
	for _, c := range []struct {
		name  string
		value int64
	}{
		{"totalRuns", s.TotalRuns},
		{"totalZombiesKilled", s.TotalZombiesKilled},
		{"totalDistanceMeters", s.TotalDistanceMeters},
		{"totalCurrencyEarned", s.TotalCurrencyEarned},
		{"totalCrashes", s.TotalCrashes},
	} {
		if c.value < 0 {
			return NewValidationError("invalid %s (%d; expected >= 0)", c.name, c.value)
		}
	}
	return nil
}

// Validate returns an error if the Session violates its invariants.
func (s Session) Validate() error {
	if s.ID == "" {
		return NewValidationError("missing id")
	} else if !(s.Checkpoint >= 0 && s.Checkpoint <= 1) {
		return NewValidationError("invalid checkpoint (%v; expected 0 <= c <= 1)", s.Checkpoint)
	}
	return nil
}

func validateAchievements(a []Achievement) error {
	var seen = make(map[string]struct{}, len(a))
	for i, ach := range a {
		if ach.ID == "" {
			return NewValidationError("[%d]: missing id", i)
		} else if _, dup := seen[ach.ID]; dup {
			return NewValidationError("[%d]: duplicated id (%s)", i, ach.ID)
		} else if ach.UnlockedAt < 0 {
			return NewValidationError("[%d]: invalid unlockedAt (%d; expected >= 0)", i, ach.UnlockedAt)
		}
		seen[ach.ID] = struct{}{}
	}
	return nil
}

func validateSortedSet(s []string) error {
	for i, v := range s {
		if v == "" {
			return NewValidationError("[%d]: empty member", i)
		} else if i > 0 && s[i-1] >= v {
			return NewValidationError("[%d]: not sorted and unique (%s >= %s)", i, s[i-1], v)
		}
	}
	return nil
}

// Violations runs every section validator and returns all violations found.
// An empty result means the Document is valid. Unlike Validate, which stops
// at the first violation, Violations is used by Repair to decide which
// sections can be carried over as-is.
func Violations(d Document) []error {
	var out []error

	if d.SchemaVersion <= 0 {
		out = append(out, NewValidationError("missing schemaVersion"))
	} else if d.SchemaVersion > SchemaVersion {
		out = append(out, NewValidationError("unknown schemaVersion (%d; expected <= %d)", d.SchemaVersion, SchemaVersion))
	}
	if d.SavedAt < 0 {
		out = append(out, NewValidationError("invalid savedAt (%d; expected >= 0)", d.SavedAt))
	}
	if !d.SavedWall.IsZero() && timeNow().Sub(d.SavedWall) > MaxDocumentAge {
		out = append(out, NewValidationError("document is stale (saved %s)", d.SavedWall))
	}
	for _, s := range []struct {
		name string
		v    Validator
	}{
		{"player", d.Player},
		{"vehicles", d.Vehicles},
		{"levels", d.Levels},
		{"settings", d.Settings},
		{"statistics", d.Statistics},
		{"session", d.Session},
	} {
		if err := s.v.Validate(); err != nil {
			out = append(out, ExtendContext(err, "%s", s.name))
		}
	}
	if err := validateAchievements(d.Achievements); err != nil {
		out = append(out, ExtendContext(err, "achievements"))
	}
	return out
}
