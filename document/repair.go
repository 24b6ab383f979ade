package document

// Repair builds a valid Document from an arbitrary (possibly malformed)
// input. It starts from schema defaults and selectively copies every field of
// |d| which independently satisfies its own constraints, even when the
// document as a whole is invalid. Unrecoverable fields keep their defaults.
//
// Repair is total: it never fails, and its result always passes Validate.
func Repair(d Document) Document {
	var out = New()

	if d.SavedAt > 0 {
		out.SavedAt = d.SavedAt
	}
	if !d.SavedWall.IsZero() && timeNow().Sub(d.SavedWall) <= MaxDocumentAge {
		out.SavedWall = d.SavedWall
	}

	out.Player = repairPlayer(d.Player, out.Player)
	out.Vehicles = repairVehicles(d.Vehicles, out.Vehicles)
	out.Levels = repairLevels(d.Levels, out.Levels)
	out.Settings = repairSettings(d.Settings, out.Settings)
	out.Achievements = repairAchievements(d.Achievements)
	out.Statistics = repairStatistics(d.Statistics)
	out.Session = repairSession(d.Session, out.Session)

	return out
}

func repairPlayer(in, def Player) Player {
	var out = def
	if in.ID != "" {
		out.ID = in.ID
	}
	if in.Name != "" {
		out.Name = in.Name
	}
	if in.Currency > 0 {
		out.Currency = in.Currency
	}
	if in.Level > 0 {
		out.Level = in.Level
	}
	if in.TotalScore > 0 {
		out.TotalScore = in.TotalScore
	}
	if in.PlayTime > 0 {
		out.PlayTime = in.PlayTime
	}
	return out
}

func repairVehicles(in, def Vehicles) Vehicles {
	var out = def

	// Re-derive the owned set, dropping empty members and duplicates. The
	// starter vehicle is always retained so the player is never stranded.
	for _, id := range in.Owned {
		if id != "" {
			out.Owned = insertSorted(out.Owned, id)
		}
	}
	if in.SelectedID != "" && containsSorted(out.Owned, in.SelectedID) {
		out.SelectedID = in.SelectedID
	}
	for id, parts := range in.Upgrades {
		if !containsSorted(out.Owned, id) {
			continue
		}
		var p = make(map[string]int, len(parts))
		for part, level := range parts {
			if part != "" && level >= 0 {
				p[part] = level
			}
		}
		if len(p) != 0 {
			out.Upgrades[id] = p
		}
	}
	return out
}

func repairLevels(in, def Levels) Levels {
	var out = def
	for _, id := range in.Unlocked {
		if id != "" {
			out.Unlocked = insertSorted(out.Unlocked, id)
		}
	}
	for _, id := range in.Completed {
		if id != "" {
			out.Completed = insertSorted(out.Completed, id)
		}
	}
	for id, score := range in.BestScores {
		if id != "" && score >= 0 {
			out.BestScores[id] = score
		}
	}
	for id, p := range in.Progress {
		if id != "" && p >= 0 && p <= 1 {
			out.Progress[id] = p
		}
	}
	return out
}

func repairSettings(in, def Settings) Settings {
	var out = def
	if in.MusicVolume >= 0 && in.MusicVolume <= 1 {
		out.MusicVolume = in.MusicVolume
	}
	if in.EffectsVolume >= 0 && in.EffectsVolume <= 1 {
		out.EffectsVolume = in.EffectsVolume
	}
	switch in.Difficulty {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		out.Difficulty = in.Difficulty
	}
	if in.Language != "" {
		out.Language = in.Language
	}
	out.ShowTutorials = in.ShowTutorials
	return out
}

func repairAchievements(in []Achievement) []Achievement {
	var out = make([]Achievement, 0, len(in))
	var seen = make(map[string]struct{}, len(in))

	for _, a := range in {
		if a.ID == "" {
			continue
		} else if _, dup := seen[a.ID]; dup {
			continue
		}
		if a.UnlockedAt < 0 {
			a.UnlockedAt = 0
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

func repairStatistics(in Statistics) Statistics {
	var out Statistics
	out.TotalRuns = max64(in.TotalRuns, 0)
	out.TotalZombiesKilled = max64(in.TotalZombiesKilled, 0)
	out.TotalDistanceMeters = max64(in.TotalDistanceMeters, 0)
	out.TotalCurrencyEarned = max64(in.TotalCurrencyEarned, 0)
	out.TotalCrashes = max64(in.TotalCrashes, 0)
	return out
}

func repairSession(in, def Session) Session {
	var out = def
	if in.ID != "" {
		out.ID = in.ID
	}
	if in.LastLevelID != "" {
		out.LastLevelID = in.LastLevelID
	}
	if in.Checkpoint >= 0 && in.Checkpoint <= 1 {
		out.Checkpoint = in.Checkpoint
	}
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
