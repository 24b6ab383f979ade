package document

// Merge combines two divergent Documents into one which loses no progress
// from either side. Each section has an explicit typed merge rule:
//
//   - "Latest wins" scalars (player identity, selection, settings, session)
//     take the side with the larger SavedAt.
//   - Monotone counters (totalScore, playTime, all statistics) take max.
//   - Set-valued fields (owned vehicles, unlocked/completed levels,
//     achievements) take the union.
//   - Map-valued best-scores, progress, and upgrade levels take per-key max.
//
// The result's SavedAt is max(a, b) + 1 so it supersedes both inputs, and
// its wall clock is re-stamped.
func Merge(a, b Document) Document {
	var latest, other = a, b
	if b.SavedAt > a.SavedAt {
		latest, other = b, a
	}

	var out = Document{
		SchemaVersion: SchemaVersion,
		SavedAt:       max64(a.SavedAt, b.SavedAt) + 1,
		SavedWall:     timeNow(),
		Player:        mergePlayer(latest.Player, other.Player),
		Vehicles:      mergeVehicles(latest.Vehicles, other.Vehicles),
		Levels:        mergeLevels(latest.Levels, other.Levels),
		Settings:      latest.Settings,
		Achievements:  mergeAchievements(latest.Achievements, other.Achievements),
		Statistics:    mergeStatistics(latest.Statistics, other.Statistics),
		Session:       latest.Session,
	}
	return out
}

// mergePlayer keeps the latest side's identity and currency (currency is
// spendable, so max() would resurrect spent balances), and max-aggregates
// the monotone progression counters.
func mergePlayer(latest, other Player) Player {
	var out = latest
	if out.Level < other.Level {
		out.Level = other.Level
	}
	out.TotalScore = max64(latest.TotalScore, other.TotalScore)
	out.PlayTime = max64(latest.PlayTime, other.PlayTime)
	return out
}

func mergeVehicles(latest, other Vehicles) Vehicles {
	var out = Vehicles{
		Owned:      unionSorted(latest.Owned, other.Owned),
		SelectedID: latest.SelectedID,
		Upgrades:   map[string]map[string]int{},
	}
	if out.SelectedID == "" {
		out.SelectedID = other.SelectedID
	}
	if out.SelectedID != "" && !containsSorted(out.Owned, out.SelectedID) {
		// Cannot happen when both inputs validate, but Merge must not
		// produce an invalid document regardless.
		out.SelectedID = ""
	}
	for _, side := range []map[string]map[string]int{other.Upgrades, latest.Upgrades} {
		for id, parts := range side {
			var p = out.Upgrades[id]
			if p == nil {
				p = make(map[string]int, len(parts))
				out.Upgrades[id] = p
			}
			for part, level := range parts {
				if level > p[part] {
					p[part] = level
				}
			}
		}
	}
	return out
}

func mergeLevels(latest, other Levels) Levels {
	var out = Levels{
		Unlocked:   unionSorted(latest.Unlocked, other.Unlocked),
		Completed:  unionSorted(latest.Completed, other.Completed),
		BestScores: make(map[string]int64, len(latest.BestScores)+len(other.BestScores)),
		Progress:   make(map[string]float64, len(latest.Progress)+len(other.Progress)),
	}
	for _, side := range []map[string]int64{other.BestScores, latest.BestScores} {
		for id, score := range side {
			if cur, ok := out.BestScores[id]; !ok || score > cur {
				out.BestScores[id] = score
			}
		}
	}
	for _, side := range []map[string]float64{other.Progress, latest.Progress} {
		for id, p := range side {
			if p > out.Progress[id] {
				out.Progress[id] = p
			}
		}
	}
	return out
}

// mergeAchievements unions by ID, preserving the latest side's ordering and
// appending achievements only the other side has earned. The earliest
// unlock timestamp wins for achievements present on both sides.
func mergeAchievements(latest, other []Achievement) []Achievement {
	var out = append([]Achievement(nil), latest...)
	var index = make(map[string]int, len(out))
	for i, a := range out {
		index[a.ID] = i
	}
	for _, a := range other {
		if i, ok := index[a.ID]; ok {
			if a.UnlockedAt < out[i].UnlockedAt {
				out[i].UnlockedAt = a.UnlockedAt
			}
		} else {
			index[a.ID] = len(out)
			out = append(out, a)
		}
	}
	return out
}

func mergeStatistics(a, b Statistics) Statistics {
	return Statistics{
		TotalRuns:           max64(a.TotalRuns, b.TotalRuns),
		TotalZombiesKilled:  max64(a.TotalZombiesKilled, b.TotalZombiesKilled),
		TotalDistanceMeters: max64(a.TotalDistanceMeters, b.TotalDistanceMeters),
		TotalCurrencyEarned: max64(a.TotalCurrencyEarned, b.TotalCurrencyEarned),
		TotalCrashes:        max64(a.TotalCrashes, b.TotalCrashes),
	}
}
