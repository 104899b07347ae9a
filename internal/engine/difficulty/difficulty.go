// Package difficulty implements the pure learner-accuracy-to-preference
// mapping used to order difficulty tiers on every fetch.
package difficulty

import "noble-ngs-quiz/internal/models"

// Preference computes the ordered difficulty preference list for a
// learner summarized by totalCorrect correct answers out of totalAttempts
// attempts across all subjects. It is recomputed on every fetch; boundaries are inclusive as
// documented.
func Preference(totalAttempts, totalCorrect int) []models.Difficulty {
	if totalAttempts == 0 {
		return []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium}
	}

	accuracy := float64(totalCorrect) / float64(totalAttempts)

	if accuracy >= 0.95 && totalAttempts >= 10 {
		return []models.Difficulty{models.DifficultyMedium, models.DifficultyHard, models.DifficultyEasy}
	}

	if accuracy >= 0.80 {
		return []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}
	}

	return []models.Difficulty{models.DifficultyEasy}
}
