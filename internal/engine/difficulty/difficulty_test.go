package difficulty

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"noble-ngs-quiz/internal/models"
)

func TestPreference(t *testing.T) {
	t.Run("no attempts yet prefers easy then medium", func(t *testing.T) {
		assert.Equal(t, []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium}, Preference(0, 0))
	})

	t.Run("high accuracy with volume puts medium and hard ahead of easy", func(t *testing.T) {
		assert.Equal(t,
			[]models.Difficulty{models.DifficultyMedium, models.DifficultyHard, models.DifficultyEasy},
			Preference(20, 19))
	})

	t.Run("high accuracy without enough volume stays balanced", func(t *testing.T) {
		assert.Equal(t,
			[]models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard},
			Preference(5, 5))
	})

	t.Run("solid accuracy is balanced across tiers", func(t *testing.T) {
		assert.Equal(t,
			[]models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard},
			Preference(10, 8))
	})

	t.Run("low accuracy sticks to easy", func(t *testing.T) {
		assert.Equal(t, []models.Difficulty{models.DifficultyEasy}, Preference(10, 5))
	})

	t.Run("boundary at exactly 80 percent is balanced, not low", func(t *testing.T) {
		assert.Equal(t,
			[]models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard},
			Preference(5, 4))
	})

	t.Run("boundary at exactly 95 percent with 20 attempts unlocks medium and hard", func(t *testing.T) {
		assert.Equal(t,
			[]models.Difficulty{models.DifficultyMedium, models.DifficultyHard, models.DifficultyEasy},
			Preference(20, 19))
	})
}
