package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadata(t *testing.T) {
	t.Run("trims and folds case", func(t *testing.T) {
		assert.Equal(t, "algebra", Metadata("  Algebra  "))
	})

	t.Run("different-case inputs normalize identically", func(t *testing.T) {
		assert.Equal(t, Metadata("Fractions"), Metadata("FRACTIONS"))
		assert.Equal(t, Metadata("Fractions"), Metadata("fractions"))
	})

	t.Run("empty string normalizes to empty string", func(t *testing.T) {
		assert.Equal(t, "", Metadata("   "))
	})
}

func TestDisplay(t *testing.T) {
	t.Run("title-cases normalized metadata", func(t *testing.T) {
		assert.Equal(t, "Algebra", Display(Metadata("algebra")))
	})

	t.Run("empty string stays empty", func(t *testing.T) {
		assert.Equal(t, "", Display(""))
	})
}
