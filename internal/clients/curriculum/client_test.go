package curriculum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedAndTopics(t *testing.T) {
	ctx := context.Background()
	c := New()

	topics, err := c.Topics(ctx, "math", 5)
	require.NoError(t, err)
	assert.Nil(t, topics, "an unseeded subject/grade has no topics")

	c.Seed("math", 5, []string{"algebra", "geometry"})
	topics, err = c.Topics(ctx, "math", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"algebra", "geometry"}, topics)
}

func TestFirstTopic(t *testing.T) {
	ctx := context.Background()
	c := New()

	first, err := c.FirstTopic(ctx, "math", 5)
	require.NoError(t, err)
	assert.Equal(t, "", first)

	c.Seed("math", 5, []string{"algebra", "geometry"})
	first, err = c.FirstTopic(ctx, "math", 5)
	require.NoError(t, err)
	assert.Equal(t, "algebra", first)
}

func TestSeed_ReSeedingReplacesRatherThanAccumulates(t *testing.T) {
	ctx := context.Background()
	c := New()

	c.Seed("math", 5, []string{"algebra", "geometry"})
	c.Seed("math", 5, []string{"fractions"})

	topics, err := c.Topics(ctx, "math", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"fractions"}, topics)
}

func TestSubjects_ReturnsSortedDistinctSubjects(t *testing.T) {
	c := New()
	c.Seed("science", 5, []string{"biology"})
	c.Seed("math", 5, []string{"algebra"})
	c.Seed("math", 6, []string{"geometry"})

	assert.Equal(t, []string{"math", "science"}, c.Subjects())
}
