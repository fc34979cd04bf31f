package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXPFromKillNoChangeThenLevelUp(t *testing.T) {
	assert.EqualValues(t, 100, XPFromKill(1, 1, 100))

	out := CheckLevelUp(1, 100)
	assert.False(t, out.LeveledUp)
	assert.EqualValues(t, 1, out.NewLevel)
	assert.EqualValues(t, 100, out.RemainingXP)
}

func TestCheckLevelUpExactThreshold(t *testing.T) {
	out := CheckLevelUp(1, 400)
	assert.True(t, out.LeveledUp)
	assert.EqualValues(t, 2, out.NewLevel)
	assert.EqualValues(t, 0, out.RemainingXP)
}

func TestCheckLevelUpOverflowCarriesAcrossMultipleLevels(t *testing.T) {
	out := CheckLevelUp(1, 1000)
	assert.True(t, out.LeveledUp)
	assert.EqualValues(t, 3, out.NewLevel)
	assert.EqualValues(t, 100, out.RemainingXP)
}
