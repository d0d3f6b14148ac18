package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	cases := map[string]time.Duration{
		"None":  0,
		"none":  0,
		"":      0,
		"1'00":  time.Minute,
		"0'45":  45 * time.Second,
		"2'05":  2*time.Minute + 5*time.Second,
		" 1'30": 90 * time.Second,
		"0'00":  0,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"90", "1:30", "a'10", "1'xx", "1'60", "-1'10"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "None", FormatClock(0))
	assert.Equal(t, "1'30", FormatClock(90*time.Second))
	assert.Equal(t, "0'05", FormatClock(5*time.Second))
}

func TestTask_Helpers(t *testing.T) {
	task := Task{Reps: 4, DistanceM: 100, TimeLimit: 90 * time.Second, PacerInterval: 30 * time.Second, BlockRepeats: 1}
	assert.True(t, task.HasTimeLimit())
	assert.True(t, task.HasPacer())
	assert.Equal(t, int64(30), task.PacerSeconds())
	assert.Equal(t, "4 x 100m", task.Summary())

	task.BlockRepeats = 3
	assert.Equal(t, "3 x (4 x 100m)", task.Summary())

	assert.False(t, Task{}.HasTimeLimit())
	assert.False(t, Task{}.HasPacer())
}
