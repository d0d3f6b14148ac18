package plan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const warmupTask = `{
    "task_name": "Warmup",
    "ammount_reps": "4",
    "meters": "100",
    "detailed_description": "easy freestyle",
    "target_heart_rate": "Z2",
    "time_limit": "None",
    "block_reps": "1",
    "pacer": "0'00"
}`

const mainTask = `{
    "task_name": "Main set",
    "ammount_reps": "8",
    "meters": "50",
    "detailed_description": "hold pace",
    "target_heart_rate": "Z4",
    "time_limit": "1'00",
    "pacer": "0'40"
}`

func TestLoadDir_OrdersByTaskNumber(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Task 10.json", mainTask)
	writeFile(t, dir, "Task 2.json", warmupTask)
	writeFile(t, dir, "notes.txt", "ignored")

	tasks, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	warmup := tasks[0]
	assert.Equal(t, 2, warmup.Index)
	assert.Equal(t, "Warmup", warmup.Name)
	assert.Equal(t, 4, warmup.Reps)
	assert.Equal(t, 100, warmup.DistanceM)
	assert.False(t, warmup.HasTimeLimit())
	assert.False(t, warmup.HasPacer())
	assert.Equal(t, "Z2", warmup.TargetHRZone)

	main := tasks[1]
	assert.Equal(t, 10, main.Index, "the index is the number in the file name")
	assert.Equal(t, time.Minute, main.TimeLimit)
	assert.Equal(t, 40*time.Second, main.PacerInterval)
	assert.Equal(t, 1, main.BlockRepeats, "missing block_reps defaults to 1")
}

func TestLoadDir_Errors(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "Task 1.json", `{"task_name": "x", "ammount_reps": "four"}`)
	_, err = LoadDir(dir)
	assert.ErrorContains(t, err, "ammount_reps")

	dir = t.TempDir()
	writeFile(t, dir, "Task 1.json", `{"task_name": "x", "time_limit": "90"}`)
	_, err = LoadDir(dir)
	assert.ErrorContains(t, err, "time_limit")
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "plan.yaml", `
name: Tuesday
tasks:
  - name: Warmup
    reps: 4
    meters: 100
    description: easy
  - name: Threshold
    reps: 10
    meters: 100
    target_hr: Z4
    time_limit: "1'45"
    block_reps: 2
    pacer: "1'30"
`)
	tasks, err := Load(path)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, 1, tasks[0].BlockRepeats)
	assert.False(t, tasks[0].HasTimeLimit())
	assert.Equal(t, 105*time.Second, tasks[1].TimeLimit)
	assert.Equal(t, int64(90), tasks[1].PacerSeconds())
	assert.Equal(t, 2, tasks[1].Index)
}

func TestLoad_Dispatch(t *testing.T) {
	dir := t.TempDir()
	single := writeFile(t, dir, "Task 1.json", mainTask)

	tasks, err := Load(single)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Main set", tasks[0].Name)

	tasks, err = Load(dir)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	_, err = Load(writeFile(t, dir, "plan.csv", ""))
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
