package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var taskFilePattern = regexp.MustCompile(`^Task (\d+)\.json$`)

// taskFile is the on-disk layout written by the planning screens. Every
// value is stored as a string.
type taskFile struct {
	TaskName            string `json:"task_name"`
	Reps                string `json:"ammount_reps"`
	Meters              string `json:"meters"`
	DetailedDescription string `json:"detailed_description"`
	TargetHeartRate     string `json:"target_heart_rate"`
	TimeLimit           string `json:"time_limit"`
	BlockReps           string `json:"block_reps"`
	Pacer               string `json:"pacer"`
}

type yamlPlan struct {
	Name  string     `yaml:"name"`
	Tasks []yamlTask `yaml:"tasks"`
}

type yamlTask struct {
	Name        string `yaml:"name"`
	Reps        int    `yaml:"reps"`
	Meters      int    `yaml:"meters"`
	Description string `yaml:"description"`
	TargetHR    string `yaml:"target_hr"`
	TimeLimit   string `yaml:"time_limit"`
	BlockReps   int    `yaml:"block_reps"`
	Pacer       string `yaml:"pacer"`
}

// Load reads a plan from a directory of "Task N.json" files, a single task
// JSON file, or a YAML plan file.
func Load(path string) ([]Task, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".json":
		task, err := loadTaskFile(path, 1)
		if err != nil {
			return nil, err
		}
		return []Task{task}, nil
	default:
		return nil, fmt.Errorf("plan: unsupported file %s", path)
	}
}

// LoadDir reads every "Task N.json" in dir, ordered by N. Each task keeps its
// N as Index, gaps included.
func LoadDir(dir string) ([]Task, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("plan: read %s: %w", dir, err)
	}

	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := taskFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		files = append(files, numbered{n: n, path: filepath.Join(dir, entry.Name())})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("plan: no task files in %s", dir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	tasks := make([]Task, 0, len(files))
	for _, f := range files {
		task, err := loadTaskFile(f.path, f.n)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func loadTaskFile(path string, index int) (Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Task{}, fmt.Errorf("plan: %w", err)
	}
	var raw taskFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return Task{}, fmt.Errorf("plan: %s: %w", path, err)
	}
	task, err := raw.toTask(index)
	if err != nil {
		return Task{}, fmt.Errorf("plan: %s: %w", path, err)
	}
	return task, nil
}

func (f taskFile) toTask(index int) (Task, error) {
	reps, err := atoiOr(f.Reps, 0)
	if err != nil {
		return Task{}, fmt.Errorf("ammount_reps: %w", err)
	}
	meters, err := atoiOr(f.Meters, 0)
	if err != nil {
		return Task{}, fmt.Errorf("meters: %w", err)
	}
	blockReps, err := atoiOr(f.BlockReps, 1)
	if err != nil {
		return Task{}, fmt.Errorf("block_reps: %w", err)
	}
	timeLimit, err := ParseClock(f.TimeLimit)
	if err != nil {
		return Task{}, fmt.Errorf("time_limit: %w", err)
	}
	pacer, err := ParseClock(f.Pacer)
	if err != nil {
		return Task{}, fmt.Errorf("pacer: %w", err)
	}
	return Task{
		Index:         index,
		Name:          f.TaskName,
		Reps:          reps,
		DistanceM:     meters,
		Description:   f.DetailedDescription,
		TimeLimit:     timeLimit,
		TargetHRZone:  f.TargetHeartRate,
		BlockRepeats:  blockReps,
		PacerInterval: pacer,
	}, nil
}

// LoadYAML reads a plan written as a single YAML document.
func LoadYAML(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	var raw yamlPlan
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("plan: %s: %w", path, err)
	}
	if len(raw.Tasks) == 0 {
		return nil, fmt.Errorf("plan: %s has no tasks", path)
	}

	tasks := make([]Task, 0, len(raw.Tasks))
	for i, t := range raw.Tasks {
		timeLimit, err := ParseClock(t.TimeLimit)
		if err != nil {
			return nil, fmt.Errorf("plan: %s: task %d time_limit: %w", path, i+1, err)
		}
		pacer, err := ParseClock(t.Pacer)
		if err != nil {
			return nil, fmt.Errorf("plan: %s: task %d pacer: %w", path, i+1, err)
		}
		blockReps := t.BlockReps
		if blockReps <= 0 {
			blockReps = 1
		}
		tasks = append(tasks, Task{
			Index:         i + 1,
			Name:          t.Name,
			Reps:          t.Reps,
			DistanceM:     t.Meters,
			Description:   t.Description,
			TimeLimit:     timeLimit,
			TargetHRZone:  t.TargetHR,
			BlockRepeats:  blockReps,
			PacerInterval: pacer,
		})
	}
	return tasks, nil
}

func atoiOr(s string, fallback int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}
