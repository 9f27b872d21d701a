package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/hybridsim/internal/config"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// FailureRecord is the persisted form of a dynamo.Failure.
type FailureRecord struct {
	Kind     string  `json:"kind"`
	Severity string  `json:"severity,omitempty"`
	Time     float64 `json:"time"`
	Message  string  `json:"message"`
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Model       string             `json:"model"`
	Timestamp   time.Time          `json:"timestamp"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Integrator  string             `json:"integrator"`
	Solver      string             `json:"solver"`
	Params      map[string]float64 `json:"params,omitempty"`
	Steps       int                `json:"steps"`
	Events      []sim.EventRecord  `json:"events,omitempty"`
	Assertions  []FailureRecord    `json:"assertions,omitempty"`
	Linear      []FailureRecord    `json:"linear_failures,omitempty"`
	Termination *FailureRecord     `json:"termination,omitempty"`
	Metrics     map[string]float64 `json:"metrics"`
}

func failureRecord(f *dynamo.Failure) FailureRecord {
	r := FailureRecord{Kind: f.Kind.String(), Time: f.Time, Message: f.Error()}
	if f.Kind == dynamo.AssertionFailure {
		r.Severity = f.Severity.String()
	}
	return r
}

func failureRecords(fs []*dynamo.Failure) []FailureRecord {
	out := make([]FailureRecord, 0, len(fs))
	for _, f := range fs {
		out = append(out, failureRecord(f))
	}
	return out
}

// Save writes metadata.json and states.csv under a fresh run directory
// and returns the run id.
func (s *Store) Save(cfg *config.Config, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("%s_%s", cfg.Model, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Model:      cfg.Model,
		Timestamp:  time.Now(),
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Integrator: cfg.Integrator,
		Solver:     cfg.Settings().LinearSolver,
		Params:     cfg.Params,
		Steps:      result.StepsTaken,
		Events:     result.Events,
		Assertions: failureRecords(result.Assertions),
		Linear:     failureRecords(result.LinearFailures),
		Metrics:    result.Metrics,
	}
	if result.Termination != nil {
		tr := failureRecord(result.Termination)
		meta.Termination = &tr
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, "states.csv"), result); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeStates writes one row per recorded point: time, continuous
// states x*, then the discrete reals r*, integers i*, booleans b* and
// strings s*.
func writeStates(path string, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if len(result.States) == 0 {
		w.Flush()
		return w.Error()
	}

	header := []string{"time"}
	columns := func(prefix string, n int) {
		for i := 0; i < n; i++ {
			header = append(header, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	columns("x", len(result.States[0]))
	columns("r", rowLen(result.Reals))
	columns("i", rowLen(result.Ints))
	columns("b", rowLen(result.Bools))
	columns("s", rowLen(result.Strings))

	if err := w.Write(header); err != nil {
		return err
	}

	for i := range result.States {
		row := []string{formatFloat(result.Times[i])}
		for _, val := range result.States[i] {
			row = append(row, formatFloat(val))
		}
		if i < len(result.Reals) {
			for _, val := range result.Reals[i] {
				row = append(row, formatFloat(val))
			}
		}
		if i < len(result.Ints) {
			for _, val := range result.Ints[i] {
				row = append(row, strconv.Itoa(val))
			}
		}
		if i < len(result.Bools) {
			for _, val := range result.Bools[i] {
				row = append(row, strconv.FormatBool(val))
			}
		}
		if i < len(result.Strings) {
			row = append(row, result.Strings[i]...)
		}

		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func rowLen[T any](rows [][]T) int {
	if len(rows) == 0 {
		return 0
	}
	return len(rows[0])
}

// List returns the stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", metaPath, err)
	}

	return &meta, nil
}

// LoadStates reads the time column and the continuous state columns of
// a run.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	csvPath := filepath.Join(s.baseDir, runID, "states.csv")
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	var stateCols []int
	for j, name := range records[0] {
		if strings.HasPrefix(name, "x") {
			stateCols = append(stateCols, j)
		}
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)

	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %s row %d: %w", csvPath, i, err)
		}

		state := make([]float64, 0, len(stateCols))
		for _, j := range stateCols {
			if j >= len(record) {
				break
			}
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("storage: %s row %d: %w", csvPath, i, err)
			}
			state = append(state, val)
		}
		times = append(times, t)
		states = append(states, state)
	}

	return states, times, nil
}
