// Package storage archives finished runs: a metadata JSON plus the CSV
// output streams, one directory per run.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
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

type RunMetadata struct {
	ID           string             `json:"id"`
	RunName      string             `json:"run_name"`
	Timestamp    time.Time          `json:"timestamp"`
	StartDate    float64            `json:"start_date"`
	EndDate      float64            `json:"end_date"`
	TrackingDate float64            `json:"tracking_date,omitempty"`
	Finals       map[string]float64 `json:"finals,omitempty"`
}

// Save writes a run directory containing metadata.json, output.csv and,
// when non-empty, tracking.csv. Returns the generated run ID.
func (s *Store) Save(meta RunMetadata, outputCSV, trackingCSV []byte) (string, error) {
	runID := fmt.Sprintf("%s_%s", meta.RunName, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := os.WriteFile(filepath.Join(runDir, "output.csv"), outputCSV, 0644); err != nil {
		return "", err
	}
	if len(trackingCSV) > 0 {
		if err := os.WriteFile(filepath.Join(runDir, "tracking.csv"), trackingCSV, 0644); err != nil {
			return "", err
		}
	}
	return runID, nil
}

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
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSeries extracts one variable's time series from a run's output CSV.
func (s *Store) LoadSeries(runID, variable string) ([]float64, []float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "output.csv"))
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

	var years, values []float64
	for i := 1; i < len(records); i++ {
		rec := records[i]
		if len(rec) < 5 || rec[2] != variable {
			continue
		}
		year, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			continue
		}
		val, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			continue
		}
		years = append(years, year)
		values = append(values, val)
	}
	return years, values, nil
}
