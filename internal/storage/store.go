// Package storage keeps solver runs on disk. Every run owns a directory
// <base>/<kind>_<id8>/ holding metadata.json and whatever dumps the solver
// produced there (hotmap.csv, hotmap.vtk, probes.csv, *.raw.sz).
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRunNotFound = errors.New("storage: run not found")
	ErrBadKind     = errors.New("storage: run kind must be a non-empty path-safe name")
)

const (
	MetadataFile = "metadata.json"
	HotmapFile   = "hotmap.csv"
	VTKFile      = "hotmap.vtk"
	ProbesFile   = "probes.csv"
	RawFile      = "temperatures.raw.sz"
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

func (s *Store) BaseDir() string { return s.baseDir }

// Run is a run directory that has been created but not necessarily saved.
type Run struct {
	ID      string
	Kind    string
	Dir     string
	Created time.Time
}

// Path joins name onto the run directory.
func (r *Run) Path(name string) string { return filepath.Join(r.Dir, name) }

type RunMetadata struct {
	ID         string             `json:"id"`
	Kind       string             `json:"kind"`
	Model      string             `json:"model"`
	Elements   int                `json:"elements"`
	Timestamp  time.Time          `json:"timestamp"`
	Elapsed    float64            `json:"elapsed_seconds"`
	Unit       string             `json:"unit"`
	Min        float64            `json:"min"`
	Max        float64            `json:"max"`
	Converged  *bool              `json:"converged,omitempty"`
	Residual   float64            `json:"residual,omitempty"`
	Iterations int                `json:"iterations,omitempty"`
	Duration   float64            `json:"duration,omitempty"`
	Integrator string             `json:"integrator,omitempty"`
	MOROrder   int                `json:"mor_order,omitempty"`
	Probes     []int              `json:"probes,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Files      []string           `json:"files,omitempty"`
}

// Create allocates a fresh run directory for a solve of the given kind.
func (s *Store) Create(kind string) (*Run, error) {
	if kind == "" || strings.ContainsAny(kind, `/\_.`) {
		return nil, fmt.Errorf("%w: %q", ErrBadKind, kind)
	}
	id := fmt.Sprintf("%s_%s", kind, uuid.New().String()[:8])
	dir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	return &Run{ID: id, Kind: kind, Dir: dir, Created: time.Now()}, nil
}

// Save writes the run metadata. Files lists the dumps present in the run
// directory at the time of the call.
func (s *Store) Save(run *Run, meta RunMetadata) error {
	meta.ID = run.ID
	meta.Kind = run.Kind
	if meta.Timestamp.IsZero() {
		meta.Timestamp = run.Created
	}

	entries, err := os.ReadDir(run.Dir)
	if err != nil {
		return err
	}
	meta.Files = meta.Files[:0]
	for _, e := range entries {
		if !e.IsDir() && e.Name() != MetadataFile {
			meta.Files = append(meta.Files, e.Name())
		}
	}

	f, err := os.Create(run.Path(MetadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// List returns the saved runs, newest first. Directories without readable
// metadata are skipped.
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
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(s.path(runID, MetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// Resolve accepts a full run id or a unique prefix of one.
func (s *Store) Resolve(prefix string) (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	var match string
	for _, r := range runs {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("run prefix %q is ambiguous", prefix)
			}
			match = r.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	}
	return match, nil
}

func (s *Store) LoadProbes(runID string) (*ProbeSeries, error) {
	return ReadProbes(s.path(runID, ProbesFile))
}

func (s *Store) LoadHotmap(runID string) ([]float64, error) {
	return ReadHotmap(s.path(runID, HotmapFile))
}

func (s *Store) path(runID, name string) string {
	return filepath.Join(s.baseDir, runID, name)
}
