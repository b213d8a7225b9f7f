package storage

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
)

type ExportData struct {
	Run    RunMetadata  `json:"run"`
	Hotmap []float64    `json:"hotmap,omitempty"`
	Probes *ProbeSeries `json:"probes,omitempty"`
}

// Export writes a run and its dumps as a single JSON document.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	data := ExportData{Run: *meta}

	if data.Hotmap, err = s.LoadHotmap(runID); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if data.Probes, err = s.LoadProbes(runID); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ExportFile is Export into a file at path.
func (s *Store) ExportFile(path, runID string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Export(f, runID)
}
