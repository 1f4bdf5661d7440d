package storage

import (
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/san-kum/cosim/internal/metrics"
)

type ExportData struct {
	Run     RunMetadata      `json:"run"`
	Times   []float64        `json:"times"`
	Samples []metrics.Sample `json:"samples"`
}

// ExportJSON writes the run metadata and its history to w.
func ExportJSON(w io.Writer, meta *RunMetadata, samples []metrics.Sample) error {
	data := ExportData{
		Run:     *meta,
		Times:   make([]float64, len(samples)),
		Samples: samples,
	}
	for i, s := range samples {
		data.Times[i] = s.Time
	}
	// JSON has no NaN or Inf
	data.Run.Metrics = make(map[string]float64, len(meta.Metrics))
	for name, v := range meta.Metrics {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			data.Run.Metrics[name] = v
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ExportRun exports a stored run to path, or to stdout when path is "-".
func (s *Store) ExportRun(meta *RunMetadata, path string) error {
	samples, err := s.LoadHistory(meta.ID)
	if err != nil {
		return err
	}
	if path == "-" {
		return ExportJSON(os.Stdout, meta, samples)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := ExportJSON(f, meta, samples); err != nil {
		return err
	}
	return f.Close()
}
