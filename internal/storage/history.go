package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/san-kum/cosim/internal/analysis"
	"github.com/san-kum/cosim/internal/metrics"
	"github.com/san-kum/cosim/internal/structural"
)

// HistoryColumns is the header of history.csv.
var HistoryColumns = []string{
	"time", "step",
	"origin_kinetic", "origin_strain", "origin_interface_velocity", "origin_max_displacement",
	"destination_kinetic", "destination_strain", "destination_interface_velocity", "destination_max_displacement",
	"interface_mismatch",
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }

func snapshotFields(s structural.Snapshot) []string {
	return []string{
		formatFloat(s.KineticEnergy),
		formatFloat(s.StrainEnergy),
		formatFloat(s.InterfaceVelocity),
		formatFloat(s.MaxDisplacement),
	}
}

func writeHistory(path string, result *analysis.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(HistoryColumns); err != nil {
		return err
	}
	for _, s := range result.Samples {
		row := []string{formatFloat(s.Time), strconv.Itoa(s.Step)}
		row = append(row, snapshotFields(s.Origin)...)
		row = append(row, snapshotFields(s.Destination)...)
		row = append(row, formatFloat(s.InterfaceMismatch))
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// LoadHistory reads the samples of a run back. Snapshot fields that are
// not stored stay zero.
func (s *Store) LoadHistory(id string) ([]metrics.Sample, error) {
	f, err := os.Open(filepath.Join(s.RunDir(id), HistoryFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(HistoryColumns)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []metrics.Sample{}, nil
	}

	samples := make([]metrics.Sample, 0, len(records)-1)
	for line, rec := range records[1:] {
		v := make([]float64, len(rec))
		for j, field := range rec {
			if v[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("%s line %d column %s: %w", HistoryFile, line+2, HistoryColumns[j], err)
			}
		}
		samples = append(samples, metrics.Sample{
			Time: v[0],
			Step: int(v[1]),
			Origin: structural.Snapshot{
				Domain:            "origin",
				Time:              v[0],
				KineticEnergy:     v[2],
				StrainEnergy:      v[3],
				InterfaceVelocity: v[4],
				MaxDisplacement:   v[5],
			},
			Destination: structural.Snapshot{
				Domain:            "destination",
				Time:              v[0],
				KineticEnergy:     v[6],
				StrainEnergy:      v[7],
				InterfaceVelocity: v[8],
				MaxDisplacement:   v[9],
			},
			InterfaceMismatch: v[10],
		})
	}
	return samples, nil
}
