package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/cosim/internal/analysis"
	"github.com/san-kum/cosim/internal/config"
	"github.com/san-kum/cosim/internal/metrics"
	"github.com/san-kum/cosim/internal/structural"
)

func testResult(name string) *analysis.Result {
	return &analysis.Result{
		Name:  name,
		Ratio: 4,
		Steps: 2,
		Times: []float64{0, 0.01, 0.02},
		Samples: []metrics.Sample{
			{Time: 0, Step: 0, Origin: structural.Snapshot{KineticEnergy: 0.1}},
			{Time: 0.01, Step: 1,
				Origin:            structural.Snapshot{KineticEnergy: 0.09, StrainEnergy: 0.01, InterfaceVelocity: 0.5, MaxDisplacement: 0.01},
				Destination:       structural.Snapshot{KineticEnergy: 0.004, InterfaceVelocity: 0.5},
				InterfaceMismatch: 1e-12},
			{Time: 0.02, Step: 2,
				Origin:      structural.Snapshot{KineticEnergy: 0.08, StrainEnergy: 0.015},
				Destination: structural.Snapshot{KineticEnergy: 0.005, StrainEnergy: 0.001, MaxDisplacement: 0.002}},
		},
		Metrics: map[string]float64{
			"energy":       0.1,
			"energy_drift": math.NaN(),
		},
		Duration: 3 * time.Millisecond,
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	cfg := config.GetPreset("subcycling")

	runID, err := st.Save(ctx, cfg, testResult("subcycling"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	parsed, err := uuid.Parse(runID)
	if err != nil {
		t.Fatalf("run id %q is not a uuid: %v", runID, err)
	}
	if parsed.Version() != 7 {
		t.Errorf("expected uuid v7, got v%d", parsed.Version())
	}

	meta, err := st.Load(ctx, runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Name != "subcycling" || meta.TimestepRatio != 4 || meta.Steps != 2 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.DestinationTimeStep != 0.0025 {
		t.Errorf("expected destination dt 0.0025, got %g", meta.DestinationTimeStep)
	}
	if meta.Metrics["energy"] != 0.1 {
		t.Errorf("expected energy 0.1, got %g", meta.Metrics["energy"])
	}
	if !math.IsNaN(meta.Metrics["energy_drift"]) {
		t.Errorf("expected NaN drift to survive, got %g", meta.Metrics["energy_drift"])
	}
	if meta.Elapsed != 3*time.Millisecond {
		t.Errorf("expected elapsed 3ms, got %v", meta.Elapsed)
	}

	prefix, err := st.Load(ctx, runID[:13])
	if err != nil || prefix.ID != runID {
		t.Errorf("prefix lookup: %v %v", prefix, err)
	}

	samples, err := st.LoadHistory(runID)
	if err != nil {
		t.Fatalf("load history failed: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	if samples[1].Origin.InterfaceVelocity != 0.5 || samples[1].InterfaceMismatch != 1e-12 {
		t.Errorf("unexpected sample: %+v", samples[1])
	}
	if samples[2].Destination.MaxDisplacement != 0.002 {
		t.Errorf("expected 0.002, got %g", samples[2].Destination.MaxDisplacement)
	}

	loaded, err := st.LoadConfig(runID)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if loaded.SolverSettings.TimestepRatio != 4 {
		t.Errorf("expected stored ratio 4, got %g", loaded.SolverSettings.TimestepRatio)
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	runs, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected empty index, got %d runs", len(runs))
	}

	for _, name := range []string{"first", "second"} {
		if _, err := st.Save(ctx, config.DefaultConfig(), testResult(name)); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	runs, err = st.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Name != "second" {
		t.Errorf("expected newest first, got %s", runs[0].Name)
	}
	names := MetricNames(runs)
	if len(names) != 2 || names[0] != "energy" {
		t.Errorf("unexpected metric names %v", names)
	}
}

func TestStoreReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	id, err := st.Save(ctx, config.DefaultConfig(), testResult("kept"))
	if err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer st.Close()
	if _, err := st.Load(ctx, id); err != nil {
		t.Errorf("run lost after reopen: %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	id, err := st.Save(ctx, config.DefaultConfig(), testResult("gone"))
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := st.Load(ctx, id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := st.LoadHistory(id); err == nil {
		t.Error("expected run directory removed")
	}
	if err := st.Delete(ctx, id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound on second delete, got %v", err)
	}
}

func TestStoreSaveAllNaNMetrics(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	res := testResult("from_rest")
	res.Metrics = map[string]float64{"energy_drift": math.NaN(), "interface_mismatch": math.NaN()}

	id, err := st.Save(ctx, config.DefaultConfig(), res)
	if err != nil {
		t.Fatalf("save with NaN metrics failed: %v", err)
	}
	runs, err := st.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != id {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	for name, v := range runs[0].Metrics {
		if !math.IsNaN(v) {
			t.Errorf("%s: expected NaN, got %g", name, v)
		}
	}
}

func TestStoreSaveFailureLeavesNoRunDir(t *testing.T) {
	st := openStore(t)
	st.db.Close()

	if _, err := st.Save(context.Background(), config.DefaultConfig(), testResult("orphan")); err == nil {
		t.Fatal("expected save to fail on a closed index")
	}
	entries, err := os.ReadDir(st.BaseDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			t.Errorf("run directory %s left behind", e.Name())
		}
	}
}

func TestExportJSON(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	id, err := st.Save(ctx, config.DefaultConfig(), testResult("export"))
	if err != nil {
		t.Fatal(err)
	}
	meta, err := st.Load(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "run.json")
	if err := st.ExportRun(meta, path); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	samples, _ := st.LoadHistory(id)
	var buf bytes.Buffer
	if err := ExportJSON(&buf, meta, samples); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if data.Run.ID != id || len(data.Times) != 3 {
		t.Errorf("unexpected export: %+v", data.Run)
	}
	if _, ok := data.Run.Metrics["energy_drift"]; ok {
		t.Error("NaN metric should be dropped")
	}
}
