package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/san-kum/galevo/internal/evolve"
	"github.com/san-kum/galevo/internal/galaxy"
	"github.com/san-kum/galevo/internal/integrators"
)

func record(stars, hot, lost, sfr float64) evolve.Record {
	return evolve.Record{
		MStars:         galaxy.BaryonBase{Mass: stars},
		MHotHalo:       galaxy.BaryonBase{Mass: hot},
		LostBaryonMass: lost,
		SFRDisk:        sfr,
	}
}

func TestBaryonDrift(t *testing.T) {
	m := NewBaryonDrift()

	m.Observe(record(1, 9, 2, 0))
	// two units left the tree at the first snapshot
	m.Observe(record(2, 6, 0, 0))
	if m.Value() != 0 {
		t.Errorf("expected no drift, got %v", m.Value())
	}

	m.Observe(record(2, 7, 0, 0))
	if math.Abs(m.Value()-0.1) > 1e-12 {
		t.Errorf("expected drift 0.1, got %v", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("reset did not clear drift")
	}
}

func TestPeakSFRAndGrowth(t *testing.T) {
	peak := NewPeakSFR()
	growth := NewStellarMassGrowth()

	for _, r := range []evolve.Record{record(0, 0, 0, 1), record(2, 0, 0, 5), record(6, 0, 0, 3)} {
		peak.Observe(r)
		growth.Observe(r)
	}
	if peak.Value() != 5 {
		t.Errorf("peak sfr = %v", peak.Value())
	}
	if growth.Value() != 3 {
		t.Errorf("growth = %v", growth.Value())
	}

	growth.Reset()
	if growth.Value() != 0 {
		t.Errorf("growth after reset = %v", growth.Value())
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.IntegratorWarning(integrators.WarnMaxSteps)
	r.IntegratorWarning(integrators.WarnMaxSteps)
	r.IntegratorWarning(integrators.WarnStepTooSmall)
	r.ObserveEvaluations("galaxy", 120)
	r.ObserveSnapshot(record(5, 0, 3, 2), 10*time.Millisecond)

	if r.Warnings() != 3 {
		t.Errorf("warnings = %d", r.Warnings())
	}
	if v := testutil.ToFloat64(r.warnings.WithLabelValues("max_steps")); v != 2 {
		t.Errorf("max_steps warnings = %v", v)
	}
	if v := testutil.ToFloat64(r.lostBaryons); v != 3 {
		t.Errorf("lost baryons = %v", v)
	}

	snap, err := r.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap["galevo_ode_evaluations_total{kind=galaxy}"] != 120 {
		t.Errorf("snapshot = %v", snap)
	}
	if snap["galevo_snapshot_duration_seconds_count"] != 1 {
		t.Errorf("histogram count missing: %v", snap)
	}
}
