package evolve

import (
	"fmt"
	"sort"
	"sync"
)

// Log is the append-only, snapshot ordered accounting log of a run. It is
// safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	records []Record
}

func NewLog() *Log {
	return &Log{}
}

// Append adds r. Snapshots must strictly increase.
func (l *Log) Append(r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.records); n > 0 && l.records[n-1].Snapshot >= r.Snapshot {
		return fmt.Errorf("accounting log: snapshot %d appended after %d", r.Snapshot, l.records[n-1].Snapshot)
	}
	l.records = append(l.records, r)
	return nil
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of every record in snapshot order.
func (l *Log) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

func (l *Log) Record(snapshot int) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := sort.Search(len(l.records), func(i int) bool { return l.records[i].Snapshot >= snapshot })
	if i < len(l.records) && l.records[i].Snapshot == snapshot {
		return l.records[i], true
	}
	return Record{}, false
}

// LostBaryons is the baryon mass that left the tree at snapshot.
func (l *Log) LostBaryons(snapshot int) float64 {
	r, _ := l.Record(snapshot)
	return r.LostBaryonMass
}

// TotalLostBaryons sums the lost baryon mass over all snapshots.
func (l *Log) TotalLostBaryons() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0.0
	for _, r := range l.records {
		total += r.LostBaryonMass
	}
	return total
}

var seriesFields = map[string]func(Record) float64{
	"redshift":      func(r Record) float64 { return r.Redshift },
	"galaxies":      func(r Record) float64 { return float64(r.Galaxies) },
	"mdm":           func(r Record) float64 { return r.MDM.Mass },
	"mstars":        func(r Record) float64 { return r.MStars.Mass },
	"mcold":         func(r Record) float64 { return r.MCold.Mass },
	"mhot_halo":     func(r Record) float64 { return r.MHotHalo.Mass },
	"mcold_halo":    func(r Record) float64 { return r.MColdHalo.Mass },
	"mejected_halo": func(r Record) float64 { return r.MEjectedHalo.Mass },
	"mhi":           func(r Record) float64 { return r.MHI.Mass },
	"mh2":           func(r Record) float64 { return r.MH2.Mass },
	"mbh":           func(r Record) float64 { return r.MBH.Mass },
	"sfr_disk":      func(r Record) float64 { return r.SFRDisk },
	"sfr_burst":     func(r Record) float64 { return r.SFRBurst },
	"sfr":           func(r Record) float64 { return r.SFRDisk + r.SFRBurst },
	"lost_baryons":  func(r Record) float64 { return r.LostBaryonMass },
	"baryons":       func(r Record) float64 { return r.TotalBaryons() },
}

// SeriesNames lists the quantities accepted by Series.
func SeriesNames() []string {
	names := make([]string, 0, len(seriesFields))
	for n := range seriesFields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Series extracts one quantity across all records.
func (l *Log) Series(name string) ([]float64, error) {
	fn, ok := seriesFields[name]
	if !ok {
		return nil, fmt.Errorf("unknown series: %s", name)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]float64, len(l.records))
	for i, r := range l.records {
		out[i] = fn(r)
	}
	return out, nil
}
