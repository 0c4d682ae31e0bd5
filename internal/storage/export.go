package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/san-kum/galevo/internal/evolve"
)

type ExportData struct {
	Run     RunMetadata     `json:"run"`
	Records []evolve.Record `json:"records"`
}

func ExportJSON(w io.Writer, meta RunMetadata, records []evolve.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Run: meta, Records: records})
}

// ExportCSV writes one row per snapshot with every log series as a column.
func ExportCSV(w io.Writer, records []evolve.Record) error {
	log := evolve.NewLog()
	for _, r := range records {
		if err := log.Append(r); err != nil {
			return err
		}
	}

	names := evolve.SeriesNames()
	columns := make([][]float64, len(names))
	for i, name := range names {
		series, err := log.Series(name)
		if err != nil {
			return err
		}
		columns[i] = series
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"snapshot"}, names...)); err != nil {
		return err
	}
	for row, r := range records {
		line := make([]string, 0, len(names)+1)
		line = append(line, strconv.Itoa(r.Snapshot))
		for _, col := range columns {
			line = append(line, strconv.FormatFloat(col[row], 'g', 10, 64))
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
