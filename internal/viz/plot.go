package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/galevo/internal/evolve"
)

// DefaultSeries are the quantities plotted when none are asked for.
var DefaultSeries = []string{"mstars", "sfr", "mcold", "mhot_halo"}

type PlotOptions struct {
	Width, Height int
	// LogScale plots log10 of the series. Non-positive values are drawn at
	// the smallest positive value.
	LogScale bool
}

func (o PlotOptions) withDefaults() PlotOptions {
	if o.Width <= 0 {
		o.Width = 80
	}
	if o.Height <= 0 {
		o.Height = 10
	}
	return o
}

// PlotSeries renders one graph per series name, stacked.
func PlotSeries(log *evolve.Log, names []string, opts PlotOptions) (string, error) {
	opts = opts.withDefaults()
	if len(names) == 0 {
		names = DefaultSeries
	}
	if log.Len() == 0 {
		return "", fmt.Errorf("no data to plot")
	}

	var b strings.Builder
	for _, name := range names {
		data, err := log.Series(name)
		if err != nil {
			return "", err
		}
		b.WriteString(plot(data, name, opts))
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

func plot(data []float64, name string, opts PlotOptions) string {
	caption := name
	if opts.LogScale {
		data = log10(data)
		caption = "log10 " + name
	}
	// asciigraph needs two points to draw a line
	if len(data) == 1 {
		data = []float64{data[0], data[0]}
	}
	return asciigraph.Plot(data,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.Caption(caption),
	)
}

func log10(data []float64) []float64 {
	floor := math.Inf(1)
	for _, v := range data {
		if v > 0 && v < floor {
			floor = v
		}
	}
	if math.IsInf(floor, 1) {
		floor = 1
	}

	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = math.Log10(math.Max(v, floor))
	}
	return out
}
