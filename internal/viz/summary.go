package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/galevo/internal/sim"
)

// RenderResult summarises a finished run in a panel.
func RenderResult(title string, res *sim.Result) string {
	var s strings.Builder
	s.WriteString(HeaderStyle.Render(title) + "\n\n")

	row := func(label, value string) {
		s.WriteString(MetricLabel.Render(label) + MetricValue.Render(value) + "\n")
	}

	row("snapshots", fmt.Sprintf("%d", res.Snapshots))
	row("duration", res.Duration.Round(1e6).String())
	row("galaxy evaluations", fmt.Sprintf("%d", res.GalaxyEvaluations))
	row("starburst evaluations", fmt.Sprintf("%d", res.StarburstEvaluations))
	row("integrator warnings", fmt.Sprintf("%d", res.Warnings))
	if res.FailedGalaxies > 0 {
		s.WriteString(MetricLabel.Render("failed galaxies") + StatusFailed.Render(fmt.Sprintf("%d", res.FailedGalaxies)) + "\n")
	}

	if res.Log != nil && res.Log.Len() > 0 {
		records := res.Log.Records()
		last := records[len(records)-1]
		s.WriteString("\n")
		row("final redshift", fmt.Sprintf("%.3f", last.Redshift))
		row("galaxies", fmt.Sprintf("%d", last.Galaxies))
		row("stellar mass", fmt.Sprintf("%.4g Msun", last.MStars.Mass))
		row("cold gas", fmt.Sprintf("%.4g Msun", last.MCold.Mass))
		row("sfr", fmt.Sprintf("%.4g Msun/Gyr", last.SFRDisk+last.SFRBurst))
		row("lost baryons", fmt.Sprintf("%.4g Msun", res.Log.TotalLostBaryons()))

		if sfr, err := res.Log.Series("sfr"); err == nil {
			s.WriteString("\n" + MetricLabel.Render("sfr history") + SparklineChart(sfr, 40) + "\n")
		}
	}

	if len(res.Metrics) > 0 {
		s.WriteString("\n")
		names := make([]string, 0, len(res.Metrics))
		for name := range res.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			row(name, fmt.Sprintf("%.6g", res.Metrics[name]))
		}
	}

	return GlassPanel.Render(s.String())
}
