package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/galevo/internal/evolve"
	"github.com/san-kum/galevo/internal/sim"
)

var (
	statsStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(46)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

var liveSeries = []string{"mstars", "sfr", "mcold", "mhot_halo", "mejected_halo", "galaxies", "lost_baryons"}

type TickMsg time.Time

// SnapshotMsg carries one evolved snapshot into the live view.
type SnapshotMsg struct {
	Record evolve.Record
	Stats  evolve.TransferStats
}

// DoneMsg ends the run shown by the live view.
type DoneMsg struct {
	Result *sim.Result
	Err    error
}

// LiveModel follows a run in progress. It only reads messages; the run
// itself happens elsewhere and reports through Observer.
type LiveModel struct {
	title     string
	total     int
	log       *evolve.Log
	last      evolve.Record
	lastStats evolve.TransferStats

	series   int
	logScale bool
	showHelp bool
	frame    int

	done   bool
	result *sim.Result
	err    error
}

// NewLiveModel expects total snapshots to be evolved.
func NewLiveModel(title string, total int) LiveModel {
	return LiveModel{title: title, total: total, log: evolve.NewLog(), logScale: true}
}

// Observer forwards every snapshot of a run to p.
func Observer(p *tea.Program) sim.Observer {
	return sim.ObserverFunc(func(r evolve.Record, stats evolve.TransferStats) {
		p.Send(SnapshotMsg{Record: r, Stats: stats})
	})
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m LiveModel) Init() tea.Cmd { return tick() }

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.series = (m.series + 1) % len(liveSeries)
		case "l":
			m.logScale = !m.logScale
		case "?":
			m.showHelp = !m.showHelp
		}
	case SnapshotMsg:
		// the log rejects out of order snapshots; drop them
		if err := m.log.Append(msg.Record); err == nil {
			m.last, m.lastStats = msg.Record, msg.Stats
		}
	case DoneMsg:
		m.done, m.result, m.err = true, msg.Result, msg.Err
	case TickMsg:
		if !m.done {
			m.frame++
			return m, tick()
		}
	}
	return m, nil
}

// Result is the run result once DoneMsg arrived.
func (m LiveModel) Result() (*sim.Result, error) { return m.result, m.err }

func (m LiveModel) View() string {
	var s strings.Builder
	s.WriteString(HeaderStyle.Render(strings.ToUpper(m.title)) + "\n")

	switch {
	case m.err != nil:
		s.WriteString(StatusFailed.Render("FAILED: "+m.err.Error()) + "\n\n")
	case m.done:
		s.WriteString(StatusDone.Render("DONE") + "\n\n")
	default:
		s.WriteString(StatusRunning.Render(AnimatedSpinner(m.frame)+" RUNNING") + "\n\n")
	}

	n := m.log.Len()
	percent := 0.0
	if m.total > 0 {
		percent = float64(n) / float64(m.total)
	}
	s.WriteString(ProgressBar(percent, 30) + fmt.Sprintf(" %d/%d\n\n", n, m.total))

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	if n > 0 {
		r := m.last
		row("Snapshot", fmt.Sprintf("%d", r.Snapshot))
		row("Redshift", fmt.Sprintf("%.3f", r.Redshift))
		row("Galaxies", fmt.Sprintf("%d", r.Galaxies))
		row("Stars", fmt.Sprintf("%.4g", r.MStars.Mass))
		row("Cold gas", fmt.Sprintf("%.4g", r.MCold.Mass))
		row("Hot halo", fmt.Sprintf("%.4g", r.MHotHalo.Mass))
		row("SFR", fmt.Sprintf("%.4g", r.SFRDisk+r.SFRBurst))
		row("Transferred", fmt.Sprintf("%d", m.lastStats.Transferred))
		row("Lost", fmt.Sprintf("%.4g", m.log.TotalLostBaryons()))
	}
	s.WriteString(helpStyle.Render("─────────────────────\nTAB:Series L:Log ?:Help Q:Quit"))
	stats := statsStyle.Render(s.String())

	graph := Subtle.Render("waiting for the first snapshot")
	if n > 0 {
		name := liveSeries[m.series]
		data, _ := m.log.Series(name)
		graph = GraphStyle.Render(plot(data, name, PlotOptions{Width: 50, Height: 12, LogScale: m.logScale}))
	}

	view := lipgloss.JoinHorizontal(lipgloss.Top, graph, stats)
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Tab      - Cycle plotted series     ║
║  L        - Toggle log scale         ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝
` + "\n\n" + view
	}
	return view
}
