// Package viz renders a running sampling job in the terminal: one
// update per closed block, with the energy trace plotted as the run
// progresses.
package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pimc/internal/stats"
)

const historyCapacity = 600

// BlockMsg carries one closed block's averages from the sampling
// goroutine into the TUI.
type BlockMsg stats.BlockAverage

// DoneMsg signals the end of the run.
type DoneMsg struct {
	Err error
}

// Model is the bubbletea model for a live run.
type Model struct {
	runID       string
	modelName   string
	totalBlocks int

	msgs   <-chan tea.Msg
	blocks []stats.BlockAverage
	eHist  []float64

	done bool
	err  error
}

// NewModel wires the TUI to a message channel fed by the sampler's
// OnBlock callback.
func NewModel(runID, modelName string, totalBlocks int, msgs <-chan tea.Msg) Model {
	return Model{
		runID:       runID,
		modelName:   modelName,
		totalBlocks: totalBlocks,
		msgs:        msgs,
		blocks:      make([]stats.BlockAverage, 0, totalBlocks),
		eHist:       make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd {
	return m.wait()
}

func (m Model) wait() tea.Cmd {
	return func() tea.Msg {
		return <-m.msgs
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case BlockMsg:
		m.blocks = append(m.blocks, stats.BlockAverage(msg))
		m.eHist = append(m.eHist, msg.EFull)
		if len(m.eHist) > historyCapacity {
			m.eHist = m.eHist[1:]
		}
		return m, m.wait()
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("pimc live — %s (%s)", m.runID, m.modelName)))
	b.WriteString("\n")

	var latest stats.BlockAverage
	if len(m.blocks) > 0 {
		latest = m.blocks[len(m.blocks)-1]
	}

	rows := []string{
		row("block", fmt.Sprintf("%d / %d", len(m.blocks), m.totalBlocks)),
		row("move ratio", fmt.Sprintf("%.4f", latest.MoveRatio)),
		row("e/N (cut)", fmt.Sprintf("%.6f", latest.ECut)),
		row("e/N (full)", fmt.Sprintf("%.6f", latest.EFull)),
	}
	b.WriteString(statsStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	if len(m.eHist) > 1 {
		graph := asciigraph.Plot(m.eHist,
			asciigraph.Height(10),
			asciigraph.Width(70),
			asciigraph.Caption("e/N (full) per block"),
		)
		b.WriteString(graphStyle.Render(graph))
		b.WriteString("\n")
	}

	if m.done {
		if m.err != nil {
			b.WriteString(errStyle.Render(fmt.Sprintf("run failed: %v", m.err)))
		} else {
			b.WriteString(headerStyle.Render("run complete"))
		}
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("q: quit"))
	b.WriteString("\n")
	return b.String()
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}
