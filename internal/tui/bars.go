// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

// BandSource is the read side of the analysis processor.
type BandSource interface {
	IsReady() bool
	GetFrequencyWindowMagnitudes() []float64
}

var (
	barChars = []rune(" ▁▂▃▄▅▆▇█")

	// Low bands warm, high bands cool.
	barPalette = []lipgloss.Color{
		"#F25D94", "#EE6FF8", "#C77DFF", "#9D8CFF",
		"#7B9CFF", "#5AB0F0", "#3FC5D8", "#25A065",
	}

	capStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5"))
	pausedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94")).Bold(true)

	quitKeys  = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	pauseKeys = key.NewBinding(key.WithKeys("p", " "))
)

const (
	capChar       = '▔'
	capFrequency  = 6.0
	capDamping    = 0.4
	minBarsHeight = 4
)

type barsTickMsg time.Time

// springField animates one value per bar toward a target.
type springField struct {
	spring harmonica.Spring
	pos    []float64
	vel    []float64
}

func newSpringField(fps int, frequency, damping float64) springField {
	return springField{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

func (s *springField) resize(n int) {
	if len(s.pos) == n {
		return
	}
	s.pos = make([]float64, n)
	s.vel = make([]float64, n)
}

func (s *springField) step(i int, target float64) float64 {
	p, v := s.spring.Update(s.pos[i], s.vel[i], target)
	s.pos[i] = p
	s.vel[i] = v
	return p
}

// BarsModel renders the band vector as bars mirrored around a centre line,
// each topped by a spring-animated peak cap.
type BarsModel struct {
	src    BandSource
	fps    int
	width  int
	height int

	bands  []float64
	caps   []float64
	peaks  springField
	paused bool
	frames uint64
}

// NewBarsModel creates a renderer that polls src fps times per second.
func NewBarsModel(src BandSource, fps int) BarsModel {
	fps = max(fps, 1)
	return BarsModel{
		src:   src,
		fps:   fps,
		peaks: newSpringField(fps, capFrequency, capDamping),
	}
}

func (m BarsModel) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg {
		return barsTickMsg(t)
	})
}

// Init starts the redraw clock.
func (m BarsModel) Init() tea.Cmd {
	return m.tick()
}

// Update polls the source on every tick and handles keys.
func (m BarsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, quitKeys):
			return m, tea.Quit
		case key.Matches(msg, pauseKeys):
			m.paused = !m.paused
		}
		return m, nil

	case barsTickMsg:
		if !m.paused {
			m.poll()
		}
		return m, m.tick()
	}

	return m, nil
}

// poll takes a fresh vector when one is ready and advances the caps either way.
func (m *BarsModel) poll() {
	if m.src.IsReady() {
		m.bands = m.src.GetFrequencyWindowMagnitudes()
		m.frames++
	}

	m.peaks.resize(len(m.bands))
	if len(m.caps) != len(m.bands) {
		m.caps = make([]float64, len(m.bands))
	}
	for i, v := range m.bands {
		v = clamp01(v)
		// Caps spring toward the bar and never sit below it.
		m.caps[i] = max(clamp01(m.peaks.step(i, v)), v)
	}
}

// Paused reports whether polling is suspended.
func (m BarsModel) Paused() bool { return m.paused }

// Frames returns the number of band vectors consumed.
func (m BarsModel) Frames() uint64 { return m.frames }

// View renders the title, the mirrored bars and the help line.
func (m BarsModel) View() string {
	title := titleStyle.Render("barviz")
	if m.paused {
		title += " " + pausedStyle.Render("paused")
	}
	help := infoStyle.Render(fmt.Sprintf("%d bands • p: Pause • q: Quit", len(m.bands)))

	if len(m.bands) == 0 {
		return fmt.Sprintf("%s\n\nWaiting for audio...\n\n%s", title, help)
	}

	height := max(m.height-4, minBarsHeight)
	width := max(m.width, len(m.bands))
	rows := RenderBars(m.bands, m.caps, width, height)

	return fmt.Sprintf("%s\n\n%s\n%s", title, strings.Join(rows, "\n"), help)
}

// RenderBars draws values in [0, 1] as columns growing up from the centre
// row with a mirrored reflection below it. caps may be nil or shorter than
// values. The result has height rows, rounded down to an even count.
func RenderBars(values, caps []float64, width, height int) []string {
	n := len(values)
	half := max(height/2, 1)
	if n == 0 {
		return make([]string, half*2)
	}

	colWidth := max(width/n, 1)
	gap := 1
	if colWidth <= 1 {
		gap = 0
	}
	cell := max(colWidth-gap, 1)

	upper := make([]string, half)
	lower := make([]string, half)

	for row := range half {
		fromCentre := float64(half - 1 - row)

		var top, bottom strings.Builder
		for b, v := range values {
			if b > 0 && gap > 0 {
				top.WriteByte(' ')
				bottom.WriteByte(' ')
			}

			level := clamp01(v) * float64(half)
			style := lipgloss.NewStyle().Foreground(barPalette[b*len(barPalette)/n])

			ch := ' '
			switch {
			case level >= fromCentre+1:
				ch = barChars[len(barChars)-1]
			case level > fromCentre:
				ch = barChars[int((level-fromCentre)*float64(len(barChars)-1))]
			}

			capped := false
			if ch == ' ' && b < len(caps) {
				capRow := math.Ceil(clamp01(caps[b])*float64(half)) - 1
				capped = capRow == fromCentre && caps[b] > 0
			}

			switch {
			case capped:
				top.WriteString(capStyle.Render(strings.Repeat(string(capChar), cell)))
			default:
				top.WriteString(style.Render(strings.Repeat(string(ch), cell)))
			}

			// The reflection only shows cells at least half full.
			mirror := ' '
			if level >= fromCentre+0.5 {
				mirror = barChars[len(barChars)-1]
			}
			bottom.WriteString(style.Faint(true).Render(strings.Repeat(string(mirror), cell)))
		}

		upper[row] = top.String()
		lower[half-1-row] = bottom.String()
	}

	return append(upper, lower...)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}

// NewBarsProgram wraps the bar renderer in a full-screen program. Callers
// stop it with Quit during shutdown.
func NewBarsProgram(src BandSource, fps int) *tea.Program {
	return tea.NewProgram(NewBarsModel(src, fps), tea.WithAltScreen())
}
