package ui

import (
	"math"
	"strings"

	"github.com/0xlemi/tunetrace/internal/timeline"
	"github.com/charmbracelet/lipgloss"
)

const (
	gutterWidth = 4
	gridColor   = "#444444"
)

type cell struct {
	glyph rune
	color string
}

// plot is a character grid covering one alignment window.
type plot struct {
	cells  [][]cell
	window timeline.Window
	notes  timeline.Range
}

func newPlot(a timeline.Alignment, width, rows int) *plot {
	cells := make([][]cell, rows)
	for y := range cells {
		cells[y] = make([]cell, width)
		for x := range cells[y] {
			cells[y][x] = cell{glyph: ' '}
		}
	}
	return &plot{cells: cells, window: a.Window, notes: a.NoteRange}
}

func (p *plot) width() int { return len(p.cells[0]) }
func (p *plot) rows() int  { return len(p.cells) }

// column maps a time to a column, -1 when outside the window.
func (p *plot) column(t float64) int {
	if p.window.Duration <= 0 || !p.window.Contains(t) {
		return -1
	}
	return int(math.Round((t - p.window.Start) / p.window.Duration * float64(p.width()-1)))
}

// row maps a note number to a row, highest note on top.
func (p *plot) row(n float64) int {
	span := p.notes.High - p.notes.Low
	if span <= 0 || math.IsNaN(n) {
		return -1
	}
	y := int(math.Round((p.notes.High - n) / span * float64(p.rows()-1)))
	if y < 0 || y >= p.rows() {
		return -1
	}
	return y
}

func (p *plot) set(x, y int, c cell) {
	if x >= 0 && y >= 0 && x < p.width() && y < p.rows() {
		p.cells[y][x] = c
	}
}

// trace draws one segment, bridging skipped columns linearly. Segments
// are drawn separately so gaps stay open.
func (p *plot) trace(segment []timeline.NotePoint, color string) {
	prevX, prevY := -1, -1
	for _, pt := range segment {
		x, y := p.column(pt.Time), p.row(pt.Note)
		if x < 0 || y < 0 {
			prevX = -1
			continue
		}
		if prevX >= 0 && x-prevX > 1 {
			for i := prevX + 1; i < x; i++ {
				f := float64(i-prevX) / float64(x-prevX)
				p.set(i, prevY+int(math.Round(f*float64(y-prevY))), cell{glyph: '·', color: color})
			}
		}
		p.set(x, y, cell{glyph: '•', color: color})
		prevX, prevY = x, y
	}
}

// renderContour draws the note grid, every visible series and the time
// axis of a.
func renderContour(a timeline.Alignment, colors map[string]string, width, rows int) string {
	p := newPlot(a, width, rows)

	labels := make([]string, rows)
	for _, g := range a.Grid {
		y := p.row(float64(g.Note))
		if y < 0 {
			continue
		}
		if g.IsC {
			for x := 0; x < width; x++ {
				p.set(x, y, cell{glyph: '┄', color: gridColor})
			}
		}
		if g.Labeled && labels[y] == "" {
			labels[y] = g.Label
		}
	}

	for _, s := range a.Tracks {
		for _, seg := range s.Segments {
			p.trace(seg, colors[s.ID])
		}
	}
	if a.Recording != nil {
		for _, seg := range a.Recording.Segments {
			p.trace(seg, colors[a.Recording.ID])
		}
	}

	var b strings.Builder
	for y, line := range p.cells {
		b.WriteString(infoStyle.Render(padRight(labels[y], gutterWidth)))
		b.WriteString(renderCells(line))
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat(" ", gutterWidth))
	b.WriteString(infoStyle.Render(axisLine(p, a.Ticks)))
	return b.String()
}

// renderCells styles runs of equal color together.
func renderCells(line []cell) string {
	var b, run strings.Builder
	color := ""
	flush := func() {
		if run.Len() == 0 {
			return
		}
		if color == "" {
			b.WriteString(run.String())
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(run.String()))
		}
		run.Reset()
	}
	for _, c := range line {
		if c.color != color {
			flush()
			color = c.color
		}
		run.WriteRune(c.glyph)
	}
	flush()
	return b.String()
}

// axisLine places tick labels under their columns, skipping labels that
// would overlap the previous one.
func axisLine(p *plot, ticks []timeline.Tick) string {
	line := []rune(strings.Repeat(" ", p.width()))
	next := 0
	for _, t := range ticks {
		x := p.column(t.Time)
		label := []rune(t.Label)
		if x < 0 || x < next {
			continue
		}
		x = min(x, len(line)-len(label))
		if x < next || x < 0 {
			continue
		}
		copy(line[x:], label)
		next = x + len(label) + 1
	}
	return string(line)
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}
