package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/0xlemi/tunetrace/internal/pitch"
	"github.com/0xlemi/tunetrace/internal/session"
	"github.com/0xlemi/tunetrace/internal/timeline"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Constants for UI behavior
const (
	// How often the screen pulls a new snapshot
	refreshInterval = time.Second / 30

	// Scroll change per arrow key press
	scrollStep = 0.05

	// Space kept around the contour strip
	chromeHeight = 16
	minPlotWidth = 20
	minPlotRows  = 6
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f87171")).
			Bold(true)

	// Note colors
	noteColors = map[string]string{
		"C": "#E8D6B0", // Beige
		"D": "#A020F0", // Purple
		"E": "#FFFF00", // Yellow
		"F": "#FFA500", // Orange
		"G": "#00FF00", // Green
		"A": "#FF0000", // Red
		"B": "#0000FF", // Blue
	}

	accuracyColors = map[pitch.Accuracy]string{
		pitch.AccuracyInTune: "#22c55e",
		pitch.AccuracyClose:  "#eab308",
		pitch.AccuracyOff:    "#ef4444",
	}
)

// Controller is the part of the session the screen drives.
type Controller interface {
	Snapshot() session.Snapshot
	Wheel(deltaY float64) timeline.ViewState
	Scroll(f float64) timeline.ViewState
	ToggleFull() timeline.ViewState
}

// Returns a style for a note (including sharps which get split color)
func getNoteStyle(noteName string) lipgloss.Style {
	if strings.HasSuffix(noteName, "#") {
		// Sharps are rendered as two halves in renderNote
		return lipgloss.NewStyle().Bold(true).MarginBottom(1)
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color(noteColors[noteName])).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#333333")).
		Padding(2, 4).
		MarginBottom(1)
}

// Get the next note in the scale (for sharp note colors)
func getNextNote(note string) string {
	switch note {
	case "C":
		return "D"
	case "D":
		return "E"
	case "F":
		return "G"
	case "G":
		return "A"
	case "A":
		return "B"
	default:
		return "C"
	}
}

// Model represents the UI state
type Model struct {
	ctrl   Controller
	snap   session.Snapshot
	err    error
	width  int
	height int
}

// NewModel creates a new UI model over ctrl
func NewModel(ctrl Controller) Model {
	return Model{ctrl: ctrl, snap: ctrl.Snapshot(), width: 80, height: 24}
}

// TickMsg represents a timer tick
type TickMsg time.Time

// ErrMsg reports a failure of the listening loop
type ErrMsg struct{ Err error }

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Init initializes the UI model
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update updates the UI model based on messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "f":
			m.ctrl.ToggleFull()
		case "+", "=":
			m.ctrl.Wheel(-1)
		case "-":
			m.ctrl.Wheel(1)
		case "left", "h":
			m.ctrl.Scroll(m.snap.View.Scroll - scrollStep)
		case "right", "l":
			m.ctrl.Scroll(m.snap.View.Scroll + scrollStep)
		}
		m.snap = m.ctrl.Snapshot()

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			break
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.ctrl.Wheel(-1)
		case tea.MouseButtonWheelDown:
			m.ctrl.Wheel(1)
		}
		m.snap = m.ctrl.Snapshot()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		m.snap = m.ctrl.Snapshot()
		return m, tick()

	case ErrMsg:
		m.err = msg.Err
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("TuneTrace - Pitch Tracker"))
	b.WriteString("\n")

	if r := m.snap.Display; r.Pitched {
		b.WriteString(renderNote(r.Note))
		b.WriteString("\n")
		b.WriteString(renderTuner(m.snap.Reading, r))
	} else if m.snap.Listening {
		b.WriteString(infoStyle.Render("Listening for audio..."))
	} else {
		b.WriteString(infoStyle.Render("Not listening"))
	}
	b.WriteString("\n\n")

	plotWidth := max(minPlotWidth, m.width-8)
	plotRows := max(minPlotRows, m.height-chromeHeight)
	b.WriteString(infoStyle.Render(viewLabel(m.snap)))
	b.WriteString("\n")
	b.WriteString(renderContour(m.snap.Alignment, trackColors(m.snap), plotWidth, plotRows))
	b.WriteString("\n")
	b.WriteString(renderLegend(m.snap))

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("Error: " + m.err.Error()))
	}

	b.WriteString("\n\n")
	b.WriteString(infoStyle.Render("q quit | f full/follow | +/- or wheel zoom | ←/→ scroll"))
	return b.String()
}

// renderNote draws the note box, split in two colors for sharps.
func renderNote(note pitch.Note) string {
	noteText := fmt.Sprintf("%s%d", note.Name, note.Octave)
	if !strings.HasSuffix(note.Name, "#") {
		return getNoteStyle(note.Name).Render(noteText)
	}

	baseNote := note.Name[:1]
	half := func(color string, left bool) lipgloss.Style {
		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color(color)).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333333")).
			BorderTop(true).
			BorderBottom(true).
			PaddingTop(2).
			PaddingBottom(2)
		if left {
			return s.BorderLeft(true).BorderRight(false).PaddingLeft(2).PaddingRight(1)
		}
		return s.BorderLeft(false).BorderRight(true).PaddingLeft(1).PaddingRight(2)
	}

	return half(noteColors[baseNote], true).Render(baseNote) +
		half(noteColors[getNextNote(baseNote)], false).Render(fmt.Sprintf("#%d", note.Octave))
}

// renderTuner shows frequency, cents and a needle for the held note.
func renderTuner(current, held session.Reading) string {
	color, ok := accuracyColors[held.Accuracy]
	if !ok {
		color = "#CCCCCC"
	}
	accent := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)

	info := fmt.Sprintf("Frequency: %.2f Hz | Cents: %+d | Clarity: %.2f | ",
		held.Frequency, held.Note.Cents, current.Estimate.Clarity)
	line := infoStyle.Render(info) + accent.Render(held.Accuracy.String())
	line += "\n" + needle(held.Needle, 41, accent)

	if current.PoorSignal && current.Pitched {
		line += "  " + warnStyle.Render("Poor Signal")
	}
	return line
}

// needle draws a centred scale with a marker at pos (0..100).
func needle(pos float64, width int, marker lipgloss.Style) string {
	at := int(pos / 100 * float64(width-1))
	at = max(0, min(width-1, at))

	var b strings.Builder
	b.WriteString(infoStyle.Render("♭ "))
	for i := 0; i < width; i++ {
		switch {
		case i == at:
			b.WriteString(marker.Render("┃"))
		case i == width/2:
			b.WriteString(infoStyle.Render("┊"))
		default:
			b.WriteString(infoStyle.Render("─"))
		}
	}
	b.WriteString(infoStyle.Render(" ♯"))
	return b.String()
}

func viewLabel(s session.Snapshot) string {
	w := s.Alignment.Window
	switch {
	case w.Live:
		return "Live (last 10s)"
	case s.View.Mode == timeline.Full:
		return fmt.Sprintf("Analysis (Full View)  zoom %.1fx  %s - %s",
			s.View.Zoom, timeline.FormatTime(w.Start), timeline.FormatTime(w.End))
	default:
		return "Recording (Follow Mode)"
	}
}

func trackColors(s session.Snapshot) map[string]string {
	colors := make(map[string]string, len(s.Tracks)+2)
	for _, t := range s.Tracks {
		colors[t.ID.String()] = t.Color
	}
	colors[timeline.LiveID] = "#7D56F4"
	colors[timeline.RecordingID] = "#FAFAFA"
	return colors
}

func renderLegend(s session.Snapshot) string {
	if len(s.Tracks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.Tracks)+1)
	for _, t := range s.Tracks {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color)).Render("●")
		parts = append(parts, dot+" "+infoStyle.Render(t.Name))
	}
	if s.Alignment.Recording != nil {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")).Render("●")+" "+infoStyle.Render("you"))
	}
	return strings.Join(parts, "   ")
}
