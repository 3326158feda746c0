package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voicebutton/session"
	"voicebutton/voice"
)

// TUI message types
type stateMsg struct{ State voice.State }
type elapsedMsg struct{ Seconds int }
type completedMsg struct{ Outcome voice.Outcome }
type failedMsg struct{ Err *voice.VoiceError }
type copiedMsg struct{ Err error }
type frameMsg time.Time

// controller is the slice of session.Machine the TUI drives.
type controller interface {
	Toggle()
	Reset()
	Session() voice.Session
}

// levelSource feeds the waveform and the no-voice warning; nil when the
// waveform is off.
type levelSource interface {
	Sample() []float64
	Volume() float64
}

// tuiObserver forwards machine events into the program.
type tuiObserver struct {
	send func(tea.Msg)
}

func (o tuiObserver) StateChanged(s voice.State)   { o.send(stateMsg{s}) }
func (o tuiObserver) Ticked(elapsed int)           { o.send(elapsedMsg{elapsed}) }
func (o tuiObserver) Completed(out voice.Outcome)  { o.send(completedMsg{out}) }
func (o tuiObserver) Failed(err *voice.VoiceError) { o.send(failedMsg{err}) }

var _ session.Observer = tuiObserver{}

const (
	waveBars  = 32
	waveRows  = 6
	leftWidth = 40

	// Below this volume for the whole take so far the mic is probably muted.
	noVoiceLevel = 0.15
)

type tuiModel struct {
	ctl    controller
	levels levelSource
	cfg    session.Config
	copy   func(string) error

	state   voice.State
	elapsed int
	bars    []float64
	loudest float64
	frame   int

	transcript string
	confidence float64
	count      int
	copied     bool
	copyErr    string
	errMsg     string
	errCode    voice.Code

	width, height int
	providerLine  string
	deviceLine    string
	bluetooth     bool
	hotkeyHelp    string
}

type tuiOptions struct {
	Provider   string
	Device     string
	Bluetooth  bool
	HotkeyHelp string
	Copy       func(string) error
}

func newTUIModel(ctl controller, levels levelSource, cfg session.Config, opts tuiOptions) tuiModel {
	if !cfg.WaveformEnabled {
		levels = nil
	}
	return tuiModel{
		ctl:          ctl,
		levels:       levels,
		cfg:          cfg,
		copy:         opts.Copy,
		state:        ctl.Session().State,
		bars:         make([]float64, waveBars),
		providerLine: opts.Provider,
		deviceLine:   opts.Device,
		bluetooth:    opts.Bluetooth,
		hotkeyHelp:   opts.HotkeyHelp,
	}
}

// Pre-computed bar styles, quiet to loud.
var (
	barColors = []string{"52", "88", "124", "160", "196", "202", "208", "214", "220", "226"}
	barStyles []lipgloss.Style
	eighths   = []rune(" ▁▂▃▄▅▆▇█")
)

func init() {
	for _, c := range barColors {
		barStyles = append(barStyles, lipgloss.NewStyle().Foreground(lipgloss.Color(c)))
	}
}

func frameTick(recording bool) tea.Cmd {
	d := 100 * time.Millisecond
	if recording {
		d = time.Second / 60
	}
	return tea.Tick(d, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m tuiModel) Init() tea.Cmd {
	return frameTick(m.state == voice.Recording)
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		m.frame++
		m.updateBars()
		return m, frameTick(m.state == voice.Recording)

	case stateMsg:
		m.state = msg.State
		switch msg.State {
		case voice.Requesting:
			m.elapsed = 0
			m.loudest = 0
			m.errMsg, m.errCode = "", ""
			m.copied, m.copyErr = false, ""
		case voice.Idle:
			m.errMsg, m.errCode = "", ""
		}

	case elapsedMsg:
		m.elapsed = msg.Seconds

	case completedMsg:
		m.count++
		m.transcript = msg.Outcome.Text
		m.confidence = msg.Outcome.Confidence

	case failedMsg:
		if msg.Err != nil {
			m.errCode = msg.Err.Code
			m.errMsg = msg.Err.Message
			if m.errMsg == "" {
				m.errMsg = string(msg.Err.Code)
			}
		}

	case copiedMsg:
		m.copied = msg.Err == nil
		m.copyErr = ""
		if msg.Err != nil {
			m.copyErr = msg.Err.Error()
		}
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeySpace:
		ctl := m.ctl
		return m, func() tea.Msg { ctl.Toggle(); return nil }
	case tea.KeyEsc:
		if m.state == voice.Error || m.state == voice.Success {
			ctl := m.ctl
			return m, func() tea.Msg { ctl.Reset(); return nil }
		}
		return m, nil
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "c":
		if m.transcript == "" || m.copy == nil {
			return m, nil
		}
		text, copyFn := m.transcript, m.copy
		return m, func() tea.Msg { return copiedMsg{Err: copyFn(text)} }
	}
	return m, nil
}

// updateBars pulls the latest spectrum while recording and lets the bars fall
// back to zero otherwise.
func (m *tuiModel) updateBars() {
	if m.state == voice.Recording && m.levels != nil {
		bins := m.levels.Sample()
		if len(bins) > 0 {
			per := max(len(bins)/waveBars, 1)
			for i := range m.bars {
				var peak float64
				for j := i * per; j < (i+1)*per && j < len(bins); j++ {
					peak = max(peak, bins[j])
				}
				m.bars[i] = peak
			}
			m.loudest = max(m.loudest, m.levels.Volume())
			return
		}
	}
	for i := range m.bars {
		m.bars[i] *= 0.8
	}
}

func (m tuiModel) noVoice() bool {
	return m.state == voice.Recording && m.levels != nil && m.elapsed >= 1 && m.loudest < noVoiceLevel
}

func formatElapsed(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func renderBars(bars []float64) string {
	var b strings.Builder
	for row := waveRows - 1; row >= 0; row-- {
		for _, v := range bars {
			v = min(max(v, 0), 1)
			fill := v*waveRows - float64(row)
			var ch rune
			switch {
			case fill >= 1:
				ch = eighths[8]
			case fill <= 0:
				ch = ' '
			default:
				ch = eighths[int(fill*8)]
			}
			style := barStyles[min(int(v*float64(len(barStyles))), len(barStyles)-1)]
			b.WriteString(style.Render(string(ch)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m tuiModel) statusLine() string {
	switch m.state {
	case voice.Requesting:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("◌ opening microphone")
	case voice.Recording:
		s := "● REC"
		if m.cfg.TimerDisplayEnabled {
			s += " " + formatElapsed(m.elapsed)
			if m.cfg.MaxDurationSeconds > 0 {
				s += " / " + formatElapsed(m.cfg.MaxDurationSeconds)
			}
		}
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).Render(s)
	case voice.Processing:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Render("◐ transcribing")
	case voice.Success:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("✓ done")
	case voice.Error:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗ " + m.errMsg)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("○ READY")
	}
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	help := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	bold := help.Bold(true)

	var left []string
	if m.levels != nil {
		left = append(left, strings.Split(strings.TrimRight(renderBars(m.bars), "\n"), "\n")...)
		left = append(left, "")
	}
	left = append(left, m.statusLine())
	if m.noVoice() {
		left = append(left, lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render("  ⚠ no voice detected"))
	}
	if m.state == voice.Error {
		left = append(left, help.Render("esc to dismiss, space to retry"))
	}
	if m.providerLine != "" {
		left = append(left, lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(m.providerLine))
	}
	if m.deviceLine != "" {
		left = append(left, dim.Render("mic: "+m.deviceLine))
	}
	if m.bluetooth {
		left = append(left, lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render("⚠ Bluetooth mic: lower audio quality"))
	}
	left = append(left, "")
	if m.hotkeyHelp != "" {
		left = append(left, bold.Render(m.hotkeyHelp))
	}
	left = append(left, bold.Render("space")+help.Render(" record/stop  ")+bold.Render("c")+help.Render(" copy  ")+bold.Render("q")+help.Render(" quit"))
	left = append(left, help.Render("voicebutton "+version))

	rightWidth := max(m.width-leftWidth-1, 20)
	var right strings.Builder
	if m.transcript != "" {
		title := fmt.Sprintf("Last transcription (#%d, %.0f%%)", m.count, m.confidence*100)
		right.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Render(title) + "\n\n")
		textStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
		lines := wrapText(m.transcript, max(rightWidth-2, 10))
		for i, line := range lines {
			right.WriteString(textStyle.Render(line))
			if i == len(lines)-1 && m.copied {
				right.WriteString(" " + lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("[✓ copied]"))
			}
			right.WriteString("\n")
		}
		if m.copyErr != "" {
			right.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render(m.copyErr) + "\n")
		}
	} else {
		right.WriteString(dim.Render("No transcriptions yet"))
	}

	leftPanel := lipgloss.NewStyle().Width(leftWidth - 1).Height(m.height).Render(strings.Join(left, "\n"))
	rightPanel := lipgloss.NewStyle().Width(rightWidth).Height(m.height).PaddingLeft(1).Render(right.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		line := ""
		for _, w := range words {
			for len([]rune(w)) > width {
				if line != "" {
					lines = append(lines, line)
					line = ""
				}
				r := []rune(w)
				lines = append(lines, string(r[:width]))
				w = string(r[width:])
			}
			switch {
			case line == "":
				line = w
			case len([]rune(line))+1+len([]rune(w)) <= width:
				line += " " + w
			default:
				lines = append(lines, line)
				line = w
			}
		}
		lines = append(lines, line)
	}
	return lines
}
