// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/stickctl/pkg/control"
	"github.com/Thermoquad/stickctl/pkg/gpio"
	"github.com/Thermoquad/stickctl/pkg/input"
	"github.com/Thermoquad/stickctl/pkg/telemetry"
	"github.com/Thermoquad/stickctl/pkg/vesc"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const monitorRefresh = 100 * time.Millisecond

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

type stateSource interface {
	State() control.State
}

// monitorKeys are the bench console key bindings
type monitorKeys struct {
	Slow    key.Binding
	Medium  key.Binding
	Fast    key.Binding
	All     key.Binding
	Release key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func newMonitorKeys() monitorKeys {
	return monitorKeys{
		Slow:    key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "toggle slow")),
		Medium:  key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "toggle medium")),
		Fast:    key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "toggle fast")),
		All:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "press all")),
		Release: key.NewBinding(key.WithKeys("r", "0"), key.WithHelp("r", "release all")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k monitorKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Slow, k.Medium, k.Fast, k.Release, k.Help, k.Quit}
}

func (k monitorKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Slow, k.Medium, k.Fast},
		{k.All, k.Release},
		{k.Help, k.Quit},
	}
}

// monitorModel is the Bubble Tea model for the bench console
type monitorModel struct {
	connInfo   string
	control    stateSource
	store      *telemetry.Store
	indicators *gpio.IndicatorBank
	stats      *vesc.Statistics
	buttons    [3]*gpio.VirtualButton

	keys monitorKeys
	help help.Model

	observed  bool
	last      control.State
	lastAlive bool

	eventLog      []eventLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

// logLineMsg carries one formatted log line from the logger
type logLineMsg string

// programWriter forwards log lines into a running program. Lines written
// before the program is attached are dropped.
type programWriter struct {
	mu sync.Mutex
	p  *tea.Program
}

func (w *programWriter) attach(p *tea.Program) {
	w.mu.Lock()
	w.p = p
	w.mu.Unlock()
}

func (w *programWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	p := w.p
	w.mu.Unlock()
	if p != nil {
		// The logger reuses its buffer after Write returns
		p.Send(logLineMsg(strings.TrimRight(string(b), "\n")))
	}
	return len(b), nil
}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

func initialMonitorModel(connInfo string, ctl stateSource, store *telemetry.Store,
	indicators *gpio.IndicatorBank, stats *vesc.Statistics, buttons [3]*gpio.VirtualButton) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		control:       ctl,
		store:         store,
		indicators:    indicators,
		stats:         stats,
		buttons:       buttons,
		keys:          newMonitorKeys(),
		help:          help.New(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		tea.EnterAltScreen,
	)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(monitorRefresh, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Slow):
			m.toggle(input.Slow)
		case key.Matches(msg, m.keys.Medium):
			m.toggle(input.Medium)
		case key.Matches(msg, m.keys.Fast):
			m.toggle(input.Fast)
		case key.Matches(msg, m.keys.All):
			for _, b := range m.buttons {
				b.Press()
			}
			m.addLogEntry("all buttons pressed", false)
		case key.Matches(msg, m.keys.Release):
			for _, b := range m.buttons {
				b.Release()
			}
			m.addLogEntry("all buttons released", false)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case monitorTickMsg:
		m.observe()
		return m, monitorTickCmd()

	case logLineMsg:
		line := string(msg)
		m.addLogEntry(line, strings.HasPrefix(line, "WARN") || strings.HasPrefix(line, "ERROR"))
	}

	return m, nil
}

// toggle flips the button for level (Slow, Medium or Fast)
func (m *monitorModel) toggle(level input.PowerLevel) {
	b := m.buttons[int(level)-1]
	if b.Toggle() {
		m.addLogEntry(fmt.Sprintf("%s pressed", level), false)
	} else {
		m.addLogEntry(fmt.Sprintf("%s released", level), false)
	}
}

// observe turns control and link state changes into log entries
func (m *monitorModel) observe() {
	state := m.control.State()
	alive := m.store.Alive()

	if !m.observed || state.Mode != m.last.Mode {
		m.addLogEntry(fmt.Sprintf("mode %s", state.Mode), state.Mode == control.EmergencyStop)
	}
	if m.observed && state.Level != m.last.Level {
		m.addLogEntry(fmt.Sprintf("level %s, %.2f A", state.Level, state.Current), false)
	}
	if m.observed && state.Mode == control.EmergencyStop && state.ExitStep != m.last.ExitStep {
		m.addLogEntry(fmt.Sprintf("exit sequence step %d/3", state.ExitStep), false)
	}
	if !m.observed || alive != m.lastAlive {
		if alive {
			m.addLogEntry("motor unit responding", false)
		} else {
			m.addLogEntry("motor unit not responding", true)
		}
	}

	m.observed = true
	m.last = state
	m.lastAlive = alive
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	pressedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("11")).
			Padding(0, 1)

	releasedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m monitorModel) View() string {
	if m.quitting {
		return "Commanding zero current and shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("STICKCTL - BENCH MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Connection: %s | Buttons: keyboard", m.connInfo)))
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("Control:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.controlView()))
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("Motor Unit:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.telemetryView()))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.statsView()))
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(m.eventsView()))
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}

func (m monitorModel) controlView() string {
	state := m.control.State()
	var c strings.Builder

	mode := statsValueStyle.Render(state.Mode.String())
	if state.Mode == control.EmergencyStop {
		mode = errorStyle.Render(state.Mode.String())
	}
	fmt.Fprintf(&c, "%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Mode:"), mode,
		statsLabelStyle.Render("Level:"), statsValueStyle.Render(state.Level.String()),
		statsLabelStyle.Render("Current:"), statsValueStyle.Render(fmt.Sprintf("%.2f A", state.Current)),
	)
	if state.Mode == control.EmergencyStop {
		fmt.Fprintf(&c, "   %s %s", statsLabelStyle.Render("Exit:"),
			warningStyle.Render(fmt.Sprintf("%d/3", state.ExitStep)))
	}
	c.WriteString("\n")

	c.WriteString(statsLabelStyle.Render("Buttons:"))
	for i, name := range []string{"1 SLOW", "2 MEDIUM", "3 FAST"} {
		c.WriteString(" ")
		if m.buttons[i].Pressed() {
			c.WriteString(pressedStyle.Render(name))
		} else {
			c.WriteString(releasedStyle.Render(name))
		}
	}
	c.WriteString("   ")

	c.WriteString(statsLabelStyle.Render("Indicators:"))
	for _, on := range m.indicators.Lit() {
		if on {
			c.WriteString(warningStyle.Render(" ●"))
		} else {
			c.WriteString(headerStyle.Render(" ○"))
		}
	}
	return c.String()
}

func (m monitorModel) telemetryView() string {
	var c strings.Builder

	link := statsValueStyle.Render("responding")
	if !m.store.Alive() {
		link = errorStyle.Render("not responding")
	}
	fmt.Fprintf(&c, "%s %s", statsLabelStyle.Render("Link:"), link)
	if fw, ok := m.store.Firmware(); ok {
		fmt.Fprintf(&c, "   %s %s", statsLabelStyle.Render("Firmware:"), statsValueStyle.Render(fw.String()))
	}
	c.WriteString("\n")

	snap := m.store.Snapshot()
	if snap.Generation == 0 {
		c.WriteString(warningStyle.Render("⏳ Waiting for first values..."))
		return c.String()
	}

	fmt.Fprintf(&c, "%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Input:"), statsValueStyle.Render(fmt.Sprintf("%.1f V %.2f A", snap.InputVoltage, snap.AvgInputCurrent)),
		statsLabelStyle.Render("Motor:"), statsValueStyle.Render(fmt.Sprintf("%.2f A", snap.AvgMotorCurrent)),
		statsLabelStyle.Render("ERPM:"), statsValueStyle.Render(fmt.Sprintf("%.0f", snap.RPM)),
	)
	fmt.Fprintf(&c, "%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Duty:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", snap.DutyCycle*100)),
		statsLabelStyle.Render("FET:"), statsValueStyle.Render(fmt.Sprintf("%.1f°C", snap.TempMOSFET)),
		statsLabelStyle.Render("Motor temp:"), statsValueStyle.Render(fmt.Sprintf("%.1f°C", snap.TempMotor)),
	)
	fmt.Fprintf(&c, "%s %s   %s %s\n",
		statsLabelStyle.Render("Used:"), statsValueStyle.Render(fmt.Sprintf("%.3f Ah %.2f Wh", snap.AmpHours, snap.WattHours)),
		statsLabelStyle.Render("Tach:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.Tachometer)),
	)

	fault := statsValueStyle.Render(snap.Fault.String())
	if snap.Fault != vesc.FaultNone {
		fault = errorStyle.Render(snap.Fault.String())
	}
	fmt.Fprintf(&c, "%s %s   %s",
		statsLabelStyle.Render("Fault:"), fault,
		headerStyle.Render(fmt.Sprintf("(#%d, %s ago)", snap.Generation, time.Since(snap.UpdatedAt).Round(10*time.Millisecond))),
	)
	for _, problem := range vesc.ValidateValues(snap.Values) {
		c.WriteString("\n")
		c.WriteString(warningStyle.Render("⚠ " + problem.Message))
	}
	return c.String()
}

func (m monitorModel) statsView() string {
	snap := m.stats.Snapshot()

	var validPercent float64
	if snap.Requests > 0 {
		validPercent = float64(snap.ValidResponses) * 100.0 / float64(snap.Requests)
	}

	errCount := statsValueStyle.Render(fmt.Sprintf("%d", snap.Errors()))
	if snap.Errors() > 0 {
		errCount = errorStyle.Render(fmt.Sprintf("%d", snap.Errors()))
	}

	var c strings.Builder
	fmt.Fprintf(&c, "%s %s   %s %s   %s %s   %s %s",
		statsLabelStyle.Render("Requests:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.Requests)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", snap.ValidResponses, validPercent)),
		statsLabelStyle.Render("Errors:"), errCount,
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f req/s", snap.RequestRate)),
	)

	if snap.Errors() > 0 || snap.SkippedBytes > 0 || snap.WriteErrors > 0 {
		fmt.Fprintf(&c, "\n%s %d, %s %d, %s %d, %s %d, %s %d, %s %d",
			headerStyle.Render("timeouts"), snap.Timeouts,
			headerStyle.Render("crc"), snap.ChecksumErrors,
			headerStyle.Render("malformed"), snap.MalformedFrames+snap.UnsupportedFrames,
			headerStyle.Render("unexpected"), snap.UnexpectedReplies,
			headerStyle.Render("skipped bytes"), snap.SkippedBytes,
			headerStyle.Render("send errors"), snap.WriteErrors,
		)
	}
	return c.String()
}

func (m monitorModel) eventsView() string {
	// Reserve space for the sections above
	logHeight := m.height - 24
	if logHeight < 5 {
		logHeight = 5
	}

	if len(m.eventLog) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var c strings.Builder
	for i := startIdx; i < len(m.eventLog); i++ {
		entry := m.eventLog[i]
		timestamp := entry.timestamp.Format("15:04:05.000")
		if entry.isError {
			fmt.Fprintf(&c, "%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message))
		} else {
			fmt.Fprintf(&c, "%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message))
		}
	}
	return strings.TrimRight(c.String(), "\n")
}
