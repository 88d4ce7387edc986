package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quasilyte/itplay"
)

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff"))
	triggerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#000")).Background(lipgloss.Color("#8c8"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a44")).Strikethrough(true)
	cursorStyle  = lipgloss.NewStyle().Background(lipgloss.Color("#444"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
)

const volumeBarWidth = 16

type refreshMsg time.Time

func refresh() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// viewModel is a terminal channel monitor.
// It only uses the stream query surface, so it never blocks the audio.
type viewModel struct {
	stream *itplay.Stream
	player audioPlayer
	title  string

	numChannels int
	cursor      int
	muted       []bool
	loop        bool

	lastErr error
}

func newViewModel(stream *itplay.Stream, title string, player audioPlayer) viewModel {
	n := stream.GetInfo().NumChannels
	return viewModel{
		stream:      stream,
		player:      player,
		title:       title,
		numChannels: n,
		muted:       make([]bool, n),
		loop:        true,
	}
}

func (m viewModel) Init() tea.Cmd {
	return refresh()
}

func (m viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < m.numChannels-1 {
				m.cursor++
			}

		case "m":
			m.muted[m.cursor] = !m.muted[m.cursor]
			m.lastErr = m.stream.SetChannelMute(m.cursor, m.muted[m.cursor])

		case "l":
			m.loop = !m.loop
			m.stream.SetLoopEnabled(m.loop)

		case "r":
			m.lastErr = m.stream.SetPosition(0, 0)

		case "right":
			order, _, _ := m.stream.GetCursor()
			m.lastErr = m.stream.SetPosition(order+1, 0)

		case " ":
			if m.player.IsPlaying() {
				m.player.Pause()
			} else {
				m.player.Play()
			}
		}

	case refreshMsg:
		return m, refresh()
	}

	return m, nil
}

func (m viewModel) View() string {
	var sb strings.Builder

	order, row, tick := m.stream.GetCursor()
	global := m.stream.GetGlobalInfo()

	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(fmt.Sprintf(
		"order %02d  row %02d  tick %02d   speed %3d  tempo %3d  gvol %3d%s  voices %d",
		order, row, tick, global.Speed, global.Tempo, global.GlobalVolume,
		slideGlyph(global.GlobalVolumeSlide), global.ActiveVoices)))
	sb.WriteString("\n\n")

	for i := 0; i < m.numChannels; i++ {
		info, err := m.stream.GetChannelInfo(i)
		if err != nil {
			continue
		}
		sb.WriteString(m.channelLine(i, info))
		sb.WriteString("\n")
	}

	diag := m.stream.Diagnostics()
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(fmt.Sprintf(
		"dropped %d  ignored %d  corrupt %d  skipped orders %d",
		diag.DroppedNotes, diag.IgnoredNotes, diag.CorruptCells, diag.SkippedOrders)))
	sb.WriteString("\n")
	if m.lastErr != nil {
		sb.WriteString(mutedStyle.Render(m.lastErr.Error()))
		sb.WriteString("\n")
	}

	loop := "on"
	if !m.loop {
		loop = "off"
	}
	sb.WriteString(dimStyle.Render(fmt.Sprintf(
		"j/k:channel  m:mute  l:loop (%s)  r:restart  right:next order  space:pause  q:quit", loop)))
	sb.WriteString("\n")
	return sb.String()
}

func (m viewModel) channelLine(i int, info itplay.ChannelInfo) string {
	note := info.NoteName
	if note == "" {
		note = "..."
	}
	inst := ".."
	if info.Instrument != 0 {
		inst = fmt.Sprintf("%02d", info.Instrument)
	}
	filled := info.Volume * info.ChannelVolume * volumeBarWidth / (64 * 64)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", volumeBarWidth-filled)

	style := dimStyle
	switch {
	case info.Muted:
		style = mutedStyle
	case info.Triggered:
		style = triggerStyle
	case info.State != itplay.NoteSilent:
		style = activeStyle
	}
	line := style.Render(fmt.Sprintf("%2d  %s %s %s  %s  pan %2d  %-8s",
		i+1, note, inst, info.Effect, bar, info.Pan, info.State))
	if i == m.cursor {
		line = cursorStyle.Render(">") + line
	} else {
		line = " " + line
	}
	return line
}

func slideGlyph(dir int) string {
	switch {
	case dir > 0:
		return "+"
	case dir < 0:
		return "-"
	default:
		return " "
	}
}
