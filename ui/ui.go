// Package ui renders task progress: a bubbletea progress bar when stdout is
// a terminal, plain log lines otherwise.
package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/saywav/pkg/speech"
)

// ProgressUpdate is one progress notification from a running task.
type ProgressUpdate struct {
	Percent   int
	Task      speech.TaskID
	Remaining int
}

// ChannelSink forwards task progress into a channel, bridging engine
// callback threads to the UI goroutine.
type ChannelSink struct {
	C chan ProgressUpdate
}

// NewChannelSink creates a buffered channel sink.
func NewChannelSink() *ChannelSink {
	return &ChannelSink{C: make(chan ProgressUpdate, 32)}
}

// NotifyProgress implements speech.ProgressSink. Updates are dropped once
// the display stops draining the channel; the task must never block on it.
func (s *ChannelSink) NotifyProgress(percent int, task speech.TaskID, remaining int) {
	select {
	case s.C <- ProgressUpdate{Percent: percent, Task: task, Remaining: remaining}:
	default:
	}
}

// NotifyInputSelection implements speech.ProgressSink. Selection spans have
// no visual representation here.
func (s *ChannelSink) NotifyInputSelection(_, _ int64, _ speech.TaskID) {}

// Close ends the update stream, letting the UI program exit.
func (s *ChannelSink) Close() {
	close(s.C)
}

// LogSink reports progress through the structured logger, for when stdout
// is not a terminal.
type LogSink struct{}

// NotifyProgress implements speech.ProgressSink.
func (LogSink) NotifyProgress(percent int, task speech.TaskID, remaining int) {
	switch percent {
	case -1:
		log.Error("task failed", "task", task)
	case 100:
		log.Info("task complete", "task", task)
	default:
		log.Info("task progress", "task", task, "percent", percent, "remaining", remaining)
	}
}

// NotifyInputSelection implements speech.ProgressSink.
func (LogSink) NotifyInputSelection(start, end int64, task speech.TaskID) {
	log.Debug("speaking input span", "task", task, "start", start, "end", end)
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type doneMsg struct{}

type model struct {
	bar     progress.Model
	updates <-chan ProgressUpdate
	task    speech.TaskID
	percent int
	failed  bool
}

func newModel(updates <-chan ProgressUpdate) model {
	return model{
		bar:     progress.New(progress.WithDefaultGradient()),
		updates: updates,
	}
}

func waitForUpdate(updates <-chan ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return u
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil

	case ProgressUpdate:
		m.task = msg.Task
		m.percent = msg.Percent
		if msg.Percent == -1 {
			m.failed = true
			return m, tea.Quit
		}
		cmd := m.bar.SetPercent(float64(msg.Percent) / 100)
		if msg.Percent == 100 && msg.Remaining == 0 {
			return m, tea.Sequence(cmd, tea.Quit)
		}
		return m, tea.Batch(cmd, waitForUpdate(m.updates))

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	case doneMsg:
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m model) View() string {
	if m.failed {
		return errStyle.Render(fmt.Sprintf("%s failed", m.task)) + "\n"
	}
	return labelStyle.Render(m.task.String()) + " " + m.bar.View() + "\n"
}

// Run drives the progress display until the update stream reports a
// terminal value or is closed. It returns an error when a task failed.
func Run(updates <-chan ProgressUpdate) error {
	p := tea.NewProgram(newModel(updates))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("running progress display: %w", err)
	}
	if m, ok := final.(model); ok && m.failed {
		return fmt.Errorf("%s task failed", m.task)
	}
	return nil
}
