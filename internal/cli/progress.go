package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

type outputLineMsg string

type finishedMsg struct {
	err error
}

// progressModel shows a spinner, the elapsed time and the latest k6 output
// line while a load test runs.
type progressModel struct {
	spinner    spinner.Model
	title      string
	last       string
	started    time.Time
	now        func() time.Time
	cancel     context.CancelFunc
	cancelling bool
	done       bool
	err        error
}

func newProgressModel(title string, cancel context.CancelFunc) progressModel {
	return progressModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		title:   title,
		started: time.Now(),
		now:     time.Now,
		cancel:  cancel,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
			return m, nil
		}

	case outputLineMsg:
		if line := strings.TrimSpace(string(msg)); line != "" {
			m.last = line
		}
		return m, nil

	case finishedMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}

	title := m.title
	if m.cancelling {
		title = "Stopping k6..."
	}

	elapsed := m.now().Sub(m.started).Truncate(time.Second)
	view := fmt.Sprintf("%s %s %s\n", m.spinner.View(), title, mutedStyle.Render(elapsed.String()))
	if m.last != "" {
		view += mutedStyle.Render("  "+truncate(m.last, 100)) + "\n"
	}
	return view
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// lineSender forwards complete output lines to a running program.
type lineSender struct {
	mu      sync.Mutex
	send    func(tea.Msg)
	pending []byte
}

func (w *lineSender) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.send(outputLineMsg(w.pending[:i]))
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// RunWithProgress runs fn while showing a spinner on stderr. fn receives a
// writer for k6 output and a context that is cancelled when the user presses
// ctrl+c. Without a terminal, fn runs directly and its output is copied to
// verbose when that is not nil.
func RunWithProgress(ctx context.Context, title string, verbose io.Writer, fn func(ctx context.Context, progress io.Writer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !IsInteractive() {
		return fn(ctx, verbose)
	}

	p := tea.NewProgram(newProgressModel(title, cancel), tea.WithOutput(os.Stderr))

	go func() {
		err := fn(ctx, &lineSender{send: p.Send})
		p.Send(finishedMsg{err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running progress display: %w", err)
	}

	return final.(progressModel).err
}
