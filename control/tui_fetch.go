package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

const maxFetchErrorsInTUI = 20

// fetchMsg is a message from the fetch run or the log tee.
type fetchMsg struct {
	LogErr  string
	Phase   string
	AuthURL string
	Page    int
	Total   int
	Done    bool
	Err     error
	Result  fetchResult
}

// fetchModel is the Bubble Tea model for the fetch TUI.
type fetchModel struct {
	year       int
	phase      string
	authURL    string
	page       int
	total      int
	errors     []string
	done       bool
	cancelling bool
	err        error
	result     fetchResult
	logPath    string
	ch         <-chan fetchMsg
	logs       <-chan string
	cancel     context.CancelFunc
	width      int
}

func newFetchModel(year int, logPath string, ch <-chan fetchMsg, logs <-chan string, cancel context.CancelFunc) *fetchModel {
	return &fetchModel{
		year:    year,
		phase:   "Starting...",
		errors:  make([]string, 0, maxFetchErrorsInTUI),
		logPath: logPath,
		ch:      ch,
		logs:    logs,
		cancel:  cancel,
	}
}

func (m *fetchModel) Init() tea.Cmd {
	return m.waitForMsg()
}

// waitForMsg delivers the next progress message or warning line. A closed
// progress channel yields nil, which Bubble Tea ignores.
func (m *fetchModel) waitForMsg() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg, ok := <-m.ch:
			if !ok {
				return nil
			}
			return msg
		case line := <-m.logs:
			return fetchMsg{LogErr: line}
		}
	}
}

func (m *fetchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		key := msg.String()
		if key == "q" || key == "ctrl+c" {
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling && m.cancel != nil {
				m.cancel()
				m.cancelling = true
				m.phase = "Stopping..."
			}
		}
		return m, nil
	case fetchMsg:
		switch {
		case msg.LogErr != "":
			m.errors = append(m.errors, msg.LogErr)
			if len(m.errors) > maxFetchErrorsInTUI {
				m.errors = m.errors[len(m.errors)-maxFetchErrorsInTUI:]
			}
		case msg.Done:
			m.done = true
			m.err = msg.Err
			m.result = msg.Result
			return m, tea.Quit
		case msg.AuthURL != "":
			m.authURL = msg.AuthURL
		case msg.Page > 0:
			m.page = msg.Page
			m.total = msg.Total
		case msg.Phase != "":
			m.phase = msg.Phase
		}
		return m, m.waitForMsg()
	default:
		return m, nil
	}
}

func (m *fetchModel) View() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  stravatally fetch %d\n\n", m.year))
	b.WriteString("  " + m.phase + "\n")
	b.WriteString("  Log file: " + m.logPath + "\n")
	if m.authURL != "" && m.page == 0 && !m.done {
		b.WriteString("\n  If no browser opened, visit:\n")
		b.WriteString("  " + m.authURL + "\n")
	}
	if m.page > 0 {
		b.WriteString(fmt.Sprintf("\n  Pages fetched: %d  Activities: %d\n", m.page, m.total))
	}
	if m.done {
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString("  Error: " + m.err.Error() + "\n")
		} else {
			b.WriteString(fmt.Sprintf("  Saved %d activities to %s\n", m.result.Records, m.result.Path))
		}
	}
	if len(m.errors) > 0 {
		b.WriteString("\n  Recent errors / warnings:\n")
		start := 0
		if len(m.errors) > 10 {
			start = len(m.errors) - 10
		}
		for i := start; i < len(m.errors); i++ {
			b.WriteString("    • " + truncateLine(m.errors[i], 70) + "\n")
		}
	}
	b.WriteString("\n  q: quit  (Ctrl+C: stop)\n")
	return b.String()
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// tuiReporter forwards fetch progress to the TUI. Progress updates are
// dropped when the TUI falls behind; the final message never is.
type tuiReporter struct {
	ch chan<- fetchMsg
}

func (r tuiReporter) Phase(phase string) {
	r.send(fetchMsg{Phase: phase})
}

func (r tuiReporter) AuthorizationURL(url string) {
	r.send(fetchMsg{AuthURL: url})
}

func (r tuiReporter) Progress(page, total int) {
	r.send(fetchMsg{Page: page, Total: total})
}

func (r tuiReporter) send(msg fetchMsg) {
	select {
	case r.ch <- msg:
	default:
	}
}

// RunFetchTUI runs the TUI for fetch. The caller runs the fetch in a goroutine,
// sends a fetchMsg with Done=true when finished and then closes ch.
// cancel is called when the user presses q or Ctrl+C mid-run.
// Returns the fetch result and error from the final model.
func RunFetchTUI(year int, logPath string, ch <-chan fetchMsg, logs <-chan string, cancel context.CancelFunc) (fetchResult, error) {
	model := newFetchModel(year, logPath, ch, logs, cancel)
	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		cancel()
		// Wait for the run to finish so the caller never races its cleanup.
		var last fetchMsg
		for msg := range ch {
			if msg.Done {
				last = msg
			}
		}
		if last.Err != nil {
			return last.Result, last.Err
		}
		return last.Result, err
	}
	fm, ok := finalModel.(*fetchModel)
	if !ok {
		return fetchResult{}, nil
	}
	return fm.result, fm.err
}
