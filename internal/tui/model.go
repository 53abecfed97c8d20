package tui

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kbrag/internal/domain"
)

// Port is the TUI-facing subset of the knowledge base.
type Port interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error)
	AnswerStream(ctx context.Context, query string) iter.Seq2[string, error]
}

type mode int

const (
	modeAsk mode = iota
	modeSearch
)

func (m mode) String() string {
	if m == modeSearch {
		return "search"
	}
	return "ask"
}

// deltaMsg carries the next item pulled from an answer stream.
type deltaMsg struct {
	id    int
	delta string
	err   error
	done  bool
}

// stream is an answer in progress. next and stop are only called from one
// command at a time.
type stream struct {
	id       int
	next     func() (string, error, bool)
	stop     func()
	cancel   context.CancelFunc
	canceled bool
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx      context.Context
	service  Port
	topK     int
	header   string
	mode     mode
	input    textinput.Model
	viewport viewport.Model

	results   []domain.SearchHit
	cursor    int
	lastQuery string

	answer   strings.Builder
	stream   *stream
	streamID int

	status string
	ready  bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, service Port, topK int, header string) *Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter (Tab: search mode)"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return &Model{
		ctx:      ctx,
		service:  service,
		topK:     topK,
		header:   header,
		input:    ti,
		viewport: vp,
		status:   "Ready.",
	}
}

// Init initializes the model (text input cursor blink).
func (m *Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // title + header
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case deltaMsg:
		return m, m.onDelta(msg)
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.stream != nil {
				m.stream.cancel()
			}
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			if m.stream == nil {
				m.mode = 1 - m.mode
				m.status = "Mode: " + m.mode.String()
				m.refresh()
			}
			return m, nil
		case "esc":
			if m.stream != nil && !m.stream.canceled {
				m.stream.canceled = true
				m.stream.cancel()
				m.status = "Stopping..."
			}
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.stream != nil {
				return m, nil
			}
			m.lastQuery = q
			if m.mode == modeSearch {
				m.search(q)
				return m, nil
			}
			return m, m.ask(q)
		case "down":
			if m.mode == modeSearch && len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.mode == modeSearch && len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.refresh()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) search(q string) {
	res, err := m.service.Search(m.ctx, q, m.topK)
	if err != nil {
		m.status = "Error: " + err.Error()
		m.results = nil
	} else {
		m.status = fmt.Sprintf("%d results for %q", len(res), q)
		m.results = res
		m.cursor = 0
	}
	m.refresh()
}

func (m *Model) ask(q string) tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	next, stop := iter.Pull2(m.service.AnswerStream(ctx, q))
	m.streamID++
	m.stream = &stream{id: m.streamID, next: next, stop: stop, cancel: cancel}
	m.answer.Reset()
	m.status = fmt.Sprintf("Answering %q... (Esc to stop)", q)
	m.refresh()
	return pull(m.stream)
}

func pull(s *stream) tea.Cmd {
	return func() tea.Msg {
		delta, err, ok := s.next()
		return deltaMsg{id: s.id, delta: delta, err: err, done: !ok}
	}
}

func (m *Model) onDelta(msg deltaMsg) tea.Cmd {
	s := m.stream
	if s == nil || msg.id != s.id {
		return nil
	}
	switch {
	case msg.done:
		m.status = "Done."
		if s.canceled {
			m.status = "Stopped."
		}
	case msg.err != nil:
		m.status = "Error: " + msg.err.Error()
		if s.canceled {
			m.status = "Stopped."
		}
	case s.canceled:
		m.status = "Stopped."
	default:
		m.answer.WriteString(msg.delta)
		m.refresh()
		m.viewport.GotoBottom()
		return pull(s)
	}
	s.stop()
	s.cancel()
	m.stream = nil
	m.refresh()
	return nil
}

// View renders the TUI layout and current result.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := lipgloss.NewStyle().Bold(true).Render("Knowledge Base [" + m.mode.String() + "]")
	header := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.header)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return title + "\n" + header + "\n" + results + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	if m.mode == modeAsk {
		m.viewport.SetContent(m.renderAnswer())
		return
	}
	m.viewport.SetContent(m.renderCurrentResult())
}

func (m *Model) renderAnswer() string {
	if m.answer.Len() == 0 {
		return "No answer yet."
	}
	return lipgloss.NewStyle().Width(max(10, m.viewport.Width-2)).Render(m.answer.String())
}

func (m *Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  score=%.3f  source=%s", m.cursor+1, len(m.results), r.Score, r.Passage.Source)
	body := highlightBestSentence(r.Passage.Text, m.lastQuery)
	return title + "\n\n" + body
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?。！？\n]+[.!?。！？]?`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
