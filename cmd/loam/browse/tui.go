package browsecmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loamhq/loam/pkg/cliui"
	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/store"
	"github.com/loamhq/loam/pkg/utils"
)

type browseView int

const (
	viewList browseView = iota
	viewDetail
)

// browseLimit bounds how many memories the TUI loads per filter.
const browseLimit = 500

var (
	browseTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	browseMutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	browseKindStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	browseIDStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	browseStarStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	browseHighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("214")).Bold(true)
	browseTextStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

// kindFilters cycles with the f key; the empty string means all kinds.
var kindFilters = append([]memory.Kind{""}, memory.Kinds()...)

type browseKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Back   key.Binding
	Filter key.Binding
	Delete key.Binding
	Quit   key.Binding
}

func (k browseKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Enter, k.Back, k.Filter, k.Delete, k.Quit}
}

func (k browseKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Down, k.Up, k.Enter, k.Back}, {k.Filter, k.Delete, k.Quit}}
}

func defaultKeyMap() browseKeyMap {
	return browseKeyMap{
		Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Enter:  key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "detail")),
		Back:   key.NewBinding(key.WithKeys("h", "esc"), key.WithHelp("h", "back")),
		Filter: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "kind")),
		Delete: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "forget")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type memoriesLoadedMsg struct {
	memories []*memory.Memory
	err      error
}

type memoryForgottenMsg struct {
	err error
}

type browseModel struct {
	ctx       context.Context
	driver    store.Driver
	scope     string
	memories  []*memory.Memory
	view      browseView
	cursor    int
	kindIndex int
	width     int
	height    int
	loadErr   error
	keys      browseKeyMap
	help      help.Model
}

func runBrowseTUI(ctx context.Context, driver store.Driver, scopePath string) error {
	model := browseModel{
		ctx:    ctx,
		driver: driver,
		scope:  scopePath,
		keys:   defaultKeyMap(),
		help:   help.New(),
	}

	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}

func (m browseModel) Init() bubbletea.Cmd {
	return m.load()
}

func (m browseModel) load() bubbletea.Cmd {
	kind := kindFilters[m.kindIndex]
	return func() bubbletea.Msg {
		memories, err := m.driver.Recall(m.ctx, m.scope, memory.Filters{Kind: kind}, browseLimit)
		return memoriesLoadedMsg{memories: memories, err: err}
	}
}

func (m browseModel) forget() bubbletea.Cmd {
	if m.cursor >= len(m.memories) {
		return nil
	}
	id := m.memories[m.cursor].ID
	return func() bubbletea.Msg {
		return memoryForgottenMsg{err: m.driver.Forget(m.ctx, id)}
	}
}

func (m browseModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case memoriesLoadedMsg:
		m.loadErr = msg.err
		if msg.err == nil {
			m.memories = msg.memories
		}
		if m.cursor >= len(m.memories) {
			m.cursor = max(0, len(m.memories)-1)
		}
		return m, nil

	case memoryForgottenMsg:
		if msg.err != nil {
			m.loadErr = msg.err
			return m, nil
		}
		m.view = viewList
		return m, m.load()

	case bubbletea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, bubbletea.Quit

		case key.Matches(msg, m.keys.Down):
			if m.view == viewList && m.cursor < len(m.memories)-1 {
				m.cursor++
			}

		case key.Matches(msg, m.keys.Up):
			if m.view == viewList && m.cursor > 0 {
				m.cursor--
			}

		case key.Matches(msg, m.keys.Enter):
			if m.view == viewList && len(m.memories) > 0 {
				m.view = viewDetail
			}

		case key.Matches(msg, m.keys.Back):
			m.view = viewList

		case key.Matches(msg, m.keys.Filter):
			if m.view == viewList {
				m.kindIndex = (m.kindIndex + 1) % len(kindFilters)
				m.cursor = 0
				return m, m.load()
			}

		case key.Matches(msg, m.keys.Delete):
			if len(m.memories) > 0 {
				return m, m.forget()
			}
		}
	}

	return m, nil
}

func (m browseModel) View() string {
	var b strings.Builder

	filter := "all kinds"
	if kind := kindFilters[m.kindIndex]; kind != "" {
		filter = string(kind)
	}

	b.WriteString(browseTitleStyle.Render("loam") + "  " +
		browseMutedStyle.Render(m.scope) + "  " +
		browseKindStyle.Render(filter) + "\n\n")

	if m.loadErr != nil {
		b.WriteString(browseMutedStyle.Render("error: "+m.loadErr.Error()) + "\n")
	}

	if m.view == viewDetail && m.cursor < len(m.memories) {
		b.WriteString(m.renderDetail(m.memories[m.cursor]))
	} else {
		b.WriteString(m.renderList())
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m browseModel) renderList() string {
	if len(m.memories) == 0 {
		return browseMutedStyle.Render("no memories in this scope") + "\n"
	}

	var b strings.Builder
	for i, mem := range m.memories {
		line := fmt.Sprintf("%s %s %s  %s",
			browseIDStyle.Render(fmt.Sprintf("[id:%d]", mem.ID)),
			browseKindStyle.Render(fmt.Sprintf("%-13s", mem.Kind)),
			browseStarStyle.Render(strings.Repeat("★", mem.Importance)),
			browseTextStyle.Render(utils.Truncate(firstLine(mem.Text), 80)),
		)

		if i == m.cursor {
			line = browseHighlightStyle.Render("▌") + " " + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m browseModel) renderDetail(mem *memory.Memory) string {
	md := fmt.Sprintf("# [id:%d] %s\n\n%s\n\n- scope: `%s`\n- importance: %d\n- merged: %d\n- updated: %s\n",
		mem.ID, mem.Kind, mem.Text, mem.Scope, mem.Importance, mem.MergeCount,
		mem.UpdatedAt.Format("2006-01-02 15:04"),
	)

	rendered, err := cliui.RenderMarkdown(md)
	if err != nil {
		return md
	}
	return rendered
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
