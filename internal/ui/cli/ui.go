package cli

import (
	"apimatch/internal/core/app"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	unmatchedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	key, title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	itemList    list.Model
	items       []app.Item
	report      *app.Report
	batches     int
	lastUpdate  time.Time
	showDetails bool
	status      string
	watchErr    error
}

type reportMsg struct {
	report *app.Report
}

type watchErrMsg struct {
	err error
}

type sourceJumpResultMsg struct {
	target string
	err    error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return handleKeyActions(msg, m)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		height := msg.Height - v - 10
		if height < 5 {
			height = 5
		}
		m.itemList.SetSize(msg.Width-h, height)
	case reportMsg:
		if msg.report == nil {
			return m, nil
		}
		m.report = msg.report
		m.items = msg.report.Items
		m.batches++
		m.lastUpdate = time.Now()
		m.showDetails = false

		listItems := make([]list.Item, 0, len(m.items))
		for _, it := range m.items {
			listItems = append(listItems, toListItem(it))
		}
		m.itemList.SetItems(listItems)
	case watchErrMsg:
		m.watchErr = msg.err
	case sourceJumpResultMsg:
		if msg.err != nil {
			m.status = statusStyle.Render(fmt.Sprintf("Source jump failed: %v", msg.err))
		} else {
			m.status = statusStyle.Render(fmt.Sprintf("Opened source: %s", msg.target))
		}
	}

	var cmd tea.Cmd
	m.itemList, cmd = m.itemList.Update(msg)
	return m, cmd
}

func toListItem(it app.Item) item {
	title := it.Title
	if it.File != "" && it.Line > 0 {
		title = fmt.Sprintf("%s:%d  %s", it.File, it.Line, it.Title)
	} else if title == "" {
		title = it.Key
	}

	var desc string
	switch {
	case it.Err != nil:
		desc = "error: " + it.Err.Error()
	case len(it.Matches) == 0:
		desc = "no match"
	default:
		top := it.Matches[0]
		desc = fmt.Sprintf("%s (%.3f)", top.FullSignature, top.Confidence)
		if n := len(it.Matches) - 1; n > 0 {
			desc += fmt.Sprintf(" +%d more", n)
		}
	}
	return item{key: it.Key, title: title, desc: desc}
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %d batches", m.lastUpdate.Format("15:04:05"), m.batches))

	summary := statusStyle.Render("Waiting for the first batch")
	if r := m.report; r != nil {
		if r.Failed == 0 && r.Unmatched == 0 {
			summary = successStyle.Render(fmt.Sprintf("%d matched", r.Succeeded))
		} else {
			summary = fmt.Sprintf("%s | %s | %s",
				successStyle.Render(fmt.Sprintf("%d matched", r.Succeeded)),
				unmatchedStyle.Render(fmt.Sprintf("%d unmatched", r.Unmatched)),
				failedStyle.Render(fmt.Sprintf("%d failed", r.Failed)))
		}
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("API Match Monitor"), status, summary)
	help := statusStyle.Render("Keys: / filter | enter details | esc back | o open source | q quit")

	body := m.itemList.View()
	if m.showDetails {
		body += "\n\n" + renderDetails(m)
	}
	if m.watchErr != nil {
		body += "\n\n" + failedStyle.Render("Watch stopped: "+m.watchErr.Error())
	}
	if m.status != "" {
		body += "\n\n" + m.status
	}

	return docStyle.Render(header + "\n" + help + "\n\n" + body)
}

// renderDetails lists every ranked match of the selected item with its reasoning.
func renderDetails(m model) string {
	it, ok := selectedItem(m)
	if !ok {
		return statusStyle.Render("No item selected.")
	}
	lines := []string{fmt.Sprintf("Detail: %s", it.Key)}
	if it.Err != nil {
		return strings.Join(append(lines, failedStyle.Render("  "+it.Err.Error())), "\n")
	}
	if len(it.Matches) == 0 {
		return strings.Join(append(lines, "  no candidate above the threshold"), "\n")
	}
	for i, match := range it.Matches {
		lines = append(lines, fmt.Sprintf("  %d. %s  %.3f", i+1, match.FullSignature, match.Confidence))
		if match.Reasoning != "" {
			lines = append(lines, "     "+match.Reasoning)
		}
	}
	if it.FallbackUsed {
		lines = append(lines, statusStyle.Render("  reasoning unavailable, heuristic ranking used"))
	}
	return strings.Join(lines, "\n")
}

// selectedItem maps the highlighted row back to its report item; the list
// index is relative to the filtered view.
func selectedItem(m model) (app.Item, bool) {
	selected, ok := m.itemList.SelectedItem().(item)
	if !ok {
		return app.Item{}, false
	}
	for _, it := range m.items {
		if it.Key == selected.key {
			return it, true
		}
	}
	return app.Item{}, false
}

func initialModel() model {
	itemList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	itemList.Title = "Resolved Calls"
	itemList.SetShowStatusBar(false)
	itemList.SetFilteringEnabled(true)

	return model{
		itemList:   itemList,
		lastUpdate: time.Now(),
	}
}
