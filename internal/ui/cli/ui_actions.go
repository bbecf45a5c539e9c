package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

func handleKeyActions(msg tea.KeyMsg, m model) (tea.Model, tea.Cmd) {
	// While the filter prompt is open every key belongs to the list.
	if m.itemList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.itemList, cmd = m.itemList.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "enter":
		m.showDetails = !m.showDetails
		return m, nil
	case "esc":
		if m.showDetails {
			m.showDetails = false
			return m, nil
		}
	case "o":
		target, ok := selectedSourceTarget(m)
		if !ok {
			m.status = statusStyle.Render("No source target available.")
			return m, nil
		}
		return m, jumpToSourceCmd(target)
	}

	var cmd tea.Cmd
	m.itemList, cmd = m.itemList.Update(msg)
	return m, cmd
}

type sourceTarget struct {
	file string
	line int
}

func selectedSourceTarget(m model) (sourceTarget, bool) {
	it, ok := selectedItem(m)
	if !ok || it.File == "" {
		return sourceTarget{}, false
	}
	line := it.Line
	if line < 1 {
		line = 1
	}
	return sourceTarget{file: it.File, line: line}, true
}

func jumpToSourceCmd(target sourceTarget) tea.Cmd {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	args := []string{target.file}
	if strings.Contains(editor, "vim") || strings.Contains(editor, "nvim") || strings.HasSuffix(editor, "/vi") || editor == "vi" {
		args = []string{fmt.Sprintf("+%d", target.line), target.file}
	}
	cmd := exec.Command(editor, args...)
	label := fmt.Sprintf("%s:%d", target.file, target.line)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return sourceJumpResultMsg{target: label, err: err}
	})
}
