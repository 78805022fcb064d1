package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/sldlx/internal/formatter"
	"github.com/desertthunder/sldlx/internal/tasks"
)

var (
	_ list.Item = downloadItem{}
)

// downloadItem wraps [tasks.ItemView] to implement [list.Item].
type downloadItem struct {
	view tasks.ItemView
}

func (i downloadItem) FilterValue() string { return i.view.Name }
func (i downloadItem) Title() string       { return i.view.Name }
func (i downloadItem) Description() string {
	parts := []string{styles.status(i.view.Status).Render(i.view.StatusText)}
	if i.view.Detail != "" && i.view.Detail != i.view.StatusText {
		parts = append(parts, i.view.Detail)
	}
	return strings.Join(parts, formatter.DetailSeparator)
}

func toListItems(views []tasks.ItemView) []list.Item {
	items := make([]list.Item, len(views))
	for i, v := range views {
		items[i] = downloadItem{view: v}
	}
	return items
}

func newDownloadList() list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Downloads"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	return l
}
