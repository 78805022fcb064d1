package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	start     key.Binding
	stop      key.Binding
	retry     key.Binding
	newRun    key.Binding
	downloads key.Binding
	settings  key.Binding
	openSet   key.Binding
	next      key.Binding
	prev      key.Binding
	cycle     key.Binding
	save      key.Binding
	back      key.Binding
	quit      key.Binding
	forceQuit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		start:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "download")),
		stop:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		retry:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		newRun:    key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "new")),
		downloads: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "downloads")),
		settings:  key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "settings")),
		openSet:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "settings")),
		next:      key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		prev:      key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous")),
		cycle:     key.NewBinding(key.WithKeys("left", "right"), key.WithHelp("←/→", "change")),
		save:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		forceQuit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.start},
		{k.stop, k.retry, k.newRun},
		{k.settings, k.quit},
	}
}

func (k keyMap) inputHelp() []key.Binding {
	return []key.Binding{k.start, k.downloads, k.settings, k.forceQuit}
}

func (k keyMap) downloadsHelp() []key.Binding {
	return []key.Binding{k.up, k.down, k.stop, k.retry, k.newRun, k.openSet, k.quit}
}

func (k keyMap) settingsHelp() []key.Binding {
	return []key.Binding{k.next, k.prev, k.cycle, k.save, k.back}
}
