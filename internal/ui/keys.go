package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	Help      key.Binding
	Debug     key.Binding
	Mode      key.Binding
	NextX     key.Binding
	PrevX     key.Binding
	NextY     key.Binding
	PrevY     key.Binding
	NextZ     key.Binding
	PrevZ     key.Binding
	Next      key.Binding
	Prev      key.Binding
	Cluster   key.Binding
	More      key.Binding
	Fewer     key.Binding
	Features  key.Binding
	Recompute key.Binding
	Retry     key.Binding

	// feature editor
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	Close  key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Debug:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "debug")),
	Mode:      key.NewBinding(key.WithKeys("m", "tab"), key.WithHelp("m", "2D/3D")),
	NextX:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x/X", "x axis")),
	PrevX:     key.NewBinding(key.WithKeys("X")),
	NextY:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y/Y", "y axis")),
	PrevY:     key.NewBinding(key.WithKeys("Y")),
	NextZ:     key.NewBinding(key.WithKeys("z"), key.WithHelp("z/Z", "z axis")),
	PrevZ:     key.NewBinding(key.WithKeys("Z")),
	Next:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("←/→", "cluster")),
	Prev:      key.NewBinding(key.WithKeys("left", "h")),
	Cluster:   key.NewBinding(key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("0-9", "pick cluster")),
	More:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "cluster count")),
	Fewer:     key.NewBinding(key.WithKeys("-", "_")),
	Features:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "features")),
	Recompute: key.NewBinding(key.WithKeys("u", "enter"), key.WithHelp("u", "recompute")),
	Retry:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry recs")),

	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "move")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
	Close:  key.NewBinding(key.WithKeys("esc", "f"), key.WithHelp("esc", "close")),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Mode, k.NextX, k.NextY, k.Next, k.More, k.Recompute, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Mode, k.NextX, k.NextY, k.NextZ},
		{k.Next, k.Cluster, k.Retry},
		{k.More, k.Features, k.Recompute},
		{k.Debug, k.Help, k.Quit},
	}
}

type editorKeyMap struct{ keyMap }

func (k editorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Toggle, k.Recompute, k.Close}
}

func (k editorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
