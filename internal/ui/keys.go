package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the global key bindings. It implements help.KeyMap.
type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Top        key.Binding
	Bottom     key.Binding
	SwitchPane key.Binding
	Open       key.Binding
	More       key.Binding
	Refresh    key.Binding
	Compose    key.Binding
	Delete     key.Binding
	Debug      key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Top:        key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Bottom:     key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
	SwitchPane: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
	Open:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open station")),
	More:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "load more")),
	Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Compose:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "write review")),
	Delete:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete review")),
	Debug:      key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "debug")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Form and prompt keys.
var (
	keySubmit  = key.NewBinding(key.WithKeys("ctrl+s", "enter"), key.WithHelp("enter", "post"))
	keyCancel  = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel"))
	keyConfirm = key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "confirm"))
)

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SwitchPane, k.Open, k.More, k.Compose, k.Delete, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.SwitchPane, k.Open, k.More, k.Refresh},
		{k.Compose, k.Delete},
		{k.Debug, k.Help, k.Quit},
	}
}
