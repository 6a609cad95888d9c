// Package tui provides the Bubble Tea pickers used to browse sessions,
// contracts and artifacts.
package tui

import (
	"errors"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
)

// ErrCancelled is returned by Pick when the user leaves without choosing.
var ErrCancelled = errors.New("selection cancelled")

// ErrNoItems is returned by Pick when there is nothing to show.
var ErrNoItems = errors.New("nothing to choose from")

// Item is one selectable entry.
type Item struct {
	Label  string
	Detail string
	Value  string
}

func (i Item) Title() string       { return i.Label }
func (i Item) Description() string { return i.Detail }
func (i Item) FilterValue() string { return i.Label }

// Picker is a filterable single-choice list.
type Picker struct {
	list     list.Model
	choice   *Item
	quitting bool
}

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)
	pickerDocStyle = lipgloss.NewStyle().Margin(1, 2)
)

// NewPicker creates a picker over items.
func NewPicker(title string, items []Item, width, height int) *Picker {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("205")).
		BorderForeground(lipgloss.Color("205"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		BorderForeground(lipgloss.Color("205"))

	listItems := make([]list.Item, len(items))
	for i, it := range items {
		listItems[i] = it
	}

	l := list.New(listItems, delegate, width, height)
	l.Title = title
	l.SetShowStatusBar(len(items) > 10)
	l.SetFilteringEnabled(true)
	l.Filter = fuzzyFilter
	l.Styles.Title = pickerTitleStyle

	return &Picker{list: l}
}

// fuzzyFilter ranks targets by fuzzy match against term.
func fuzzyFilter(term string, targets []string) []list.Rank {
	matches := fuzzy.Find(term, targets)
	ranks := make([]list.Rank, len(matches))
	for i, m := range matches {
		ranks[i] = list.Rank{Index: m.Index, MatchedIndexes: m.MatchedIndexes}
	}
	return ranks
}

// Init implements tea.Model.
func (p *Picker) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (p *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := pickerDocStyle.GetFrameSize()
		p.list.SetSize(msg.Width-h, msg.Height-v)
	case tea.KeyMsg:
		if p.list.FilterState() == list.Filtering {
			break
		}
		switch msg.Type {
		case tea.KeyEnter:
			if it, ok := p.list.SelectedItem().(Item); ok {
				p.choice = &it
			}
			p.quitting = true
			return p, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			if p.list.FilterState() == list.FilterApplied && msg.Type == tea.KeyEsc {
				break
			}
			p.quitting = true
			return p, tea.Quit
		}
		if msg.String() == "q" {
			p.quitting = true
			return p, tea.Quit
		}
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return p, cmd
}

// View implements tea.Model.
func (p *Picker) View() string {
	if p.quitting {
		return ""
	}
	return pickerDocStyle.Render(p.list.View())
}

// Choice returns the selected item, if any.
func (p *Picker) Choice() (Item, bool) {
	if p.choice == nil {
		return Item{}, false
	}
	return *p.choice, true
}

// Pick shows a picker on the terminal and returns the chosen item.
// in and out may be nil to use the process terminal.
func Pick(title string, items []Item, in io.Reader, out io.Writer) (Item, error) {
	if len(items) == 0 {
		return Item{}, ErrNoItems
	}
	var opts []tea.ProgramOption
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}
	opts = append(opts, tea.WithAltScreen())

	final, err := tea.NewProgram(NewPicker(title, items, 80, 20), opts...).Run()
	if err != nil {
		return Item{}, err
	}
	choice, ok := final.(*Picker).Choice()
	if !ok {
		return Item{}, ErrCancelled
	}
	return choice, nil
}
