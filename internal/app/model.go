package app

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services"
	"github.com/j-veylop/flightwatch/internal/services/provider"
	"github.com/j-veylop/flightwatch/internal/services/summarizer"
	"github.com/j-veylop/flightwatch/internal/ui/components"
	"github.com/j-veylop/flightwatch/internal/ui/styles"
)

// KeyMap defines the keybindings for the dashboard. Printable keys go to
// the ident input, so every action sits on a control key.
type KeyMap struct {
	Submit  key.Binding
	Refresh key.Binding
	Clear   key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "look up")),
		Refresh: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "refetch flight")),
		Clear:   key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear input")),
		Help:    key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "toggle help")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Clear},
		{k.Refresh, k.Help, k.Quit},
	}
}

// Model is the dashboard model.
type Model struct {
	backend      Backend
	state        *State
	eventChannel chan services.ServiceEvent
	keymap       KeyMap
	input        textinput.Model
	help         help.Model
	spinner      components.LoadingSpinner
	fetching     string
	lastIdent    string
	width        int
	height       int
	ready        bool
}

// NewModel creates the dashboard. A nil backend renders an empty dashboard.
func NewModel(b Backend) *Model {
	ti := textinput.New()
	ti.Placeholder = "UAL123"
	ti.Prompt = "✈ "
	ti.PromptStyle = styles.HelpKeyStyle
	ti.CharLimit = 48
	ti.Width = 32
	ti.Focus()

	return &Model{
		backend: b,
		state:   NewState(),
		keymap:  DefaultKeyMap(),
		input:   ti,
		help:    help.New(),
		spinner: components.NewSpinner(""),
	}
}

// State returns the dashboard state.
func (m *Model) State() *State {
	return m.state
}

// Init subscribes to service events and loads the first snapshot.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		tickCmd(DefaultTickInterval),
	}

	if m.backend != nil {
		cmds = append(cmds,
			subscribeToServicesCmd(m.backend),
			loadStatsCmd(m.backend),
			loadSummariesCmd(m.backend),
		)
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case tea.KeyMsg:
		if cmd, handled := m.handleKeyMsg(msg); handled {
			return m, cmd
		}

	case spinner.TickMsg:
		if m.fetching == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		m.state.ClearExpiredNotifications()
		cmds = append(cmds, tickCmd(DefaultTickInterval))
		if m.backend != nil {
			cmds = append(cmds, loadStatsCmd(m.backend))
		}

	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))

	case ServiceEventMsg:
		cmds = append(cmds, m.handleServiceEvent(msg.Event))
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}

	case FlightLoadedMsg:
		cmds = append(cmds, m.handleFlightLoaded(msg))

	case SummariesLoadedMsg:
		if msg.Err != nil {
			cmds = append(cmds, notifyCmd(NotificationError, "loading summaries: "+msg.Err.Error()))
			break
		}
		m.state.SetSummaries(msg.Summaries)

	case StatsLoadedMsg:
		m.state.SetStats(msg.Stats)
		m.state.SetUsage(msg.Usage)

	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		cmds = append(cmds, clearNotificationCmd(id, msg.Duration))

	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit, true

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil, true

	case key.Matches(msg, m.keymap.Clear):
		m.input.Reset()
		return nil, true

	case key.Matches(msg, m.keymap.Refresh):
		if m.backend == nil {
			return nil, true
		}
		cmds := []tea.Cmd{loadStatsCmd(m.backend), loadSummariesCmd(m.backend)}
		if m.lastIdent != "" && m.fetching == "" {
			cmds = append(cmds, m.lookup(m.lastIdent, true))
		}
		return tea.Batch(cmds...), true

	case key.Matches(msg, m.keymap.Submit):
		return m.submit(), true
	}

	return nil, false
}

func (m *Model) submit() tea.Cmd {
	ident, err := models.NormalizeIdent(m.input.Value())
	if err != nil {
		return notifyCmd(NotificationWarning, err.Error())
	}
	if m.fetching != "" || m.backend == nil {
		return nil
	}

	m.input.SetValue(ident)
	return m.lookup(ident, false)
}

func (m *Model) lookup(ident string, refresh bool) tea.Cmd {
	m.fetching = ident
	m.lastIdent = ident
	label := "looking up "
	if refresh {
		label = "refetching "
	}
	m.spinner.SetLabel(label + ident)
	return tea.Batch(m.spinner.Tick, fetchFlightCmd(m.backend, ident, refresh))
}

func (m *Model) handleFlightLoaded(msg FlightLoadedMsg) tea.Cmd {
	m.fetching = ""

	if msg.Err != nil {
		return notifyCmd(lookupSeverity(msg.Err), describeLookupError(msg.Ident, msg.Err))
	}

	m.state.SetFlight(msg.Flight)
	if m.backend != nil {
		return loadStatsCmd(m.backend)
	}
	return nil
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.QuotaUpdatedEvent:
		m.state.SetUsage(e.Usage)

	case services.SummaryStateEvent:
		m.state.AddActivity(e)
		if e.State == summarizer.StateSucceeded && m.backend != nil {
			return loadSummariesCmd(m.backend)
		}

	case services.LimitsReloadedEvent:
		return notifyCmd(NotificationInfo, "limits reloaded")

	case services.ErrorEvent:
		// Lookup failures started here are already reported by handleFlightLoaded.
		if e.Service == "flightdata" && e.Ident == m.fetching {
			return nil
		}
		return notifyCmd(NotificationError, fmt.Sprintf("[%s] %v", e.Service, e.Error))

	case services.StatsEvent:
		m.state.SetStats(e)
	}

	return nil
}

func lookupSeverity(err error) NotificationType {
	if errors.Is(err, provider.ErrNotFound) {
		return NotificationWarning
	}
	return NotificationError
}

func describeLookupError(ident string, err error) string {
	switch {
	case errors.Is(err, provider.ErrNotFound):
		return fmt.Sprintf("%s: no such flight", ident)
	case errors.Is(err, provider.ErrRateLimited):
		if hint := provider.RetryAfterOf(err); hint > 0 {
			return fmt.Sprintf("%s: rate limited, retry in %s", ident, hint)
		}
		return fmt.Sprintf("%s: rate limited", ident)
	default:
		return fmt.Sprintf("%s: %v", ident, err)
	}
}
