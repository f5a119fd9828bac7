package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	live "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transcripts"
	"github.com/koscakluka/ema-live/core/travel"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

const (
	defaultWidth   = 80
	minWidth       = 20
	maxFlightRows  = 5
	panelIndent    = 2
	truncationTail = "…"
)

type sessionStartedMsg struct {
	session *live.Session
	err     error
}

type sessionEventMsg struct {
	event events.Event
}

type talkModel struct {
	spinner spinner.Model
	styles  styles
	start   tea.Cmd

	session *live.Session
	state   string
	closing bool
	err     error

	entries  []transcripts.Entry
	mode     travel.ViewMode
	payload  travel.VisualPayload
	thinking bool
	notice   string

	width int
}

func newTalkModel(start tea.Cmd) talkModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return talkModel{
		spinner: s,
		styles:  newStyles(),
		start:   start,
		state:   live.StateIdle.String(),
		mode:    travel.ViewModeSearch,
	}
}

func (m talkModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start)
}

func (m talkModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m.hangUp()
		}
		return m, nil

	case sessionStartedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.session = msg.session
		return m, nil

	case sessionEventMsg:
		return m.apply(msg.event)

	default:
		return m, nil
	}
}

// hangUp closes the session and waits for it to report its end. A second
// request, or one before the session opened, quits right away.
func (m talkModel) hangUp() (tea.Model, tea.Cmd) {
	if m.session == nil || m.closing {
		return m, tea.Quit
	}

	m.closing = true
	if err := m.session.Close(); err != nil {
		m.notice = fmt.Sprintf("hang up: %v", err)
	}
	return m, nil
}

func (m talkModel) apply(event events.Event) (tea.Model, tea.Cmd) {
	switch event := event.(type) {
	case events.SessionStateChanged:
		m.state = event.To
	case events.TranscriptUpdated:
		m.entries = event.Entries
	case events.ViewModeChanged:
		m.mode = event.Mode
	case events.ViewThinkingChanged:
		m.thinking = event.Thinking
	case events.ViewPayloadUpdated:
		m.payload = event.Payload
	case events.PlaybackDecodeFailed:
		m.notice = "skipped a garbled piece of the answer"
	case events.SessionGoAway:
		m.notice = fmt.Sprintf("the assistant will hang up in %s", event.TimeLeft)
	case events.SessionEnded:
		if event.Err != nil && !errors.Is(event.Err, live.ErrRemoteClosed) {
			m.err = event.Err
		}
		m.thinking = false
		return m, tea.Quit
	}
	return m, nil
}

func (m talkModel) View() string {
	width := m.wrapWidth()

	var b strings.Builder
	b.WriteString(m.styles.title.Render("ema-live"))
	b.WriteString(" ")
	b.WriteString(m.styles.status.Render(m.status()))
	b.WriteString("\n\n")

	for _, entry := range m.entries {
		b.WriteString(m.renderEntry(entry, width))
		b.WriteString("\n")
	}

	if panel := m.renderPanel(width); panel != "" {
		b.WriteString("\n")
		b.WriteString(panel)
		b.WriteString("\n")
	}

	if m.thinking {
		b.WriteString("\n")
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(m.styles.hint.Render("Looking that up..."))
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.warning.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.hint.Render("press q to hang up"))
	b.WriteString("\n")
	return b.String()
}

func (m talkModel) status() string {
	if m.closing && m.state == live.StateOpen.String() {
		return "hanging up"
	}
	return m.state
}

func (m talkModel) wrapWidth() int {
	if m.width <= 0 {
		return defaultWidth
	}
	return max(minWidth, m.width)
}

func (m talkModel) renderEntry(entry transcripts.Entry, width int) string {
	label := "Assistant:"
	if entry.Speaker == transcripts.SpeakerUser {
		label = "You:"
	}

	text := entry.Text
	if !entry.IsFinal {
		text = m.styles.pending.Render(text)
	}
	return wordwrap.String(m.styles.speaker(entry.Speaker).Render(label)+" "+text, width)
}

func (m talkModel) renderPanel(width int) string {
	switch m.mode {
	case travel.ViewModeItinerary:
		if m.payload.Itinerary == nil {
			return ""
		}
		return m.renderItinerary(*m.payload.Itinerary, width)
	case travel.ViewModeFlights:
		if m.payload.Flights == nil {
			return ""
		}
		return m.renderFlights(m.payload.Flights, width)
	default:
		return ""
	}
}

func (m talkModel) renderItinerary(itinerary travel.Itinerary, width int) string {
	lines := []string{m.styles.panel.Render(fmt.Sprintf("%s, %d days", itinerary.Destination, itinerary.Duration))}
	for _, day := range itinerary.Days {
		line := fmt.Sprintf("Day %d: %s", day.Day, day.Title)
		if len(day.Activities) > 0 {
			line += " (" + strings.Join(day.Activities, ", ") + ")"
		}
		if day.Lodging != "" {
			line += ", staying at " + day.Lodging
		}
		lines = append(lines, indent.String(wordwrap.String(m.styles.detail.Render(line), width-panelIndent), panelIndent))
	}
	return strings.Join(lines, "\n")
}

func (m talkModel) renderFlights(offers []travel.FlightOffer, width int) string {
	if len(offers) == 0 {
		return m.styles.panel.Render("No flights found")
	}

	lines := []string{m.styles.panel.Render(fmt.Sprintf("%d flight offers", len(offers)))}
	for i, offer := range offers {
		if i == maxFlightRows {
			lines = append(lines, indent.String(m.styles.hint.Render(fmt.Sprintf("and %d more", len(offers)-maxFlightRows)), panelIndent))
			break
		}
		line := truncate.StringWithTail(describeOffer(offer), uint(width-panelIndent), truncationTail)
		lines = append(lines, indent.String(m.styles.detail.Render(line), panelIndent))
	}
	return strings.Join(lines, "\n")
}

func describeOffer(offer travel.FlightOffer) string {
	price := strings.TrimSpace(offer.Price.Total + " " + offer.Price.Currency)
	if len(offer.Itineraries) == 0 || len(offer.Itineraries[0].Segments) == 0 {
		return price
	}

	outbound := offer.Itineraries[0]
	first := outbound.Segments[0]
	last := outbound.Segments[len(outbound.Segments)-1]

	stops := "nonstop"
	switch n := len(outbound.Segments) - 1; {
	case n == 1:
		stops = "1 stop"
	case n > 1:
		stops = fmt.Sprintf("%d stops", n)
	}

	description := fmt.Sprintf("%s -> %s  %s  %s  departs %s", first.Departure.IATACode, last.Arrival.IATACode, price, stops, first.Departure.At)
	if len(offer.Itineraries) > 1 {
		description += "  round trip"
	}
	return description
}
