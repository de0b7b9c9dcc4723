package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/himanishpuri/quadracalc/internal/metronome"
	"github.com/himanishpuri/quadracalc/internal/subdivision"
	"github.com/himanishpuri/quadracalc/internal/tempo"
	"github.com/himanishpuri/quadracalc/pkg/quadracalc"
)

var (
	bpmStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF00"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	accentDot   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Render("●")
	beatDot     = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Render("●")
	idleDot     = dimStyle.Render("○")
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	quickLabels = lipgloss.NewStyle().Width(11)
)

// tapFinalMsg carries a finished tap session into the UI.
type tapFinalMsg struct {
	est tempo.Estimate
	err error
}

// Beat messages carry their channel so ticks from a stopped run are dropped.
type beatMsg struct {
	beat metronome.Beat
	ch   <-chan metronome.Beat
}

type beatsDoneMsg struct {
	ch <-chan metronome.Beat
}

// forwardTaps adapts the service's tap listener to a channel the UI reads.
// The listener can fire from a timer goroutine, so it never blocks.
func forwardTaps(ch chan<- tapFinalMsg) quadracalc.TapListener {
	return func(est tempo.Estimate, err error) {
		select {
		case ch <- tapFinalMsg{est: est, err: err}:
		default:
		}
	}
}

type tapModel struct {
	svc    *quadracalc.Service
	finals <-chan tapFinalMsg

	ctx   context.Context
	sched *metronome.Scheduler
	beats <-chan metronome.Beat
	beat  metronome.Beat
	ticks bool

	bpm      int
	estimate tempo.Estimate
	hasEst   bool
	message  string
	err      error
	quitting bool
}

func newTapModel(ctx context.Context, svc *quadracalc.Service, finals <-chan tapFinalMsg) (*tapModel, error) {
	sched, err := metronome.NewScheduler(svc.CurrentBPM(), metronome.DefaultBeatsPerBar)
	if err != nil {
		return nil, err
	}
	return &tapModel{
		svc:     svc,
		finals:  finals,
		ctx:     ctx,
		sched:   sched,
		bpm:     svc.CurrentBPM(),
		message: "Tap space to the beat",
	}, nil
}

func runTapUI(ctx context.Context, svc *quadracalc.Service, finals <-chan tapFinalMsg) (int, error) {
	m, err := newTapModel(ctx, svc, finals)
	if err != nil {
		return 0, err
	}
	defer m.sched.Stop()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return 0, err
	}
	return svc.CurrentBPM(), nil
}

func waitForFinal(ch <-chan tapFinalMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func waitForBeat(ch <-chan metronome.Beat) tea.Cmd {
	return func() tea.Msg {
		b, ok := <-ch
		if !ok {
			return beatsDoneMsg{ch: ch}
		}
		return beatMsg{beat: b, ch: ch}
	}
}

func (m *tapModel) Init() tea.Cmd {
	return waitForFinal(m.finals)
}

func (m *tapModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tapFinalMsg:
		m.err = msg.err
		if msg.err == nil || quadracalc.IsTempoNotSaved(msg.err) {
			m.estimate = msg.est
			m.hasEst = true
			m.message = fmt.Sprintf("Set to %d BPM from %d taps", msg.est.BPM, msg.est.Taps)
		}
		m.syncBPM()
		return m, waitForFinal(m.finals)

	case beatMsg:
		if msg.ch != m.beats {
			return m, nil
		}
		m.beat = msg.beat
		return m, waitForBeat(m.beats)

	case beatsDoneMsg:
		if msg.ch == m.beats {
			m.ticks = false
			m.beats = nil
		}
		return m, nil
	}
	return m, nil
}

func (m *tapModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		m.sched.Stop()
		return m, tea.Quit

	case " ", "enter", "t":
		est, err := m.svc.TapNow()
		switch {
		case err == nil:
			m.estimate = est
			m.hasEst = true
			m.message = fmt.Sprintf("%d taps", est.Taps)
		case quadracalc.Kind(err) == quadracalc.KindInsufficientData:
			m.hasEst = false
			m.message = fmt.Sprintf("%d tap, keep going", m.svc.TapCount())
		default:
			m.err = err
		}

	case "f":
		// The listener delivers the result; this only ends the session.
		svc := m.svc
		return m, func() tea.Msg {
			svc.FinalizeTap()
			return nil
		}

	case "r":
		m.svc.ResetTap()
		m.hasEst = false
		m.message = "Tap space to the beat"

	case "+", "=", "up":
		if _, err := m.svc.NudgeBPM(1); err != nil {
			m.err = err
		}
		m.syncBPM()
	case "-", "down":
		if _, err := m.svc.NudgeBPM(-1); err != nil {
			m.err = err
		}
		m.syncBPM()
	case "h":
		if _, err := m.svc.HalveBPM(); err != nil {
			m.err = err
		}
		m.syncBPM()
	case "d":
		if _, err := m.svc.DoubleBPM(); err != nil {
			m.err = err
		}
		m.syncBPM()

	case "m":
		return m, m.toggleMetronome()
	}
	return m, nil
}

func (m *tapModel) syncBPM() {
	m.bpm = m.svc.CurrentBPM()
	if err := m.sched.SetBPM(m.bpm); err != nil {
		m.err = err
	}
}

func (m *tapModel) toggleMetronome() tea.Cmd {
	if m.ticks {
		m.sched.Stop()
		m.ticks = false
		m.beats = nil
		return nil
	}
	beats, err := m.sched.Start(m.ctx)
	if err != nil {
		m.err = err
		return nil
	}
	m.ticks = true
	m.beats = beats
	return waitForBeat(beats)
}

func (m *tapModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("quadra.calc · tap tempo"))
	b.WriteString("\n\n")
	b.WriteString(bpmStyle.Render(fmt.Sprintf("%3d BPM", m.bpm)))
	b.WriteString("   ")
	b.WriteString(m.beatView())
	b.WriteString("\n\n")

	if m.hasEst {
		state := "live"
		if m.estimate.Final {
			state = "final"
		}
		fmt.Fprintf(&b, "Estimate %d BPM  accuracy %.0f%%  %s\n", m.estimate.BPM, m.estimate.Accuracy, dimStyle.Render(state))
	} else {
		b.WriteString(dimStyle.Render("Estimate --") + "\n")
	}
	b.WriteString(m.message + "\n\n")

	if quick, err := subdivision.Quick(m.bpm); err == nil {
		f := m.svc.Formatter()
		for _, q := range quick {
			b.WriteString(quickLabels.Render(q.Label) + f.Format(q.Ms) + "\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(quadracalc.UserMessage(m.err)) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("space tap · f finish · r reset · +/- nudge · h/d half/double · m metronome · q quit"))
	return b.String()
}

func (m *tapModel) beatView() string {
	if !m.ticks {
		return strings.Repeat(idleDot+" ", metronome.DefaultBeatsPerBar)
	}
	dots := make([]string, metronome.DefaultBeatsPerBar)
	for i := range dots {
		switch {
		case i+1 != m.beat.InBar:
			dots[i] = idleDot
		case m.beat.Accent:
			dots[i] = accentDot
		default:
			dots[i] = beatDot
		}
	}
	return strings.Join(dots, " ")
}
