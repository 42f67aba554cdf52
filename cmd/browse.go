package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"efd/chains"
	"efd/directory"
	"efd/logging"
	"efd/session"
)

const logLines = 6

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle = lipgloss.NewStyle().Faint(true)
	rule       = strings.Repeat("─", 60)
)

func browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse [address|name]",
		Short: "Browse profiles interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("browse needs an interactive terminal, try lookup")
			}

			sink := logging.NewSink(256)
			closeLog, err := setupLogging(sink)
			if err != nil {
				return err
			}
			defer closeLog()

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctrl := eng.controller()
			if len(args) == 1 {
				ctrl.NavigateTo(args[0])
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				err := ctrl.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				defer cancel()
				_, err := tea.NewProgram(newBrowseModel(ctx, ctrl, sink), tea.WithAltScreen()).Run()
				return err
			})
			return g.Wait()
		},
	}
}

type stateMsg struct{ state session.State }

type logMsg struct{ line string }

// commands is the part of the controller the browser drives.
type commands interface {
	ConnectWallet()
	NavigateTo(query string)
	RefreshCurrentUser()
	RefreshDisplayedUser()
	Snapshot() session.State
	Changes() <-chan session.State
}

type browseModel struct {
	ctx   context.Context
	ctrl  commands
	lines <-chan string

	state  session.State
	input  string
	cursor int
	logs   []string
}

func newBrowseModel(ctx context.Context, ctrl commands, sink *logging.Sink) browseModel {
	return browseModel{
		ctx:   ctx,
		ctrl:  ctrl,
		lines: sink.Lines(),
		state: ctrl.Snapshot(),
	}
}

func (m browseModel) Init() tea.Cmd {
	return tea.Batch(m.waitForState(), m.waitForLog())
}

func (m browseModel) waitForState() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-m.ctrl.Changes():
			return stateMsg{state: s}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m browseModel) waitForLog() tea.Cmd {
	return func() tea.Msg {
		select {
		case line := <-m.lines:
			return logMsg{line: line}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case stateMsg:
		m.state = v.state
		return m, m.waitForState()

	case logMsg:
		m.logs = append(m.logs, v.line)
		if len(m.logs) > logLines {
			m.logs = m.logs[len(m.logs)-logLines:]
		}
		return m, m.waitForLog()

	case tea.KeyMsg:
		return m.handleKey(v)
	}
	return m, nil
}

func (m browseModel) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		text := strings.TrimSpace(m.input)
		m.input, m.cursor = "", 0
		if text != "" {
			m.ctrl.NavigateTo(m.target(text))
		}

	case tea.KeyCtrlO:
		m.ctrl.ConnectWallet()

	case tea.KeyCtrlR:
		m.ctrl.RefreshDisplayedUser()

	case tea.KeyCtrlU:
		m.ctrl.RefreshCurrentUser()

	case tea.KeyCtrlE:
		if u := m.state.CurrentUser; u != nil {
			m.ctrl.NavigateTo(u.Hex())
		}

	case tea.KeyBackspace:
		if m.cursor > 0 {
			_, size := utf8.DecodeLastRuneInString(m.input[:m.cursor])
			m.input = m.input[:m.cursor-size] + m.input[m.cursor:]
			m.cursor -= size
		}

	case tea.KeyLeft:
		if m.cursor > 0 {
			_, size := utf8.DecodeLastRuneInString(m.input[:m.cursor])
			m.cursor -= size
		}

	case tea.KeyRight:
		if m.cursor < len(m.input) {
			_, size := utf8.DecodeRuneInString(m.input[m.cursor:])
			m.cursor += size
		}

	case tea.KeySpace:
		m.insert(" ")

	case tea.KeyRunes:
		m.insert(string(k.Runes))
	}
	return m, nil
}

func (m *browseModel) insert(s string) {
	m.input = m.input[:m.cursor] + s + m.input[m.cursor:]
	m.cursor += len(s)
}

// target maps a friend number on the displayed profile to that friend's
// address. Any other text is passed through as a query.
func (m browseModel) target(text string) string {
	n, err := strconv.Atoi(text)
	if err != nil || m.state.Displayed == nil {
		return text
	}
	friends := m.state.Displayed.Friends()
	if n < 1 || n > len(friends) {
		return text
	}
	return friends[n-1].Hex()
}

func (m browseModel) View() string {
	var b strings.Builder
	s := m.state

	b.WriteString(titleStyle.Render("EFD | Ethereum Friend Directory") + "\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Network: %s   Wallet: %s\n", networkLabel(s), walletLabel(s))
	b.WriteString(rule + "\n")

	if s.Err != session.ErrorNone {
		line := "Error: " + s.Err.String()
		if s.ErrDetail != "" {
			line += ": " + s.ErrDetail
		}
		b.WriteString(errorStyle.Render(line) + "\n")
		b.WriteString(rule + "\n")
	}

	switch {
	case !s.Ready && s.Err == session.ErrorNone:
		b.WriteString("Connecting...\n")
	case s.IsLoading:
		b.WriteString("Loading " + s.Query + "...\n")
	case s.NotFound:
		b.WriteString("No profile found for " + s.Query + "\n")
	case s.Displayed == nil:
		b.WriteString(faintStyle.Render("(enter an address or ENS name)") + "\n")
	}
	if s.Displayed != nil && !s.NotFound {
		renderProfile(&b, s.Displayed, s.CurrentUser)
	}
	b.WriteString(rule + "\n")

	cursor := m.cursor
	if cursor > len(m.input) {
		cursor = len(m.input)
	}
	b.WriteString("> " + m.input[:cursor] + "_" + m.input[cursor:] + "\n")
	b.WriteString(rule + "\n")

	for _, line := range m.logs {
		b.WriteString(faintStyle.Render(line) + "\n")
	}
	if len(m.logs) > 0 {
		b.WriteString(rule + "\n")
	}

	b.WriteString(faintStyle.Render("enter: go  1-9: open friend  ctrl+o: connect  ctrl+e: me  ctrl+r/ctrl+u: refresh  esc: quit") + "\n")
	return b.String()
}

func renderProfile(b *strings.Builder, p, me *directory.Profile) {
	header := p.Hex()
	if name, ok := p.Name(); ok {
		header = name + "  " + faintStyle.Render(p.Hex())
	}
	b.WriteString(titleStyle.Render(header))

	mutual := make(map[string]bool)
	switch {
	case me != nil && me.Address() == p.Address():
		b.WriteString("  (you)")
	case me != nil:
		shared := directory.Mutuals(me, p)
		for _, f := range shared {
			mutual[f.Hex()] = true
		}
		fmt.Fprintf(b, "  %d mutual", len(shared))
	}
	b.WriteString("\n")

	fmt.Fprintf(b, "Friends (%d):\n", p.FriendCount())
	for i, f := range p.Friends() {
		marker := " "
		if mutual[f.Hex()] {
			marker = "*"
		}
		label := f.Hex()
		if f.Name != "" {
			label = f.Name + "  " + faintStyle.Render(f.Hex())
		}
		fmt.Fprintf(b, " %s %2d. %s\n", marker, i+1, label)
	}
}

func networkLabel(s session.State) string {
	if !s.NetworkKnown {
		return "unknown"
	}
	return fmt.Sprintf("%s (%d)", chains.Name(s.ChainID), s.ChainID)
}

func walletLabel(s session.State) string {
	switch {
	case !s.CanConnectWallet && s.Ready:
		return "none (read-only)"
	case s.Connection == session.Connected && s.CurrentUser != nil:
		return "connected as " + s.CurrentUser.Label()
	case s.Connection == session.Connected:
		return "connected " + strings.ToLower(s.Account.Hex())
	default:
		return s.Connection.String()
	}
}
