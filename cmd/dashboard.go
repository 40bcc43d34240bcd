// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Cannasol Technologies

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/sonics"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Run the controller with a live terminal dashboard",
	Long: `Run the controller loop with a live TUI on top: per-channel state,
active mask, aggregate state, and link statistics, refreshed from the
controller's published snapshot.

Transport selection works exactly as for serve. Without --port or
--ws-listen the controller runs against the simulated front end with no
master attached (the comm-fault path will trip, which the dashboard
shows).`,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVar(&wsListen, "ws-listen", "", "Listen address for WebSocket transport")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("dashboard requires a terminal; use serve for headless operation")
	}

	params, cc, err := buildParams()
	if err != nil {
		return err
	}

	var link Connection
	info := "no transport (simulated bench)"
	if wsListen != "" || cc.Serial.Port != "" {
		link, info, err = openLink(cc)
		if err != nil {
			return err
		}
		defer link.Close()
	}

	// The TUI owns the screen; keep controller logging out of it.
	params.Logger = log.New(nullWriter{}, "", 0)
	ctrl := sonics.NewController(params, sonics.NewSimIO(), link)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	m := newDashboardModel(ctrl, info)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

// Styles
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	alertStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

type dashTickMsg time.Time

type dashboardModel struct {
	ctrl     *sonics.Controller
	connInfo string
	table    table.Model
	view     sonics.View
	quitting bool
}

func newDashboardModel(ctrl *sonics.Controller, connInfo string) dashboardModel {
	columns := []table.Column{
		{Title: "CH", Width: 4},
		{Title: "State", Width: 10},
		{Title: "Fault", Width: 8},
		{Title: "Active", Width: 8},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(6),
	)
	return dashboardModel{ctrl: ctrl, connInfo: connInfo, table: t}
}

func dashTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}

func (m dashboardModel) Init() tea.Cmd {
	return dashTick()
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case dashTickMsg:
		m.view = m.ctrl.Snapshot()
		rows := make([]table.Row, 0, len(m.view.Coordinator.Channels))
		for i, st := range m.view.Coordinator.Channels {
			fault := "-"
			if code := m.view.Coordinator.FaultCodes[i]; code != 0 {
				fault = fmt.Sprintf("0x%04X", code)
			}
			active := ""
			if m.view.Coordinator.ActiveMask&(1<<i) != 0 {
				active = "*"
			}
			rows = append(rows, table.Row{
				fmt.Sprintf("%d", i), st.String(), fault, active,
			})
		}
		m.table.SetRows(rows)
		return m, dashTick()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m dashboardModel) View() string {
	if m.quitting {
		return ""
	}

	st := m.view.Coordinator
	header := titleStyle.Render("sonicator-io") + " " +
		statusStyle.Render(m.connInfo)

	master := okStyle.Render(st.Master.String())
	if st.Master == sonics.MasterEmergencyStop {
		master = alertStyle.Render(st.Master.String())
	}

	summary := fmt.Sprintf("master %s   active %d (mask %04b)   transitions %d",
		master, st.ActiveCount(), st.ActiveMask, st.Transitions)
	if m.view.CommFault {
		summary += "   " + alertStyle.Render("COMM FAULT")
	}

	stats := fmt.Sprintf("req %d  resp %d  crc-err %d  proto-err %d  max-rt %s",
		m.view.Stats.RequestsReceived, m.view.Stats.ResponsesSent,
		m.view.Stats.CRCErrors, m.view.Stats.ProtocolErrors(),
		m.view.Stats.MaxResponseTime)

	return header + "\n\n" + summary + "\n\n" + m.table.View() + "\n" +
		statusStyle.Render(stats) + "\n\n" +
		statusStyle.Render("q: quit")
}
