package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jessevdk/go-flags"

	"pixybot/internal/logger"
	"pixybot/internal/messaging"
)

type Options struct {
	Redis    string `long:"redis" env:"PIXYBOT_REDIS" default:"127.0.0.1:6379" description:"Redis address of the controller"`
	MaxSpeed int    `long:"max-speed" default:"300" description:"Chart y range in steps/s"`
}

const (
	headerHeight = 3
	legendHeight = 2
	footerHeight = 7
	maxLogs      = 5
	borderSize   = 2

	seriesLeft  = "left"
	seriesRight = "right"
)

var seriesColors = map[string]string{
	seriesLeft:  "46", // green
	seriesRight: "51", // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	stateStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
)

type reportMsg messaging.ActionReport
type closedMsg struct{}
type logMsg string

type monitorModel struct {
	redis    *messaging.RedisClient
	reports  <-chan messaging.ActionReport
	chart    *streamlinechart.Model
	width    int
	height   int
	last     messaging.ActionReport
	haveLast bool
	logs     []string
	quitting bool
}

func waitForReport(ch <-chan messaging.ActionReport) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return reportMsg(r)
	}
}

func sendStart(redis *messaging.RedisClient) tea.Cmd {
	return func() tea.Msg {
		if err := redis.SendCommand("start"); err != nil {
			return logMsg(fmt.Sprintf("start failed: %v", err))
		}
		return logMsg("start command sent")
	}
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func initialModel(redis *messaging.RedisClient, reports <-chan messaging.ActionReport, maxSpeed int) monitorModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(float64(-maxSpeed), float64(maxSpeed)),
	)
	for name, color := range seriesColors {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}
	return monitorModel{
		redis:   redis,
		reports: reports,
		chart:   &chart,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return waitForReport(m.reports)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.chartSize()
		m.chart.Resize(w, h)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "s":
			return m, sendStart(m.redis)
		}

	case reportMsg:
		r := messaging.ActionReport(msg)
		if !m.haveLast || r.State != m.last.State {
			m.addLog(fmt.Sprintf("%s  %s", r.Timestamp.Local().Format("15:04:05.000"), r.State))
		}
		if m.haveLast && r.Lifecycle != m.last.Lifecycle {
			m.addLog(fmt.Sprintf("lifecycle %s", r.Lifecycle))
		}
		m.chart.PushDataSet(seriesLeft, float64(r.SpeedL))
		m.chart.PushDataSet(seriesRight, float64(r.SpeedR))
		m.chart.DrawAll()
		m.last = r
		m.haveLast = true
		return m, waitForReport(m.reports)

	case closedMsg:
		m.addLog("telemetry feed closed")
		return m, nil

	case logMsg:
		m.addLog(string(msg))
		return m, nil
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("pixybot monitor"))
	if m.haveLast {
		sb.WriteString("  ")
		sb.WriteString(stateStyle.Render(m.last.State))
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  lifecycle=%s  speed=%d/%d  accel=%d/%d",
			m.last.Lifecycle, m.last.SpeedL, m.last.SpeedR, m.last.AccelL, m.last.AccelR)))
		sb.WriteString("\n")
		sb.WriteString(statusStyle.Render("session " + m.last.Session))
	} else {
		sb.WriteString("\n")
		sb.WriteString(statusStyle.Render("waiting for telemetry..."))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4)

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 's' to start the robot, 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, name := range []string{seriesLeft, seriesRight} {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+name+" wheel")
	}
	return strings.Join(items, "  ")
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.LongDescription = "Live view of the pixybot controller telemetry"

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Logs would corrupt the TUI
	l := logger.NewLogger(nil, logger.LogLevelNone)

	redis := messaging.NewRedisClient(opts.Redis, "monitor", l, messaging.Callbacks{})
	if err := redis.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot reach controller telemetry: %v\n", err)
		os.Exit(1)
	}
	defer redis.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(initialModel(redis, redis.WatchReports(ctx), opts.MaxSpeed), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
}
