package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BYTE-6D65/blinkbreak/pkg/engine"
	"github.com/BYTE-6D65/blinkbreak/pkg/event"
	"github.com/BYTE-6D65/blinkbreak/pkg/game"
	"github.com/BYTE-6D65/blinkbreak/pkg/paddle"
	"github.com/BYTE-6D65/blinkbreak/pkg/sensor"
	"github.com/BYTE-6D65/blinkbreak/pkg/stimulus"
	"github.com/BYTE-6D65/blinkbreak/pkg/trial"
)

// Board size in terminal cells.
const (
	boardCols = 40
	boardRows = 20
	gaugeCols = 30
)

type messageType int

const (
	msgInfo messageType = iota
	msgWarning
	msgError
	msgSuccess
)

type userMessage struct {
	msgType messageType
	text    string
}

// boardSnapshot is a copy of the board taken on the loop goroutine, so the
// view never touches the game directly.
type boardSnapshot struct {
	geom    paddle.Geometry
	ball    game.Ball
	paddleX float64
	paddleY float64
	bricks  []game.Brick
	lives   int
}

func snapshot(p *engine.Pipeline) *boardSnapshot {
	g := p.Game()
	if g == nil {
		return nil
	}
	return &boardSnapshot{
		geom:    g.Paddle().Geometry(),
		ball:    g.Ball(),
		paddleX: g.Paddle().X(),
		paddleY: g.PaddleY(),
		bricks:  g.Bricks(),
		lives:   g.Lives(),
	}
}

// Messages
type frameMsg struct {
	res   engine.FrameResult
	board *boardSnapshot
}

type loopDoneMsg struct {
	err     error
	summary *trial.Summary
}

type errorMsg event.ErrorEvent

type tickMsg struct{}

type model struct {
	app    *app
	cancel context.CancelFunc

	width  int
	height int

	frame   engine.FrameResult
	board   *boardSnapshot
	outcome game.Outcome
	done    bool
	err     error
	summary *trial.Summary

	lastErr      *event.ErrorEvent
	userMessage  *userMessage
	spinnerFrame int
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingTop(1).
			PaddingLeft(2)

	boardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginLeft(2)

	resultsStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1, 2).
			MarginLeft(2)

	statusStyle = lipgloss.NewStyle().PaddingLeft(2)

	pulseStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#FFFFFF")).
			Foreground(lipgloss.Color("#000000"))

	backgroundStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#303030")).
			Foreground(lipgloss.Color("#808080"))

	sensorColors = map[sensor.Status]lipgloss.Color{
		sensor.Disconnected: lipgloss.Color("#FF5555"),
		sensor.Connected:    lipgloss.Color("#FFB800"),
		sensor.Acquiring:    lipgloss.Color("#50FA7B"),
	}

	infoMessageStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#00A9E0")).
				Foreground(lipgloss.Color("#00A9E0")).
				Padding(0, 2).
				MarginTop(1).
				MarginLeft(2)

	warningMessageStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#FFB800")).
				Foreground(lipgloss.Color("#FFB800")).
				Padding(0, 2).
				MarginTop(1).
				MarginLeft(2)

	errorMessageStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#FF5555")).
				Foreground(lipgloss.Color("#FF5555")).
				Padding(0, 2).
				MarginTop(1).
				MarginLeft(2)

	successMessageStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#50FA7B")).
				Foreground(lipgloss.Color("#50FA7B")).
				Padding(0, 2).
				MarginTop(1).
				MarginLeft(2)
)

func newModel(a *app, cancel context.CancelFunc) model {
	return model{app: a, cancel: cancel}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeys(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case frameMsg:
		m.frame = msg.res
		m.board = msg.board
		switch msg.res.Game.Outcome {
		case game.Won:
			m.outcome = game.Won
			m.userMessage = &userMessage{msgSuccess, "You Won! The board has been reset."}
		case game.Lost:
			m.outcome = game.Lost
			m.userMessage = &userMessage{msgWarning, "You Lost! The board has been reset."}
		}
		return m, nil

	case errorMsg:
		evt := event.ErrorEvent(msg)
		if evt.Severity >= event.WarningSeverity {
			m.lastErr = &evt
		}
		return m, nil

	case loopDoneMsg:
		m.done = true
		m.err = msg.err
		m.summary = msg.summary
		if msg.err != nil {
			m.userMessage = &userMessage{msgError, msg.err.Error()}
		}
		return m, nil

	case tickMsg:
		if !m.done {
			m.spinnerFrame = (m.spinnerFrame + 1) % 10
			return m, tick()
		}
	}

	return m, nil
}

func (m model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.cancel()
		return m, tea.Quit

	case "b":
		syn, ok := m.app.source.(*sensor.Synthetic)
		if !ok {
			m.userMessage = &userMessage{msgWarning, "Blink injection needs the synthetic sensor"}
			return m, nil
		}
		syn.Blink()
		m.userMessage = &userMessage{msgInfo, "Blink injected"}

	case "d":
		path := fmt.Sprintf("blinkbreak-%s.dump", time.Now().Format("20060102-150405"))
		if err := m.app.dump(path); err != nil {
			m.userMessage = &userMessage{msgError, err.Error()}
			return m, nil
		}
		m.userMessage = &userMessage{msgSuccess, "Recorder dumped to " + path}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("BlinkBreak · %s", m.app.mode)))
	b.WriteString("\n\n")
	b.WriteString(statusStyle.Render(m.statusLine()))
	b.WriteString("\n\n")

	switch {
	case m.done && m.summary != nil:
		b.WriteString(resultsStyle.Render(formatSummary(*m.summary)))
	case m.app.mode == engine.CalibrationMode:
		b.WriteString(m.calibrationView())
	case m.board != nil:
		b.WriteString(boardStyle.Render(renderBoard(*m.board)))
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(fmt.Sprintf("Gauge %s  Lives %d  Control %s",
			gaugeBar(m.frame.Gauge, gaugeCols), m.board.lives, m.frame.Control)))
	}
	b.WriteString("\n")

	if m.userMessage != nil {
		b.WriteString(m.renderUserMessage())
		b.WriteString("\n")
	}
	if m.lastErr != nil {
		b.WriteString(errorMessageStyle.Render(fmt.Sprintf("%s %s: %s",
			m.lastErr.Code, m.lastErr.Component, m.lastErr.Message)))
		b.WriteString("\n")
	}

	help := "q quit • d dump recorder"
	if _, ok := m.app.source.(*sensor.Synthetic); ok {
		help += " • b blink"
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m model) statusLine() string {
	st := m.frame.Sensor
	square := lipgloss.NewStyle().Foreground(sensorColors[st]).Render("■")
	line := fmt.Sprintf("%s sensor %s  frame %d", square, st, m.frame.Frame)
	if m.frame.Skipped {
		line += "  (waiting for samples)"
	}
	if !m.done {
		line += "  " + m.spinner()
	}
	return line
}

func (m model) calibrationView() string {
	var b strings.Builder

	st := m.frame.Trial
	b.WriteString(renderPatches(m.frame.Draw))
	b.WriteString("\n\n")
	if text := st.Instruction(); text != "" {
		b.WriteString(statusStyle.Render(text))
		b.WriteString("\n")
	}
	if st.Trials > 0 {
		b.WriteString(statusStyle.Render(fmt.Sprintf("Trial %d/%d  %s  %s",
			st.Trial+1, st.Trials, st.State, st.Side)))
		b.WriteString("\n")
	}
	for _, f := range m.frame.Flushes {
		b.WriteString(statusStyle.Render(fmt.Sprintf("%s: %s", f.Route.Side, f.Verdict)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) spinner() string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return frames[m.spinnerFrame]
}

func (m model) renderUserMessage() string {
	var style lipgloss.Style
	switch m.userMessage.msgType {
	case msgInfo:
		style = infoMessageStyle
	case msgWarning:
		style = warningMessageStyle
	case msgError:
		style = errorMessageStyle
	case msgSuccess:
		style = successMessageStyle
	}
	return style.Render(m.userMessage.text)
}

// renderBoard scales the field onto a boardCols x boardRows grid.
func renderBoard(s boardSnapshot) string {
	grid := make([][]rune, boardRows)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", boardCols))
	}
	if s.geom.Width <= 0 || s.geom.Height <= 0 {
		return joinGrid(grid)
	}

	sx := float64(boardCols) / s.geom.Width
	sy := float64(boardRows) / s.geom.Height
	col := func(x float64) int { return clampCell(int(x*sx), boardCols) }
	row := func(y float64) int { return clampCell(int(y*sy), boardRows) }
	span := func(r int, x0, x1 float64, ch rune) {
		for c := col(x0); c <= col(x1-1); c++ {
			grid[r][c] = ch
		}
	}

	for _, b := range s.bricks {
		ch := '▓'
		if b.Health < b.MaxHealth {
			ch = '▒'
		}
		span(row(b.Y), b.X, b.X+b.W, ch)
	}
	span(row(s.paddleY), s.paddleX, s.paddleX+s.geom.PaddleWidth, '=')
	grid[row(s.ball.Pos.Y)][col(s.ball.Pos.X)] = 'o'

	return joinGrid(grid)
}

func clampCell(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

func joinGrid(grid [][]rune) string {
	lines := make([]string, len(grid))
	for i, r := range grid {
		lines[i] = string(r)
	}
	return strings.Join(lines, "\n")
}

// gaugeBar renders percent as a bar of width cells.
func gaugeBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf(" %3d%%", percent)
}

// renderPatches draws the left, center and right patches side by side.
func renderPatches(d stimulus.DrawState) string {
	cells := make([]string, 0, 3)
	for _, side := range []stimulus.Side{stimulus.Left, stimulus.Center, stimulus.Right} {
		box := strings.Repeat(" ", 12)
		label := fmt.Sprintf("%-12s", side)
		switch d.Color(side) {
		case stimulus.Pulse:
			cells = append(cells, pulseStyle.Render(box+"\n"+label+"\n"+box))
		case stimulus.Background:
			cells = append(cells, backgroundStyle.Render(box+"\n"+label+"\n"+box))
		default:
			cells = append(cells, box+"\n"+box+"\n"+box)
		}
	}
	return lipgloss.NewStyle().MarginLeft(2).Render(
		lipgloss.JoinHorizontal(lipgloss.Top, cells[0], "    ", cells[1], "    ", cells[2]))
}

// formatSummary renders the per-trial table written to the flicker log.
func formatSummary(s trial.Summary) string {
	var b strings.Builder
	if err := trial.WriteReport(&b, s); err != nil {
		return err.Error()
	}
	return strings.TrimRight(b.String(), "\n")
}

// runTUI runs the frame loop under a bubbletea program. Frames are sent to
// the program from the loop goroutine; quitting cancels the loop.
func runTUI(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(a, cancel), tea.WithAltScreen())

	if _, err := a.eng.ErrorBus().SubscribeWithHandler(ctx, func(evt event.ErrorEvent) {
		p.Send(errorMsg(evt))
	}); err != nil {
		return err
	}

	loopErr := make(chan error, 1)
	go func() {
		err := a.loop.Run(ctx, func(res engine.FrameResult) bool {
			p.Send(frameMsg{res: res, board: snapshot(a.pipeline)})
			return true
		})
		loopErr <- err

		done := loopDoneMsg{err: err}
		if err == nil && a.mode == engine.CalibrationMode {
			s := a.pipeline.Trials().Summary()
			done.summary = &s
		}
		p.Send(done)
	}()

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err := p.Run()
	cancel()
	if lerr := <-loopErr; err == nil {
		err = lerr
	}
	return err
}
