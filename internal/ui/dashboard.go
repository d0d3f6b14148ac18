package ui

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/link"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/session"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/telemetry"
)

type SessionControl interface {
	Start()
	TogglePause()
	Next()
	Finish()
	ListenToView(ch chan session.View) func()
}

type ConnectionSource interface {
	ListenToState(ch chan<- link.ConnectionState) func()
}

type ReadingSource interface {
	Listen(ch chan<- telemetry.Reading) func()
}

type LogSource interface {
	Listen(ch chan<- string) func()
}

type DashboardArgs struct {
	App        *tview.Application
	Session    SessionControl
	Connection ConnectionSource
	Readings   ReadingSource
	Logs       LogSource
	Logger     *log.Logger
}

// Dashboard is the poolside screen: pace clock, task, telemetry, link state
// and the log tail.
type Dashboard struct {
	app        *tview.Application
	session    SessionControl
	connection ConnectionSource
	readings   ReadingSource
	logs       LogSource
	logger     *log.Logger

	clockPanel     *tview.TextView
	taskPanel      *tview.TextView
	telemetryPanel *tview.TextView
	linkPanel      *tview.TextView
	controlsBar    *tview.TextView
	logView        *tview.TextView
	root           *tview.Flex

	mu       sync.Mutex
	lastView session.View
	logLines logBuffer
}

func NewDashboard(args DashboardArgs) *Dashboard {
	if args.Logger == nil {
		panic("Dashboard: logger cannot be nil")
	}
	if args.App == nil {
		panic("Dashboard: app cannot be nil")
	}
	if args.Session == nil {
		panic("Dashboard: session cannot be nil")
	}
	d := &Dashboard{
		app:        args.App,
		session:    args.Session,
		connection: args.Connection,
		readings:   args.Readings,
		logs:       args.Logs,
		logger:     args.Logger,
	}
	d.initLayout()
	d.setupKeyboardHandlers()
	return d
}

func (d *Dashboard) initLayout() {
	d.clockPanel = newPanel(" Pace Clock ")
	d.taskPanel = newPanel(" Task ")
	d.telemetryPanel = newPanel(" Wearable ")
	d.telemetryPanel.SetText(formatTelemetry(telemetry.Reading{}))
	d.linkPanel = newPanel(" Link ")
	d.linkPanel.SetText(formatConnection(link.Disconnected))

	d.controlsBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	// Refreshed from the log goroutine via QueueUpdateDraw, never through
	// SetChangedFunc, which can hang when lines arrive after Stop.
	d.logView = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(false)
	d.logView.SetBorder(true).SetTitle(" Logs ")

	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.clockPanel, 0, 2, false).
		AddItem(d.taskPanel, 0, 2, false)

	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.telemetryPanel, 0, 2, false).
		AddItem(d.linkPanel, 3, 0, false).
		AddItem(d.logView, 0, 3, false)

	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(left, 0, 1, true).
		AddItem(right, 0, 1, false)

	d.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.controlsBar, 1, 0, false).
		AddItem(body, 0, 1, true)

	d.applyView(session.View{Display: "--"})
}

func newPanel(title string) *tview.TextView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBorder(true).SetTitle(title)
	return tv
}

func (d *Dashboard) setupKeyboardHandlers() {
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape:
			d.logger.Printf("Dashboard: quit requested")
			d.app.Stop()
			return nil
		case tcell.KeyEnter:
			d.session.Start()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case ' ':
				if d.currentView().Status == session.StatusIdle {
					d.session.Start()
				} else {
					d.session.TogglePause()
				}
				return nil
			case 'n', 'N':
				d.session.Next()
				return nil
			case 'f', 'F':
				d.session.Finish()
				return nil
			}
		}
		return event
	})
}

// Run shows the dashboard until Esc is pressed or ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.listen(ctx)
	go_func_utils.SafeGo(d.logger, func() {
		<-ctx.Done()
		d.app.Stop()
	})

	d.app.SetRoot(d.root, true)
	err := d.app.Run()
	d.logger.Printf("Dashboard: closed")
	return err
}

func (d *Dashboard) listen(ctx context.Context) {
	views := make(chan session.View, 1)
	listenLoop(ctx, d.logger, d.session.ListenToView(views), views, func(v session.View) {
		d.mu.Lock()
		d.lastView = v
		d.mu.Unlock()
		d.app.QueueUpdateDraw(func() { d.applyView(v) })
	})

	if d.connection != nil {
		states := make(chan link.ConnectionState, 4)
		listenLoop(ctx, d.logger, d.connection.ListenToState(states), states, func(s link.ConnectionState) {
			d.app.QueueUpdateDraw(func() { d.linkPanel.SetText(formatConnection(s)) })
		})
	}

	if d.readings != nil {
		readings := make(chan telemetry.Reading, 1)
		listenLoop(ctx, d.logger, d.readings.Listen(readings), readings, func(r telemetry.Reading) {
			d.app.QueueUpdateDraw(func() { d.telemetryPanel.SetText(formatTelemetry(r)) })
		})
	}

	if d.logs != nil {
		lines := make(chan string, 64)
		listenLoop(ctx, d.logger, d.logs.Listen(lines), lines, func(line string) {
			d.mu.Lock()
			d.logLines.add(line)
			d.mu.Unlock()
			d.app.QueueUpdateDraw(d.refreshLogView)
		})
	}
}

// listenLoop hands every value from ch to handle until ctx is done. The
// loops are not waited for: a pending QueueUpdateDraw never completes once
// the application has stopped.
func listenLoop[T any](ctx context.Context, logger *log.Logger, unregister func(), ch <-chan T, handle func(T)) {
	go_func_utils.SafeGo(logger, func() {
		defer unregister()
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-ch:
				if !ok {
					return
				}
				handle(v)
			}
		}
	})
}

func (d *Dashboard) currentView() session.View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastView
}

// applyView must run on the tview goroutine.
func (d *Dashboard) applyView(v session.View) {
	d.clockPanel.SetText(formatClock(v))
	d.taskPanel.SetText(formatTask(v))
	d.controlsBar.SetText(formatControls(v))
}

// refreshLogView must run on the tview goroutine.
func (d *Dashboard) refreshLogView() {
	_, _, _, height := d.logView.GetInnerRect()
	d.mu.Lock()
	lines := d.logLines.tail(height)
	d.mu.Unlock()
	d.logView.SetText(strings.Join(lines, "\n"))
}
