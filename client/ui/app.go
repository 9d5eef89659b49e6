package ui

import (
	"context"
	"sync"
	"time"

	"dmchat-client/protocol"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const requestTimeout = 10 * time.Second

// App is the main application
type App struct {
	app              *tview.Application
	pages            *tview.Pages
	client           *protocol.Client
	serverURL        string
	user             protocol.User
	currentPass      string
	friends          []protocol.User
	unreadCounts     map[int64]int // unread message count per friend
	messages         map[int64][]protocol.Message
	currentChat      int64
	mu               sync.RWMutex
	friendsList      *tview.List
	chatView         *tview.TextView
	messageInput     *tview.InputField
	statusBar        *tview.TextView
	connectionView   *tview.TextView
	statusTicker     *time.Ticker
	statusTickerDone chan struct{}
}

// NewApp creates a new application instance
func NewApp(serverURL string) *App {
	return &App{
		serverURL:    serverURL,
		unreadCounts: make(map[int64]int),
		messages:     make(map[int64][]protocol.Message),
	}
}

// Run starts the application
func (a *App) Run() error {
	a.app = tview.NewApplication()
	a.pages = tview.NewPages()

	// Create empty background
	background := tview.NewBox()
	background.SetBackgroundColor(tcell.NewRGBColor(64, 64, 64))
	a.pages.AddPage("background", background, true, true)

	// Show auth dialog on top
	a.showAuthDialog()

	return a.app.SetRoot(a.pages, true).EnableMouse(false).Run()
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// quit exits the application
func (a *App) quit() {
	a.stopStatusTicker()
	if a.client != nil && a.client.IsConnected() {
		a.client.Disconnect()
	}
	a.app.Stop()
}
