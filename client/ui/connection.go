package ui

import (
	"fmt"
	"time"

	"dmchat-client/protocol"
)

// friendsRefresh is how many status ticks pass between friend list reloads.
const friendsRefresh = 15

func (a *App) updateConnectionStatus() {
	if a.connectionView == nil {
		return
	}
	if a.client != nil && a.client.IsConnected() {
		pingStr := formatDuration(a.client.LastPongTime())
		a.connectionView.SetText(fmt.Sprintf("[green]● Connected to %s[-] [gray]│ Last pong: %s ago[-]", a.serverURL, pingStr))
	} else {
		a.connectionView.SetText(fmt.Sprintf("[red]○ Disconnected from %s[-]", a.serverURL))
	}
}

func (a *App) startStatusTicker() {
	if a.statusTicker != nil {
		return
	}
	a.statusTickerDone = make(chan struct{})
	a.statusTicker = time.NewTicker(1 * time.Second)
	go func() {
		ticks := 0
		for {
			select {
			case <-a.statusTickerDone:
				return
			case <-a.statusTicker.C:
				if a.client == nil || !a.client.IsConnected() {
					continue
				}
				ticks++
				if ticks%friendsRefresh == 0 {
					a.loadFriends()
				}
				a.app.QueueUpdateDraw(func() {
					a.updateConnectionStatus()
				})
			}
		}
	}()
}

func (a *App) stopStatusTicker() {
	if a.statusTicker != nil {
		a.statusTicker.Stop()
		close(a.statusTickerDone)
		a.statusTicker = nil
	}
}

func (a *App) setConnectionError(err string) {
	if a.connectionView == nil {
		return
	}
	a.connectionView.SetText(fmt.Sprintf("[red]✗ Error: %s[-]", err))
}

func (a *App) updateStatusBarText() {
	if a.statusBar == nil {
		return
	}
	if a.client != nil && a.client.IsConnected() {
		a.statusBar.SetText(" F1:Help | F2:Add friend | F5:Refresh | F6:Disconnect | F10:Quit ")
	} else {
		a.statusBar.SetText(" F1:Help | F6:Connect | F10:Quit ")
	}
}

func (a *App) resetAllStatuses() {
	a.mu.Lock()
	for i := range a.friends {
		a.friends[i].Online = false
	}
	a.mu.Unlock()
}

func (a *App) toggleConnection() {
	if a.client != nil && a.client.IsConnected() {
		a.connectionView.SetText("[yellow]Disconnecting...[-]")
		a.client.Disconnect()
		a.resetAllStatuses()
		a.updateConnectionStatus()
		a.updateStatusBarText()
		a.updateFriendsList()
	} else {
		a.connectionView.SetText("[yellow]Connecting...[-]")
		go a.reconnect()
	}
}

// reconnect logs in again with the saved credentials and reopens the
// websocket on a fresh client.
func (a *App) reconnect() {
	client, err := protocol.NewClient(a.serverURL)
	if err == nil {
		ctx, cancel := requestContext()
		_, err = client.Login(ctx, a.user.Username, a.currentPass)
		cancel()
	}
	if err == nil {
		a.client = client
		a.setupHandlers()
		err = client.Connect(a.user.ID)
	}

	a.app.QueueUpdateDraw(func() {
		if err != nil {
			a.setConnectionError(fmt.Sprintf("Connection failed: %v", err))
			a.updateStatusBarText()
			return
		}
		a.updateConnectionStatus()
		a.updateStatusBarText()
		a.loadFriends()
		if a.currentChat != 0 {
			a.loadHistory(a.currentChat)
		}
	})
}
