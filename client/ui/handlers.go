package ui

import (
	"encoding/json"

	"dmchat-client/protocol"
)

func (a *App) setupHandlers() {
	// Live messages, including the echo of our own sends
	a.client.OnFrame(protocol.TypeMessage, func(data json.RawMessage) {
		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		peer := msg.Peer(a.user.ID)

		if !a.addMessage(peer, msg) {
			return
		}

		a.mu.Lock()
		if a.currentChat != peer && msg.SenderID != a.user.ID {
			a.unreadCounts[peer]++
		}
		known := false
		for _, f := range a.friends {
			if f.ID == peer {
				known = true
				break
			}
		}
		a.mu.Unlock()

		if !known {
			a.loadFriends()
		}

		a.app.QueueUpdateDraw(func() {
			if a.currentChat == peer && a.chatView != nil {
				a.refreshChatView()
			}
			a.updateFriendsList()
		})
	})

	a.client.OnFrame(protocol.TypeError, func(data json.RawMessage) {
		var e protocol.ErrorData
		if err := json.Unmarshal(data, &e); err != nil {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.setConnectionError(e.Message)
		})
	})

	a.client.OnFrame(protocol.TypeClosed, func(data json.RawMessage) {
		var info protocol.CloseInfo
		json.Unmarshal(data, &info)

		a.app.QueueUpdateDraw(func() {
			a.resetAllStatuses()
			a.updateConnectionStatus()
			a.updateStatusBarText()
			a.updateFriendsList()
			a.showDisconnectNotification(closeReason(info.Code, info.Reason))
		})
	})
}
