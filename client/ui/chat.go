package ui

import (
	"fmt"
	"strings"
	"time"

	"dmchat-client/protocol"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const chatHelp = " Enter:Send | Tab:Scroll | F5:Refresh | F8:Delete last | Esc:Back "

func (a *App) openChat(friendID int64) {
	a.mu.Lock()
	a.currentChat = friendID
	a.unreadCounts[friendID] = 0
	a.mu.Unlock()

	chatPage := a.createChatPage(friendID)
	a.pages.AddPage("chat", chatPage, true, true)
	a.pages.SwitchToPage("chat")

	// Update list to reflect cleared unread count
	a.updateFriendsList()

	a.loadHistory(friendID)
}

func (a *App) getChatTitle(friendID int64) string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	status := "○ offline"
	for _, f := range a.friends {
		if f.ID == friendID && f.Online {
			status = "● online"
		}
	}
	return fmt.Sprintf(" %s ─ %s ", a.friendName(friendID), status)
}

func (a *App) updateChatTitle() {
	if a.chatView != nil && a.currentChat != 0 {
		a.chatView.SetTitle(a.getChatTitle(a.currentChat))
	}
}

func (a *App) createChatPage(friendID int64) tview.Primitive {
	// Chat history view
	a.chatView = tview.NewTextView()
	a.chatView.SetBorder(true)
	a.chatView.SetBorderColor(ColorBorder)
	a.chatView.SetBackgroundColor(ColorBg)
	a.chatView.SetTitle(a.getChatTitle(friendID))
	a.chatView.SetTitleColor(ColorTitle)
	a.chatView.SetTextColor(ColorFg)
	a.chatView.SetDynamicColors(true)
	a.chatView.SetScrollable(true)
	a.chatView.ScrollToEnd()

	// Message input
	a.messageInput = tview.NewInputField()
	a.messageInput.SetLabel("> ")
	a.messageInput.SetFieldWidth(0)
	a.messageInput.SetBackgroundColor(ColorBg)
	a.messageInput.SetFieldBackgroundColor(tcell.NewRGBColor(0, 0, 64))
	a.messageInput.SetFieldTextColor(ColorFg)
	a.messageInput.SetLabelColor(ColorHighlight)
	a.messageInput.SetBorder(true)
	a.messageInput.SetBorderColor(ColorBorder)
	a.messageInput.SetTitle(" Message ")
	a.messageInput.SetTitleColor(ColorTitle)

	a.messageInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			text := a.messageInput.GetText()
			if strings.TrimSpace(text) != "" {
				a.sendMessage(friendID, text)
				a.messageInput.SetText("")
			}
		}
	})

	chatStatus := tview.NewTextView()
	chatStatus.SetBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	chatStatus.SetTextColor(ColorTitle)
	chatStatus.SetTextAlign(tview.AlignCenter)
	chatStatus.SetText(chatHelp)

	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.chatView, 0, 1, false).
		AddItem(a.messageInput, 3, 0, true).
		AddItem(chatStatus, 1, 0, false)
	mainFlex.SetBackgroundColor(ColorBg)

	// Track focus on chat view for scrolling
	chatViewFocused := false

	mainFlex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			if chatViewFocused {
				chatViewFocused = false
				a.app.SetFocus(a.messageInput)
				chatStatus.SetText(chatHelp)
				return nil
			}
			a.closeChat()
			return nil
		case tcell.KeyTab:
			chatViewFocused = !chatViewFocused
			if chatViewFocused {
				a.app.SetFocus(a.chatView)
				chatStatus.SetText(" ↑↓/PgUp/PgDn:Scroll | Home:Top | End:Bottom | Tab/Esc:Input ")
			} else {
				a.app.SetFocus(a.messageInput)
				chatStatus.SetText(chatHelp)
			}
			return nil
		case tcell.KeyF5:
			a.loadHistory(friendID)
			return nil
		case tcell.KeyF8:
			a.showDeleteMessageDialog(friendID)
			return nil
		case tcell.KeyPgUp:
			row, col := a.chatView.GetScrollOffset()
			a.chatView.ScrollTo(row-10, col)
			return nil
		case tcell.KeyPgDn:
			row, col := a.chatView.GetScrollOffset()
			a.chatView.ScrollTo(row+10, col)
			return nil
		case tcell.KeyUp:
			if chatViewFocused {
				row, col := a.chatView.GetScrollOffset()
				a.chatView.ScrollTo(row-1, col)
				return nil
			}
		case tcell.KeyDown:
			if chatViewFocused {
				row, col := a.chatView.GetScrollOffset()
				a.chatView.ScrollTo(row+1, col)
				return nil
			}
		case tcell.KeyHome:
			if chatViewFocused {
				a.chatView.ScrollToBeginning()
				return nil
			}
		case tcell.KeyEnd:
			if chatViewFocused {
				a.chatView.ScrollToEnd()
				return nil
			}
		}
		return event
	})

	return mainFlex
}

func (a *App) loadHistory(friendID int64) {
	client := a.client
	if client == nil {
		return
	}

	go func() {
		ctx, cancel := requestContext()
		defer cancel()

		history, err := client.History(ctx, friendID)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.setConnectionError(fmt.Sprintf("Failed to load history: %v", err))
				return
			}
			a.mu.Lock()
			a.messages[friendID] = history
			a.mu.Unlock()
			a.refreshChatView()
		})
	}()
}

// addMessage records a live message unless history already holds it. It
// reports whether the message was new.
func (a *App) addMessage(peer int64, msg protocol.Message) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, m := range a.messages[peer] {
		if m.ID == msg.ID {
			return false
		}
	}
	a.messages[peer] = append(a.messages[peer], msg)
	return true
}

func (a *App) refreshChatView() {
	if a.chatView == nil {
		return
	}

	a.mu.RLock()
	messages := a.messages[a.currentChat]
	a.mu.RUnlock()

	_, _, width, _ := a.chatView.GetInnerRect()
	if width < 10 {
		width = 80
	}

	now := time.Now()
	var sb strings.Builder
	var lastDate string

	for _, msg := range messages {
		local := msg.Timestamp.Local()

		// Insert date separator when date changes
		if date := local.Format("2006-01-02"); date != lastDate {
			label := formatDateSeparator(local, now)
			padding := (width - len(label)) / 2
			if padding < 0 {
				padding = 0
			}
			sb.WriteString(fmt.Sprintf("[gray]%s%s[-]\n", strings.Repeat(" ", padding), label))
			lastDate = date
		}

		text := tview.Escape(msg.Content)
		if msg.SenderID == a.user.ID {
			sb.WriteString(fmt.Sprintf("[gray]%s[-] [white]→ %s[-]\n", local.Format("15:04:05"), text))
		} else {
			sb.WriteString(fmt.Sprintf("[gray]%s[-] [yellow]← %s[-]\n", local.Format("15:04:05"), text))
		}
	}

	a.chatView.SetText(sb.String())
	a.chatView.ScrollToEnd()
}

// sendMessage hands the text to the server. It shows up in the view when
// the server echoes the stored message back.
func (a *App) sendMessage(friendID int64, text string) {
	if a.client == nil {
		a.setConnectionError("Not connected")
		return
	}
	if err := a.client.SendMessage(a.user.ID, friendID, text); err != nil {
		a.setConnectionError(fmt.Sprintf("Send failed: %v", err))
	}
}

func (a *App) closeChat() {
	a.mu.Lock()
	a.currentChat = 0
	a.mu.Unlock()
	a.chatView = nil
	a.messageInput = nil
	a.pages.RemovePage("chat")
	a.pages.SwitchToPage("main")
	a.app.SetFocus(a.friendsList)
}
