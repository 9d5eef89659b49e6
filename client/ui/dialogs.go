package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) showAddFriendDialog() {
	form := tview.NewForm()
	form.SetBackgroundColor(ColorBg)
	form.SetFieldBackgroundColor(tcell.NewRGBColor(0, 0, 64))
	form.SetFieldTextColor(ColorFg)
	form.SetLabelColor(ColorHighlight)
	form.SetButtonBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	form.SetButtonTextColor(ColorTitle)
	form.SetBorder(true)
	form.SetBorderColor(ColorBorder)
	form.SetTitle(" Add Friend ")
	form.SetTitleColor(ColorTitle)

	statusLabel := tview.NewTextView()
	statusLabel.SetBackgroundColor(ColorBg)
	statusLabel.SetTextColor(tcell.ColorRed)

	tagField := tview.NewInputField()
	tagField.SetLabel("name#1234: ")
	tagField.SetFieldWidth(30)

	form.AddFormItem(tagField)

	form.AddButton("Add", func() {
		username, discriminator, ok := strings.Cut(strings.TrimSpace(tagField.GetText()), "#")
		if !ok || username == "" || discriminator == "" {
			statusLabel.SetText("Enter a tag like alice#123456")
			return
		}
		client := a.client
		if client == nil {
			statusLabel.SetText("Not connected")
			return
		}

		go func() {
			ctx, cancel := requestContext()
			defer cancel()

			err := client.AddFriend(ctx, username, discriminator)
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					statusLabel.SetText(err.Error())
					return
				}
				a.pages.RemovePage("dialog")
				a.app.SetFocus(a.friendsList)
				a.loadFriends()
			})
		}()
	})

	form.AddButton("Cancel", func() {
		a.pages.RemovePage("dialog")
		a.app.SetFocus(a.friendsList)
	})

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(form, 50, 0, true).
			AddItem(nil, 0, 1, false), 8, 0, true).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(statusLabel, 50, 0, false).
			AddItem(nil, 0, 1, false), 1, 0, false).
		AddItem(nil, 0, 1, false)
	flex.SetBackgroundColor(ColorBg)

	a.pages.AddPage("dialog", flex, true, true)
	a.app.SetFocus(form)
}

// showDeleteMessageDialog offers to delete the last message we sent in the
// open chat.
func (a *App) showDeleteMessageDialog(friendID int64) {
	a.mu.RLock()
	var target int64
	var preview string
	history := a.messages[friendID]
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].SenderID == a.user.ID {
			target = history[i].ID
			preview = history[i].Content
			break
		}
	}
	a.mu.RUnlock()

	if target == 0 || a.client == nil {
		return
	}
	client := a.client

	modal := tview.NewModal()
	modal.SetText(fmt.Sprintf("Delete %q?", preview))
	modal.SetBackgroundColor(ColorBg)
	modal.SetTextColor(ColorFg)
	modal.SetButtonBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	modal.SetButtonTextColor(ColorTitle)
	modal.AddButtons([]string{"Delete", "Cancel"})
	modal.SetDoneFunc(func(buttonIndex int, buttonLabel string) {
		a.pages.RemovePage("dialog")
		a.app.SetFocus(a.messageInput)
		if buttonLabel != "Delete" {
			return
		}

		go func() {
			ctx, cancel := requestContext()
			defer cancel()

			if err := client.DeleteMessage(ctx, target); err != nil {
				a.app.QueueUpdateDraw(func() {
					a.setConnectionError(fmt.Sprintf("Delete failed: %v", err))
				})
				return
			}
			a.loadHistory(friendID)
		}()
	})

	a.pages.AddPage("dialog", modal, true, true)
}

func (a *App) showDisconnectNotification(reason string) {
	if a.connectionView != nil {
		a.connectionView.SetText(fmt.Sprintf("[red]○ %s[-]\n[gray]Press F6 to reconnect[-]", reason))
	}
}
