package ui

import (
	"fmt"
)

func (a *App) loadFriends() {
	client := a.client
	if client == nil {
		return
	}

	go func() {
		ctx, cancel := requestContext()
		defer cancel()

		friends, err := client.Friends(ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.setConnectionError(fmt.Sprintf("Failed to load friends: %v", err))
				return
			}
			a.mu.Lock()
			a.friends = friends
			a.mu.Unlock()
			a.updateFriendsList()
			a.updateChatTitle()
		})
	}()
}

func (a *App) friendName(id int64) string {
	for _, f := range a.friends {
		if f.ID == id {
			return f.Tag()
		}
	}
	return fmt.Sprintf("user %d", id)
}

func (a *App) updateFriendsList() {
	if a.friendsList == nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	currentIdx := a.friendsList.GetCurrentItem()
	a.friendsList.Clear()

	for _, friend := range a.friends {
		icon := "[gray]○[white]"
		if friend.Online {
			icon = "[green]●[white]"
		}

		mainText := fmt.Sprintf("%s %s [gray]#%s", icon, friend.Username, friend.Discriminator)
		if unread := a.unreadCounts[friend.ID]; unread > 0 {
			mainText += fmt.Sprintf(" [red](%d)", unread)
		}

		a.friendsList.AddItem(mainText, "", 0, nil)
	}

	if currentIdx >= 0 && currentIdx < a.friendsList.GetItemCount() {
		a.friendsList.SetCurrentItem(currentIdx)
	}
}
