package ui

import (
	"fmt"

	"dmchat-client/protocol"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) showAuthDialog() {
	// Form container
	form := tview.NewForm()
	form.SetBackgroundColor(ColorBg)
	form.SetFieldBackgroundColor(tcell.NewRGBColor(0, 0, 64))
	form.SetFieldTextColor(ColorFg)
	form.SetLabelColor(ColorHighlight)
	form.SetButtonBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	form.SetButtonTextColor(ColorTitle)
	form.SetBorder(true)
	form.SetBorderColor(ColorBorder)
	form.SetTitle(" dmchat Login ")
	form.SetTitleColor(ColorTitle)

	statusText := tview.NewTextView()
	statusText.SetBackgroundColor(ColorBg)
	statusText.SetTextColor(tcell.ColorRed)
	statusText.SetTextAlign(tview.AlignCenter)
	statusText.SetDynamicColors(true)

	loginField := tview.NewInputField()
	loginField.SetLabel("Username: ")
	loginField.SetFieldWidth(30)
	loginField.SetBackgroundColor(ColorBg)

	passwordField := tview.NewInputField()
	passwordField.SetLabel("Password: ")
	passwordField.SetFieldWidth(30)
	passwordField.SetMaskCharacter('*')
	passwordField.SetBackgroundColor(ColorBg)

	form.AddFormItem(loginField)
	form.AddFormItem(passwordField)

	submit := func(register bool) {
		login := loginField.GetText()
		password := passwordField.GetText()
		if login == "" || password == "" {
			statusText.SetText("[red]Please enter username and password[-]")
			return
		}
		a.doAuth(login, password, statusText, register)
	}

	form.AddButton("Login", func() { submit(false) })
	form.AddButton("Register", func() { submit(true) })
	form.AddButton("Quit", func() {
		a.app.Stop()
	})

	formFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(statusText, 1, 0, false)

	// Create modal-like container
	width := 54
	height := 12

	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(formFlex, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage("auth", modal, true, true)
	a.app.SetFocus(form)
}

// doAuth logs in (or registers) over HTTP, then opens the websocket as the
// returned user.
func (a *App) doAuth(login, password string, statusText *tview.TextView, register bool) {
	if register {
		statusText.SetText("Registering...")
	} else {
		statusText.SetText("Authenticating...")
	}

	// Run requests in goroutine to avoid blocking UI
	go func() {
		client, err := protocol.NewClient(a.serverURL)
		if err != nil {
			a.app.QueueUpdateDraw(func() {
				statusText.SetText(fmt.Sprintf("[red]%v[-]", err))
			})
			return
		}

		ctx, cancel := requestContext()
		defer cancel()

		var user *protocol.User
		if register {
			user, err = client.Register(ctx, login, password)
		} else {
			user, err = client.Login(ctx, login, password)
		}
		if err != nil {
			a.app.QueueUpdateDraw(func() {
				statusText.SetText(fmt.Sprintf("[red]%v[-]", err))
			})
			return
		}

		a.app.QueueUpdateDraw(func() {
			statusText.SetText("Connecting...")
		})

		a.client = client
		a.setupHandlers()
		if err := client.Connect(user.ID); err != nil {
			a.app.QueueUpdateDraw(func() {
				statusText.SetText(fmt.Sprintf("[red]Connection failed: %v[-]", err))
			})
			return
		}

		a.user = *user
		a.currentPass = password
		a.app.QueueUpdateDraw(func() {
			a.showMainScreen()
		})
	}()
}
