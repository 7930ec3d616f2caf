// ui.go
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jroimartin/gocui"

	"relaychat/internal"
)

// ChatUI is the terminal operator console. Log output written to it is shown
// in the messages view; lines typed in the input view run as console commands.
type ChatUI struct {
	gui        *gocui.Gui
	server     *internal.Server
	console    *internal.Console
	address    string
	msgView    string
	inputView  string
	statusView string
	userView   string
	helpView   string
	showHelp   bool

	// stopped is set once MainLoop has returned and no longer drains updates.
	stopped atomic.Bool
}

func NewChatUI(address string) (*ChatUI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	ui := &ChatUI{
		gui:        g,
		address:    address,
		msgView:    "messages",
		inputView:  "input",
		statusView: "status",
		userView:   "users",
		helpView:   "help",
	}

	g.Cursor = true
	g.SetManagerFunc(ui.layout)
	return ui, nil
}

// Write appends p to the messages view. Output after the UI has stopped is dropped.
func (ui *ChatUI) Write(p []byte) (int, error) {
	text := string(p)
	ui.update(func(g *gocui.Gui) error {
		v, err := g.View(ui.msgView)
		if err != nil {
			return nil
		}
		fmt.Fprint(v, text)
		return nil
	})
	return len(p), nil
}

func (ui *ChatUI) update(f func(*gocui.Gui) error) {
	if ui.stopped.Load() {
		return
	}
	ui.gui.Update(f)
}

func (ui *ChatUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	sidebarWidth := 24
	msgWidth := maxX - sidebarWidth - 1
	msgHeight := maxY - 7

	if v, err := g.SetView(ui.msgView, 0, 0, msgWidth, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Activity"
		v.Wrap = true
		v.Autoscroll = true
	}

	if v, err := g.SetView(ui.userView, msgWidth+1, 0, maxX-1, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Clients"
		v.Wrap = true
	}

	if v, err := g.SetView(ui.statusView, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Status"
		v.Wrap = true
	}

	if v, err := g.SetView(ui.inputView, 0, msgHeight+4, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Command or broadcast"
		v.Editable = true
		v.Wrap = true

		if _, err := g.SetCurrentView(ui.inputView); err != nil {
			return err
		}
	}

	if !ui.showHelp {
		if err := g.DeleteView(ui.helpView); err != nil && err != gocui.ErrUnknownView {
			return err
		}
		return nil
	}

	if v, err := g.SetView(ui.helpView, maxX/6, maxY/6, maxX*5/6, maxY*5/6); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Help"
		fmt.Fprintln(v, `Commands:
names           - List connected clients
show-actions, s - Toggle join and leave logging
quit, q         - Shut down the server
help, h         - Show command help
anything else   - Broadcast to all clients

Keybindings:
Ctrl-C          - Quit
Ctrl-H          - Toggle this window
Enter           - Run input`)
	}

	return nil
}

func (ui *ChatUI) refresh() {
	names := ui.server.Names()
	actions := "on"
	if !ui.server.ShowActions() {
		actions = "off"
	}
	status := fmt.Sprintf("Listening on %s | Clients: %d | Actions: %s | Ctrl-H: Help",
		ui.address, len(names), actions)

	ui.update(func(g *gocui.Gui) error {
		if v, err := g.View(ui.userView); err == nil {
			v.Clear()
			for _, name := range names {
				fmt.Fprintln(v, name)
			}
		}
		if v, err := g.View(ui.statusView); err == nil {
			v.Clear()
			fmt.Fprint(v, status)
		}
		return nil
	})
}

func (ui *ChatUI) keybindings() error {
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			return gocui.ErrQuit
		}); err != nil {
		return err
	}

	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlH, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			ui.showHelp = !ui.showHelp
			return nil
		}); err != nil {
		return err
	}

	return ui.gui.SetKeybinding(ui.inputView, gocui.KeyEnter, gocui.ModNone, ui.handleInput)
}

func (ui *ChatUI) handleInput(_ *gocui.Gui, v *gocui.View) error {
	input := strings.TrimSpace(v.Buffer())
	v.Clear()
	v.SetCursor(0, 0)
	v.SetOrigin(0, 0)

	if err := ui.console.Execute(input); err != nil {
		if errors.Is(err, internal.ErrQuit) {
			return gocui.ErrQuit
		}
		return err
	}
	ui.refresh()
	return nil
}

// Run drives the UI until the operator quits or ctx is done.
func (ui *ChatUI) Run(ctx context.Context, server *internal.Server, console *internal.Console) error {
	ui.server = server
	ui.console = console

	if err := ui.keybindings(); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ui.refresh()
			case <-ctx.Done():
				ui.update(func(*gocui.Gui) error {
					return gocui.ErrQuit
				})
				return
			case <-done:
				return
			}
		}
	}()
	ui.refresh()

	err := ui.gui.MainLoop()
	ui.stopped.Store(true)
	if err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

func (ui *ChatUI) Close() {
	ui.stopped.Store(true)
	ui.gui.Close()
}
