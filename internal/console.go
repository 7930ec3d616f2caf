package internal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ErrQuit is returned by Console.Execute when the operator asks to stop the server.
var ErrQuit = errors.New("quit requested")

// CommandFunc represents an operator command handler.
type CommandFunc func(c *Console, args []string) error

const consoleHelp = `Server Command Help
"names"               - Print the names of all connected clients.
"show-actions" or "s" - Toggle logging of clients joining and leaving.
"quit" or "q"         - Shut down the server.
"help" or "h"         - Show this message.
[any other message]   - Send the text to all clients as a server broadcast.
`

// Console interprets operator commands against a running Server.
type Console struct {
	server   *Server
	out      io.Writer
	commands map[string]CommandFunc
}

func NewConsole(server *Server, out io.Writer) *Console {
	c := &Console{server: server, out: out}
	c.registerCommands()
	return c
}

func (c *Console) registerCommands() {
	names := func(c *Console, args []string) error {
		for _, name := range c.server.Names() {
			fmt.Fprintln(c.out, name)
		}
		return nil
	}
	quit := func(c *Console, args []string) error {
		return ErrQuit
	}
	showActions := func(c *Console, args []string) error {
		if c.server.ToggleShowActions() {
			fmt.Fprintln(c.out, "Showing join and leave actions")
		} else {
			fmt.Fprintln(c.out, "Hiding join and leave actions")
		}
		return nil
	}
	help := func(c *Console, args []string) error {
		fmt.Fprint(c.out, consoleHelp)
		return nil
	}

	c.commands = map[string]CommandFunc{
		"names":        names,
		"quit":         quit,
		"q":            quit,
		"show-actions": showActions,
		"s":            showActions,
		"help":         help,
		"h":            help,
	}
}

// Execute runs one line of operator input. Known commands are matched
// case-insensitively; any other non-empty text is broadcast to every client.
func (c *Console) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	parts := strings.Fields(line)
	if handler, exists := c.commands[strings.ToLower(parts[0])]; exists && len(parts) == 1 {
		return handler(c, parts[1:])
	}

	c.server.Broadcast(line)
	return nil
}

// Run reads commands from in until the operator quits or ctx is done.
// It returns nil on quit and io.EOF once in is exhausted.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, "Type a command or 'h' for help")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		readErr <- err
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			if err := c.Execute(line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				return err
			}
		}
	}
}
