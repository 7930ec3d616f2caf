package internal

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleCommands(t *testing.T) {
	s := setupTestServer(t)
	alice := joinTestClient(t, s, "alice")
	bob := joinTestClient(t, s, "bob")
	alice.expectMessage(Message{Type: MessageTypeJoin, Author: "bob"})

	var out bytes.Buffer
	console := NewConsole(s, &out)

	t.Run("Names", func(t *testing.T) {
		out.Reset()
		require.NoError(t, console.Execute("names"))
		assert.Equal(t, "alice\nbob\n", out.String())
	})

	t.Run("ShowActions", func(t *testing.T) {
		require.NoError(t, console.Execute("s"))
		assert.False(t, s.ShowActions())
		require.NoError(t, console.Execute("SHOW-ACTIONS"))
		assert.True(t, s.ShowActions())
	})

	t.Run("Help", func(t *testing.T) {
		out.Reset()
		require.NoError(t, console.Execute("h"))
		assert.Contains(t, out.String(), "Server Command Help")
	})

	t.Run("Quit", func(t *testing.T) {
		assert.ErrorIs(t, console.Execute("q"), ErrQuit)
		assert.ErrorIs(t, console.Execute("Quit"), ErrQuit)
	})

	t.Run("Broadcast", func(t *testing.T) {
		require.NoError(t, console.Execute("Names are case sensitive here"))
		want := Message{Type: MessageTypeBroadcast, Content: "Names are case sensitive here"}
		alice.expectMessage(want)
		bob.expectMessage(want)
	})

	t.Run("BlankLine", func(t *testing.T) {
		require.NoError(t, console.Execute("   "))
		alice.expectNothing()
	})
}

func TestConsoleRun(t *testing.T) {
	s := setupTestServer(t)
	var out bytes.Buffer
	console := NewConsole(s, &out)

	err := console.Run(context.Background(), strings.NewReader("help\nq\nnames\n"))
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "Type a command")
	assert.Contains(t, out.String(), "Server Command Help")

	err = console.Run(context.Background(), strings.NewReader("help\n"))
	assert.Equal(t, io.EOF, err)
}

func TestConsoleRunCanceled(t *testing.T) {
	s := setupTestServer(t)
	console := NewConsole(s, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, w := io.Pipe()
	defer w.Close()
	assert.ErrorIs(t, console.Run(ctx, r), context.Canceled)
}
