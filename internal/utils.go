package internal

import (
	"fmt"
)

// formatMessage renders msg as a single human readable line.
func formatMessage(msg Message) string {
	switch msg.Type {
	case MessageTypeJoin:
		return fmt.Sprintf("%s joined", msg.Author)
	case MessageTypeRename:
		return fmt.Sprintf("%s is now known as %s", msg.Author, msg.Content)
	case MessageTypeQuit:
		return fmt.Sprintf("%s left", msg.Author)
	case MessageTypeBroadcast:
		return fmt.Sprintf("[SERVER]: %s", msg.Content)
	case MessageTypeFailure:
		return "[ERROR] connection failed"
	default:
		return fmt.Sprintf("[%s]: %s", msg.Author, msg.Content)
	}
}
