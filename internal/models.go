package internal

// MessageType identifies the kind of chat event carried by a Message.
type MessageType int

// Message types, in wire order.
const (
	MessageTypeJoin MessageType = iota
	MessageTypeChat
	MessageTypeRename
	MessageTypeQuit
	MessageTypeBroadcast
	MessageTypeFailure
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	return t >= MessageTypeJoin && t <= MessageTypeFailure
}

func (t MessageType) String() string {
	switch t {
	case MessageTypeJoin:
		return "join"
	case MessageTypeChat:
		return "chat"
	case MessageTypeRename:
		return "rename"
	case MessageTypeQuit:
		return "quit"
	case MessageTypeBroadcast:
		return "broadcast"
	case MessageTypeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Message represents a single chat event.
// Author is empty for server broadcasts, Content is empty for join and quit.
type Message struct {
	Type    MessageType
	Author  string
	Content string
}

// State is the relay state of a connection.
type State int32

// Connection states, in the order a connection moves through them.
const (
	StateConnecting State = iota
	StateAwaitingJoin
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingJoin:
		return "awaiting-join"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
