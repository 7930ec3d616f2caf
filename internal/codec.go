package internal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// DefaultMaxMessageSize is the largest frame payload accepted by default.
const DefaultMaxMessageSize = 64 << 10

// frameHeaderSize is the length of the big-endian payload length prefix.
const frameHeaderSize = 4

// ErrMalformedMessage is returned when bytes read from a peer do not form a valid message.
var ErrMalformedMessage = errors.New("malformed message")

// wireMessage is the JSON form of a Message. Field order is fixed so that
// encoding is deterministic.
type wireMessage struct {
	Type    int    `json:"type"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

// Encode serializes msg into its JSON payload. Author and Content must be
// valid UTF-8 so that Decode returns exactly msg.
func Encode(msg Message) ([]byte, error) {
	if !msg.Type.Valid() {
		return nil, errors.Wrapf(ErrMalformedMessage, "encode: unknown type %d", int(msg.Type))
	}
	if !utf8.ValidString(msg.Author) || !utf8.ValidString(msg.Content) {
		return nil, errors.Wrap(ErrMalformedMessage, "encode: invalid UTF-8")
	}
	return json.Marshal(wireMessage{
		Type:    int(msg.Type),
		Author:  msg.Author,
		Content: msg.Content,
	})
}

// Decode parses a JSON payload produced by Encode. Keys match exactly, so
// "Type" or "TYPE" count as unknown fields and are ignored. Every failure
// matches ErrMalformedMessage.
func Decode(data []byte) (Message, error) {
	if !utf8.Valid(data) {
		return Message{}, errors.Wrap(ErrMalformedMessage, "decode: invalid UTF-8")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Message{}, errors.Wrapf(ErrMalformedMessage, "decode: %v", err)
	}

	var typ int
	var msg Message
	if err := decodeField(fields, "type", &typ); err != nil {
		return Message{}, err
	}
	if err := decodeField(fields, "author", &msg.Author); err != nil {
		return Message{}, err
	}
	if err := decodeField(fields, "content", &msg.Content); err != nil {
		return Message{}, err
	}

	msg.Type = MessageType(typ)
	if !msg.Type.Valid() {
		return Message{}, errors.Wrapf(ErrMalformedMessage, "decode: unknown type %d", typ)
	}
	return msg, nil
}

func decodeField(fields map[string]json.RawMessage, key string, v any) error {
	raw, ok := fields[key]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return errors.Wrapf(ErrMalformedMessage, "decode: missing %s", key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrapf(ErrMalformedMessage, "decode %s: %v", key, err)
	}
	return nil
}

// WriteFrame writes payload preceded by its length in a single Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[frameHeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads exactly one length-prefixed payload from r.
// It returns io.EOF if r ends cleanly before a new frame starts and
// io.ErrUnexpectedEOF if it ends inside a frame.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size == 0 {
		return nil, errors.Wrap(ErrMalformedMessage, "empty frame")
	}
	if maxSize > 0 && uint64(size) > uint64(maxSize) {
		return nil, errors.Wrapf(ErrMalformedMessage, "frame of %d bytes exceeds limit of %d", size, maxSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
