package internal

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	messages := []Message{
		{Type: MessageTypeJoin, Author: "alice"},
		{Type: MessageTypeChat, Author: "alice", Content: "hi"},
		{Type: MessageTypeRename, Author: "alice", Content: "alicia"},
		{Type: MessageTypeQuit, Author: "bob"},
		{Type: MessageTypeBroadcast, Content: "server going down at 5"},
		{Type: MessageTypeFailure},
		{Type: MessageTypeChat, Author: "世界", Content: "quotes \" and <tags> & newlines\n"},
	}

	for _, msg := range messages {
		t.Run(msg.Type.String(), func(t *testing.T) {
			data, err := Encode(msg)
			require.NoError(t, err)

			again, err := Encode(msg)
			require.NoError(t, err)
			assert.Equal(t, data, again, "encoding should be deterministic")

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, msg, decoded)
		})
	}
}

func TestEncodeWireFormat(t *testing.T) {
	data, err := Encode(Message{Type: MessageTypeRename, Author: "a", Content: "b"})
	require.NoError(t, err)
	assert.Equal(t, `{"type":2,"author":"a","content":"b"}`, string(data))
}

func TestEncodeRejectsUnknownType(t *testing.T) {
	_, err := Encode(Message{Type: MessageType(6)})
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	for _, msg := range []Message{
		{Type: MessageTypeChat, Author: "a\xffb", Content: "x"},
		{Type: MessageTypeChat, Author: "a", Content: "x\xc3"},
	} {
		_, err := Encode(msg)
		assert.ErrorIs(t, err, ErrMalformedMessage, "%q/%q", msg.Author, msg.Content)
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	msg, err := Decode([]byte(`{"type":1,"author":"a","content":"b","sent":12}`))
	require.NoError(t, err)
	assert.Equal(t, Message{Type: MessageTypeChat, Author: "a", Content: "b"}, msg)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Empty", ""},
		{"NotJSON", "hello"},
		{"Array", `[0,"a","b"]`},
		{"TypeTooLarge", `{"type":6,"author":"a","content":"b"}`},
		{"NegativeType", `{"type":-1,"author":"a","content":"b"}`},
		{"FractionalType", `{"type":1.5,"author":"a","content":"b"}`},
		{"StringType", `{"type":"chat","author":"a","content":"b"}`},
		{"MissingType", `{"author":"a","content":"b"}`},
		{"MissingAuthor", `{"type":1,"content":"b"}`},
		{"MissingContent", `{"type":1,"author":"a"}`},
		{"NullAuthor", `{"type":1,"author":null,"content":"b"}`},
		{"NumericContent", `{"type":1,"author":"a","content":7}`},
		{"TrailingData", `{"type":1,"author":"a","content":"b"}{}`},
		{"Truncated", `{"type":1,"author":"a","cont`},
		{"TopLevelNull", `null`},
		{"UppercaseKeys", `{"TYPE":1,"Author":"a","CONTENT":"b"}`},
		{"MixedCaseType", `{"Type":1,"author":"a","content":"b"}`},
		{"InvalidUTF8", "{\"type\":1,\"author\":\"a\xff\",\"content\":\"b\"}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestReadFrameSplitAndCoalesced(t *testing.T) {
	first := Message{Type: MessageTypeChat, Author: "alice", Content: "one"}
	second := Message{Type: MessageTypeChat, Author: "alice", Content: "two"}

	var stream bytes.Buffer
	for _, msg := range []Message{first, second} {
		payload, err := Encode(msg)
		require.NoError(t, err)
		require.NoError(t, WriteFrame(&stream, payload))
	}

	// Both frames arrive one byte at a time.
	r := iotest.OneByteReader(bytes.NewReader(stream.Bytes()))
	for _, want := range []Message{first, second} {
		payload, err := ReadFrame(r, DefaultMaxMessageSize)
		require.NoError(t, err)
		got, err := Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ReadFrame(r, DefaultMaxMessageSize)
	assert.Equal(t, io.EOF, err)
}

func TestReadFrameErrors(t *testing.T) {
	t.Run("TruncatedPayload", func(t *testing.T) {
		_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 10, '{'}), DefaultMaxMessageSize)
		assert.Equal(t, io.ErrUnexpectedEOF, err)
	})

	t.Run("TruncatedHeader", func(t *testing.T) {
		_, err := ReadFrame(bytes.NewReader([]byte{0, 0}), DefaultMaxMessageSize)
		assert.Equal(t, io.ErrUnexpectedEOF, err)
	})

	t.Run("EmptyFrame", func(t *testing.T) {
		_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 0}), DefaultMaxMessageSize)
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})

	t.Run("TooLarge", func(t *testing.T) {
		_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 1, 0}), 16)
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})
}
