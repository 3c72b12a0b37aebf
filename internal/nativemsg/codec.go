// File: internal/nativemsg/codec.go
package nativemsg

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ByteOrder is the byte order of the 4-byte length prefix. Browsers write it
// in the host's native order.
var ByteOrder = binary.NativeEndian

const headerSize = 4

var (
	// ErrEndOfStream means the peer closed the stream cleanly at a frame boundary.
	ErrEndOfStream = errors.New("nativemsg: end of stream")
	// ErrTruncatedMessage means the stream ended inside a frame. It is fatal:
	// the stream can no longer be trusted.
	ErrTruncatedMessage = errors.New("nativemsg: truncated message")
	// ErrDecode means a complete frame arrived but its body was not a valid
	// message. The frame has been consumed, so reading can continue.
	ErrDecode = errors.New("nativemsg: malformed message body")
	// ErrMessageTooLarge means a frame exceeds the configured limit.
	ErrMessageTooLarge = errors.New("nativemsg: message exceeds size limit")
)

// Decoder reads length-prefixed JSON frames. It is not safe for concurrent use.
type Decoder struct {
	r       *bufio.Reader
	maxSize int
}

// NewDecoder returns a Decoder reading from r. maxSize bounds the declared
// body length; zero or less means no bound beyond the 32-bit prefix.
func NewDecoder(r io.Reader, maxSize int) *Decoder {
	return &Decoder{r: bufio.NewReader(r), maxSize: maxSize}
}

// Decode reads exactly one frame.
func (d *Decoder) Decode() (*Message, error) {
	var header [headerSize]byte
	n, err := io.ReadFull(d.r, header[:])
	if err != nil {
		switch {
		case n == 0 && errors.Is(err, io.EOF):
			return nil, ErrEndOfStream
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, fmt.Errorf("%w: length prefix has %d of %d bytes", ErrTruncatedMessage, n, headerSize)
		default:
			return nil, fmt.Errorf("nativemsg: failed to read length prefix: %w", err)
		}
	}

	size := ByteOrder.Uint32(header[:])
	if d.maxSize > 0 && uint64(size) > uint64(d.maxSize) {
		return nil, fmt.Errorf("%w: inbound frame declares %d bytes, limit is %d", ErrMessageTooLarge, size, d.maxSize)
	}

	body := make([]byte, size)
	if n, err := io.ReadFull(d.r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: body has %d of %d bytes", ErrTruncatedMessage, n, size)
		}
		return nil, fmt.Errorf("nativemsg: failed to read message body: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &msg, nil
}

// Encoder writes length-prefixed JSON frames. It is safe for concurrent use;
// each frame is written and flushed atomically.
type Encoder struct {
	mu      sync.Mutex
	w       *bufio.Writer
	maxSize int
}

// NewEncoder returns an Encoder writing to w. Bodies larger than maxSize are
// refused before anything is written; zero or less means no bound beyond the
// 32-bit prefix.
func NewEncoder(w io.Writer, maxSize int) *Encoder {
	return &Encoder{w: bufio.NewWriter(w), maxSize: maxSize}
}

// Encode serializes msg and writes it as a single frame.
func (e *Encoder) Encode(msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("nativemsg: failed to marshal %s message: %w", msg.Type, err)
	}
	if uint64(len(body)) > math.MaxUint32 || (e.maxSize > 0 && len(body) > e.maxSize) {
		return fmt.Errorf("%w: outbound %s message is %d bytes, limit is %d", ErrMessageTooLarge, msg.Type, len(body), e.maxSize)
	}

	var header [headerSize]byte
	ByteOrder.PutUint32(header[:], uint32(len(body)))

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(header[:]); err != nil {
		return fmt.Errorf("nativemsg: failed to write length prefix: %w", err)
	}
	if _, err := e.w.Write(body); err != nil {
		return fmt.Errorf("nativemsg: failed to write message body: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("nativemsg: failed to flush frame: %w", err)
	}
	return nil
}
