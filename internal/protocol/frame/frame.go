package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderLen is the fixed wire header: uint32 message type, uint32 payload length.
const HeaderLen = 8

var (
	ErrConnectionClosed = errors.New("frame: connection closed")
	ErrTruncated        = errors.New("frame: truncated buffer")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
)

// Header is the fixed wire header.
type Header struct {
	MessageType uint32
	PayloadLen  uint32
}

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 64 * 1024 * 1024,
	}
}

// New builds a frame whose header length matches payload.
func New(messageType uint32, payload []byte) Frame {
	return Frame{
		Header:  Header{MessageType: messageType, PayloadLen: uint32(len(payload))},
		Payload: payload,
	}
}

// Len is the number of bytes f occupies on the wire.
func (f Frame) Len() int {
	return HeaderLen + len(f.Payload)
}

// ReadFrame consumes exactly one frame from r.
// A stream that ends before the header or payload is complete yields ErrConnectionClosed.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, fmt.Errorf("%w: header", ErrConnectionClosed)
		}
		return Frame{}, err
	}

	h := DecodeHeader(fixed)
	if limits.MaxPayloadBytes > 0 && h.PayloadLen > limits.MaxPayloadBytes {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, h.PayloadLen)
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return Frame{}, fmt.Errorf("%w: payload message_type=%d len=%d", ErrConnectionClosed, h.MessageType, h.PayloadLen)
			}
			return Frame{}, err
		}
	}

	return Frame{Header: h, Payload: payload}, nil
}

// WriteFrame writes header and payload, looping over short writes.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	if uint64(len(f.Payload)) > uint64(^uint32(0)) {
		return ErrPayloadTooLarge
	}
	if limits.MaxPayloadBytes > 0 && uint32(len(f.Payload)) > limits.MaxPayloadBytes {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}
	return writeAll(w, Append(nil, f))
}

// Append appends the wire encoding of f to dst. PayloadLen is taken from the payload.
func Append(dst []byte, f Frame) []byte {
	h := f.Header
	h.PayloadLen = uint32(len(f.Payload))
	hb := EncodeHeader(h)
	dst = append(dst, hb[:]...)
	return append(dst, f.Payload...)
}

// Split slices the first frame out of buf and returns the remaining bytes.
// The returned payload aliases buf.
func Split(buf []byte) (Frame, []byte, error) {
	if len(buf) < HeaderLen {
		return Frame{}, nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, HeaderLen, len(buf))
	}
	var fixed [HeaderLen]byte
	copy(fixed[:], buf[:HeaderLen])
	h := DecodeHeader(fixed)
	end := uint64(HeaderLen) + uint64(h.PayloadLen)
	if end > uint64(len(buf)) {
		return Frame{}, nil, fmt.Errorf("%w: payload needs %d bytes, have %d", ErrTruncated, h.PayloadLen, len(buf)-HeaderLen)
	}
	return Frame{Header: h, Payload: buf[HeaderLen:end]}, buf[end:], nil
}

func EncodeHeader(h Header) [HeaderLen]byte {
	var buf [HeaderLen]byte
	binary.BigEndian.PutUint32(buf[0:4], h.MessageType)
	binary.BigEndian.PutUint32(buf[4:8], h.PayloadLen)
	return buf
}

func DecodeHeader(b [HeaderLen]byte) Header {
	return Header{
		MessageType: binary.BigEndian.Uint32(b[0:4]),
		PayloadLen:  binary.BigEndian.Uint32(b[4:8]),
	}
}

func writeAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		buf = buf[n:]
	}
	return nil
}
