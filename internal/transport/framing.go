package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"redub/internal/services"
)

// Wire layout: uint32 frame count, then for each frame a uint32 length
// followed by that many bytes. All integers are big-endian. Frame 0 is the
// JSON header; frames 1..n are opaque binary payloads.

const maxFrameCount = 64

// WriteEnvelope frames env onto w. Used by the worker side of the
// protocol; clients go through ConnectionManager.
func WriteEnvelope(w io.Writer, env Envelope) error {
	return writeEnvelope(w, env)
}

// ReadEnvelope reads one framed envelope from r, rejecting frames larger
// than maxFrameBytes (0 disables the limit).
func ReadEnvelope(r io.Reader, maxFrameBytes int) (Envelope, error) {
	return readEnvelope(r, maxFrameBytes)
}

func writeEnvelope(w io.Writer, env Envelope) error {
	total := 1 + len(env.Frames)
	if total > maxFrameCount {
		return services.Wrap(services.ErrTransport, "framing", "write", fmt.Sprintf("%d frames exceeds limit %d", total, maxFrameCount), nil)
	}
	// Buffer the whole envelope so a single Write hits the socket and
	// concurrent senders cannot interleave frames.
	var buf bytes.Buffer
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(total))
	buf.Write(scratch[:])
	writeFrame := func(frame []byte) {
		binary.BigEndian.PutUint32(scratch[:], uint32(len(frame)))
		buf.Write(scratch[:])
		buf.Write(frame)
	}
	writeFrame(env.Header)
	for _, frame := range env.Frames {
		writeFrame(frame)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return services.Wrap(services.ErrTransport, "framing", "write", "socket write", err)
	}
	return nil
}

func readEnvelope(r io.Reader, maxFrameBytes int) (Envelope, error) {
	var scratch [4]byte
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return Envelope{}, services.Wrap(services.ErrTransport, "framing", "read", "frame count", err)
	}
	count := binary.BigEndian.Uint32(scratch[:])
	if count == 0 || count > maxFrameCount {
		return Envelope{}, services.Wrap(services.ErrTransport, "framing", "read", fmt.Sprintf("invalid frame count %d", count), nil)
	}
	readFrame := func() ([]byte, error) {
		if _, err := io.ReadFull(r, scratch[:]); err != nil {
			return nil, services.Wrap(services.ErrTransport, "framing", "read", "frame length", err)
		}
		size := binary.BigEndian.Uint32(scratch[:])
		if maxFrameBytes > 0 && int(size) > maxFrameBytes {
			return nil, services.Wrap(services.ErrTransport, "framing", "read", fmt.Sprintf("frame of %d bytes exceeds limit %d", size, maxFrameBytes), nil)
		}
		frame := make([]byte, size)
		if _, err := io.ReadFull(r, frame); err != nil {
			return nil, services.Wrap(services.ErrTransport, "framing", "read", "frame body", err)
		}
		return frame, nil
	}
	header, err := readFrame()
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{Header: header}
	for i := uint32(1); i < count; i++ {
		frame, err := readFrame()
		if err != nil {
			return Envelope{}, err
		}
		env.Frames = append(env.Frames, frame)
	}
	return env, nil
}
