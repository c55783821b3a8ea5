// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"bytes"
	"encoding/binary"

	"github.com/roadlog-foundation/roadlog/lib/codec"
)

// frameHeaderSize is the length prefix in front of every envelope.
const frameHeaderSize = 4

// maxFrameSize bounds a single envelope. The largest legitimate frame
// is a thumbnail JPEG (tens of KB); 16 MB leaves two orders of
// magnitude of headroom while rejecting length fields that are
// obviously corruption.
const maxFrameSize = 16 << 20

// Reader iterates over the frames of a decoded log buffer. It is
// lazy (payloads decode as frames are visited), finite, and
// non-restartable. The first malformed frame ends iteration silently;
// see the package comment for why truncation is not an error.
type Reader struct {
	buf  []byte
	pos  int
	done bool
}

// NewReader returns a Reader over buf. The Reader aliases buf — the
// caller must not mutate it during iteration.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Next returns the next decoded event. The second result is false
// when the sequence is exhausted, whether by reaching the end of the
// buffer or by hitting a malformed frame.
func (r *Reader) Next() (Event, bool) {
	for !r.done {
		remaining := len(r.buf) - r.pos
		if remaining < frameHeaderSize {
			r.done = true
			break
		}

		length := int(binary.LittleEndian.Uint32(r.buf[r.pos:]))
		if length == 0 || length > maxFrameSize || length > remaining-frameHeaderSize {
			// Truncated or corrupt frame. Everything before this
			// point has already been yielded; stop here.
			r.done = true
			break
		}

		body := r.buf[r.pos+frameHeaderSize : r.pos+frameHeaderSize+length]

		var env envelope
		if err := codec.Unmarshal(body, &env); err != nil {
			r.done = true
			break
		}

		payload, err := decodePayload(env.Kind, env.Data)
		if err != nil {
			r.done = true
			break
		}

		r.pos += frameHeaderSize + length
		return Event{
			LogMonoTime: env.LogMonoTime,
			Kind:        env.Kind,
			Payload:     payload,
			Raw:         env.Data,
		}, true
	}
	return Event{}, false
}

// Writer accumulates frames into an output buffer. Used by the rlog
// anonymization pass to rebuild a log from allow-listed events, and by
// tests to synthesize device logs.
//
// The zero value is ready to use. Envelopes go through one stream
// encoder into a scratch buffer (the length prefix must be known
// before the body can be written), so appending does not allocate per
// frame.
type Writer struct {
	buf     bytes.Buffer
	scratch bytes.Buffer
	enc     *codec.Encoder
}

// Append marshals payload and writes one frame. A nil payload writes
// an envelope with no data item (legal for kinds whose meaning is the
// timestamp itself).
func (w *Writer) Append(monoTime uint64, kind Kind, payload any) error {
	var raw codec.RawMessage
	if payload != nil {
		data, err := codec.Marshal(payload)
		if err != nil {
			return err
		}
		raw = data
	}
	return w.AppendRaw(monoTime, kind, raw)
}

// AppendRaw writes one frame with an already-encoded payload. The
// anonymization pass uses this to copy allow-listed events without a
// decode/re-encode round trip.
func (w *Writer) AppendRaw(monoTime uint64, kind Kind, raw codec.RawMessage) error {
	if w.enc == nil {
		w.enc = codec.NewEncoder(&w.scratch)
	}
	w.scratch.Reset()
	if err := w.enc.Encode(envelope{
		LogMonoTime: monoTime,
		Kind:        kind,
		Data:        raw,
	}); err != nil {
		return err
	}

	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(w.scratch.Len()))
	w.buf.Write(header[:])
	w.buf.Write(w.scratch.Bytes())
	return nil
}

// Len reports the byte size of the output so far.
func (w *Writer) Len() int { return w.buf.Len() }

// Bytes returns the accumulated frames. The slice aliases the
// Writer's internal buffer.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }
