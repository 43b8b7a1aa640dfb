/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package ws implements the RFC 6455 WebSocket frame codec (spec.md
// §4.13): masking, fragmentation, control frames, ping/pong liveness, and
// the close handshake, layered over the Socket a server or client hands
// off via release_socket.
package ws

import (
	"encoding/binary"
	"io"

	liberr "github.com/sabouaram/httpkit/errors"
)

type Opcode uint8

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

func (o Opcode) IsControl() bool { return o >= OpClose }

// Frame is one decoded WebSocket frame.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	Payload []byte
}

const maxControlPayload = 125

// ReadFrame decodes one frame from r, unmasking the payload if the frame
// is masked (client-to-server frames always are, per RFC 6455 §5.1).
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, liberr.IOError.ErrorParent(err)
	}

	if hdr[0]&0x70 != 0 {
		// RSV1/2/3 are only meaningful with a negotiated extension; this
		// codec negotiates none, so any reserved bit set is a protocol
		// violation per RFC 6455 §5.2.
		return Frame{}, liberr.ProtocolViolation.Error()
	}

	f := Frame{
		Fin:    hdr[0]&0x80 != 0,
		Opcode: Opcode(hdr[0] & 0x0f),
		Masked: hdr[1]&0x80 != 0,
	}

	length := uint64(hdr[1] & 0x7f)
	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, liberr.IOError.ErrorParent(err)
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, liberr.IOError.ErrorParent(err)
		}
		length = binary.BigEndian.Uint64(ext[:])
	}

	if f.Opcode.IsControl() && length > maxControlPayload {
		return Frame{}, liberr.ProtocolViolation.Error()
	}

	var mask [4]byte
	if f.Masked {
		if _, err := io.ReadFull(r, mask[:]); err != nil {
			return Frame{}, liberr.IOError.ErrorParent(err)
		}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, liberr.IOError.ErrorParent(err)
	}

	if f.Masked {
		for i := range payload {
			payload[i] ^= mask[i%4]
		}
	}

	f.Payload = payload
	return f, nil
}

// WriteFrame encodes and writes one frame to w. mask, when non-nil, is sent
// as the masking key and applied to the payload (required for
// client-to-server frames, forbidden the other way per RFC 6455).
func WriteFrame(w io.Writer, opcode Opcode, fin bool, payload []byte, mask *[4]byte) error {
	var hdr []byte

	b0 := byte(opcode)
	if fin {
		b0 |= 0x80
	}
	hdr = append(hdr, b0)

	maskBit := byte(0)
	if mask != nil {
		maskBit = 0x80
	}

	n := len(payload)
	switch {
	case n < 126:
		hdr = append(hdr, maskBit|byte(n))
	case n <= 0xffff:
		hdr = append(hdr, maskBit|126)
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(n))
		hdr = append(hdr, ext[:]...)
	default:
		hdr = append(hdr, maskBit|127)
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(n))
		hdr = append(hdr, ext[:]...)
	}

	if mask != nil {
		hdr = append(hdr, mask[:]...)
	}

	if _, err := w.Write(hdr); err != nil {
		return liberr.IOError.ErrorParent(err)
	}

	if len(payload) == 0 {
		return nil
	}

	out := payload
	if mask != nil {
		out = make([]byte, len(payload))
		for i, b := range payload {
			out[i] = b ^ mask[i%4]
		}
	}

	if _, err := w.Write(out); err != nil {
		return liberr.IOError.ErrorParent(err)
	}
	return nil
}
