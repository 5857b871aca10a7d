// Package chunkparser decodes the engine's log stream into
// (stream-label, line) pairs.
package chunkparser

import "encoding/binary"

const (
	streamStdin  = 0
	streamStdout = 1
	streamStderr = 2

	headerLen = 8
)

// Emit is called synchronously, once per complete line, with the line
// (trailing newline stripped) and its stream label ("tty", "stdout", or
// "stderr").
type Emit func(line, stream string)

// Parser accepts byte chunks of arbitrary size — chunks may split a
// frame header, a frame payload, or a line anywhere — and never drops
// bytes. It has no internal concurrency and keeps no goroutines; it is
// driven entirely by calls to Write.
type Parser struct {
	tty  bool
	emit Emit

	// header/payload demux state, multiplexed mode only.
	headerBuf   [headerLen]byte
	headerFill  int
	haveHeader  bool
	payloadLeft uint32
	payloadType byte

	// per-stream leftover partial line, keyed by label.
	pending map[string][]byte
}

// New builds a Parser. tty selects raw newline-delimited framing (all
// lines labeled "tty"); otherwise the 8-byte multiplexed frame format is
// assumed.
func New(tty bool, emit Emit) *Parser {
	return &Parser{
		tty:     tty,
		emit:    emit,
		pending: make(map[string][]byte),
	}
}

// Write feeds the bytes of b to the parser. It always consumes the entire
// slice and never returns an error; it satisfies io.Writer so a Parser
// can be driven with io.Copy(parser, resp.Body).
func (p *Parser) Write(b []byte) (int, error) {
	n := len(b)
	if p.tty {
		p.feedLines("tty", b)
		return n, nil
	}
	p.feedFrames(b)
	return n, nil
}

func (p *Parser) feedLines(stream string, b []byte) {
	buf := append(p.pending[stream], b...)
	for {
		i := indexByte(buf, '\n')
		if i < 0 {
			p.pending[stream] = buf
			return
		}
		line := buf[:i]
		p.emit(string(line), stream)
		buf = buf[i+1:]
	}
}

func (p *Parser) feedFrames(b []byte) {
	for len(b) > 0 {
		if !p.haveHeader {
			need := headerLen - p.headerFill
			take := need
			if take > len(b) {
				take = len(b)
			}
			copy(p.headerBuf[p.headerFill:], b[:take])
			p.headerFill += take
			b = b[take:]
			if p.headerFill < headerLen {
				return
			}
			p.haveHeader = true
			p.payloadType = p.headerBuf[0]
			p.payloadLeft = binary.BigEndian.Uint32(p.headerBuf[4:8])
			p.headerFill = 0
		}

		take := int(p.payloadLeft)
		if take > len(b) {
			take = len(b)
		}
		if take > 0 {
			p.feedLines(streamLabel(p.payloadType), b[:take])
			p.payloadLeft -= uint32(take)
			b = b[take:]
		}

		if p.payloadLeft == 0 {
			p.haveHeader = false
		}
	}
}

func streamLabel(t byte) string {
	switch t {
	case streamStderr:
		return "stderr"
	default:
		// stdin (0) is not expected on this endpoint; treat as stdout,
		// same as an unrecognized type.
		return "stdout"
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
