// Package codec implements the stateful decoder for the DDMW client
// interface stream: line-oriented telegram and key/value blocks
// interleaved with raw binary sections of caller-declared length.
//
// The decoder is incremental. Decode is called repeatedly against a
// buffer that accumulates bytes as they arrive from the transport; it
// returns a nil Event when more data is needed and never re-scans bytes
// it has already examined. Binary sections are announced by the
// application through the Expect* mode switches, typically right after a
// telegram that declared an upcoming section's length.
//
// A Codec is owned by exactly one connection and is not safe for
// concurrent use.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"ddmw-cli/internal/proto"
)

type state int

const (
	stateTelegram state = iota
	stateParams
	stateKVLines
	stateChunks
	stateBuf
	stateFile
	stateWriter
	stateSkip
)

// Codec tracks the decode state of one connection.
type Codec struct {
	nextLineIndex int
	maxLineLength int

	tg      *proto.Telegram
	params  *proto.Params
	kvlines *proto.KVLines

	state     state
	binRemain int
	pathname  string
	sink      io.Writer
	buf       []byte
}

// New returns a codec expecting a telegram, with no line length bound.
func New() *Codec {
	return &Codec{
		maxLineLength: math.MaxInt,
		tg:            proto.NewTelegram(),
		params:        proto.NewParams(),
		kvlines:       proto.NewKVLines(),
	}
}

// NewWithMaxLength returns a codec that fails decoding when a line
// exceeds maxLineLength bytes.
func NewWithMaxLength(maxLineLength int) *Codec {
	c := New()
	c.maxLineLength = maxLineLength
	return c
}

// MaxLineLength returns the configured line length bound.
func (c *Codec) MaxLineLength() int {
	return c.maxLineLength
}

// Decode consumes bytes from buf and returns the next complete event, or
// nil when more data is needed. Callers append freshly read bytes to buf
// and call Decode until it returns nil.
func (c *Codec) Decode(buf *bytes.Buffer) (Event, error) {
	switch c.state {
	case stateTelegram:
		return c.decodeTelegram(buf)
	case stateParams:
		return c.decodeParams(buf)
	case stateKVLines:
		return c.decodeKVLines(buf)
	case stateChunks:
		return c.decodeChunks(buf)
	case stateBuf:
		return c.decodeBuf(buf)
	case stateFile, stateWriter:
		return c.decodeSink(buf)
	case stateSkip:
		return c.decodeSkip(buf)
	}
	return nil, fmt.Errorf("%w: unknown decoder state %d", proto.ErrBadState, c.state)
}

// ExpectParams switches the decoder to expect a key/value block with no
// topic line. Once the block completes the decoder reverts to expecting a
// telegram.
func (c *Codec) ExpectParams() {
	c.state = stateParams
}

// ExpectKVLines switches the decoder to expect an ordered key/value block
// with no topic line. Once the block completes the decoder reverts to
// expecting a telegram.
func (c *Codec) ExpectKVLines() {
	c.state = stateKVLines
}

// ExpectChunks switches the decoder to hand the next size bytes to the
// application as they arrive, without accumulating them. Each Decode
// yields a ChunkEvent carrying the post-chunk remaining count.
func (c *Codec) ExpectChunks(size int) {
	c.state = stateChunks
	c.binRemain = size
}

// ExpectBuf switches the decoder to accumulate the next size bytes and
// emit a single BufEvent once all of them have arrived.
func (c *Codec) ExpectBuf(size int) error {
	if size == 0 {
		return fmt.Errorf("%w: size must not be zero", proto.ErrInvalidSize)
	}
	c.state = stateBuf
	c.binRemain = size
	c.buf = make([]byte, 0, size)
	return nil
}

// ExpectFile creates pathname and switches the decoder to stream the next
// size bytes into it. On completion the file is closed and a FileEvent
// carrying pathname is emitted.
func (c *Codec) ExpectFile(pathname string, size int) error {
	if size == 0 {
		return fmt.Errorf("%w: size must not be zero", proto.ErrInvalidSize)
	}
	f, err := os.Create(pathname)
	if err != nil {
		return fmt.Errorf("codec: create %s: %w", pathname, err)
	}
	c.state = stateFile
	c.sink = f
	c.pathname = pathname
	c.binRemain = size
	return nil
}

// ExpectWriter switches the decoder to stream the next size bytes into w.
// The decoder takes ownership of w: if it implements io.Closer it is
// closed when the section completes, and a WriteDoneEvent is emitted.
func (c *Codec) ExpectWriter(w io.Writer, size int) error {
	if size == 0 {
		return fmt.Errorf("%w: size must not be zero", proto.ErrInvalidSize)
	}
	c.state = stateWriter
	c.sink = w
	c.binRemain = size
	return nil
}

// Skip switches the decoder to discard the next size bytes, emitting a
// SkipDoneEvent once they have all been consumed.
func (c *Codec) Skip(size int) error {
	if size == 0 {
		return fmt.Errorf("%w: size must not be zero", proto.ErrInvalidSize)
	}
	c.state = stateSkip
	c.binRemain = size
	return nil
}

// nextLine scans buf for the next newline, resuming at the offset the
// previous scan stopped at. It returns found=false with a nil error when
// more data is needed. A found line has its trailing "\r\n" or "\n"
// removed and must be valid UTF-8.
func (c *Codec) nextLine(buf *bytes.Buffer) (line string, found bool, err error) {
	data := buf.Bytes()

	// Bound the scan window; scanning past maxLineLength+1 can never
	// produce a valid line.
	readTo := len(data)
	if c.maxLineLength < readTo {
		readTo = c.maxLineLength + 1
	}

	idx := bytes.IndexByte(data[c.nextLineIndex:readTo], '\n')
	if idx < 0 {
		if len(data) > c.maxLineLength {
			return "", false, fmt.Errorf("%w: exceeded maximum line length", proto.ErrBadFormat)
		}
		// Resume here on the next call instead of re-scanning.
		c.nextLineIndex = readTo
		return "", false, nil
	}

	newlineIndex := c.nextLineIndex + idx
	c.nextLineIndex = 0

	raw := buf.Next(newlineIndex + 1)
	raw = raw[:len(raw)-1]
	if len(raw) > 0 && raw[len(raw)-1] == '\r' {
		raw = raw[:len(raw)-1]
	}
	if !utf8.Valid(raw) {
		return "", false, fmt.Errorf("%w: line is not valid UTF-8", proto.ErrBadFormat)
	}
	return string(raw), true, nil
}

// splitKV splits a parameter line at the first space. Lines without a
// space carry no key/value pair and are ignored.
func splitKV(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, ' ')
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], line[idx+1:], true
}

func (c *Codec) decodeTelegram(buf *bytes.Buffer) (Event, error) {
	for {
		line, found, err := c.nextLine(buf)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		if line == "" {
			// Hand the accumulated telegram to the caller and start fresh.
			tg := c.tg
			c.tg = proto.NewTelegram()
			return &TelegramEvent{Telegram: tg}, nil
		}
		if !c.tg.HasTopic() {
			if err := c.tg.SetTopic(line); err != nil {
				return nil, err
			}
			continue
		}
		if key, value, ok := splitKV(line); ok {
			if err := c.tg.AddParam(key, value); err != nil {
				return nil, err
			}
		}
	}
}

func (c *Codec) decodeParams(buf *bytes.Buffer) (Event, error) {
	for {
		line, found, err := c.nextLine(buf)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		if line == "" {
			c.state = stateTelegram
			p := c.params
			c.params = proto.NewParams()
			return &ParamsEvent{Params: p}, nil
		}
		if key, value, ok := splitKV(line); ok {
			if err := c.params.Add(key, value); err != nil {
				return nil, err
			}
		}
	}
}

func (c *Codec) decodeKVLines(buf *bytes.Buffer) (Event, error) {
	for {
		line, found, err := c.nextLine(buf)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		if line == "" {
			c.state = stateTelegram
			l := c.kvlines
			c.kvlines = proto.NewKVLines()
			return &KVLinesEvent{KVLines: l}, nil
		}
		if key, value, ok := splitKV(line); ok {
			if err := c.kvlines.Append(key, value); err != nil {
				return nil, err
			}
		}
	}
}

func (c *Codec) decodeChunks(buf *bytes.Buffer) (Event, error) {
	if buf.Len() == 0 {
		return nil, nil
	}
	n := min(c.binRemain, buf.Len())
	chunk := append([]byte(nil), buf.Next(n)...)
	c.binRemain -= n
	if c.binRemain == 0 {
		c.state = stateTelegram
	}
	return &ChunkEvent{Data: chunk, Remain: c.binRemain}, nil
}

func (c *Codec) decodeBuf(buf *bytes.Buffer) (Event, error) {
	if buf.Len() == 0 {
		return nil, nil
	}
	n := min(c.binRemain, buf.Len())
	c.buf = append(c.buf, buf.Next(n)...)
	c.binRemain -= n
	if c.binRemain != 0 {
		return nil, nil
	}
	c.state = stateTelegram
	out := c.buf
	c.buf = nil
	return &BufEvent{Data: out}, nil
}

func (c *Codec) decodeSink(buf *bytes.Buffer) (Event, error) {
	if buf.Len() == 0 {
		return nil, nil
	}
	n := min(c.binRemain, buf.Len())
	if _, err := c.sink.Write(buf.Next(n)); err != nil {
		return nil, fmt.Errorf("codec: write to sink: %w", err)
	}
	c.binRemain -= n
	if c.binRemain != 0 {
		return nil, nil
	}

	if err := c.closeSink(); err != nil {
		return nil, fmt.Errorf("codec: close sink: %w", err)
	}

	var ev Event
	if c.state == stateFile {
		if c.pathname == "" {
			return nil, fmt.Errorf("%w: missing pathname", proto.ErrBadState)
		}
		ev = &FileEvent{Path: c.pathname}
		c.pathname = ""
	} else {
		ev = &WriteDoneEvent{}
	}
	c.state = stateTelegram
	return ev, nil
}

func (c *Codec) decodeSkip(buf *bytes.Buffer) (Event, error) {
	if buf.Len() == 0 {
		return nil, nil
	}
	n := min(c.binRemain, buf.Len())
	buf.Next(n)
	c.binRemain -= n
	if c.binRemain != 0 {
		return nil, nil
	}
	c.state = stateTelegram
	return &SkipDoneEvent{}, nil
}

// closeSink releases the output sink exactly once.
func (c *Codec) closeSink() error {
	sink := c.sink
	c.sink = nil
	if closer, ok := sink.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
