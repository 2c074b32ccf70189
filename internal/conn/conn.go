// Package conn manages a single framed connection to a DDMW node: dialing
// a TCP or unix-socket endpoint, feeding inbound bytes through the codec,
// and the strict request/reply exchange every higher layer is built on.
//
// A Conn and its codec are owned by exactly one logical task. The
// protocol is strictly sequential per connection: one outstanding
// exchange at a time, no pipelining. No locking is done because there is
// nothing to share.
package conn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"ddmw-cli/internal/codec"
	"ddmw-cli/internal/proto"
)

const readChunkSize = 8 * 1024

// Endpoint selects the transport to a DDMW node: a TCP address, or a
// unix-domain socket path. SocketPath takes precedence when both are set.
type Endpoint struct {
	Addr       string
	SocketPath string
}

func (e Endpoint) network() (network, address string) {
	if e.SocketPath != "" {
		return "unix", e.SocketPath
	}
	return "tcp", e.Addr
}

// String returns the endpoint in network:address form.
func (e Endpoint) String() string {
	network, address := e.network()
	return network + ":" + address
}

// Conn is a framed connection to a DDMW node.
type Conn struct {
	nc     net.Conn
	codec  *codec.Codec
	rbuf   bytes.Buffer
	rchunk []byte
}

// Dial connects to the endpoint and wraps the stream in a framed
// connection with a fresh codec.
func Dial(ctx context.Context, ep Endpoint) (*Conn, error) {
	network, address := ep.network()
	d := &net.Dialer{}
	nc, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ep, err)
	}
	log.Debug().Str("endpoint", ep.String()).Msg("connected")
	return New(nc), nil
}

// New wraps an established stream in a framed connection. It is useful
// for tests and for callers that manage their own transports.
func New(nc net.Conn) *Conn {
	return &Conn{
		nc:     nc,
		codec:  codec.New(),
		rchunk: make([]byte, readChunkSize),
	}
}

// Codec returns the connection's codec so callers can switch decode
// modes between events.
func (c *Conn) Codec() *codec.Codec {
	return c.codec
}

// Close closes the underlying stream. A binary section that was still in
// flight is abandoned; any partially written sink holds truncated data.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// Next returns the next decode event, reading from the transport as
// needed. When the stream ends before an event completes it returns
// ErrDisconnected. Context cancellation is honored via read deadlines;
// without a deadline it is checked between reads.
func (c *Conn) Next(ctx context.Context) (codec.Event, error) {
	for {
		ev, err := c.codec.Decode(&c.rbuf)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			return ev, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d, ok := ctx.Deadline(); ok {
			_ = c.nc.SetReadDeadline(d)
		} else {
			_ = c.nc.SetReadDeadline(time.Time{})
		}

		n, err := c.nc.Read(c.rchunk)
		if n > 0 {
			log.Trace().Int("len", n).Msg("wire read")
			c.rbuf.Write(c.rchunk[:n])
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, proto.ErrDisconnected
			}
			if errors.Is(err, os.ErrDeadlineExceeded) && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read: %w", err)
		}
	}
}

// SendTelegram writes a telegram to the peer.
func (c *Conn) SendTelegram(ctx context.Context, tg *proto.Telegram) error {
	var buf bytes.Buffer
	if err := tg.Encode(&buf); err != nil {
		return err
	}
	log.Trace().Str("topic", tg.Topic()).Int("len", buf.Len()).Msg("wire send telegram")
	return c.write(ctx, buf.Bytes())
}

// SendParams writes a key/value block to the peer.
func (c *Conn) SendParams(ctx context.Context, p *proto.Params) error {
	var buf bytes.Buffer
	p.Encode(&buf)
	return c.write(ctx, buf.Bytes())
}

// SendKVLines writes an ordered key/value block to the peer.
func (c *Conn) SendKVLines(ctx context.Context, l *proto.KVLines) error {
	var buf bytes.Buffer
	l.Encode(&buf)
	return c.write(ctx, buf.Bytes())
}

// SendBytes writes raw bytes to the peer verbatim.
func (c *Conn) SendBytes(ctx context.Context, data []byte) error {
	return c.write(ctx, data)
}

// SendReader streams r to the peer verbatim, returning the number of
// bytes copied.
func (c *Conn) SendReader(ctx context.Context, r io.Reader) (int64, error) {
	c.applyWriteDeadline(ctx)
	n, err := io.Copy(c.nc, r)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	log.Trace().Int64("len", n).Msg("wire send stream")
	return n, nil
}

func (c *Conn) write(ctx context.Context, data []byte) error {
	c.applyWriteDeadline(ctx)
	if _, err := c.nc.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (c *Conn) applyWriteDeadline(ctx context.Context) {
	if d, ok := ctx.Deadline(); ok {
		_ = c.nc.SetWriteDeadline(d)
	} else {
		_ = c.nc.SetWriteDeadline(time.Time{})
	}
}
