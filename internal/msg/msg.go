// Package msg implements the message transfer protocol: announce a
// transfer with a Msg control telegram, stream its metadata and payload
// sections, and await the per-section acknowledgements. Sections are
// strictly sequential; nothing is pipelined.
package msg

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog/log"

	"ddmw-cli/internal/auth"
	"ddmw-cli/internal/conn"
	"ddmw-cli/internal/proto"
)

// Content is one transferable piece of message content: a structured
// key/value block, a file on disk, or an in-memory buffer.
type Content interface {
	size() (uint64, error)
	send(ctx context.Context, c *conn.Conn) error
}

// ParamsContent sends a key/value block in its encoded line form.
type ParamsContent struct {
	Params *proto.Params
}

func (p ParamsContent) size() (uint64, error) {
	return uint64(p.Params.EncodedSize()), nil
}

func (p ParamsContent) send(ctx context.Context, c *conn.Conn) error {
	return c.SendParams(ctx, p.Params)
}

// FileContent streams a file from disk verbatim.
type FileContent struct {
	Path string
}

func (f FileContent) size() (uint64, error) {
	fi, err := os.Stat(f.Path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", f.Path, err)
	}
	return uint64(fi.Size()), nil
}

func (f FileContent) send(ctx context.Context, c *conn.Conn) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer file.Close()
	_, err = c.SendReader(ctx, file)
	return err
}

// BytesContent sends an in-memory buffer verbatim.
type BytesContent struct {
	Data []byte
}

func (b BytesContent) size() (uint64, error) {
	return uint64(len(b.Data)), nil
}

func (b BytesContent) send(ctx context.Context, c *conn.Conn) error {
	return c.SendBytes(ctx, b.Data)
}

// MsgInfo describes one outbound message. Cmd zero means no command
// code. Meta and Payload are optional; content whose size is zero is
// treated as absent.
type MsgInfo struct {
	Cmd     uint32
	Meta    Content
	Payload Content
}

// Send transmits one message on an already authenticated connection and
// returns the transfer identifier the node assigned.
func Send(ctx context.Context, c *conn.Conn, ch uint8, mi *MsgInfo) (string, error) {
	metaLen, err := contentSize(mi.Meta)
	if err != nil {
		return "", err
	}
	if metaLen > math.MaxUint32 {
		return "", fmt.Errorf("%w: metadata length %d exceeds protocol bound", proto.ErrInvalidSize, metaLen)
	}
	payloadLen, err := contentSize(mi.Payload)
	if err != nil {
		return "", err
	}

	tg, err := proto.NewTelegramTopic(proto.TopicMsg)
	if err != nil {
		return "", err
	}
	if err := tg.AddParamUint("_Ch", uint64(ch)); err != nil {
		return "", err
	}
	if mi.Cmd != 0 {
		if err := tg.AddParamUint("Cmd", uint64(mi.Cmd)); err != nil {
			return "", err
		}
	}
	if metaLen != 0 {
		if err := tg.AddParamUint("MetaLen", metaLen); err != nil {
			return "", err
		}
	}
	if payloadLen != 0 {
		if err := tg.AddParamUint("Len", payloadLen); err != nil {
			return "", err
		}
	}

	params, err := c.SendRecv(ctx, tg)
	if err != nil {
		return "", err
	}
	xferID, ok := params.Get("XferId")
	if !ok {
		return "", fmt.Errorf("%w: transfer identifier", proto.ErrMissingData)
	}
	log.Debug().Str("xfer_id", xferID).Uint64("meta_len", metaLen).
		Uint64("payload_len", payloadLen).Msg("transfer accepted")

	if metaLen != 0 {
		if err := mi.Meta.send(ctx, c); err != nil {
			return "", err
		}
		if _, err := c.ExpectOkFail(ctx); err != nil {
			return "", err
		}
	}
	if payloadLen != 0 {
		if err := mi.Payload.send(ctx, c); err != nil {
			return "", err
		}
		if _, err := c.ExpectOkFail(ctx); err != nil {
			return "", err
		}
	}

	return xferID, nil
}

// ConnSend connects to the endpoint, optionally authenticates, sends one
// message, and closes the connection. It returns the transfer identifier.
func ConnSend(ctx context.Context, ep conn.Endpoint, ai *auth.AuthInfo, ch uint8, mi *MsgInfo) (string, error) {
	c, err := conn.Dial(ctx, ep)
	if err != nil {
		return "", err
	}
	defer c.Close()

	if ai != nil {
		if _, err := auth.Authenticate(ctx, c, ai); err != nil {
			return "", err
		}
	}
	return Send(ctx, c, ch, mi)
}

func contentSize(content Content) (uint64, error) {
	if content == nil {
		return 0, nil
	}
	return content.size()
}
