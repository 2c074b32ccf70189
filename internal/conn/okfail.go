package conn

import (
	"context"
	"fmt"

	"ddmw-cli/internal/codec"
	"ddmw-cli/internal/proto"
)

// ExpectOkFail reads exactly one event and requires it to be a telegram
// with an Ok or Fail topic. An Ok reply yields its parameters; a Fail
// reply becomes a ServerError carrying the diagnostic parameters. Any
// other event or topic is an unexpected-reply error, and a stream that
// ends first surfaces as ErrDisconnected.
func (c *Conn) ExpectOkFail(ctx context.Context) (*proto.Params, error) {
	ev, err := c.Next(ctx)
	if err != nil {
		return nil, err
	}

	tg, ok := ev.(*codec.TelegramEvent)
	if !ok {
		return nil, fmt.Errorf("%w: event %T", proto.ErrUnexpectedReply, ev)
	}
	switch tg.Telegram.Topic() {
	case proto.TopicOk:
		return tg.Telegram.IntoParams(), nil
	case proto.TopicFail:
		return nil, &proto.ServerError{Params: tg.Telegram.IntoParams()}
	}
	return nil, fmt.Errorf("%w: topic %q", proto.ErrUnexpectedReply, tg.Telegram.Topic())
}

// SendRecv sends a telegram and waits for its Ok/Fail acknowledgement,
// returning the Ok parameters.
func (c *Conn) SendRecv(ctx context.Context, tg *proto.Telegram) (*proto.Params, error) {
	if err := c.SendTelegram(ctx, tg); err != nil {
		return nil, err
	}
	return c.ExpectOkFail(ctx)
}
