// Package proto implements the line-oriented frame grammar of the DDMW
// client interface: telegrams (topic plus key/value parameters), plain
// key/value parameter blocks, and ordered key/value lists. It also defines
// the error vocabulary shared by every protocol layer.
//
// Wire form: one line per element, terminated by '\n' (a preceding '\r' is
// stripped); an empty line ends the block. A telegram's first line is its
// topic; every other line is a key and a value separated by the first
// space character.
package proto

import (
	"bytes"
	"fmt"
	"strings"
)

// Control topics used by the client interface.
const (
	TopicOk     = "Ok"
	TopicFail   = "Fail"
	TopicAuth   = "Auth"
	TopicUnauth = "Unauth"
	TopicMsg    = "Msg"
	TopicRdAcc  = "RdAcc"
)

// Telegram is one control message: a mandatory topic and a set of
// key/value parameters.
type Telegram struct {
	topic  string
	params *Params
}

// NewTelegram returns an empty telegram with no topic set.
func NewTelegram() *Telegram {
	return &Telegram{params: NewParams()}
}

// NewTelegramTopic returns a telegram with the given topic.
func NewTelegramTopic(topic string) (*Telegram, error) {
	tg := NewTelegram()
	if err := tg.SetTopic(topic); err != nil {
		return nil, err
	}
	return tg, nil
}

// SetTopic sets the telegram topic. Topics must be non-empty and must not
// contain whitespace or control characters.
func (t *Telegram) SetTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrBadFormat)
	}
	if strings.ContainsFunc(topic, func(r rune) bool { return r == ' ' || r < 0x21 }) {
		return fmt.Errorf("%w: invalid topic character", ErrBadFormat)
	}
	t.topic = topic
	return nil
}

// Topic returns the topic, or the empty string if none has been set.
func (t *Telegram) Topic() string {
	return t.topic
}

// HasTopic reports whether a topic has been set.
func (t *Telegram) HasTopic() bool {
	return t.topic != ""
}

// AddParam stores a key/value parameter, overwriting any previous value.
func (t *Telegram) AddParam(key, value string) error {
	if t.params == nil {
		t.params = NewParams()
	}
	return t.params.Add(key, value)
}

// AddParamInt stores a parameter with an integer value.
func (t *Telegram) AddParamInt(key string, value int64) error {
	if t.params == nil {
		t.params = NewParams()
	}
	return t.params.AddInt(key, value)
}

// AddParamUint stores a parameter with an unsigned integer value.
func (t *Telegram) AddParamUint(key string, value uint64) error {
	if t.params == nil {
		t.params = NewParams()
	}
	return t.params.AddUint(key, value)
}

// Get returns the value for key and whether it was present.
func (t *Telegram) Get(key string) (string, bool) {
	if t.params == nil {
		return "", false
	}
	return t.params.Get(key)
}

// Uint64 returns the parameter for key parsed as an unsigned integer.
func (t *Telegram) Uint64(key string) (uint64, error) {
	if t.params == nil {
		return 0, fmt.Errorf("%w: missing parameter %q", ErrMissingData, key)
	}
	return t.params.Uint64(key)
}

// Params returns the telegram's parameter block.
func (t *Telegram) Params() *Params {
	if t.params == nil {
		t.params = NewParams()
	}
	return t.params
}

// IntoParams strips the topic and returns the parameter block. The
// telegram must not be used afterwards.
func (t *Telegram) IntoParams() *Params {
	p := t.Params()
	t.params = nil
	return p
}

// EncodedSize returns the exact number of bytes Encode will produce.
func (t *Telegram) EncodedSize() int {
	return len(t.topic) + 1 + t.Params().EncodedSize()
}

// Encode appends the wire form to buf: the topic line, one line per
// parameter, and the terminating empty line.
func (t *Telegram) Encode(buf *bytes.Buffer) error {
	if t.topic == "" {
		return fmt.Errorf("%w: telegram has no topic", ErrBadFormat)
	}
	buf.Grow(t.EncodedSize())
	buf.WriteString(t.topic)
	buf.WriteByte('\n')
	t.Params().Encode(buf)
	return nil
}
