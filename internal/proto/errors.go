package proto

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrBadFormat indicates malformed wire data: an invalid topic or key,
	// broken text encoding, or a line exceeding the configured maximum.
	ErrBadFormat = errors.New("proto: bad format")

	// ErrInvalidSize is returned when a binary decode mode is requested
	// with a size of zero.
	ErrInvalidSize = errors.New("proto: invalid size")

	// ErrBadState indicates an internal bookkeeping inconsistency, such as
	// a file transfer completing without a recorded pathname.
	ErrBadState = errors.New("proto: bad state")

	// ErrInvalidCredentials is returned when no usable authentication
	// material is available.
	ErrInvalidCredentials = errors.New("proto: invalid credentials")

	// ErrUnexpectedReply is returned when the peer sends something other
	// than an Ok or Fail telegram in reply to a request.
	ErrUnexpectedReply = errors.New("proto: unexpected reply")

	// ErrDisconnected is returned when the stream ends while a reply is
	// still pending.
	ErrDisconnected = errors.New("proto: connection closed")

	// ErrMissingData is returned when a success reply lacks a field the
	// protocol requires, such as the transfer identifier.
	ErrMissingData = errors.New("proto: missing data")
)

// ServerError is a remote failure: the peer replied with a Fail telegram.
// Params carries the diagnostic key/value data from the reply.
type ServerError struct {
	Params *Params
}

func (e *ServerError) Error() string {
	if e.Params == nil || e.Params.Len() == 0 {
		return "proto: server reported failure"
	}
	parts := make([]string, 0, e.Params.Len())
	for k, v := range e.Params.Map() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(parts)
	return "proto: server reported failure: " + strings.Join(parts, " ")
}
