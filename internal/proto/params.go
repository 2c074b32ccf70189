package proto

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Params is an unordered key/value block. Keys are unique; adding an
// existing key overwrites its value.
type Params struct {
	m map[string]string
}

// NewParams returns an empty Params block.
func NewParams() *Params {
	return &Params{m: make(map[string]string)}
}

// Add stores a key/value pair, overwriting any previous value for key.
func (p *Params) Add(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	if p.m == nil {
		p.m = make(map[string]string)
	}
	p.m[key] = value
	return nil
}

// AddInt stores a key with an integer value.
func (p *Params) AddInt(key string, value int64) error {
	return p.Add(key, strconv.FormatInt(value, 10))
}

// AddUint stores a key with an unsigned integer value.
func (p *Params) AddUint(key string, value uint64) error {
	return p.Add(key, strconv.FormatUint(value, 10))
}

// Get returns the value for key and whether it was present.
func (p *Params) Get(key string) (string, bool) {
	v, ok := p.m[key]
	return v, ok
}

// Int64 returns the value for key parsed as a signed integer.
func (p *Params) Int64(key string) (int64, error) {
	v, ok := p.m[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing parameter %q", ErrMissingData, key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %q is not an integer: %q", ErrBadFormat, key, v)
	}
	return n, nil
}

// Uint64 returns the value for key parsed as an unsigned integer.
func (p *Params) Uint64(key string) (uint64, error) {
	v, ok := p.m[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing parameter %q", ErrMissingData, key)
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %q is not an unsigned integer: %q", ErrBadFormat, key, v)
	}
	return n, nil
}

// Bool returns the value for key parsed as a boolean. The wire encoding
// uses "True"/"False"; plain strconv forms are accepted as well.
func (p *Params) Bool(key string) (bool, error) {
	v, ok := p.m[key]
	if !ok {
		return false, fmt.Errorf("%w: missing parameter %q", ErrMissingData, key)
	}
	switch v {
	case "True":
		return true, nil
	case "False":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: parameter %q is not a boolean: %q", ErrBadFormat, key, v)
	}
	return b, nil
}

// StrSet returns the value for key split on commas into a set.
// An empty value yields an empty set.
func (p *Params) StrSet(key string) (map[string]struct{}, error) {
	v, ok := p.m[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing parameter %q", ErrMissingData, key)
	}
	set := make(map[string]struct{})
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			set[s] = struct{}{}
		}
	}
	return set, nil
}

// Len returns the number of stored pairs.
func (p *Params) Len() int {
	return len(p.m)
}

// Map exposes the underlying key/value mapping. The caller must not
// mutate it while the Params is still in use by a codec.
func (p *Params) Map() map[string]string {
	return p.m
}

// EncodedSize returns the exact number of bytes Encode will produce:
// one "key value\n" line per pair plus the terminating empty line.
func (p *Params) EncodedSize() int {
	sz := 0
	for k, v := range p.m {
		sz += len(k) + 1 + len(v) + 1
	}
	return sz + 1
}

// Encode appends the wire form to buf. Capacity is reserved up front so
// the block is written with a single allocation at most.
func (p *Params) Encode(buf *bytes.Buffer) {
	buf.Grow(p.EncodedSize())
	for k, v := range p.m {
		buf.WriteString(k)
		buf.WriteByte(' ')
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrBadFormat)
	}
	if strings.ContainsAny(key, " \r\n") {
		return fmt.Errorf("%w: invalid key character in %q", ErrBadFormat, key)
	}
	return nil
}

func validateValue(value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w: invalid value character", ErrBadFormat)
	}
	return nil
}
