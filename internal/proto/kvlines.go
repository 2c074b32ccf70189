package proto

import "bytes"

// KV is a single ordered key/value pair.
type KV struct {
	Key   string
	Value string
}

// KVLines is an ordered key/value block. Unlike Params it preserves
// insertion order and permits duplicate keys.
type KVLines struct {
	pairs []KV
}

// NewKVLines returns an empty ordered block.
func NewKVLines() *KVLines {
	return &KVLines{}
}

// Append adds a key/value pair at the end of the block.
func (l *KVLines) Append(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	l.pairs = append(l.pairs, KV{Key: key, Value: value})
	return nil
}

// Pairs returns the pairs in insertion order.
func (l *KVLines) Pairs() []KV {
	return l.pairs
}

// Len returns the number of stored pairs.
func (l *KVLines) Len() int {
	return len(l.pairs)
}

// EncodedSize returns the exact number of bytes Encode will produce.
func (l *KVLines) EncodedSize() int {
	sz := 0
	for _, kv := range l.pairs {
		sz += len(kv.Key) + 1 + len(kv.Value) + 1
	}
	return sz + 1
}

// Encode appends the wire form to buf, preserving pair order.
func (l *KVLines) Encode(buf *bytes.Buffer) {
	buf.Grow(l.EncodedSize())
	for _, kv := range l.pairs {
		buf.WriteString(kv.Key)
		buf.WriteByte(' ')
		buf.WriteString(kv.Value)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
}
