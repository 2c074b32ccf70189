package codec

import "ddmw-cli/internal/proto"

// Event is one decoded item produced by Codec.Decode. The concrete type
// depends on the decode mode that was active when the bytes arrived.
type Event interface {
	isEvent()
}

// TelegramEvent carries a complete telegram: topic plus parameters.
type TelegramEvent struct {
	Telegram *proto.Telegram
}

// ParamsEvent carries a complete key/value block, produced after
// ExpectParams.
type ParamsEvent struct {
	Params *proto.Params
}

// KVLinesEvent carries a complete ordered key/value block, produced after
// ExpectKVLines.
type KVLinesEvent struct {
	KVLines *proto.KVLines
}

// ChunkEvent carries one slice of a binary section in Chunks mode. Remain
// is the number of bytes still expected after this chunk; the section is
// complete when Remain is zero.
type ChunkEvent struct {
	Data   []byte
	Remain int
}

// BufEvent carries an entire binary section accumulated in memory,
// produced after ExpectBuf.
type BufEvent struct {
	Data []byte
}

// FileEvent signals that a binary section has been fully written to the
// file requested by ExpectFile. Path is the pathname that was passed in.
type FileEvent struct {
	Path string
}

// WriteDoneEvent signals that a binary section has been fully written to
// the sink supplied to ExpectWriter.
type WriteDoneEvent struct{}

// SkipDoneEvent signals that a skipped binary section has been fully
// discarded.
type SkipDoneEvent struct{}

func (*TelegramEvent) isEvent()  {}
func (*ParamsEvent) isEvent()    {}
func (*KVLinesEvent) isEvent()   {}
func (*ChunkEvent) isEvent()     {}
func (*BufEvent) isEvent()       {}
func (*FileEvent) isEvent()      {}
func (*WriteDoneEvent) isEvent() {}
func (*SkipDoneEvent) isEvent()  {}
