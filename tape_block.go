package zxcore

// BlockType identifies the variant a TapeBlock carries in its Ext field.
// Block identity follows the TZX block catalogue; several TZX block
// types that carry no audio (group markers, text, archive info,
// hardware type, anything unrecognised) fold into the non-audio
// variants below since the player treats them identically: skip.
type BlockType int

const (
	BlockData BlockType = iota
	BlockTurboData
	BlockTone
	BlockPulses
	BlockPureData
	BlockDirectRecording
	BlockPause
	BlockStop
	BlockStop48K
	BlockLoopStart
	BlockLoopEnd
	BlockMeta // group start/end, text, archive info, hardware type, unknown
)

// Standard ROM loader pulse lengths and pilot tone counts, T-states at
// 3.5 MHz. The header pilot runs longer than the data pilot so the ROM
// loader can tell the two apart before the sync pulses even arrive.
const (
	RomPilotLen    = 2168
	RomSync1Len    = 667
	RomSync2Len    = 735
	RomZeroLen     = 855
	RomOneLen      = 1710
	RomPilotPulsesHeader = 8064
	RomPilotPulsesData   = 3220
)

// TapePauseMult converts a pause length in milliseconds to T-states at
// the standard 3.5 MHz Spectrum clock.
const TapePauseMult = 3500

// DataBlock is a standard-speed ROM-format data block: a flag byte (0x00
// header / 0xff data by loader convention, though the player only looks
// at whether the first byte is 0x00 to choose the pilot tone length),
// followed by a payload, followed by a checksum byte folded into Data.
type DataBlock struct {
	PauseAfter uint16 // ms
	Data       []byte
}

// TurboDataBlock is a standard data block with every pulse/pilot timing
// and the last byte's used-bit count overridable by the block itself.
type TurboDataBlock struct {
	PilotLen     uint16
	Sync1Len     uint16
	Sync2Len     uint16
	ZeroLen      uint16
	OneLen       uint16
	PilotPulses  uint16
	LastByteBits uint8 // 1..8, bits used in the final byte
	PauseAfter   uint16
	Data         []byte
}

// ToneBlock is a pure tone: num_pulses pulses of pulse_len T-states,
// no pilot, no sync, no data.
type ToneBlock struct {
	PulseLen  uint16
	NumPulses uint16
}

// PulsesBlock is an explicit list of single pulses, each with its own
// length, emitted once in order.
type PulsesBlock struct {
	PulseLens []uint16
}

// PureDataBlock is a turbo data block without its own pilot/sync: only
// bit timings and payload.
type PureDataBlock struct {
	ZeroLen      uint16
	OneLen       uint16
	LastByteBits uint8
	PauseAfter   uint16
	Data         []byte
}

// DirectRecordingBlock stores the waveform as one sample level per bit,
// each held for SampleDur T-states, rather than as ROM-encoded pulses.
type DirectRecordingBlock struct {
	SampleDur    uint16
	LastByteBits uint8
	PauseAfter   uint16
	Data         []byte
}

// PauseBlock is a silence of PauseLen milliseconds. A PauseLen of 0
// means "stop the tape" in the TZX spec but this core models that with
// the separate Stop/Stop48K variants; PauseBlock.PauseLen is always > 0
// by construction once loaded.
type PauseBlock struct {
	PauseLen uint16
}

// LoopStartBlock begins a loop that LoopEndBlock will repeat NumReps
// times in total (including the first pass).
type LoopStartBlock struct {
	NumReps uint16
}

// MetaBlock preserves a non-audio TZX block's tag and raw payload
// verbatim, so a load-then-save round-trip reproduces blocks the
// player has no audio behavior for (group markers, text/archive/
// hardware info, anything unrecognized) byte-for-byte.
type MetaBlock struct {
	TZXID   byte
	Payload []byte
}

// TapeBlock is one tagged entry in a Tape's block list. Exactly one of
// the typed fields is meaningful, selected by Type; the others are the
// zero value. This mirrors the source representation's tagged union
// (a block type enum plus an opaque payload pointer) without requiring
// a type assertion at every call site that only cares about Type.
type TapeBlock struct {
	Type BlockType

	Data       DataBlock
	Turbo      TurboDataBlock
	Tone       ToneBlock
	Pulses     PulsesBlock
	PureData   PureDataBlock
	Direct     DirectRecordingBlock
	Pause      PauseBlock
	LoopStart  LoopStartBlock
	Meta       MetaBlock
}

// Tape is an ordered, in-memory, editable list of tape blocks. Consumers
// address blocks by index rather than by pointer so that edits
// (insert/remove) never invalidate a cursor held elsewhere; Deck and
// Player track position as an index into Blocks.
type Tape struct {
	Blocks []*TapeBlock
}

// NewTape returns an empty tape.
func NewTape() *Tape {
	return &Tape{}
}

// Append adds a block to the end of the tape.
func (t *Tape) Append(b *TapeBlock) {
	t.Blocks = append(t.Blocks, b)
}

// At returns the block at index i, or nil if i is out of range.
func (t *Tape) At(i int) *TapeBlock {
	if i < 0 || i >= len(t.Blocks) {
		return nil
	}
	return t.Blocks[i]
}

// Len returns the number of blocks on the tape.
func (t *Tape) Len() int {
	return len(t.Blocks)
}

// IndexOf returns the index of block b, or -1 if it is not on the tape.
// The player does not call it; its loop-end handling scans back by
// index on its own.
func (t *Tape) IndexOf(b *TapeBlock) int {
	for i, c := range t.Blocks {
		if c == b {
			return i
		}
	}
	return -1
}
