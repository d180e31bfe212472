package zxcore

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"
)

// LoadTAP parses a flat TAP file (a sequence of {u16 length, payload}
// records, no container header) into a Tape of Standard data blocks.
// Every block but the last gets the ROM-standard 1000 ms trailing
// pause; TAP has no way to express a different one.
func LoadTAP(data []byte) (*Tape, error) {
	tape := NewTape()
	r := bytes.NewReader(data)

	var records [][]byte
	for r.Len() > 0 {
		if r.Len() < 2 {
			return nil, NewCoreError(ErrMalformed, "TAP: truncated length prefix")
		}
		var lenBuf [2]byte
		io.ReadFull(r, lenBuf[:])
		length := int(le16(lenBuf[:], 0))

		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, WrapCoreError(err, ErrMalformed, "TAP: truncated payload")
		}
		records = append(records, payload)
	}

	for i, payload := range records {
		pause := uint16(1000)
		if i == len(records)-1 {
			pause = 0
		}
		tape.Append(&TapeBlock{Type: BlockData, Data: DataBlock{PauseAfter: pause, Data: payload}})
	}
	return tape, nil
}

// tzxBlockID identifies a TZX block's on-disk tag byte.
const (
	tzxStandardData   = 0x10
	tzxTurboData      = 0x11
	tzxPureTone       = 0x12
	tzxPulses         = 0x13
	tzxPureData       = 0x14
	tzxDirectRecord   = 0x15
	tzxPause48KStop   = 0x20
	tzxGroupStart     = 0x21
	tzxGroupEnd       = 0x22
	tzxLoopStart      = 0x24
	tzxLoopEnd        = 0x25
	tzxTextDesc       = 0x30
	tzxArchiveInfo    = 0x32
	tzxHardwareType   = 0x33
	tzxStopIf48K      = 0x2A
)

var tzxSignature = []byte("ZXTape!\x1a")

// LoadTZX parses a .TZX container into a Tape, mapping each block ID
// onto the matching TapeBlock variant. Unrecognized block IDs become
// BlockMeta entries carrying their raw bytes, so a save can round-trip
// them (§8 property 8) even though the player has nothing to do with
// them beyond skipping.
func LoadTZX(data []byte) (*Tape, error) {
	if len(data) < 10 || !bytes.Equal(data[:8], tzxSignature) {
		return nil, NewCoreError(ErrMalformed, "TZX: signature mismatch")
	}

	tape := NewTape()
	r := bytes.NewReader(data[10:])

	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, WrapCoreError(err, ErrMalformed, "TZX: truncated block ID")
		}

		blk, err := parseTZXBlock(id, r)
		if err != nil {
			return nil, err
		}
		if blk != nil {
			tape.Append(blk)
		}
	}
	return tape, nil
}

func parseTZXBlock(id byte, r *bytes.Reader) (*TapeBlock, error) {
	switch id {
	case tzxStandardData:
		return parseTZXStandardData(r)
	case tzxTurboData:
		return parseTZXTurboData(r)
	case tzxPureTone:
		return parseTZXPureTone(r)
	case tzxPulses:
		return parseTZXPulses(r)
	case tzxPureData:
		return parseTZXPureData(r)
	case tzxDirectRecord:
		return parseTZXDirectRecording(r)
	case tzxPause48KStop:
		return parseTZXPauseOrStop(r)
	case tzxStopIf48K:
		if _, err := readU32Meta(r); err != nil {
			return nil, err
		}
		return &TapeBlock{Type: BlockStop48K}, nil
	case tzxLoopStart:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, WrapCoreError(err, ErrMalformed, "TZX: truncated loop-start block")
		}
		return &TapeBlock{Type: BlockLoopStart, LoopStart: LoopStartBlock{NumReps: le16(buf[:], 0)}}, nil
	case tzxLoopEnd:
		return &TapeBlock{Type: BlockLoopEnd}, nil
	case tzxGroupStart, tzxGroupEnd, tzxTextDesc, tzxArchiveInfo, tzxHardwareType:
		return parseTZXMeta(id, r)
	default:
		return parseTZXMeta(id, r)
	}
}

func readU16(r *bytes.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, WrapCoreError(err, ErrMalformed, "TZX: truncated u16 field")
	}
	return le16(buf[:], 0), nil
}

func readU24(r *bytes.Reader) (uint32, error) {
	var buf [3]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, WrapCoreError(err, ErrMalformed, "TZX: truncated u24 field")
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16, nil
}

func parseTZXStandardData(r *bytes.Reader) (*TapeBlock, error) {
	pause, err := readU16(r)
	if err != nil {
		return nil, err
	}
	length, err := readU16(r)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, WrapCoreError(err, ErrMalformed, "TZX: truncated standard-data payload")
	}
	return &TapeBlock{Type: BlockData, Data: DataBlock{PauseAfter: pause, Data: payload}}, nil
}

func parseTZXTurboData(r *bytes.Reader) (*TapeBlock, error) {
	// pilot(2) sync1(2) sync2(2) zero(2) one(2) pilotPulses(2) usedBits(1) pause(2) length(3)
	var head [18]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, WrapCoreError(err, ErrMalformed, "TZX: truncated turbo-data header")
	}
	length := uint32(head[15]) | uint32(head[16])<<8 | uint32(head[17])<<16
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, WrapCoreError(err, ErrMalformed, "TZX: truncated turbo-data payload")
	}
	return &TapeBlock{Type: BlockTurboData, Turbo: TurboDataBlock{
		PilotLen:     le16(head[:], 0),
		Sync1Len:     le16(head[:], 2),
		Sync2Len:     le16(head[:], 4),
		ZeroLen:      le16(head[:], 6),
		OneLen:       le16(head[:], 8),
		PilotPulses:  le16(head[:], 10),
		LastByteBits: head[12],
		PauseAfter:   le16(head[:], 13),
		Data:         payload,
	}}, nil
}

func parseTZXPureTone(r *bytes.Reader) (*TapeBlock, error) {
	pulseLen, err := readU16(r)
	if err != nil {
		return nil, err
	}
	numPulses, err := readU16(r)
	if err != nil {
		return nil, err
	}
	return &TapeBlock{Type: BlockTone, Tone: ToneBlock{PulseLen: pulseLen, NumPulses: numPulses}}, nil
}

func parseTZXPulses(r *bytes.Reader) (*TapeBlock, error) {
	count, err := r.ReadByte()
	if err != nil {
		return nil, WrapCoreError(err, ErrMalformed, "TZX: truncated pulse-sequence count")
	}
	lens := make([]uint16, count)
	for i := range lens {
		l, err := readU16(r)
		if err != nil {
			return nil, err
		}
		lens[i] = l
	}
	return &TapeBlock{Type: BlockPulses, Pulses: PulsesBlock{PulseLens: lens}}, nil
}

func parseTZXPureData(r *bytes.Reader) (*TapeBlock, error) {
	// zero(2) one(2) usedBits(1) pause(2) length(3)
	var head [10]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, WrapCoreError(err, ErrMalformed, "TZX: truncated pure-data header")
	}
	length := uint32(head[7]) | uint32(head[8])<<8 | uint32(head[9])<<16
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, WrapCoreError(err, ErrMalformed, "TZX: truncated pure-data payload")
	}
	return &TapeBlock{Type: BlockPureData, PureData: PureDataBlock{
		ZeroLen:      le16(head[:], 0),
		OneLen:       le16(head[:], 2),
		LastByteBits: head[4],
		PauseAfter:   le16(head[:], 5),
		Data:         payload,
	}}, nil
}

func parseTZXDirectRecording(r *bytes.Reader) (*TapeBlock, error) {
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, WrapCoreError(err, ErrMalformed, "TZX: truncated direct-recording header")
	}
	length := uint32(head[5]) | uint32(head[6])<<8 | uint32(head[7])<<16
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, WrapCoreError(err, ErrMalformed, "TZX: truncated direct-recording payload")
	}
	return &TapeBlock{Type: BlockDirectRecording, Direct: DirectRecordingBlock{
		SampleDur:    le16(head[:], 0),
		PauseAfter:   le16(head[:], 2),
		LastByteBits: head[4],
		Data:         payload,
	}}, nil
}

func parseTZXPauseOrStop(r *bytes.Reader) (*TapeBlock, error) {
	pause, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if pause == 0 {
		return &TapeBlock{Type: BlockStop}, nil
	}
	return &TapeBlock{Type: BlockPause, Pause: PauseBlock{PauseLen: pause}}, nil
}

// parseTZXMeta consumes a block this player has no audio behavior for
// (group markers, text/archive/hardware info, or any block ID this
// loader doesn't recognize), folding it into the non-audio BlockMeta
// variant the player always skips.
func parseTZXMeta(id byte, r *bytes.Reader) (*TapeBlock, error) {
	var length uint32
	var err error

	switch id {
	case tzxGroupStart:
		n, e := r.ReadByte()
		err = e
		length = uint32(n)
	case tzxGroupEnd:
		length = 0
	case tzxTextDesc:
		n, e := r.ReadByte()
		err = e
		length = uint32(n)
	case tzxArchiveInfo, tzxHardwareType:
		length, err = readU16Meta(r)
	default:
		length, err = readU24(r)
	}
	if err != nil {
		return nil, WrapCoreError(err, ErrMalformed, fmt.Sprintf("TZX: truncated metadata block %#02x", id))
	}

	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, WrapCoreError(err, ErrMalformed, fmt.Sprintf("TZX: truncated metadata payload %#02x", id))
	}
	return &TapeBlock{Type: BlockMeta, Meta: MetaBlock{TZXID: id, Payload: raw}}, nil
}

func readU16Meta(r *bytes.Reader) (uint32, error) {
	v, err := readU16(r)
	return uint32(v), err
}

// readU32Meta consumes the 4-byte "always zero" length field the
// stop-if-48K block carries (it has no payload beyond that field).
func readU32Meta(r *bytes.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, WrapCoreError(err, ErrMalformed, "TZX: truncated stop-if-48K length field")
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, nil
}

// LoadWAV decodes an 8- or 16-bit mono PCM tape capture via go-audio/wav
// into a single Direct recording block, one sample per bit, sized in
// CPU T-states from the file's sample rate.
func LoadWAV(r io.ReadSeeker) (*Tape, error) {
	dec := wav.NewDecoder(r)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, WrapCoreError(err, ErrMalformed, "WAV: decode failed")
	}
	if !dec.WasPCMAccessed() || buf.Format == nil || buf.Format.NumChannels != 1 {
		return nil, NewCoreError(ErrUnsupported, "WAV: only mono PCM tape captures are supported")
	}

	sampleDur := uint16(math.Round(3500000.0 / float64(buf.Format.SampleRate)))

	midpoint := 0
	switch buf.SourceBitDepth {
	case 8:
		midpoint = 128
	case 16:
		midpoint = 0
	default:
		return nil, NewCoreError(ErrUnsupported, fmt.Sprintf("WAV: unsupported bit depth %d", buf.SourceBitDepth))
	}

	bits := make([]byte, (len(buf.Data)+7)/8)
	for i, s := range buf.Data {
		if s >= midpoint {
			bits[i/8] |= 0x80 >> uint(i%8)
		}
	}

	lastBits := uint8(len(buf.Data) % 8)
	if lastBits == 0 {
		lastBits = 8
	}

	tape := NewTape()
	tape.Append(&TapeBlock{Type: BlockDirectRecording, Direct: DirectRecordingBlock{
		SampleDur:    sampleDur,
		LastByteBits: lastBits,
		Data:         bits,
	}})
	return tape, nil
}

// SaveTZX serializes tape back into a .TZX container, the inverse of
// LoadTZX. Every block type this loader understands round-trips
// byte-for-byte (§8 property 8), including metadata blocks, which
// carry their original tag and payload forward via MetaBlock. The
// header always carries version 1.20; the version of a loaded file is
// not kept.
func SaveTZX(tape *Tape) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(tzxSignature)
	buf.WriteByte(1)  // major version
	buf.WriteByte(20) // minor version

	for _, blk := range tape.Blocks {
		if err := writeTZXBlock(&buf, blk); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func putU16(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
}

func putU24(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v >> 16))
}

func writeTZXBlock(buf *bytes.Buffer, blk *TapeBlock) error {
	switch blk.Type {
	case BlockData:
		buf.WriteByte(tzxStandardData)
		putU16(buf, blk.Data.PauseAfter)
		putU16(buf, uint16(len(blk.Data.Data)))
		buf.Write(blk.Data.Data)
	case BlockTurboData:
		t := blk.Turbo
		buf.WriteByte(tzxTurboData)
		putU16(buf, t.PilotLen)
		putU16(buf, t.Sync1Len)
		putU16(buf, t.Sync2Len)
		putU16(buf, t.ZeroLen)
		putU16(buf, t.OneLen)
		putU16(buf, t.PilotPulses)
		buf.WriteByte(t.LastByteBits)
		putU16(buf, t.PauseAfter)
		putU24(buf, uint32(len(t.Data)))
		buf.Write(t.Data)
	case BlockTone:
		buf.WriteByte(tzxPureTone)
		putU16(buf, blk.Tone.PulseLen)
		putU16(buf, blk.Tone.NumPulses)
	case BlockPulses:
		buf.WriteByte(tzxPulses)
		buf.WriteByte(byte(len(blk.Pulses.PulseLens)))
		for _, l := range blk.Pulses.PulseLens {
			putU16(buf, l)
		}
	case BlockPureData:
		p := blk.PureData
		buf.WriteByte(tzxPureData)
		putU16(buf, p.ZeroLen)
		putU16(buf, p.OneLen)
		buf.WriteByte(p.LastByteBits)
		putU16(buf, p.PauseAfter)
		putU24(buf, uint32(len(p.Data)))
		buf.Write(p.Data)
	case BlockDirectRecording:
		d := blk.Direct
		buf.WriteByte(tzxDirectRecord)
		putU16(buf, d.SampleDur)
		putU16(buf, d.PauseAfter)
		buf.WriteByte(d.LastByteBits)
		putU24(buf, uint32(len(d.Data)))
		buf.Write(d.Data)
	case BlockPause:
		buf.WriteByte(tzxPause48KStop)
		putU16(buf, blk.Pause.PauseLen)
	case BlockStop:
		buf.WriteByte(tzxPause48KStop)
		putU16(buf, 0)
	case BlockStop48K:
		buf.WriteByte(tzxStopIf48K)
		putU24(buf, 0)
		buf.WriteByte(0)
	case BlockLoopStart:
		buf.WriteByte(tzxLoopStart)
		putU16(buf, blk.LoopStart.NumReps)
	case BlockLoopEnd:
		buf.WriteByte(tzxLoopEnd)
	case BlockMeta:
		buf.WriteByte(blk.Meta.TZXID)
		switch blk.Meta.TZXID {
		case tzxGroupStart, tzxTextDesc:
			buf.WriteByte(byte(len(blk.Meta.Payload)))
		case tzxGroupEnd:
			// no length field
		case tzxArchiveInfo, tzxHardwareType:
			putU16(buf, uint16(len(blk.Meta.Payload)))
		default:
			putU24(buf, uint32(len(blk.Meta.Payload)))
		}
		buf.Write(blk.Meta.Payload)
	default:
		return NewCoreError(ErrUnsupported, fmt.Sprintf("TZX: cannot save block type %d", blk.Type))
	}
	return nil
}
