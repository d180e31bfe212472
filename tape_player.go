package zxcore

// PlayerSignal is an out-of-band event the player latches instead of (or
// alongside) a level transition: a request for the deck to stop running.
type PlayerSignal int

const (
	SigNone PlayerSignal = iota
	SigStop
	SigStop48K
)

// TapePlayer turns a Tape's block list into a level-transition stream.
// It holds at most one block "current" at a time and reprograms the
// tone generator incrementally as that block's playback advances,
// mirroring a real tape deck's head position rather than pre-rendering
// the whole waveform.
type TapePlayer struct {
	tape *Tape

	curBlock  int // index into tape.Blocks, or -1
	nextBlock int // index queued to become current, or -1
	curIdx    int // byte/pulse index within the current block
	pauseDone bool
	loopCnt   uint16

	sig PlayerSignal

	tgen *toneGen
}

// NewTapePlayer creates a player over tape, starting at block index
// start (normally 0).
func NewTapePlayer(tape *Tape, start int) *TapePlayer {
	p := &TapePlayer{tape: tape}
	p.Init(start)
	return p
}

// Init resets the tone generator to low, clears the cursor, and queues
// startIdx as the next block to play.
func (p *TapePlayer) Init(startIdx int) {
	p.tgen = newToneGen(levelLow)
	p.curBlock = -1
	p.nextBlock = startIdx
	p.curIdx = 0
	p.pauseDone = false
	p.loopCnt = 0
	p.sig = SigNone
}

// IsEnd reports true iff no block is current, no block is pending, the
// tone generator is empty, and no signal is latched.
func (p *TapePlayer) IsEnd() bool {
	p.advance()
	return p.tgen.IsEnd() && p.sig == SigNone
}

// CurLevel returns the current output level, latched between events.
func (p *TapePlayer) CurLevel() bool {
	return bool(p.tgen.CurLevel())
}

// GetNext advances the player until either the tone generator has a
// next transition available or an output signal is latched, then
// returns the delay to that transition, the new level, and any signal.
func (p *TapePlayer) GetNext() (delay uint32, level bool, sig PlayerSignal) {
	p.advance()

	if p.sig == SigNone {
		d, l := p.tgen.GetNext()
		return d, bool(l), SigNone
	}

	sig = p.sig
	p.sig = SigNone
	return 0, bool(p.tgen.CurLevel()), sig
}

// advance makes sure the tone generator is programmed with the next
// run of tones, pulling in new blocks from the tape as needed. It loops
// because some block types (loop end with count exhausted, stop,
// group markers) program no tones at all and must fall through to the
// next block immediately.
func (p *TapePlayer) advance() {
	for p.tgen.IsEnd() && p.sig == SigNone {
		for p.curBlock < 0 {
			p.curBlock = p.nextBlock
			p.nextBlock = -1

			if p.curBlock < 0 {
				return
			}

			p.initBlock(p.tape.At(p.curBlock))
		}

		blk := p.tape.At(p.curBlock)
		if blk == nil {
			p.curBlock = -1
			continue
		}

		p.stepBlock(blk)
	}
}

// initBlock programs a freshly-current block's first run of tones (or,
// for signal/loop blocks, takes the block's immediate effect).
func (p *TapePlayer) initBlock(blk *TapeBlock) {
	if blk == nil {
		return
	}

	p.curIdx = 0
	p.pauseDone = false

	switch blk.Type {
	case BlockData:
		p.tgen.Clear()
		first := byte(0xff)
		if len(blk.Data.Data) > 0 {
			first = blk.Data.Data[0]
		}
		pulses := uint32(RomPilotPulsesData)
		if first == 0x00 {
			pulses = RomPilotPulsesHeader
		}
		p.tgen.AddTone(RomPilotLen, pulses)
		p.tgen.AddTone(RomSync1Len, 1)
		p.tgen.AddTone(RomSync2Len, 1)
	case BlockTurboData:
		p.tgen.Clear()
		p.tgen.AddTone(uint32(blk.Turbo.PilotLen), uint32(blk.Turbo.PilotPulses))
		p.tgen.AddTone(uint32(blk.Turbo.Sync1Len), 1)
		p.tgen.AddTone(uint32(blk.Turbo.Sync2Len), 1)
	case BlockTone:
		p.tgen.Clear()
		p.tgen.AddTone(uint32(blk.Tone.PulseLen), uint32(blk.Tone.NumPulses))
	case BlockPulses:
		p.stepPulses(blk)
	case BlockPureData:
		p.tgen.Clear()
	case BlockDirectRecording:
		p.tgen.Clear()
	case BlockPause:
		p.tgen.Clear()
		p.programPause(blk.Pause.PauseLen)
	case BlockStop:
		p.sig = SigStop
	case BlockStop48K:
		p.sig = SigStop48K
	case BlockLoopStart:
		p.loopCnt = blk.LoopStart.NumReps
	case BlockLoopEnd:
		p.stepLoopEnd()
	default:
		// Group start/end, text, archive info, hardware type, unknown:
		// no audio output, fall straight through to the next block.
		p.endBlock()
	}
}

// stepBlock advances an already-current block once its tone generator
// has run dry, programming the next byte, the trailing pause, or ending
// the block.
func (p *TapePlayer) stepBlock(blk *TapeBlock) {
	switch blk.Type {
	case BlockData:
		p.stepDataLike(blk.Data.Data, 8, RomOneLen, RomZeroLen, blk.Data.PauseAfter)
	case BlockTurboData:
		lastBits := int(blk.Turbo.LastByteBits)
		p.stepDataLike(blk.Turbo.Data, lastBits, uint32(blk.Turbo.OneLen), uint32(blk.Turbo.ZeroLen), blk.Turbo.PauseAfter)
	case BlockTone:
		p.endBlock()
	case BlockPulses:
		p.stepPulses(blk)
	case BlockPureData:
		lastBits := int(blk.PureData.LastByteBits)
		p.stepDataLike(blk.PureData.Data, lastBits, uint32(blk.PureData.OneLen), uint32(blk.PureData.ZeroLen), blk.PureData.PauseAfter)
	case BlockDirectRecording:
		p.stepDirectRecording(blk)
	case BlockPause:
		p.endBlock()
	case BlockStop:
		p.endBlock()
	case BlockLoopStart:
		p.endBlock()
	case BlockLoopEnd:
		p.endBlock()
	case BlockStop48K:
		p.endBlock()
	default:
		p.endBlock()
	}
}

// stepDataLike programs one more byte of a data/turbo-data/pure-data
// block, or its trailing pause, or ends the block — the three share
// identical cursor/pause bookkeeping and differ only in bit timings.
func (p *TapePlayer) stepDataLike(data []byte, lastByteBits int, oneLen, zeroLen uint32, pauseAfter uint16) {
	if !p.tgen.IsEnd() {
		return
	}

	if p.curIdx < len(data) {
		p.tgen.Clear()
		nb := 8
		if p.curIdx == len(data)-1 {
			nb = lastByteBits
		}
		p.programBits(data[p.curIdx], nb, oneLen, zeroLen)
		p.curIdx++
	} else if !p.pauseDone {
		p.tgen.Clear()
		p.programPause(pauseAfter)
		p.pauseDone = true
	} else {
		p.endBlock()
	}
}

func (p *TapePlayer) stepDirectRecording(blk *TapeBlock) {
	if !p.tgen.IsEnd() {
		return
	}

	d := blk.Direct
	if p.curIdx < len(d.Data) {
		p.tgen.Clear()
		nb := 8
		if p.curIdx == len(d.Data)-1 {
			nb = int(d.LastByteBits)
		}
		p.programDirectBits(d.Data[p.curIdx], nb, uint32(d.SampleDur))
		p.curIdx++
	} else if !p.pauseDone {
		p.tgen.Clear()
		p.programPause(d.PauseAfter)
		p.pauseDone = true
	} else {
		p.endBlock()
	}
}

func (p *TapePlayer) stepPulses(blk *TapeBlock) {
	if !p.tgen.IsEnd() {
		return
	}

	lens := blk.Pulses.PulseLens
	if p.curIdx >= len(lens) {
		p.endBlock()
		return
	}

	p.tgen.Clear()
	p.tgen.AddTone(uint32(lens[p.curIdx]), 1)
	p.curIdx++

	if p.curIdx >= len(lens) {
		p.endBlock()
	}
}

// stepLoopEnd decrements the loop counter; while it remains above zero,
// playback resumes at the block following the nearest preceding loop
// start, found by scanning backward from this loop end, rather than
// falling through to whatever comes after it.
func (p *TapePlayer) stepLoopEnd() {
	if p.loopCnt > 0 {
		p.loopCnt--
	}

	if p.loopCnt > 0 {
		start := p.curBlock - 1
		for start >= 0 && p.tape.At(start).Type != BlockLoopStart {
			start--
		}
		if start >= 0 {
			p.curBlock = -1
			p.nextBlock = start + 1
			return
		}
	}

	p.endBlock()
}

// endBlock advances the cursor to the block following the current one
// and drops the current block, so the next advance() call picks it up.
func (p *TapePlayer) endBlock() {
	p.nextBlock = p.curBlock + 1
	if p.nextBlock >= p.tape.Len() {
		p.nextBlock = -1
	}
	p.curBlock = -1
}

// programBits schedules nb bits of b (starting at bit 7) as pairs of
// alternating pulses: one_len if the bit is set, zero_len otherwise.
func (p *TapePlayer) programBits(b byte, nb int, oneLen, zeroLen uint32) {
	for i := 0; i < nb; i++ {
		length := zeroLen
		if b&(0x80>>uint(i)) != 0 {
			length = oneLen
		}
		p.tgen.AddTone(length, 2)
	}
}

// programDirectBits schedules nb bits of b (starting at bit 7) as
// direct pulses, each held for sampleDur T-states at the bit's level.
func (p *TapePlayer) programDirectBits(b byte, nb int, sampleDur uint32) {
	for i := 0; i < nb; i++ {
		level := levelLow
		if b&(0x80>>uint(i)) != 0 {
			level = levelHigh
		}
		p.tgen.AddDirectPulse(level, sampleDur)
	}
}

// programPause schedules a silence of pauseLen ms. The line is always
// low at the end of a pause, so the next block's first pulse starts on
// a fresh edge; if the pause immediately follows a rising edge, a 1 ms
// high pulse is inserted first to preserve that edge rather than erase
// it.
func (p *TapePlayer) programPause(pauseLen uint16) {
	if pauseLen == 0 {
		return
	}

	if p.tgen.pprevLvl == levelLow && p.tgen.plastLvl == levelHigh {
		p.tgen.AddDirectPulse(levelHigh, TapePauseMult*1)
		p.tgen.AddDirectPulse(levelLow, TapePauseMult*uint32(pauseLen-1))
	} else {
		p.tgen.AddDirectPulse(levelLow, TapePauseMult*uint32(pauseLen))
	}
}
