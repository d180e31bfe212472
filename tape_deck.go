package zxcore

// TapeDeck owns a Tape and the player/sampler pair reading it, and is
// the collaborator the scheduling loop talks to: it exposes Play/Stop
// transport controls and the single-bit EAR sample the I/O fabric
// latches each tape tick.
type TapeDeck struct {
	tape    *Tape
	player  *TapePlayer
	sampler *TapeSampler

	deltaT   uint32
	playing  bool
	mode48K  bool
}

// NewTapeDeck creates a deck over tape, sampling at deltaT T-states per
// bit (the host's ZX_TAPE_TICKS_SMP).
func NewTapeDeck(tape *Tape, deltaT uint32) *TapeDeck {
	return &TapeDeck{tape: tape, deltaT: deltaT}
}

// LoadTape replaces the deck's tape, stopping playback.
func (d *TapeDeck) LoadTape(tape *Tape) {
	d.tape = tape
	d.Stop()
}

// Play starts (or resumes) playback from block index startIdx.
func (d *TapeDeck) Play(startIdx int) {
	d.player = NewTapePlayer(d.tape, startIdx)
	d.sampler = NewTapeSampler(d.player, d.deltaT)
	d.playing = true
}

// Stop halts playback; Tick then reports a low level, so the scheduling
// loop drives the EAR line low.
func (d *TapeDeck) Stop() {
	d.playing = false
	d.player = nil
	d.sampler = nil
}

// Playing reports whether the deck is actively producing samples.
func (d *TapeDeck) Playing() bool {
	return d.playing
}

// SetMode48K tells the deck whether the host is currently in 48K mode,
// which governs whether a Stop-if-48K block actually stops the tape.
func (d *TapeDeck) SetMode48K(is48K bool) {
	d.mode48K = is48K
}

// Tick produces the next EAR sample bit, advancing the deck's internal
// player/sampler by one Δt. It stops the deck itself on a Stop signal,
// or on a Stop48K signal while the host is in 48K mode. Callers (the
// scheduling loop) are expected to invoke Tick once per
// ZX_TAPE_TICKS_SMP of elapsed CPU clock and latch the returned bit
// into the ULA's EAR input.
func (d *TapeDeck) Tick() bool {
	if !d.playing || d.sampler == nil {
		return false
	}

	bit, sig := d.sampler.GetSample()

	switch sig {
	case SigStop:
		d.playing = false
	case SigStop48K:
		if d.mode48K {
			d.playing = false
		}
	}

	return bit
}

// IsEnd reports whether the current player has exhausted the tape.
func (d *TapeDeck) IsEnd() bool {
	if d.player == nil {
		return true
	}
	return d.player.IsEnd()
}

// CurBlock returns the index of the block currently playing, or -1 if
// none (matching TapePlayer's own cursor representation).
func (d *TapeDeck) CurBlock() int {
	if d.player == nil {
		return -1
	}
	return d.player.curBlock
}

// Tape returns the deck's underlying tape for editing (insert/remove
// blocks) while stopped.
func (d *TapeDeck) Tape() *Tape {
	return d.tape
}
