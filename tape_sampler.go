package zxcore

// TapeSampler integrates the player's level-transition stream into one
// output bit per Δt of host CPU clock, collapsing any pulses shorter
// than Δt into instant transitions (last-one-wins for that interval).
// This is what lets the tape subsystem be sampled at a fixed tick rate
// instead of driven edge-by-edge.
type TapeSampler struct {
	player *TapePlayer

	deltaT uint32

	curLvl    bool
	nextDelay uint32
	nextLvl   bool
}

// NewTapeSampler creates a sampler over player, delivering one bit every
// deltaT T-states.
func NewTapeSampler(player *TapePlayer, deltaT uint32) *TapeSampler {
	s := &TapeSampler{player: player, deltaT: deltaT}
	s.nextDelay, s.nextLvl, _ = player.GetNext()
	return s
}

// GetSample advances the sampler by one Δt and returns the output bit
// for that interval, plus any out-of-band signal the player latched
// while catching up.
func (s *TapeSampler) GetSample() (bit bool, sig PlayerSignal) {
	td := s.deltaT

	for s.nextDelay <= td && !s.player.IsEnd() && sig == SigNone {
		td -= s.nextDelay
		s.curLvl = s.nextLvl

		var delay uint32
		var lvl bool
		delay, lvl, sig = s.player.GetNext()
		s.nextDelay = delay
		s.nextLvl = lvl
	}

	if s.nextDelay > td {
		s.nextDelay -= td
	}

	return s.curLvl, sig
}
