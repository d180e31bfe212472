package zxcore

// Sound sampling periods, in T-states at 3.5 MHz: ZX_SOUND_TICKS_SMP for
// a 28 kHz mixed-audio sample, ZX_TAPE_TICKS_SMP for a 44.1 kHz tape bit.
const (
	ZXSoundTicksSmp = 125
	ZXTapeTicksSmp  = 79
)

// Standard 48K ROM entry points the quick tape load/save trap compares
// the CPU's PC against.
const (
	TapeLDBytesTrap uint16 = 0x0556
	TapeSABytesTrap uint16 = 0x04C2
)

// SoundSink receives one audio sample (the beeper plus, while the tape
// plays, the tape EAR bit) every ZXSoundTicksSmp T-states. AY output is
// not mixed in. An external audio engine implements this; the core has
// no playback device of its own.
type SoundSink interface {
	PushSample(level int16)
}

// Debugger is the optional collaborator the scheduling loop consults
// for stop-address behavior; it has no single-step hook. A nil Debugger
// means run without the stop-address check.
type Debugger interface {
	// ShouldBreak is polled before executing the next instruction; a
	// true result suspends Machine.Run's loop for this tick.
	ShouldBreak(pc uint16) bool
}

// Machine is the top-level aggregate: it owns the shared clock, the
// memory/IO fabric, the Z80 core, the ULA video generator, the AY
// register file, and the tape deck, and drives them all from the
// single-threaded scheduling loop described for this core.
type Machine struct {
	Clock *Clock
	Mem   *MemoryFabric
	IO    *IOFabric
	CPU   *CPU_Z80
	Video *ULAVideo
	AY    *AYRegisters
	Tape  *TapeDeck

	sndBase  uint64
	tapeBase uint64

	sound SoundSink

	quickLoad bool
	debugger  Debugger

	quit bool
}

// MachineConfig selects the hardware model and supplies the ROM/RAM
// page sets a new Machine starts from.
type MachineConfig struct {
	Model Model
	ROM   [][]byte
	RAM   [][]byte
	Sound SoundSink
}

// NewMachine wires a complete machine: clock, memory fabric, ULA video,
// AY registers, I/O fabric, CPU, and an empty tape deck.
func NewMachine(cfg MachineConfig) *Machine {
	m := &Machine{Clock: &Clock{}}

	m.Mem = NewMemoryFabric(cfg.Model, cfg.ROM, cfg.RAM)
	m.Video = NewULAVideo(m.Clock, m.Mem, nil)
	m.AY = NewAYRegisters(m.Clock, nil)
	m.IO = NewIOFabric(m.Mem, m.Clock, m.Video, m.AY)
	m.CPU = NewCPU_Z80(m.IO)
	m.Video.irq = m.CPU

	m.Tape = NewTapeDeck(NewTape(), ZXTapeTicksSmp)
	m.sound = cfg.Sound

	return m
}

// Reset reinitializes clock, memory banking, video, and CPU state as
// if the machine had just been powered on. The tape deck and its
// loaded tape are left untouched.
func (m *Machine) Reset() {
	m.Clock.Reset()
	m.Mem.Reset()
	m.Video.Reset()
	m.CPU.Reset()
	m.sndBase = 0
	m.tapeBase = 0
}

// SetDebugger attaches (or, with nil, detaches) the optional debugger
// collaborator consulted each scheduling tick.
func (m *Machine) SetDebugger(d Debugger) {
	m.debugger = d
}

// SetQuickLoadEnabled arms or disarms the quick tape load/save trap.
func (m *Machine) SetQuickLoadEnabled(enabled bool) {
	m.quickLoad = enabled
}

// Quit requests that Run's loop terminate after the current tick.
func (m *Machine) Quit() {
	m.quit = true
}

// Step runs exactly one scheduling tick: video catch-up, sound and
// tape sample timing, the quick-load trap check, the debugger
// stop-address check, one CPU instruction, and the interrupt
// acknowledge. There is no single-step check after the instruction.
// It returns false if the debugger asked to suspend before the CPU
// instruction ran.
func (m *Machine) Step() bool {
	m.Video.CatchUp()

	if m.Clock.Since(m.sndBase) >= ZXSoundTicksSmp {
		m.emitSample()
		m.sndBase += ZXSoundTicksSmp
	}

	if m.Clock.Since(m.tapeBase) >= ZXTapeTicksSmp {
		bit := m.Tape.Tick()
		m.Video.SetEAR(bit)
		m.tapeBase += ZXTapeTicksSmp
	}

	if m.quickLoad && m.serviceQuickLoadTrap() {
		return true
	}

	if m.debugger != nil && m.debugger.ShouldBreak(m.CPU.PC) {
		return false
	}

	m.CPU.Step()
	m.Video.AckInterrupt()

	return true
}

// Run executes scheduling ticks until Quit is called or the debugger
// suspends the loop.
func (m *Machine) Run() {
	m.quit = false
	for !m.quit {
		if !m.Step() {
			return
		}
	}
}

// emitSample folds the beeper and (while playing) the tape EAR bit into
// one sample; the AY registers do not contribute. AY sound synthesis
// itself is out of scope for this core; emitSample only
// forwards the digital speaker/EAR level so a SoundSink has something
// to mix against its own AY rendering.
func (m *Machine) emitSample() {
	if m.sound == nil {
		return
	}

	var level int16
	if m.Video.Speaker() {
		level += 0x2000
	}
	if m.Tape.Playing() && m.Video.ear {
		level += 0x1000
	}

	m.sound.PushSample(level)
}

// serviceQuickLoadTrap compares the CPU's PC against the ROM loader
// entry points; on a match it bypasses the interpreter for the whole
// LD-BYTES/SA-BYTES routine, as described in the quick tape load/save
// trap design. Only the load side is implemented; no in-core mechanism
// exists yet to originate a save, so SA-BYTES is recognized but left
// unhandled and returns false (falls through to ordinary interpretation).
func (m *Machine) serviceQuickLoadTrap() bool {
	if m.CPU.PC != TapeLDBytesTrap {
		return false
	}

	return m.quickLoadBytes()
}
