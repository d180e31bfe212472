package zxcore

// ayRegCount is the number of addressable AY-3-8912 registers; the chip
// itself is out of scope beyond this register file and its write callback.
const ayRegCount = 16

// AYWriteSink receives a notification for every register write the I/O
// fabric forwards to the AY collaborator. An external sound engine
// implements this to drive the actual PSG; the core has no opinion on
// how (or whether) the register values are sonified.
type AYWriteSink interface {
	WriteRegister(reg, value byte)
}

// ayRegisterWrite is one journaled register write, kept for the optional
// replay/debug surface the same way the engine's PSG bus journals writes.
type ayRegisterWrite struct {
	Reg   byte
	Value byte
	Tick  uint64
}

// AYRegisters implements AYCollaborator: register select/data storage
// plus an optional external write sink. This is the entire AY surface
// SPEC_FULL.md asks the core to own; sound generation lives outside it.
type AYRegisters struct {
	clock *Clock

	selected byte
	regs     [ayRegCount]byte
	writes   []ayRegisterWrite
	sink     AYWriteSink
}

// NewAYRegisters builds an AY register file ticking off clock, forwarding
// writes to the optional sink.
func NewAYRegisters(clock *Clock, sink AYWriteSink) *AYRegisters {
	return &AYRegisters{clock: clock, sink: sink}
}

func (a *AYRegisters) Select(reg byte) {
	a.selected = reg & 0x0F
}

func (a *AYRegisters) Write(val byte) {
	if a.selected >= ayRegCount {
		return
	}
	a.regs[a.selected] = val
	if a.clock != nil {
		a.writes = append(a.writes, ayRegisterWrite{Reg: a.selected, Value: val, Tick: a.clock.Now()})
	}
	if a.sink != nil {
		a.sink.WriteRegister(a.selected, val)
	}
}

func (a *AYRegisters) Read() byte {
	if a.selected >= ayRegCount {
		return 0xFF
	}
	return a.regs[a.selected]
}
