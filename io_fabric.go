package zxcore

// ULAPorts is the subset of ULA state the I/O fabric reads and writes
// on port 0xFE. Video owns the real fields; this is the narrow surface
// the fabric needs.
type ULAPorts interface {
	ReadPort(addr uint16) byte // keyboard rows selected by addr's high byte, EAR on bit 6
	WritePort(val byte)        // border/speaker/mic
	SetEAR(level bool)         // latched by the tape sampler each sample tick
	SetKeyRow(row int, mask byte)
}

// AYCollaborator is the register select/data surface the AY-3-8912 chip
// exposes. The chip's own sound generation is out of scope; the fabric
// only forwards register selects and writes to it (see ay_bus.go).
type AYCollaborator interface {
	Select(reg byte)
	Write(val byte)
	Read() byte
}

// IOTrace records every port write the fabric dispatches, for the
// optional I/O trace collaborator described in SPEC_FULL.md's external
// interfaces section.
type IOTrace interface {
	RecordWrite(tick uint64, port uint16, value byte)
}

// IOFabric decodes 16-bit port addresses and routes them to the ULA,
// the 128K pager, the AY selection/data ports, or the idle bus. It
// embeds a MemoryFabric so it satisfies Z80Bus on its own.
type IOFabric struct {
	*MemoryFabric

	clock *Clock

	ula ULAPorts
	ay  AYCollaborator

	trace IOTrace

	is128K bool
}

// NewIOFabric wires a memory fabric, the shared clock, the ULA port
// surface, and an (optional) AY collaborator into one Z80Bus.
func NewIOFabric(mem *MemoryFabric, clock *Clock, ula ULAPorts, ay AYCollaborator) *IOFabric {
	return &IOFabric{
		MemoryFabric: mem,
		clock:        clock,
		ula:          ula,
		ay:           ay,
		is128K:       mem.model != Model48K && mem.model != ModelZX81,
	}
}

// SetTrace attaches an optional I/O-write recorder.
func (io *IOFabric) SetTrace(t IOTrace) {
	io.trace = t
}

// In decodes a port read. The first matching rule wins: ULA (low byte
// 0xFE), AY data (0xFFFD), pager (0x7FFD, idle on read), then the idle
// bus value 0xFF.
func (io *IOFabric) In(port uint16) byte {
	switch {
	case port&0xFF == 0xFE:
		if io.ula != nil {
			return io.ula.ReadPort(port)
		}
		return 0xFF
	case port == 0xFFFD:
		if io.ay != nil {
			return io.ay.Read()
		}
		return 0xFF
	default:
		return 0xFF
	}
}

// Out decodes a port write and forwards it, journaling to the trace
// collaborator if one is attached.
func (io *IOFabric) Out(port uint16, value byte) {
	if io.trace != nil {
		io.trace.RecordWrite(io.clock.Now(), port, value)
	}

	switch {
	case port&0xFF == 0xFE:
		if io.ula != nil {
			io.ula.WritePort(value)
		}
	case port == 0xFFFD:
		if io.ay != nil {
			io.ay.Select(value & 0x0F)
		}
	case port == 0xBFFD:
		if io.ay != nil {
			io.ay.Write(value)
		}
	case port == 0x7FFD:
		if io.is128K && !io.MemoryFabric.Is48KLocked() {
			io.MemoryFabric.PageSelect(value)
		}
	}
}

// Tick advances the shared clock; it is the Z80Bus.Tick half the
// MemoryFabric embedding doesn't provide.
func (io *IOFabric) Tick(cycles int) {
	io.clock.Advance(cycles)
}
