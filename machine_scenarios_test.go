package zxcore

import "testing"

func newTestMachine48K() *Machine {
	rom := [][]byte{make([]byte, bankSize)}
	ram := NewRAMSet(Model48K)
	return NewMachine(MachineConfig{Model: Model48K, ROM: rom, RAM: ram})
}

func fillRAM(m *Machine, val byte) {
	for addr := 0x4000; addr <= 0xFFFF; addr++ {
		m.Mem.Write(uint16(addr), val)
	}
}

// Scenario A: LD A,0x42 ; HALT from reset. After two instructions, A=0x42,
// PC=0x0002, halted, clock=11.
func TestScenarioA_LoadAndHalt(t *testing.T) {
	m := newTestMachine48K()
	fillRAM(m, 0xAF)
	m.Mem.Write(0x0000, 0x3E)
	m.Mem.Write(0x0001, 0x42)
	m.Mem.Write(0x0002, 0x76)

	m.CPU.Step()
	m.CPU.Step()

	if m.CPU.A != 0x42 {
		t.Fatalf("A = %#02x, want 0x42", m.CPU.A)
	}
	if m.CPU.PC != 0x0002 {
		t.Fatalf("PC = %#04x, want 0x0002", m.CPU.PC)
	}
	if !m.CPU.Halted {
		t.Fatalf("expected CPU halted")
	}
	if m.Clock.Now() != 11 {
		t.Fatalf("clock = %d, want 11", m.Clock.Now())
	}
}

// Scenario B: LDIR copying 4 bytes from 0x8000 to 0x9000.
func TestScenarioB_LDIRBlockCopy(t *testing.T) {
	m := newTestMachine48K()
	fillRAM(m, 0)

	m.CPU.SetHL(0x8000)
	m.CPU.SetDE(0x9000)
	m.CPU.SetBC(4)
	for i, b := range []byte{1, 2, 3, 4} {
		m.Mem.Write(0x8000+uint16(i), b)
	}

	// ED B0 = LDIR
	m.Mem.Write(0x0000, 0xED)
	m.Mem.Write(0x0001, 0xB0)
	m.CPU.PC = 0x0000

	for i := 0; i < 4; i++ {
		m.CPU.Step()
	}

	for i, want := range []byte{1, 2, 3, 4} {
		got := m.Mem.Read(0x9000 + uint16(i))
		if got != want {
			t.Fatalf("mem[0x9000+%d] = %#02x, want %#02x", i, got, want)
		}
	}
	if m.CPU.BC() != 0 {
		t.Fatalf("BC = %#04x, want 0", m.CPU.BC())
	}
	if m.CPU.HL() != 0x8004 {
		t.Fatalf("HL = %#04x, want 0x8004", m.CPU.HL())
	}
	if m.CPU.DE() != 0x9004 {
		t.Fatalf("DE = %#04x, want 0x9004", m.CPU.DE())
	}
	if m.CPU.F&z80FlagPV != 0 {
		t.Fatalf("PV flag set, want clear (BC=0)")
	}
	if m.Clock.Now() != 3*21+16 {
		t.Fatalf("clock = %d, want %d", m.Clock.Now(), 3*21+16)
	}
}

// Scenario C: on 128K, OUT 0x7FFD,0x10 pages in ROM 1 at slot 0.
func TestScenarioC_128KPager(t *testing.T) {
	rom := [][]byte{make([]byte, bankSize), make([]byte, bankSize)}
	rom[1][0] = 0xCD
	ram := NewRAMSet(Model128K)
	m := NewMachine(MachineConfig{Model: Model128K, ROM: rom, RAM: ram})

	m.IO.Out(0x7FFD, 0x10)

	if m.Mem.Read(0x0000) != 0xCD {
		t.Fatalf("read(0x0000) = %#02x, want 0xCD (ROM page 1)", m.Mem.Read(0x0000))
	}
}

// Scenario E: Loop-start(3), Pure-tone(100T, 2 pulses), Loop-end must
// emit exactly 6 pulses of 100T then end.
func TestScenarioE_LoopedTone(t *testing.T) {
	tape := NewTape()
	tape.Append(&TapeBlock{Type: BlockLoopStart, LoopStart: LoopStartBlock{NumReps: 3}})
	tape.Append(&TapeBlock{Type: BlockTone, Tone: ToneBlock{PulseLen: 100, NumPulses: 2}})
	tape.Append(&TapeBlock{Type: BlockLoopEnd})

	player := NewTapePlayer(tape, 0)

	var delays []uint32
	for i := 0; i < 6; i++ {
		d, _, sig := player.GetNext()
		if sig != SigNone {
			t.Fatalf("pulse %d: unexpected signal %v", i, sig)
		}
		delays = append(delays, d)
	}

	for i, d := range delays {
		if d != 100 {
			t.Fatalf("pulse %d delay = %d, want 100", i, d)
		}
	}
	if !player.IsEnd() {
		t.Fatalf("expected end of tape after 6 pulses")
	}
}

// Scenario F: direct recording {0xFF, 0x00}, smp_dur=79, lb_bits=8 must
// sample as 1x8 then 0x8 at Δt=79.
func TestScenarioF_DirectRecordingSampler(t *testing.T) {
	tape := NewTape()
	tape.Append(&TapeBlock{Type: BlockDirectRecording, Direct: DirectRecordingBlock{
		SampleDur:    79,
		LastByteBits: 8,
		Data:         []byte{0xFF, 0x00},
	}})

	player := NewTapePlayer(tape, 0)
	sampler := NewTapeSampler(player, 79)

	want := []bool{true, true, true, true, true, true, true, true,
		false, false, false, false, false, false, false, false}

	for i, w := range want {
		bit, _ := sampler.GetSample()
		if bit != w {
			t.Fatalf("sample %d = %v, want %v", i, bit, w)
		}
	}
}
