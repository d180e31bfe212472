package zxcore

import (
	"encoding/binary"
)

// AY is one of the three supported snapshot formats named in SPEC_FULL.md's
// external interfaces section (Z80/SNA/AY). Unlike Z80/SNA it is not a
// memory-dump snapshot: a ZXAYEMUL file packages one or more songs, each a
// set of relocated code/data blocks plus Init/Interrupt entry points, meant
// to be run against a flat 64 KiB address space rather than the banked
// MemoryFabric. AYPlayback below is the self-contained player that contract
// implies: its own CPU_Z80 over a flat RAM bus, with the existing
// AYRegisters collaborator (ay_bus.go) doing register select/data duty.

const (
	ayHeaderSize = 20
	aySongSize   = 4

	aySystemSpectrum = 0
	aySystemCPC      = 1
	aySystemMSX      = 2
)

// AYPoints are the three addresses a ZXAYEMUL song supplies: the stack
// pointer to start from, the one-shot init routine, and the per-frame
// interrupt routine (0 meaning "none, use a HALT loop instead").
type AYPoints struct {
	Stack     uint16
	Init      uint16
	Interrupt uint16
}

// AYBlock is one relocated chunk of the song's code/data image.
type AYBlock struct {
	Addr uint16
	Data []byte
}

// AYSongData is everything parse needs to build the flat RAM image and
// seed the CPU registers for one song.
type AYSongData struct {
	ChannelMap   [4]byte
	LengthFrames uint16
	FadeFrames   uint16
	HiReg        byte
	LoReg        byte
	Points       *AYPoints
	Blocks       []AYBlock
	System       byte
}

// AYSong is one named entry in an AY file's song table.
type AYSong struct {
	Name string
	Data AYSongData
}

// AYHeader is the file-level metadata preceding the song table.
type AYHeader struct {
	FileVersion    uint16
	PlayerVersion  byte
	SpecialPlayer  byte
	Author         string
	Misc           string
	SongCount      byte
	FirstSongIndex byte
}

// AYFile is a fully parsed ZXAYEMUL file: header plus song table.
type AYFile struct {
	Header AYHeader
	Songs  []AYSong
}

type ayParser struct {
	data []byte
}

// ParseAYFile parses a ZXAYEMUL-signed AY music file. Per SPEC_FULL.md's
// error handling design, a bad signature or a pointer that walks outside
// the buffer is a malformed-input error, not a panic.
func ParseAYFile(data []byte) (*AYFile, error) {
	if len(data) < ayHeaderSize {
		return nil, NewCoreError(ErrMalformed, "ay file header too short")
	}
	if string(data[0:8]) != "ZXAYEMUL" {
		return nil, NewCoreError(ErrMalformed, "ay file signature mismatch")
	}
	p := ayParser{data: data}
	return p.parse()
}

func (p *ayParser) parse() (*AYFile, error) {
	fileVersion := p.u16(8)
	playerVersion := p.u8(10)
	specialPlayer := p.u8(11)

	author, err := p.stringPointer(12)
	if err != nil {
		return nil, err
	}
	misc, err := p.stringPointer(14)
	if err != nil {
		return nil, err
	}

	rawSongCount := p.u8(16)
	rawFirstSong := p.u8(17)
	songCount := int(rawSongCount) + 1
	if rawFirstSong >= byte(songCount) {
		return nil, NewCoreError(ErrMalformed, "ay file first-song index out of range")
	}

	songsPtr, err := p.requiredPointer(18)
	if err != nil {
		return nil, err
	}

	songs, err := p.parseSongs(songCount, songsPtr)
	if err != nil {
		return nil, err
	}

	return &AYFile{
		Header: AYHeader{
			FileVersion:    fileVersion,
			PlayerVersion:  playerVersion,
			SpecialPlayer:  specialPlayer,
			Author:         author,
			Misc:           misc,
			SongCount:      byte(songCount),
			FirstSongIndex: rawFirstSong,
		},
		Songs: songs,
	}, nil
}

func (p *ayParser) parseSongs(count, base int) ([]AYSong, error) {
	songs := make([]AYSong, 0, count)
	for i := 0; i < count; i++ {
		entry := base + i*aySongSize
		if entry+4 > len(p.data) {
			return nil, NewCoreError(ErrMalformed, "ay file song table entry out of range")
		}

		namePtr, err := p.optionalPointer(entry, p.i16(entry))
		if err != nil {
			return nil, err
		}
		name := "untitled"
		if namePtr != nil {
			if parsed, err := p.ntString(*namePtr); err == nil {
				name = parsed
			}
		}

		dataPtr, err := p.pointer(entry+2, p.i16(entry+2))
		if err != nil {
			return nil, err
		}
		if dataPtr == nil {
			return nil, NewCoreError(ErrMalformed, "ay file song missing data pointer")
		}
		data, err := p.parseSongData(*dataPtr)
		if err != nil {
			return nil, err
		}
		songs = append(songs, AYSong{Name: name, Data: data})
	}
	return songs, nil
}

func (p *ayParser) parseSongData(offset int) (AYSongData, error) {
	if offset+14 > len(p.data) {
		return AYSongData{}, NewCoreError(ErrMalformed, "ay file song data truncated")
	}
	data := AYSongData{
		ChannelMap:   [4]byte{p.u8(offset), p.u8(offset + 1), p.u8(offset + 2), p.u8(offset + 3)},
		LengthFrames: p.u16(offset + 4),
		FadeFrames:   p.u16(offset + 6),
		HiReg:        p.u8(offset + 8),
		LoReg:        p.u8(offset + 9),
		System:       aySystemSpectrum,
	}

	pointsPtr, err := p.optionalPointer(offset+10, p.i16(offset+10))
	if err != nil {
		return AYSongData{}, err
	}
	blocksPtr, err := p.optionalPointer(offset+12, p.i16(offset+12))
	if err != nil {
		return AYSongData{}, err
	}

	if pointsPtr != nil {
		points, err := p.parsePoints(*pointsPtr)
		if err != nil {
			return AYSongData{}, err
		}
		data.Points = &points
	}
	if blocksPtr != nil {
		blocks, err := p.parseBlocks(*blocksPtr)
		if err != nil {
			return AYSongData{}, err
		}
		data.Blocks = blocks
	}
	return data, nil
}

func (p *ayParser) parsePoints(offset int) (AYPoints, error) {
	if offset+6 > len(p.data) {
		return AYPoints{}, NewCoreError(ErrMalformed, "ay file points truncated")
	}
	return AYPoints{
		Stack:     p.u16(offset),
		Init:      p.u16(offset + 2),
		Interrupt: p.u16(offset + 4),
	}, nil
}

func (p *ayParser) parseBlocks(offset int) ([]AYBlock, error) {
	var blocks []AYBlock
	for {
		if offset+2 > len(p.data) {
			return nil, NewCoreError(ErrMalformed, "ay file unterminated block table")
		}
		addr := p.u16(offset)
		if addr == 0 {
			break
		}
		if offset+6 > len(p.data) {
			return nil, NewCoreError(ErrMalformed, "ay file block entry truncated")
		}
		length := p.u16(offset + 2)
		dataPtr, err := p.pointer(offset+4, p.i16(offset+4))
		if err != nil {
			return nil, err
		}
		if dataPtr == nil {
			return nil, NewCoreError(ErrMalformed, "ay file block missing data pointer")
		}
		if *dataPtr >= len(p.data) {
			return nil, NewCoreError(ErrMalformed, "ay file block pointer out of range")
		}

		maxLen := uint32(0x10000 - uint32(addr))
		if uint32(length) > maxLen {
			length = uint16(maxLen)
		}
		if *dataPtr+int(length) > len(p.data) {
			length = uint16(len(p.data) - *dataPtr)
		}
		chunk := make([]byte, length)
		copy(chunk, p.data[*dataPtr:*dataPtr+int(length)])
		blocks = append(blocks, AYBlock{Addr: addr, Data: chunk})
		offset += 6
	}
	return blocks, nil
}

func (p *ayParser) u8(off int) byte {
	if off < 0 || off >= len(p.data) {
		return 0
	}
	return p.data[off]
}

func (p *ayParser) u16(off int) uint16 {
	if off < 0 || off+1 >= len(p.data) {
		return 0
	}
	return binary.BigEndian.Uint16(p.data[off : off+2])
}

func (p *ayParser) i16(off int) int16 {
	return int16(p.u16(off))
}

// pointer resolves a relative-to-origin AY-file pointer; rel == 0 means
// "absent", matching the format's own null-pointer convention.
func (p *ayParser) pointer(origin int, rel int16) (*int, error) {
	if rel == 0 {
		return nil, nil
	}
	target := origin + int(rel)
	if target < 0 || target >= len(p.data) {
		return nil, NewCoreError(ErrMalformed, "ay file pointer out of range")
	}
	return &target, nil
}

func (p *ayParser) optionalPointer(origin int, rel int16) (*int, error) {
	return p.pointer(origin, rel)
}

func (p *ayParser) requiredPointer(origin int) (int, error) {
	ptr, err := p.pointer(origin, p.i16(origin))
	if err != nil {
		return 0, err
	}
	if ptr == nil {
		return 0, NewCoreError(ErrMalformed, "ay file missing required pointer")
	}
	return *ptr, nil
}

func (p *ayParser) stringPointer(origin int) (string, error) {
	ptr, err := p.pointer(origin, p.i16(origin))
	if err != nil {
		return "", err
	}
	if ptr == nil {
		return "", nil
	}
	return p.ntString(*ptr)
}

func (p *ayParser) ntString(start int) (string, error) {
	if start < 0 || start >= len(p.data) {
		return "", NewCoreError(ErrMalformed, "ay file string offset out of range")
	}
	end := start
	for end < len(p.data) && p.data[end] != 0 {
		end++
	}
	if end >= len(p.data) {
		return "", NewCoreError(ErrMalformed, "ay file string unterminated")
	}
	return string(p.data[start:end]), nil
}

// ayFlatBus is the Z80Bus a song runs over: a plain 64 KiB array (AY files
// assume a flat, fully-writable address space, not this core's banked
// MemoryFabric) with AY register select/data ports mapped per the song's
// declared host system, reusing AYRegisters for the actual register file.
type ayFlatBus struct {
	ram    [0x10000]byte
	ay     *AYRegisters
	clock  *Clock
	system byte
}

func newAYFlatBus(clock *Clock, system byte, sink AYWriteSink) *ayFlatBus {
	return &ayFlatBus{ay: NewAYRegisters(clock, sink), clock: clock, system: system}
}

func (b *ayFlatBus) Read(addr uint16) byte     { return b.ram[addr] }
func (b *ayFlatBus) Write(addr uint16, v byte) { b.ram[addr] = v }
func (b *ayFlatBus) Tick(cycles int)           { b.clock.Advance(cycles) }

func (b *ayFlatBus) In(port uint16) byte {
	if b.isDataPort(port) {
		return b.ay.Read()
	}
	return 0xFF
}

func (b *ayFlatBus) Out(port uint16, value byte) {
	switch {
	case b.isSelectPort(port):
		b.ay.Select(value)
	case b.isDataPort(port):
		b.ay.Write(value)
	}
}

// isSelectPort/isDataPort implement the three documented ZXAYEMUL host
// port conventions: ZX/128-style address masking, or CPC/MSX low-byte
// matching. Grounded on the same port tables the legacy ZXAYEMUL bus used.
func (b *ayFlatBus) isSelectPort(port uint16) bool {
	switch b.system {
	case aySystemCPC:
		return byte(port) == 0xF4
	case aySystemMSX:
		return byte(port) == 0xA0
	default:
		return port&0xC002 == 0xC000
	}
}

func (b *ayFlatBus) isDataPort(port uint16) bool {
	switch b.system {
	case aySystemCPC:
		return byte(port) == 0xF6
	case aySystemMSX:
		return byte(port) == 0xA1
	default:
		return port&0xC002 == 0x8000
	}
}

// AYPlayback is a self-contained player for one song of a parsed AY file:
// its own CPU_Z80 over a flat RAM image, stepped one frame at a time.
type AYPlayback struct {
	CPU   *CPU_Z80
	AY    *AYRegisters
	Clock *Clock

	cyclesPerFrame uint64
	frameBase      uint64
}

// NewAYPlayback builds the flat RAM image for file.Songs[songIndex] (code
// blocks relocated at their declared addresses, plus a small DI/CALL
// init/EI-HALT-loop/CALL interrupt stub at 0x0000 the same way the
// original player bootstraps a song), seeds CPU registers per the song's
// declared HiReg/LoReg/stack, and wires register writes to sink.
func NewAYPlayback(file *AYFile, songIndex int, clockHz uint32, frameRate uint16, sink AYWriteSink) (*AYPlayback, error) {
	if file == nil {
		return nil, NewCoreError(ErrMalformed, "ay file is nil")
	}
	if songIndex < 0 || songIndex >= len(file.Songs) {
		return nil, NewCoreError(ErrMalformed, "ay song index out of range")
	}
	if clockHz == 0 || frameRate == 0 {
		return nil, NewCoreError(ErrMalformed, "ay playback clock/frame rate must be non-zero")
	}

	song := file.Songs[songIndex]
	clock := &Clock{}
	bus := newAYFlatBus(clock, song.Data.System, sink)
	if err := bus.load(file.Header, song.Data); err != nil {
		return nil, err
	}

	cpu := NewCPU_Z80(bus)
	seedAYRegisters(cpu, song.Data)

	return &AYPlayback{
		CPU:            cpu,
		AY:             bus.ay,
		Clock:          clock,
		cyclesPerFrame: uint64(clockHz) / uint64(frameRate),
	}, nil
}

// load writes the player-version boot pattern, the song's relocated
// blocks, and the init/interrupt bootstrap stub into the flat RAM image.
func (b *ayFlatBus) load(header AYHeader, song AYSongData) error {
	playerVersion := header.PlayerVersion
	if playerVersion == 0 {
		playerVersion = 3
	}

	switch {
	case playerVersion >= 3:
		for i := 0; i < 0x0100; i++ {
			b.ram[i] = 0xC9 // RET, in case a song calls a ROM routine it doesn't provide
		}
		for i := 0x0100; i < 0x4000; i++ {
			b.ram[i] = 0xFF
		}
	case playerVersion == 2:
		for i := 0; i < 0x0100; i++ {
			b.ram[i] = 0xC9
		}
	}
	b.ram[0x0038] = 0xFB // EI, so a IM1 interrupt returns control promptly

	for _, block := range song.Blocks {
		if block.Addr == 0 || len(block.Data) == 0 {
			continue
		}
		start := int(block.Addr)
		end := start + len(block.Data)
		if end > len(b.ram) {
			end = len(b.ram)
		}
		copy(b.ram[start:end], block.Data[:end-start])
	}

	points := song.Points
	if points == nil {
		return NewCoreError(ErrMalformed, "ay song missing init/interrupt points")
	}
	initAddr := points.Init
	if initAddr == 0 && len(song.Blocks) > 0 {
		initAddr = song.Blocks[0].Addr
	}
	copy(b.ram[:], buildAYBootStub(initAddr, points.Interrupt))
	return nil
}

// buildAYBootStub assembles: DI; CALL init; loop: IM 1-or-2; EI; HALT;
// [CALL interrupt]; JR loop. A song with a declared interrupt routine
// gets IM 1 and the CALL; one without gets IM 2 and no CALL. Either way
// the loop waits in HALT for the 50 Hz maskable interrupt
// this core's own scheduling loop would raise if this player were fed
// by the ULA; run standalone (as AYPlayback.RunFrame does), the IRQ
// line is asserted once per frame by the caller instead.
func buildAYBootStub(initAddr, interrupt uint16) []byte {
	code := make([]byte, 0, 16)
	code = append(code, 0xF3) // DI
	if initAddr != 0 {
		code = appendCallAY(code, initAddr)
	}
	loopPos := len(code)
	if interrupt == 0 {
		code = append(code, 0xED, 0x5E) // IM 2
	} else {
		code = append(code, 0xED, 0x56) // IM 1
	}
	code = append(code, 0xFB, 0x76) // EI, HALT
	if interrupt != 0 {
		code = appendCallAY(code, interrupt)
	}
	rel := loopPos - (len(code) + 2)
	code = append(code, 0x18, byte(int8(rel))) // JR loop
	return code
}

func appendCallAY(code []byte, addr uint16) []byte {
	return append(code, 0xCD, byte(addr), byte(addr>>8))
}

func seedAYRegisters(cpu *CPU_Z80, song AYSongData) {
	hi, lo := song.HiReg, song.LoReg
	cpu.A, cpu.F, cpu.B, cpu.C = hi, lo, hi, lo
	cpu.D, cpu.E, cpu.H, cpu.L = hi, lo, hi, lo
	cpu.A2, cpu.F2, cpu.B2, cpu.C2 = hi, lo, hi, lo
	cpu.D2, cpu.E2, cpu.H2, cpu.L2 = hi, lo, hi, lo

	if song.Points != nil {
		cpu.SP = song.Points.Stack
	}
	if cpu.SP == 0 {
		cpu.SP = 0xFFFF
	}
	cpu.I = 3
	cpu.IM = 0
	cpu.IFF1, cpu.IFF2 = false, false
	cpu.PC = 0x0000
	cpu.SetIRQVector(0x00)
}

// RunFrame steps the song's CPU for one frame's worth of cycles,
// asserting the interrupt line once (the song's own stub is
// IM1/IM2-aware) and de-asserting it once IFF1 is cleared by the
// service routine, mirroring the HALT/IRQ handshake a real Spectrum's
// 50 Hz interrupt performs against the ROM's HALT-loop idiom.
func (p *AYPlayback) RunFrame() {
	idlePC := p.CPU.PC
	p.frameBase = p.Clock.Now()
	irqAsserted, irqServiced := false, false

	for p.Clock.Since(p.frameBase) < p.cyclesPerFrame {
		if p.CPU.Halted && !irqAsserted {
			p.CPU.SetIRQLine(true)
			irqAsserted = true
		}
		prevIFF1 := p.CPU.IFF1
		p.CPU.Step()
		if irqAsserted && prevIFF1 && !p.CPU.IFF1 && !irqServiced {
			irqServiced = true
			p.CPU.SetIRQLine(false)
		}
		if p.CPU.PC == idlePC && irqServiced {
			break
		}
	}
	if irqAsserted {
		p.CPU.SetIRQLine(false)
	}
}
