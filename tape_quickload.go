package zxcore

// quickLoadBytes implements the standard ROM LD-BYTES routine (0x0556)
// directly against the tape deck's current block, bypassing the Z80
// interpreter for the whole byte-transfer loop the real ROM performs
// one bit at a time. On entry, by ROM convention:
//
//	A  = expected block flag byte (0x00 header, 0xFF data)
//	F carry = 1 to load, 0 to verify
//	DE = byte count
//	IX = destination address
//
// On return, carry set means success (A holds the trailing XOR
// checksum byte actually read); carry clear means the flag byte
// mismatched, the tape ran out, or the checksum failed. Either way the
// routine finishes by popping its own return address off the stack,
// so the caller sees an ordinary RET back to BASIC/the loading screen.
func (m *Machine) quickLoadBytes() bool {
	loading := m.CPU.F&z80FlagC != 0
	expectFlag := m.CPU.A
	count := m.CPU.DE()
	addr := m.CPU.IX

	ok, flag, checksum := m.readTapeBlockBytes(expectFlag, addr, count, loading)

	if ok {
		m.CPU.A = checksum
		m.CPU.F |= z80FlagC
	} else {
		m.CPU.A = flag
		m.CPU.F &^= z80FlagC
	}

	m.CPU.PC = m.CPU.popWord()
	return true
}

// readTapeBlockBytes pulls count bytes from the tape deck's current
// data-like block (Data/TurboData/PureData all converge on the same
// flag-byte-then-payload-then-checksum shape) and, if loading, writes
// them into memory starting at addr. It returns whether the flag byte
// matched, the flag byte actually read, and the running XOR checksum
// including the flag byte — mirroring the real ROM's checksum, which
// starts accumulating from the flag byte itself.
func (m *Machine) readTapeBlockBytes(expectFlag byte, addr, count uint16, loading bool) (ok bool, flag byte, checksum byte) {
	raw := m.currentBlockPayload()
	if len(raw) < 2 {
		return false, 0, 0
	}

	flag = raw[0]
	checksum = flag
	if flag != expectFlag {
		return false, flag, checksum
	}

	payload := raw[1:]
	n := int(count)
	if n > len(payload)-1 {
		return false, flag, checksum
	}

	for i := 0; i < n; i++ {
		b := payload[i]
		checksum ^= b
		if loading {
			m.Mem.Write(addr+uint16(i), b)
		} else if m.Mem.Read(addr+uint16(i)) != b {
			return false, flag, checksum
		}
	}

	trailer := payload[n]
	checksum ^= trailer
	if checksum != 0 {
		return false, flag, checksum
	}

	return true, flag, trailer
}

// currentBlockPayload returns the raw byte payload (flag byte, data,
// trailing checksum byte) of the tape deck's current block, or nil if
// it isn't a byte-oriented block the quick-load trap can serve.
func (m *Machine) currentBlockPayload() []byte {
	idx := m.Tape.CurBlock()
	if idx < 0 {
		return nil
	}

	blk := m.Tape.Tape().At(idx)
	if blk == nil {
		return nil
	}

	switch blk.Type {
	case BlockData:
		return blk.Data.Data
	case BlockTurboData:
		return blk.Turbo.Data
	case BlockPureData:
		return blk.PureData.Data
	default:
		return nil
	}
}
