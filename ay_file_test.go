package zxcore

import (
	"encoding/binary"
	"testing"
)

// buildAYFixture lays out a minimal one-song ZXAYEMUL file using the same
// relative-pointer scheme real AY files use, grounded on the layout
// legacy/ay_z80_parser_test.go exercised against the original parser.
func buildAYFixture() []byte {
	data := make([]byte, 0x90)
	copy(data[0:8], []byte("ZXAYEMUL"))
	binary.BigEndian.PutUint16(data[0x08:0x0A], 0x0103)
	data[0x0A] = 0x03
	data[0x0B] = 0x00
	data[0x10] = 0x00 // song count - 1
	data[0x11] = 0x00 // first song index
	binary.BigEndian.PutUint16(data[0x12:0x14], 0x000E)

	songStruct, songData, points, blocks, blockData, nameOff := 0x20, 0x30, 0x40, 0x50, 0x60, 0x70

	binary.BigEndian.PutUint16(data[songStruct:songStruct+2], uint16(nameOff-songStruct))
	binary.BigEndian.PutUint16(data[songStruct+2:songStruct+4], uint16(songData-(songStruct+2)))

	data[songData] = 0
	data[songData+1] = 1
	data[songData+2] = 2
	data[songData+3] = 3
	binary.BigEndian.PutUint16(data[songData+4:songData+6], 100)
	binary.BigEndian.PutUint16(data[songData+6:songData+8], 10)
	data[songData+8] = 0xAA
	data[songData+9] = 0x55
	binary.BigEndian.PutUint16(data[songData+10:songData+12], uint16(points-(songData+10)))
	binary.BigEndian.PutUint16(data[songData+12:songData+14], uint16(blocks-(songData+12)))

	binary.BigEndian.PutUint16(data[points:points+2], 0xF000)
	binary.BigEndian.PutUint16(data[points+2:points+4], 0x4000)
	binary.BigEndian.PutUint16(data[points+4:points+6], 0x5000)

	binary.BigEndian.PutUint16(data[blocks:blocks+2], 0x6000)
	binary.BigEndian.PutUint16(data[blocks+2:blocks+4], 0x0002)
	binary.BigEndian.PutUint16(data[blocks+4:blocks+6], uint16(blockData-(blocks+4)))
	binary.BigEndian.PutUint16(data[blocks+6:blocks+8], 0x0000)

	data[blockData] = 0xDE
	data[blockData+1] = 0xAD
	copy(data[nameOff:], []byte("Song\x00"))

	return data
}

func TestParseAYFileHeaderAndSong(t *testing.T) {
	ay, err := ParseAYFile(buildAYFixture())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ay.Header.FileVersion != 0x0103 || ay.Header.PlayerVersion != 0x03 {
		t.Fatalf("unexpected header: %+v", ay.Header)
	}
	if len(ay.Songs) != 1 {
		t.Fatalf("expected 1 song, got %d", len(ay.Songs))
	}
	song := ay.Songs[0]
	if song.Name != "Song" {
		t.Fatalf("song name = %q", song.Name)
	}
	if song.Data.HiReg != 0xAA || song.Data.LoReg != 0x55 {
		t.Fatalf("unexpected hi/lo reg: %+v", song.Data)
	}
	if song.Data.Points == nil || song.Data.Points.Stack != 0xF000 || song.Data.Points.Init != 0x4000 || song.Data.Points.Interrupt != 0x5000 {
		t.Fatalf("unexpected points: %+v", song.Data.Points)
	}
	if len(song.Data.Blocks) != 1 || song.Data.Blocks[0].Addr != 0x6000 {
		t.Fatalf("unexpected blocks: %+v", song.Data.Blocks)
	}
	if len(song.Data.Blocks[0].Data) != 2 || song.Data.Blocks[0].Data[0] != 0xDE || song.Data.Blocks[0].Data[1] != 0xAD {
		t.Fatalf("unexpected block data: %+v", song.Data.Blocks[0].Data)
	}
}

func TestParseAYFileRejectsBadSignature(t *testing.T) {
	data := buildAYFixture()
	copy(data[0:8], []byte("NOTAYFIL"))
	if _, err := ParseAYFile(data); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestNewAYPlaybackSeedsRegistersAndRuns(t *testing.T) {
	ay, err := ParseAYFile(buildAYFixture())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var writes []ayRegisterWrite
	sink := sinkFunc(func(reg, val byte) {
		writes = append(writes, ayRegisterWrite{Reg: reg, Value: val})
	})

	p, err := NewAYPlayback(ay, 0, 3500000, 50, sink)
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}
	if p.CPU.A != 0xAA || p.CPU.F != 0x55 {
		t.Fatalf("registers not seeded: A=%#02x F=%#02x", p.CPU.A, p.CPU.F)
	}
	if p.CPU.SP != 0xF000 {
		t.Fatalf("SP = %#04x, want 0xF000", p.CPU.SP)
	}

	for i := 0; i < 5; i++ {
		p.RunFrame()
	}
	if p.Clock.Now() == 0 {
		t.Fatal("playback clock never advanced")
	}
}

// sinkFunc adapts a plain function to AYWriteSink for the test above.
type sinkFunc func(reg, val byte)

func (f sinkFunc) WriteRegister(reg, val byte) { f(reg, val) }
