package zxcore

import (
	"bufio"
	"encoding/binary"
	"io"
)

// FileIOTrace implements IOTrace by appending one (tick-delta, port,
// value) record per journaled write to an underlying writer, varint-
// encoding the tick delta the way a compact binary log favors over a
// text format.
type FileIOTrace struct {
	w        *bufio.Writer
	lastTick uint64
}

// NewFileIOTrace wraps w as an IOTrace sink.
func NewFileIOTrace(w io.Writer) *FileIOTrace {
	return &FileIOTrace{w: bufio.NewWriter(w)}
}

// RecordWrite appends one trace record: the tick delta since the last
// recorded write (varint), the 16-bit port (little-endian), and the
// value byte.
func (t *FileIOTrace) RecordWrite(tick uint64, port uint16, value byte) {
	delta := tick - t.lastTick
	t.lastTick = tick

	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], delta)
	t.w.Write(buf[:n])

	var portBuf [2]byte
	binary.LittleEndian.PutUint16(portBuf[:], port)
	t.w.Write(portBuf[:])

	t.w.WriteByte(value)
}

// Flush pushes any buffered records to the underlying writer.
func (t *FileIOTrace) Flush() error {
	return t.w.Flush()
}

// ReadIOTrace decodes a trace stream written by FileIOTrace back into
// a slice of (absolute tick, port, value) records.
func ReadIOTrace(r io.Reader) ([]IOTraceRecord, error) {
	br := bufio.NewReader(r)
	var records []IOTraceRecord
	var tick uint64

	for {
		delta, err := binary.ReadUvarint(br)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, WrapCoreError(err, ErrMalformed, "truncated I/O trace")
		}
		tick += delta

		var portBuf [2]byte
		if _, err := io.ReadFull(br, portBuf[:]); err != nil {
			return nil, WrapCoreError(err, ErrMalformed, "truncated I/O trace port field")
		}

		value, err := br.ReadByte()
		if err != nil {
			return nil, WrapCoreError(err, ErrMalformed, "truncated I/O trace value field")
		}

		records = append(records, IOTraceRecord{
			Tick:  tick,
			Port:  binary.LittleEndian.Uint16(portBuf[:]),
			Value: value,
		})
	}
}

// IOTraceRecord is one decoded trace entry.
type IOTraceRecord struct {
	Tick  uint64
	Port  uint16
	Value byte
}
