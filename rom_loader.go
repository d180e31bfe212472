package zxcore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// romSize is the fixed page size every supported ROM file uses.
const romSize = bankSize

// LoadROMSet reads the ROM page file(s) a model needs from dir (the
// standard roms/zx48.rom, roms/zx128_0.rom, roms/zx128_1.rom layout)
// and returns them ready for NewMemoryFabric.
func LoadROMSet(model Model, dir string) ([][]byte, error) {
	var names []string
	switch model {
	case Model48K, ModelZX81:
		names = []string{"zx48.rom"}
	default:
		names = []string{"zx128_0.rom", "zx128_1.rom"}
	}

	pages := make([][]byte, 0, len(names))
	for _, name := range names {
		page, err := loadROMPage(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func loadROMPage(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, WrapCoreError(err, ErrFileNotFound, path)
		}
		return nil, WrapCoreError(err, ErrUnreadable, path)
	}
	defer f.Close()

	page := make([]byte, romSize)
	n, err := io.ReadFull(f, page)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, WrapCoreError(err, ErrUnreadable, path)
	}
	if n != romSize {
		return nil, NewCoreError(ErrMalformed, fmt.Sprintf("%s: expected %d bytes, got %d", path, romSize, n))
	}
	return page, nil
}

// NewRAMSet allocates the RAM page set a model needs: 3 pages for 48K/
// ZX81, 8 for 128K and later.
func NewRAMSet(model Model) [][]byte {
	n := 8
	if model == Model48K || model == ModelZX81 {
		n = 3
	}
	ram := make([][]byte, n)
	for i := range ram {
		ram[i] = make([]byte, bankSize)
	}
	return ram
}
