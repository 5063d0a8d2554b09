// Package mem provides the memory collaborators a hart fetches from, loads
// from and stores to: a flat DRAM region and a sparse paged memory whose
// pages are allocated on first touch. Both satisfy riscv.Bus and reject any
// access that does not fit entirely inside the region.
package mem

import (
	"errors"
	"fmt"

	"github.com/harvey-emu/harvey/riscv"
)

// DefaultSize is the DRAM size used when none is configured (128 MiB).
const DefaultSize = 128 << 20

// Memory errors.
var (
	ErrOutOfRange = errors.New("mem: access out of range")
	ErrPageLimit  = errors.New("mem: page allocation limit exceeded")
	ErrEmptyImage = errors.New("mem: empty image")
	ErrZeroSize   = errors.New("mem: zero size")
)

var (
	_ riscv.Bus = (*DRAM)(nil)
	_ riscv.Bus = (*Paged)(nil)
)

// region is the address window [base, base+size) shared by both memories.
type region struct {
	base uint64
	size uint64
}

// check returns the offset of addr within r if [addr, addr+n) fits.
func (r region) check(addr uint64, n int) (uint64, error) {
	if n < 0 || addr < r.base {
		return 0, fmt.Errorf("%w: addr=0x%x len=%d", ErrOutOfRange, addr, n)
	}
	off := addr - r.base
	if off > r.size || uint64(n) > r.size-off {
		return 0, fmt.Errorf("%w: addr=0x%x len=%d", ErrOutOfRange, addr, n)
	}
	return off, nil
}

// Base returns the first address of the region.
func (r region) Base() uint64 { return r.base }

// Size returns the region length in bytes.
func (r region) Size() uint64 { return r.size }

// Contains reports whether addr lies inside the region.
func (r region) Contains(addr uint64) bool {
	return addr >= r.base && addr-r.base < r.size
}

// LoadImage writes a flat binary image into bus starting at base.
func LoadImage(bus riscv.Bus, base uint64, image []byte) error {
	if len(image) == 0 {
		return ErrEmptyImage
	}
	if err := bus.Write(base, image); err != nil {
		return fmt.Errorf("mem: load image at 0x%x: %w", base, err)
	}
	return nil
}
