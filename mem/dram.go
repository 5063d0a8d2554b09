package mem

// DRAM is a flat, fully allocated memory region.
type DRAM struct {
	region
	data []byte
}

// NewDRAM allocates size zeroed bytes mapped at base.
func NewDRAM(base, size uint64) (*DRAM, error) {
	if size == 0 {
		return nil, ErrZeroSize
	}
	if base+size < base {
		return nil, ErrOutOfRange
	}
	return &DRAM{region: region{base: base, size: size}, data: make([]byte, size)}, nil
}

// Read returns a copy of n bytes starting at addr.
func (d *DRAM) Read(addr uint64, n int) ([]byte, error) {
	off, err := d.check(addr, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.data[off:])
	return out, nil
}

// Write copies data into memory starting at addr.
func (d *DRAM) Write(addr uint64, data []byte) error {
	off, err := d.check(addr, len(data))
	if err != nil {
		return err
	}
	copy(d.data[off:], data)
	return nil
}
