package mem

import (
	"bytes"
	"errors"
	"testing"
)

func TestDRAM_ReadWrite(t *testing.T) {
	d, err := NewDRAM(0x1000, 64)
	if err != nil {
		t.Fatalf("NewDRAM: %v", err)
	}
	if err := d.Write(0x1010, []byte{0xEF, 0xBE, 0xAD, 0xDE}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := d.Read(0x100E, 6)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0, 0, 0xEF, 0xBE, 0xAD, 0xDE}
	if !bytes.Equal(got, want) {
		t.Errorf("Read = %x, want %x", got, want)
	}
}

func TestDRAM_ReadReturnsCopy(t *testing.T) {
	d, _ := NewDRAM(0, 16)
	b, _ := d.Read(0, 4)
	b[0] = 0xFF
	again, _ := d.Read(0, 1)
	if again[0] != 0 {
		t.Fatalf("mutating a read slice changed memory")
	}
}

func TestDRAM_OutOfRange(t *testing.T) {
	d, _ := NewDRAM(0x1000, 16)
	tests := []struct {
		name string
		addr uint64
		n    int
	}{
		{"below base", 0xFFF, 1},
		{"past end", 0x1010, 1},
		{"straddles end", 0x100E, 4},
		{"huge addr", ^uint64(0), 4},
	}
	for _, tt := range tests {
		if _, err := d.Read(tt.addr, tt.n); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("%s: Read err = %v, want ErrOutOfRange", tt.name, err)
		}
		if err := d.Write(tt.addr, make([]byte, tt.n)); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("%s: Write err = %v, want ErrOutOfRange", tt.name, err)
		}
	}
}

func TestDRAM_RejectedWriteLeavesMemory(t *testing.T) {
	d, _ := NewDRAM(0, 8)
	if err := d.Write(6, []byte{1, 2, 3, 4}); err == nil {
		t.Fatal("expected error for straddling write")
	}
	got, _ := d.Read(6, 2)
	if !bytes.Equal(got, []byte{0, 0}) {
		t.Fatalf("partial write visible: %x", got)
	}
}

func TestDRAM_Contains(t *testing.T) {
	d, _ := NewDRAM(0x100, 0x10)
	if !d.Contains(0x100) || !d.Contains(0x10F) {
		t.Error("Contains should include both ends of the region")
	}
	if d.Contains(0xFF) || d.Contains(0x110) {
		t.Error("Contains should exclude addresses outside the region")
	}
	if d.Base() != 0x100 || d.Size() != 0x10 {
		t.Errorf("Base/Size = 0x%x/0x%x, want 0x100/0x10", d.Base(), d.Size())
	}
}

func TestNewDRAM_ZeroSize(t *testing.T) {
	if _, err := NewDRAM(0, 0); !errors.Is(err, ErrZeroSize) {
		t.Fatalf("err = %v, want ErrZeroSize", err)
	}
}

func TestPaged_SparsePages(t *testing.T) {
	p, err := NewPaged(0, 1<<24, 0)
	if err != nil {
		t.Fatalf("NewPaged: %v", err)
	}

	// Write to widely separated addresses.
	addrs := []uint64{0x0000, 0x10000, 0x20000, 0x100000}
	for i, addr := range addrs {
		if err := p.Write(addr, []byte{byte(i + 1)}); err != nil {
			t.Fatalf("Write at 0x%x: %v", addr, err)
		}
	}
	if p.PageCount() != len(addrs) {
		t.Errorf("PageCount: got %d, want %d", p.PageCount(), len(addrs))
	}
	for i, addr := range addrs {
		b, err := p.Read(addr, 1)
		if err != nil {
			t.Fatalf("Read at 0x%x: %v", addr, err)
		}
		if b[0] != byte(i+1) {
			t.Errorf("Read at 0x%x: got %d, want %d", addr, b[0], i+1)
		}
	}
}

func TestPaged_UntouchedPageReadsZero(t *testing.T) {
	p, _ := NewPaged(0, 1<<20, 0)
	b, err := p.Read(0x5000, 8)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(b, make([]byte, 8)) {
		t.Errorf("untouched memory: got %x, want zeros", b)
	}
	if p.PageCount() != 0 {
		t.Errorf("read allocated %d pages", p.PageCount())
	}
}

func TestPaged_CrossPage(t *testing.T) {
	p, _ := NewPaged(0, 1<<20, 0)
	data := []byte{0x78, 0x56, 0x34, 0x12}
	addr := uint64(PageSize - 2)
	if err := p.Write(addr, data); err != nil {
		t.Fatalf("Write cross-page: %v", err)
	}
	got, err := p.Read(addr, 4)
	if err != nil {
		t.Fatalf("Read cross-page: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("cross-page: got %x, want %x", got, data)
	}
	if p.PageCount() != 2 {
		t.Errorf("cross-page should allocate 2 pages, got %d", p.PageCount())
	}
}

func TestPaged_PageLimit(t *testing.T) {
	p, _ := NewPaged(0, 1<<20, 2)
	if err := p.Write(0, []byte{1}); err != nil {
		t.Fatalf("Write page 0: %v", err)
	}
	// Spans pages 1 and 2; only one more page fits.
	err := p.Write(2*PageSize-1, []byte{2, 3})
	if !errors.Is(err, ErrPageLimit) {
		t.Fatalf("err = %v, want ErrPageLimit", err)
	}
	if p.PageCount() != 1 {
		t.Errorf("failed write allocated pages: %d", p.PageCount())
	}
	if err := p.Write(PageSize, []byte{4}); err != nil {
		t.Fatalf("Write within limit: %v", err)
	}
}

func TestPaged_OutOfRange(t *testing.T) {
	p, _ := NewPaged(0x8000, PageSize, 0)
	if _, err := p.Read(0x7FFF, 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Read below base err = %v", err)
	}
	if err := p.Write(0x8FFE, []byte{1, 2, 3}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Write past end err = %v", err)
	}
}

func TestPaged_Reset(t *testing.T) {
	p, _ := NewPaged(0, 1<<20, 0)
	p.Write(0x100, []byte{0xAA})
	p.Reset()
	if p.PageCount() != 0 {
		t.Fatalf("PageCount after Reset = %d", p.PageCount())
	}
	b, _ := p.Read(0x100, 1)
	if b[0] != 0 {
		t.Errorf("Reset did not clear memory: 0x%02x", b[0])
	}
}

func TestLoadImage(t *testing.T) {
	d, _ := NewDRAM(0x8000, 0x100)
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	if err := LoadImage(d, 0x8000, data); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	got, _ := d.Read(0x8000, len(data))
	if !bytes.Equal(got, data) {
		t.Errorf("image = %x, want %x", got, data)
	}
}

func TestLoadImage_Errors(t *testing.T) {
	d, _ := NewDRAM(0, 4)
	if err := LoadImage(d, 0, nil); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty image err = %v, want ErrEmptyImage", err)
	}
	if err := LoadImage(d, 0, make([]byte, 5)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("oversized image err = %v, want ErrOutOfRange", err)
	}
}
