package mem

// Paging constants.
const (
	// PageSize is 4 KiB per page.
	PageSize = 4096

	// PageShift is log2(PageSize).
	PageShift = 12

	// DefaultMaxPages bounds page allocations to 64 MiB of backing store.
	DefaultMaxPages = 16384
)

// Paged is sparse memory over [base, base+size). Pages are allocated on
// first write; untouched pages read as zero without being allocated.
type Paged struct {
	region
	pages    map[uint64][]byte // page index -> page
	maxPages int
}

// NewPaged creates a sparse memory mapped at base. A maxPages of zero or less
// selects DefaultMaxPages.
func NewPaged(base, size uint64, maxPages int) (*Paged, error) {
	if size == 0 {
		return nil, ErrZeroSize
	}
	if base+size < base {
		return nil, ErrOutOfRange
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Paged{
		region:   region{base: base, size: size},
		pages:    make(map[uint64][]byte),
		maxPages: maxPages,
	}, nil
}

// pageOffset returns the offset within a page for the given address.
func pageOffset(addr uint64) uint64 {
	return addr & (PageSize - 1)
}

// Read returns n bytes starting at addr. Accesses may span pages.
func (p *Paged) Read(addr uint64, n int) ([]byte, error) {
	if _, err := p.check(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for done := 0; done < n; {
		a := addr + uint64(done)
		off := pageOffset(a)
		chunk := min(n-done, int(PageSize-off))
		if page, ok := p.pages[a>>PageShift]; ok {
			copy(out[done:done+chunk], page[off:])
		}
		done += chunk
	}
	return out, nil
}

// Write stores data starting at addr. Every page the write touches is
// allocated before any byte is written, so a write that would exceed the
// page limit leaves memory unchanged.
func (p *Paged) Write(addr uint64, data []byte) error {
	if _, err := p.check(addr, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	first, last := addr>>PageShift, (addr+uint64(len(data))-1)>>PageShift
	var missing int
	for idx := first; idx <= last; idx++ {
		if _, ok := p.pages[idx]; !ok {
			missing++
		}
	}
	if len(p.pages)+missing > p.maxPages {
		return ErrPageLimit
	}
	for done := 0; done < len(data); {
		a := addr + uint64(done)
		idx := a >> PageShift
		page, ok := p.pages[idx]
		if !ok {
			page = make([]byte, PageSize)
			p.pages[idx] = page
		}
		done += copy(page[pageOffset(a):], data[done:])
	}
	return nil
}

// PageCount returns the number of allocated pages.
func (p *Paged) PageCount() int {
	return len(p.pages)
}

// Reset drops every allocated page.
func (p *Paged) Reset() {
	p.pages = make(map[uint64][]byte)
}
