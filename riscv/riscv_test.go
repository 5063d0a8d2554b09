package riscv

import (
	"errors"
	"fmt"
	"testing"

	"github.com/harvey-emu/harvey/log"
	"github.com/harvey-emu/harvey/metrics"
)

var errUnmapped = errors.New("unmapped")

// testBus is flat memory starting at address 0.
type testBus struct {
	data   []byte
	writes int
}

func newTestBus(size int) *testBus { return &testBus{data: make([]byte, size)} }

func (b *testBus) Read(addr uint64, n int) ([]byte, error) {
	if addr > uint64(len(b.data)) || uint64(n) > uint64(len(b.data))-addr {
		return nil, fmt.Errorf("%w: 0x%x", errUnmapped, addr)
	}
	return append([]byte(nil), b.data[addr:addr+uint64(n)]...), nil
}

func (b *testBus) Write(addr uint64, data []byte) error {
	if addr > uint64(len(b.data)) || uint64(len(data)) > uint64(len(b.data))-addr {
		return fmt.Errorf("%w: 0x%x", errUnmapped, addr)
	}
	copy(b.data[addr:], data)
	b.writes++
	return nil
}

// newTestHart loads prog at address 0 of a 4 KiB bus.
func newTestHart(t *testing.T, cfg HartConfig, prog ...Word) (*Hart, *testBus) {
	t.Helper()
	bus := newTestBus(4096)
	copy(bus.data, Assemble(prog...))
	if cfg.Logger == nil {
		cfg.Logger = log.Default().Module("test")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewRegistry()
	}
	return NewHart(bus, cfg), bus
}

// exec runs a single instruction against regs and returns the updated hart.
func exec(t *testing.T, w Word, regs Registers) *Hart {
	t.Helper()
	h, _ := newTestHart(t, HartConfig{Registers: regs}, w)
	if err := h.Step(); err != nil {
		t.Fatalf("Step(%v): %v", w, err)
	}
	return h
}
