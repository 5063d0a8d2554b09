package riscv

import (
	"context"
	"errors"
	"testing"

	"github.com/harvey-emu/harvey/metrics"
)

func TestHart_TwoInstructionProgram(t *testing.T) {
	h, _ := newTestHart(t, HartConfig{},
		EncodeI(OpImm, 1, 0, 0, 5),    // addi x1, x0, 5
		EncodeR(OpReg, 2, 0, 2, 1, 0), // add x2, x2, x1
	)
	for i := 0; i < 2; i++ {
		if err := h.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if h.Reg(2) != 5 || h.PC() != 8 {
		t.Fatalf("x2/pc = %d/%d, want 5/8", h.Reg(2), h.PC())
	}
	if h.Steps() != 2 || h.Status() != Runnable {
		t.Fatalf("steps/status = %d/%v", h.Steps(), h.Status())
	}
}

func TestHart_ZeroRegisterStaysZero(t *testing.T) {
	var init Registers
	init[0] = 99 // ignored
	h, _ := newTestHart(t, HartConfig{Registers: init},
		EncodeI(OpImm, 0, 0, 0, 5),      // addi x0, x0, 5
		EncodeU(OpLUI, 0, 0x12345000),   // lui x0, 0x12345
		EncodeJ(OpJAL, 0, 4),            // jal x0, 4
		EncodeI(OpLoad, 0, 3, 0, 0x100), // ld x0, 0x100(x0)
		EncodeR(OpReg, 1, 0, 0, 0, 0),   // add x1, x0, x0
	)
	if h.Reg(0) != 0 {
		t.Fatalf("x0 after construction = %d", h.Reg(0))
	}
	for i := 0; i < 5; i++ {
		if err := h.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if h.Reg(0) != 0 || h.Registers()[0] != 0 {
			t.Fatalf("x0 = %d after step %d", h.Reg(0), i)
		}
	}
	if h.Reg(1) != 0 {
		t.Fatalf("x1 = %d, want 0", h.Reg(1))
	}
}

func TestHart_JALRToZeroThenFetchFault(t *testing.T) {
	// The bus here starts at 0x1000, so the jump target 0 is unmapped.
	bus := &offsetBus{base: 0x1000, testBus: newTestBus(64)}
	copy(bus.data, Assemble(EncodeI(OpJALR, 1, 0, 0, 0)))
	h := NewHart(bus, HartConfig{Entry: 0x1000, Metrics: metrics.NewRegistry()})

	if err := h.Step(); err != nil {
		t.Fatalf("jalr: %v", err)
	}
	if h.PC() != 0 || h.Reg(1) != 0x1004 {
		t.Fatalf("pc/ra = 0x%x/0x%x, want 0/0x1004", h.PC(), h.Reg(1))
	}

	err := h.Step()
	if !errors.Is(err, ErrFetchFault) {
		t.Fatalf("err = %v, want ErrFetchFault", err)
	}
	var exc *Exception
	if !errors.As(err, &exc) || exc.Kind != FetchFault || exc.PC != 0 {
		t.Fatalf("exception = %+v", exc)
	}
	if h.Status() != Trapped {
		t.Fatalf("status = %v, want trapped", h.Status())
	}
}

func TestHart_IllegalLeavesStateUnchanged(t *testing.T) {
	h, _ := newTestHart(t, HartConfig{Registers: regs(1, 11, 2, 22)},
		EncodeI(OpImm, 3, 0, 0, 1),
		Word(0x0000007F),
	)
	if err := h.Step(); err != nil {
		t.Fatal(err)
	}
	before := h.Registers()

	err := h.Step()
	if !errors.Is(err, ErrIllegalInstruction) {
		t.Fatalf("err = %v, want ErrIllegalInstruction", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Word != 0x7F {
		t.Fatalf("err does not carry the decode error: %v", err)
	}
	if h.Registers() != before || h.PC() != 4 {
		t.Fatalf("state changed after illegal instruction")
	}
	if exc := h.Exception(); exc.Kind != IllegalInstruction || exc.Word != 0x7F || exc.PC != 4 {
		t.Fatalf("exception = %+v", exc)
	}
}

func TestHart_TrappedRepeatsException(t *testing.T) {
	h, _ := newTestHart(t, HartConfig{}, Word(0))
	first := h.Step()
	if first == nil {
		t.Fatal("expected trap")
	}
	for i := 0; i < 3; i++ {
		if err := h.Step(); err != first {
			t.Fatalf("repeat %d: err = %v, want %v", i, err, first)
		}
	}
	if h.Steps() != 0 {
		t.Fatalf("steps = %d, want 0", h.Steps())
	}
}

func TestHart_MisalignedPC(t *testing.T) {
	h, _ := newTestHart(t, HartConfig{Entry: 2}, EncodeI(OpImm, 0, 0, 0, 0))
	err := h.Step()
	if !errors.Is(err, ErrInstructionMisaligned) {
		t.Fatalf("err = %v, want ErrInstructionMisaligned", err)
	}
	if h.Exception().Addr != 2 {
		t.Fatalf("Addr = %d, want 2", h.Exception().Addr)
	}
}

func TestHart_InertInstructions(t *testing.T) {
	reg := metrics.NewRegistry()
	h, _ := newTestHart(t, HartConfig{Metrics: reg, Registers: regs(1, 3)},
		Word(0x0FF0000F), // fence
		Word(0x00000073), // ecall
		Word(0x00100073), // ebreak
	)
	for i := 0; i < 3; i++ {
		if err := h.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if h.PC() != 12 || h.Reg(1) != 3 {
		t.Fatalf("pc/x1 = %d/%d, want 12/3", h.PC(), h.Reg(1))
	}
	if got := reg.Counter(metrics.HartInert).Value(); got != 3 {
		t.Fatalf("%s = %d, want 3", metrics.HartInert, got)
	}
}

func TestHart_Metrics(t *testing.T) {
	reg := metrics.NewRegistry()
	h, _ := newTestHart(t, HartConfig{Metrics: reg},
		EncodeI(OpImm, 1, 0, 0, 1),
		EncodeJ(OpJAL, 0, 8),
		Word(0),
		Word(0),
	)
	h.Step()
	h.Step()
	h.Step()

	checks := map[string]uint64{
		metrics.HartSteps:     2,
		metrics.HartRedirects: 1,
		metrics.HartTraps:     1,
	}
	for name, want := range checks {
		if got := reg.Counter(name).Value(); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
	if got := reg.Gauge(metrics.HartPC).Value(); got != 12 {
		t.Errorf("%s = %d, want 12", metrics.HartPC, got)
	}
}

// redirectInPlace reports CounterUpdated without staging a target.
type redirectInPlace struct{ Executor }

func (redirectInPlace) ProcessU(*State, UFormat) (CounterState, error) {
	return CounterUpdated, nil
}

func TestHart_CounterUpdatedWithoutTargetKeepsPC(t *testing.T) {
	h, _ := newTestHart(t, HartConfig{Processor: &redirectInPlace{}}, EncodeU(OpLUI, 1, 0x1000))
	if err := h.Step(); err != nil {
		t.Fatal(err)
	}
	if h.PC() != 0 || h.Reg(1) != 0 {
		t.Fatalf("pc/x1 = %d/%d, want 0/0", h.PC(), h.Reg(1))
	}
}

type recordingTracer struct{ steps []TraceStep }

func (r *recordingTracer) RecordStep(s TraceStep) { r.steps = append(r.steps, s) }

func TestHart_Tracer(t *testing.T) {
	tr := &recordingTracer{}
	h, _ := newTestHart(t, HartConfig{Tracer: tr, Registers: regs(1, 0x200)},
		EncodeI(OpImm, 2, 0, 0, 7),
		EncodeS(OpStore, 2, 1, 2, 0),
		Word(0x7F),
	)
	h.Step()
	h.Step()
	h.Step()

	if len(tr.steps) != 2 {
		t.Fatalf("recorded %d steps, want 2 (trap not recorded)", len(tr.steps))
	}
	first := tr.steps[0]
	if first.PC != 0 || first.RegsBefore[2] != 0 || first.RegsAfter[2] != 7 {
		t.Errorf("first step = %+v", first)
	}
	ops := tr.steps[1].MemOps
	if len(ops) != 1 || !ops[0].IsWrite || ops[0].Addr != 0x200 || ops[0].Size != 4 || ops[0].Value != 7 {
		t.Errorf("store ops = %+v", ops)
	}
}

func TestHart_RunHalts(t *testing.T) {
	h, _ := newTestHart(t, HartConfig{},
		EncodeI(OpImm, 1, 0, 1, 1),
		EncodeI(OpImm, 1, 0, 1, 1),
		EncodeI(OpImm, 1, 0, 1, 1),
	)
	n, err := h.Run(context.Background(), 0, func(pc uint64) bool { return pc >= 12 })
	if err != nil || n != 3 {
		t.Fatalf("Run = %d, %v; want 3, nil", n, err)
	}
	if h.Reg(1) != 3 {
		t.Fatalf("x1 = %d, want 3", h.Reg(1))
	}
}

func TestHart_RunStepLimit(t *testing.T) {
	h, _ := newTestHart(t, HartConfig{}, EncodeJ(OpJAL, 0, 0)) // j .
	n, err := h.Run(context.Background(), 100, nil)
	if !errors.Is(err, ErrStepLimit) || n != 100 {
		t.Fatalf("Run = %d, %v; want 100, ErrStepLimit", n, err)
	}
}

func TestHart_RunStopsOnTrap(t *testing.T) {
	h, _ := newTestHart(t, HartConfig{}, EncodeI(OpImm, 1, 0, 0, 1), Word(0x7F))
	n, err := h.Run(context.Background(), 0, nil)
	if !errors.Is(err, ErrIllegalInstruction) || n != 1 {
		t.Fatalf("Run = %d, %v; want 1, illegal instruction", n, err)
	}
}

func TestHart_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h, _ := newTestHart(t, HartConfig{}, EncodeJ(OpJAL, 0, 0))
	n, err := h.Run(ctx, 0, nil)
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Fatalf("Run = %d, %v; want 0, context.Canceled", n, err)
	}
}

func TestException_Error(t *testing.T) {
	exc := &Exception{Kind: FetchFault, PC: 0x10, Err: errUnmapped}
	want := "fetch-fault at pc=0x0000000000000010: unmapped"
	if exc.Error() != want {
		t.Fatalf("Error = %q, want %q", exc.Error(), want)
	}
	if !errors.Is(exc, ErrFetchFault) || !errors.Is(exc, errUnmapped) {
		t.Fatal("exception does not unwrap to kind and cause")
	}
	if ExceptionKind(99).String() != "exception(99)" {
		t.Fatalf("unknown kind = %s", ExceptionKind(99))
	}
}

// offsetBus maps a testBus at base.
type offsetBus struct {
	base uint64
	*testBus
}

func (b *offsetBus) Read(addr uint64, n int) ([]byte, error) {
	if addr < b.base {
		return nil, errUnmapped
	}
	return b.testBus.Read(addr-b.base, n)
}

func (b *offsetBus) Write(addr uint64, data []byte) error {
	if addr < b.base {
		return errUnmapped
	}
	return b.testBus.Write(addr-b.base, data)
}
