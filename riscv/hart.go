// Package riscv implements a single RV64IM hardware thread: the instruction
// word codec, the format classifier, the per-format operation processor and
// the fetch/decode/dispatch/advance engine.
//
// A Hart owns its register file and program counter for its whole lifetime.
// The memory it fetches from is borrowed through the Bus interface. Step is
// synchronous and always terminates; the caller decides how often to call it.
package riscv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/harvey-emu/harvey/log"
	"github.com/harvey-emu/harvey/metrics"
)

// ErrStepLimit is returned by Run when the step budget is exhausted.
var ErrStepLimit = errors.New("riscv: step limit reached")

// Status is the execution state of a hart.
type Status uint8

const (
	// Runnable harts advance on every successful step.
	Runnable Status = iota
	// Trapped harts have raised an exception and no longer advance.
	Trapped
)

func (s Status) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Trapped:
		return "trapped"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// TraceStep describes one successfully executed instruction.
type TraceStep struct {
	PC         uint64
	Word       Word
	RegsBefore [RegCount]uint64
	RegsAfter  [RegCount]uint64
	MemOps     []MemOp
}

// Tracer receives every successfully executed step.
type Tracer interface {
	RecordStep(step TraceStep)
}

// HartConfig holds the construction parameters of a hart.
type HartConfig struct {
	// Entry is the initial program counter.
	Entry uint64
	// Registers is the initial register file. x0 is ignored.
	Registers Registers
	// Processor executes decoded instructions. Defaults to an Executor.
	Processor Processor
	// StrictAlignment is applied to the default Executor.
	StrictAlignment bool
	// Tracer, when set, records every step.
	Tracer Tracer
	// Logger defaults to the "hart" module of the default logger.
	Logger *log.Logger
	// Metrics defaults to metrics.DefaultRegistry.
	Metrics *metrics.Registry
}

// Hart is one RISC-V hardware thread.
type Hart struct {
	regs   Registers
	pc     uint64
	bus    Bus
	proc   Processor
	status Status
	exc    *Exception
	steps  uint64

	tracer Tracer
	log    *log.Logger

	stepsRetired *metrics.Counter
	traps        *metrics.Counter
	redirects    *metrics.Counter
	inert        *metrics.Counter
	pcGauge      *metrics.Gauge
	runTime      *metrics.Histogram
}

// NewHart creates a runnable hart fetching from bus.
func NewHart(bus Bus, cfg HartConfig) *Hart {
	proc := cfg.Processor
	if proc == nil {
		proc = &Executor{StrictAlignment: cfg.StrictAlignment}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default().Module("hart")
	}
	reg := cfg.Metrics
	if reg == nil {
		reg = metrics.DefaultRegistry
	}
	h := &Hart{
		regs:         cfg.Registers,
		pc:           cfg.Entry,
		bus:          bus,
		proc:         proc,
		tracer:       cfg.Tracer,
		log:          logger,
		stepsRetired: reg.Counter(metrics.HartSteps),
		traps:        reg.Counter(metrics.HartTraps),
		redirects:    reg.Counter(metrics.HartRedirects),
		inert:        reg.Counter(metrics.HartInert),
		pcGauge:      reg.Gauge(metrics.HartPC),
		runTime:      reg.Histogram(metrics.HartRunTime),
	}
	h.regs[0] = 0
	return h
}

// PC returns the current program counter.
func (h *Hart) PC() uint64 { return h.pc }

// Reg returns the value of register i. x0 always reads 0.
func (h *Hart) Reg(i uint32) uint64 { return h.regs.Get(i) }

// Registers returns a copy of the register file.
func (h *Hart) Registers() [RegCount]uint64 { return h.regs.Snapshot() }

// Status reports whether the hart is runnable or trapped.
func (h *Hart) Status() Status { return h.status }

// Steps returns the number of instructions retired.
func (h *Hart) Steps() uint64 { return h.steps }

// Exception returns the fault that trapped the hart, or nil.
func (h *Hart) Exception() *Exception { return h.exc }

// Step performs one fetch, decode, dispatch and advance cycle. On failure
// the hart becomes Trapped, no register or PC change from the step is
// visible, and the returned error is an *Exception. Stepping a trapped hart
// returns the same exception again.
func (h *Hart) Step() error {
	if h.status == Trapped {
		return h.exc
	}
	pc := h.pc
	if pc%InstructionSize != 0 {
		return h.trap(&Exception{Kind: InstructionMisaligned, PC: pc, Addr: pc})
	}

	raw, err := h.bus.Read(pc, InstructionSize)
	if err == nil && len(raw) < InstructionSize {
		err = fmt.Errorf("short read of %d bytes", len(raw))
	}
	if err != nil {
		return h.trap(&Exception{Kind: FetchFault, PC: pc, Addr: pc, Err: err})
	}
	word := Word(binary.LittleEndian.Uint32(raw))

	in, err := Decode(word)
	if err != nil {
		return h.trap(&Exception{Kind: IllegalInstruction, PC: pc, Word: word, Err: err})
	}

	h.regs[0] = 0
	var before [RegCount]uint64
	if h.tracer != nil {
		before = h.regs.Snapshot()
	}

	st := newState(&h.regs, pc, h.bus)
	cs, err := in.Dispatch(h.proc, st)
	if err != nil {
		exc := &Exception{Kind: kindOf(err), PC: pc, Word: word, Err: err}
		var ae *AccessError
		if errors.As(err, &ae) {
			exc.Addr = ae.Addr
		}
		return h.trap(exc)
	}
	h.pc = st.commit(cs)
	h.steps++
	if h.log.DebugEnabled() {
		h.log.Debug("step", log.Hex("pc", pc), "word", word.String(), log.Hex("next", h.pc))
	}

	h.stepsRetired.Inc()
	h.pcGauge.Set(h.pc)
	switch {
	case in.Format() == FormatInert:
		h.inert.Inc()
	case cs == CounterUpdated:
		h.redirects.Inc()
	}

	if h.tracer != nil {
		h.tracer.RecordStep(TraceStep{
			PC:         pc,
			Word:       word,
			RegsBefore: before,
			RegsAfter:  h.regs.Snapshot(),
			MemOps:     st.MemOps(),
		})
	}
	return nil
}

func (h *Hart) trap(exc *Exception) error {
	h.status = Trapped
	h.exc = exc
	h.traps.Inc()
	h.log.Warn("hart trapped",
		"kind", exc.Kind.String(),
		log.Hex("pc", exc.PC),
		"word", exc.Word.String(),
		"err", exc.Err,
	)
	return exc
}

// ctxCheckInterval is how many steps Run executes between context checks.
const ctxCheckInterval = 1024

// Run steps the hart until halt reports true for the current PC, the hart
// traps, limit steps have run (ErrStepLimit; 0 means no limit) or ctx is
// done. It returns the number of steps executed.
func (h *Hart) Run(ctx context.Context, limit uint64, halt func(pc uint64) bool) (uint64, error) {
	timer := metrics.NewTimer(h.runTime)
	defer timer.Stop()

	h.log.Debug("run started", log.Hex("pc", h.pc), "limit", limit)
	var n uint64
	for {
		if halt != nil && halt(h.pc) {
			h.log.Debug("run halted", log.Hex("pc", h.pc), "steps", n)
			return n, nil
		}
		if limit > 0 && n >= limit {
			return n, ErrStepLimit
		}
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		if err := h.Step(); err != nil {
			return n, err
		}
		n++
	}
}
