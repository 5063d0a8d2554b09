package riscv

// RegCount is the number of general-purpose integer registers.
const RegCount = 32

// InstructionSize is the width of every supported encoding in bytes. Control
// transfer targets must be aligned to it.
const InstructionSize = 4

// Bus is the memory collaborator the hart fetches from, loads from and
// stores to. Implementations must reject a whole access that does not fit
// rather than clamp it.
type Bus interface {
	Read(addr uint64, n int) ([]byte, error)
	Write(addr uint64, data []byte) error
}

// Registers is the integer register file. Index 0 is hardwired to zero at
// read time; writes to it are kept but never observable.
type Registers [RegCount]uint64

// Get returns register i, or 0 for x0.
func (r *Registers) Get(i uint32) uint64 {
	i &= RegCount - 1
	if i == 0 {
		return 0
	}
	return r[i]
}

// Set writes register i.
func (r *Registers) Set(i uint32, v uint64) {
	r[i&(RegCount-1)] = v
}

// Snapshot returns a copy of the file as seen through Get.
func (r *Registers) Snapshot() [RegCount]uint64 {
	out := [RegCount]uint64(*r)
	out[0] = 0
	return out
}

// CounterState tells the engine whether the operation just executed moved
// the program counter itself.
type CounterState uint8

const (
	// CounterNotUpdated asks the engine to advance the PC by 4.
	CounterNotUpdated CounterState = iota
	// CounterUpdated means the operation set the PC explicitly.
	CounterUpdated
)

// Processor executes decoded instructions, one method per format. Each
// method reads operands from s, stages its results on s and reports whether
// it redirected the program counter.
type Processor interface {
	ProcessR(s *State, in RFormat) (CounterState, error)
	ProcessI(s *State, in IFormat) (CounterState, error)
	ProcessS(s *State, in SFormat) (CounterState, error)
	ProcessB(s *State, in BFormat) (CounterState, error)
	ProcessU(s *State, in UFormat) (CounterState, error)
	ProcessJ(s *State, in JFormat) (CounterState, error)
}

// MemOp records a single data access made while executing an instruction.
type MemOp struct {
	Addr    uint64
	Size    uint8
	Value   uint64
	IsWrite bool
}

// State is the hart state visible to a Processor for the duration of one
// step. Register and PC writes are staged and only committed by the engine
// once the processor returns without error.
type State struct {
	regs *Registers
	pc   uint64
	bus  Bus

	rd     uint32
	rdVal  uint64
	rdSet  bool
	next   uint64
	jumped bool
	memOps []MemOp
}

func newState(regs *Registers, pc uint64, bus Bus) *State {
	return &State{regs: regs, pc: pc, bus: bus}
}

// Reg returns the committed value of register i.
func (s *State) Reg(i uint32) uint64 { return s.regs.Get(i) }

// SetReg stages a write of v to register i. A later call replaces it.
func (s *State) SetReg(i uint32, v uint64) {
	s.rd, s.rdVal, s.rdSet = i, v, true
}

// PC returns the address of the instruction being executed.
func (s *State) PC() uint64 { return s.pc }

// SetPC stages an explicit program counter redirect.
func (s *State) SetPC(target uint64) {
	s.next, s.jumped = target, true
}

// Load reads n bytes from the bus and records the access.
func (s *State) Load(addr uint64, n int) ([]byte, error) {
	b, err := s.bus.Read(addr, n)
	if err != nil {
		return nil, err
	}
	s.memOps = append(s.memOps, MemOp{Addr: addr, Size: uint8(n), Value: leUint(b)})
	return b, nil
}

// Store writes data to the bus and records the access. It is the only side
// effect a processor performs before returning.
func (s *State) Store(addr uint64, data []byte) error {
	if err := s.bus.Write(addr, data); err != nil {
		return err
	}
	s.memOps = append(s.memOps, MemOp{Addr: addr, Size: uint8(len(data)), Value: leUint(data), IsWrite: true})
	return nil
}

// MemOps returns the data accesses recorded so far.
func (s *State) MemOps() []MemOp { return s.memOps }

// commit applies the staged register write and reports the next PC.
func (s *State) commit(cs CounterState) uint64 {
	if s.rdSet {
		s.regs.Set(s.rd, s.rdVal)
	}
	if cs == CounterUpdated {
		if s.jumped {
			return s.next
		}
		return s.pc
	}
	return s.pc + InstructionSize
}

// leUint assembles up to eight little-endian bytes.
func leUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
