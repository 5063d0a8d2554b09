// executor.go implements the RV64IM operation semantics behind the
// Processor interface. Every method checks its fault conditions before
// staging results; a store's bus write is the only side effect and comes
// last.
package riscv

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// Executor is the RV64I base integer processor with the M extension.
type Executor struct {
	// StrictAlignment makes loads and stores that are not naturally aligned
	// raise a misaligned fault instead of being performed.
	StrictAlignment bool
}

var _ Processor = (*Executor)(nil)

func illegal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalInstruction, fmt.Sprintf(format, args...))
}

// sext32 sign-extends a 32-bit result to XLEN.
func sext32(v uint32) uint64 { return uint64(int64(int32(v))) }

// offset sign-extends an immediate to XLEN for address arithmetic.
func offset(imm int32) uint64 { return uint64(int64(imm)) }

func checkTarget(target uint64) error {
	if target%InstructionSize != 0 {
		return &AccessError{Kind: ErrInstructionMisaligned, Addr: target}
	}
	return nil
}

// ProcessR executes OP and OP-32 register/register operations.
func (x *Executor) ProcessR(s *State, in RFormat) (CounterState, error) {
	a, b := s.Reg(in.Rs1), s.Reg(in.Rs2)

	var (
		v   uint64
		err error
	)
	switch in.Opcode {
	case OpReg:
		v, err = execReg(in, a, b)
	case OpReg32:
		v, err = execReg32(in, a, b)
	default:
		err = illegal("R-format opcode=0x%02x", in.Opcode)
	}
	if err != nil {
		return CounterNotUpdated, err
	}
	s.SetReg(in.Rd, v)
	return CounterNotUpdated, nil
}

func execReg(in RFormat, a, b uint64) (uint64, error) {
	switch in.Funct7 {
	case 0x00:
		switch in.Funct3 {
		case 0: // ADD
			return a + b, nil
		case 1: // SLL
			return a << (b & 0x3F), nil
		case 2: // SLT
			return boolToReg(int64(a) < int64(b)), nil
		case 3: // SLTU
			return boolToReg(a < b), nil
		case 4: // XOR
			return a ^ b, nil
		case 5: // SRL
			return a >> (b & 0x3F), nil
		case 6: // OR
			return a | b, nil
		case 7: // AND
			return a & b, nil
		}
	case 0x20:
		switch in.Funct3 {
		case 0: // SUB
			return a - b, nil
		case 5: // SRA
			return uint64(int64(a) >> (b & 0x3F)), nil
		}
	case 0x01:
		return execMExt(in.Funct3, a, b), nil
	}
	return 0, illegal("op funct3=%d funct7=0x%02x", in.Funct3, in.Funct7)
}

// execMExt handles MUL/MULH/MULHSU/MULHU/DIV/DIVU/REM/REMU.
func execMExt(funct3 uint32, a, b uint64) uint64 {
	switch funct3 {
	case 0: // MUL
		return a * b
	case 1: // MULH
		return mulHigh(a, b, true, true)
	case 2: // MULHSU
		return mulHigh(a, b, true, false)
	case 3: // MULHU
		return mulHigh(a, b, false, false)
	case 4: // DIV
		switch {
		case b == 0:
			return math.MaxUint64
		case int64(a) == math.MinInt64 && int64(b) == -1:
			return a
		}
		return uint64(int64(a) / int64(b))
	case 5: // DIVU
		if b == 0 {
			return math.MaxUint64
		}
		return a / b
	case 6: // REM
		switch {
		case b == 0:
			return a
		case int64(a) == math.MinInt64 && int64(b) == -1:
			return 0
		}
		return uint64(int64(a) % int64(b))
	default: // REMU
		if b == 0 {
			return a
		}
		return a % b
	}
}

// mulHigh returns bits 127:64 of the 128-bit product a*b, treating each
// operand as signed or unsigned.
func mulHigh(a, b uint64, signedA, signedB bool) uint64 {
	x, y := widen(a, signedA), widen(b, signedB)
	p := new(uint256.Int).Mul(x, y)
	return p.Rsh(p, 64).Uint64()
}

var signByte = uint256.NewInt(7)

func widen(v uint64, signed bool) *uint256.Int {
	x := uint256.NewInt(v)
	if signed {
		x.ExtendSign(x, signByte)
	}
	return x
}

func execReg32(in RFormat, a, b uint64) (uint64, error) {
	a32, b32 := uint32(a), uint32(b)
	switch in.Funct7 {
	case 0x00:
		switch in.Funct3 {
		case 0: // ADDW
			return sext32(a32 + b32), nil
		case 1: // SLLW
			return sext32(a32 << (b32 & 0x1F)), nil
		case 5: // SRLW
			return sext32(a32 >> (b32 & 0x1F)), nil
		}
	case 0x20:
		switch in.Funct3 {
		case 0: // SUBW
			return sext32(a32 - b32), nil
		case 5: // SRAW
			return sext32(uint32(int32(a32) >> (b32 & 0x1F))), nil
		}
	case 0x01:
		switch in.Funct3 {
		case 0: // MULW
			return sext32(a32 * b32), nil
		case 4: // DIVW
			switch {
			case b32 == 0:
				return math.MaxUint64, nil
			case int32(a32) == math.MinInt32 && int32(b32) == -1:
				return sext32(a32), nil
			}
			return sext32(uint32(int32(a32) / int32(b32))), nil
		case 5: // DIVUW
			if b32 == 0 {
				return math.MaxUint64, nil
			}
			return sext32(a32 / b32), nil
		case 6: // REMW
			switch {
			case b32 == 0:
				return sext32(a32), nil
			case int32(a32) == math.MinInt32 && int32(b32) == -1:
				return 0, nil
			}
			return sext32(uint32(int32(a32) % int32(b32))), nil
		case 7: // REMUW
			if b32 == 0 {
				return sext32(a32), nil
			}
			return sext32(a32 % b32), nil
		}
	}
	return 0, illegal("op-32 funct3=%d funct7=0x%02x", in.Funct3, in.Funct7)
}

// ProcessI executes immediate arithmetic, loads and JALR.
func (x *Executor) ProcessI(s *State, in IFormat) (CounterState, error) {
	switch in.Opcode {
	case OpImm:
		if in.Funct3 == 1 || in.Funct3 == 5 {
			return x.shiftImm(s, in.Shift())
		}
		a, imm := s.Reg(in.Rs1), offset(in.Imm)
		var v uint64
		switch in.Funct3 {
		case 0: // ADDI
			v = a + imm
		case 2: // SLTI
			v = boolToReg(int64(a) < int64(imm))
		case 3: // SLTIU
			v = boolToReg(a < imm)
		case 4: // XORI
			v = a ^ imm
		case 6: // ORI
			v = a | imm
		case 7: // ANDI
			v = a & imm
		}
		s.SetReg(in.Rd, v)
		return CounterNotUpdated, nil

	case OpImm32:
		if in.Funct3 != 0 {
			return x.shiftImm(s, in.Shift())
		}
		s.SetReg(in.Rd, sext32(uint32(s.Reg(in.Rs1))+uint32(in.Imm))) // ADDIW
		return CounterNotUpdated, nil

	case OpLoad:
		return x.load(s, in)

	case OpJALR:
		target := (s.Reg(in.Rs1) + offset(in.Imm)) &^ 1
		if err := checkTarget(target); err != nil {
			return CounterNotUpdated, err
		}
		s.SetReg(in.Rd, s.PC()+InstructionSize)
		s.SetPC(target)
		return CounterUpdated, nil
	}
	return CounterNotUpdated, illegal("I-format opcode=0x%02x", in.Opcode)
}

// loadWidths maps a LOAD funct3 to access size and signedness.
var loadWidths = [...]struct {
	size   int
	signed bool
}{
	0: {1, true},  // LB
	1: {2, true},  // LH
	2: {4, true},  // LW
	3: {8, false}, // LD
	4: {1, false}, // LBU
	5: {2, false}, // LHU
	6: {4, false}, // LWU
}

func (x *Executor) load(s *State, in IFormat) (CounterState, error) {
	if int(in.Funct3) >= len(loadWidths) {
		return CounterNotUpdated, illegal("load funct3=%d", in.Funct3)
	}
	w := loadWidths[in.Funct3]
	addr := s.Reg(in.Rs1) + offset(in.Imm)
	if x.StrictAlignment && addr%uint64(w.size) != 0 {
		return CounterNotUpdated, &AccessError{Kind: ErrLoadMisaligned, Addr: addr}
	}
	b, err := s.Load(addr, w.size)
	if err != nil {
		return CounterNotUpdated, &AccessError{Kind: ErrLoadAccessFault, Addr: addr, Err: err}
	}
	v := leUint(b)
	if w.signed {
		shift := 64 - 8*uint(w.size)
		v = uint64(int64(v<<shift) >> shift)
	}
	s.SetReg(in.Rd, v)
	return CounterNotUpdated, nil
}

// ProcessS executes stores and the shift-immediate instructions that share
// the S field layout.
func (x *Executor) ProcessS(s *State, in SFormat) (CounterState, error) {
	switch in.Opcode {
	case OpStore:
		return x.store(s, in)
	case OpImm, OpImm32:
		return x.shiftImm(s, in.immediate().Shift())
	}
	return CounterNotUpdated, illegal("S-format opcode=0x%02x", in.Opcode)
}

func (x *Executor) store(s *State, in SFormat) (CounterState, error) {
	if in.Funct3 > 3 {
		return CounterNotUpdated, illegal("store funct3=%d", in.Funct3)
	}
	size := 1 << in.Funct3 // SB SH SW SD
	addr := s.Reg(in.Rs1) + offset(in.Imm)
	if x.StrictAlignment && addr%uint64(size) != 0 {
		return CounterNotUpdated, &AccessError{Kind: ErrStoreMisaligned, Addr: addr}
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], s.Reg(in.Rs2))
	if err := s.Store(addr, buf[:size]); err != nil {
		return CounterNotUpdated, &AccessError{Kind: ErrStoreAccessFault, Addr: addr, Err: err}
	}
	return CounterNotUpdated, nil
}

// shiftImm executes SLLI/SRLI/SRAI and their 32-bit W forms. On RV64 the
// low bit of funct7 is the sixth bit of the shift amount for the full-width
// shifts.
func (x *Executor) shiftImm(s *State, sh ShiftFormat) (CounterState, error) {
	a := s.Reg(sh.Rs1)
	var v uint64
	switch sh.Opcode {
	case OpImm:
		amount := sh.Shamt | (sh.Funct7&1)<<5
		switch funct6 := sh.Funct7 >> 1; {
		case sh.Funct3 == 1 && funct6 == 0x00: // SLLI
			v = a << amount
		case sh.Funct3 == 5 && funct6 == 0x00: // SRLI
			v = a >> amount
		case sh.Funct3 == 5 && funct6 == 0x10: // SRAI
			v = uint64(int64(a) >> amount)
		default:
			return CounterNotUpdated, illegal("shift funct3=%d funct7=0x%02x", sh.Funct3, sh.Funct7)
		}
	case OpImm32:
		a32 := uint32(a)
		switch {
		case sh.Funct3 == 1 && sh.Funct7 == 0x00: // SLLIW
			v = sext32(a32 << sh.Shamt)
		case sh.Funct3 == 5 && sh.Funct7 == 0x00: // SRLIW
			v = sext32(a32 >> sh.Shamt)
		case sh.Funct3 == 5 && sh.Funct7 == 0x20: // SRAIW
			v = sext32(uint32(int32(a32) >> sh.Shamt))
		default:
			return CounterNotUpdated, illegal("shift-w funct3=%d funct7=0x%02x", sh.Funct3, sh.Funct7)
		}
	default:
		return CounterNotUpdated, illegal("shift opcode=0x%02x", sh.Opcode)
	}
	s.SetReg(sh.Rd, v)
	return CounterNotUpdated, nil
}

// ProcessB executes conditional branches.
func (x *Executor) ProcessB(s *State, in BFormat) (CounterState, error) {
	if in.Opcode != OpBranch {
		return CounterNotUpdated, illegal("B-format opcode=0x%02x", in.Opcode)
	}
	a, b := s.Reg(in.Rs1), s.Reg(in.Rs2)
	var taken bool
	switch in.Funct3 {
	case 0: // BEQ
		taken = a == b
	case 1: // BNE
		taken = a != b
	case 4: // BLT
		taken = int64(a) < int64(b)
	case 5: // BGE
		taken = int64(a) >= int64(b)
	case 6: // BLTU
		taken = a < b
	case 7: // BGEU
		taken = a >= b
	default:
		return CounterNotUpdated, illegal("branch funct3=%d", in.Funct3)
	}
	if !taken {
		return CounterNotUpdated, nil
	}
	target := s.PC() + offset(in.Imm)
	if err := checkTarget(target); err != nil {
		return CounterNotUpdated, err
	}
	s.SetPC(target)
	return CounterUpdated, nil
}

// ProcessU executes LUI and AUIPC.
func (x *Executor) ProcessU(s *State, in UFormat) (CounterState, error) {
	switch in.Opcode {
	case OpLUI:
		s.SetReg(in.Rd, offset(in.Imm))
	case OpAUIPC:
		s.SetReg(in.Rd, s.PC()+offset(in.Imm))
	default:
		return CounterNotUpdated, illegal("U-format opcode=0x%02x", in.Opcode)
	}
	return CounterNotUpdated, nil
}

// ProcessJ executes JAL.
func (x *Executor) ProcessJ(s *State, in JFormat) (CounterState, error) {
	if in.Opcode != OpJAL {
		return CounterNotUpdated, illegal("J-format opcode=0x%02x", in.Opcode)
	}
	target := s.PC() + offset(in.Imm)
	if err := checkTarget(target); err != nil {
		return CounterNotUpdated, err
	}
	s.SetReg(in.Rd, s.PC()+InstructionSize)
	s.SetPC(target)
	return CounterUpdated, nil
}

func boolToReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
