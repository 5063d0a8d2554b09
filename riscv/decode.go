package riscv

import (
	"errors"
	"fmt"
)

// Base opcodes (bits 6:0) recognised by the classifier.
const (
	OpLoad    uint32 = 0x03
	OpMiscMem uint32 = 0x0F
	OpImm     uint32 = 0x13
	OpAUIPC   uint32 = 0x17
	OpImm32   uint32 = 0x1B
	OpStore   uint32 = 0x23
	OpReg     uint32 = 0x33
	OpLUI     uint32 = 0x37
	OpReg32   uint32 = 0x3B
	OpBranch  uint32 = 0x63
	OpJALR    uint32 = 0x67
	OpJAL     uint32 = 0x6F
	OpSystem  uint32 = 0x73
)

// ErrIllegalInstruction is returned for encodings outside the decode table.
var ErrIllegalInstruction = errors.New("riscv: illegal instruction")

// DecodeError reports a word the classifier does not recognise.
type DecodeError struct {
	Word Word
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: word=%v opcode=0x%02x funct3=%d",
		ErrIllegalInstruction, e.Word, e.Word.Opcode(), e.Word.Funct3())
}

func (e *DecodeError) Unwrap() error { return ErrIllegalInstruction }

// Instruction is a decoded instruction: exactly one of RFormat, IFormat,
// SFormat, BFormat, UFormat, JFormat or Inert.
type Instruction interface {
	// Format reports the active variant.
	Format() Format
	// Dispatch routes the instruction to the matching Processor method.
	Dispatch(p Processor, s *State) (CounterState, error)

	sealed()
}

// Inert is a recognised encoding that executes as a no-op (FENCE, FENCE.I,
// ECALL, EBREAK and the CSR instructions).
type Inert struct {
	Word Word
}

func (RFormat) Format() Format { return FormatR }
func (IFormat) Format() Format { return FormatI }
func (SFormat) Format() Format { return FormatS }
func (BFormat) Format() Format { return FormatB }
func (UFormat) Format() Format { return FormatU }
func (JFormat) Format() Format { return FormatJ }
func (Inert) Format() Format   { return FormatInert }

func (in RFormat) Dispatch(p Processor, s *State) (CounterState, error) { return p.ProcessR(s, in) }
func (in IFormat) Dispatch(p Processor, s *State) (CounterState, error) { return p.ProcessI(s, in) }
func (in SFormat) Dispatch(p Processor, s *State) (CounterState, error) { return p.ProcessS(s, in) }
func (in BFormat) Dispatch(p Processor, s *State) (CounterState, error) { return p.ProcessB(s, in) }
func (in UFormat) Dispatch(p Processor, s *State) (CounterState, error) { return p.ProcessU(s, in) }
func (in JFormat) Dispatch(p Processor, s *State) (CounterState, error) { return p.ProcessJ(s, in) }

// Dispatch on an inert instruction never reaches the processor.
func (Inert) Dispatch(Processor, *State) (CounterState, error) { return CounterNotUpdated, nil }

func (RFormat) sealed() {}
func (IFormat) sealed() {}
func (SFormat) sealed() {}
func (BFormat) sealed() {}
func (UFormat) sealed() {}
func (JFormat) sealed() {}
func (Inert) sealed()   {}

// Decode classifies w by opcode and, where an opcode is shared by several
// operations, by funct3. It never panics; unknown encodings return a
// *DecodeError.
func Decode(w Word) (Instruction, error) {
	funct3 := w.Funct3()

	switch w.Opcode() {
	case OpLUI, OpAUIPC:
		return DecodeU(w), nil
	case OpJAL:
		return DecodeJ(w), nil
	case OpJALR:
		if funct3 == 0 {
			return DecodeI(w), nil
		}
	case OpBranch:
		if funct3 != 2 && funct3 != 3 {
			return DecodeB(w), nil
		}
	case OpLoad: // LB LH LW LD LBU LHU LWU
		if funct3 != 7 {
			return DecodeI(w), nil
		}
	case OpStore: // SB SH SW SD
		if funct3 <= 3 {
			return DecodeS(w), nil
		}
	case OpImm:
		if funct3 == 1 || funct3 == 5 { // SLLI, SRLI/SRAI
			return DecodeS(w), nil
		}
		return DecodeI(w), nil // ADDI SLTI SLTIU XORI ORI ANDI
	case OpImm32:
		switch funct3 {
		case 0: // ADDIW
			return DecodeI(w), nil
		case 1, 5: // SLLIW, SRLIW/SRAIW
			return DecodeS(w), nil
		}
	case OpReg:
		return DecodeR(w), nil
	case OpReg32:
		if funct3 != 2 && funct3 != 3 {
			return DecodeR(w), nil
		}
	case OpMiscMem, OpSystem:
		return Inert{Word: w}, nil
	}
	return nil, &DecodeError{Word: w}
}
