// format.go contains the raw instruction word codec and the six base format
// extractors (R, I, S, B, U, J). Extractors are total: any 32-bit word yields
// a structurally valid record, validation is left to the classifier.
package riscv

import "fmt"

// Word is a raw 32-bit instruction as fetched from memory.
type Word uint32

// Opcode returns bits [6:0].
func (w Word) Opcode() uint32 { return uint32(w) & 0x7F }

// Funct3 returns the secondary opcode, bits [14:12].
func (w Word) Funct3() uint32 { return (uint32(w) >> 12) & 0x7 }

// Funct7 returns bits [31:25].
func (w Word) Funct7() uint32 { return uint32(w) >> 25 }

// Rd returns the destination register index, bits [11:7].
func (w Word) Rd() uint32 { return (uint32(w) >> 7) & 0x1F }

// Rs1 returns the first source register index, bits [19:15].
func (w Word) Rs1() uint32 { return (uint32(w) >> 15) & 0x1F }

// Rs2 returns the second source register index, bits [24:20].
func (w Word) Rs2() uint32 { return (uint32(w) >> 20) & 0x1F }

// String renders the word as fixed-width hex.
func (w Word) String() string { return fmt.Sprintf("0x%08x", uint32(w)) }

// signed applies the shared sign rule: if the word's sign bit is set the
// unsigned field value is offset by 2^width.
func signed(w Word, uimm uint32, width uint) int32 {
	if uint32(w)&0x8000_0000 != 0 {
		return int32(int64(uimm) - int64(1)<<width)
	}
	return int32(uimm)
}

// Format identifies one of the base encoding shapes.
type Format uint8

const (
	FormatR Format = iota
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
	FormatInert
)

var formatNames = [...]string{"R", "I", "S", "B", "U", "J", "inert"}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// RFormat is a register/register instruction.
//
//	|31     25|24  20|19  15|14  12|11   7|6      0|
//	|  funct7 |  rs2 |  rs1 |funct3|  rd  | opcode |
type RFormat struct {
	Opcode uint32
	Funct3 uint32
	Funct7 uint32
	Rs1    uint32
	Rs2    uint32
	Rd     uint32
}

// DecodeR extracts the R-type fields of w.
func DecodeR(w Word) RFormat {
	return RFormat{
		Opcode: w.Opcode(),
		Funct3: w.Funct3(),
		Funct7: w.Funct7(),
		Rs1:    w.Rs1(),
		Rs2:    w.Rs2(),
		Rd:     w.Rd(),
	}
}

// IFormat is a register/immediate instruction. Imm is sign-extended from
// bit 11.
//
//	|31        20|19  15|14  12|11   7|6      0|
//	|  imm[11:0] |  rs1 |funct3|  rd  | opcode |
type IFormat struct {
	Opcode uint32
	Funct3 uint32
	Rs1    uint32
	Rd     uint32
	Imm    int32
}

// DecodeI extracts the I-type fields of w.
func DecodeI(w Word) IFormat {
	return IFormat{
		Opcode: w.Opcode(),
		Funct3: w.Funct3(),
		Rs1:    w.Rs1(),
		Rd:     w.Rd(),
		Imm:    signed(w, uint32(w)>>20, 12),
	}
}

// ShiftFormat is the shift-by-immediate view of an I-type instruction. The
// top seven immediate bits select the shift type, the bottom five hold the
// shift amount.
//
//	|31     25|24   20|19  15|14  12|11   7|6      0|
//	|  funct7 | shamt |  rs1 |funct3|  rd  | opcode |
type ShiftFormat struct {
	Opcode uint32
	Funct3 uint32
	Rs1    uint32
	Rd     uint32
	Funct7 uint32
	Shamt  uint32
}

// Shift derives the shift view from the already extracted immediate.
func (i IFormat) Shift() ShiftFormat {
	imm := uint32(i.Imm) & 0xFFF
	return ShiftFormat{
		Opcode: i.Opcode,
		Funct3: i.Funct3,
		Rs1:    i.Rs1,
		Rd:     i.Rd,
		Funct7: imm >> 5,
		Shamt:  imm & 0x1F,
	}
}

// SFormat is a store-shaped instruction. The immediate is split across
// imm[11:5] (bits 31:25) and imm[4:0] (bits 11:7).
//
//	|31     25|24  20|19  15|14  12|11      7|6      0|
//	|imm[11:5]|  rs2 |  rs1 |funct3| imm[4:0]| opcode |
type SFormat struct {
	Opcode uint32
	Funct3 uint32
	Rs1    uint32
	Rs2    uint32
	Imm    int32
}

// DecodeS extracts the S-type fields of w.
func DecodeS(w Word) SFormat {
	uimm := (uint32(w)>>20)&0xFE0 | (uint32(w)>>7)&0x1F
	return SFormat{
		Opcode: w.Opcode(),
		Funct3: w.Funct3(),
		Rs1:    w.Rs1(),
		Rs2:    w.Rs2(),
		Imm:    signed(w, uimm, 12),
	}
}

// immediate reinterprets an S-shaped shift-immediate word as the I-type
// instruction it encodes: imm[4:0] is rd and rs2 is the low five bits of the
// I immediate.
func (s SFormat) immediate() IFormat {
	bits := uint32(s.Imm) & 0xFFF
	imm := (bits>>5)<<5 | s.Rs2
	if imm&0x800 != 0 {
		imm |= 0xFFFF_F000
	}
	return IFormat{
		Opcode: s.Opcode,
		Funct3: s.Funct3,
		Rs1:    s.Rs1,
		Rd:     bits & 0x1F,
		Imm:    int32(imm),
	}
}

// BFormat is a conditional branch. The 13-bit offset is always even; bit 0
// is not stored in the word.
//
//	|31|30    25|24  20|19  15|14  12|11    8| 7|6      0|
//	|12|imm[10:5]|  rs2 |  rs1 |funct3|imm[4:1]|11| opcode |
type BFormat struct {
	Opcode uint32
	Funct3 uint32
	Rs1    uint32
	Rs2    uint32
	Imm    int32
}

// DecodeB extracts the B-type fields of w.
func DecodeB(w Word) BFormat {
	u := uint32(w)
	uimm := (u>>19)&0x1000 | // imm[12]
		(u<<4)&0x800 | // imm[11]
		(u>>20)&0x7E0 | // imm[10:5]
		(u>>7)&0x1E // imm[4:1]
	return BFormat{
		Opcode: w.Opcode(),
		Funct3: w.Funct3(),
		Rs1:    w.Rs1(),
		Rs2:    w.Rs2(),
		Imm:    signed(w, uimm, 13),
	}
}

// UFormat carries an upper immediate: bits 31:12 verbatim, low 12 bits zero.
//
//	|31                 12|11   7|6      0|
//	|      imm[31:12]     |  rd  | opcode |
type UFormat struct {
	Opcode uint32
	Rd     uint32
	Imm    int32
}

// DecodeU extracts the U-type fields of w.
func DecodeU(w Word) UFormat {
	return UFormat{
		Opcode: w.Opcode(),
		Rd:     w.Rd(),
		Imm:    int32(uint32(w) & 0xFFFF_F000),
	}
}

// JFormat is an unconditional jump. The 21-bit offset is always even.
//
//	|31|30       21|20|19      12|11   7|6      0|
//	|20|  imm[10:1] |11| imm[19:12]|  rd  | opcode |
type JFormat struct {
	Opcode uint32
	Rd     uint32
	Imm    int32
}

// DecodeJ extracts the J-type fields of w.
func DecodeJ(w Word) JFormat {
	u := uint32(w)
	uimm := (u>>11)&0x10_0000 | // imm[20]
		u&0xF_F000 | // imm[19:12]
		(u>>9)&0x800 | // imm[11]
		(u>>20)&0x7FE // imm[10:1]
	return JFormat{
		Opcode: w.Opcode(),
		Rd:     w.Rd(),
		Imm:    signed(w, uimm, 21),
	}
}
