// encode.go contains instruction encoders, the inverse of the format
// extractors. They are used to assemble test programs and small images.
package riscv

// EncodeR encodes an R-type instruction.
func EncodeR(opcode, rd, funct3, rs1, rs2, funct7 uint32) Word {
	return Word(funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode)
}

// EncodeI encodes an I-type instruction. Only the low 12 bits of imm are
// kept.
func EncodeI(opcode, rd, funct3, rs1 uint32, imm int32) Word {
	return Word(uint32(imm&0xFFF)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode)
}

// EncodeShift encodes a shift-by-immediate instruction. A shift amount of 32
// or more carries its sixth bit into the low bit of funct7, as RV64 SLLI,
// SRLI and SRAI expect.
func EncodeShift(opcode, rd, funct3, rs1, shamt, funct7 uint32) Word {
	return EncodeR(opcode, rd, funct3, rs1, shamt&0x1F, funct7|shamt>>5&1)
}

// EncodeS encodes an S-type instruction.
func EncodeS(opcode, funct3, rs1, rs2 uint32, imm int32) Word {
	immU := uint32(imm & 0xFFF)
	return Word((immU>>5)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (immU&0x1F)<<7 | opcode)
}

// EncodeB encodes a B-type instruction. Bit 0 of imm is dropped.
func EncodeB(opcode, funct3, rs1, rs2 uint32, imm int32) Word {
	immU := uint32(imm)
	return Word((immU>>12&0x1)<<31 | (immU>>5&0x3F)<<25 |
		rs2<<20 | rs1<<15 | funct3<<12 |
		(immU>>1&0xF)<<8 | (immU>>11&0x1)<<7 | opcode)
}

// EncodeU encodes a U-type instruction. The low 12 bits of imm are dropped.
func EncodeU(opcode, rd uint32, imm uint32) Word {
	return Word(imm&0xFFFF_F000 | rd<<7 | opcode)
}

// EncodeJ encodes a J-type instruction. Bit 0 of imm is dropped.
func EncodeJ(opcode, rd uint32, imm int32) Word {
	immU := uint32(imm)
	return Word((immU>>20&0x1)<<31 | (immU>>1&0x3FF)<<21 |
		(immU>>11&0x1)<<20 | (immU>>12&0xFF)<<12 |
		rd<<7 | opcode)
}

// Assemble lays out words as a little-endian image.
func Assemble(words ...Word) []byte {
	out := make([]byte, 0, len(words)*InstructionSize)
	for _, w := range words {
		out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return out
}
