package main

import (
	"fmt"
	"io"

	"github.com/harvey-emu/harvey/riscv"
)

// abiNames are the calling-convention names of x0..x31.
var abiNames = [riscv.RegCount]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// dumpRegisters prints the PC and the register file, four registers per
// line.
func dumpRegisters(w io.Writer, pc uint64, regs [riscv.RegCount]uint64) {
	fmt.Fprintf(w, "%-13s = 0x%016x\n", "pc", pc)
	for i := 0; i < riscv.RegCount; i += 4 {
		for j := i; j < i+4; j++ {
			if j > i {
				io.WriteString(w, "  ")
			}
			name := fmt.Sprintf("x%d(%s)", j, abiNames[j])
			fmt.Fprintf(w, "%-9s = 0x%016x", name, regs[j])
		}
		io.WriteString(w, "\n")
	}
}
