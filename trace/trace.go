// Package trace records the execution of a hart step by step. Every step
// keeps the PC, instruction word, full register file before and after, and
// the data accesses it made. A trace serialises to a compact binary form and
// commits to a single Keccak-256 Merkle root.
package trace

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/harvey-emu/harvey/riscv"
	"golang.org/x/crypto/sha3"
)

// Trace errors.
var (
	ErrShortTrace = errors.New("trace: data too short")
	ErrTruncated  = errors.New("trace: truncated step")
)

// Step records a single hart step.
type Step struct {
	PC         uint64
	Word       riscv.Word
	RegsBefore [riscv.RegCount]uint64
	RegsAfter  [riscv.RegCount]uint64
	MemOps     []riscv.MemOp
}

// Collector accumulates steps. It implements riscv.Tracer.
type Collector struct {
	Steps []Step
}

var _ riscv.Tracer = (*Collector)(nil)

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{Steps: make([]Step, 0, 256)}
}

// RecordStep appends a step, copying its memory operations.
func (c *Collector) RecordStep(s riscv.TraceStep) {
	step := Step{
		PC:         s.PC,
		Word:       s.Word,
		RegsBefore: s.RegsBefore,
		RegsAfter:  s.RegsAfter,
	}
	if len(s.MemOps) > 0 {
		step.MemOps = make([]riscv.MemOp, len(s.MemOps))
		copy(step.MemOps, s.MemOps)
	}
	c.Steps = append(c.Steps, step)
}

// StepCount returns the number of recorded steps.
func (c *Collector) StepCount() int {
	return len(c.Steps)
}

// Reset clears all recorded steps.
func (c *Collector) Reset() {
	c.Steps = c.Steps[:0]
}

const (
	headerSize   = 4
	regFileSize  = riscv.RegCount * 8
	stepBaseSize = 8 + 4 + 2*regFileSize + 2
	memOpSize    = 8 + 1 + 8 + 1
)

// Serialize encodes the trace. All integers are little-endian:
//
//	count(4) then per step:
//	PC(8) + word(4) + regsBefore(256) + regsAfter(256) +
//	numMemOps(2) + [addr(8)+size(1)+value(8)+isWrite(1)] per op
func (c *Collector) Serialize() []byte {
	total := headerSize
	for _, s := range c.Steps {
		total += stepBaseSize + len(s.MemOps)*memOpSize
	}
	buf := make([]byte, 0, total)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.Steps)))
	for _, s := range c.Steps {
		buf = appendStep(buf, s)
	}
	return buf
}

func appendStep(buf []byte, s Step) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, s.PC)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.Word))
	for _, r := range s.RegsBefore {
		buf = binary.LittleEndian.AppendUint64(buf, r)
	}
	for _, r := range s.RegsAfter {
		buf = binary.LittleEndian.AppendUint64(buf, r)
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s.MemOps)))
	for _, op := range s.MemOps {
		buf = binary.LittleEndian.AppendUint64(buf, op.Addr)
		buf = append(buf, op.Size)
		buf = binary.LittleEndian.AppendUint64(buf, op.Value)
		if op.IsWrite {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

// Deserialize reconstructs a trace produced by Serialize.
func Deserialize(data []byte) (*Collector, error) {
	if len(data) < headerSize {
		return nil, ErrShortTrace
	}
	count := binary.LittleEndian.Uint32(data)
	off := headerSize

	c := &Collector{Steps: make([]Step, 0, min(int(count), len(data)/stepBaseSize))}
	for i := uint32(0); i < count; i++ {
		if off+stepBaseSize > len(data) {
			return nil, fmt.Errorf("%w: step %d", ErrTruncated, i)
		}
		var s Step
		s.PC = binary.LittleEndian.Uint64(data[off:])
		off += 8
		s.Word = riscv.Word(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		for j := range s.RegsBefore {
			s.RegsBefore[j] = binary.LittleEndian.Uint64(data[off:])
			off += 8
		}
		for j := range s.RegsAfter {
			s.RegsAfter[j] = binary.LittleEndian.Uint64(data[off:])
			off += 8
		}
		n := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2

		if off+n*memOpSize > len(data) {
			return nil, fmt.Errorf("%w: step %d memory ops", ErrTruncated, i)
		}
		if n > 0 {
			s.MemOps = make([]riscv.MemOp, n)
		}
		for j := range s.MemOps {
			op := &s.MemOps[j]
			op.Addr = binary.LittleEndian.Uint64(data[off:])
			op.Size = data[off+8]
			op.Value = binary.LittleEndian.Uint64(data[off+9:])
			op.IsWrite = data[off+17] != 0
			off += memOpSize
		}
		c.Steps = append(c.Steps, s)
	}
	return c, nil
}

// Commitment computes a Keccak-256 Merkle root over the steps. Each leaf is
// the hash of the step's serialised form; odd levels duplicate their last
// node. An empty trace commits to the hash of no data.
func (c *Collector) Commitment() common.Hash {
	if len(c.Steps) == 0 {
		return keccak()
	}
	leaves := make([]common.Hash, len(c.Steps))
	for i, s := range c.Steps {
		leaves[i] = keccak(appendStep(nil, s))
	}
	return merkleRoot(leaves)
}

func keccak(data ...[]byte) common.Hash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return common.BytesToHash(d.Sum(nil))
}

// merkleRoot folds leaves pairwise until one node remains.
func merkleRoot(leaves []common.Hash) common.Hash {
	level := append([]common.Hash(nil), leaves...)
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]common.Hash, len(level)/2)
		for i := range next {
			next[i] = keccak(level[2*i][:], level[2*i+1][:])
		}
		level = next
	}
	return level[0]
}
