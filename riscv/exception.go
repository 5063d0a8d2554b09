package riscv

import (
	"errors"
	"fmt"
)

// Fault sentinels. Every *Exception unwraps to exactly one of these (or to
// ErrIllegalInstruction).
var (
	ErrFetchFault            = errors.New("riscv: instruction fetch fault")
	ErrInstructionMisaligned = errors.New("riscv: instruction address misaligned")
	ErrLoadAccessFault       = errors.New("riscv: load access fault")
	ErrStoreAccessFault      = errors.New("riscv: store access fault")
	ErrLoadMisaligned        = errors.New("riscv: load address misaligned")
	ErrStoreMisaligned       = errors.New("riscv: store address misaligned")
)

// ExceptionKind is the closed set of faults a step can raise.
type ExceptionKind uint8

const (
	IllegalInstruction ExceptionKind = iota + 1
	FetchFault
	InstructionMisaligned
	LoadAccessFault
	StoreAccessFault
	LoadMisaligned
	StoreMisaligned
)

var kindSentinels = [...]error{
	IllegalInstruction:    ErrIllegalInstruction,
	FetchFault:            ErrFetchFault,
	InstructionMisaligned: ErrInstructionMisaligned,
	LoadAccessFault:       ErrLoadAccessFault,
	StoreAccessFault:      ErrStoreAccessFault,
	LoadMisaligned:        ErrLoadMisaligned,
	StoreMisaligned:       ErrStoreMisaligned,
}

func (k ExceptionKind) String() string {
	switch k {
	case IllegalInstruction:
		return "illegal-instruction"
	case FetchFault:
		return "fetch-fault"
	case InstructionMisaligned:
		return "instruction-misaligned"
	case LoadAccessFault:
		return "load-access-fault"
	case StoreAccessFault:
		return "store-access-fault"
	case LoadMisaligned:
		return "load-misaligned"
	case StoreMisaligned:
		return "store-misaligned"
	default:
		return fmt.Sprintf("exception(%d)", uint8(k))
	}
}

// kindOf maps an error returned by decode or a processor to its kind.
// Errors outside the taxonomy are reported as illegal instructions.
func kindOf(err error) ExceptionKind {
	for k, sentinel := range kindSentinels {
		if sentinel != nil && errors.Is(err, sentinel) {
			return ExceptionKind(k)
		}
	}
	return IllegalInstruction
}

// Exception is a fault raised by a step. PC is the address of the faulting
// instruction; Addr is the offending target or data address when there is
// one.
type Exception struct {
	Kind ExceptionKind
	PC   uint64
	Word Word
	Addr uint64
	Err  error
}

func (e *Exception) Error() string {
	msg := fmt.Sprintf("%s at pc=0x%016x", e.Kind, e.PC)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Exception) Unwrap() []error {
	var errs []error
	if int(e.Kind) < len(kindSentinels) && kindSentinels[e.Kind] != nil {
		errs = append(errs, kindSentinels[e.Kind])
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// AccessError carries the address of a failed control transfer or data
// access out of a processor.
type AccessError struct {
	Kind error
	Addr uint64
	Err  error
}

func (e *AccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: addr=0x%016x: %v", e.Kind, e.Addr, e.Err)
	}
	return fmt.Sprintf("%v: addr=0x%016x", e.Kind, e.Addr)
}

func (e *AccessError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}
