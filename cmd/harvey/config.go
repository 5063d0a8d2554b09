package main

import (
	"errors"
	"fmt"

	"github.com/harvey-emu/harvey/mem"
)

// Config holds everything the command needs to load and run an image.
type Config struct {
	// ImagePath is the flat binary to execute.
	ImagePath string
	// Base is the address the image and memory region start at.
	Base uint64
	// Entry is the initial PC. Zero means Base.
	Entry uint64
	// MemSize is the memory region size in bytes.
	MemSize uint64
	// Paged selects sparse memory instead of flat DRAM.
	Paged bool
	// Steps bounds the run. Zero means unbounded.
	Steps uint64
	// StrictAlign faults on data accesses that are not naturally aligned.
	StrictAlign bool
	// TracePath, when set, receives the serialised execution trace.
	TracePath string
	// Verbosity is the log level 0-5.
	Verbosity int
	// LogFormat is "json" or "text".
	LogFormat string
	// Metrics prints the metrics registry on exit.
	Metrics bool
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		MemSize:   mem.DefaultSize,
		Verbosity: 3,
		LogFormat: "text",
	}
}

// EntryPC resolves the initial program counter.
func (c *Config) EntryPC() uint64 {
	if c.Entry == 0 {
		return c.Base
	}
	return c.Entry
}

// StackTop is the initial stack pointer: one past the end of memory.
func (c *Config) StackTop() uint64 {
	return c.Base + c.MemSize
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.ImagePath == "" {
		return errors.New("config: image path must not be empty")
	}
	if c.MemSize == 0 {
		return errors.New("config: memory size must be positive")
	}
	if c.Base+c.MemSize < c.Base {
		return fmt.Errorf("config: memory 0x%x+0x%x overflows the address space", c.Base, c.MemSize)
	}
	entry := c.EntryPC()
	if entry < c.Base || entry-c.Base >= c.MemSize {
		return fmt.Errorf("config: entry 0x%x outside memory", entry)
	}
	if entry%4 != 0 {
		return fmt.Errorf("config: entry 0x%x not 4-byte aligned", entry)
	}
	if c.Verbosity < 0 || c.Verbosity > 5 {
		return fmt.Errorf("config: invalid verbosity: %d", c.Verbosity)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}
