// Command harvey runs a flat RV64IM binary image on a single hart.
//
// Usage:
//
//	harvey [flags] <image>
//
// Flags:
//
//	--base          Load address of the image and start of memory (default: 0)
//	--entry         Initial PC (default: base)
//	--mem           Memory size in bytes (default: 128 MiB)
//	--paged         Use sparse paged memory instead of flat DRAM
//	--steps         Stop after this many steps, 0 for no limit (default: 0)
//	--strict-align  Fault on misaligned loads and stores
//	--trace         Write the execution trace to this file
//	--verbosity     Log level 0-5 (default: 3)
//	--log.format    Log output format: text, json (default: text)
//	--metrics       Print metrics on exit
//	--version       Print version and exit
//
// The hart runs until its PC leaves the loaded image, it traps, the step
// limit is reached or the process is interrupted. The register file is
// printed in every case.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/harvey-emu/harvey/log"
	"github.com/harvey-emu/harvey/mem"
	"github.com/harvey-emu/harvey/metrics"
	"github.com/harvey-emu/harvey/riscv"
	"github.com/harvey-emu/harvey/trace"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, args, os.Stdout, os.Stderr)
}

// execute parses args, runs the image and reports to stdout. Logs go to
// stderr.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, exit, code := parseFlags(args, stdout, stderr)
	if exit {
		return code
	}

	logger, err := log.NewFormat(stderr, log.VerbosityToLevel(cfg.Verbosity), cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		return 1
	}

	image, err := os.ReadFile(cfg.ImagePath)
	if err != nil {
		logger.Error("failed to read image", "err", err)
		return 1
	}
	bus, err := newBus(&cfg)
	if err != nil {
		logger.Error("failed to create memory", "err", err)
		return 1
	}
	if err := mem.LoadImage(bus, cfg.Base, image); err != nil {
		logger.Error("failed to load image", "path", cfg.ImagePath, "err", err)
		return 1
	}
	logger.Module("loader").Info("image loaded",
		"path", cfg.ImagePath,
		"size", len(image),
		log.Hex("base", cfg.Base),
		log.Hex("entry", cfg.EntryPC()),
		"paged", cfg.Paged,
	)

	var regs riscv.Registers
	regs.Set(2, cfg.StackTop()) // sp

	reg := metrics.NewRegistry()
	var collector *trace.Collector
	hcfg := riscv.HartConfig{
		Entry:           cfg.EntryPC(),
		Registers:       regs,
		StrictAlignment: cfg.StrictAlign,
		Logger:          logger.Module("hart"),
		Metrics:         reg,
	}
	if cfg.TracePath != "" {
		collector = trace.NewCollector()
		hcfg.Tracer = collector
	}
	hart := riscv.NewHart(bus, hcfg)

	start, end := cfg.Base, cfg.Base+uint64(len(image))
	outside := func(pc uint64) bool { return pc < start || pc >= end }

	steps, runErr := hart.Run(ctx, cfg.Steps, outside)
	code = 0
	switch {
	case runErr == nil:
		logger.Info("hart halted", "steps", steps, log.Hex("pc", hart.PC()))
	case errors.Is(runErr, riscv.ErrStepLimit):
		logger.Warn("step limit reached", "steps", steps)
	case errors.Is(runErr, context.Canceled):
		logger.Warn("interrupted", "steps", steps)
		code = 130
	default:
		logger.Error("hart trapped", "steps", steps, "err", runErr)
		code = 1
	}

	dumpRegisters(stdout, hart.PC(), hart.Registers())

	if collector != nil {
		if err := os.WriteFile(cfg.TracePath, collector.Serialize(), 0o644); err != nil {
			logger.Error("failed to write trace", "path", cfg.TracePath, "err", err)
			return 1
		}
		fmt.Fprintf(stdout, "trace: %d steps, commitment %s\n", collector.StepCount(), collector.Commitment().Hex())
	}
	if cfg.Metrics {
		if err := reg.WriteText(stdout, "harvey"); err != nil {
			logger.Error("failed to write metrics", "err", err)
		}
	}
	return code
}

// newBus builds the memory region described by cfg.
func newBus(cfg *Config) (riscv.Bus, error) {
	if cfg.Paged {
		return mem.NewPaged(cfg.Base, cfg.MemSize, 0)
	}
	return mem.NewDRAM(cfg.Base, cfg.MemSize)
}

// parseFlags parses CLI arguments into a Config. Returns the config, whether
// the caller should exit immediately, and the exit code.
func parseFlags(args []string, stdout, stderr io.Writer) (Config, bool, int) {
	cfg := DefaultConfig()
	fs := newFlagSet(&cfg)
	fs.SetOutput(stderr)

	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return cfg, true, 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "harvey %s (commit %s)\n", version, commit)
		return cfg, true, 0
	}

	switch fs.NArg() {
	case 1:
		cfg.ImagePath = fs.Arg(0)
	case 0:
		fmt.Fprintln(stderr, "Error: missing image path")
		return cfg, true, 2
	default:
		fmt.Fprintf(stderr, "Error: unexpected arguments %q\n", fs.Args()[1:])
		return cfg, true, 2
	}
	return cfg, false, 0
}

// newFlagSet creates a flag.FlagSet that binds all CLI flags to the given
// Config. The FlagSet uses ContinueOnError so callers control the error
// handling behavior.
func newFlagSet(cfg *Config) *flagSet {
	fs := newCustomFlagSet("harvey")
	fs.Uint64Var(&cfg.Base, "base", cfg.Base, "load address of the image and start of memory")
	fs.Uint64Var(&cfg.Entry, "entry", cfg.Entry, "initial program counter (default: base)")
	fs.Uint64Var(&cfg.MemSize, "mem", cfg.MemSize, "memory size in bytes")
	fs.BoolVar(&cfg.Paged, "paged", cfg.Paged, "use sparse paged memory")
	fs.Uint64Var(&cfg.Steps, "steps", cfg.Steps, "step limit, 0 for none")
	fs.BoolVar(&cfg.StrictAlign, "strict-align", cfg.StrictAlign, "fault on misaligned loads and stores")
	fs.StringVar(&cfg.TracePath, "trace", cfg.TracePath, "write the execution trace to this file")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5 (0=silent, 5=trace)")
	fs.StringVar(&cfg.LogFormat, "log.format", cfg.LogFormat, "log format (text, json)")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "print metrics on exit")
	return fs
}
