package metrics

// Names of the metrics every hart maintains. Harts register them in the
// registry they are configured with, DefaultRegistry unless told otherwise.
const (
	// HartSteps counts retired instructions.
	HartSteps = "hart.steps"
	// HartTraps counts steps that raised an exception.
	HartTraps = "hart.traps"
	// HartRedirects counts steps whose operation set the PC explicitly.
	HartRedirects = "hart.redirects"
	// HartInert counts fence and system instructions executed as no-ops.
	HartInert = "hart.inert"
	// HartPC tracks the program counter after the latest step.
	HartPC = "hart.pc"
	// HartRunTime records the duration of Run calls in milliseconds.
	HartRunTime = "hart.run_ms"
)
