/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: interfaces.go
Description: Shared interfaces for the Akaylee DFA engine. Defines the core data model
(ranges, blocks, fault statuses) and the capability interfaces used across all packages
to break import cycles and keep the per-target hooks pluggable.
*/

package interfaces

import (
	"fmt"
	"time"
)

// DefaultColumns is the number of cipher-state columns assumed when a
// checker does not declare its own column space. Confirmed Good faults are
// counted per column; the hunt stops once every column of the confirmed
// direction reaches the configured minimum.
const DefaultColumns = 4

// Range is a half-open byte interval [Start, End) into the reference table.
// Ranges are immutable values; Start < End always holds for generated ranges.
type Range struct {
	Start uint64 `json:"start"` // First byte offset covered by the range
	End   uint64 `json:"end"`   // One past the last byte offset covered
}

// Size returns the number of bytes spanned by the range.
func (r Range) Size() uint64 {
	return r.End - r.Start
}

// String renders the range in the fixed-width form used by the run log.
// The format is load-bearing: replayed logs are parsed at fixed offsets.
func (r Range) String() string {
	return fmt.Sprintf("[0x%08X-0x%08X[", r.Start, r.End)
}

// Block is a cipher data block of exactly the configured block size.
// Blocks render as zero-padded hex (2 characters per byte).
type Block []byte

// Hex returns the uppercase hex form of the block, zero-padded to
// 2×BlockSize characters. Used in the run log and the text trace format.
func (b Block) Hex() string {
	return fmt.Sprintf("%X", []byte(b))
}

// Clone returns an independent copy of the block.
func (b Block) Clone() Block {
	if b == nil {
		return nil
	}
	out := make(Block, len(b))
	copy(out, b)
	return out
}

// FaultStatus classifies the outcome of one fault trial.
// The set is closed: checkers must map every output onto it, and the
// executor itself produces Crash (spawn/decode failure) and Loop
// (timeout). The names appear verbatim in the run log.
type FaultStatus int

const (
	NoFault      FaultStatus = iota // Output identical to the golden output
	MinorFault                      // Corrupted but cryptanalytically useless
	MajorFault                      // Output too damaged to exploit
	GoodEncFault                    // Exploitable fault in the encryption direction
	GoodDecFault                    // Exploitable fault in the decryption direction
	Loop                            // Target exceeded the adaptive timeout
	Crash                           // Target failed to run or produced no decodable output
)

var faultStatusNames = map[FaultStatus]string{
	NoFault:      "NoFault",
	MinorFault:   "MinorFault",
	MajorFault:   "MajorFault",
	GoodEncFault: "GoodEncFault",
	GoodDecFault: "GoodDecFault",
	Loop:         "Loop",
	Crash:        "Crash",
}

// String returns the canonical status name as written to the run log.
func (s FaultStatus) String() string {
	if name, ok := faultStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("FaultStatus(%d)", int(s))
}

// Exploitable reports whether the status carries a usable faulty output
// (the Good statuses, which also carry a column index).
func (s FaultStatus) Exploitable() bool {
	return s == GoodEncFault || s == GoodDecFault
}

// Broken reports whether the trial destroyed the run without yielding an
// exploitable output. Broken ranges are re-split during discovery.
func (s FaultStatus) Broken() bool {
	return s == MajorFault || s == Loop || s == Crash
}

// TrialResult is the outcome of executing the target against one corrupted
// table. Process-level failures are folded into Status, never errors.
type TrialResult struct {
	Output   Block         // Decoded output block, nil when the run produced none
	Status   FaultStatus   // Outcome classification
	Column   int           // Affected cipher-state column for Good faults, else -1
	Duration time.Duration // Wall-clock time of the trial
}

// TracePair is a confirmed (input, output) block pair suitable for
// downstream DFA tooling.
type TracePair struct {
	Input  Block `json:"input"`
	Output Block `json:"output"`
}

// InputEncoder converts the reference input block into target argv strings.
// A nil slice means the input cannot be injected via arguments and the
// target is invoked bare. pkg/codec holds the default hex encoder.
type InputEncoder interface {
	// Encode returns zero or more argument strings for the target, or nil.
	Encode(block Block, blockSize int) []string
}

// OutputDecoder converts raw target stdout into an output block.
// A non-nil error means "undecodable"; the executor folds it into the
// Crash status and never propagates it further.
type OutputDecoder interface {
	// Decode parses raw process output into a block of blockSize bytes.
	Decode(raw []byte, blockSize int) (Block, error)
}

// FaultChecker is the cryptanalytic judgement hook, implemented per
// cipher/whitebox outside the engine. Check classifies a decoded output
// into the closed FaultStatus space plus a column index (meaningful only
// for the Good statuses). Calibrate is invoked exactly once, with the
// golden output, after a successful calibration run. Columns declares how
// many structural sub-blocks the cipher state has; a value <= 0 falls back
// to DefaultColumns.
type FaultChecker interface {
	Calibrate(golden Block, verbosity int)
	Check(output Block, verbosity int) (FaultStatus, int)
	Columns() int
}

// FaultInjector produces a corrupted copy of the reference table. The
// input table is never mutated.
type FaultInjector interface {
	// Inject returns a copy of table with every byte in r XORed with mask.
	Inject(table []byte, r Range, mask byte) []byte
	// Name returns the injector name for telemetry.
	Name() string
}

// TargetExecutor runs the target program against a corrupted table and
// classifies the outcome. Implementations overwrite the shared data file
// on every call; callers must never invoke Execute concurrently.
type TargetExecutor interface {
	// Execute writes the table, runs the target under the current timeout
	// and returns the classified outcome. It never returns an error:
	// process-level failures map to Crash/Loop.
	Execute(table []byte) TrialResult
	// SetTimeout installs the adaptive per-trial timeout.
	SetTimeout(d time.Duration)
	// Timeout returns the currently active timeout.
	Timeout() time.Duration
	// Cleanup removes the shared data file and any other trial residue.
	Cleanup() error
}

// Config represents the configuration for a DFA acquisition run.
type Config struct {
	TargetBin  string // Path to the target executable
	TargetData string // Writable data file consumed by the target (may equal TargetBin)
	GoldenFile string // Pristine reference table; must differ from TargetData
	InputHex   string // Reference input block as hex; empty = "test" pattern
	BlockSize  int    // Cipher block size in bytes (8 for DES, 16 for AES)

	MaxLeaf     int // Largest range faulted as a single unit
	MinLeaf     int // Smallest range still subdivided during discovery
	MinLeafNail int // Smallest range still subdivided during nailing

	RangeSpec string // Optional "start:end" address window (hex or decimal)
	ReplayLog string // Optional prior run log whose ranges are replayed verbatim

	FromLeft   bool // Explore from the low end of the address space first
	DepthFirst bool // Recurse into re-split ranges instead of re-queueing them

	FaultMasks   []byte // Ordered XOR masks to try; empty = random masks
	RandomFaults int    // Number of random trials per location when FaultMasks is empty

	MinFaultsPerColumn int // Confirmed faults required per column before stopping

	CalibrationTimeout time.Duration // Generous timeout for the golden run
	TimeoutFactor      float64       // Adaptive timeout = golden duration × factor

	TraceFormat string // Trace serialization: "default" (hex text) or "trs"
	OutputDir   string // Directory receiving trace files
	RunLog      string // Trial log path; empty derives one from TargetBin + timestamp

	Shell         bool // Run the target command line through /bin/bash -c
	TolerateError bool // Append "; exit 0" so nonzero exits still deliver output
	Verbosity     int  // 0..3 verbosity ladder for trial reporting

	LogLevel string // Operator log level (debug, info, warn, error)
	LogFile  string // Optional operator log file
	JSONLogs bool   // Use JSON format for operator logs
}
