/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: engine.go
Description: Main DFA acquisition engine. Drives the recursive fault hunt over the
reference table: calibration against the golden run, range-splitting discovery,
nail-down of exploitable locations, multi-fault accumulation, and trace flushing.
The trial loop is strictly single-threaded; only the abort flag and trace dumps
cross goroutines.
*/

package core

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-dfa/pkg/codec"
	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
	"github.com/kleascm/akaylee-dfa/pkg/strategies"
	"github.com/kleascm/akaylee-dfa/pkg/traces"
)

// Engine implements the DFA acquisition search
// All trial state is owned by the goroutine calling Run; Abort and
// DumpTraces are the only entry points safe to call from elsewhere
type Engine struct {
	config *interfaces.Config
	stats  *HuntStats
	logger *logrus.Logger

	// Core components (dependency injection)
	executor interfaces.TargetExecutor
	injector interfaces.FaultInjector
	checker  interfaces.FaultChecker
	reporter Reporter

	// Run state
	sessionID string           // Unique ID tagging this acquisition session
	initStamp string           // Start stamp shared by run log and trace files
	golden    []byte           // Pristine reference table
	input     interfaces.Block // Reference input block
	goldenOut interfaces.Block // Output of the calibration run
	tree      *WorkTree        // Pending address ranges
	budget    strategies.Budget
	encStatus ColumnCounters // Confirmed encryption faults per column
	decStatus ColumnCounters // Confirmed decryption faults per column
	rng       *rand.Rand

	recorder *traces.Recorder
	runLog   *os.File
	logW     *bufio.Writer

	aborted    atomic.Bool
	prepared   bool
	calibrated bool
}

// NewEngine creates a new acquisition engine instance
func NewEngine() *Engine {
	return &Engine{
		stats:  NewHuntStats(),
		logger: logrus.New(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetExecutor sets the target executor for the engine
func (e *Engine) SetExecutor(executor interfaces.TargetExecutor) {
	e.executor = executor
}

// SetInjector sets the fault injector for the engine
func (e *Engine) SetInjector(injector interfaces.FaultInjector) {
	e.injector = injector
}

// SetChecker sets the cryptanalytic fault checker for the engine
func (e *Engine) SetChecker(checker interfaces.FaultChecker) {
	e.checker = checker
}

// SetReporter sets the telemetry reporter for the engine
func (e *Engine) SetReporter(reporter Reporter) {
	e.reporter = reporter
}

// SetLogger sets the operator logger for the engine
func (e *Engine) SetLogger(logger *logrus.Logger) {
	e.logger = logger
}

// SetInput overrides the reference input block, for targets whose encoder
// expects something other than the configured hex input
func (e *Engine) SetInput(input interfaces.Block) {
	e.input = input
}

// SetRand replaces the mask source, mainly to make hunts reproducible
func (e *Engine) SetRand(rng *rand.Rand) {
	e.rng = rng
}

// Initialize prepares the engine for a hunt: loads the golden table,
// resolves the reference input, builds the initial work tree, opens the
// run log and seeds the trace recorder.
func (e *Engine) Initialize(config *interfaces.Config) error {
	if e.executor == nil {
		return fmt.Errorf("executor not set - use SetExecutor() before Initialize()")
	}
	if e.injector == nil {
		return fmt.Errorf("injector not set - use SetInjector() before Initialize()")
	}
	if e.checker == nil {
		return fmt.Errorf("checker not set - use SetChecker() before Initialize()")
	}
	if e.reporter == nil {
		e.reporter = NewLoggerReporter(e.logger)
	}

	cfg := *config
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return err
	}
	e.config = &cfg

	if err := e.setupLogging(&cfg); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	golden, err := os.ReadFile(cfg.GoldenFile)
	if err != nil {
		return fmt.Errorf("failed to read golden table: %w", err)
	}
	if len(golden) == 0 {
		return fmt.Errorf("golden table %s is empty", cfg.GoldenFile)
	}
	e.golden = golden

	if e.input == nil {
		if cfg.InputHex != "" {
			input, err := codec.ParseBlock(cfg.InputHex, cfg.BlockSize)
			if err != nil {
				return fmt.Errorf("bad reference input: %w", err)
			}
			e.input = input
		} else {
			e.input = codec.DefaultInput(cfg.BlockSize)
		}
	}

	tree, err := e.buildWorkTree()
	if err != nil {
		return err
	}
	e.tree = tree

	if len(cfg.FaultMasks) > 0 {
		e.budget = strategies.NewMaskBudget(cfg.FaultMasks)
	} else {
		e.budget = strategies.NewRandomBudget(cfg.RandomFaults)
	}

	e.encStatus = NewColumnCounters(e.checker.Columns())
	e.decStatus = NewColumnCounters(e.checker.Columns())

	e.sessionID = uuid.New().String()
	e.initStamp = time.Now().Format("20060102_150405")

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	e.recorder = traces.NewRecorder(cfg.BlockSize, cfg.TraceFormat, cfg.OutputDir, e.initStamp, e.logger)

	logPath := cfg.RunLog
	if logPath == "" {
		logPath = fmt.Sprintf("%s_%s.log", cfg.TargetBin, e.initStamp)
	}
	runLog, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	e.runLog = runLog
	e.logW = bufio.NewWriter(runLog)

	e.logger.WithFields(logrus.Fields{
		"session_id": e.sessionID,
		"target":     cfg.TargetBin,
		"table_size": len(e.golden),
		"tree_size":  e.tree.Len(),
		"run_log":    logPath,
		"injector":   e.injector.Name(),
	}).Info("DFA engine initialized")

	e.prepared = true
	return nil
}

// Calibrate runs the target once against the pristine table. The golden
// run must decode to an unfaulted output; its duration scaled by the
// timeout factor becomes the per-trial timeout for the whole hunt.
func (e *Engine) Calibrate() error {
	if !e.prepared {
		return fmt.Errorf("engine not initialized")
	}
	// The checker has no reference yet, so only the presence of a
	// decodable output gates the golden run, not its classification
	result := e.executor.Execute(e.golden)
	if result.Output == nil {
		return fmt.Errorf("could not obtain golden output (status %s), check your setup", result.Status)
	}

	timeout := time.Duration(float64(result.Duration) * e.config.TimeoutFactor)
	e.executor.SetTimeout(timeout)

	e.checker.Calibrate(result.Output, e.config.Verbosity)
	e.goldenOut = result.Output
	e.recorder.Seed(interfaces.TracePair{Input: e.input, Output: result.Output})

	e.logger.WithFields(logrus.Fields{
		"golden_output": result.Output.Hex(),
		"golden_run":    result.Duration,
		"trial_timeout": timeout,
	}).Info("Calibration complete")

	e.calibrated = true
	return nil
}

// Run performs the full acquisition: calibration, the hunt itself, trace
// saving and workspace cleanup. Returns whether the hunt completed, i.e.
// every column of one direction reached the configured minimum.
func (e *Engine) Run() (bool, error) {
	if !e.prepared {
		return false, fmt.Errorf("engine not initialized")
	}
	if !e.calibrated {
		if err := e.Calibrate(); err != nil {
			e.closeRunLog()
			return false, err
		}
	}

	e.logger.Info("Starting fault hunt")
	complete := e.dig(e.tree, e.budget, 0, nil)
	e.logW.Flush()

	if _, err := e.recorder.Save(); err != nil {
		// Unknown formats must not invalidate the completed hunt
		e.logger.WithError(err).Error("Failed to save traces")
	}
	if err := e.executor.Cleanup(); err != nil {
		e.logger.WithError(err).Warn("Cleanup failed")
	}
	e.closeRunLog()

	e.logger.WithFields(logrus.Fields(e.stats.Snapshot())).WithFields(logrus.Fields{
		"complete":    complete,
		"enc_columns": e.encStatus,
		"dec_columns": e.decStatus,
	}).Info("Hunt finished")

	return complete, nil
}

// Abort asks the hunt to unwind at the next trial boundary. Safe to call
// from any goroutine; traces are flushed by Run's normal exit path.
func (e *Engine) Abort() {
	e.aborted.Store(true)
}

// DumpTraces writes the currently accumulated trace pairs to disk without
// disturbing the ongoing hunt. Safe to call from the signal goroutine.
func (e *Engine) DumpTraces() {
	if e.recorder == nil {
		e.logger.Warn("No recorder yet, nothing to dump")
		return
	}
	if _, err := e.recorder.Save(); err != nil {
		e.logger.WithError(err).Error("Failed to dump traces")
	}
}

// Stats returns the hunt statistics
func (e *Engine) Stats() *HuntStats {
	return e.stats
}

// TraceCounts returns the number of pairs held per direction
func (e *Engine) TraceCounts() (enc int, dec int) {
	return e.recorder.Counts()
}

// GoldenOutput returns the calibration output block
func (e *Engine) GoldenOutput() interfaces.Block {
	return e.goldenOut
}

// SessionID returns the unique ID of this acquisition session
func (e *Engine) SessionID() string {
	return e.sessionID
}

// dig works through one tree of pending ranges and reports completion.
// Discovery re-splits broken ranges, nailing re-splits exploitable ones,
// and minimal exploitable leaves accumulate candidates until the fault
// budget is spent. The success flag unwinds the whole recursion.
func (e *Engine) dig(tree *WorkTree, budget strategies.Budget, level int, candidates []Candidate) bool {
	var prevAddr uint64
	havePrev := false

	for tree.Len() > 0 {
		if e.aborted.Load() {
			return false
		}

		mask := budget.Pick(e.rng)

		var r interfaces.Range
		if e.config.FromLeft {
			r, _ = tree.PopFront()
			if !e.config.DepthFirst {
				// Address order resets when a breadth-first pass wraps around
				if havePrev && r.Start < prevAddr {
					level++
				}
				prevAddr, havePrev = r.Start, true
			}
		} else {
			r, _ = tree.PopBack()
			if !e.config.DepthFirst {
				if havePrev && r.End > prevAddr {
					level++
				}
				prevAddr, havePrev = r.End, true
			}
		}

		table := e.injector.Inject(e.golden, r, mask)
		result := e.executor.Execute(table)
		e.stats.RecordTrial(result.Status)
		e.stats.NoteLevel(level)

		line := e.trialLine(level, r, mask, result)
		e.writeRunLog(line)
		e.reporter.OnTrial(line, result)

		switch {
		case result.Status == interfaces.NoFault || result.Status == interfaces.MinorFault:
			continue

		case result.Status.Exploitable():
			if r.End > r.Start+uint64(e.config.MinLeafNail) {
				// Nail-down phase: subdivide until the leaf is minimal
				e.reporter.OnNailing(r)
				if e.dig(e.splitTree(r), budget, level+1, nil) {
					return true
				}
				continue
			}
			pending := append(append([]Candidate(nil), candidates...), Candidate{
				Line: line,
				Pair: interfaces.TracePair{Input: e.input, Output: result.Output},
			})
			if budget.More() {
				// Same leaf again under the next mask; confirmations stack up
				if e.dig(NewWorkTreeFrom([]interfaces.Range{r}), budget.Next(), level, pending) {
					return true
				}
				continue
			}
			// Budget spent: commit the whole batch under the final trial's
			// direction and column
			counters := e.encStatus
			if result.Status == interfaces.GoodDecFault {
				counters = e.decStatus
			}
			for _, cand := range pending {
				e.reporter.OnConfirmed(cand.Line, result.Status, result.Column)
				e.recorder.Append(result.Status, cand.Pair)
				e.stats.IncrementConfirmed()
				counters.Increment(result.Column)
				if counters.Complete(e.config.MinFaultsPerColumn) {
					return true
				}
				e.writeRunLog(cand.Line)
			}
			e.logW.Flush()
			continue

		case result.Status.Broken():
			if r.End > r.Start+uint64(e.config.MinLeaf) {
				if e.config.DepthFirst {
					if e.dig(e.splitTree(r), budget, level+1, nil) {
						return true
					}
					continue
				}
				// Breadth-first: children go to the far end of the scan
				children := SplitRange(r, 1, uint64(e.config.MaxLeaf))
				if e.config.FromLeft {
					tree.ExtendBack(children)
				} else {
					tree.ExtendFront(children)
				}
				continue
			}
			// Too small to subdivide further and too broken to use
			continue
		}
	}
	return false
}

// splitTree builds a fresh work tree from one forced split of r
func (e *Engine) splitTree(r interfaces.Range) *WorkTree {
	return NewWorkTreeFrom(SplitRange(r, 1, uint64(e.config.MaxLeaf)))
}

// trialLine renders the fixed-width run log line for one trial.
// Replay depends on the exact layout; change nothing here.
func (e *Engine) trialLine(level int, r interfaces.Range, mask byte, result interfaces.TrialResult) string {
	line := fmt.Sprintf("Lvl %03d %s ^0x%02X %s ->", level, r, mask, e.input.Hex())
	if result.Output != nil {
		line += " " + result.Output.Hex()
	}
	line += " " + result.Status.String()
	if result.Status.Exploitable() {
		line += fmt.Sprintf(" Column:%d", result.Column)
	}
	return line
}

// writeRunLog appends one line to the buffered run log
func (e *Engine) writeRunLog(line string) {
	if e.logW == nil {
		return
	}
	e.logW.WriteString(line + "\n")
}

// closeRunLog flushes and closes the run log handle
func (e *Engine) closeRunLog() {
	if e.logW != nil {
		e.logW.Flush()
	}
	if e.runLog != nil {
		if err := e.runLog.Close(); err != nil {
			e.logger.WithError(err).Warn("Failed to close run log")
		}
		e.runLog = nil
		e.logW = nil
	}
}

// setupLogging configures the operator logger from the run configuration
func (e *Engine) setupLogging(cfg *interfaces.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	e.logger.SetLevel(level)

	if cfg.JSONLogs {
		e.logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		e.logger.SetOutput(file)
	}

	return nil
}

// buildWorkTree resolves the configured address source into the initial tree
func (e *Engine) buildWorkTree() (*WorkTree, error) {
	cfg := e.config
	if cfg.ReplayLog != "" && cfg.RangeSpec != "" {
		return nil, fmt.Errorf("replay log and address range are mutually exclusive")
	}
	switch {
	case cfg.ReplayLog != "":
		ranges, err := ReplayRanges(cfg.ReplayLog)
		if err != nil {
			return nil, err
		}
		if len(ranges) == 0 {
			return nil, fmt.Errorf("replay log %s holds no ranges", cfg.ReplayLog)
		}
		return NewWorkTreeFrom(ranges), nil
	case cfg.RangeSpec != "":
		window, err := ParseRangeSpec(cfg.RangeSpec)
		if err != nil {
			return nil, err
		}
		return NewWorkTreeFrom(SplitRange(window, 1, uint64(cfg.MaxLeaf))), nil
	default:
		full := interfaces.Range{Start: 0, End: uint64(len(e.golden))}
		return NewWorkTreeFrom(SplitRange(full, 1, uint64(cfg.MaxLeaf))), nil
	}
}

// applyDefaults fills unset tunables with the standard values
func applyDefaults(cfg *interfaces.Config) {
	if cfg.MaxLeaf <= 0 {
		cfg.MaxLeaf = 256 * 256
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = 64
	}
	if cfg.MinLeafNail <= 0 {
		cfg.MinLeafNail = 8
	}
	if cfg.RandomFaults <= 0 {
		cfg.RandomFaults = 4
	}
	if cfg.MinFaultsPerColumn <= 0 {
		cfg.MinFaultsPerColumn = 4
	}
	if cfg.TimeoutFactor <= 0 {
		cfg.TimeoutFactor = 2
	}
	if cfg.TraceFormat == "" {
		cfg.TraceFormat = traces.FormatDefault
	}
}

// validate rejects configurations the hunt cannot run with
func validate(cfg *interfaces.Config) error {
	if cfg.TargetBin == "" {
		return fmt.Errorf("target binary not set")
	}
	if cfg.TargetData == "" {
		return fmt.Errorf("target data file not set")
	}
	if cfg.GoldenFile == "" {
		return fmt.Errorf("golden table file not set")
	}
	if cfg.GoldenFile == cfg.TargetData {
		return fmt.Errorf("golden table must not be the target data file, trials would destroy it")
	}
	if cfg.BlockSize <= 0 {
		return fmt.Errorf("block size must be positive")
	}
	return nil
}
