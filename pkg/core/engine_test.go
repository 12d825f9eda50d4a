/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: engine_test.go
Description: Tests for the DFA acquisition engine. Drives full hunts against a
scripted executor that classifies trials by the byte window it finds corrupted,
covering minimal-leaf confirmation, breadth-first requeueing, nail-down chains,
multi-mask accumulation, replay, abort, and calibration.
*/

package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
	"github.com/kleascm/akaylee-dfa/pkg/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diffRange recovers the injected range and mask by comparing a trial table
// against the golden table
func diffRange(golden, table []byte) (interfaces.Range, byte, bool) {
	lo, hi := -1, -1
	for i := range golden {
		if golden[i] != table[i] {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	if lo < 0 {
		return interfaces.Range{}, 0, false
	}
	return interfaces.Range{Start: uint64(lo), End: uint64(hi) + 1}, golden[lo] ^ table[lo], true
}

// scriptExecutor stands in for the real target process. An unfaulted table is
// the calibration run; faulted tables are classified by the test's script.
type scriptExecutor struct {
	golden    []byte
	goldenOut interfaces.Block
	classify  func(r interfaces.Range, mask byte) interfaces.TrialResult
	ranges    []interfaces.Range
	masks     []byte
	timeout   time.Duration
	cleanups  int
	calFail   bool
}

func newScriptExecutor(golden []byte) *scriptExecutor {
	return &scriptExecutor{
		golden:    golden,
		goldenOut: interfaces.Block{0xAA, 0xBB, 0xCC, 0xDD},
	}
}

func (x *scriptExecutor) Execute(table []byte) interfaces.TrialResult {
	r, mask, faulted := diffRange(x.golden, table)
	if !faulted {
		if x.calFail {
			return interfaces.TrialResult{Status: interfaces.Crash, Column: -1, Duration: 50 * time.Millisecond}
		}
		return interfaces.TrialResult{
			Output:   x.goldenOut.Clone(),
			Status:   interfaces.NoFault,
			Column:   -1,
			Duration: 50 * time.Millisecond,
		}
	}
	x.ranges = append(x.ranges, r)
	x.masks = append(x.masks, mask)
	return x.classify(r, mask)
}

func (x *scriptExecutor) SetTimeout(d time.Duration) { x.timeout = d }
func (x *scriptExecutor) Timeout() time.Duration     { return x.timeout }
func (x *scriptExecutor) Cleanup() error             { x.cleanups++; return nil }

// huntChecker declares the column space and records the calibration call.
// Classification happens in the scripted executor, so Check is never reached.
type huntChecker struct {
	columns    int
	calibrated interfaces.Block
	verbosity  int
}

func (c *huntChecker) Calibrate(golden interfaces.Block, verbosity int) {
	c.calibrated = golden.Clone()
	c.verbosity = verbosity
}

func (c *huntChecker) Check(output interfaces.Block, verbosity int) (interfaces.FaultStatus, int) {
	return interfaces.NoFault, -1
}

func (c *huntChecker) Columns() int { return c.columns }

// recordingReporter captures hunt events for assertions
type recordingReporter struct {
	trials    []string
	nailings  []interfaces.Range
	confirmed []string
}

func (r *recordingReporter) OnTrial(line string, result interfaces.TrialResult) {
	r.trials = append(r.trials, line)
}

func (r *recordingReporter) OnNailing(rg interfaces.Range) {
	r.nailings = append(r.nailings, rg)
}

func (r *recordingReporter) OnConfirmed(line string, status interfaces.FaultStatus, column int) {
	r.confirmed = append(r.confirmed, line)
}

func newHuntConfig(t *testing.T, golden []byte) *interfaces.Config {
	t.Helper()
	dir := t.TempDir()
	goldenPath := filepath.Join(dir, "golden.bin")
	require.NoError(t, os.WriteFile(goldenPath, golden, 0644))
	return &interfaces.Config{
		TargetBin:  filepath.Join(dir, "target"),
		TargetData: filepath.Join(dir, "table.bin"),
		GoldenFile: goldenPath,
		BlockSize:  4,
		OutputDir:  dir,
		RunLog:     filepath.Join(dir, "run.log"),
		LogLevel:   "panic",
	}
}

func newHuntEngine(t *testing.T, cfg *interfaces.Config, exec *scriptExecutor, checker *huntChecker) (*Engine, *recordingReporter) {
	t.Helper()
	reporter := &recordingReporter{}
	engine := NewEngine()
	engine.SetExecutor(exec)
	engine.SetInjector(strategies.NewXORInjector())
	engine.SetChecker(checker)
	engine.SetReporter(reporter)
	require.NoError(t, engine.Initialize(cfg))
	return engine, reporter
}

func runLogLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	trimmed := strings.TrimRight(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func covers(r interfaces.Range, addr uint64) bool {
	return r.Start <= addr && addr < r.End
}

func tableOf(size int) []byte {
	table := make([]byte, size)
	for i := range table {
		table[i] = byte(i)
	}
	return table
}

// TestEngineRequiresComponents tests that Initialize rejects missing hooks
func TestEngineRequiresComponents(t *testing.T) {
	cfg := newHuntConfig(t, tableOf(16))

	engine := NewEngine()
	err := engine.Initialize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use SetExecutor()")

	engine.SetExecutor(newScriptExecutor(tableOf(16)))
	err = engine.Initialize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use SetInjector()")

	engine.SetInjector(strategies.NewXORInjector())
	err = engine.Initialize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use SetChecker()")

	engine.SetChecker(&huntChecker{columns: 1})
	assert.NoError(t, engine.Initialize(cfg))
}

// TestEngineRejectsBadConfig tests the fatal configuration errors
func TestEngineRejectsBadConfig(t *testing.T) {
	golden := tableOf(16)

	build := func(mutate func(cfg *interfaces.Config)) error {
		cfg := newHuntConfig(t, golden)
		mutate(cfg)
		engine := NewEngine()
		engine.SetExecutor(newScriptExecutor(golden))
		engine.SetInjector(strategies.NewXORInjector())
		engine.SetChecker(&huntChecker{columns: 1})
		return engine.Initialize(cfg)
	}

	t.Run("golden equals target data", func(t *testing.T) {
		err := build(func(cfg *interfaces.Config) { cfg.TargetData = cfg.GoldenFile })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "golden table must not be the target data file")
	})

	t.Run("missing golden file", func(t *testing.T) {
		err := build(func(cfg *interfaces.Config) { cfg.GoldenFile = cfg.GoldenFile + ".gone" })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read golden table")
	})

	t.Run("empty golden file", func(t *testing.T) {
		err := build(func(cfg *interfaces.Config) {
			require.NoError(t, os.WriteFile(cfg.GoldenFile, nil, 0644))
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is empty")
	})

	t.Run("replay and range spec together", func(t *testing.T) {
		err := build(func(cfg *interfaces.Config) {
			cfg.ReplayLog = "prior.log"
			cfg.RangeSpec = "0:16"
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})

	t.Run("inverted range spec", func(t *testing.T) {
		err := build(func(cfg *interfaces.Config) { cfg.RangeSpec = "10:5" })
		require.Error(t, err)
	})
}

// TestCalibrationSetsAdaptiveTimeout tests the golden run wiring: adaptive
// timeout, checker calibration, and seeding both trace directions
func TestCalibrationSetsAdaptiveTimeout(t *testing.T) {
	golden := tableOf(32)
	cfg := newHuntConfig(t, golden)
	cfg.TimeoutFactor = 3

	exec := newScriptExecutor(golden)
	checker := &huntChecker{columns: 4}
	engine, _ := newHuntEngine(t, cfg, exec, checker)

	require.NoError(t, engine.Calibrate())

	assert.Equal(t, 150*time.Millisecond, exec.timeout, "timeout = golden duration x factor")
	assert.Equal(t, exec.goldenOut, checker.calibrated)
	assert.Equal(t, exec.goldenOut, engine.GoldenOutput())

	enc, dec := engine.TraceCounts()
	assert.Equal(t, 1, enc, "encryption direction seeded with the golden pair")
	assert.Equal(t, 1, dec, "decryption direction seeded with the golden pair")
}

// TestCalibrationFailureIsFatal tests that a broken golden run aborts the hunt
// before any corruption trial
func TestCalibrationFailureIsFatal(t *testing.T) {
	golden := tableOf(32)
	cfg := newHuntConfig(t, golden)

	exec := newScriptExecutor(golden)
	exec.calFail = true
	engine, _ := newHuntEngine(t, cfg, exec, &huntChecker{columns: 4})

	complete, err := engine.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "golden output")
	assert.False(t, complete)
	assert.Empty(t, exec.ranges, "no corruption trial may run without a baseline")
}

// TestHuntConfirmsMinimalLeaf tests completion at a one-byte leaf: one mask,
// one required fault, single-column checker
func TestHuntConfirmsMinimalLeaf(t *testing.T) {
	golden := tableOf(32)
	cfg := newHuntConfig(t, golden)
	cfg.RangeSpec = "5:6"
	cfg.FromLeft = true
	cfg.FaultMasks = []byte{0x42}
	cfg.MinFaultsPerColumn = 1

	exec := newScriptExecutor(golden)
	exec.classify = func(r interfaces.Range, mask byte) interfaces.TrialResult {
		return interfaces.TrialResult{
			Output:   interfaces.Block{1, 2, 3, 4},
			Status:   interfaces.GoodEncFault,
			Column:   0,
			Duration: time.Millisecond,
		}
	}
	engine, reporter := newHuntEngine(t, cfg, exec, &huntChecker{columns: 1})

	complete, err := engine.Run()
	require.NoError(t, err)
	assert.True(t, complete)

	// Exactly one new encryption pair beyond the golden seed
	enc, dec := engine.TraceCounts()
	assert.Equal(t, 2, enc)
	assert.Equal(t, 1, dec)

	require.Len(t, exec.ranges, 1)
	assert.Equal(t, span(5, 6), exec.ranges[0])
	assert.Equal(t, []byte{0x42}, exec.masks)
	assert.Equal(t, 1, exec.cleanups)

	require.Len(t, reporter.confirmed, 1)
	assert.Contains(t, reporter.confirmed[0], "GoodEncFault Column:0")

	// The completing candidate returns before its confirmation line persists,
	// so the run log holds the trial line alone
	lines := runLogLines(t, cfg.RunLog)
	require.Len(t, lines, 1)
	assert.Equal(t, "Lvl 000 [0x00000005-0x00000006[ ^0x42 74657374 -> 01020304 GoodEncFault Column:0", lines[0])

	// Both pairs land in the encryption trace file
	traceFiles, err := filepath.Glob(filepath.Join(cfg.OutputDir, "dfa_enc_*.txt"))
	require.NoError(t, err)
	require.Len(t, traceFiles, 1)
	data, err := os.ReadFile(traceFiles[0])
	require.NoError(t, err)
	assert.Equal(t, "74657374 AABBCCDD\n74657374 01020304\n", string(data))
}

// TestHuntBreadthFirstRequeuesBrokenRanges tests that breadth-first discovery
// pushes split children back onto the tree and drains the current level first
func TestHuntBreadthFirstRequeuesBrokenRanges(t *testing.T) {
	golden := tableOf(16)
	cfg := newHuntConfig(t, golden)
	cfg.RangeSpec = "0:16"
	cfg.MaxLeaf = 8
	cfg.MinLeaf = 4
	cfg.FromLeft = true
	cfg.FaultMasks = []byte{0xFF}

	exec := newScriptExecutor(golden)
	exec.classify = func(r interfaces.Range, mask byte) interfaces.TrialResult {
		return interfaces.TrialResult{Status: interfaces.Crash, Column: -1, Duration: time.Millisecond}
	}
	engine, _ := newHuntEngine(t, cfg, exec, &huntChecker{columns: 4})

	complete, err := engine.Run()
	require.NoError(t, err)
	assert.False(t, complete)

	// Both top-level ranges run before any of their children
	want := []interfaces.Range{
		span(0, 8), span(8, 16),
		span(0, 4), span(4, 8), span(8, 12), span(12, 16),
	}
	assert.Equal(t, want, exec.ranges)

	// The level counter ticks when the popped address walks backward
	lines := runLogLines(t, cfg.RunLog)
	require.Len(t, lines, 6)
	assert.Equal(t, "Lvl 000 [0x00000000-0x00000008[ ^0xFF 74657374 -> Crash", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Lvl 000 [0x00000008-0x00000010["))
	assert.True(t, strings.HasPrefix(lines[2], "Lvl 001 [0x00000000-0x00000004["))
	assert.True(t, strings.HasPrefix(lines[5], "Lvl 001 [0x0000000C-0x00000010["))
}

// TestHuntDepthFirstDescendsImmediately tests that depth-first discovery
// recurses into split children before touching the rest of the tree
func TestHuntDepthFirstDescendsImmediately(t *testing.T) {
	golden := tableOf(16)
	cfg := newHuntConfig(t, golden)
	cfg.RangeSpec = "0:16"
	cfg.MaxLeaf = 8
	cfg.MinLeaf = 4
	cfg.FromLeft = true
	cfg.DepthFirst = true
	cfg.FaultMasks = []byte{0xFF}

	exec := newScriptExecutor(golden)
	exec.classify = func(r interfaces.Range, mask byte) interfaces.TrialResult {
		return interfaces.TrialResult{Status: interfaces.Crash, Column: -1, Duration: time.Millisecond}
	}
	engine, _ := newHuntEngine(t, cfg, exec, &huntChecker{columns: 4})

	complete, err := engine.Run()
	require.NoError(t, err)
	assert.False(t, complete)

	want := []interfaces.Range{
		span(0, 8), span(0, 4), span(4, 8),
		span(8, 16), span(8, 12), span(12, 16),
	}
	assert.Equal(t, want, exec.ranges)

	lines := runLogLines(t, cfg.RunLog)
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "Lvl 000 [0x00000000-0x00000008["))
	assert.True(t, strings.HasPrefix(lines[1], "Lvl 001 [0x00000000-0x00000004["))
}

// TestHuntNailsExploitableRange tests the nail-down chain from a 32-byte
// window to the single byte whose corruption is exploitable
func TestHuntNailsExploitableRange(t *testing.T) {
	const target = uint64(21)

	golden := tableOf(64)
	cfg := newHuntConfig(t, golden)
	cfg.MinLeafNail = 1
	cfg.FromLeft = true
	cfg.DepthFirst = true
	cfg.FaultMasks = []byte{0xAB}
	cfg.MinFaultsPerColumn = 1

	exec := newScriptExecutor(golden)
	exec.classify = func(r interfaces.Range, mask byte) interfaces.TrialResult {
		if covers(r, target) {
			return interfaces.TrialResult{
				Output:   interfaces.Block{9, 9, 9, 9},
				Status:   interfaces.GoodEncFault,
				Column:   0,
				Duration: time.Millisecond,
			}
		}
		return interfaces.TrialResult{
			Output:   exec.goldenOut.Clone(),
			Status:   interfaces.NoFault,
			Column:   -1,
			Duration: time.Millisecond,
		}
	}
	engine, reporter := newHuntEngine(t, cfg, exec, &huntChecker{columns: 1})

	complete, err := engine.Run()
	require.NoError(t, err)
	assert.True(t, complete)

	// Every exploitable window above the nailing granularity is re-split
	want := []interfaces.Range{span(0, 32), span(16, 32), span(16, 24), span(20, 24), span(20, 22)}
	assert.Equal(t, want, reporter.nailings)

	require.NotEmpty(t, exec.ranges)
	assert.Equal(t, span(target, target+1), exec.ranges[len(exec.ranges)-1], "hunt must end on the single faultable byte")

	lines := runLogLines(t, cfg.RunLog)
	require.Len(t, lines, 9)
	assert.Equal(t, "Lvl 005 [0x00000015-0x00000016[ ^0xAB 74657374 -> 09090909 GoodEncFault Column:0", lines[8])

	enc, dec := engine.TraceCounts()
	assert.Equal(t, 2, enc)
	assert.Equal(t, 1, dec)
}

// TestHuntAccumulatesConfirmationsAcrossMasks tests the multi-fault pass at a
// minimal leaf: each mask confirms once, the batch flushes together, and the
// completion check runs per flushed candidate
func TestHuntAccumulatesConfirmationsAcrossMasks(t *testing.T) {
	golden := tableOf(32)
	cfg := newHuntConfig(t, golden)
	cfg.RangeSpec = "5:6"
	cfg.FromLeft = true
	cfg.FaultMasks = []byte{0xAA, 0xBB, 0xCC}
	cfg.MinFaultsPerColumn = 3

	exec := newScriptExecutor(golden)
	exec.classify = func(r interfaces.Range, mask byte) interfaces.TrialResult {
		return interfaces.TrialResult{
			Output:   interfaces.Block{1, 2, 3, 4},
			Status:   interfaces.GoodEncFault,
			Column:   0,
			Duration: time.Millisecond,
		}
	}
	engine, reporter := newHuntEngine(t, cfg, exec, &huntChecker{columns: 1})

	complete, err := engine.Run()
	require.NoError(t, err)
	assert.True(t, complete)

	// Masks consumed in configured order at the same leaf
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, exec.masks)
	for _, r := range exec.ranges {
		assert.Equal(t, span(5, 6), r)
	}

	assert.Len(t, reporter.confirmed, 3)
	enc, _ := engine.TraceCounts()
	assert.Equal(t, 4, enc, "golden seed plus one pair per mask")

	// Three trial lines, then confirmation lines for all but the candidate
	// that completed the run
	lines := runLogLines(t, cfg.RunLog)
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "^0xAA")
	assert.Contains(t, lines[1], "^0xBB")
	assert.Contains(t, lines[2], "^0xCC")
	assert.Equal(t, lines[0], lines[3])
	assert.Equal(t, lines[1], lines[4])
	for _, line := range lines[:3] {
		assert.True(t, strings.HasPrefix(line, "Lvl 000 "), "repeat trials stay at the same level")
	}
}

// TestHuntFinalTrialDecidesDirection tests that an accumulated batch flushes
// under the status and column of the last trial in the pass
func TestHuntFinalTrialDecidesDirection(t *testing.T) {
	golden := tableOf(32)
	cfg := newHuntConfig(t, golden)
	cfg.RangeSpec = "5:6"
	cfg.FromLeft = true
	cfg.FaultMasks = []byte{0x11, 0x22}
	cfg.MinFaultsPerColumn = 2

	trial := 0
	exec := newScriptExecutor(golden)
	exec.classify = func(r interfaces.Range, mask byte) interfaces.TrialResult {
		trial++
		status := interfaces.GoodEncFault
		if trial == 2 {
			status = interfaces.GoodDecFault
		}
		return interfaces.TrialResult{
			Output:   interfaces.Block{1, 2, 3, 4},
			Status:   status,
			Column:   0,
			Duration: time.Millisecond,
		}
	}
	engine, _ := newHuntEngine(t, cfg, exec, &huntChecker{columns: 1})

	complete, err := engine.Run()
	require.NoError(t, err)
	assert.True(t, complete)

	enc, dec := engine.TraceCounts()
	assert.Equal(t, 1, enc, "first trial's pair follows the final trial into the decryption direction")
	assert.Equal(t, 3, dec)
}

// TestHuntReplaysPriorLog tests that logged ranges replay verbatim in file
// order with no re-splitting or sorting
func TestHuntReplaysPriorLog(t *testing.T) {
	golden := tableOf(32)
	cfg := newHuntConfig(t, golden)
	cfg.FromLeft = true
	cfg.FaultMasks = []byte{0x01}

	prior := filepath.Join(cfg.OutputDir, "prior.log")
	require.NoError(t, os.WriteFile(prior, []byte(
		"Lvl 000 [0x00000010-0x00000014[ ^0x00 74657374 -> Crash\n"+
			"Lvl 001 [0x00000004-0x00000008[ ^0xFF 74657374 -> NoFault\n"), 0644))
	cfg.ReplayLog = prior

	exec := newScriptExecutor(golden)
	exec.classify = func(r interfaces.Range, mask byte) interfaces.TrialResult {
		return interfaces.TrialResult{
			Output:   exec.goldenOut.Clone(),
			Status:   interfaces.NoFault,
			Column:   -1,
			Duration: time.Millisecond,
		}
	}
	engine, _ := newHuntEngine(t, cfg, exec, &huntChecker{columns: 4})

	complete, err := engine.Run()
	require.NoError(t, err)
	assert.False(t, complete)

	assert.Equal(t, []interfaces.Range{span(16, 20), span(4, 8)}, exec.ranges)
}

// TestAbortStopsHunt tests that the abort flag unwinds the hunt at the next
// trial boundary while the normal exit path still runs
func TestAbortStopsHunt(t *testing.T) {
	golden := tableOf(64)
	cfg := newHuntConfig(t, golden)
	cfg.MaxLeaf = 4
	cfg.FromLeft = true
	cfg.FaultMasks = []byte{0x55}

	exec := newScriptExecutor(golden)
	engine, _ := newHuntEngine(t, cfg, exec, &huntChecker{columns: 4})

	trial := 0
	exec.classify = func(r interfaces.Range, mask byte) interfaces.TrialResult {
		trial++
		if trial == 3 {
			engine.Abort()
		}
		return interfaces.TrialResult{
			Output:   exec.goldenOut.Clone(),
			Status:   interfaces.NoFault,
			Column:   -1,
			Duration: time.Millisecond,
		}
	}

	complete, err := engine.Run()
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Len(t, exec.ranges, 3, "no trial may start after the abort")
	assert.Equal(t, 1, exec.cleanups, "aborted runs still clean up")
}

// TestTrialLinesReplayable tests that a line written by one hunt parses back
// into the same range for the next
func TestTrialLinesReplayable(t *testing.T) {
	golden := tableOf(32)
	cfg := newHuntConfig(t, golden)
	cfg.RangeSpec = "5:6"
	cfg.FromLeft = true
	cfg.FaultMasks = []byte{0x42}
	cfg.MinFaultsPerColumn = 1

	exec := newScriptExecutor(golden)
	exec.classify = func(r interfaces.Range, mask byte) interfaces.TrialResult {
		return interfaces.TrialResult{
			Output:   interfaces.Block{1, 2, 3, 4},
			Status:   interfaces.GoodEncFault,
			Column:   0,
			Duration: time.Millisecond,
		}
	}
	engine, _ := newHuntEngine(t, cfg, exec, &huntChecker{columns: 1})

	_, err := engine.Run()
	require.NoError(t, err)

	ranges, err := ReplayRanges(cfg.RunLog)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.Range{span(5, 6)}, ranges)
}
