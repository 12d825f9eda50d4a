/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: executor.go
Description: Target executor for the Akaylee DFA engine. Writes the corrupted table
to the shared data file, runs the target under the adaptive timeout, and folds every
process-level failure into a fault status so the search never has to care about
process management.
*/

package execution

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
)

// DefaultCalibrationTimeout bounds the golden run before the adaptive
// timeout has been derived from it.
const DefaultCalibrationTimeout = 10 * time.Second

// ProcessExecutor implements the TargetExecutor interface
// Spawns the target binary once per trial; the argument list is encoded
// a single time at initialization since the reference input never changes
type ProcessExecutor struct {
	targetBin  string   // Target executable path
	targetData string   // Shared data file overwritten every trial
	args       []string // Pre-encoded target arguments
	blockSize  int      // Cipher block size in bytes

	decoder interfaces.OutputDecoder
	checker interfaces.FaultChecker
	logger  *logrus.Logger

	timeout       time.Duration // Adaptive per-trial timeout
	shell         bool          // Run the command line through /bin/bash -c
	tolerateError bool          // Append "; exit 0" to the shell command line
	verbosity     int           // Passed through to the checker
}

// NewProcessExecutor creates a new process executor instance
func NewProcessExecutor(decoder interfaces.OutputDecoder, checker interfaces.FaultChecker, logger *logrus.Logger) *ProcessExecutor {
	return &ProcessExecutor{
		decoder: decoder,
		checker: checker,
		logger:  logger,
		timeout: DefaultCalibrationTimeout,
	}
}

// Initialize sets up the executor for the given target and reference input
// The argument list is derived here, exactly once; a nil encoder (or an
// encoder returning nil) means the target takes no arguments
func (e *ProcessExecutor) Initialize(config *interfaces.Config, input interfaces.Block, encoder interfaces.InputEncoder) error {
	if config == nil {
		return fmt.Errorf("executor config is nil")
	}
	if config.TargetBin == "" {
		return fmt.Errorf("target binary not set")
	}
	if config.TargetData == "" {
		return fmt.Errorf("target data file not set")
	}
	e.targetBin = config.TargetBin
	e.targetData = config.TargetData
	e.blockSize = config.BlockSize
	e.shell = config.Shell
	e.tolerateError = config.TolerateError
	e.verbosity = config.Verbosity
	if config.CalibrationTimeout > 0 {
		e.timeout = config.CalibrationTimeout
	}
	if encoder != nil {
		e.args = encoder.Encode(input, e.blockSize)
	}
	return nil
}

// Execute writes the table, runs the target and classifies the outcome.
// Never returns an error: a spawn or write failure maps to Crash, a
// timeout maps to Loop, and undecodable output maps to Crash.
func (e *ProcessExecutor) Execute(table []byte) interfaces.TrialResult {
	start := time.Now()

	if err := os.WriteFile(e.targetData, table, 0644); err != nil {
		e.logger.WithError(err).Error("Failed to write target data file")
		return e.failure(interfaces.Crash, start)
	}
	if e.targetBin == e.targetData {
		if err := os.Chmod(e.targetBin, 0755); err != nil {
			e.logger.WithError(err).Error("Failed to restore target permissions")
			return e.failure(interfaces.Crash, start)
		}
	}

	cmd := e.command()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Orphaned descendants inheriting stdout must not stall the reap
	cmd.WaitDelay = time.Second

	e.logger.Debugf("Running %s", strings.Join(append([]string{e.targetBin}, e.args...), " "))

	if err := cmd.Start(); err != nil {
		return e.failure(interfaces.Crash, start)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-done:
		// Exit code is deliberately ignored: whatever landed on stdout
		// decides the trial, matching targets that fault yet still print
	case <-time.After(e.timeout):
		cmd.Process.Kill()
		<-done
		return e.failure(interfaces.Loop, start)
	}

	output, err := e.decoder.Decode(stdout.Bytes(), e.blockSize)
	if err != nil {
		return e.failure(interfaces.Crash, start)
	}

	status, column := e.checker.Check(output, e.verbosity)
	return interfaces.TrialResult{
		Output:   output,
		Status:   status,
		Column:   column,
		Duration: time.Since(start),
	}
}

// SetTimeout installs the adaptive per-trial timeout
func (e *ProcessExecutor) SetTimeout(d time.Duration) {
	e.timeout = d
}

// Timeout returns the currently active timeout
func (e *ProcessExecutor) Timeout() time.Duration {
	return e.timeout
}

// Cleanup removes the shared data file
func (e *ProcessExecutor) Cleanup() error {
	if err := os.Remove(e.targetData); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove target data file: %w", err)
	}
	return nil
}

// command builds the exec.Cmd for one trial honoring the spawn mode
func (e *ProcessExecutor) command() *exec.Cmd {
	if e.shell || e.tolerateError {
		line := strings.Join(append([]string{e.targetBin}, e.args...), " ")
		if e.tolerateError {
			line += "; exit 0"
		}
		return exec.Command("/bin/bash", "-c", line)
	}
	return exec.Command(e.targetBin, e.args...)
}

// failure builds a result without output for a broken trial
func (e *ProcessExecutor) failure(status interfaces.FaultStatus, start time.Time) interfaces.TrialResult {
	return interfaces.TrialResult{
		Output:   nil,
		Status:   status,
		Column:   -1,
		Duration: time.Since(start),
	}
}
