/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reporter.go
Description: Reporter interface and implementations for Akaylee DFA telemetry.
Surfaces fault trials, nailing passes, and confirmed candidates to the operator
without touching the replayable run log itself.
*/

package core

import (
	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
)

// Reporter defines the interface for hunt telemetry hooks.
// Allows the engine to notify listeners of trial and confirmation events.
type Reporter interface {
	// OnTrial is called after every fault trial with its run log line.
	OnTrial(line string, result interfaces.TrialResult)
	// OnNailing is called when an exploitable range is about to be re-split.
	OnNailing(r interfaces.Range)
	// OnConfirmed is called for every flushed candidate pair.
	OnConfirmed(line string, status interfaces.FaultStatus, column int)
}

// LoggerReporter surfaces hunt events through the operator logger.
// Per-trial lines land at debug level so long hunts stay quiet by
// default, confirmations at info.
type LoggerReporter struct {
	logger *logrus.Logger
}

// NewLoggerReporter creates a new LoggerReporter.
func NewLoggerReporter(logger *logrus.Logger) *LoggerReporter {
	return &LoggerReporter{logger: logger}
}

// OnTrial logs the trial line with its classification.
func (r *LoggerReporter) OnTrial(line string, result interfaces.TrialResult) {
	r.logger.WithFields(logrus.Fields{
		"status":   result.Status.String(),
		"duration": result.Duration,
	}).Debug(line)
}

// OnNailing logs the range about to be subdivided.
func (r *LoggerReporter) OnNailing(rg interfaces.Range) {
	r.logger.Debugf("Nailing %s", rg)
}

// OnConfirmed logs a flushed candidate pair.
func (r *LoggerReporter) OnConfirmed(line string, status interfaces.FaultStatus, column int) {
	r.logger.WithFields(logrus.Fields{
		"direction": status.String(),
		"column":    column,
	}).Info(line + " Logged")
}

// NullReporter discards all hunt events.
type NullReporter struct{}

// OnTrial discards the event.
func (NullReporter) OnTrial(line string, result interfaces.TrialResult) {}

// OnNailing discards the event.
func (NullReporter) OnNailing(r interfaces.Range) {}

// OnConfirmed discards the event.
func (NullReporter) OnConfirmed(line string, status interfaces.FaultStatus, column int) {}
