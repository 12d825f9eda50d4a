/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types.go
Description: Core types for the Akaylee DFA engine. Defines the fundamental data
structures used throughout a hunt including pending candidates, per-column fault
bookkeeping, and run statistics.
*/

package core

import (
	"sync/atomic"
	"time"

	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
)

// Candidate represents a not-yet-confirmed exploitable fault at a minimal leaf
// Candidates accumulate while further masks are tried at the same location and
// are flushed or discarded together
type Candidate struct {
	Line string               `json:"line"` // Run log line describing the trial
	Pair interfaces.TracePair `json:"pair"` // Observed input/output block pair
}

// ColumnCounters tracks confirmed faults per cipher-state column for one
// direction. The column space is sized by the checker; the hunt is complete
// once every column reaches the configured minimum in either direction.
type ColumnCounters []int

// NewColumnCounters creates counters for a column space of the given size.
// Sizes <= 0 fall back to the default column count.
func NewColumnCounters(columns int) ColumnCounters {
	if columns <= 0 {
		columns = interfaces.DefaultColumns
	}
	return make(ColumnCounters, columns)
}

// Increment bumps the counter for the given column
// Out-of-range columns are ignored; -1 marks "no column"
func (c ColumnCounters) Increment(col int) {
	if col >= 0 && col < len(c) {
		c[col]++
	}
}

// Complete reports whether every column has reached min confirmations
func (c ColumnCounters) Complete(min int) bool {
	if len(c) == 0 {
		return false
	}
	for _, n := range c {
		if n < min {
			return false
		}
	}
	return true
}

// HuntStats tracks overall acquisition statistics
// Uses atomic operations so signal-driven dumps can read them safely
type HuntStats struct {
	Trials        int64     `json:"trials"`          // Total fault trials executed
	NoFaults      int64     `json:"no_faults"`       // Trials with unchanged output
	MinorFaults   int64     `json:"minor_faults"`    // Corrupted but useless outputs
	MajorFaults   int64     `json:"major_faults"`    // Outputs too damaged to exploit
	GoodEncFaults int64     `json:"good_enc_faults"` // Exploitable encryption faults
	GoodDecFaults int64     `json:"good_dec_faults"` // Exploitable decryption faults
	Loops         int64     `json:"loops"`           // Trials killed by the adaptive timeout
	Crashes       int64     `json:"crashes"`         // Spawn or decode failures
	Confirmed     int64     `json:"confirmed"`       // Flushed candidate pairs
	MaxLevel      int64     `json:"max_level"`       // Deepest diagnostic level reached
	StartTime     time.Time `json:"start_time"`      // When the hunt started
}

// NewHuntStats creates statistics with the clock started
func NewHuntStats() *HuntStats {
	return &HuntStats{StartTime: time.Now()}
}

// RecordTrial atomically counts one trial under its status
func (s *HuntStats) RecordTrial(status interfaces.FaultStatus) {
	atomic.AddInt64(&s.Trials, 1)
	switch status {
	case interfaces.NoFault:
		atomic.AddInt64(&s.NoFaults, 1)
	case interfaces.MinorFault:
		atomic.AddInt64(&s.MinorFaults, 1)
	case interfaces.MajorFault:
		atomic.AddInt64(&s.MajorFaults, 1)
	case interfaces.GoodEncFault:
		atomic.AddInt64(&s.GoodEncFaults, 1)
	case interfaces.GoodDecFault:
		atomic.AddInt64(&s.GoodDecFaults, 1)
	case interfaces.Loop:
		atomic.AddInt64(&s.Loops, 1)
	case interfaces.Crash:
		atomic.AddInt64(&s.Crashes, 1)
	}
}

// IncrementConfirmed atomically counts one flushed candidate
func (s *HuntStats) IncrementConfirmed() {
	atomic.AddInt64(&s.Confirmed, 1)
}

// NoteLevel records the deepest level the search has reached
func (s *HuntStats) NoteLevel(level int) {
	for {
		cur := atomic.LoadInt64(&s.MaxLevel)
		if int64(level) <= cur || atomic.CompareAndSwapInt64(&s.MaxLevel, cur, int64(level)) {
			return
		}
	}
}

// TrialsPerSecond returns the current trial rate
func (s *HuntStats) TrialsPerSecond() float64 {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.Trials)) / elapsed
}

// Snapshot returns the statistics as loggable fields
func (s *HuntStats) Snapshot() map[string]interface{} {
	snap := make(map[string]interface{})
	snap["trials"] = atomic.LoadInt64(&s.Trials)
	snap["no_faults"] = atomic.LoadInt64(&s.NoFaults)
	snap["minor_faults"] = atomic.LoadInt64(&s.MinorFaults)
	snap["major_faults"] = atomic.LoadInt64(&s.MajorFaults)
	snap["good_enc_faults"] = atomic.LoadInt64(&s.GoodEncFaults)
	snap["good_dec_faults"] = atomic.LoadInt64(&s.GoodDecFaults)
	snap["loops"] = atomic.LoadInt64(&s.Loops)
	snap["crashes"] = atomic.LoadInt64(&s.Crashes)
	snap["confirmed"] = atomic.LoadInt64(&s.Confirmed)
	snap["max_level"] = atomic.LoadInt64(&s.MaxLevel)
	snap["trials_per_second"] = s.TrialsPerSecond()
	return snap
}
