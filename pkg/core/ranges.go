/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: ranges.go
Description: Address range handling for the Akaylee DFA engine. Implements the
deterministic power-of-two-biased range splitter and the three sources feeding
the initial work tree: the full table extent, an explicit start:end window, and
replay of a prior run log.
*/

package core

import (
	"bufio"
	"fmt"
	"math/bits"
	"os"
	"strconv"
	"strings"

	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
)

// SplitRange splits r into leaves no larger than maxLeaf. The left child
// always gets the smallest power of two covering half the parent, the right
// child the remainder, so repeated runs split identically and logged ranges
// replay exactly. forceDepth > 0 forces that many extra levels of splitting
// even when the range is already small enough.
func SplitRange(r interfaces.Range, forceDepth int, maxLeaf uint64) []interfaces.Range {
	size := r.End - r.Start
	if size == 0 || (size <= maxLeaf && forceDepth == 0) {
		return []interfaces.Range{r}
	}
	left := uint64(1) << bits.Len64((size-1)/2)
	if forceDepth > 0 {
		forceDepth--
	}
	leaves := SplitRange(interfaces.Range{Start: r.Start, End: r.Start + left}, forceDepth, maxLeaf)
	return append(leaves, SplitRange(interfaces.Range{Start: r.Start + left, End: r.End}, forceDepth, maxLeaf)...)
}

// ParseRangeSpec parses an explicit "start:end" address window. Both bounds
// accept decimal or 0x-prefixed hex. The window is half-open like every
// other range.
func ParseRangeSpec(spec string) (interfaces.Range, error) {
	startStr, endStr, found := strings.Cut(spec, ":")
	if !found {
		return interfaces.Range{}, fmt.Errorf("range spec %q: want start:end", spec)
	}
	start, err := strconv.ParseUint(strings.TrimSpace(startStr), 0, 64)
	if err != nil {
		return interfaces.Range{}, fmt.Errorf("range spec %q: bad start: %w", spec, err)
	}
	end, err := strconv.ParseUint(strings.TrimSpace(endStr), 0, 64)
	if err != nil {
		return interfaces.Range{}, fmt.Errorf("range spec %q: bad end: %w", spec, err)
	}
	if start >= end {
		return interfaces.Range{}, fmt.Errorf("range spec %q: start must be below end", spec)
	}
	return interfaces.Range{Start: start, End: end}, nil
}

// ReplayRanges loads the address ranges recorded in a prior run log, in file
// order and without re-splitting. Run log lines carry their bounds at fixed
// character offsets; anything that does not parse there fails the whole load
// so a bad log is caught before any fault trial runs.
func ReplayRanges(path string) ([]interfaces.Range, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay log: %w", err)
	}
	defer f.Close()

	var ranges []interfaces.Range
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if len(line) < 30 {
			return nil, fmt.Errorf("replay log %s line %d: too short for a range", path, lineNum)
		}
		start, err := strconv.ParseUint(line[9:19], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("replay log %s line %d: bad start: %w", path, lineNum, err)
		}
		end, err := strconv.ParseUint(line[20:30], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("replay log %s line %d: bad end: %w", path, lineNum, err)
		}
		ranges = append(ranges, interfaces.Range{Start: start, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read replay log: %w", err)
	}
	return ranges, nil
}
