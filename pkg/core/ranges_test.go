/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: ranges_test.go
Description: Tests for range splitting and the work tree address sources. Pins
the exact split geometry (replayed logs depend on it), window spec parsing, and
run log replay including malformed input.
*/

package core

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSplitRangeNoForce tests that small ranges pass through untouched
func TestSplitRangeNoForce(t *testing.T) {
	leaves := SplitRange(span(0, 10), 0, 10)
	assert.Equal(t, []interfaces.Range{span(0, 10)}, leaves)

	leaves = SplitRange(span(0, 10), 0, 1000)
	assert.Equal(t, []interfaces.Range{span(0, 10)}, leaves)
}

// TestSplitRangeForced tests the single forced split every caller uses
func TestSplitRangeForced(t *testing.T) {
	leaves := SplitRange(span(0, 8), 1, 8)
	require.Equal(t, []interfaces.Range{span(0, 4), span(4, 8)}, leaves)

	// Children are final: re-splitting them without force changes nothing
	for _, leaf := range leaves {
		assert.Equal(t, []interfaces.Range{leaf}, SplitRange(leaf, 0, 8))
	}
}

// TestSplitRangePowerOfTwoBias tests that the left child is a power of two
func TestSplitRangePowerOfTwoBias(t *testing.T) {
	// 300 bytes: left child covers the smallest power of two above half
	leaves := SplitRange(span(0, 300), 1, 256)
	assert.Equal(t, []interfaces.Range{span(0, 256), span(256, 300)}, leaves)

	// 10 bytes with a 4-byte cap recurses past the forced level
	leaves = SplitRange(span(0, 10), 1, 4)
	assert.Equal(t, []interfaces.Range{span(0, 4), span(4, 8), span(8, 10)}, leaves)
}

// TestSplitRangeTilesParent tests that leaves cover the parent exactly
func TestSplitRangeTilesParent(t *testing.T) {
	parent := span(0x1000, 0x5237)
	leaves := SplitRange(parent, 1, 0x400)
	require.NotEmpty(t, leaves)

	cursor := parent.Start
	for _, leaf := range leaves {
		assert.Equal(t, cursor, leaf.Start, "leaves must be contiguous")
		assert.Less(t, leaf.Start, leaf.End, "leaves must be non-empty")
		assert.LessOrEqual(t, leaf.Size(), uint64(0x400))
		cursor = leaf.End
	}
	assert.Equal(t, parent.End, cursor, "leaves must reach the parent end")
}

// TestSplitRangeForcedOnSingleByte tests forcing a split below one byte
func TestSplitRangeForcedOnSingleByte(t *testing.T) {
	// A forced split of a single byte yields the byte plus an empty
	// remainder; the search skips empty ranges harmlessly
	leaves := SplitRange(span(5, 6), 1, 64)
	assert.Equal(t, []interfaces.Range{span(5, 6), span(6, 6)}, leaves)
}

// TestParseRangeSpec tests explicit window parsing
func TestParseRangeSpec(t *testing.T) {
	r, err := ParseRangeSpec("0x1000:0x5000")
	require.NoError(t, err)
	assert.Equal(t, span(0x1000, 0x5000), r)

	r, err = ParseRangeSpec("4096:20480")
	require.NoError(t, err)
	assert.Equal(t, span(4096, 20480), r)

	r, err = ParseRangeSpec("0x10: 32")
	require.NoError(t, err)
	assert.Equal(t, span(16, 32), r)
}

// TestParseRangeSpecErrors tests window spec rejection
func TestParseRangeSpecErrors(t *testing.T) {
	cases := []struct {
		name string
		spec string
	}{
		{"no separator", "0x1000"},
		{"bad start", "zzz:0x10"},
		{"bad end", "0x10:zzz"},
		{"inverted", "0x20:0x10"},
		{"empty window", "0x10:0x10"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRangeSpec(tc.spec)
			assert.Error(t, err)
		})
	}
}

// TestReplayRanges tests loading ranges back out of a run log
func TestReplayRanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prior.log")
	lines := fmt.Sprintf("Lvl 000 %s ^0x01 74657374 -> DEADBEEF GoodEncFault Column:2\n", span(0x1000, 0x1100)) +
		fmt.Sprintf("Lvl 002 %s ^0xFF 74657374 -> Crash\n", span(0x0000, 0x0040)) +
		fmt.Sprintf("Lvl 002 %s ^0x80 74657374 -> 00112233 MinorFault\n", span(0x1000, 0x1100))
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))

	ranges, err := ReplayRanges(path)
	require.NoError(t, err)

	// Verbatim file order, duplicates included, nothing re-split
	assert.Equal(t, []interfaces.Range{
		span(0x1000, 0x1100),
		span(0x0000, 0x0040),
		span(0x1000, 0x1100),
	}, ranges)
}

// TestReplayRangesMalformed tests that a bad log fails before any trial
func TestReplayRangesMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.log")
	content := "Lvl 000 [0x00001000-0x00001100[ ^0x01 74657374 -> Crash\nshort line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := ReplayRanges(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ReplayRanges(filepath.Join(t.TempDir(), "missing.log"))
	assert.Error(t, err)
}
