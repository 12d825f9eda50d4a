/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analyzer.go
Description: AES fault analyzer for the Akaylee DFA engine. Classifies faulted
cipher outputs against a calibrated golden reference and maps exploitable
faults to the AES state column they disturb. Implements the FaultChecker
interface consumed by the hunt engine.
*/

package analysis

import (
	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
)

// AESBlockSize is the AES state size in bytes.
const AESBlockSize = 16

// aesColumns maps each AES state column to the ciphertext byte positions it
// reaches through the final ShiftRows. A fault injected between the last two
// MixColumns disturbs exactly one of these position sets.
var aesColumns = [4][4]int{
	{0, 13, 10, 7},
	{4, 1, 14, 11},
	{8, 5, 2, 15},
	{12, 9, 6, 3},
}

// AESChecker implements the FaultChecker interface for AES-128 targets.
// Compares trial outputs against the golden ciphertext captured during
// calibration and accepts faults whose difference footprint covers exactly
// one state column.
type AESChecker struct {
	golden  interfaces.Block // Golden reference output
	decrypt bool             // Target runs the inverse cipher
}

// NewAESChecker creates a fault analyzer for an encrypting AES target.
func NewAESChecker() *AESChecker {
	return &AESChecker{}
}

// SetDecrypt marks the target as decrypting. Exploitable faults are then
// reported as GoodDecFault instead of GoodEncFault.
func (c *AESChecker) SetDecrypt(decrypt bool) {
	c.decrypt = decrypt
}

// Calibrate stores the golden output that later checks compare against.
func (c *AESChecker) Calibrate(golden interfaces.Block, verbosity int) {
	c.golden = golden.Clone()
}

// Columns returns the number of AES state columns.
func (c *AESChecker) Columns() int {
	return len(aesColumns)
}

// Check classifies a trial output by its difference footprint against the
// golden reference. An output differing in exactly the four positions of one
// state column is exploitable in that column. Wider damage is reported as
// MajorFault so the engine keeps narrowing the corruption window, while
// smaller or off-pattern footprints are MinorFault and get discarded.
func (c *AESChecker) Check(output interfaces.Block, verbosity int) (interfaces.FaultStatus, int) {
	if len(output) != len(c.golden) {
		return interfaces.MajorFault, -1
	}

	diff := c.diffPositions(output)

	switch {
	case len(diff) == 0:
		return interfaces.NoFault, -1
	case len(diff) > len(aesColumns[0]):
		return interfaces.MajorFault, -1
	}

	if col := c.matchColumn(diff); col >= 0 {
		if c.decrypt {
			return interfaces.GoodDecFault, col
		}
		return interfaces.GoodEncFault, col
	}

	return interfaces.MinorFault, -1
}

// diffPositions returns the byte positions where output deviates from the
// golden reference.
func (c *AESChecker) diffPositions(output interfaces.Block) []int {
	diff := make([]int, 0, len(output))
	for i := range output {
		if output[i] != c.golden[i] {
			diff = append(diff, i)
		}
	}
	return diff
}

// matchColumn returns the state column whose position set equals the
// difference footprint, or -1 when no column matches.
func (c *AESChecker) matchColumn(diff []int) int {
	if len(diff) != len(aesColumns[0]) {
		return -1
	}

	var touched [AESBlockSize]bool
	for _, pos := range diff {
		touched[pos] = true
	}

	for col, positions := range aesColumns {
		matched := true
		for _, pos := range positions {
			if !touched[pos] {
				matched = false
				break
			}
		}
		if matched {
			return col
		}
	}

	return -1
}
