/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: recorder.go
Description: Trace recorder for the Akaylee DFA engine. Accumulates confirmed
(input, output) block pairs per direction and serializes them as hex text or
Riscure TRS files. Safe to dump from the signal goroutine while the hunt is
still appending.
*/

package traces

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
)

// Trace serialization formats accepted by the recorder.
const (
	FormatDefault = "default" // Hex text, one "INPUT OUTPUT" line per pair
	FormatTRS     = "trs"     // Riscure Inspector TRS with crypto data only
)

// Recorder accumulates confirmed trace pairs for both fault directions
// Both sequences start with the golden pair; a direction with only the
// golden pair is considered trivial and is never written out
type Recorder struct {
	mu sync.Mutex

	blockSize int    // Cipher block size in bytes
	format    string // Output serialization format
	outputDir string // Directory receiving trace files
	initStamp string // Run start stamp baked into every file name

	encPairs []interfaces.TracePair // Encryption direction, golden pair first
	decPairs []interfaces.TracePair // Decryption direction, golden pair first

	logger *logrus.Logger
}

// NewRecorder creates a recorder for one acquisition run
func NewRecorder(blockSize int, format, outputDir, initStamp string, logger *logrus.Logger) *Recorder {
	return &Recorder{
		blockSize: blockSize,
		format:    format,
		outputDir: outputDir,
		initStamp: initStamp,
		logger:    logger,
	}
}

// Seed installs the golden pair at the head of both direction sequences
func (r *Recorder) Seed(golden interfaces.TracePair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encPairs = append(r.encPairs, clonePair(golden))
	r.decPairs = append(r.decPairs, clonePair(golden))
}

// Append records a confirmed pair under the direction of its status
// Non-directional statuses are ignored
func (r *Recorder) Append(status interfaces.FaultStatus, pair interfaces.TracePair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch status {
	case interfaces.GoodEncFault:
		r.encPairs = append(r.encPairs, clonePair(pair))
	case interfaces.GoodDecFault:
		r.decPairs = append(r.decPairs, clonePair(pair))
	}
}

// Counts returns the number of pairs held per direction, golden included
func (r *Recorder) Counts() (enc int, dec int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.encPairs), len(r.decPairs)
}

// Save writes every non-trivial direction to disk in the configured format
// and returns the files written. An unknown format is an error, but one that
// leaves all accumulated pairs intact for a later attempt.
func (r *Recorder) Save() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.encPairs) <= 1 && len(r.decPairs) <= 1 {
		r.logger.Info("No trace to save, sorry")
		return nil, nil
	}

	switch r.format {
	case FormatDefault:
		return r.saveText()
	case FormatTRS:
		return r.saveTRS()
	default:
		return nil, fmt.Errorf("unknown trace format: %s", r.format)
	}
}

// saveText writes "INPUT OUTPUT" hex lines, one file per direction
func (r *Recorder) saveText() ([]string, error) {
	var files []string
	flush := time.Now().Format("150405")
	for _, dir := range []struct {
		pairs []interfaces.TracePair
		mode  string
	}{{r.encPairs, "enc"}, {r.decPairs, "dec"}} {
		if len(dir.pairs) <= 1 {
			continue
		}
		name := fmt.Sprintf("dfa_%s_%s-%s_%d.txt", dir.mode, r.initStamp, flush, len(dir.pairs))
		path := filepath.Join(r.outputDir, name)
		r.logger.Infof("Saving %d traces in %s", len(dir.pairs), name)

		var buf bytes.Buffer
		for _, pair := range dir.pairs {
			fmt.Fprintf(&buf, "%s %s\n", pair.Input.Hex(), pair.Output.Hex())
		}
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return files, fmt.Errorf("failed to write trace file %s: %w", name, err)
		}
		files = append(files, path)
	}
	return files, nil
}

// saveTRS writes Riscure TRS files carrying crypto data and no samples
func (r *Recorder) saveTRS() ([]string, error) {
	var files []string
	flush := time.Now().Format("150405")
	for _, dir := range []struct {
		pairs []interfaces.TracePair
		mode  string
	}{{r.encPairs, "enc"}, {r.decPairs, "dec"}} {
		if len(dir.pairs) <= 1 {
			continue
		}
		name := fmt.Sprintf("trs_%s_%s-%s_%d.trs", dir.mode, r.initStamp, flush, len(dir.pairs))
		path := filepath.Join(r.outputDir, name)
		r.logger.Infof("Saving %d traces in %s", len(dir.pairs), name)

		var buf bytes.Buffer
		// Number of traces
		buf.Write([]byte{0x41, 0x04})
		binary.Write(&buf, binary.LittleEndian, uint32(len(dir.pairs)))
		// Number of samples per trace
		buf.Write([]byte{0x42, 0x04})
		binary.Write(&buf, binary.LittleEndian, uint32(0))
		// Sample coding
		buf.Write([]byte{0x43, 0x01, 0x01})
		// Length of cryptographic data
		buf.Write([]byte{0x44, 0x02})
		binary.Write(&buf, binary.LittleEndian, uint16(2*r.blockSize))
		// End of header
		buf.Write([]byte{0x5F, 0x00})
		for _, pair := range dir.pairs {
			buf.Write(padBlock(pair.Input, r.blockSize))
			buf.Write(padBlock(pair.Output, r.blockSize))
		}
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return files, fmt.Errorf("failed to write trace file %s: %w", name, err)
		}
		files = append(files, path)
	}
	return files, nil
}

// clonePair deep-copies a pair so later block reuse cannot corrupt history
func clonePair(pair interfaces.TracePair) interfaces.TracePair {
	return interfaces.TracePair{
		Input:  pair.Input.Clone(),
		Output: pair.Output.Clone(),
	}
}

// padBlock left-pads a block to exactly size bytes for raw serialization
func padBlock(b interfaces.Block, size int) []byte {
	if len(b) == size {
		return b
	}
	padded := make([]byte, size)
	copy(padded[size-len(b):], b)
	return padded
}
