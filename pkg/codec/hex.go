/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: hex.go
Description: Default hex codec for target input and output. Encodes the reference
input block as a single lowercase hex argument and decodes hex program output back
into fixed-size blocks. Targets with exotic I/O conventions plug in their own
encoder/decoder instead.
*/

package codec

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
)

// HexEncoder renders the reference input block as one lowercase hex argument
// Produces exactly 2 characters per byte, matching what most whitebox
// challenge binaries expect on their command line
type HexEncoder struct{}

// NewHexEncoder creates a new hex input encoder
func NewHexEncoder() *HexEncoder {
	return &HexEncoder{}
}

// Encode returns the block as a single zero-padded lowercase hex string
func (e *HexEncoder) Encode(block interfaces.Block, blockSize int) []string {
	padded := make([]byte, blockSize)
	copy(padded[blockSize-len(block):], block)
	return []string{hex.EncodeToString(padded)}
}

// HexDecoder parses target stdout as one big hex number
// Tolerates surrounding whitespace, an optional 0x prefix and missing
// leading zeros; anything else is undecodable
type HexDecoder struct{}

// NewHexDecoder creates a new hex output decoder
func NewHexDecoder() *HexDecoder {
	return &HexDecoder{}
}

// Decode parses raw output into a block of exactly blockSize bytes.
// A non-nil error marks the output as undecodable; callers map that onto
// the Crash status rather than propagating it.
func (d *HexDecoder) Decode(raw []byte, blockSize int) (interfaces.Block, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, fmt.Errorf("empty output")
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("output is not hex: %q", s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("output is negative: %q", s)
	}
	if n.BitLen() > 8*blockSize {
		return nil, fmt.Errorf("output wider than %d-byte block: %q", blockSize, s)
	}
	block := make(interfaces.Block, blockSize)
	n.FillBytes(block)
	return block, nil
}

// ParseBlock parses a hex string into a block of exactly blockSize bytes.
// Accepts the same forms as the output decoder; used for input overrides
// supplied on the command line.
func ParseBlock(s string, blockSize int) (interfaces.Block, error) {
	return NewHexDecoder().Decode([]byte(s), blockSize)
}

// DefaultInput returns the standard reference input block: the ASCII
// pattern "test" repeated to fill blockSize bytes.
func DefaultInput(blockSize int) interfaces.Block {
	pattern := bytes.Repeat([]byte("test"), (blockSize+3)/4)
	return interfaces.Block(pattern[:blockSize])
}
