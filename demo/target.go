// Author: KleaSCM
// Email: KleaSCM@gmail.com
// File: target.go
// Description: Demo whitebox target for the Akaylee DFA engine. Implements AES-128
// with its expanded round key schedule loaded from an external table file, so a
// corrupted table byte perturbs the cipher exactly like a whitebox data fault.
// Faults landing in the eighth round key surface as single-column ciphertext
// differences, which is what the hunt command is built to find.

package main

import (
	"encoding/hex"
	"fmt"
	"os"
)

const (
	blockBytes = 16
	tableBytes = 176 // 11 round keys of 16 bytes each
)

var sbox = [256]byte{
	0x63, 0x7c, 0x77, 0x7b, 0xf2, 0x6b, 0x6f, 0xc5, 0x30, 0x01, 0x67, 0x2b, 0xfe, 0xd7, 0xab, 0x76,
	0xca, 0x82, 0xc9, 0x7d, 0xfa, 0x59, 0x47, 0xf0, 0xad, 0xd4, 0xa2, 0xaf, 0x9c, 0xa4, 0x72, 0xc0,
	0xb7, 0xfd, 0x93, 0x26, 0x36, 0x3f, 0xf7, 0xcc, 0x34, 0xa5, 0xe5, 0xf1, 0x71, 0xd8, 0x31, 0x15,
	0x04, 0xc7, 0x23, 0xc3, 0x18, 0x96, 0x05, 0x9a, 0x07, 0x12, 0x80, 0xe2, 0xeb, 0x27, 0xb2, 0x75,
	0x09, 0x83, 0x2c, 0x1a, 0x1b, 0x6e, 0x5a, 0xa0, 0x52, 0x3b, 0xd6, 0xb3, 0x29, 0xe3, 0x2f, 0x84,
	0x53, 0xd1, 0x00, 0xed, 0x20, 0xfc, 0xb1, 0x5b, 0x6a, 0xcb, 0xbe, 0x39, 0x4a, 0x4c, 0x58, 0xcf,
	0xd0, 0xef, 0xaa, 0xfb, 0x43, 0x4d, 0x33, 0x85, 0x45, 0xf9, 0x02, 0x7f, 0x50, 0x3c, 0x9f, 0xa8,
	0x51, 0xa3, 0x40, 0x8f, 0x92, 0x9d, 0x38, 0xf5, 0xbc, 0xb6, 0xda, 0x21, 0x10, 0xff, 0xf3, 0xd2,
	0xcd, 0x0c, 0x13, 0xec, 0x5f, 0x97, 0x44, 0x17, 0xc4, 0xa7, 0x7e, 0x3d, 0x64, 0x5d, 0x19, 0x73,
	0x60, 0x81, 0x4f, 0xdc, 0x22, 0x2a, 0x90, 0x88, 0x46, 0xee, 0xb8, 0x14, 0xde, 0x5e, 0x0b, 0xdb,
	0xe0, 0x32, 0x3a, 0x0a, 0x49, 0x06, 0x24, 0x5c, 0xc2, 0xd3, 0xac, 0x62, 0x91, 0x95, 0xe4, 0x79,
	0xe7, 0xc8, 0x37, 0x6d, 0x8d, 0xd5, 0x4e, 0xa9, 0x6c, 0x56, 0xf4, 0xea, 0x65, 0x7a, 0xae, 0x08,
	0xba, 0x78, 0x25, 0x2e, 0x1c, 0xa6, 0xb4, 0xc6, 0xe8, 0xdd, 0x74, 0x1f, 0x4b, 0xbd, 0x8b, 0x8a,
	0x70, 0x3e, 0xb5, 0x66, 0x48, 0x03, 0xf6, 0x0e, 0x61, 0x35, 0x57, 0xb9, 0x86, 0xc1, 0x1d, 0x9e,
	0xe1, 0xf8, 0x98, 0x11, 0x69, 0xd9, 0x8e, 0x94, 0x9b, 0x1e, 0x87, 0xe9, 0xce, 0x55, 0x28, 0xdf,
	0x8c, 0xa1, 0x89, 0x0d, 0xbf, 0xe6, 0x42, 0x68, 0x41, 0x99, 0x2d, 0x0f, 0xb0, 0x54, 0xbb, 0x16,
}

var rcon = [10]byte{0x01, 0x02, 0x04, 0x08, 0x10, 0x20, 0x40, 0x80, 0x1b, 0x36}

// expandKey derives the 176-byte AES-128 round key schedule from a raw key.
// Only used by the expand mode; encryption reads the schedule straight from
// the table file so every table byte stays live for fault injection.
func expandKey(key []byte) []byte {
	rk := make([]byte, tableBytes)
	copy(rk, key)
	for i := blockBytes; i < tableBytes; i += 4 {
		a0, a1, a2, a3 := rk[i-4], rk[i-3], rk[i-2], rk[i-1]
		if i%blockBytes == 0 {
			a0, a1, a2, a3 = sbox[a1]^rcon[i/blockBytes-1], sbox[a2], sbox[a3], sbox[a0]
		}
		rk[i] = rk[i-16] ^ a0
		rk[i+1] = rk[i-15] ^ a1
		rk[i+2] = rk[i-14] ^ a2
		rk[i+3] = rk[i-13] ^ a3
	}
	return rk
}

func xtime(b byte) byte {
	if b&0x80 != 0 {
		return b<<1 ^ 0x1b
	}
	return b << 1
}

func subBytes(s *[16]byte) {
	for i := range s {
		s[i] = sbox[s[i]]
	}
}

// shiftRows rotates row r of the column-major state left by r positions
func shiftRows(s *[16]byte) {
	var t [16]byte
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			t[4*c+r] = s[4*((c+r)%4)+r]
		}
	}
	*s = t
}

func mixColumns(s *[16]byte) {
	for c := 0; c < 4; c++ {
		a0, a1, a2, a3 := s[4*c], s[4*c+1], s[4*c+2], s[4*c+3]
		s[4*c] = xtime(a0) ^ xtime(a1) ^ a1 ^ a2 ^ a3
		s[4*c+1] = a0 ^ xtime(a1) ^ xtime(a2) ^ a2 ^ a3
		s[4*c+2] = a0 ^ a1 ^ xtime(a2) ^ xtime(a3) ^ a3
		s[4*c+3] = xtime(a0) ^ a0 ^ a1 ^ a2 ^ xtime(a3)
	}
}

func addRoundKey(s *[16]byte, rk []byte) {
	for i := range s {
		s[i] ^= rk[i]
	}
}

// encryptBlock runs AES-128 with a caller-supplied schedule.
// Sanity vector: key 000102030405060708090a0b0c0d0e0f with plaintext
// 00112233445566778899aabbccddeeff gives 69c4e0d86a7b0430d8cdb78070b4c55a.
func encryptBlock(rk, block []byte) []byte {
	var s [16]byte
	copy(s[:], block)
	addRoundKey(&s, rk[:16])
	for r := 1; r <= 9; r++ {
		subBytes(&s)
		shiftRows(&s)
		mixColumns(&s)
		addRoundKey(&s, rk[16*r:16*r+16])
	}
	subBytes(&s)
	shiftRows(&s)
	addRoundKey(&s, rk[160:176])
	return s[:]
}

func usage() {
	fmt.Println("Usage: target <plaintext-hex> [table-file]")
	fmt.Println("       target expand <key-hex> <table-file>")
	fmt.Println("Encrypts one AES-128 block using the round key table file (default table.bin).")
	os.Exit(1)
}

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "expand" {
		if len(os.Args) != 4 {
			usage()
		}
		key, err := hex.DecodeString(os.Args[2])
		if err != nil || len(key) != blockBytes {
			fmt.Println("Key must be 32 hex characters")
			os.Exit(1)
		}
		if err := os.WriteFile(os.Args[3], expandKey(key), 0644); err != nil {
			fmt.Println("Failed to write table:", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d-byte round key table to %s\n", tableBytes, os.Args[3])
		return
	}

	if len(os.Args) < 2 {
		usage()
	}
	plaintext, err := hex.DecodeString(os.Args[1])
	if err != nil || len(plaintext) != blockBytes {
		fmt.Println("Plaintext must be 32 hex characters")
		os.Exit(1)
	}
	tableFile := "table.bin"
	if len(os.Args) >= 3 {
		tableFile = os.Args[2]
	}
	rk, err := os.ReadFile(tableFile)
	if err != nil {
		fmt.Println("Failed to read table:", err)
		os.Exit(1)
	}
	if len(rk) != tableBytes {
		fmt.Printf("Table must be exactly %d bytes, got %d\n", tableBytes, len(rk))
		os.Exit(1)
	}
	fmt.Println(hex.EncodeToString(encryptBlock(rk, plaintext)))
}
