// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ckbtypes holds the pure conversions between the chain's
// hexadecimal wire encoding and the store's compact binary/decimal-string
// encoding. Nothing in this package touches a database or the network.
package ckbtypes

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// HexToBytes strips an optional "0x"/"0X" prefix and decodes the remainder.
// An odd-length body is left-padded with a zero nibble, matching how CKB
// itself treats short hex bytes on the wire.
func HexToBytes(h string) ([]byte, error) {
	body := strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if len(body)%2 == 1 {
		body = "0" + body
	}
	b, err := hex.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("malformed hex %q: %w", h, err)
	}
	return b, nil
}

// BytesToHex renders b as a lower-case "0x"-prefixed hex string.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// LeftPadHex zero-pads the hex body of h (without its "0x" prefix) out to n
// characters. It never truncates: a body already >= n characters is
// returned unchanged.
func LeftPadHex(h string, n int) string {
	body := strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if len(body) < n {
		body = strings.Repeat("0", n-len(body)) + body
	}
	return "0x" + body
}

// HexToDecimalString decodes a big-endian hex-encoded integer (with or
// without "0x" prefix) and renders it as a decimal string, the form the
// store uses for numeric columns so that values larger than a signed
// 64-bit integer never overflow a SQL column type.
func HexToDecimalString(h string) (string, error) {
	b, err := HexToBytes(h)
	if err != nil {
		return "", err
	}
	v := new(big.Int).SetBytes(b)
	return v.String(), nil
}

// DecimalStringToHex is the inverse of HexToDecimalString.
func DecimalStringToHex(dec string) (string, error) {
	v, ok := new(big.Int).SetString(dec, 10)
	if !ok {
		return "", fmt.Errorf("malformed decimal integer %q", dec)
	}
	return BytesToHex(v.Bytes()), nil
}

// DataLEToUint128 reads the first 16 bytes of data as a little-endian
// unsigned 128-bit integer (zero-padding on the right if fewer than 16
// bytes are present) and renders the decimal string used for
// Cell.udt_amount.
func DataLEToUint128(data []byte) string {
	buf := make([]byte, 16)
	n := len(data)
	if n > 16 {
		n = 16
	}
	copy(buf, data[:n])
	// reverse into big-endian order for big.Int, which only parses
	// big-endian byte slices
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = buf[15-i]
	}
	v := new(big.Int).SetBytes(be)
	return v.String()
}
