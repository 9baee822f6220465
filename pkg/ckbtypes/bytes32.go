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

package ckbtypes

import (
	"database/sql/driver"
	"fmt"
)

// Bytes32 is a fixed 32-byte value (tx hash, block hash, code hash,
// script hash) stored as raw bytes in the DB and rendered hex on the wire
// and in JSON.
type Bytes32 [32]byte

func NewBytes32FromHex(h string) (Bytes32, error) {
	var b Bytes32
	raw, err := HexToBytes(h)
	if err != nil {
		return b, err
	}
	if len(raw) != 32 {
		return b, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(b[:], raw)
	return b, nil
}

func NewBytes32FromSlice(b []byte) Bytes32 {
	var out Bytes32
	copy(out[:], b)
	return out
}

func (b Bytes32) String() string {
	return BytesToHex(b[:])
}

func (b Bytes32) Bytes() []byte {
	return b[:]
}

func (b Bytes32) IsZero() bool {
	return b == Bytes32{}
}

// MarshalJSON renders the canonical "0x"-prefixed hex form.
func (b Bytes32) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

func (b *Bytes32) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := NewBytes32FromHex(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Value implements database/sql/driver.Valuer so GORM persists Bytes32 as
// a raw BLOB/bytea column rather than text.
func (b Bytes32) Value() (driver.Value, error) {
	return b[:], nil
}

// Scan implements sql.Scanner for the reverse direction.
func (b *Bytes32) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		if len(v) != 32 {
			return fmt.Errorf("expected 32 bytes, got %d", len(v))
		}
		copy(b[:], v)
		return nil
	case nil:
		*b = Bytes32{}
		return nil
	default:
		return fmt.Errorf("unsupported Scan source for Bytes32: %T", src)
	}
}
