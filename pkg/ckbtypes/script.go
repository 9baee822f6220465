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
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashType is the hash_type slot of a Script: "data" selects code by the
// blake2b hash of its bytecode, "type" selects code by the hash of the
// type script that governs it.
type HashType uint8

const (
	HashTypeData HashType = 0
	HashTypeType HashType = 1
)

func (h HashType) String() string {
	if h == HashTypeType {
		return "type"
	}
	return "data"
}

func ParseHashType(s string) (HashType, error) {
	switch s {
	case "data":
		return HashTypeData, nil
	case "type":
		return HashTypeType, nil
	default:
		return 0, fmt.Errorf("invalid hash_type %q, expected \"data\" or \"type\"", s)
	}
}

// Script is the (code_hash, hash_type, args) triple that classifies a
// cell's lock or type slot.
type Script struct {
	CodeHash Bytes32
	HashType HashType
	Args     []byte
}

// ckbHashPersonalization is CKB's blake2b personalization string, hashed
// in as a domain-separation prefix.
var ckbHashPersonalization = []byte("ckb-default-hash")

// ScriptHash computes the domain hash of a script's canonical
// serialization: code_hash || hash_type || args_len || args, blake2b-256.
// It is used purely as an interning key; nothing in this repo re-derives
// it from on-chain bytecode.
func ScriptHash(s Script) (Bytes32, error) {
	hasher, err := blake2b.New(32, nil)
	if err != nil {
		return Bytes32{}, err
	}
	_, _ = hasher.Write(ckbHashPersonalization)
	_, _ = hasher.Write(s.CodeHash[:])
	_, _ = hasher.Write([]byte{byte(s.HashType)})
	var argsLen [8]byte
	binary.LittleEndian.PutUint64(argsLen[:], uint64(len(s.Args)))
	_, _ = hasher.Write(argsLen[:])
	_, _ = hasher.Write(s.Args)
	return NewBytes32FromSlice(hasher.Sum(nil)), nil
}

// Validate checks the script shape: code_hash is 32 bytes (guaranteed by
// the Bytes32 type itself) and hash_type is one of the two enum values.
func (s Script) Validate() error {
	if s.HashType != HashTypeData && s.HashType != HashTypeType {
		return fmt.Errorf("invalid hash_type %d", s.HashType)
	}
	return nil
}
