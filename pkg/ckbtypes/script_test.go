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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHashType(t *testing.T) {
	ht, err := ParseHashType("data")
	require.NoError(t, err)
	assert.Equal(t, HashTypeData, ht)
	assert.Equal(t, "data", ht.String())

	ht, err = ParseHashType("type")
	require.NoError(t, err)
	assert.Equal(t, HashTypeType, ht)
	assert.Equal(t, "type", ht.String())

	_, err = ParseHashType("bananas")
	require.Regexp(t, "invalid hash_type", err)
}

func TestScriptHashDeterministic(t *testing.T) {
	s1 := Script{
		CodeHash: NewBytes32FromSlice(bytes.Repeat([]byte{0x01}, 32)),
		HashType: HashTypeData,
		Args:     []byte{0xde, 0xad},
	}
	h1a, err := ScriptHash(s1)
	require.NoError(t, err)
	h1b, err := ScriptHash(s1)
	require.NoError(t, err)
	assert.Equal(t, h1a, h1b)
	assert.False(t, h1a.IsZero())

	// every field contributes to the hash
	s2 := s1
	s2.HashType = HashTypeType
	h2, err := ScriptHash(s2)
	require.NoError(t, err)
	assert.NotEqual(t, h1a, h2)

	s3 := s1
	s3.Args = []byte{0xde, 0xae}
	h3, err := ScriptHash(s3)
	require.NoError(t, err)
	assert.NotEqual(t, h1a, h3)

	s4 := s1
	s4.CodeHash = NewBytes32FromSlice(bytes.Repeat([]byte{0x02}, 32))
	h4, err := ScriptHash(s4)
	require.NoError(t, err)
	assert.NotEqual(t, h1a, h4)
}

func TestScriptValidate(t *testing.T) {
	s := Script{
		CodeHash: NewBytes32FromSlice(bytes.Repeat([]byte{0x01}, 32)),
		HashType: HashTypeType,
	}
	require.NoError(t, s.Validate())

	s.HashType = HashType(9)
	require.Regexp(t, "invalid hash_type", s.Validate())
}
