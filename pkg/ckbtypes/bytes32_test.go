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
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes32RoundTrip(t *testing.T) {
	h := "0x" + strings.Repeat("01", 32)
	b, err := NewBytes32FromHex(h)
	require.NoError(t, err)
	assert.Equal(t, h, b.String())
	assert.Len(t, b.Bytes(), 32)
	assert.False(t, b.IsZero())

	_, err = NewBytes32FromHex("0x0102")
	require.Regexp(t, "expected 32 bytes", err)

	_, err = NewBytes32FromHex("0xzz")
	require.Error(t, err)
}

func TestBytes32JSON(t *testing.T) {
	h := "0x" + strings.Repeat("ab", 32)
	b, err := NewBytes32FromHex(h)
	require.NoError(t, err)

	j, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, `"`+h+`"`, string(j))

	var b2 Bytes32
	require.NoError(t, json.Unmarshal(j, &b2))
	assert.Equal(t, b, b2)

	require.Error(t, json.Unmarshal([]byte(`"0x00"`), &b2))
}

func TestBytes32SQL(t *testing.T) {
	h := "0x" + strings.Repeat("cd", 32)
	b, err := NewBytes32FromHex(h)
	require.NoError(t, err)

	v, err := b.Value()
	require.NoError(t, err)

	var b2 Bytes32
	require.NoError(t, b2.Scan(v))
	assert.Equal(t, b, b2)

	require.NoError(t, b2.Scan(nil))
	assert.True(t, b2.IsZero())

	require.Regexp(t, "expected 32 bytes", b2.Scan([]byte{0x01}))
	require.Regexp(t, "unsupported Scan", b2.Scan("not bytes"))
}
