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

package collector

import (
	"bytes"
	"context"
	"testing"

	"github.com/nervosnetwork/ckb-indexer/internal/interner"
	"github.com/nervosnetwork/ckb-indexer/internal/store"
	"github.com/nervosnetwork/ckb-indexer/pkg/ckbtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b32(fill byte) ckbtypes.Bytes32 {
	return ckbtypes.NewBytes32FromSlice(bytes.Repeat([]byte{fill}, 32))
}

func script(fill byte, hashType ckbtypes.HashType, args ...byte) ckbtypes.Script {
	if args == nil {
		args = []byte{}
	}
	return ckbtypes.Script{CodeHash: b32(fill), HashType: hashType, Args: args}
}

type testWorld struct {
	s      store.Store
	in     *interner.Interner
	lockL0 int64 // code 0x01, "data", no args
	lockL1 int64 // code 0x01, "data", args aabb
	typeT1 int64 // code 0x02, "type", args deadbeefcafe
	c1H    ckbtypes.Bytes32
	c2H    ckbtypes.Bytes32
	c4H    ckbtypes.Bytes32
}

var (
	scriptL0 = script(0x01, ckbtypes.HashTypeData)
	scriptL1 = script(0x01, ckbtypes.HashTypeData, 0xaa, 0xbb)
	scriptT1 = script(0x02, ckbtypes.HashTypeType, 0xde, 0xad, 0xbe, 0xef, 0xca, 0xfe)
)

func internScript(t *testing.T, s store.Store, in *interner.Interner, script ckbtypes.Script) (id int64) {
	err := s.Transaction(context.Background(), func(ctx context.Context, tx store.DBTX) error {
		var err error
		id, err = in.EnsureScript(ctx, tx, &script)
		return err
	})
	require.NoError(t, err)
	return id
}

// a small world of live and consumed cells across two blocks
func newTestWorld(t *testing.T) (*testWorld, func()) {
	s, done, err := store.NewUnitTestStore(context.Background(), "collector")
	require.NoError(t, err)

	w := &testWorld{s: s, in: interner.New(), c1H: b32(0xa0), c2H: b32(0xa1), c4H: b32(0xa1)}
	w.lockL0 = internScript(t, s, w.in, scriptL0)
	w.lockL1 = internScript(t, s, w.in, scriptL1)
	w.typeT1 = internScript(t, s, w.in, scriptT1)

	require.NoError(t, s.DB().Create([]*store.BlockDigest{
		{BlockNumber: 0, BlockHash: b32(0xb0), Epoch: []byte{1}, Dao: []byte{2}, Timestamp: 1000},
		{BlockNumber: 1, BlockHash: b32(0xb1), Epoch: []byte{1}, Dao: []byte{2}, Timestamp: 2000},
	}).Error)

	require.NoError(t, s.DB().Create([]*store.Cell{
		// c1: L0 only, empty data, live
		{TxHash: w.c1H, OutputIndex: 0, BlockNumber: 0, TxIndex: 0, Capacity: "4096", Data: []byte{}, UdtAmount: "0", LockScriptID: w.lockL0, Consumed: false},
		// c2: L1 + T1, data 0x1122, live
		{TxHash: w.c2H, OutputIndex: 0, BlockNumber: 1, TxIndex: 1, Capacity: "4095", Data: []byte{0x11, 0x22}, UdtAmount: "8721", LockScriptID: w.lockL1, TypeScriptID: &w.typeT1, Consumed: false},
		// c3: L0, consumed - never collected
		{TxHash: b32(0xa3), OutputIndex: 1, BlockNumber: 0, TxIndex: 0, Capacity: "1", Data: []byte{}, UdtAmount: "0", LockScriptID: w.lockL0, Consumed: true},
		// c4: L1 only, empty data, live
		{TxHash: w.c4H, OutputIndex: 1, BlockNumber: 1, TxIndex: 1, Capacity: "2", Data: []byte{}, UdtAmount: "0", LockScriptID: w.lockL1, Consumed: false},
	}).Error)

	return w, done
}

func collectAll(t *testing.T, w *testWorld, filter *CellFilter) []*RichCell {
	cc, err := NewCellCollector(context.Background(), w.s, w.in, filter)
	require.NoError(t, err)
	it, err := cc.Collect(context.Background())
	require.NoError(t, err)
	defer it.Close()
	var cells []*RichCell
	for {
		cell, err := it.Next()
		require.NoError(t, err)
		if cell == nil {
			return cells
		}
		cells = append(cells, cell)
	}
}

func TestCellCollectorValidation(t *testing.T) {
	w, done := newTestWorld(t)
	defer done()

	_, err := NewCellCollector(context.Background(), w.s, w.in, NewCellFilter())
	require.Regexp(t, "CKB010400", err)

	f := NewCellFilter()
	f.Lock = &ckbtypes.Script{CodeHash: b32(0x01), HashType: ckbtypes.HashType(9)}
	_, err = NewCellCollector(context.Background(), w.s, w.in, f)
	require.Regexp(t, "CKB010101", err)

	f = NewCellFilter()
	f.Lock = &scriptL0
	f.ArgsLen = -2
	_, err = NewCellCollector(context.Background(), w.s, w.in, f)
	require.Regexp(t, "CKB010401", err)
}

func TestCollectByExactLock(t *testing.T) {
	w, done := newTestWorld(t)
	defer done()

	f := NewCellFilter()
	f.Lock = &scriptL0
	f.Data = nil
	cells := collectAll(t, w, f)

	// L0 has empty args, so its filter is also a prefix of L1's args: both
	// lock ids share the code_hash/hash_type, L1's cells match too
	require.Len(t, cells, 3)

	// exact-args restriction via ArgsLen 0 keeps only true L0 cells
	f.ArgsLen = 0
	cells = collectAll(t, w, f)
	require.Len(t, cells, 1)
	assert.Equal(t, w.c1H, cells[0].OutPoint.TxHash)
	assert.Equal(t, "0x1000", cells[0].CellOutput.Capacity)
	assert.Equal(t, b32(0xb0), cells[0].BlockHash)
	assert.Equal(t, uint64(0), uint64(cells[0].BlockNumber))
	require.NotNil(t, cells[0].CellOutput.Lock)
	assert.Equal(t, "data", cells[0].CellOutput.Lock.HashType)
	assert.Nil(t, cells[0].CellOutput.Type)
}

func TestCollectByLockArgsPrefix(t *testing.T) {
	w, done := newTestWorld(t)
	defer done()

	f := NewCellFilter()
	f.Lock = &ckbtypes.Script{CodeHash: b32(0x01), HashType: ckbtypes.HashTypeData, Args: []byte{0xaa}}
	f.Data = nil
	cells := collectAll(t, w, f)
	require.Len(t, cells, 2)

	// deterministic (block_number, tx_index, output_index) order
	assert.Equal(t, uint64(0), uint64(cells[0].OutPoint.Index))
	assert.Equal(t, uint64(1), uint64(cells[1].OutPoint.Index))
}

func TestCollectTypeArgsLenSemantics(t *testing.T) {
	w, done := newTestWorld(t)
	defer done()

	// T1 args is 6 bytes = 12 hex chars; filter on a 2-byte prefix
	typePrefix := ckbtypes.Script{CodeHash: b32(0x02), HashType: ckbtypes.HashTypeType, Args: []byte{0xde, 0xad}}

	f := NewCellFilter()
	f.Type = TypeScript(typePrefix)
	f.Data = nil
	require.Len(t, collectAll(t, w, f), 1) // argsLen -1: prefix only

	f.ArgsLen = 12
	require.Len(t, collectAll(t, w, f), 1) // full length matches

	f.ArgsLen = 4
	require.Len(t, collectAll(t, w, f), 0) // wrong full length
}

func TestCollectTypeEmpty(t *testing.T) {
	w, done := newTestWorld(t)
	defer done()

	f := NewCellFilter()
	f.Type = TypeEmpty()
	f.Data = nil
	cells := collectAll(t, w, f)
	require.Len(t, cells, 2)
	for _, c := range cells {
		assert.Nil(t, c.CellOutput.Type)
	}
}

func TestCollectDataSentinel(t *testing.T) {
	w, done := newTestWorld(t)
	defer done()

	// the default filter data of empty bytes matches only empty-data cells
	f := NewCellFilter()
	f.Lock = &ckbtypes.Script{CodeHash: b32(0x01), HashType: ckbtypes.HashTypeData}
	require.Len(t, collectAll(t, w, f), 2)

	// nil data matches anything
	f.Data = nil
	require.Len(t, collectAll(t, w, f), 3)

	// exact byte match
	f.Data = []byte{0x11, 0x22}
	cells := collectAll(t, w, f)
	require.Len(t, cells, 1)
	assert.Equal(t, []byte{0x11, 0x22}, []byte(cells[0].Data))
	require.NotNil(t, cells[0].CellOutput.Type)
	assert.Equal(t, "type", cells[0].CellOutput.Type.HashType)
}

func TestCount(t *testing.T) {
	w, done := newTestWorld(t)
	defer done()

	f := NewCellFilter()
	f.Lock = &ckbtypes.Script{CodeHash: b32(0x01), HashType: ckbtypes.HashTypeData}
	f.Data = nil
	cc, err := NewCellCollector(context.Background(), w.s, w.in, f)
	require.NoError(t, err)
	count, err := cc.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
