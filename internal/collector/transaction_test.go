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
	"context"
	"testing"

	"github.com/nervosnetwork/ckb-indexer/internal/rpcclient"
	"github.com/nervosnetwork/ckb-indexer/internal/store"
	"github.com/nervosnetwork/ckb-indexer/pkg/ckbtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTxSource serves transaction bodies for a set of known hashes
type fakeTxSource struct {
	known map[ckbtypes.Bytes32]bool
}

func (f *fakeTxSource) GetBlockByNumber(ctx context.Context, number uint64) (*rpcclient.BlockJSONRPC, error) {
	return nil, nil
}

func (f *fakeTxSource) GetTransaction(ctx context.Context, hash ckbtypes.Bytes32) (*rpcclient.TXWithStatusJSONRPC, error) {
	if !f.known[hash] {
		return nil, nil
	}
	return &rpcclient.TXWithStatusJSONRPC{
		Transaction: &rpcclient.TransactionJSONRPC{Hash: hash},
		TXStatus:    &rpcclient.TXStatusJSONRPC{Status: "committed"},
	}, nil
}

// three transactions:
//   d1 produces an L0-locked output
//   d2 spends an L0-locked cell and produces a T1-typed output
//   d3 produces a T1-typed output
func newTxWorld(t *testing.T) (*testWorld, *fakeTxSource, func()) {
	w, done := newTestWorld(t)

	digests := []*store.TransactionDigest{
		{TxHash: b32(0xd1), TxIndex: 1, OutputCount: 1, BlockNumber: 10},
		{TxHash: b32(0xd2), TxIndex: 2, OutputCount: 1, BlockNumber: 10},
		{TxHash: b32(0xd3), TxIndex: 1, OutputCount: 1, BlockNumber: 11},
	}
	require.NoError(t, w.s.DB().Create(digests).Error)

	require.NoError(t, w.s.DB().Create([]*store.TransactionScript{
		{TransactionDigestID: digests[0].ID, ScriptType: store.ScriptTypeLock, IOType: store.IOTypeOutput, IOIndex: 0, ScriptID: w.lockL0},
		{TransactionDigestID: digests[1].ID, ScriptType: store.ScriptTypeLock, IOType: store.IOTypeInput, IOIndex: 0, ScriptID: w.lockL0},
		{TransactionDigestID: digests[1].ID, ScriptType: store.ScriptTypeType, IOType: store.IOTypeOutput, IOIndex: 0, ScriptID: w.typeT1},
		{TransactionDigestID: digests[2].ID, ScriptType: store.ScriptTypeType, IOType: store.IOTypeOutput, IOIndex: 0, ScriptID: w.typeT1},
	}).Error)

	src := &fakeTxSource{known: map[ckbtypes.Bytes32]bool{
		b32(0xd1): true, b32(0xd2): true, b32(0xd3): true,
	}}
	return w, src, done
}

func collectTxs(t *testing.T, w *testWorld, src rpcclient.CKBClient, filter *TransactionFilter, opts *TransactionCollectorOptions) []*rpcclient.TXWithStatusJSONRPC {
	tc, err := NewTransactionCollector(context.Background(), w.s, src, filter, opts)
	require.NoError(t, err)
	it, err := tc.Collect(context.Background())
	require.NoError(t, err)
	var txs []*rpcclient.TXWithStatusJSONRPC
	for {
		tx, err := it.Next()
		require.NoError(t, err)
		if tx == nil {
			return txs
		}
		txs = append(txs, tx)
	}
}

func TestTransactionCollectorValidation(t *testing.T) {
	w, src, done := newTxWorld(t)
	defer done()

	_, err := NewTransactionCollector(context.Background(), w.s, src, NewTransactionFilter(), nil)
	require.Regexp(t, "CKB010400", err)

	f := NewTransactionFilter()
	f.InputLock = &ckbtypes.Script{CodeHash: b32(0x01), HashType: ckbtypes.HashType(9)}
	_, err = NewTransactionCollector(context.Background(), w.s, src, f, nil)
	require.Regexp(t, "CKB010101", err)
}

func TestTransactionSingleFilter(t *testing.T) {
	w, src, done := newTxWorld(t)
	defer done()

	f := NewTransactionFilter()
	f.OutputLock = &scriptL0
	f.ArgsLen = 0
	txs := collectTxs(t, w, src, f, nil)
	require.Len(t, txs, 1)
	assert.Equal(t, b32(0xd1), txs[0].Transaction.Hash)
	require.NotNil(t, txs[0].TXStatus)
	assert.Equal(t, "committed", txs[0].TXStatus.Status)
}

func TestTransactionIntersection(t *testing.T) {
	w, src, done := newTxWorld(t)
	defer done()

	f := NewTransactionFilter()
	f.InputLock = &ckbtypes.Script{CodeHash: b32(0x01), HashType: ckbtypes.HashTypeData}
	f.OutputType = &scriptT1
	txs := collectTxs(t, w, src, f, nil)
	require.Len(t, txs, 1)
	assert.Equal(t, b32(0xd2), txs[0].Transaction.Hash)
}

// the intersection is commutative in the supplied filters
func TestTransactionIntersectionCommutative(t *testing.T) {
	w, src, done := newTxWorld(t)
	defer done()

	forward := NewTransactionFilter()
	forward.InputLock = &ckbtypes.Script{CodeHash: b32(0x01), HashType: ckbtypes.HashTypeData}
	forward.OutputType = &scriptT1

	tc, err := NewTransactionCollector(context.Background(), w.s, src, forward, nil)
	require.NoError(t, err)
	forwardHashes, err := tc.TxHashes(context.Background())
	require.NoError(t, err)

	reversed := &TransactionCollector{
		store:   tc.store,
		rpc:     tc.rpc,
		filters: []txScriptFilter{tc.filters[1], tc.filters[0]},
		argsLen: tc.argsLen,
		opts:    tc.opts,
	}
	reversedHashes, err := reversed.TxHashes(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, forwardHashes, reversedHashes)
}

func TestTransactionOrderedByFirstFilter(t *testing.T) {
	w, src, done := newTxWorld(t)
	defer done()

	f := NewTransactionFilter()
	f.OutputType = &scriptT1
	txs := collectTxs(t, w, src, f, nil)
	require.Len(t, txs, 2)
	// insertion (digest id) order
	assert.Equal(t, b32(0xd2), txs[0].Transaction.Hash)
	assert.Equal(t, b32(0xd3), txs[1].Transaction.Hash)
}

func TestTransactionMissingBehavior(t *testing.T) {
	w, src, done := newTxWorld(t)
	defer done()

	delete(src.known, b32(0xd3))

	f := NewTransactionFilter()
	f.OutputType = &scriptT1

	// default: a missing body raises
	tc, err := NewTransactionCollector(context.Background(), w.s, src, f, nil)
	require.NoError(t, err)
	it, err := tc.Collect(context.Background())
	require.NoError(t, err)
	_, err = it.Next() // d2 ok
	require.NoError(t, err)
	_, err = it.Next() // d3 missing
	require.Regexp(t, "CKB010402", err)

	// skipMissing drops it silently
	txs := collectTxs(t, w, src, f, &TransactionCollectorOptions{SkipMissing: true, IncludeStatus: true})
	require.Len(t, txs, 1)
	assert.Equal(t, b32(0xd2), txs[0].Transaction.Hash)
}

func TestTransactionWithoutStatus(t *testing.T) {
	w, src, done := newTxWorld(t)
	defer done()

	f := NewTransactionFilter()
	f.OutputLock = &scriptL0
	txs := collectTxs(t, w, src, f, &TransactionCollectorOptions{IncludeStatus: false})
	require.Len(t, txs, 1)
	assert.Nil(t, txs[0].TXStatus)
}
