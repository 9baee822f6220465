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

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/nervosnetwork/ckb-indexer/internal/msgs"
	"github.com/nervosnetwork/ckb-indexer/internal/rpcclient"
	"github.com/nervosnetwork/ckb-indexer/internal/store"
	"github.com/nervosnetwork/ckb-indexer/pkg/ckbtypes"
)

// TransactionFilter holds up to four independent script filters; at least
// one must be supplied. ArgsLen follows the same hex-character semantics
// as CellFilter.
type TransactionFilter struct {
	InputLock  *ckbtypes.Script
	OutputLock *ckbtypes.Script
	InputType  *ckbtypes.Script
	OutputType *ckbtypes.Script
	ArgsLen    int
}

func NewTransactionFilter() *TransactionFilter {
	return &TransactionFilter{ArgsLen: -1}
}

// TransactionCollectorOptions control fetch behavior: SkipMissing drops
// hashes the node no longer serves instead of raising; IncludeStatus
// yields the full {transaction, tx_status} envelope.
type TransactionCollectorOptions struct {
	SkipMissing   bool
	IncludeStatus bool
}

var DefaultTransactionCollectorOptions = &TransactionCollectorOptions{
	SkipMissing:   false,
	IncludeStatus: true,
}

type txScriptFilter struct {
	script     *ckbtypes.Script
	scriptType uint8
	ioType     uint8
}

// TransactionCollector intersects per-filter transaction sets from the
// transactions_scripts index, then fetches surviving bodies via RPC.
type TransactionCollector struct {
	store   store.Store
	rpc     rpcclient.CKBClient
	filters []txScriptFilter
	argsLen int
	opts    *TransactionCollectorOptions
}

func NewTransactionCollector(ctx context.Context, s store.Store, rpc rpcclient.CKBClient, filter *TransactionFilter, opts *TransactionCollectorOptions) (*TransactionCollector, error) {
	if opts == nil {
		opts = DefaultTransactionCollectorOptions
	}
	var filters []txScriptFilter
	for _, sf := range []struct {
		script     *ckbtypes.Script
		scriptType uint8
		ioType     uint8
	}{
		{filter.InputLock, store.ScriptTypeLock, store.IOTypeInput},
		{filter.OutputLock, store.ScriptTypeLock, store.IOTypeOutput},
		{filter.InputType, store.ScriptTypeType, store.IOTypeInput},
		{filter.OutputType, store.ScriptTypeType, store.IOTypeOutput},
	} {
		if sf.script == nil {
			continue
		}
		if err := sf.script.Validate(); err != nil {
			return nil, i18n.WrapError(ctx, err, msgs.MsgInvalidScriptShape, err)
		}
		filters = append(filters, txScriptFilter{script: sf.script, scriptType: sf.scriptType, ioType: sf.ioType})
	}
	if len(filters) == 0 {
		return nil, i18n.NewError(ctx, msgs.MsgCollectorNoFilter)
	}
	if filter.ArgsLen < -1 {
		return nil, i18n.NewError(ctx, msgs.MsgCollectorInvalidArgsLen, filter.ArgsLen)
	}
	return &TransactionCollector{store: s, rpc: rpc, filters: filters, argsLen: filter.ArgsLen, opts: opts}, nil
}

type txHashRow struct {
	ID     int64            `gorm:"column:id"`
	TxHash ckbtypes.Bytes32 `gorm:"column:tx_hash"`
}

// TxHashes computes the ordered intersection of the supplied filters'
// transaction sets. The first filter's set seeds the accumulator and its
// insertion order (ascending digest id) is preserved; each further filter
// intersects into it.
func (tc *TransactionCollector) TxHashes(ctx context.Context) ([]ckbtypes.Bytes32, error) {
	var accumulator []txHashRow
	seeded := false
	for _, f := range tc.filters {
		set, err := tc.filterHashes(ctx, f)
		if err != nil {
			return nil, err
		}
		if !seeded {
			accumulator = set
			seeded = true
			continue
		}
		members := make(map[int64]bool, len(set))
		for _, row := range set {
			members[row.ID] = true
		}
		intersected := make([]txHashRow, 0, len(accumulator))
		for _, row := range accumulator {
			if members[row.ID] {
				intersected = append(intersected, row)
			}
		}
		accumulator = intersected
	}
	hashes := make([]ckbtypes.Bytes32, len(accumulator))
	for i, row := range accumulator {
		hashes[i] = row.TxHash
	}
	return hashes, nil
}

func (tc *TransactionCollector) filterHashes(ctx context.Context, f txScriptFilter) ([]txHashRow, error) {
	db := tc.store.DB().WithContext(ctx)
	var rows []txHashRow
	err := db.Model(&store.TransactionScript{}).
		Distinct("transaction_digests.id", "transaction_digests.tx_hash").
		Joins("JOIN transaction_digests ON transaction_digests.id = transactions_scripts.transaction_digest_id").
		Where("transactions_scripts.script_type = ? AND transactions_scripts.io_type = ?", f.scriptType, f.ioType).
		Where("transactions_scripts.script_id IN (?)", scriptIDQuery(db, f.script, tc.argsLen)).
		Order("transaction_digests.id ASC").
		Scan(&rows).
		Error
	return rows, err
}

// Collect resolves the intersection then returns a lazy iterator that
// fetches each transaction body via RPC on demand.
func (tc *TransactionCollector) Collect(ctx context.Context) (*TransactionIterator, error) {
	hashes, err := tc.TxHashes(ctx)
	if err != nil {
		return nil, err
	}
	return &TransactionIterator{ctx: ctx, tc: tc, hashes: hashes}, nil
}

type TransactionIterator struct {
	ctx    context.Context
	tc     *TransactionCollector
	hashes []ckbtypes.Bytes32
	next   int
}

// Next fetches the next surviving transaction, or nil when exhausted.
// When IncludeStatus is false the envelope is returned with a nil
// TXStatus, yielding only the transaction body.
func (it *TransactionIterator) Next() (*rpcclient.TXWithStatusJSONRPC, error) {
	for it.next < len(it.hashes) {
		hash := it.hashes[it.next]
		it.next++
		txws, err := it.tc.rpc.GetTransaction(it.ctx, hash)
		if err != nil {
			return nil, err
		}
		if txws == nil {
			if it.tc.opts.SkipMissing {
				continue
			}
			return nil, i18n.NewError(it.ctx, msgs.MsgCollectorMissingTx, hash)
		}
		if !it.tc.opts.IncludeStatus {
			txws.TXStatus = nil
		}
		return txws, nil
	}
	return nil, nil
}
