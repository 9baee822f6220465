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
	"database/sql"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/nervosnetwork/ckb-indexer/internal/interner"
	"github.com/nervosnetwork/ckb-indexer/internal/rpcclient"
	"github.com/nervosnetwork/ckb-indexer/internal/store"
	"github.com/nervosnetwork/ckb-indexer/pkg/ckbtypes"
	"gorm.io/gorm"
)

// RichCell is the fully-resolved record a cell collector yields, all
// values in the chain's hex wire encoding.
type RichCell struct {
	CellOutput  RichCellOutput            `json:"cell_output"`
	OutPoint    rpcclient.OutPointJSONRPC `json:"out_point"`
	BlockHash   ckbtypes.Bytes32          `json:"block_hash"`
	BlockNumber ethtypes.HexUint64        `json:"block_number"`
	Data        ethtypes.HexBytes0xPrefix `json:"data"`
}

type RichCellOutput struct {
	Capacity string                   `json:"capacity"`
	Lock     *rpcclient.ScriptJSONRPC `json:"lock"`
	Type     *rpcclient.ScriptJSONRPC `json:"type,omitempty"`
}

// CellCollector compiles a script/data filter into a single ordered scan
// of live cells. Collectors are read-only and safe to run concurrently
// with an in-progress append; they observe committed state only.
type CellCollector struct {
	store    store.Store
	interner *interner.Interner
	filter   *CellFilter
}

func NewCellCollector(ctx context.Context, s store.Store, in *interner.Interner, filter *CellFilter) (*CellCollector, error) {
	if err := filter.validate(ctx); err != nil {
		return nil, err
	}
	return &CellCollector{store: s, interner: in, filter: filter}, nil
}

func (cc *CellCollector) buildQuery(ctx context.Context) *gorm.DB {
	db := cc.store.DB().WithContext(ctx)
	q := db.Model(&store.Cell{}).Where("consumed = ?", false)
	if cc.filter.Lock != nil {
		q = q.Where("lock_script_id IN (?)", scriptIDQuery(db, cc.filter.Lock, cc.filter.ArgsLen))
	}
	switch cc.filter.Type.kind {
	case typeFilterEmpty:
		q = q.Where("type_script_id IS NULL")
	case typeFilterScript:
		q = q.Where("type_script_id IN (?)", scriptIDQuery(db, cc.filter.Type.script, cc.filter.ArgsLen))
	}
	if cc.filter.Data != nil {
		q = q.Where("data = ?", cc.filter.Data)
	}
	return q
}

// Count runs the filter with no ordering and returns the match count.
func (cc *CellCollector) Count(ctx context.Context) (int64, error) {
	var count int64
	err := cc.buildQuery(ctx).Count(&count).Error
	return count, err
}

// Collect opens the ordered scan and returns a pull-based iterator. The
// iterator is finite and non-restartable; the caller must Close it.
func (cc *CellCollector) Collect(ctx context.Context) (*CellIterator, error) {
	rows, err := cc.buildQuery(ctx).
		Order("block_number ASC, tx_index ASC, output_index ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	return &CellIterator{
		ctx:         ctx,
		cc:          cc,
		rows:        rows,
		scripts:     map[int64]*rpcclient.ScriptJSONRPC{},
		blockHashes: map[uint64]ckbtypes.Bytes32{},
	}, nil
}

// CellIterator walks the scan cursor, materializing one RichCell per
// Next. Script and block-hash resolutions are memoized per iterator.
type CellIterator struct {
	ctx         context.Context
	cc          *CellCollector
	rows        *sql.Rows
	scripts     map[int64]*rpcclient.ScriptJSONRPC
	blockHashes map[uint64]ckbtypes.Bytes32
}

// Next returns the next matching cell, or nil when the scan is exhausted.
func (it *CellIterator) Next() (*RichCell, error) {
	if !it.rows.Next() {
		return nil, it.rows.Err()
	}
	var cell store.Cell
	if err := it.cc.store.DB().ScanRows(it.rows, &cell); err != nil {
		return nil, err
	}
	return it.materialize(&cell)
}

func (it *CellIterator) Close() {
	_ = it.rows.Close()
}

func (it *CellIterator) materialize(cell *store.Cell) (*RichCell, error) {
	lock, err := it.resolveScript(cell.LockScriptID)
	if err != nil {
		return nil, err
	}
	var typeScript *rpcclient.ScriptJSONRPC
	if cell.TypeScriptID != nil {
		if typeScript, err = it.resolveScript(*cell.TypeScriptID); err != nil {
			return nil, err
		}
	}
	blockHash, err := it.resolveBlockHash(cell.BlockNumber)
	if err != nil {
		return nil, err
	}
	capacity, err := ckbtypes.DecimalStringToHex(cell.Capacity)
	if err != nil {
		return nil, err
	}
	return &RichCell{
		CellOutput: RichCellOutput{
			Capacity: capacity,
			Lock:     lock,
			Type:     typeScript,
		},
		OutPoint: rpcclient.OutPointJSONRPC{
			TxHash: cell.TxHash,
			Index:  ethtypes.HexUint64(cell.OutputIndex),
		},
		BlockHash:   blockHash,
		BlockNumber: ethtypes.HexUint64(cell.BlockNumber),
		Data:        cell.Data,
	}, nil
}

func (it *CellIterator) resolveScript(id int64) (*rpcclient.ScriptJSONRPC, error) {
	if script, ok := it.scripts[id]; ok {
		return script, nil
	}
	script, err := it.cc.interner.ResolveScript(it.ctx, it.cc.store.DB(), id)
	if err != nil {
		return nil, err
	}
	wire := rpcclient.NewScriptJSONRPC(script)
	it.scripts[id] = wire
	return wire, nil
}

func (it *CellIterator) resolveBlockHash(blockNumber uint64) (ckbtypes.Bytes32, error) {
	if hash, ok := it.blockHashes[blockNumber]; ok {
		return hash, nil
	}
	var digests []*store.BlockDigest
	err := it.cc.store.DB().WithContext(it.ctx).
		Where("block_number = ?", blockNumber).
		Limit(1).
		Find(&digests).
		Error
	if err != nil || len(digests) == 0 {
		return ckbtypes.Bytes32{}, err
	}
	it.blockHashes[blockNumber] = digests[0].BlockHash
	return digests[0].BlockHash, nil
}
