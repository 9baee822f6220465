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

package store

import (
	"github.com/nervosnetwork/ckb-indexer/pkg/ckbtypes"
)

// BlockDigest is one row per block of the local best chain, a contiguous
// prefix of the canonical chain from genesis to tip.
type BlockDigest struct {
	BlockNumber uint64           `json:"blockNumber" gorm:"column:block_number;primaryKey;autoIncrement:false"`
	BlockHash   ckbtypes.Bytes32 `json:"blockHash"   gorm:"column:block_hash"`
	Epoch       []byte           `json:"epoch"       gorm:"column:epoch"` // 7-byte big-endian packed epoch triple, left-padded
	Dao         []byte           `json:"dao"         gorm:"column:dao"`
	Timestamp   uint64           `json:"timestamp"   gorm:"column:timestamp"`
}

func (BlockDigest) TableName() string { return "block_digests" }

// TransactionDigest records only enough of a transaction to locate it:
// the full body is refetched via RPC on demand.
type TransactionDigest struct {
	ID          int64            `json:"id"          gorm:"column:id;primaryKey;autoIncrement"`
	TxHash      ckbtypes.Bytes32 `json:"txHash"      gorm:"column:tx_hash;uniqueIndex:transaction_digests_tx_hash"`
	TxIndex     uint32           `json:"txIndex"     gorm:"column:tx_index;uniqueIndex:transaction_digests_block_tx,priority:2"`
	OutputCount uint32           `json:"outputCount" gorm:"column:output_count"`
	BlockNumber uint64           `json:"blockNumber" gorm:"column:block_number;uniqueIndex:transaction_digests_block_tx,priority:1"`
}

func (TransactionDigest) TableName() string { return "transaction_digests" }

// TransactionInput is recorded for every input of every transaction,
// including the cellbase's synthetic inputs, preserving input order.
// PreviousIndex holds the signed 64-bit reinterpretation of the wire
// value, because the cellbase sentinel 0xffffffffffffffff exceeds what
// the SQLite driver will bind as unsigned.
type TransactionInput struct {
	ID                  int64            `json:"id"                  gorm:"column:id;primaryKey;autoIncrement"`
	TransactionDigestID int64            `json:"transactionDigestId" gorm:"column:transaction_digest_id;index:transaction_inputs_digest"`
	PreviousTxHash      ckbtypes.Bytes32 `json:"previousTxHash"      gorm:"column:previous_tx_hash"`
	PreviousIndex       int64            `json:"previousIndex"       gorm:"column:previous_index"`
	InputIndex          int64            `json:"inputIndex"          gorm:"column:input_index"`
}

func (TransactionInput) TableName() string { return "transaction_inputs" }

// Script rows are interned: created on first use, never mutated, shared
// by every cell carrying the same (code_hash, hash_type, args).
type Script struct {
	ID         int64            `json:"id"         gorm:"column:id;primaryKey;autoIncrement"`
	CodeHash   ckbtypes.Bytes32 `json:"codeHash"   gorm:"column:code_hash;uniqueIndex:scripts_natural_key,priority:1"`
	HashType   uint8            `json:"hashType"   gorm:"column:hash_type;uniqueIndex:scripts_natural_key,priority:2"`
	Args       []byte           `json:"args"       gorm:"column:args;uniqueIndex:scripts_natural_key,priority:3"`
	ScriptHash ckbtypes.Bytes32 `json:"scriptHash" gorm:"column:script_hash"`
}

func (Script) TableName() string { return "scripts" }

// Cell is a transaction output. Consumed flips false->true when the
// spending block is appended, and back on rollback of that block. The
// cells_live_scan index serves the collectors' ordered live-cell scans.
type Cell struct {
	ID           int64            `json:"id"           gorm:"column:id;primaryKey;autoIncrement"`
	TxHash       ckbtypes.Bytes32 `json:"txHash"       gorm:"column:tx_hash;uniqueIndex:cells_out_point,priority:1"`
	OutputIndex  uint64           `json:"outputIndex"  gorm:"column:output_index;uniqueIndex:cells_out_point,priority:2;index:cells_live_scan,priority:4"`
	BlockNumber  uint64           `json:"blockNumber"  gorm:"column:block_number;index:cells_live_scan,priority:2"`
	TxIndex      uint32           `json:"txIndex"      gorm:"column:tx_index;index:cells_live_scan,priority:3"`
	Capacity     string           `json:"capacity"     gorm:"column:capacity"`  // decimal string
	Data         []byte           `json:"data"         gorm:"column:data"`
	UdtAmount    string           `json:"udtAmount"    gorm:"column:udt_amount"` // decimal string of the little-endian u128 prefix of data
	LockScriptID int64            `json:"lockScriptId" gorm:"column:lock_script_id;index:cells_lock_script"`
	TypeScriptID *int64           `json:"typeScriptId" gorm:"column:type_script_id;index:cells_type_script"`
	Consumed     bool             `json:"consumed"     gorm:"column:consumed;index:cells_live_scan,priority:1"`
}

func (Cell) TableName() string { return "cells" }

// Script/io classification slots for TransactionScript rows.
const (
	ScriptTypeLock uint8 = 0
	ScriptTypeType uint8 = 1
	IOTypeInput    uint8 = 0
	IOTypeOutput   uint8 = 1
)

// TransactionScript associates a transaction with every script appearing
// on its inputs and outputs, in both the lock and type slots. This is the
// index behind the transaction collector.
type TransactionScript struct {
	ID                  int64  `json:"id"                  gorm:"column:id;primaryKey;autoIncrement"`
	TransactionDigestID int64  `json:"transactionDigestId" gorm:"column:transaction_digest_id;index:transactions_scripts_digest"`
	ScriptType          uint8  `json:"scriptType"          gorm:"column:script_type;index:transactions_scripts_script,priority:2"`
	IOType              uint8  `json:"ioType"              gorm:"column:io_type;index:transactions_scripts_script,priority:3"`
	IOIndex             uint32 `json:"ioIndex"             gorm:"column:io_index"`
	ScriptID            int64  `json:"scriptId"            gorm:"column:script_id;index:transactions_scripts_script,priority:1"`
}

func (TransactionScript) TableName() string { return "transactions_scripts" }

// AllModels is the ordered set of GORM models, in the same table order as
// the SQL migrations. The unit-test store builds its schema from those
// migrations, not from this list.
var AllModels = []interface{}{
	&BlockDigest{},
	&TransactionDigest{},
	&TransactionInput{},
	&Script{},
	&Cell{},
	&TransactionScript{},
}
