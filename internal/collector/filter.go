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

// Package collector exposes the query iterators that enumerate live cells
// or transactions matching a script/data filter, compiled down to ordered
// scans over the relational store.
package collector

import (
	"context"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/nervosnetwork/ckb-indexer/internal/msgs"
	"github.com/nervosnetwork/ckb-indexer/internal/store"
	"github.com/nervosnetwork/ckb-indexer/pkg/ckbtypes"
	"gorm.io/gorm"
)

type typeFilterKind int

const (
	typeFilterNone typeFilterKind = iota
	typeFilterEmpty
	typeFilterScript
)

// TypeFilter is the tagged variant for the type-script slot of a filter:
// unset (no constraint), "empty" (only cells with no type script), or a
// concrete script value.
type TypeFilter struct {
	kind   typeFilterKind
	script *ckbtypes.Script
}

func TypeNone() TypeFilter {
	return TypeFilter{kind: typeFilterNone}
}

func TypeEmpty() TypeFilter {
	return TypeFilter{kind: typeFilterEmpty}
}

func TypeScript(script ckbtypes.Script) TypeFilter {
	return TypeFilter{kind: typeFilterScript, script: &script}
}

func (tf TypeFilter) isSupplied() bool {
	return tf.kind != typeFilterNone
}

// CellFilter is the construction input for a cell collector.
//
// ArgsLen counts hex characters (two per byte) of the stored args; -1 (the
// default from NewCellFilter) leaves only the prefix constraint. Data nil
// matches any data; a non-nil value (including empty) must match exactly.
type CellFilter struct {
	Lock    *ckbtypes.Script
	Type    TypeFilter
	ArgsLen int
	Data    []byte
}

// NewCellFilter returns a filter with the documented defaults: no
// scripts, argsLen -1, and data constrained to empty bytes.
func NewCellFilter() *CellFilter {
	return &CellFilter{ArgsLen: -1, Data: []byte{}}
}

func (f *CellFilter) validate(ctx context.Context) error {
	if f.Lock == nil && !f.Type.isSupplied() {
		return i18n.NewError(ctx, msgs.MsgCollectorNoFilter)
	}
	if f.Lock != nil {
		if err := f.Lock.Validate(); err != nil {
			return i18n.WrapError(ctx, err, msgs.MsgInvalidScriptShape, err)
		}
	}
	if f.Type.kind == typeFilterScript {
		if err := f.Type.script.Validate(); err != nil {
			return i18n.WrapError(ctx, err, msgs.MsgInvalidScriptShape, err)
		}
	}
	if f.ArgsLen < -1 {
		return i18n.NewError(ctx, msgs.MsgCollectorInvalidArgsLen, f.ArgsLen)
	}
	return nil
}

// scriptIDQuery compiles a script filter to a subquery over the scripts
// table: exact code_hash/hash_type, args prefix match, and an optional
// exact args length when argsLen >= 0. substr() and length() behave
// identically on SQLite BLOB and PostgreSQL bytea.
func scriptIDQuery(db *gorm.DB, script *ckbtypes.Script, argsLen int) *gorm.DB {
	q := db.Model(&store.Script{}).
		Select("id").
		Where("code_hash = ? AND hash_type = ?", script.CodeHash, uint8(script.HashType))
	if len(script.Args) > 0 {
		q = q.Where("substr(args, 1, ?) = ?", len(script.Args), script.Args)
	}
	if argsLen >= 0 {
		// an odd argsLen can never equal a whole number of bytes, and
		// correctly matches nothing
		q = q.Where("length(args) * 2 = ?", argsLen)
	}
	return q
}
