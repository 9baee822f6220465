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

// Package interner deduplicates script values by content hash, handing out
// the stable small integer identifiers the cells and transactions_scripts
// tables reference.
package interner

import (
	"context"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/Code-Hex/go-generics-cache/policy/lru"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/nervosnetwork/ckb-indexer/internal/msgs"
	"github.com/nervosnetwork/ckb-indexer/internal/store"
	"github.com/nervosnetwork/ckb-indexer/pkg/ckbtypes"
	"gorm.io/gorm"
)

const internCacheCapacity = 1000

type Interner struct {
	byHash *cache.Cache[ckbtypes.Bytes32, int64]
	byID   *cache.Cache[int64, *ckbtypes.Script]
}

func New() *Interner {
	return &Interner{
		byHash: cache.New(cache.AsLRU[ckbtypes.Bytes32, int64](lru.WithCapacity(internCacheCapacity))),
		byID:   cache.New(cache.AsLRU[int64, *ckbtypes.Script](lru.WithCapacity(internCacheCapacity))),
	}
}

// EnsureScript returns the id of the scripts row matching the supplied
// value, inserting it within the supplied transaction on first use. The
// chain follower is the sole writer, so a unique-constraint race cannot
// occur; if it ever does the store error propagates as fatal.
//
// The in-process caches are only updated after the enclosing transaction
// commits, so an id minted by a rolled-back block is never served.
func (in *Interner) EnsureScript(ctx context.Context, dbTX store.DBTX, script *ckbtypes.Script) (int64, error) {
	if err := script.Validate(); err != nil {
		return 0, i18n.WrapError(ctx, err, msgs.MsgInvalidScriptShape, err)
	}
	scriptHash, err := ckbtypes.ScriptHash(*script)
	if err != nil {
		return 0, err
	}
	args := script.Args
	if args == nil {
		// normalized so the NOT NULL args column accepts empty
		args = []byte{}
	}
	if id, ok := in.byHash.Get(scriptHash); ok {
		return id, nil
	}

	var rows []*store.Script
	err = dbTX.DB().
		Where("code_hash = ? AND hash_type = ? AND args = ? AND script_hash = ?",
			script.CodeHash, uint8(script.HashType), args, scriptHash).
		Limit(1).
		Find(&rows).
		Error
	if err != nil {
		return 0, err
	}

	var row *store.Script
	if len(rows) > 0 {
		row = rows[0]
	} else {
		row = &store.Script{
			CodeHash:   script.CodeHash,
			HashType:   uint8(script.HashType),
			Args:       args,
			ScriptHash: scriptHash,
		}
		if err = dbTX.DB().Create(row).Error; err != nil {
			return 0, err
		}
	}
	if row.ID == 0 {
		return 0, i18n.NewError(ctx, msgs.MsgInternFailure)
	}

	id := row.ID
	resolved := &ckbtypes.Script{CodeHash: script.CodeHash, HashType: script.HashType, Args: args}
	dbTX.AddPostCommit(func(ctx context.Context) {
		in.byHash.Set(scriptHash, id)
		in.byID.Set(id, resolved)
	})
	return id, nil
}

// ResolveScript loads a script value back by id, for collectors rendering
// rich cell records. Reads are cached; script rows are immutable.
func (in *Interner) ResolveScript(ctx context.Context, db *gorm.DB, id int64) (*ckbtypes.Script, error) {
	if script, ok := in.byID.Get(id); ok {
		return script, nil
	}
	var rows []*store.Script
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	script := &ckbtypes.Script{
		CodeHash: rows[0].CodeHash,
		HashType: ckbtypes.HashType(rows[0].HashType),
		Args:     rows[0].Args,
	}
	in.byID.Set(id, script)
	return script, nil
}
