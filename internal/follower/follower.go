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

// Package follower implements the single-writer polling state machine
// that keeps the local store a contiguous prefix of the canonical chain:
// read tip, fetch the next block, append on parent-hash match, roll back
// one block on mismatch, and prune consumed history periodically.
package follower

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/nervosnetwork/ckb-indexer/internal/confutil"
	"github.com/nervosnetwork/ckb-indexer/internal/interner"
	"github.com/nervosnetwork/ckb-indexer/internal/log"
	"github.com/nervosnetwork/ckb-indexer/internal/msgs"
	"github.com/nervosnetwork/ckb-indexer/internal/rpcclient"
	"github.com/nervosnetwork/ckb-indexer/internal/store"
	"github.com/nervosnetwork/ckb-indexer/pkg/ckbtypes"
)

type State int32

const (
	StateStopped State = iota
	StateRunning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return "stopped"
	}
}

// fastCatchupDelay is the inter-cycle delay while we are behind the
// chain head. Non-zero so successive cycles always yield the scheduler.
const fastCatchupDelay = 1 * time.Millisecond

type Follower struct {
	conf     *Config
	store    store.Store
	rpc      rpcclient.CKBClient
	interner *interner.Interner

	pollInterval  time.Duration
	keepNum       uint64
	pruneInterval uint64

	// Fired after each append commits, in block order, never concurrently
	// with itself
	newBlockListener func(ctx context.Context, block *rpcclient.BlockJSONRPC)

	state          atomic.Int32
	pruneRequested atomic.Bool
	mux            sync.Mutex
	cancelRun      context.CancelFunc
	done           chan struct{}
}

func NewFollower(conf *Config, s store.Store, rpc rpcclient.CKBClient, newBlockListener func(ctx context.Context, block *rpcclient.BlockJSONRPC)) *Follower {
	return &Follower{
		conf:             conf,
		store:            s,
		rpc:              rpc,
		interner:         interner.New(),
		pollInterval:     confutil.DurationMin(conf.PollInterval, 1*time.Millisecond, *Defaults.PollInterval),
		keepNum:          uint64(confutil.IntMin(conf.KeepNum, 0, *Defaults.KeepNum)),
		pruneInterval:    uint64(confutil.IntMin(conf.PruneInterval, 1, *Defaults.PruneInterval)),
		newBlockListener: newBlockListener,
	}
}

// Start transitions Stopped/Failed -> Running and kicks off the polling
// loop. Starting an already-running follower is an error.
func (f *Follower) Start(ctx context.Context) error {
	f.mux.Lock()
	defer f.mux.Unlock()
	if State(f.state.Load()) == StateRunning {
		return i18n.NewError(ctx, msgs.MsgFollowerAlreadyRunning)
	}
	runCtx, cancel := context.WithCancel(log.WithLogField(ctx, "role", "chain_follower"))
	f.cancelRun = cancel
	f.done = make(chan struct{})
	f.state.Store(int32(StateRunning))
	go f.run(runCtx, f.done)
	return nil
}

// Stop requests shutdown and waits for the in-flight cycle to complete.
func (f *Follower) Stop() {
	f.mux.Lock()
	cancel := f.cancelRun
	done := f.done
	f.mux.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (f *Follower) Running() bool {
	return State(f.state.Load()) == StateRunning
}

func (f *Follower) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		cycleCtx := log.WithLogField(ctx, "cycle", ckbtypes.ShortID(uuid.New().String()))
		delay, err := f.pollCycle(cycleCtx)
		if err != nil {
			if ctx.Err() != nil {
				// shutdown raced an in-flight RPC or store call
				f.state.Store(int32(StateStopped))
				return
			}
			// The follower recovers from nothing itself: log, transition to
			// Failed, and leave restart to the supervisor
			log.L(ctx).Errorf("Chain follower failed: %s", err)
			f.state.Store(int32(StateFailed))
			return
		}
		if f.pruneRequested.CompareAndSwap(true, false) {
			if err := f.runPrune(cycleCtx); err != nil {
				log.L(ctx).Errorf("Chain follower failed: %s", err)
				f.state.Store(int32(StateFailed))
				return
			}
		}
		select {
		case <-ctx.Done():
			f.state.Store(int32(StateStopped))
			return
		case <-time.After(delay):
		}
	}
}

// Tip returns the highest block_digests row, or nil on an empty store.
func (f *Follower) Tip(ctx context.Context) (*store.BlockDigest, error) {
	var rows []*store.BlockDigest
	err := f.store.DB().WithContext(ctx).
		Order("block_number DESC").
		Limit(1).
		Find(&rows).
		Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// pollCycle is one turn of the state machine. It returns how long to wait
// before the next cycle: the poll interval when the chain has nothing new
// for us, or the fast-catchup delay after an append or rollback.
func (f *Follower) pollCycle(ctx context.Context) (time.Duration, error) {
	tip, err := f.Tip(ctx)
	if err != nil {
		return 0, err
	}

	if tip == nil {
		block0, err := f.rpc.GetBlockByNumber(ctx, 0)
		if err != nil {
			return 0, err
		}
		if block0 == nil {
			return f.pollInterval, nil
		}
		return fastCatchupDelay, f.append(ctx, block0)
	}

	next := tip.BlockNumber + 1
	block, err := f.rpc.GetBlockByNumber(ctx, next)
	if err != nil {
		return 0, err
	}
	if block == nil {
		return f.pollInterval, nil
	}
	if block.Header.ParentHash == tip.BlockHash {
		return fastCatchupDelay, f.append(ctx, block)
	}
	// Parent hash mismatch: the canonical chain no longer contains our
	// tip. Unwind one block; deeper reorgs unwind over successive cycles.
	log.L(ctx).Infof("Reorg detected at block %d: parent %s != local tip %s", next, block.Header.ParentHash, tip.BlockHash)
	return fastCatchupDelay, f.rollback(ctx, tip)
}

// append writes the whole block in one store transaction: either the full
// block is visible afterwards, or none of it is.
func (f *Follower) append(ctx context.Context, block *rpcclient.BlockJSONRPC) error {
	blockNumber := uint64(block.Header.Number)
	epochBytes, err := ckbtypes.HexToBytes(ckbtypes.LeftPadHex(fmt.Sprintf("%x", uint64(block.Header.Epoch)), 14))
	if err != nil {
		return err
	}
	err = f.store.Transaction(ctx, func(ctx context.Context, dbTX store.DBTX) error {
		err := dbTX.DB().Create(&store.BlockDigest{
			BlockNumber: blockNumber,
			BlockHash:   block.Header.Hash,
			Epoch:       epochBytes,
			Dao:         block.Header.Dao,
			Timestamp:   uint64(block.Header.Timestamp),
		}).Error
		if err != nil {
			return err
		}
		for txIndex, tx := range block.Transactions {
			if err := f.appendTransaction(ctx, dbTX, blockNumber, uint32(txIndex), tx); err != nil {
				return err
			}
		}
		if f.newBlockListener != nil {
			dbTX.AddPostCommit(func(ctx context.Context) {
				f.newBlockListener(ctx, block)
			})
		}
		return nil
	})
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgFollowerAppendFailure, blockNumber, err)
	}
	log.L(ctx).Infof("Appended block %d (%s) txns=%d", blockNumber, block.Header.Hash, len(block.Transactions))

	if blockNumber%f.pruneInterval == 0 {
		f.pruneRequested.Store(true)
	}
	return nil
}

func (f *Follower) appendTransaction(ctx context.Context, dbTX store.DBTX, blockNumber uint64, txIndex uint32, tx *rpcclient.TransactionJSONRPC) error {
	digest := &store.TransactionDigest{
		TxHash:      tx.Hash,
		TxIndex:     txIndex,
		OutputCount: uint32(len(tx.Outputs)),
		BlockNumber: blockNumber,
	}
	if err := dbTX.DB().Create(digest).Error; err != nil {
		return err
	}

	// Cellbase inputs are synthetic: they are recorded below for
	// completeness, but consume nothing
	if txIndex > 0 {
		for inputIndex, input := range tx.Inputs {
			if err := f.consumeCell(ctx, dbTX, digest, uint32(inputIndex), input, blockNumber, txIndex); err != nil {
				return err
			}
		}
	}

	if len(tx.Inputs) > 0 {
		inputRows := make([]*store.TransactionInput, len(tx.Inputs))
		for inputIndex, input := range tx.Inputs {
			inputRows[inputIndex] = &store.TransactionInput{
				TransactionDigestID: digest.ID,
				PreviousTxHash:      input.PreviousOutput.TxHash,
				PreviousIndex:       int64(uint64(input.PreviousOutput.Index)),
				InputIndex:          int64(inputIndex),
			}
		}
		if err := dbTX.DB().Create(inputRows).Error; err != nil {
			return err
		}
	}

	for outputIndex, output := range tx.Outputs {
		if err := f.produceCell(ctx, dbTX, digest, blockNumber, txIndex, uint32(outputIndex), output, tx); err != nil {
			return err
		}
	}
	return nil
}

// consumeCell flips the referenced cell to consumed and records the
// transaction <-> script associations for its lock (and type, if set).
func (f *Follower) consumeCell(ctx context.Context, dbTX store.DBTX, digest *store.TransactionDigest, inputIndex uint32, input *rpcclient.InputJSONRPC, blockNumber uint64, txIndex uint32) error {
	var cells []*store.Cell
	err := dbTX.DB().
		Where("tx_hash = ? AND output_index = ?", input.PreviousOutput.TxHash, int64(uint64(input.PreviousOutput.Index))).
		Limit(1).
		Find(&cells).
		Error
	if err != nil {
		return err
	}
	if len(cells) == 0 {
		// Legal only when pruning already removed the cell; on a live
		// append this indicates an upstream inconsistency
		log.L(ctx).Errorf("%s", i18n.NewError(ctx, msgs.MsgFollowerConsistency,
			blockNumber, txIndex, input.PreviousOutput.TxHash, uint64(input.PreviousOutput.Index)))
		return nil
	}
	cell := cells[0]
	err = dbTX.DB().
		Model(&store.Cell{}).
		Where("id = ?", cell.ID).
		Update("consumed", true).
		Error
	if err != nil {
		return err
	}
	scriptRows := []*store.TransactionScript{{
		TransactionDigestID: digest.ID,
		ScriptType:          store.ScriptTypeLock,
		IOType:              store.IOTypeInput,
		IOIndex:             inputIndex,
		ScriptID:            cell.LockScriptID,
	}}
	if cell.TypeScriptID != nil {
		scriptRows = append(scriptRows, &store.TransactionScript{
			TransactionDigestID: digest.ID,
			ScriptType:          store.ScriptTypeType,
			IOType:              store.IOTypeInput,
			IOIndex:             inputIndex,
			ScriptID:            *cell.TypeScriptID,
		})
	}
	return dbTX.DB().Create(scriptRows).Error
}

// produceCell interns the output's scripts and inserts the new live cell.
func (f *Follower) produceCell(ctx context.Context, dbTX store.DBTX, digest *store.TransactionDigest, blockNumber uint64, txIndex uint32, outputIndex uint32, output *rpcclient.OutputJSONRPC, tx *rpcclient.TransactionJSONRPC) error {
	lockScript, err := output.Lock.ToScript(ctx)
	if err != nil {
		return err
	}
	lockScriptID, err := f.interner.EnsureScript(ctx, dbTX, &lockScript)
	if err != nil {
		return err
	}
	var typeScriptID *int64
	if output.Type != nil {
		typeScript, err := output.Type.ToScript(ctx)
		if err != nil {
			return err
		}
		id, err := f.interner.EnsureScript(ctx, dbTX, &typeScript)
		if err != nil {
			return err
		}
		typeScriptID = &id
	}

	data := []byte{}
	if int(outputIndex) < len(tx.OutputsData) && tx.OutputsData[outputIndex] != nil {
		data = tx.OutputsData[outputIndex]
	}
	err = dbTX.DB().Create(&store.Cell{
		TxHash:       tx.Hash,
		OutputIndex:  uint64(outputIndex),
		BlockNumber:  blockNumber,
		TxIndex:      txIndex,
		Capacity:     output.Capacity.BigInt().String(),
		Data:         data,
		UdtAmount:    ckbtypes.DataLEToUint128(data),
		LockScriptID: lockScriptID,
		TypeScriptID: typeScriptID,
		Consumed:     false,
	}).Error
	if err != nil {
		return err
	}

	scriptRows := []*store.TransactionScript{{
		TransactionDigestID: digest.ID,
		ScriptType:          store.ScriptTypeLock,
		IOType:              store.IOTypeOutput,
		IOIndex:             outputIndex,
		ScriptID:            lockScriptID,
	}}
	if typeScriptID != nil {
		scriptRows = append(scriptRows, &store.TransactionScript{
			TransactionDigestID: digest.ID,
			ScriptType:          store.ScriptTypeType,
			IOType:              store.IOTypeOutput,
			IOIndex:             outputIndex,
			ScriptID:            *typeScriptID,
		})
	}
	return dbTX.DB().Create(scriptRows).Error
}

// rollback removes the current tip block only. Deeper reorganizations
// unwind one block per cycle until the local chain rejoins canonical.
func (f *Follower) rollback(ctx context.Context, tip *store.BlockDigest) error {
	n := tip.BlockNumber
	err := f.store.Transaction(ctx, func(ctx context.Context, dbTX store.DBTX) error {
		var digests []*store.TransactionDigest
		err := dbTX.DB().
			Where("block_number = ?", n).
			Order("tx_index ASC").
			Find(&digests).
			Error
		if err != nil {
			return err
		}
		for _, digest := range digests {
			if digest.TxIndex > 0 {
				var inputs []*store.TransactionInput
				err = dbTX.DB().
					Where("transaction_digest_id = ?", digest.ID).
					Find(&inputs).
					Error
				if err != nil {
					return err
				}
				for _, input := range inputs {
					err = dbTX.DB().
						Model(&store.Cell{}).
						Where("tx_hash = ? AND output_index = ?", input.PreviousTxHash, input.PreviousIndex).
						Update("consumed", false).
						Error
					if err != nil {
						return err
					}
				}
			}
			if err = dbTX.DB().Where("transaction_digest_id = ?", digest.ID).Delete(&store.TransactionInput{}).Error; err != nil {
				return err
			}
			if err = dbTX.DB().Where("transaction_digest_id = ?", digest.ID).Delete(&store.TransactionScript{}).Error; err != nil {
				return err
			}
		}
		// Outputs produced by the rolled-back block disappear entirely
		if err = dbTX.DB().Where("block_number = ?", n).Delete(&store.Cell{}).Error; err != nil {
			return err
		}
		if err = dbTX.DB().Where("block_number = ?", n).Delete(&store.TransactionDigest{}).Error; err != nil {
			return err
		}
		return dbTX.DB().Where("block_number = ?", n).Delete(&store.BlockDigest{}).Error
	})
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgFollowerRollbackFailure, n, err)
	}
	log.L(ctx).Infof("Rolled back block %d (%s)", n, tip.BlockHash)
	return nil
}

// runPrune garbage-collects consumed cells and their inputs below
// tip - keepNum. Live cells are never pruned regardless of age, and the
// digests plus transactions_scripts rows are retained so transaction
// lookups over pruned history keep working.
func (f *Follower) runPrune(ctx context.Context) error {
	tip, err := f.Tip(ctx)
	if err != nil {
		return err
	}
	if tip == nil || tip.BlockNumber <= f.keepNum {
		return nil
	}
	pruneBelow := tip.BlockNumber - f.keepNum
	err = f.store.Transaction(ctx, func(ctx context.Context, dbTX store.DBTX) error {
		err := dbTX.DB().
			Where("consumed = ? AND block_number < ?", true, pruneBelow).
			Delete(&store.Cell{}).
			Error
		if err != nil {
			return err
		}
		return dbTX.DB().
			Where("transaction_digest_id IN (?)",
				dbTX.DB().Model(&store.TransactionDigest{}).Select("id").Where("block_number < ?", pruneBelow)).
			Delete(&store.TransactionInput{}).
			Error
	})
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgFollowerPruneFailure, pruneBelow, err)
	}
	log.L(ctx).Infof("Pruned consumed state below block %d", pruneBelow)
	return nil
}
