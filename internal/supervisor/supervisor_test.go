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

package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/nervosnetwork/ckb-indexer/internal/confutil"
	"github.com/nervosnetwork/ckb-indexer/internal/follower"
	"github.com/nervosnetwork/ckb-indexer/internal/rpcclient"
	"github.com/nervosnetwork/ckb-indexer/internal/store"
	"github.com/nervosnetwork/ckb-indexer/pkg/ckbtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyNode struct {
	mux     sync.Mutex
	failing bool
	block0  *rpcclient.BlockJSONRPC
}

func (n *flakyNode) setFailing(failing bool) {
	n.mux.Lock()
	defer n.mux.Unlock()
	n.failing = failing
}

func (n *flakyNode) GetBlockByNumber(ctx context.Context, number uint64) (*rpcclient.BlockJSONRPC, error) {
	n.mux.Lock()
	defer n.mux.Unlock()
	if n.failing {
		return nil, fmt.Errorf("node down")
	}
	if number == 0 {
		return n.block0, nil
	}
	return nil, nil
}

func (n *flakyNode) GetTransaction(ctx context.Context, hash ckbtypes.Bytes32) (*rpcclient.TXWithStatusJSONRPC, error) {
	return nil, nil
}

func TestSupervisorRestartsFailedFollower(t *testing.T) {
	ctx := context.Background()
	s, done, err := store.NewUnitTestStore(ctx, "supervisor")
	require.NoError(t, err)
	defer done()

	lock := ckbtypes.NewBytes32FromSlice(bytes.Repeat([]byte{0x01}, 32))
	node := &flakyNode{
		failing: true,
		block0: &rpcclient.BlockJSONRPC{
			Header: &rpcclient.BlockHeaderJSONRPC{
				Number:    ethtypes.HexUint64(0),
				Hash:      ckbtypes.NewBytes32FromSlice(bytes.Repeat([]byte{0xb0}, 32)),
				Epoch:     ethtypes.HexUint64(1),
				Dao:       bytes.Repeat([]byte{0x0d}, 32),
				Timestamp: ethtypes.HexUint64(1700000000000),
			},
			Transactions: []*rpcclient.TransactionJSONRPC{{
				Hash: ckbtypes.NewBytes32FromSlice(bytes.Repeat([]byte{0xa0}, 32)),
				Outputs: []*rpcclient.OutputJSONRPC{{
					Capacity: *ethtypes.NewHexInteger64(0x1000),
					Lock:     &rpcclient.ScriptJSONRPC{CodeHash: lock, HashType: "data", Args: []byte{}},
				}},
				OutputsData: []ethtypes.HexBytes0xPrefix{{}},
			}},
		},
	}

	conf := &follower.Config{
		PollInterval:          confutil.P("1ms"),
		LivenessCheckInterval: confutil.P("5ms"),
	}
	f := follower.NewFollower(conf, s, node, nil)
	sup := New(conf, f)
	require.NoError(t, sup.StartForever(ctx))
	defer sup.Stop()

	// the follower fails fast against the broken node
	deadline := time.Now().Add(5 * time.Second)
	for f.Running() && time.Now().Before(deadline) {
		time.Sleep(1 * time.Millisecond)
	}
	assert.False(t, f.Running())

	// once the node recovers, the liveness tick restarts the follower and
	// indexing proceeds
	node.setFailing(false)
	deadline = time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if tip, err := f.Tip(ctx); err == nil && tip != nil {
			break
		}
		time.Sleep(1 * time.Millisecond)
	}
	tip, err := f.Tip(ctx)
	require.NoError(t, err)
	require.NotNil(t, tip)
	assert.Equal(t, uint64(0), tip.BlockNumber)
	assert.True(t, f.Running())
}
