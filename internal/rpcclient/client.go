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

package rpcclient

import (
	"context"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"
	"github.com/nervosnetwork/ckb-indexer/internal/msgs"
	"github.com/nervosnetwork/ckb-indexer/pkg/ckbtypes"
)

// CKBClient is the narrow view of the full node's JSON/RPC interface the
// indexer consumes. Both methods return nil (with nil error) when the node
// reports no such block/transaction.
type CKBClient interface {
	GetBlockByNumber(ctx context.Context, number uint64) (*BlockJSONRPC, error)
	GetTransaction(ctx context.Context, hash ckbtypes.Bytes32) (*TXWithStatusJSONRPC, error)
}

type ckbClient struct {
	rpc rpcbackend.RPC
}

func NewCKBClient(ctx context.Context, conf *HTTPConfig) (CKBClient, error) {
	restyClient, err := ParseHTTPConfig(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &ckbClient{rpc: rpcbackend.NewRPCClient(restyClient)}, nil
}

// WrapRPCClient is used by tests (and embedders) that build their own backend.
func WrapRPCClient(rpc rpcbackend.RPC) CKBClient {
	return &ckbClient{rpc: rpc}
}

func (c *ckbClient) GetBlockByNumber(ctx context.Context, number uint64) (*BlockJSONRPC, error) {
	var block *BlockJSONRPC
	if rpcErr := c.rpc.CallRPC(ctx, &block, "get_block_by_number", ethtypes.HexUint64(number)); rpcErr != nil {
		return nil, i18n.NewError(ctx, msgs.MsgFollowerRPCFailure, "get_block_by_number", rpcErr.Error())
	}
	return block, nil
}

func (c *ckbClient) GetTransaction(ctx context.Context, hash ckbtypes.Bytes32) (*TXWithStatusJSONRPC, error) {
	var txws *TXWithStatusJSONRPC
	if rpcErr := c.rpc.CallRPC(ctx, &txws, "get_transaction", hash); rpcErr != nil {
		return nil, i18n.NewError(ctx, msgs.MsgFollowerRPCFailure, "get_transaction", rpcErr.Error())
	}
	// The node returns an envelope with a null transaction for hashes it
	// knows nothing about
	if txws != nil && txws.Transaction == nil {
		return nil, nil
	}
	return txws, nil
}
