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
	"github.com/nervosnetwork/ckb-indexer/internal/msgs"
	"github.com/nervosnetwork/ckb-indexer/pkg/ckbtypes"
)

// The JSON shapes below mirror the CKB node's JSON/RPC encoding, where
// every number is a "0x"-prefixed hex string.

type BlockHeaderJSONRPC struct {
	Number     ethtypes.HexUint64        `json:"number"`
	Hash       ckbtypes.Bytes32          `json:"hash"`
	ParentHash ckbtypes.Bytes32          `json:"parent_hash"`
	Epoch      ethtypes.HexUint64        `json:"epoch"`
	Dao        ethtypes.HexBytes0xPrefix `json:"dao"`
	Timestamp  ethtypes.HexUint64        `json:"timestamp"`
}

type BlockJSONRPC struct {
	Header       *BlockHeaderJSONRPC   `json:"header"`
	Transactions []*TransactionJSONRPC `json:"transactions"`
}

type TransactionJSONRPC struct {
	Hash        ckbtypes.Bytes32            `json:"hash"`
	Inputs      []*InputJSONRPC             `json:"inputs"`
	Outputs     []*OutputJSONRPC            `json:"outputs"`
	OutputsData []ethtypes.HexBytes0xPrefix `json:"outputs_data"`
}

type InputJSONRPC struct {
	PreviousOutput *OutPointJSONRPC `json:"previous_output"`
}

type OutPointJSONRPC struct {
	TxHash ckbtypes.Bytes32   `json:"tx_hash"`
	Index  ethtypes.HexUint64 `json:"index"`
}

type OutputJSONRPC struct {
	Capacity ethtypes.HexInteger `json:"capacity"`
	Lock     *ScriptJSONRPC      `json:"lock"`
	Type     *ScriptJSONRPC      `json:"type,omitempty"`
}

type ScriptJSONRPC struct {
	CodeHash ckbtypes.Bytes32          `json:"code_hash"`
	HashType string                    `json:"hash_type"`
	Args     ethtypes.HexBytes0xPrefix `json:"args"`
}

// ToScript converts the wire form to the compact internal script value.
func (s *ScriptJSONRPC) ToScript(ctx context.Context) (script ckbtypes.Script, err error) {
	hashType, err := ckbtypes.ParseHashType(s.HashType)
	if err != nil {
		return script, i18n.WrapError(ctx, err, msgs.MsgInvalidScriptShape, err)
	}
	return ckbtypes.Script{
		CodeHash: s.CodeHash,
		HashType: hashType,
		Args:     []byte(s.Args),
	}, nil
}

// NewScriptJSONRPC renders the internal script value back to wire form.
func NewScriptJSONRPC(script *ckbtypes.Script) *ScriptJSONRPC {
	if script == nil {
		return nil
	}
	return &ScriptJSONRPC{
		CodeHash: script.CodeHash,
		HashType: script.HashType.String(),
		Args:     ethtypes.HexBytes0xPrefix(script.Args),
	}
}

type TXStatusJSONRPC struct {
	Status    string            `json:"status"`
	BlockHash *ckbtypes.Bytes32 `json:"block_hash"`
}

// TXWithStatusJSONRPC is the envelope returned by get_transaction.
type TXWithStatusJSONRPC struct {
	Transaction *TransactionJSONRPC `json:"transaction"`
	TXStatus    *TXStatusJSONRPC    `json:"tx_status"`
}
