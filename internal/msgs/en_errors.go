// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package msgs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"golang.org/x/text/language"
)

const ckbIndexerPrefix = "CKB01"

var registered sync.Once
var ffe = func(key, translation string, statusHint ...int) i18n.ErrorMessageKey {
	registered.Do(func() {
		i18n.RegisterPrefix(ckbIndexerPrefix, "CKB Cell Indexer")
	})
	if !strings.HasPrefix(key, ckbIndexerPrefix) {
		panic(fmt.Errorf("must have prefix '%s': %s", ckbIndexerPrefix, key))
	}
	return i18n.FFE(language.AmericanEnglish, key, translation, statusHint...)
}

var (
	// Codec CKB0100XX
	MsgCodecInvalidHex     = ffe("CKB010000", "Invalid hex value: %s")
	MsgCodecInvalidDecimal = ffe("CKB010001", "Invalid decimal integer: %s")
	MsgCodecInvalidLength  = ffe("CKB010002", "Invalid byte length, expected %d got %d")

	// Script interner CKB0101XX
	MsgInternFailure      = ffe("CKB010100", "Failed to intern script")
	MsgInvalidScriptShape = ffe("CKB010101", "Invalid script: %s")

	// Store CKB0102XX
	MsgStoreInvalidType         = ffe("CKB010200", "Invalid store type: %s")
	MsgStoreMissingDSN          = ffe("CKB010201", "Missing DSN for store connection")
	MsgStoreInitFailed          = ffe("CKB010202", "Failed to initialize store connection")
	MsgStoreMigrationFailed     = ffe("CKB010203", "Failed to run store migrations")
	MsgStoreMissingMigrationDir = ffe("CKB010204", "Missing migrations directory")
	MsgStoreErrorInTransaction  = ffe("CKB010205", "Error in store transaction: %v")

	// Chain follower CKB0103XX
	MsgFollowerAlreadyRunning  = ffe("CKB010300", "Chain follower is already running")
	MsgFollowerNotRunning      = ffe("CKB010301", "Chain follower is not running")
	MsgFollowerRPCFailure      = ffe("CKB010302", "RPC call %s failed: %v")
	MsgFollowerAppendFailure   = ffe("CKB010303", "Failed to append block %d: %v")
	MsgFollowerRollbackFailure = ffe("CKB010304", "Failed to roll back block %d: %v")
	MsgFollowerPruneFailure    = ffe("CKB010305", "Failed to prune below block %d: %v")
	MsgFollowerConsistency     = ffe("CKB010306", "Input at block %d tx %d references missing cell (%s, %d)")

	// Collectors CKB0104XX
	MsgCollectorNoFilter         = ffe("CKB010400", "At least one of lock or type must be supplied")
	MsgCollectorInvalidArgsLen   = ffe("CKB010401", "Invalid argsLen: %d")
	MsgCollectorMissingTx        = ffe("CKB010402", "Transaction %s referenced by index was not found via RPC")
	MsgCollectorInvalidTypeValue = ffe("CKB010403", "Invalid type filter value: %v")

	// Supervisor CKB0105XX
	MsgSupervisorStartFailed = ffe("CKB010500", "Failed to (re)start chain follower: %v")

	// RPC client CKB0106XX
	MsgRPCClientInvalidHTTPURL = ffe("CKB010600", "Invalid HTTP URL for CKB node RPC: %s")

	// Config CKB0107XX
	MsgConfigFileMissing    = ffe("CKB010700", "Config file not found: %s")
	MsgConfigFileReadError  = ffe("CKB010701", "Failed to read config file %s: %s")
	MsgConfigFileParseError = ffe("CKB010702", "Failed to parse config file: %s")
)
