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

package follower

import "github.com/nervosnetwork/ckb-indexer/internal/confutil"

type Config struct {
	// delay before retrying when the node has no next block yet
	PollInterval *string `yaml:"pollInterval"`
	// supervisor liveness tick
	LivenessCheckInterval *string `yaml:"livenessCheckInterval"`
	// blocks retained below tip before pruning eligibility
	KeepNum *int `yaml:"keepNum"`
	// append-triggered prune cadence in block-number units
	PruneInterval *int `yaml:"pruneInterval"`
}

var Defaults = &Config{
	PollInterval:          confutil.P("2s"),
	LivenessCheckInterval: confutil.P("5s"),
	KeepNum:               confutil.P(10000),
	PruneInterval:         confutil.P(2000),
}
