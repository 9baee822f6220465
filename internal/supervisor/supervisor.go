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

// Package supervisor is the thin liveness watchdog over the chain
// follower: it restarts the follower whenever a poll cycle has failed.
package supervisor

import (
	"context"
	"time"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/nervosnetwork/ckb-indexer/internal/confutil"
	"github.com/nervosnetwork/ckb-indexer/internal/follower"
	"github.com/nervosnetwork/ckb-indexer/internal/log"
	"github.com/nervosnetwork/ckb-indexer/internal/msgs"
)

type Supervisor struct {
	follower *follower.Follower
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(conf *follower.Config, f *follower.Follower) *Supervisor {
	return &Supervisor{
		follower: f,
		interval: confutil.DurationMin(conf.LivenessCheckInterval, 1*time.Millisecond, *follower.Defaults.LivenessCheckInterval),
	}
}

// StartForever starts the follower and arms the periodic liveness check.
// It returns once started; Stop shuts both down.
func (s *Supervisor) StartForever(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(log.WithLogField(ctx, "role", "supervisor"))
	s.cancel = cancel
	s.done = make(chan struct{})
	if err := s.follower.Start(runCtx); err != nil {
		cancel()
		close(s.done)
		return err
	}
	go s.watch(runCtx)
	return nil
}

func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	s.follower.Stop()
}

func (s *Supervisor) watch(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.follower.Running() {
			log.L(ctx).Errorf("Chain follower is not running - restarting")
			if err := s.follower.Start(ctx); err != nil {
				log.L(ctx).Errorf("%s", i18n.NewError(ctx, msgs.MsgSupervisorStartFailed, err))
			}
			continue
		}
		tip, err := s.follower.Tip(ctx)
		switch {
		case err != nil:
			log.L(ctx).Errorf("Failed to read tip: %s", err)
		case tip == nil:
			log.L(ctx).Infof("Chain follower live - no blocks indexed yet")
		default:
			log.L(ctx).Infof("Chain follower live - tip %d (%s)", tip.BlockNumber, tip.BlockHash)
		}
	}
}
