/*
 * Copyright © 2024 Kaleido, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
 * an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
 * specific language governing permissions and limitations under the License.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package bootstrap wires the indexer's components together behind a
// single Run entrypoint: config, logging, store, node RPC client, chain
// follower, and the supervising watchdog.
package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/nervosnetwork/ckb-indexer/internal/follower"
	"github.com/nervosnetwork/ckb-indexer/internal/log"
	"github.com/nervosnetwork/ckb-indexer/internal/rpcclient"
	"github.com/nervosnetwork/ckb-indexer/internal/store"
	"github.com/nervosnetwork/ckb-indexer/internal/supervisor"
	"github.com/nervosnetwork/ckb-indexer/pkg/config"
)

type instance struct {
	configFile string

	ctx       context.Context
	cancelCtx context.CancelFunc
	signals   chan os.Signal
	stopped   atomic.Bool
	done      chan struct{}
}

type RC int

const (
	RC_OK   RC = 0
	RC_FAIL RC = 1
)

// Run blocks until a signal (or stop) terminates the process.
func Run(configFile string) RC {
	return newInstance(configFile).run()
}

func newInstance(configFile string) *instance {
	i := &instance{
		configFile: configFile,
		signals:    make(chan os.Signal, 1),
		done:       make(chan struct{}),
	}
	i.ctx, i.cancelCtx = context.WithCancel(log.WithLogField(context.Background(), "pid", strconv.Itoa(os.Getpid())))
	return i
}

func (i *instance) signalHandler() {
	signal.Notify(i.signals, os.Interrupt, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	sig := <-i.signals
	if sig != nil {
		log.L(i.ctx).Infof("Stopping due to signal %s", sig)
		i.stop()
	}
}

func (i *instance) run() RC {
	defer close(i.done)
	go i.signalHandler()

	var conf config.IndexerConfig
	if err := config.ReadAndParseYAMLFile(i.ctx, i.configFile, &conf); err != nil {
		log.L(i.ctx).Error(err.Error())
		return RC_FAIL
	}
	log.InitConfig(&conf.Log)

	s, err := store.NewStore(i.ctx, &conf.DB)
	if err != nil {
		log.L(i.ctx).Error(err.Error())
		return RC_FAIL
	}
	defer s.Close()

	rpc, err := rpcclient.NewCKBClient(i.ctx, &conf.Node)
	if err != nil {
		log.L(i.ctx).Error(err.Error())
		return RC_FAIL
	}

	f := follower.NewFollower(&conf.Follower, s, rpc, nil)
	sup := supervisor.New(&conf.Follower, f)
	if err := sup.StartForever(i.ctx); err != nil {
		log.L(i.ctx).Error(err.Error())
		return RC_FAIL
	}
	defer sup.Stop()

	// We're started... we just wait for the request to stop
	<-i.ctx.Done()

	return RC_OK
}

func (i *instance) stop() {
	if i.stopped.CompareAndSwap(false, true) {
		i.cancelCtx()
		close(i.signals)
		<-i.done
	}
}
