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

package log

import "github.com/nervosnetwork/ckb-indexer/internal/confutil"

type Config struct {
	// the logging level
	Level *string `yaml:"level"`
	// the format ('simple', 'detailed', 'json')
	Format *string `yaml:"format"`
	// the output location ('stdout', 'stderr', 'file')
	Output *string `yaml:"output"`
	// forces color to be enabled, even if we do not detect a TTY
	ForceColor *bool `yaml:"forceColor"`
	// forces color to be disabled, even if we detect a TTY
	DisableColor *bool `yaml:"disableColor"`
	// string format for timestamps
	TimeFormat *string `yaml:"timeFormat"`
	// sets log timestamps to the UTC timezone
	UTC *bool `yaml:"utc"`
	// configures file based logging
	File FileConfig `yaml:"file"`
}

type FileConfig struct {
	Filename   *string `yaml:"filename"`
	MaxSize    *string `yaml:"maxSize"`
	MaxBackups *int    `yaml:"maxBackups"`
	MaxAge     *string `yaml:"maxAge"`
	Compress   *bool   `yaml:"compress"`
}

var Defaults = &Config{
	Level:        confutil.P("info"),
	Format:       confutil.P("simple"),
	Output:       confutil.P("stderr"),
	ForceColor:   confutil.P(false),
	DisableColor: confutil.P(false),
	TimeFormat:   confutil.P("2006-01-02T15:04:05.000Z07:00"),
	UTC:          confutil.P(false),
	File: FileConfig{
		Filename:   confutil.P("ckb-indexer.log"),
		MaxSize:    confutil.P("100Mb"),
		MaxBackups: confutil.P(2),
		MaxAge:     confutil.P("24h"),
		Compress:   confutil.P(true),
	},
}
