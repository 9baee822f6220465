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
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/hyperledger/firefly-common/pkg/ffresty"
	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/nervosnetwork/ckb-indexer/internal/confutil"
	"github.com/nervosnetwork/ckb-indexer/internal/msgs"
)

type ConfigAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// HTTPConfig configures the JSON/RPC connection to the CKB full node.
type HTTPConfig struct {
	URL            string                 `yaml:"url"`
	HTTPHeaders    map[string]interface{} `yaml:"httpHeaders"`
	Auth           ConfigAuth             `yaml:"auth"`
	RequestTimeout *string                `yaml:"requestTimeout"`
}

var DefaultHTTPConfig = &HTTPConfig{
	RequestTimeout: confutil.P("30s"),
}

func ParseHTTPConfig(ctx context.Context, config *HTTPConfig) (*resty.Client, error) {
	u, err := url.Parse(config.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, i18n.WrapError(ctx, err, msgs.MsgRPCClientInvalidHTTPURL, config.URL)
	}
	restyConf := ffresty.Config{
		URL: u.String(),
		HTTPConfig: ffresty.HTTPConfig{
			HTTPHeaders:        config.HTTPHeaders,
			AuthUsername:       config.Auth.Username,
			AuthPassword:       config.Auth.Password,
			HTTPRequestTimeout: fftypes.FFDuration(confutil.DurationMin(config.RequestTimeout, 0, *DefaultHTTPConfig.RequestTimeout)),
		},
	}
	return ffresty.NewWithConfig(ctx, restyConf), nil
}
