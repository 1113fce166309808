// Copyright 2025 The pdstack Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package decoder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdstack/pdstack/common"
)

const (
	reasonInvalidPort = "invalid_port"
	reasonBadPayload  = "bad_payload"
	reasonNoSink      = "no_sink"
	reasonUnsupported = "unsupported_kind"
	reasonInvalidKind = "invalid_kind"
	reasonDownstream  = "downstream"
	reasonStackDepth  = "stack_depth"
)

var (
	emittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "decoder_emitted_total",
			Help:      "Decoder outputs emitted total",
		},
		[]string{"kind"},
	)

	droppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "decoder_dropped_total",
			Help:      "Decoder outputs dropped total",
		},
		[]string{"reason"},
	)
)
