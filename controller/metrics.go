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

package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdstack/pdstack/common"
)

var (
	uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "uptime",
			Help:      "Uptime in seconds",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "git_hash", "build_time"},
	)

	captureSampleRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "capture_samplerate_hz",
			Help:      "Capture source sample rate in hz",
		},
		[]string{"engine"},
	)

	capturedChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "capture_received_chunks_total",
			Help:      "Capture received chunks total",
		},
	)

	capturedSamples = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "capture_received_samples_total",
			Help:      "Capture received samples total",
		},
	)

	handledAnnotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "handled_annotations_total",
			Help:      "Handled annotations total",
		},
	)
)
