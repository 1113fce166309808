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

package metricstorage

import (
	"github.com/pdstack/pdstack/internal/labels"
)

func NewCounterConstMetric(name string, value float64, lbs labels.Labels) ConstMetric {
	return ConstMetric{
		Model:  ModelCounter,
		Name:   name,
		Value:  value,
		Labels: lbs,
	}
}

func NewGaugeConstMetric(name string, value float64, lbs labels.Labels) ConstMetric {
	return ConstMetric{
		Model:  ModelGauge,
		Name:   name,
		Value:  value,
		Labels: lbs,
	}
}

func NewHistogramConstMetric(name string, value float64, unit Unit, lbs labels.Labels) ConstMetric {
	return ConstMetric{
		Unit:   unit,
		Model:  ModelHistogram,
		Name:   name,
		Value:  value,
		Labels: lbs,
	}
}
