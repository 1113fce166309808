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

package annstometrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/internal/labels"
	"github.com/pdstack/pdstack/internal/metricstorage"
)

func newEvent() *common.AnnotationEvent {
	return &common.AnnotationEvent{
		Session:     "2f9b88a4-7e5c-4f3a-9f21-0db2cf9a6b10",
		Decoder:     "uart",
		Instance:    "uart#0",
		ProtoID:     "uart",
		Format:      1,
		Class:       "data",
		Fields:      []string{"Data 0x41", "0x41", "41"},
		StartSample: 100,
		EndSample:   200,
		SampleRate:  1000,
	}
}

func TestProcess(t *testing.T) {
	ps, err := New(map[string]any{
		"requireLabels": []string{"instance", "proto"},
	})
	require.NoError(t, err)

	record, err := ps.Process(common.NewRecord(common.RecordAnnotations, newEvent()))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, common.RecordMetrics, record.RecordType)

	data := record.Data.(*common.MetricsData).Data
	require.Len(t, data, 2)

	wantLbs := labels.Labels{
		{Name: "class", Value: "data"},
		{Name: "instance", Value: "uart#0"},
		{Name: "proto", Value: "uart"},
	}

	counter := data[0]
	assert.Equal(t, metricstorage.ModelCounter, counter.Model)
	assert.Equal(t, "uart_annotations_total", counter.Name)
	assert.Equal(t, float64(1), counter.Value)
	assert.Equal(t, wantLbs, counter.Labels)

	histogram := data[1]
	assert.Equal(t, metricstorage.ModelHistogram, histogram.Model)
	assert.Equal(t, "uart_annotation_duration_seconds", histogram.Name)
	assert.Equal(t, metricstorage.UnitSeconds, histogram.Unit)
	assert.InDelta(t, (100 * time.Millisecond).Seconds(), histogram.Value, 1e-9)
	assert.Equal(t, wantLbs, histogram.Labels)
}

func TestProcessDefaultLabels(t *testing.T) {
	ps, err := New(nil)
	require.NoError(t, err)

	record, err := ps.Process(common.NewRecord(common.RecordAnnotations, newEvent()))
	require.NoError(t, err)

	data := record.Data.(*common.MetricsData).Data
	require.Len(t, data, 2)
	assert.Equal(t, labels.Labels{{Name: "class", Value: "data"}}, data[0].Labels)
}

func TestProcessSkipsForeignRecord(t *testing.T) {
	ps, err := New(nil)
	require.NoError(t, err)

	record, err := ps.Process(common.NewRecord(common.RecordMetrics, &common.MetricsData{}))
	require.NoError(t, err)
	assert.Nil(t, record)
}
