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

package annstotraces

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/internal/tracekit"
)

func TestProcess(t *testing.T) {
	start := time.Unix(1700000000, 0)
	evt := &common.AnnotationEvent{
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
		StartTime:   start,
		EndTime:     start.Add(100 * time.Millisecond),
	}

	ps, err := New(nil)
	require.NoError(t, err)

	record, err := ps.Process(common.NewRecord(common.RecordAnnotations, evt))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, common.RecordTraces, record.RecordType)

	span := record.Data.(*common.TracesData).Data
	assert.Equal(t, "uart/data", span.Name())
	assert.False(t, span.TraceID().IsEmpty())
	assert.False(t, span.SpanID().IsEmpty())

	// 同一会话的注解共享 TraceID
	wantTraceID, ok := tracekit.TraceIDFromSession(evt.Session)
	require.True(t, ok)
	assert.Equal(t, wantTraceID, span.TraceID())

	assert.Equal(t, start.UnixNano(), span.StartTimestamp().AsTime().UnixNano())
	assert.Equal(t, start.Add(100*time.Millisecond).UnixNano(), span.EndTimestamp().AsTime().UnixNano())

	attr := span.Attributes()
	text, ok := attr.Get("annotation.text")
	require.True(t, ok)
	assert.Equal(t, "Data 0x41", text.Str())

	class, ok := attr.Get("annotation.class")
	require.True(t, ok)
	assert.Equal(t, "data", class.Str())

	fields, ok := attr.Get("annotation.fields")
	require.True(t, ok)
	assert.Equal(t, 3, fields.Slice().Len())

	ss, ok := attr.Get("sample.start")
	require.True(t, ok)
	assert.Equal(t, int64(100), ss.Int())
}

func TestProcessSkipsForeignRecord(t *testing.T) {
	ps, err := New(nil)
	require.NoError(t, err)

	record, err := ps.Process(common.NewRecord(common.RecordTraces, &common.TracesData{}))
	require.NoError(t, err)
	assert.Nil(t, record)
}
