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

package dascii

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/decoder"
	"github.com/pdstack/pdstack/decoder/duart"
)

// wave 按位单元拼装通道 0 上的逻辑波形
type wave struct {
	spb     int
	samples []byte
}

func (w *wave) raw(v uint8, n int) {
	for i := 0; i < n; i++ {
		w.samples = append(w.samples, v)
	}
}

func (w *wave) cell(v uint8) {
	w.raw(v, w.spb)
}

// frame 一个 8N1 帧 停止位电平可指定 帧后跟一个位单元的空闲
func (w *wave) frame(b uint8, stopBit uint8) {
	w.cell(0)
	for i := 0; i < 8; i++ {
		w.cell((b >> i) & 1)
	}
	w.cell(stopBit)
	w.raw(1, w.spb)
}

func TestASCIIStack(t *testing.T) {
	w := &wave{spb: 4}
	w.raw(1, 8)
	w.frame(0x41, 1) // 'A'
	w.frame(0x07, 1) // BEL
	w.frame(0xC3, 1) // 非 ASCII
	w.frame(0x41, 0) // 停止位错误

	sess := decoder.NewSession(decoder.SessionConfig{SampleRate: 4000})
	lower, err := sess.NewInstance(duart.Name, common.Options{
		"samplerate": 4000,
		"baudrate":   1000,
	})
	require.NoError(t, err)
	upper, err := sess.NewInstance(Name, nil)
	require.NoError(t, err)
	require.NoError(t, sess.Stack(lower, upper))

	var events []*common.AnnotationEvent
	require.NoError(t, sess.RegisterSink(decoder.OutputAnn, func(pd *decoder.ProtoData) {
		evt := pd.Event()
		if evt.Decoder == Name {
			events = append(events, evt)
		}
	}))
	require.NoError(t, sess.Start())

	sess.Feed(0, uint64(len(w.samples)), w.samples)

	require.Len(t, events, 4)

	assert.Equal(t, "char", events[0].Class)
	assert.Equal(t, []string{"A"}, events[0].Fields)
	assert.Equal(t, uint64(8), events[0].StartSample)
	assert.Equal(t, uint64(48), events[0].EndSample)

	assert.Equal(t, "ctrl", events[1].Class)
	assert.Equal(t, []string{"BEL"}, events[1].Fields)

	assert.Equal(t, "invalid", events[2].Class)
	assert.Equal(t, []string{"Non-ASCII 0xC3", "N/A"}, events[2].Fields)

	assert.Equal(t, "invalid", events[3].Class)
	assert.Equal(t, []string{"Invalid frame", "INV"}, events[3].Fields)
	assert.Equal(t, "ascii#1", events[3].Instance)
}

func TestDecodeWrongPayload(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)

	err = d.Decode(0, 4, []byte{0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected payload type")
}

func TestCtrlName(t *testing.T) {
	assert.Equal(t, "NUL", ctrlName(0x00))
	assert.Equal(t, "ESC", ctrlName(0x1B))
	assert.Equal(t, "US", ctrlName(0x1F))
	assert.Equal(t, "DEL", ctrlName(0x7F))
}
