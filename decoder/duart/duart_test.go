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

package duart

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/decoder"
)

// wave 按位单元拼装单通道逻辑波形 样本字节已按通道移位
type wave struct {
	spb     int
	channel uint8
	samples []byte
}

func newWave(spb int, channel uint8) *wave {
	return &wave{spb: spb, channel: channel}
}

func (w *wave) raw(v uint8, n int) *wave {
	for i := 0; i < n; i++ {
		w.samples = append(w.samples, v<<w.channel)
	}
	return w
}

func (w *wave) cell(v uint8) *wave {
	return w.raw(v, w.spb)
}

func (w *wave) byteLSB(b uint8, bits int) *wave {
	for i := 0; i < bits; i++ {
		w.cell((b >> i) & 1)
	}
	return w
}

type frameRecord struct {
	ss, es uint64
	frame  Frame
}

type frameRecorder struct {
	records []frameRecord
}

func (r *frameRecorder) Info() decoder.Info {
	return decoder.Info{ID: "framerec", Inputs: []string{Name}}
}

func (r *frameRecorder) Start(di *decoder.Instance) error { return nil }

func (r *frameRecorder) Decode(ss, es uint64, payload any) error {
	f, ok := payload.(*Frame)
	if !ok {
		return errors.Errorf("unexpected payload type %T", payload)
	}
	r.records = append(r.records, frameRecord{ss: ss, es: es, frame: *f})
	return nil
}

// harness 组装一条 uart 会话 注解经回调收集 协议帧经堆叠实例收集
type harness struct {
	sess   *decoder.Session
	events []*common.AnnotationEvent
	rec    *frameRecorder
}

func newHarness(t *testing.T, sampleRate uint64, options common.Options) *harness {
	t.Helper()

	if options == nil {
		options = common.NewOptions()
	}
	options.Merge("samplerate", sampleRate)

	h := &harness{rec: &frameRecorder{}}
	decoder.Register("framerec", func(common.Options) (decoder.Decoder, error) {
		return h.rec, nil
	})

	sess := decoder.NewSession(decoder.SessionConfig{SampleRate: sampleRate})
	lower, err := sess.NewInstance(Name, options)
	require.NoError(t, err)
	upper, err := sess.NewInstance("framerec", nil)
	require.NoError(t, err)
	require.NoError(t, sess.Stack(lower, upper))

	require.NoError(t, sess.RegisterSink(decoder.OutputAnn, func(pd *decoder.ProtoData) {
		h.events = append(h.events, pd.Event())
	}))
	require.NoError(t, sess.Start())

	h.sess = sess
	return h
}

func TestFrame8N1(t *testing.T) {
	w := newWave(4, 0)
	w.raw(1, 8)         // 空闲
	w.cell(0)           // 起始位
	w.byteLSB(0x41, 8)  // 'A'
	w.cell(1)           // 停止位
	w.raw(1, 8)

	h := newHarness(t, 4000, common.Options{"baudrate": 1000})
	h.sess.Feed(0, uint64(len(w.samples)), w.samples)

	require.Len(t, h.events, 3)

	evt := h.events[0]
	assert.Equal(t, "start", evt.Class)
	assert.Equal(t, uint64(8), evt.StartSample)
	assert.Equal(t, uint64(12), evt.EndSample)
	assert.Equal(t, []string{"Start bit", "Start", "S"}, evt.Fields)

	evt = h.events[1]
	assert.Equal(t, "data", evt.Class)
	assert.Equal(t, uint64(12), evt.StartSample)
	assert.Equal(t, uint64(44), evt.EndSample)
	assert.Equal(t, []string{"Data 0x41", "0x41", "41"}, evt.Fields)
	assert.Equal(t, "uart", evt.Decoder)
	assert.Equal(t, "uart#0", evt.Instance)

	evt = h.events[2]
	assert.Equal(t, "stop", evt.Class)
	assert.Equal(t, uint64(44), evt.StartSample)
	assert.Equal(t, uint64(48), evt.EndSample)

	require.Len(t, h.rec.records, 1)
	rec := h.rec.records[0]
	assert.Equal(t, uint64(8), rec.ss)
	assert.Equal(t, uint64(48), rec.es)
	assert.Equal(t, Frame{Byte: 0x41, Bits: 8, ParityOK: true, StopOK: true}, rec.frame)
}

func TestFrameChunked(t *testing.T) {
	w := newWave(4, 0)
	w.raw(1, 8)
	w.cell(0)
	w.byteLSB(0x41, 8)
	w.cell(1)
	w.raw(1, 8)

	h := newHarness(t, 4000, common.Options{"baudrate": 1000})

	// 在帧中间切开分两块投喂 帧状态必须跨块保持
	h.sess.Feed(0, 20, w.samples[:20])
	h.sess.Feed(20, uint64(len(w.samples)), w.samples[20:])

	require.Len(t, h.events, 3)
	assert.Equal(t, []string{"Data 0x41", "0x41", "41"}, h.events[1].Fields)

	require.Len(t, h.rec.records, 1)
	assert.Equal(t, Frame{Byte: 0x41, Bits: 8, ParityOK: true, StopOK: true}, h.rec.records[0].frame)
}

func TestParity(t *testing.T) {
	tests := []struct {
		name      string
		parity    string
		parityBit uint8
		wantClass string
		wantOK    bool
	}{
		{
			name:      "even ok",
			parity:    "even",
			parityBit: 0,
			wantClass: "parity-ok",
			wantOK:    true,
		},
		{
			name:      "even error",
			parity:    "even",
			parityBit: 1,
			wantClass: "parity-err",
			wantOK:    false,
		},
		{
			name:      "odd ok",
			parity:    "odd",
			parityBit: 1,
			wantClass: "parity-ok",
			wantOK:    true,
		},
		{
			name:      "odd error",
			parity:    "odd",
			parityBit: 0,
			wantClass: "parity-err",
			wantOK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 0x41 含两个 1 数据位
			w := newWave(4, 0)
			w.raw(1, 8)
			w.cell(0)
			w.byteLSB(0x41, 8)
			w.cell(tt.parityBit)
			w.cell(1)
			w.raw(1, 8)

			h := newHarness(t, 4000, common.Options{
				"baudrate": 1000,
				"parity":   tt.parity,
			})
			h.sess.Feed(0, uint64(len(w.samples)), w.samples)

			require.Len(t, h.events, 4)
			evt := h.events[2]
			assert.Equal(t, tt.wantClass, evt.Class)
			assert.Equal(t, uint64(44), evt.StartSample)
			assert.Equal(t, uint64(48), evt.EndSample)

			require.Len(t, h.rec.records, 1)
			rec := h.rec.records[0]
			assert.Equal(t, tt.wantOK, rec.frame.ParityOK)
			assert.Equal(t, uint64(8), rec.ss)
			assert.Equal(t, uint64(52), rec.es)
		})
	}
}

func TestStartBitGlitch(t *testing.T) {
	w := newWave(4, 0)
	w.raw(1, 8)
	w.raw(0, 1) // 毛刺 采样点处已回到高电平
	w.raw(1, 11)
	w.cell(0)
	w.byteLSB(0x55, 8)
	w.cell(1)
	w.raw(1, 4)

	h := newHarness(t, 4000, common.Options{"baudrate": 1000})
	h.sess.Feed(0, uint64(len(w.samples)), w.samples)

	require.Len(t, h.events, 4)

	evt := h.events[0]
	assert.Equal(t, "frame-err", evt.Class)
	assert.Equal(t, uint64(8), evt.StartSample)
	assert.Equal(t, uint64(12), evt.EndSample)

	// 毛刺之后的完整帧照常解码
	assert.Equal(t, "start", h.events[1].Class)
	assert.Equal(t, uint64(20), h.events[1].StartSample)
	assert.Equal(t, []string{"Data 0x55", "0x55", "55"}, h.events[2].Fields)

	require.Len(t, h.rec.records, 1)
	assert.Equal(t, uint64(20), h.rec.records[0].ss)
	assert.Equal(t, uint64(60), h.rec.records[0].es)
}

func TestStopBitError(t *testing.T) {
	w := newWave(4, 0)
	w.raw(1, 8)
	w.cell(0)
	w.byteLSB(0xFF, 8)
	w.cell(0) // 停止位错误
	w.raw(1, 8)

	h := newHarness(t, 4000, common.Options{"baudrate": 1000})
	h.sess.Feed(0, uint64(len(w.samples)), w.samples)

	require.Len(t, h.events, 3)
	assert.Equal(t, "frame-err", h.events[2].Class)
	assert.Equal(t, uint64(44), h.events[2].StartSample)
	assert.Equal(t, uint64(48), h.events[2].EndSample)

	require.Len(t, h.rec.records, 1)
	rec := h.rec.records[0]
	assert.Equal(t, uint8(0xFF), rec.frame.Byte)
	assert.True(t, rec.frame.ParityOK)
	assert.False(t, rec.frame.StopOK)
}

func TestChannelSelect(t *testing.T) {
	w := newWave(4, 3)
	w.raw(1, 8)
	w.cell(0)
	w.byteLSB(0x41, 8)
	w.cell(1)
	w.raw(1, 8)

	// 其他通道上的噪声不影响选中通道的解码
	for i := range w.samples {
		w.samples[i] |= uint8(i & 1)
	}

	h := newHarness(t, 4000, common.Options{
		"baudrate": 1000,
		"channel":  3,
	})
	h.sess.Feed(0, uint64(len(w.samples)), w.samples)

	require.Len(t, h.events, 3)
	assert.Equal(t, []string{"Data 0x41", "0x41", "41"}, h.events[1].Fields)
}

func TestNewOptions(t *testing.T) {
	tests := []struct {
		name    string
		options common.Options
	}{
		{
			name:    "missing samplerate",
			options: common.Options{"baudrate": 9600},
		},
		{
			name:    "databits too small",
			options: common.Options{"samplerate": 1000000, "databits": 4},
		},
		{
			name:    "databits too large",
			options: common.Options{"samplerate": 1000000, "databits": 9},
		},
		{
			name:    "unknown parity",
			options: common.Options{"samplerate": 1000000, "parity": "mark"},
		},
		{
			name:    "stopbits out of range",
			options: common.Options{"samplerate": 1000000, "stopbits": 3},
		},
		{
			name:    "channel out of range",
			options: common.Options{"samplerate": 1000000, "channel": 8},
		},
		{
			name:    "samplerate below baudrate",
			options: common.Options{"samplerate": 1000, "baudrate": 9600},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.options)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "uart/decoder:")
		})
	}

	t.Run("defaults", func(t *testing.T) {
		d, err := New(common.Options{"samplerate": 1000000})
		require.NoError(t, err)

		ud := d.(*uartDecoder)
		assert.Equal(t, defaultBaudRate, ud.baudRate)
		assert.Equal(t, defaultDataBits, ud.dataBits)
		assert.Equal(t, parityNone, ud.parity)
		assert.Equal(t, defaultStopBits, ud.stopBits)
		assert.Equal(t, 10, ud.totalCells)
	})
}

func TestDecodeWrongPayload(t *testing.T) {
	d, err := New(common.Options{"samplerate": 1000000})
	require.NoError(t, err)

	err = d.Decode(0, 4, 1234)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected payload type")
}
