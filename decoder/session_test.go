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
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdstack/pdstack/common"
)

type fakeDecoder struct {
	info     Info
	onStart  func(di *Instance) error
	onDecode func(ss, es uint64, payload any) error
}

func (d *fakeDecoder) Info() Info {
	return d.info
}

func (d *fakeDecoder) Start(di *Instance) error {
	if d.onStart != nil {
		return d.onStart(di)
	}
	return nil
}

func (d *fakeDecoder) Decode(ss, es uint64, payload any) error {
	if d.onDecode != nil {
		return d.onDecode(ss, es, payload)
	}
	return nil
}

func mustInstance(t *testing.T, s *Session, id string, dec Decoder) *Instance {
	t.Helper()

	Register(id, func(common.Options) (Decoder, error) {
		return dec, nil
	})
	di, err := s.NewInstance(id, nil)
	require.NoError(t, err)
	return di
}

func annInfo(id string) Info {
	return Info{
		ID: id,
		Annotations: []AnnClass{
			{Name: "bit", Desc: "Single bit"},
			{Name: "byte", Desc: "Data byte"},
		},
	}
}

func TestRegistry(t *testing.T) {
	Register("registry-a", func(common.Options) (Decoder, error) {
		return &fakeDecoder{info: annInfo("registry-a")}, nil
	})

	f, err := Get("registry-a")
	assert.NoError(t, err)
	assert.NotNil(t, f)

	_, err = Get("registry-not-exist")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "factory (registry-not-exist) not found")

	assert.Contains(t, Registered(), "registry-a")
}

func TestAddOutputMonotonicIDs(t *testing.T) {
	s := NewSession(SessionConfig{})
	di := mustInstance(t, s, "ports", &fakeDecoder{info: annInfo("ports")})

	id0, err := di.AddOutput(OutputAnn, "uart")
	assert.NoError(t, err)
	id1, err := di.AddOutput(OutputProto, "uart")
	assert.NoError(t, err)
	id2, err := di.AddOutput(OutputBinary, "uart-bytes")
	assert.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, []int{id0, id1, id2})

	// 非法类型的注册请求被拒绝 且不占用端口 ID
	_, err = di.AddOutput(OutputKind(9), "uart")
	assert.True(t, errors.Is(err, ErrInvalidOutputKind))

	id3, err := di.AddOutput(OutputAnn, "uart-extra")
	assert.NoError(t, err)
	assert.Equal(t, 3, id3)
}

func TestEmitInvalidPort(t *testing.T) {
	s := NewSession(SessionConfig{})
	di := mustInstance(t, s, "invalid-port", &fakeDecoder{info: annInfo("invalid-port")})

	var sunk int
	require.NoError(t, s.RegisterSink(OutputAnn, func(pd *ProtoData) { sunk++ }))

	_, err := di.AddOutput(OutputAnn, "uart")
	require.NoError(t, err)

	for _, portID := range []int{1, -1, 99} {
		err = s.emit(di, 0, 1, portID, Ann(0, "x"))
		assert.True(t, errors.Is(err, ErrInvalidPort))
		assert.Contains(t, err.Error(), "invalid-port#0")
	}
	assert.Equal(t, 0, sunk)
}

func TestAnnotationRoundTrip(t *testing.T) {
	s := NewSession(SessionConfig{})
	di := mustInstance(t, s, "ann-rt", &fakeDecoder{info: annInfo("ann-rt")})

	var got []*common.AnnotationEvent
	require.NoError(t, s.RegisterSink(OutputAnn, func(pd *ProtoData) {
		got = append(got, pd.Event())
	}))

	portID, err := di.AddOutput(OutputAnn, "uart")
	require.NoError(t, err)

	fields := []string{"Data byte 0x41", "41"}
	require.NoError(t, s.emit(di, 100, 900, portID, []any{1, fields}))

	// 回调收到的载荷为独立副本 与提交方不共享内存
	fields[0] = "mutated"

	require.Len(t, got, 1)
	evt := got[0]
	assert.Equal(t, uint64(100), evt.StartSample)
	assert.Equal(t, uint64(900), evt.EndSample)
	assert.Equal(t, "ann-rt", evt.Decoder)
	assert.Equal(t, "ann-rt#0", evt.Instance)
	assert.Equal(t, "uart", evt.ProtoID)
	assert.Equal(t, 1, evt.Format)
	assert.Equal(t, "byte", evt.Class)
	assert.Equal(t, []string{"Data byte 0x41", "41"}, evt.Fields)
}

func TestAnnotationNoSink(t *testing.T) {
	s := NewSession(SessionConfig{})
	di := mustInstance(t, s, "no-sink", &fakeDecoder{info: annInfo("no-sink")})

	portID, err := di.AddOutput(OutputAnn, "uart")
	require.NoError(t, err)

	// 未注册回调时注解被静默丢弃 即使载荷是畸形的也不会报错
	assert.NoError(t, s.emit(di, 0, 1, portID, Ann(0, "x")))
	assert.NoError(t, s.emit(di, 0, 1, portID, "malformed"))
}

func TestAnnotationMalformedNotDelivered(t *testing.T) {
	s := NewSession(SessionConfig{})
	di := mustInstance(t, s, "ann-bad", &fakeDecoder{info: annInfo("ann-bad")})

	var sunk int
	require.NoError(t, s.RegisterSink(OutputAnn, func(pd *ProtoData) { sunk++ }))

	portID, err := di.AddOutput(OutputAnn, "uart")
	require.NoError(t, err)

	err = s.emit(di, 0, 1, portID, []any{1})
	assert.True(t, errors.Is(err, ErrPayloadSchema))

	err = s.emit(di, 0, 1, portID, []any{100, []string{"a"}})
	assert.True(t, errors.Is(err, ErrUnregisteredFormat))

	assert.Equal(t, 0, sunk)
}

func TestProtoFanOutIsolation(t *testing.T) {
	tests := []struct {
		name string
		fail func(ss, es uint64, payload any) error
	}{
		{
			name: "middle returns error",
			fail: func(ss, es uint64, payload any) error {
				return errors.New("broken decoder")
			},
		},
		{
			name: "middle panics",
			fail: func(ss, es uint64, payload any) error {
				panic("broken decoder")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(SessionConfig{})
			base := mustInstance(t, s, "fan-base-"+tt.name, &fakeDecoder{info: annInfo("fan-base")})

			var order []string
			calls := make(map[string]int)
			record := func(name string) func(ss, es uint64, payload any) error {
				return func(ss, es uint64, payload any) error {
					order = append(order, name)
					calls[name]++
					assert.Equal(t, uint64(10), ss)
					assert.Equal(t, uint64(20), es)
					assert.Equal(t, "payload", payload)
					return nil
				}
			}

			first := mustInstance(t, s, "fan-first-"+tt.name, &fakeDecoder{
				info: annInfo("fan-first"), onDecode: record("first"),
			})
			broken := mustInstance(t, s, "fan-broken-"+tt.name, &fakeDecoder{
				info: annInfo("fan-broken"),
				onDecode: func(ss, es uint64, payload any) error {
					order = append(order, "broken")
					calls["broken"]++
					return tt.fail(ss, es, payload)
				},
			})
			last := mustInstance(t, s, "fan-last-"+tt.name, &fakeDecoder{
				info: annInfo("fan-last"), onDecode: record("last"),
			})

			require.NoError(t, s.Stack(base, first))
			require.NoError(t, s.Stack(base, broken))
			require.NoError(t, s.Stack(base, last))

			portID, err := base.AddOutput(OutputProto, "uart")
			require.NoError(t, err)

			err = s.emit(base, 10, 20, portID, "payload")
			assert.True(t, errors.Is(err, ErrDownstream))
			assert.Contains(t, err.Error(), broken.ID())

			// 故障实例不影响其余下游 各下游均收到且只收到一次 顺序与堆叠一致
			assert.Equal(t, []string{"first", "broken", "last"}, order)
			assert.Equal(t, 1, calls["first"])
			assert.Equal(t, 1, calls["last"])
		})
	}
}

func TestProtoFanOutNoDownstream(t *testing.T) {
	s := NewSession(SessionConfig{})
	di := mustInstance(t, s, "fan-none", &fakeDecoder{info: annInfo("fan-none")})

	portID, err := di.AddOutput(OutputProto, "uart")
	require.NoError(t, err)
	assert.NoError(t, s.emit(di, 0, 1, portID, "payload"))
}

func TestBinaryUnsupported(t *testing.T) {
	s := NewSession(SessionConfig{})
	di := mustInstance(t, s, "binary", &fakeDecoder{info: annInfo("binary")})

	portID, err := di.AddOutput(OutputBinary, "uart-bytes")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err = s.emit(di, 0, 1, portID, []byte{0x41})
		assert.True(t, errors.Is(err, ErrUnsupportedOutputKind))
	}
}

func TestInvalidOutputKindDispatch(t *testing.T) {
	s := NewSession(SessionConfig{})
	di := mustInstance(t, s, "bad-kind", &fakeDecoder{info: annInfo("bad-kind")})

	// 正常路径不可能注册出非法端口 直接构造以覆盖路由的兜底分支
	di.ports = append(di.ports, OutputPort{ID: 0, Kind: OutputKind(7)})

	err := s.emit(di, 0, 1, 0, "payload")
	assert.True(t, errors.Is(err, ErrInvalidOutputKind))
}

func TestRegisterSink(t *testing.T) {
	s := NewSession(SessionConfig{})
	fn := func(pd *ProtoData) {}

	assert.NoError(t, s.RegisterSink(OutputAnn, fn))

	err := s.RegisterSink(OutputAnn, fn)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Error(t, s.RegisterSink(OutputKind(9), fn))
	assert.Error(t, s.RegisterSink(OutputProto, nil))
}

func TestStackCycle(t *testing.T) {
	s := NewSession(SessionConfig{})
	a := mustInstance(t, s, "cycle-a", &fakeDecoder{info: annInfo("cycle-a")})
	b := mustInstance(t, s, "cycle-b", &fakeDecoder{info: annInfo("cycle-b")})
	c := mustInstance(t, s, "cycle-c", &fakeDecoder{info: annInfo("cycle-c")})

	assert.Error(t, s.Stack(a, a))

	require.NoError(t, s.Stack(a, b))
	require.NoError(t, s.Stack(b, c))

	err := s.Stack(c, a)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creates a cycle")

	other := NewSession(SessionConfig{})
	x := mustInstance(t, other, "cycle-x", &fakeDecoder{info: annInfo("cycle-x")})
	assert.Error(t, s.Stack(a, x))
}

func TestStackDepthGuard(t *testing.T) {
	forward := func(di **Instance, calls *int) *fakeDecoder {
		return &fakeDecoder{
			info: annInfo("depth"),
			onStart: func(inst *Instance) error {
				*di = inst
				_, err := inst.AddOutput(OutputProto, "depth")
				return err
			},
			onDecode: func(ss, es uint64, payload any) error {
				*calls++
				(*di).Put(ss, es, 0, payload)
				return nil
			},
		}
	}

	s := NewSession(SessionConfig{MaxDepth: 2})

	var insts [4]*Instance
	var calls [4]int
	chain := make([]*Instance, 0, 4)
	for i := 0; i < 4; i++ {
		chain = append(chain, mustInstance(t, s, "depth-"+string(rune('a'+i)), forward(&insts[i], &calls[i])))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Stack(chain[i], chain[i+1]))
	}

	require.NoError(t, s.Start())
	s.Feed(0, 8, []byte{0xff})

	// MaxDepth 为 2 时仅允许两级堆叠投递 更深的实例不会被触达
	assert.Equal(t, [4]int{1, 1, 1, 0}, calls)
}

func TestSessionStartAndFeed(t *testing.T) {
	s := NewSession(SessionConfig{})

	var rootCalls, stackedCalls int
	root := mustInstance(t, s, "feed-root", &fakeDecoder{
		info: annInfo("feed-root"),
		onDecode: func(ss, es uint64, payload any) error {
			rootCalls++
			assert.Equal(t, uint64(0), ss)
			assert.Equal(t, uint64(4), es)
			assert.Equal(t, []byte{1, 2, 3, 4}, payload)
			return nil
		},
	})
	broken := mustInstance(t, s, "feed-broken", &fakeDecoder{
		info: annInfo("feed-broken"),
		onDecode: func(ss, es uint64, payload any) error {
			return errors.New("decode failed")
		},
	})
	stacked := mustInstance(t, s, "feed-stacked", &fakeDecoder{
		info: annInfo("feed-stacked"),
		onDecode: func(ss, es uint64, payload any) error {
			stackedCalls++
			return nil
		},
	})
	require.NoError(t, s.Stack(root, stacked))

	// 未启动的会话丢弃样本
	s.Feed(0, 4, []byte{1, 2, 3, 4})
	assert.Equal(t, 0, rootCalls)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	s.Feed(0, 4, []byte{1, 2, 3, 4})

	// 根实例为 root 和 broken 堆叠实例不直接接收原始样本
	// broken 的失败也不影响 root
	assert.Equal(t, 1, rootCalls)
	assert.Equal(t, 0, stackedCalls)
	_ = broken
}

func TestProtoDataEvent(t *testing.T) {
	s := NewSession(SessionConfig{SampleRate: 1000})
	di := mustInstance(t, s, "event", &fakeDecoder{info: annInfo("event")})

	var evt *common.AnnotationEvent
	require.NoError(t, s.RegisterSink(OutputAnn, func(pd *ProtoData) {
		evt = pd.Event()
	}))
	require.NoError(t, s.Start())

	portID, err := di.AddOutput(OutputAnn, "uart")
	require.NoError(t, err)
	require.NoError(t, s.emit(di, 500, 1500, portID, Ann(0, "Bit 1")))

	require.NotNil(t, evt)
	assert.Equal(t, s.ID(), evt.Session)
	assert.Equal(t, uint64(1000), evt.SampleRate)
	assert.Equal(t, time.Second, evt.Duration())
	assert.Equal(t, time.Second, evt.EndTime.Sub(evt.StartTime))
	assert.False(t, evt.StartTime.IsZero())
}
