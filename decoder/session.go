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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/internal/rescue"
	"github.com/pdstack/pdstack/logger"
)

const defaultMaxDepth = 64

// SinkFunc 输出回调 pd 仅在回调执行期间有效
type SinkFunc func(pd *ProtoData)

type SessionConfig struct {
	SampleRate uint64 `config:"samplerate" mapstructure:"samplerate"`
	MaxDepth   int    `config:"maxDepth" mapstructure:"maxDepth"`
}

func (c *SessionConfig) Validate() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = defaultMaxDepth
	}
}

// Session 解码会话 持有实例集合 堆叠拓扑与输出回调表
//
// 会话自身不做任何并发控制 实例创建 堆叠与回调注册必须在 Start 前完成
// Start 后由单一 goroutine 串行调用 Feed
type Session struct {
	id  string
	cfg SessionConfig

	insts []*Instance
	roots []*Instance
	sinks map[OutputKind]SinkFunc

	epoch   time.Time
	depth   int
	started bool
}

func NewSession(cfg SessionConfig) *Session {
	cfg.Validate()
	return &Session{
		id:    uuid.New().String(),
		cfg:   cfg,
		sinks: make(map[OutputKind]SinkFunc),
	}
}

// ID 返回会话唯一标识
func (s *Session) ID() string {
	return s.id
}

// SampleRate 返回会话采样率 单位 Hz 未知时为 0
func (s *Session) SampleRate() uint64 {
	return s.cfg.SampleRate
}

// NewInstance 创建解码器实例并纳入会话管理
func (s *Session) NewInstance(decoderID string, options common.Options) (*Instance, error) {
	createFunc, err := Get(decoderID)
	if err != nil {
		return nil, err
	}

	dec, err := createFunc(options)
	if err != nil {
		return nil, errors.Wrapf(err, "create decoder (%s)", decoderID)
	}

	di := &Instance{
		id:      fmt.Sprintf("%s#%d", decoderID, len(s.insts)),
		dec:     dec,
		info:    dec.Info(),
		sess:    s,
		options: options,
	}
	s.insts = append(s.insts, di)
	return di, nil
}

// Stack 将 upper 堆叠至 lower 之上
//
// lower 的衍生协议输出会按堆叠顺序同步投递给所有 upper
// 拓扑必须保持有向无环 出现环路时拒绝堆叠
func (s *Session) Stack(lower, upper *Instance) error {
	if lower == nil || upper == nil {
		return errors.New("nil decoder instance")
	}
	if lower.sess != s || upper.sess != s {
		return errors.Errorf("decoder instance not owned by session (%s)", s.id)
	}
	if lower == upper || reachable(upper, lower) {
		return errors.Errorf("stacking (%s) onto (%s) creates a cycle", upper.id, lower.id)
	}

	lower.next = append(lower.next, upper)
	return nil
}

func reachable(from, target *Instance) bool {
	for _, next := range from.next {
		if next == target || reachable(next, target) {
			return true
		}
	}
	return false
}

// RegisterSink 注册 kind 类型输出的回调 每种类型至多注册一个
func (s *Session) RegisterSink(kind OutputKind, fn SinkFunc) error {
	if !kind.valid() {
		return errors.Wrapf(ErrInvalidOutputKind, "sink kind %d", kind)
	}
	if fn == nil {
		return errors.New("nil sink func")
	}
	if _, ok := s.sinks[kind]; ok {
		return errors.Errorf("sink (%s) already registered", kind)
	}

	s.sinks[kind] = fn
	return nil
}

// Start 启动会话 依创建顺序执行各实例的 Start 并固化根实例集合
func (s *Session) Start() error {
	if s.started {
		return errors.Errorf("session (%s) already started", s.id)
	}

	for _, di := range s.insts {
		if err := di.dec.Start(di); err != nil {
			return errors.Wrapf(err, "start decoder instance (%s)", di.id)
		}
	}

	s.resolveRoots()
	s.epoch = time.Now()
	s.started = true
	return nil
}

// resolveRoots 根实例为不作为任何实例堆叠目标的实例
func (s *Session) resolveRoots() {
	stacked := make(map[*Instance]struct{})
	for _, di := range s.insts {
		for _, next := range di.next {
			stacked[next] = struct{}{}
		}
	}

	s.roots = s.roots[:0]
	for _, di := range s.insts {
		if _, ok := stacked[di]; !ok {
			s.roots = append(s.roots, di)
		}
	}
}

// Feed 将一段原始采样块送入所有根实例
//
// 样本区间为 [startSample, endSample) 单个实例解码失败不阻断其余实例
func (s *Session) Feed(startSample, endSample uint64, chunk []byte) {
	if !s.started {
		logger.Errorf("session (%s) not started, drop samples [%d, %d)", s.id, startSample, endSample)
		return
	}

	for _, di := range s.roots {
		if err := s.decodeInstance(di, startSample, endSample, chunk); err != nil {
			logger.Errorf("calling %s decode failed: %v", di.id, err)
		}
	}
}

// emit 解析输出端口并按类型路由解码结果
//
// 所有失败路径都在此处记录日志与指标 返回的错误仅供调用方观测
func (s *Session) emit(di *Instance, ss, es uint64, portID int, payload any) error {
	if portID < 0 || portID >= len(di.ports) {
		err := errors.Wrapf(ErrInvalidPort,
			"decoder instance (%s) submitted invalid output id %d", di.id, portID)
		s.dropOutput(reasonInvalidPort, err)
		return err
	}
	port := di.ports[portID]

	switch port.Kind {
	case OutputAnn:
		sink, ok := s.sinks[OutputAnn]
		if !ok {
			// 注解只投递给回调 未注册回调时静默丢弃 转换也一并跳过
			droppedTotal.WithLabelValues(reasonNoSink).Inc()
			return nil
		}

		ann, err := convertAnn(di, payload)
		if err != nil {
			s.dropOutput(reasonBadPayload, err)
			return err
		}

		sink(&ProtoData{
			StartSample: ss,
			EndSample:   es,
			Port:        port,
			Instance:    di,
			Data:        ann,
		})
		emittedTotal.WithLabelValues(OutputAnn.String()).Inc()
		return nil

	case OutputProto:
		return s.fanout(di, ss, es, payload)

	case OutputBinary:
		err := errors.Wrapf(ErrUnsupportedOutputKind,
			"decoder instance (%s) submitted binary output", di.id)
		s.dropOutput(reasonUnsupported, err)
		return err

	default:
		err := errors.Wrapf(ErrInvalidOutputKind,
			"decoder instance (%s) submitted invalid output kind %d", di.id, port.Kind)
		s.dropOutput(reasonInvalidKind, err)
		return err
	}
}

// fanout 将衍生协议数据按堆叠顺序同步投递给下游实例
//
// 单个下游失败或 panic 只影响其自身 其余下游仍会依次收到本次投递
func (s *Session) fanout(di *Instance, ss, es uint64, payload any) error {
	if s.depth >= s.cfg.MaxDepth {
		err := errors.Wrapf(ErrStackDepth,
			"decoder instance (%s) exceeded stack depth limit %d", di.id, s.cfg.MaxDepth)
		s.dropOutput(reasonStackDepth, err)
		return err
	}

	var errs *multierror.Error
	s.depth++
	for _, next := range di.next {
		if err := s.decodeInstance(next, ss, es, payload); err != nil {
			logger.Errorf("calling %s decode failed: %v", next.id, err)
			droppedTotal.WithLabelValues(reasonDownstream).Inc()
			errs = multierror.Append(errs, errors.Wrapf(ErrDownstream, "instance (%s): %v", next.id, err))
			continue
		}
		emittedTotal.WithLabelValues(OutputProto.String()).Inc()
	}
	s.depth--

	return errs.ErrorOrNil()
}

// decodeInstance 调用实例的解码入口 panic 会被捕获并转换为 error
func (s *Session) decodeInstance(di *Instance, ss, es uint64, payload any) (err error) {
	defer rescue.HandleCrashWith(func(r any) {
		err = errors.Errorf("decode panic: %v", r)
	})
	return di.dec.Decode(ss, es, payload)
}

func (s *Session) dropOutput(reason string, err error) {
	droppedTotal.WithLabelValues(reason).Inc()
	logger.Errorf("drop decoder output: %v", err)
}
