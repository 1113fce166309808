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
	"time"

	"github.com/pdstack/pdstack/common"
)

// OutputKind 输出端口类型
type OutputKind uint8

const (
	// OutputAnn 注解输出 面向人类阅读 仅投递至已注册的回调
	OutputAnn OutputKind = iota

	// OutputProto 衍生协议输出 按堆叠顺序投递至下游实例
	OutputProto

	// OutputBinary 二进制输出 当前版本尚未支持投递
	OutputBinary
)

func (k OutputKind) String() string {
	switch k {
	case OutputAnn:
		return "annotation"
	case OutputProto:
		return "proto"
	case OutputBinary:
		return "binary"
	}
	return "unknown"
}

func (k OutputKind) valid() bool {
	return k <= OutputBinary
}

// OutputPort 解码器实例注册的输出端口
//
// ID 为端口在实例内的注册顺序 从 0 开始连续递增 注册后不可变更或删除
type OutputPort struct {
	ID    int
	Kind  OutputKind
	Proto string
}

// AnnData 转换后的注解载荷
type AnnData struct {
	Format int
	Fields []string
}

// Ann 构造符合注解载荷约定的 [format, [text, ...]] 序列
func Ann(format int, fields ...string) []any {
	return []any{format, fields}
}

// ProtoData 单次投递的解码结果
//
// 回调执行期间数据归引擎所有 回调返回后不允许继续引用
// 需要缓存时必须通过 Event 方法转换为独立副本
type ProtoData struct {
	StartSample uint64
	EndSample   uint64
	Port        OutputPort
	Instance    *Instance
	Data        any
}

// Event 将注解结果复制为脱离会话生命周期的事件
func (pd *ProtoData) Event() *common.AnnotationEvent {
	di := pd.Instance
	sess := di.sess

	evt := &common.AnnotationEvent{
		Session:     sess.id,
		Decoder:     di.info.ID,
		Instance:    di.id,
		ProtoID:     pd.Port.Proto,
		StartSample: pd.StartSample,
		EndSample:   pd.EndSample,
		SampleRate:  sess.cfg.SampleRate,
	}

	if ann, ok := pd.Data.(*AnnData); ok {
		evt.Format = ann.Format
		evt.Fields = append([]string(nil), ann.Fields...)
		if ann.Format >= 0 && ann.Format < len(di.info.Annotations) {
			evt.Class = di.info.Annotations[ann.Format].Name
		}
	}

	if rate := sess.cfg.SampleRate; rate > 0 {
		evt.StartTime = sess.epoch.Add(sampleDuration(pd.StartSample, rate))
		evt.EndTime = sess.epoch.Add(sampleDuration(pd.EndSample, rate))
	}
	return evt
}

func sampleDuration(n uint64, rate uint64) time.Duration {
	return time.Duration(float64(n) / float64(rate) * float64(time.Second))
}
