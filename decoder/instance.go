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
	"github.com/pkg/errors"

	"github.com/pdstack/pdstack/common"
)

// Instance 解码器实例
//
// 同一个解码器可在会话内创建多个实例 各实例的输出端口与堆叠关系相互独立
type Instance struct {
	id      string
	dec     Decoder
	info    Info
	sess    *Session
	options common.Options

	ports []OutputPort
	next  []*Instance
}

// ID 返回实例唯一标识 格式为 `解码器ID#序号`
func (di *Instance) ID() string {
	return di.id
}

// Info 返回所属解码器的静态定义
func (di *Instance) Info() Info {
	return di.info
}

// AddOutput 注册一个输出端口 返回按注册顺序递增的端口 ID
//
// 端口 ID 从 0 开始 只增不删 实例存续期间保持稳定
func (di *Instance) AddOutput(kind OutputKind, proto string) (int, error) {
	if !kind.valid() {
		return 0, errors.Wrapf(ErrInvalidOutputKind,
			"decoder instance (%s) requested invalid output kind %d", di.id, kind)
	}

	id := len(di.ports)
	di.ports = append(di.ports, OutputPort{ID: id, Kind: kind, Proto: proto})
	return id, nil
}

// Put 投递一段样本区间的解码结果
//
// 样本区间为 [startSample, endSample) 原样透传给接收方
// 投递失败只在内部记录 不阻断解码流程 所以本方法没有返回值
func (di *Instance) Put(startSample, endSample uint64, portID int, payload any) {
	_ = di.sess.emit(di, startSample, endSample, portID, payload)
}
