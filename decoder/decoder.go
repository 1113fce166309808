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

// Package decoder 实现协议解码器的输出路由引擎
//
// 解码器实例在启动时注册输出端口 解码过程中通过 Put 提交带样本区间的结果
// 引擎按端口类型将结果路由至回调或堆叠的下游实例 单次投递失败不阻断整个会话
package decoder

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/pdstack/pdstack/common"
)

var (
	// ErrInvalidPort 实例提交了未注册的输出端口
	ErrInvalidPort = errors.New("invalid output port")

	// ErrPayloadSchema 注解载荷不符合 [format, [text, ...]] 约定
	ErrPayloadSchema = errors.New("malformed annotation payload")

	// ErrUnregisteredFormat 注解格式下标超出解码器声明的类别表
	ErrUnregisteredFormat = errors.New("unregistered annotation format")

	// ErrUnsupportedOutputKind 输出类型合法但暂不支持投递
	ErrUnsupportedOutputKind = errors.New("unsupported output kind")

	// ErrInvalidOutputKind 输出类型非法
	ErrInvalidOutputKind = errors.New("invalid output kind")

	// ErrDownstream 堆叠的下游实例解码失败
	ErrDownstream = errors.New("downstream decode failed")

	// ErrStackDepth 堆叠投递深度超出会话上限
	ErrStackDepth = errors.New("stack depth exceeded")
)

// AnnClass 注解类别定义 在 Info.Annotations 中的下标即为注解格式 ID
type AnnClass struct {
	Name string
	Desc string
}

// Info 解码器静态定义
type Info struct {
	ID          string
	Name        string
	Longname    string
	Desc        string
	License     string
	Inputs      []string
	Outputs     []string
	Annotations []AnnClass
}

// Decoder 协议解码器定义
//
// 解码器生命周期为 Start -> Decode* 两个阶段均由所属会话驱动
type Decoder interface {
	// Info 返回解码器静态定义 要求每次调用返回内容一致
	Info() Info

	// Start 会话启动时调用 解码器在此注册输出端口
	Start(di *Instance) error

	// Decode 解码一段样本区间内的数据
	//
	// 根实例的 payload 为原始采样块 ([]byte)
	// 堆叠实例的 payload 为下层实例通过衍生协议端口投递的数据
	Decode(startSample, endSample uint64, payload any) error
}

type CreateFunc func(options common.Options) (Decoder, error)

var (
	decoderFactory = map[string]CreateFunc{}
	decoderInfos   = map[string]Info{}
)

// Register 注册解码器实现函数
func Register(id string, f CreateFunc) {
	decoderFactory[id] = f
}

// RegisterInfo 登记解码器静态定义 供枚举展示使用
func RegisterInfo(info Info) {
	decoderInfos[info.ID] = info
}

// Get 获取解码器实现函数
func Get(id string) (CreateFunc, error) {
	f, ok := decoderFactory[id]
	if !ok {
		return nil, errors.Errorf("decoder factory (%s) not found", id)
	}
	return f, nil
}

// Registered 返回已注册的解码器 ID 按字典序排列
func Registered() []string {
	ids := make([]string, 0, len(decoderFactory))
	for id := range decoderFactory {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Infos 返回已登记的解码器静态定义 按 ID 字典序排列
func Infos() []Info {
	infos := make([]Info, 0, len(decoderInfos))
	for _, id := range Registered() {
		if info, ok := decoderInfos[id]; ok {
			infos = append(infos, info)
		}
	}
	return infos
}
