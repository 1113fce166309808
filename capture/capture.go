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

package capture

import (
	"github.com/pkg/errors"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/confengine"
)

// OnChunkFunc 样本块回调 样本区间为 [startSample, endSample) 左闭右开
//
// chunk 仅在回调执行期间有效 需要缓存时必须自行拷贝
type OnChunkFunc func(startSample, endSample uint64, chunk []byte)

// Source 采集源定义 负责产出原始样本块并调用 OnChunk 回调
type Source interface {
	// Name 返回采集源名称
	Name() string

	// SetOnChunk 设置样本块回调函数 必须在 Start 前调用
	SetOnChunk(f OnChunkFunc)

	// SampleRate 返回采样率 单位 Hz 未知时为 0
	SampleRate() uint64

	// Start 开始采集 阻塞直至数据耗尽或 Close 被调用
	Start() error

	// Close 停止采集并释放关联资源
	Close()
}

type Config struct {
	Engine     string `config:"engine"`
	Path       string `config:"path"`
	SampleRate uint64 `config:"samplerate"`
	BlockSize  int    `config:"blockSize"`
	Realtime   bool   `config:"realtime"`
}

func (c *Config) Validate() error {
	if c.BlockSize <= 0 {
		c.BlockSize = common.ReadBlockSize
	}
	if c.Realtime && c.SampleRate == 0 {
		return errors.New("realtime replay requires samplerate")
	}
	return nil
}

// CreateFunc 创建 Source 的函数类型
type CreateFunc func(conf *Config) (Source, error)

var sourceFactory = map[string]CreateFunc{}

// Register 注册 Source 工厂函数
func Register(f CreateFunc, names ...string) {
	for _, name := range names {
		sourceFactory[name] = f
	}
}

// Get 获取 Source 工厂函数
func Get(name string) (CreateFunc, error) {
	f, ok := sourceFactory[name]
	if !ok {
		return nil, errors.Errorf("capture factory (%s) not found", name)
	}
	return f, nil
}

func New(conf *confengine.Config) (Source, error) {
	var cfg Config
	if err := conf.UnpackChild("capture", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f, err := Get(cfg.Engine)
	if err != nil {
		return nil, err
	}
	return f(&cfg)
}
