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

package controller

import (
	"github.com/pkg/errors"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/decoder"
)

// StackEntry 堆叠中的一层解码器及其选项
type StackEntry struct {
	Decoder string         `config:"decoder"`
	Options map[string]any `config:"options"`
}

// StackConfig 一条解码器堆叠 自下而上声明 首层消费原始样本
type StackConfig struct {
	Stack []StackEntry `config:"stack"`
}

type DecodersConfig struct {
	MaxDepth int           `config:"maxDepth"`
	Stacks   []StackConfig `config:"stacks"`
}

// sessionSet 管理一次采集运行所需的全部解码会话
//
// 每条堆叠独占一个会话 同一个样本块按声明顺序投喂给所有会话
type sessionSet struct {
	sessions []*decoder.Session
}

func newSessionSet(cfg DecodersConfig, sampleRate uint64, sink decoder.SinkFunc) (*sessionSet, error) {
	if len(cfg.Stacks) == 0 {
		return nil, errors.New("no decoder stacks configured")
	}

	sessions := make([]*decoder.Session, 0, len(cfg.Stacks))
	for i, sc := range cfg.Stacks {
		sess, err := buildSession(sc, cfg.MaxDepth, sampleRate, sink)
		if err != nil {
			return nil, errors.Wrapf(err, "build decoder stack #%d", i)
		}
		sessions = append(sessions, sess)
	}
	return &sessionSet{sessions: sessions}, nil
}

func buildSession(sc StackConfig, maxDepth int, sampleRate uint64, sink decoder.SinkFunc) (*decoder.Session, error) {
	if len(sc.Stack) == 0 {
		return nil, errors.New("empty decoder stack")
	}

	sess := decoder.NewSession(decoder.SessionConfig{
		SampleRate: sampleRate,
		MaxDepth:   maxDepth,
	})

	var lower *decoder.Instance
	for _, entry := range sc.Stack {
		options := common.Options(entry.Options)
		if options == nil {
			options = common.NewOptions()
		}
		options.Merge("samplerate", sampleRate)

		di, err := sess.NewInstance(entry.Decoder, options)
		if err != nil {
			return nil, err
		}
		if lower != nil {
			if err := sess.Stack(lower, di); err != nil {
				return nil, err
			}
		}
		lower = di
	}

	if err := sess.RegisterSink(decoder.OutputAnn, sink); err != nil {
		return nil, err
	}
	return sess, nil
}

func (ss *sessionSet) Start() error {
	for _, sess := range ss.sessions {
		if err := sess.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (ss *sessionSet) Feed(startSample, endSample uint64, chunk []byte) {
	for _, sess := range ss.sessions {
		sess.Feed(startSample, endSample, chunk)
	}
}
