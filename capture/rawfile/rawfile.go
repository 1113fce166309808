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

package rawfile

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/pdstack/pdstack/capture"
	"github.com/pdstack/pdstack/common"
)

const (
	Name = "rawfile"
)

func init() {
	capture.Register(New, Name, "")
}

// fileSource 从本地文件读取原始样本 每字节视为一个样本
//
// 文件读取按 BlockSize 分块推进 realtime 模式下按照采样率节流
// 模拟硬件的实时产出速度
type fileSource struct {
	conf *capture.Config
	fn   capture.OnChunkFunc

	ctx    context.Context
	cancel context.CancelFunc
}

func New(conf *capture.Config) (capture.Source, error) {
	if conf.Path == "" {
		return nil, errors.New("rawfile capture requires path")
	}
	if conf.BlockSize <= 0 {
		conf.BlockSize = common.ReadBlockSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &fileSource{
		conf:   conf,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (fs *fileSource) Name() string {
	return Name
}

func (fs *fileSource) SetOnChunk(f capture.OnChunkFunc) {
	fs.fn = f
}

func (fs *fileSource) SampleRate() uint64 {
	return fs.conf.SampleRate
}

func (fs *fileSource) Start() error {
	f, err := os.Open(fs.conf.Path)
	if err != nil {
		return errors.Wrapf(err, "open rawfile (%s) failed", fs.conf.Path)
	}
	defer f.Close()

	buf := make([]byte, fs.conf.BlockSize)
	var pos uint64
	for {
		select {
		case <-fs.ctx.Done():
			return nil

		default:
			n, err := f.Read(buf)
			if n > 0 {
				if fs.fn != nil {
					fs.fn(pos, pos+uint64(n), buf[:n])
				}
				pos += uint64(n)
				fs.pace(n)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return errors.Wrapf(err, "read rawfile (%s) failed", fs.conf.Path)
			}
		}
	}
}

// pace realtime 模式下按采样率推算本块的持续时间并等待
func (fs *fileSource) pace(n int) {
	if !fs.conf.Realtime || fs.conf.SampleRate == 0 {
		return
	}

	d := time.Duration(float64(n) / float64(fs.conf.SampleRate) * float64(time.Second))
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-fs.ctx.Done():
	case <-timer.C:
	}
}

func (fs *fileSource) Close() {
	fs.cancel()
}
