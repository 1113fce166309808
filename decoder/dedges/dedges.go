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

package dedges

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/decoder"
)

const (
	Name = "edges"
)

func init() {
	decoder.Register(Name, New)
	decoder.RegisterInfo(info)
}

var info = decoder.Info{
	ID:       Name,
	Name:     "Edges",
	Longname: "Signal edge marker",
	Desc:     "Marks level transitions on a logic channel",
	License:  "Apache-2.0",
	Inputs:   []string{"logic"},
	Annotations: []decoder.AnnClass{
		{Name: "rising", Desc: "Rising edge"},
		{Name: "falling", Desc: "Falling edge"},
		{Name: "count", Desc: "Edge count per chunk"},
	},
}

// 注解格式 下标与 Info.Annotations 声明顺序一致
const (
	annRising = iota
	annFalling
	annCount
)

// edgeDecoder 标记选中通道上的电平跳变
//
// 每个跳变输出一条单样本宽度的注解 每个样本块结束时输出一条
// 汇总注解记录块内的跳变总数 捕获的第一个样本只建立基线电平
type edgeDecoder struct {
	di    *decoder.Instance
	annID int

	channel   uint8
	prev      uint8
	prevValid bool
}

func New(options common.Options) (decoder.Decoder, error) {
	channel, err := options.GetInt("channel")
	if err != nil {
		channel = 0
	}
	if channel < 0 || channel > 7 {
		return nil, errors.Errorf("edges/decoder: channel (%d) out of range [0, 7]", channel)
	}

	return &edgeDecoder{channel: uint8(channel)}, nil
}

func (d *edgeDecoder) Info() decoder.Info {
	return info
}

func (d *edgeDecoder) Start(di *decoder.Instance) error {
	annID, err := di.AddOutput(decoder.OutputAnn, Name)
	if err != nil {
		return err
	}

	d.di = di
	d.annID = annID
	d.prevValid = false
	return nil
}

func (d *edgeDecoder) Decode(startSample, endSample uint64, payload any) error {
	chunk, ok := payload.([]byte)
	if !ok {
		return errors.Errorf("edges/decoder: unexpected payload type %T", payload)
	}

	var edges int
	for i, sample := range chunk {
		val := (sample >> d.channel) & 1
		if d.prevValid && val != d.prev {
			abs := startSample + uint64(i)
			if val == 1 {
				d.di.Put(abs, abs+1, d.annID, decoder.Ann(annRising, "Rising edge", "Rise", "R"))
			} else {
				d.di.Put(abs, abs+1, d.annID, decoder.Ann(annFalling, "Falling edge", "Fall", "F"))
			}
			edges++
		}
		d.prev = val
		d.prevValid = true
	}

	if edges > 0 {
		d.di.Put(startSample, endSample, d.annID,
			decoder.Ann(annCount, fmt.Sprintf("%d edges", edges), fmt.Sprintf("%d", edges)))
	}
	return nil
}
