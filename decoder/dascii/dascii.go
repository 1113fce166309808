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

package dascii

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/decoder"
	"github.com/pdstack/pdstack/decoder/duart"
)

const (
	Name = "ascii"
)

func init() {
	decoder.Register(Name, New)
	decoder.RegisterInfo(info)
}

var info = decoder.Info{
	ID:       Name,
	Name:     "ASCII",
	Longname: "American Standard Code for Information Interchange",
	Desc:     "Printable rendering of decoded byte streams",
	License:  "Apache-2.0",
	Inputs:   []string{duart.Name},
	Outputs:  []string{Name},
	Annotations: []decoder.AnnClass{
		{Name: "char", Desc: "Printable character"},
		{Name: "ctrl", Desc: "Control character"},
		{Name: "invalid", Desc: "Invalid or non-ASCII frame"},
	},
}

// 注解格式 下标与 Info.Annotations 声明顺序一致
const (
	annChar = iota
	annCtrl
	annInvalid
)

// ctrlNames 0x00..0x1F 控制字符的标准缩写 0x7F 单独处理
var ctrlNames = [...]string{
	"NUL", "SOH", "STX", "ETX", "EOT", "ENQ", "ACK", "BEL",
	"BS", "HT", "LF", "VT", "FF", "CR", "SO", "SI",
	"DLE", "DC1", "DC2", "DC3", "DC4", "NAK", "SYN", "ETB",
	"CAN", "EM", "SUB", "ESC", "FS", "GS", "RS", "US",
}

// Char 一个可解释的字符 作为衍生协议数据继续向上投递
type Char struct {
	Code uint8
	Text string
}

// asciiDecoder 将 uart 帧渲染为可读字符
//
// 堆叠在 uart 实例之上 消费其投递的帧 可打印区间渲染为字符本身
// 控制字符渲染为标准缩写 校验或停止位错误的帧标记为非法
type asciiDecoder struct {
	di      *decoder.Instance
	annID   int
	protoID int
}

func New(options common.Options) (decoder.Decoder, error) {
	return &asciiDecoder{}, nil
}

func (d *asciiDecoder) Info() decoder.Info {
	return info
}

func (d *asciiDecoder) Start(di *decoder.Instance) error {
	annID, err := di.AddOutput(decoder.OutputAnn, Name)
	if err != nil {
		return err
	}
	protoID, err := di.AddOutput(decoder.OutputProto, Name)
	if err != nil {
		return err
	}

	d.di = di
	d.annID = annID
	d.protoID = protoID
	return nil
}

func (d *asciiDecoder) Decode(startSample, endSample uint64, payload any) error {
	frame, ok := payload.(*duart.Frame)
	if !ok {
		return errors.Errorf("ascii/decoder: unexpected payload type %T", payload)
	}

	if !frame.ParityOK || !frame.StopOK {
		d.di.Put(startSample, endSample, d.annID, decoder.Ann(annInvalid, "Invalid frame", "INV"))
		return nil
	}

	b := frame.Byte
	var text string
	switch {
	case b >= 0x20 && b < 0x7F:
		text = string(rune(b))
		d.di.Put(startSample, endSample, d.annID, decoder.Ann(annChar, text))

	case b < 0x20 || b == 0x7F:
		text = ctrlName(b)
		d.di.Put(startSample, endSample, d.annID, decoder.Ann(annCtrl, text))

	default:
		d.di.Put(startSample, endSample, d.annID,
			decoder.Ann(annInvalid, fmt.Sprintf("Non-ASCII 0x%02X", b), "N/A"))
		return nil
	}

	d.di.Put(startSample, endSample, d.protoID, &Char{Code: b, Text: text})
	return nil
}

func ctrlName(b uint8) string {
	if b == 0x7F {
		return "DEL"
	}
	return ctrlNames[b]
}
