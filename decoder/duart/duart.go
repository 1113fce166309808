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

package duart

import (
	"fmt"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/decoder"
)

const (
	Name = "uart"
)

func init() {
	decoder.Register(Name, New)
	decoder.RegisterInfo(info)
}

var info = decoder.Info{
	ID:       Name,
	Name:     "UART",
	Longname: "Universal Asynchronous Receiver/Transmitter",
	Desc:     "Asynchronous serial bus",
	License:  "Apache-2.0",
	Inputs:   []string{"logic"},
	Outputs:  []string{Name},
	Annotations: []decoder.AnnClass{
		{Name: "start", Desc: "Start bit"},
		{Name: "data", Desc: "Data byte"},
		{Name: "parity-ok", Desc: "Parity OK bit"},
		{Name: "parity-err", Desc: "Parity error bit"},
		{Name: "stop", Desc: "Stop bit"},
		{Name: "frame-err", Desc: "Frame error"},
	},
}

func newError(format string, args ...any) error {
	format = "uart/decoder: " + format
	return errors.Errorf(format, args...)
}

const (
	defaultBaudRate = 115200
	defaultDataBits = 8
	defaultStopBits = 1
)

const (
	parityNone = "none"
	parityEven = "even"
	parityOdd  = "odd"
)

// 注解格式 下标与 Info.Annotations 声明顺序一致
const (
	annStart = iota
	annData
	annParityOK
	annParityErr
	annStop
	annFrameErr
)

// Frame 一帧解码结果 作为衍生协议数据投递给堆叠的上层实例
type Frame struct {
	Byte     uint8
	Bits     int
	ParityOK bool
	StopOK   bool
}

// state 记录着 decoder 的处理状态
type state uint8

const (
	// stateIdle 初始值
	// 处于此状态时正在等待起始位的下降沿
	stateIdle state = iota

	// stateBits 采样状态
	// 处于此状态时已锁定帧起点 按波特率推算各个位单元的中心采样点
	stateBits
)

// uartDecoder UART 协议解码器
//
// 原始样本中每个字节承载至多 8 个逻辑通道 channel 选项指定监听的通道位
// 以下降沿作为帧起点 在每个位单元的中心采样 一帧由起始位 数据位
// 可选校验位与停止位组成 数据位按 LSB 在前还原
type uartDecoder struct {
	di      *decoder.Instance
	annID   int
	protoID int

	sampleRate uint64
	baudRate   int
	dataBits   int
	parity     string
	stopBits   int
	channel    uint8

	spb        float64 // 每个位单元占用的样本数
	totalCells int     // 一帧包含的位单元总数

	state      state
	prev       uint8   // 上一个样本的电平 初始视为空闲高电平
	frameStart uint64  // 当前帧起点的绝对样本下标
	nextAt     uint64  // 下一个采样点的绝对样本下标
	bits       []uint8 // 已采样的位 值域 {0, 1}
}

func New(options common.Options) (decoder.Decoder, error) {
	sampleRate, err := options.GetUint64("samplerate")
	if err != nil || sampleRate == 0 {
		return nil, newError("samplerate is required")
	}

	baudRate, err := options.GetInt("baudrate")
	if err != nil || baudRate <= 0 {
		baudRate = defaultBaudRate
	}

	dataBits, err := options.GetInt("databits")
	if err != nil || dataBits == 0 {
		dataBits = defaultDataBits
	}
	if dataBits < 5 || dataBits > 8 {
		return nil, newError("databits (%d) out of range [5, 8]", dataBits)
	}

	parity, err := options.GetString("parity")
	if err != nil || parity == "" {
		parity = parityNone
	}
	switch parity {
	case parityNone, parityEven, parityOdd:
	default:
		return nil, newError("unknown parity (%s)", parity)
	}

	stopBits, err := options.GetInt("stopbits")
	if err != nil || stopBits == 0 {
		stopBits = defaultStopBits
	}
	if stopBits < 1 || stopBits > 2 {
		return nil, newError("stopbits (%d) out of range [1, 2]", stopBits)
	}

	channel, err := options.GetInt("channel")
	if err != nil {
		channel = 0
	}
	if channel < 0 || channel > 7 {
		return nil, newError("channel (%d) out of range [0, 7]", channel)
	}

	spb := float64(sampleRate) / float64(baudRate)
	if spb < 1 {
		return nil, newError("samplerate (%d) below baudrate (%d)", sampleRate, baudRate)
	}

	totalCells := 1 + dataBits + stopBits
	if parity != parityNone {
		totalCells++
	}

	d := &uartDecoder{
		sampleRate: sampleRate,
		baudRate:   baudRate,
		dataBits:   dataBits,
		parity:     parity,
		stopBits:   stopBits,
		channel:    uint8(channel),
		spb:        spb,
		totalCells: totalCells,
	}
	d.reset()
	return d, nil
}

func (d *uartDecoder) Info() decoder.Info {
	return info
}

func (d *uartDecoder) Start(di *decoder.Instance) error {
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
	d.reset()
	return nil
}

func (d *uartDecoder) Decode(startSample, endSample uint64, payload any) error {
	chunk, ok := payload.([]byte)
	if !ok {
		return newError("unexpected payload type %T", payload)
	}

	for i, sample := range chunk {
		d.step(startSample+uint64(i), (sample>>d.channel)&1)
	}
	return nil
}

// reset 重置帧状态 帧可以跨样本块 所以只在创建与启动时调用
func (d *uartDecoder) reset() {
	d.state = stateIdle
	d.prev = 1
	d.frameStart = 0
	d.nextAt = 0
	d.bits = d.bits[:0]
}

func (d *uartDecoder) step(abs uint64, val uint8) {
	switch d.state {
	case stateIdle:
		if d.prev == 1 && val == 0 {
			d.beginFrame(abs)
			d.sampleBit(abs, val)
		}

	case stateBits:
		d.sampleBit(abs, val)
	}
	d.prev = val
}

func (d *uartDecoder) beginFrame(abs uint64) {
	d.state = stateBits
	d.frameStart = abs
	d.nextAt = d.bitCenter(0)
	d.bits = d.bits[:0]
}

// sampleBit 在位单元中心采样一位
//
// spb >= 1 保证了每个样本至多命中一个采样点
// 起始位必须为低电平 否则视作毛刺立即回到空闲状态重新扫描下降沿
func (d *uartDecoder) sampleBit(abs uint64, val uint8) {
	if abs < d.nextAt {
		return
	}

	d.bits = append(d.bits, val)
	if len(d.bits) == 1 && val != 0 {
		d.putAnn(0, 1, annFrameErr, "Frame error", "Frame err", "FE")
		d.state = stateIdle
		return
	}

	if len(d.bits) >= d.totalCells {
		d.finishFrame()
		d.state = stateIdle
		return
	}
	d.nextAt = d.bitCenter(len(d.bits))
}

// bitCenter 第 i 个位单元的中心采样点
func (d *uartDecoder) bitCenter(i int) uint64 {
	return d.frameStart + uint64(d.spb*(float64(i)+0.5))
}

// cellStart 第 i 个位单元的起始样本 也即第 i-1 个位单元的结束样本
func (d *uartDecoder) cellStart(i int) uint64 {
	return d.frameStart + uint64(d.spb*float64(i))
}

func (d *uartDecoder) putAnn(fromCell, toCell, format int, fields ...string) {
	d.di.Put(d.cellStart(fromCell), d.cellStart(toCell), d.annID, decoder.Ann(format, fields...))
}

// finishFrame 所有位单元采样完毕 还原数据字节并投递注解与协议帧
func (d *uartDecoder) finishFrame() {
	d.putAnn(0, 1, annStart, "Start bit", "Start", "S")

	var b uint8
	for i := 0; i < d.dataBits; i++ {
		b |= d.bits[1+i] << i
	}
	d.putAnn(1, 1+d.dataBits, annData,
		fmt.Sprintf("Data 0x%02X", b),
		fmt.Sprintf("0x%02X", b),
		fmt.Sprintf("%02X", b),
	)

	idx := 1 + d.dataBits
	parityOK := true
	if d.parity != parityNone {
		parityOK = d.checkParity(b, d.bits[idx])
		if parityOK {
			d.putAnn(idx, idx+1, annParityOK, "Parity OK", "Par OK", "P")
		} else {
			d.putAnn(idx, idx+1, annParityErr, "Parity error", "Par err", "PE")
		}
		idx++
	}

	stopOK := true
	for i := 0; i < d.stopBits; i++ {
		if d.bits[idx+i] == 1 {
			d.putAnn(idx+i, idx+i+1, annStop, "Stop bit", "Stop", "T")
			continue
		}
		stopOK = false
		d.putAnn(idx+i, idx+i+1, annFrameErr, "Frame error", "Frame err", "FE")
	}

	d.di.Put(d.frameStart, d.cellStart(d.totalCells), d.protoID, &Frame{
		Byte:     b,
		Bits:     d.dataBits,
		ParityOK: parityOK,
		StopOK:   stopOK,
	})
}

// checkParity 校验位连同数据位一并计算 1 的个数
func (d *uartDecoder) checkParity(b, pbit uint8) bool {
	ones := bits.OnesCount8(b) + int(pbit)
	if d.parity == parityEven {
		return ones%2 == 0
	}
	return ones%2 == 1
}
