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

package annstotraces

import (
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/internal/tracekit"
	"github.com/pdstack/pdstack/processor"
)

const Name = "annstotraces"

func init() {
	processor.Register(Name, New)
}

// Factory 将注解事件转换为链路 Span
//
// 同一会话的全部注解共享 TraceID 每条注解产生一个独立 Span
// 时间戳来自注解的样本区间换算 未知采样率时为零值
type Factory struct{}

func New(_ map[string]any) (processor.Processor, error) {
	return &Factory{}, nil
}

func (f *Factory) Name() string {
	return Name
}

func (f *Factory) Process(record *common.Record) (*common.Record, error) {
	evt, ok := record.Data.(*common.AnnotationEvent)
	if !ok {
		return nil, nil
	}

	return &common.Record{
		RecordType: common.RecordTraces,
		Data:       &common.TracesData{Data: convert(evt)},
	}, nil
}

func convert(evt *common.AnnotationEvent) ptrace.Span {
	span := ptrace.NewSpan()
	span.SetName(evt.Decoder + "/" + evt.Class)

	traceID, _ := tracekit.TraceIDFromSession(evt.Session)
	span.SetTraceID(traceID)
	span.SetSpanID(tracekit.RandomSpanID())
	span.SetStartTimestamp(pcommon.NewTimestampFromTime(evt.StartTime))
	span.SetEndTimestamp(pcommon.NewTimestampFromTime(evt.EndTime))

	attr := span.Attributes()
	attr.PutStr("annotation.text", evt.Text())
	attr.PutStr("annotation.class", evt.Class)
	attr.PutInt("annotation.format", int64(evt.Format))
	attr.PutStr("decoder.id", evt.Decoder)
	attr.PutStr("decoder.instance", evt.Instance)
	attr.PutStr("decoder.proto", evt.ProtoID)
	attr.PutStr("session.id", evt.Session)
	attr.PutInt("sample.start", int64(evt.StartSample))
	attr.PutInt("sample.end", int64(evt.EndSample))
	attr.PutInt("sample.rate", int64(evt.SampleRate))

	lst := attr.PutEmptySlice("annotation.fields")
	for _, item := range evt.Fields {
		lst.AppendEmpty().SetStr(item)
	}
	return span
}

func (f *Factory) Clean() {}
