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

package common

import (
	"time"

	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/pdstack/pdstack/internal/metricstorage"
)

// RecordType 数据记录类型
type RecordType string

const (
	RecordAnnotations RecordType = "annotations"
	RecordMetrics     RecordType = "metrics"
	RecordTraces      RecordType = "traces"
)

// Record 是流经 pipeline 与 exporter 的统一数据单元
type Record struct {
	RecordType RecordType
	Data       any
}

func NewRecord(rt RecordType, data any) *Record {
	return &Record{
		RecordType: rt,
		Data:       data,
	}
}

// MetricsData 指标类数据载体
type MetricsData struct {
	Data []metricstorage.ConstMetric
}

// TracesData 链路类数据载体
type TracesData struct {
	Data ptrace.Span
}

// AnnotationEvent 代表一条已脱离解码会话生命周期的注解事件
//
// 所有引用类型成员均为拷贝 持有者可安全地跨 goroutine 传递或缓存
// 样本区间为 [StartSample, EndSample) 左闭右开
type AnnotationEvent struct {
	Session     string    `json:"session"`
	Decoder     string    `json:"decoder"`
	Instance    string    `json:"instance"`
	ProtoID     string    `json:"protoId"`
	Format      int       `json:"format"`
	Class       string    `json:"class"`
	Fields      []string  `json:"fields"`
	StartSample uint64    `json:"startSample"`
	EndSample   uint64    `json:"endSample"`
	SampleRate  uint64    `json:"sampleRate,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

// Text 返回注解的首个文本形式 通常为最详细的一种
func (e *AnnotationEvent) Text() string {
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[0]
}

// Duration 返回注解覆盖的时长 未知采样率时为 0
func (e *AnnotationEvent) Duration() time.Duration {
	if e.SampleRate == 0 {
		return 0
	}
	n := float64(e.EndSample-e.StartSample) / float64(e.SampleRate)
	return time.Duration(n * float64(time.Second))
}
