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

package annstometrics

import (
	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/internal/labels"
	"github.com/pdstack/pdstack/internal/mapstructure"
	"github.com/pdstack/pdstack/internal/metricstorage"
	"github.com/pdstack/pdstack/processor"
)

const Name = "annstometrics"

func init() {
	processor.Register(Name, New)
}

type Config struct {
	RequireLabels []string `config:"requireLabels" mapstructure:"requireLabels"`
}

// Factory 将注解事件转换为指标
//
// 指标名称以解码器 ID 为前缀 class 为固定维度
// 其余维度按 requireLabels 声明按需附加
type Factory struct {
	config Config
}

func New(conf map[string]any) (processor.Processor, error) {
	cfg := &Config{}
	if err := mapstructure.Decode(conf, cfg); err != nil {
		return nil, err
	}
	return &Factory{config: *cfg}, nil
}

func (f *Factory) Name() string {
	return Name
}

func (f *Factory) Process(record *common.Record) (*common.Record, error) {
	evt, ok := record.Data.(*common.AnnotationEvent)
	if !ok {
		return nil, nil
	}

	data := f.convert(evt)
	return &common.Record{
		RecordType: common.RecordMetrics,
		Data:       &common.MetricsData{Data: data},
	}, nil
}

func (f *Factory) matchLabels(evt *common.AnnotationEvent) labels.Labels {
	lbs := labels.Labels{{Name: "class", Value: evt.Class}}
	for _, label := range f.config.RequireLabels {
		switch label {
		case "instance":
			lbs = append(lbs, labels.Label{Name: "instance", Value: evt.Instance})
		case "session":
			lbs = append(lbs, labels.Label{Name: "session", Value: evt.Session})
		case "proto":
			lbs = append(lbs, labels.Label{Name: "proto", Value: evt.ProtoID})
		}
	}
	return lbs
}

func (f *Factory) convert(evt *common.AnnotationEvent) []metricstorage.ConstMetric {
	lbs := f.matchLabels(evt)
	return []metricstorage.ConstMetric{
		metricstorage.NewCounterConstMetric(evt.Decoder+"_annotations_total", 1, lbs),
		metricstorage.NewHistogramConstMetric(evt.Decoder+"_annotation_duration_seconds",
			evt.Duration().Seconds(), metricstorage.UnitSeconds, lbs),
	}
}

func (f *Factory) Clean() {}
