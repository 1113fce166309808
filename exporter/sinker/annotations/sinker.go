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

package annotations

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/valyala/bytebufferpool"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/exporter"
	"github.com/pdstack/pdstack/internal/json"
)

func init() {
	exporter.Register(common.RecordAnnotations, New)
}

// Sinker 将注解事件写入控制台或滚动日志文件
//
// json 格式每条注解一行 JSON 文档 text 格式为单行可读文本
type Sinker struct {
	wr      io.WriteCloser
	encoder json.Encoder
	cfg     *exporter.AnnotationsConfig
}

func New(conf exporter.Config) (exporter.Sinker, error) {
	cfg := &conf.Annotations
	cfg.Validate()

	var wr io.WriteCloser
	switch {
	case cfg.Console:
		wr = os.Stdout
	default:
		wr = &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			LocalTime:  true,
		}
	}

	return &Sinker{
		wr:      wr,
		cfg:     cfg,
		encoder: json.NewEncoder(wr),
	}, nil
}

func (s *Sinker) Name() common.RecordType {
	return common.RecordAnnotations
}

func (s *Sinker) Sink(data any) error {
	evt, ok := data.(*common.AnnotationEvent)
	if !ok {
		return nil
	}

	if s.cfg.Format == exporter.FormatText {
		return s.sinkText(evt)
	}
	return s.encoder.Encode(evt)
}

func (s *Sinker) sinkText(evt *common.AnnotationEvent) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if !evt.StartTime.IsZero() {
		buf.WriteString(evt.StartTime.Format(time.RFC3339Nano))
		buf.WriteByte(' ')
	}
	buf.WriteByte('[')
	buf.WriteString(evt.Instance)
	buf.WriteString("] ")
	buf.WriteString(evt.Class)
	buf.WriteString(": ")
	buf.WriteString(evt.Text())
	fmt.Fprintf(buf, " (%d..%d)", evt.StartSample, evt.EndSample)
	buf.WriteByte('\n')

	_, err := s.wr.Write(buf.Bytes())
	return err
}

func (s *Sinker) Close() {
	s.wr.Close()
}
