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

package tracekit

import (
	"crypto/rand"

	"github.com/google/uuid"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDFromSession 将会话 ID 映射为稳定的 TraceID
//
// 同一会话产生的所有 Span 归属同一条 Trace 便于端到端查看一次采集的全部注解
// 会话 ID 非法或映射结果无效时回退为随机 TraceID
func TraceIDFromSession(s string) (pcommon.TraceID, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RandomTraceID(), false
	}

	traceID := trace.TraceID(u)
	if !traceID.IsValid() {
		return RandomTraceID(), false
	}
	return pcommon.TraceID(traceID), true
}

// RandomTraceID 随机生成 TraceID
func RandomTraceID() pcommon.TraceID {
	b := make([]byte, 16)
	rand.Read(b)

	ret := [16]byte{}
	for i := 0; i < 16; i++ {
		ret[i] = b[i]
	}
	return ret
}

// RandomSpanID 随机生成 SpanID
func RandomSpanID() pcommon.SpanID {
	b := make([]byte, 8)
	rand.Read(b)

	ret := [8]byte{}
	for i := 0; i < 8; i++ {
		ret[i] = b[i]
	}
	return ret
}
