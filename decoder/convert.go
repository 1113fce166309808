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

package decoder

import (
	"github.com/pkg/errors"
)

// convertAnn 校验并转换注解载荷
//
// 载荷约定为两元素序列 [format, [text, ...]]
// format 必须为整数且落在解码器声明的注解类别表内
// 文本列表会被完整拷贝 转换结果与原载荷不共享内存
func convertAnn(di *Instance, payload any) (*AnnData, error) {
	name := di.info.ID

	items, ok := payload.([]any)
	if !ok {
		return nil, errors.Wrapf(ErrPayloadSchema,
			"decoder (%s) submitted %T instead of list", name, payload)
	}
	if len(items) != 2 {
		return nil, errors.Wrapf(ErrPayloadSchema,
			"decoder (%s) submitted annotation list with %d elements instead of 2", name, len(items))
	}

	format, ok := toInt(items[0])
	if !ok {
		return nil, errors.Wrapf(ErrPayloadSchema,
			"decoder (%s) submitted annotation list but first element was not an integer", name)
	}
	if format < 0 || format >= len(di.info.Annotations) {
		return nil, errors.Wrapf(ErrUnregisteredFormat,
			"decoder (%s) submitted data to unregistered annotation format %d", name, format)
	}

	fields, ok := toStringList(items[1])
	if !ok {
		return nil, errors.Wrapf(ErrPayloadSchema,
			"decoder (%s) submitted annotation list but second element was malformed", name)
	}

	return &AnnData{Format: format, Fields: fields}, nil
}

// toInt 仅接受整数族类型 不做字符串或浮点的宽松转换
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

func toStringList(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		out := make([]string, len(x))
		copy(out, x)
		return out, true

	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
