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

const (
	// App 应用程序名称
	App = "pdstack"

	// Version 应用程序版本
	Version = "v0.0.1"

	// ReadBlockSize 采集源单次读取的默认样本数
	//
	// 采样文件可能非常大（百兆甚至更多）一次性读入会造成过多的内存开销
	// 所以按块读取并逐块送入解码会话 实测 4K 样本块在吞吐和延迟间比较均衡
	ReadBlockSize = 4096
)
