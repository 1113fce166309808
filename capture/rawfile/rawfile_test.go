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

package rawfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdstack/pdstack/capture"
	"github.com/pdstack/pdstack/confengine"
)

type chunkRecord struct {
	ss, es uint64
	data   []byte
}

func writeTempFile(t *testing.T, b []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "samples.bin")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestFileSourceChunks(t *testing.T) {
	path := writeTempFile(t, []byte("0123456789"))

	src, err := New(&capture.Config{Path: path, BlockSize: 4})
	require.NoError(t, err)

	var chunks []chunkRecord
	src.SetOnChunk(func(ss, es uint64, chunk []byte) {
		data := make([]byte, len(chunk))
		copy(data, chunk)
		chunks = append(chunks, chunkRecord{ss: ss, es: es, data: data})
	})

	require.NoError(t, src.Start())
	require.Len(t, chunks, 3)

	assert.Equal(t, chunkRecord{ss: 0, es: 4, data: []byte("0123")}, chunks[0])
	assert.Equal(t, chunkRecord{ss: 4, es: 8, data: []byte("4567")}, chunks[1])
	assert.Equal(t, chunkRecord{ss: 8, es: 10, data: []byte("89")}, chunks[2])
}

func TestFileSourceMissingPath(t *testing.T) {
	_, err := New(&capture.Config{})
	require.Error(t, err)
}

func TestCaptureNew(t *testing.T) {
	path := writeTempFile(t, []byte{0xFF, 0x00})

	content := `
capture:
  engine: rawfile
  path: ` + path + `
  samplerate: 1000000
`
	conf, err := confengine.LoadContent([]byte(content))
	require.NoError(t, err)

	src, err := capture.New(conf)
	require.NoError(t, err)
	assert.Equal(t, Name, src.Name())
	assert.Equal(t, uint64(1000000), src.SampleRate())

	var total int
	src.SetOnChunk(func(ss, es uint64, chunk []byte) {
		total += len(chunk)
	})
	require.NoError(t, src.Start())
	assert.Equal(t, 2, total)
}

func TestCaptureUnknownEngine(t *testing.T) {
	conf, err := confengine.LoadContent([]byte("capture:\n  engine: nosuch\n  path: /tmp/x"))
	require.NoError(t, err)

	_, err = capture.New(conf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture factory (nosuch) not found")
}
