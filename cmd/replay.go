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

package cmd

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/confengine"
	"github.com/pdstack/pdstack/controller"
	"github.com/pdstack/pdstack/internal/sigs"
)

type replayCmdConfig struct {
	Console            bool
	Format             string
	File               string
	SampleRate         uint64
	Realtime           bool
	AnnotationsFile    string
	AnnotationsSize    int
	AnnotationsBackups int
	Stacks             []string
}

type stackEntry struct {
	Decoder string
	Options string
}

type stackConfig struct {
	Entries []stackEntry
}

func (c *replayCmdConfig) decodeStackConfig() []stackConfig {
	var scs []stackConfig
	for _, chain := range c.Stacks {
		var sc stackConfig
		for _, part := range strings.Split(chain, "/") {
			fields := strings.SplitN(part, ";", 2)
			name := strings.TrimSpace(fields[0])
			if name == "" {
				continue
			}

			var opts []string
			if len(fields) > 1 {
				for _, kv := range strings.Split(fields[1], ",") {
					pair := strings.SplitN(kv, "=", 2)
					if len(pair) != 2 {
						continue
					}
					opts = append(opts, strings.TrimSpace(pair[0])+": "+strings.TrimSpace(pair[1]))
				}
			}
			sc.Entries = append(sc.Entries, stackEntry{
				Decoder: name,
				Options: strings.Join(opts, ", "),
			})
		}
		if len(sc.Entries) > 0 {
			scs = append(scs, sc)
		}
	}
	return scs
}

func (c *replayCmdConfig) Yaml() []byte {
	text := `
processor:
pipeline:
metricsStorage:
server:
logger:
  stdout: true

capture:
  engine: rawfile
  path: {{ .File }}
  samplerate: {{ .SampleRate }}
  realtime: {{ .Realtime }}

decoders:
  stacks:
{{ range .Stacks }}
  - stack:
{{ range .Entries }}
    - decoder: {{ .Decoder }}
      options: { {{ .Options }} }
{{ end }}
{{ end }}

exporter:
  metrics:
  traces:
  annotations:
    enabled: true
    console: {{ .Console }}
    format: {{ .Format }}
    filename: {{ .AnnotationsFile }}
    maxSize: {{ .AnnotationsSize }}
    maxBackups: {{ .AnnotationsBackups }}
    maxAge: 7
`
	tpl, err := template.New("Config").Parse(text)
	if err != nil {
		return nil
	}

	var buf bytes.Buffer
	err = tpl.Execute(&buf, map[string]interface{}{
		"File":               c.File,
		"SampleRate":         c.SampleRate,
		"Realtime":           c.Realtime,
		"Console":            c.Console,
		"Format":             c.Format,
		"Stacks":             c.decodeStackConfig(),
		"AnnotationsFile":    c.AnnotationsFile,
		"AnnotationsSize":    c.AnnotationsSize,
		"AnnotationsBackups": c.AnnotationsBackups,
	})
	if err != nil {
		return nil
	}
	return buf.Bytes()
}

var replayConfig replayCmdConfig

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a raw sample file through decoder stacks",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := confengine.LoadContent(replayConfig.Yaml())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}

		ctr, err := controller.New(cfg, common.GetBuildInfo())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create controller: %v\n", err)
			os.Exit(1)
		}
		if err := ctr.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start controller: %v\n", err)
			os.Exit(1)
		}

		<-sigs.Terminate()
		ctr.Stop()
	},
	Example: "# pdstack replay --file samples.bin --samplerate 1000000 --stack 'uart;baudrate=115200,channel=0/ascii' --console",
}

func init() {
	replayCmd.Flags().BoolVar(&replayConfig.Console, "console", false, "Write annotations to stdout")
	replayCmd.Flags().StringVar(&replayConfig.Format, "format", "text", "Annotation output format [json|text]")
	replayCmd.Flags().StringVar(&replayConfig.File, "file", "", "Path to raw sample file to replay")
	replayCmd.Flags().Uint64Var(&replayConfig.SampleRate, "samplerate", 0, "Sample rate of the capture in Hz")
	replayCmd.Flags().BoolVar(&replayConfig.Realtime, "realtime", false, "Pace the replay at the capture sample rate")
	replayCmd.Flags().StringArrayVar(&replayConfig.Stacks, "stack", nil, "Decoder stacks in 'decoder[;opt=val,...][/decoder...]' format, multiple stacks supported")
	replayCmd.Flags().StringVar(&replayConfig.AnnotationsFile, "annotations.file", "pdstack.annotations", "Path to annotations file")
	replayCmd.Flags().IntVar(&replayConfig.AnnotationsSize, "annotations.size", 100, "Maximum size of annotations file in MB")
	replayCmd.Flags().IntVar(&replayConfig.AnnotationsBackups, "annotations.backups", 10, "Maximum number of old annotations files to retain")
	rootCmd.AddCommand(replayCmd)
}
