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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdstack/pdstack/decoder"
)

var decodersCmd = &cobra.Command{
	Use:   "decoders",
	Short: "List all registered decoders",
	Run: func(cmd *cobra.Command, args []string) {
		for _, info := range decoder.Infos() {
			fmt.Printf("- %s: %s\n", info.ID, info.Desc)
			fmt.Printf("  inputs: %v, outputs: %v\n", info.Inputs, info.Outputs)

			classes := make([]string, 0, len(info.Annotations))
			for _, ann := range info.Annotations {
				classes = append(classes, ann.Name)
			}
			fmt.Printf("  annotations: %s\n", strings.Join(classes, ", "))
		}
	},
}

func init() {
	rootCmd.AddCommand(decodersCmd)
}
