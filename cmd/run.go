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
	"os"

	"github.com/spf13/cobra"

	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/confengine"
	"github.com/pdstack/pdstack/controller"
	"github.com/pdstack/pdstack/internal/sigs"
	"github.com/pdstack/pdstack/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run pdstack as a decoding daemon",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := confengine.LoadConfigPath(configPath)
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
		defer logger.Sync()

		reload := sigs.Reload()
		term := sigs.Terminate()
		for {
			select {
			case <-reload:
				cfg, err := confengine.LoadConfigPath(configPath)
				if err != nil {
					logger.Errorf("reload config failed: %v", err)
					continue
				}
				if err := ctr.Reload(cfg); err != nil {
					logger.Errorf("reload controller failed: %v", err)
				}

			case <-term:
				ctr.Stop()
				return
			}
		}
	},
}

var configPath string

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "pdstack.yaml", "Configuration file path")
	rootCmd.AddCommand(runCmd)
}
