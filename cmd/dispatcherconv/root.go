// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/walteh/dispatcherconv/cmd/dispatcherconv/commands"
	"github.com/walteh/dispatcherconv/pkg/config"
)

var (
	// Flags
	configFile string
	sdkSrc     string
	cfgDir     string
	targetDir  string
	reportPath string
	debug      bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dispatcherconv",
		Short:         "Convert AMS dispatcher configurations for AEM as a Cloud Service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}
	addRootFlags(cmd)
	cmd.AddCommand(commands.NewConvertCmd(loadSettings))
	return cmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "settings file path (json, yaml or hcl)")
	cmd.PersistentFlags().StringVar(&sdkSrc, "sdk-src", "", "dispatcher SDK src directory")
	cmd.PersistentFlags().StringVar(&cfgDir, "cfg", "", "dispatcher configuration directory to convert")
	cmd.PersistentFlags().StringVar(&targetDir, "target", "", "output directory for the converted configuration")
	cmd.PersistentFlags().StringVar(&reportPath, "report", "", "path of the markdown summary report")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

// setupLogging configures zerolog based on flags
func setupLogging() {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
}

// loadSettings builds the conversion settings from the settings file when one
// is given, otherwise from the individual flags. Flags override file values
// either way.
func loadSettings(ctx context.Context) (*config.Settings, error) {
	settings := &config.Settings{}
	if configFile != "" {
		loaded, err := config.Load(ctx, configFile)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}
	if sdkSrc != "" {
		settings.SDKSrc = sdkSrc
	}
	if cfgDir != "" {
		settings.ConfigDir = cfgDir
	}
	if targetDir != "" {
		settings.TargetDir = targetDir
		// the report default follows the overridden target unless the
		// report location is itself pinned
		if reportPath == "" {
			settings.ReportPath = ""
		}
	}
	if reportPath != "" {
		settings.ReportPath = reportPath
	}
	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}
