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

package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/dispatcherconv/pkg/config"
	"github.com/walteh/dispatcherconv/pkg/converter"
	"github.com/walteh/dispatcherconv/pkg/fsutil"
	"github.com/walteh/dispatcherconv/pkg/report"
)

// NewConvertCmd creates the convert command
func NewConvertCmd(load func(ctx context.Context) (*config.Settings, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a dispatcher configuration",
		Long: `Convert copies the dispatcher configuration into the target directory and
rewrites the copy for AEM as a Cloud Service. It will:
1. Copy the configuration tree to <target>/src
2. Run every conversion rule against the copy
3. Print the performed operations
4. Write the markdown summary report`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctx = zerolog.Ctx(ctx).With().Str("command", "convert").Logger().WithContext(ctx)

			settings, err := load(ctx)
			if err != nil {
				return errors.Errorf("loading settings: %w", err)
			}
			return runConvert(ctx, settings)
		},
	}
	return cmd
}

func runConvert(ctx context.Context, settings *config.Settings) error {
	workDir := filepath.Join(settings.TargetDir, "src")
	pterm.Info.Printf("Copying %s to %s\n", settings.ConfigDir, workDir)
	if err := os.RemoveAll(workDir); err != nil {
		return errors.Errorf("clearing working copy: %w", err)
	}
	if err := fsutil.CopyTree(settings.ConfigDir, workDir); err != nil {
		return errors.Errorf("copying configuration: %w", err)
	}

	level := zerolog.InfoLevel
	if zerolog.GlobalLevel() == zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	console := report.NewConsole(os.Stdout, level)
	console.Header("converting dispatcher configuration")

	conv := converter.New(settings.SDKSrc, workDir, settings)
	steps, convErr := conv.Transform(ctx)
	for _, step := range steps {
		console.LogStep(step)
	}

	// the report is written even when rules failed, so the partial result
	// can be reviewed
	if err := report.WriteSummary(settings.ReportPath, steps); err != nil {
		return errors.Errorf("writing summary report: %w", err)
	}
	pterm.Info.Printf("Summary report written to %s\n", settings.ReportPath)

	if convErr != nil {
		console.Error("conversion finished with errors")
		return errors.Errorf("converting configuration: %w", convErr)
	}
	pterm.Success.Println("Conversion completed, review the summary report before deploying")
	return nil
}
