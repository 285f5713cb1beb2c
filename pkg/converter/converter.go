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

// Package converter runs the migration plan that turns an Adobe Managed
// Services dispatcher configuration into an AEM as a Cloud Service one. The
// plan is a fixed sequence of rules; each rule gets its own ledger step, and
// a failing rule does not stop the rules after it.
package converter

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/dispatcherconv/pkg/conf"
	"github.com/walteh/dispatcherconv/pkg/config"
	"github.com/walteh/dispatcherconv/pkg/files"
	"github.com/walteh/dispatcherconv/pkg/fsutil"
	"github.com/walteh/dispatcherconv/pkg/ledger"
	"github.com/walteh/dispatcherconv/pkg/rewrite"
)

// 🔄 Converter transforms the dispatcher configuration tree at configDir in
// place. The tree is expected to be a working copy; callers copy the
// customer's configuration before constructing a Converter.
type Converter struct {
	sdkSrc    string
	configDir string
	settings  *config.Settings

	steps []*ledger.Step
}

// 🏭 New creates a converter for the configuration tree at configDir, using
// the dispatcher SDK's src folder at sdkSrc for default rule files.
func New(sdkSrc, configDir string, settings *config.Settings) *Converter {
	return &Converter{
		sdkSrc:    sdkSrc,
		configDir: configDir,
		settings:  settings,
	}
}

// Transform runs every conversion rule in order and returns the per-rule
// ledger steps. A rule failure is reported but does not stop the remaining
// rules; all failures are joined into the returned error.
func (c *Converter) Transform(ctx context.Context) ([]*ledger.Step, error) {
	logger := zerolog.Ctx(ctx)
	rules := []struct {
		name string
		run  func(context.Context) error
	}{
		{"remove unused folders and files", c.removeUnusedFoldersAndFiles},
		{"remove non-publish virtual hosts", c.removeNonPublishVhosts},
		{"remove virtual host sections not on port 80", c.removeNonPort80VhostSections},
		{"replace unavailable vhost variables", c.replaceVhostVariables},
		{"check rewrites folder", c.checkRewrites},
		{"check variables folder", c.checkVariables},
		{"remove whitelists", c.removeWhitelists},
		{"remove non-publish farms", c.removeNonPublishFarms},
		{"rename farm files", c.renameFarmFiles},
		{"check cache folder", c.checkCache},
		{"check clientheaders folder", c.checkClientHeaders},
		{"check filters folder", c.checkFilters},
		{"check renders folder", c.checkRenders},
		{"check virtualhosts folder", c.checkVirtualHosts},
		{"replace farm variables", c.replaceFarmVariables},
		{"remove non-whitelisted directives", c.removeNonWhitelistedDirectives},
	}

	var errs []error
	for _, rule := range rules {
		logger.Info().Str("rule", rule.name).Msg("executing conversion rule")
		if err := rule.run(ctx); err != nil {
			logger.Error().Err(err).Str("rule", rule.name).Msg("conversion rule failed")
			errs = append(errs, errors.Errorf("%s: %w", rule.name, err))
		}
	}
	return c.steps, errors.Join(errs...)
}

// newStep creates the ledger entry for one rule and registers it for the
// summary report.
func (c *Converter) newStep(rule, description string) *ledger.Step {
	step := ledger.NewStep(rule, description)
	c.steps = append(c.steps, step)
	return step
}

func (c *Converter) confD() string {
	return filepath.Join(c.configDir, confDDir)
}

func (c *Converter) confDispatcherD() string {
	return filepath.Join(c.configDir, confDispatcherDir)
}

// copyFromSDK copies one default file from the SDK's src tree into destDir.
func (c *Converter) copyFromSDK(ctx context.Context, rel, destDir string, step *ledger.Step) error {
	if err := fsutil.CopyFileInto(filepath.Join(c.sdkSrc, rel), destDir); err != nil {
		return errors.Errorf("copying %s from sdk: %w", rel, err)
	}
	zerolog.Ctx(ctx).Info().Str("file", rel).Str("dest", destDir).Msg("copied default file from sdk")
	step.Record(ledger.ActionAdded, destDir,
		"Copied file '"+rel+"' from the standard dispatcher configuration to "+destDir)
	return nil
}

// isSymlinkFile reports whether the file is a link into a sibling directory:
// either a real symlink, or a checked-out "text symlink" whose single
// content line is a ../ relative target.
func isSymlinkFile(path string) bool {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return true
	}
	lines, err := files.Content(path, false)
	return err == nil && len(lines) == 2 && strings.HasPrefix(lines[1], "../")
}

// keepUsedRuleFiles deletes the rule files whose base name is not in used
// and returns the surviving paths in their original order.
func keepUsedRuleFiles(ctx context.Context, paths []string, used []string, step *ledger.Step) []string {
	usedSet := make(map[string]struct{}, len(used))
	for _, name := range used {
		usedSet[name] = struct{}{}
	}
	logger := zerolog.Ctx(ctx)
	var kept []string
	for _, path := range paths {
		if _, ok := usedSet[filepath.Base(path)]; ok {
			kept = append(kept, path)
			continue
		}
		if err := files.Delete(ctx, path, step); err != nil {
			logger.Error().Err(err).Str("path", path).Msg("could not delete unused rule file")
		}
	}
	return kept
}

// declaredVariables returns the names defined by Define statements in a
// variables file. A missing file yields nothing.
func declaredVariables(path string) []string {
	raw, err := fsutil.Read(path, true)
	if err != nil {
		return nil
	}
	var names []string
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "Define" {
			names = append(names, fields[1])
		}
	}
	return names
}

// 1. Get rid of unused subfolders and files.
func (c *Converter) removeUnusedFoldersAndFiles(ctx context.Context) error {
	step := c.newStep("Get rid of unused subfolders and files",
		"Remove subfolders `conf` and `conf.modules.d`, as well as files matching `conf.d/*.conf`.")
	if err := files.DeleteFolder(ctx, filepath.Join(c.configDir, confDir), step); err != nil {
		return err
	}
	if err := files.DeleteFolder(ctx, filepath.Join(c.configDir, confModulesDDir), step); err != nil {
		return err
	}
	return files.DeleteWithExtension(ctx, c.confD(), confExt, step)
}

// 2. Get rid of all non-publish virtual hosts.
func (c *Converter) removeNonPublishVhosts(ctx context.Context) error {
	step := c.newStep("Get rid of all non-publish virtual hosts",
		"Remove any virtual host file in `conf.d/enabled_vhosts` that has `author`, `unhealthy`, `health`, "+
			"`lc` or `flush` in its name. All virtual host files in `conf.d/available_vhosts` that are "+
			"not linked to should be removed.")
	enabled := filepath.Join(c.confD(), enabledVhostsDir)
	available := filepath.Join(c.confD(), availableVhostsDir)

	for _, keyword := range c.settings.NonPublishKeywords {
		if err := files.DeleteContaining(ctx, enabled, keyword, step); err != nil {
			return err
		}
	}

	enabledVhosts, err := files.Glob(enabled, "**/*."+vhostExt)
	if err != nil {
		return err
	}
	logger := zerolog.Ctx(ctx)
	for _, path := range enabledVhosts {
		if !isSymlinkFile(path) {
			logger.Info().Str("path", path).Msg("found non-symlink enabled_vhost file")
			step.Record(ledger.ActionWarning, path, "Found non-symlink enabled_vhost file.")
		}
	}

	for _, keyword := range c.settings.NonPublishKeywords {
		if err := files.DeleteContaining(ctx, available, keyword, step); err != nil {
			return err
		}
	}
	if fsutil.IsDir(enabled) && fsutil.IsDir(available) {
		return files.DiffByName(ctx, enabled, available, step)
	}
	return nil
}

// 3. Remove virtual host sections that do not refer to port 80.
func (c *Converter) removeNonPort80VhostSections(ctx context.Context) error {
	step := c.newStep("Remove virtual host sections that do not refer to port 80",
		"If you still have sections in your virtual host files that exclusively refer to other ports "+
			"than port 80, e.g. `<VirtualHost *:443>...</VirtualHost>`, remove them.")
	if err := rewrite.RemoveNonPort80VirtualHosts(ctx, filepath.Join(c.confD(), enabledVhostsDir), step); err != nil {
		return err
	}
	return rewrite.RemoveNonPort80VirtualHosts(ctx, filepath.Join(c.confD(), availableVhostsDir), step)
}

// 4. Replace any variable that is no longer available.
func (c *Converter) replaceVhostVariables(ctx context.Context) error {
	step := c.newStep("Replace any variable that is no longer available",
		"In all virtual host files, rename `PUBLISH_DOCROOT` to `DOCROOT` and remove sections "+
			"referring to variables named `DISP_ID`, `PUBLISH_FORCE_SSL` or `PUBLISH_WHITELIST_ENABLED`.")
	if err := rewrite.ReplaceVariable(ctx, c.confD(), vhostExt, "PUBLISH_DOCROOT", "DOCROOT", step); err != nil {
		return err
	}
	for _, name := range []string{"DISP_ID", "PUBLISH_FORCE_SSL", "PUBLISH_WHITELIST_ENABLED"} {
		if err := rewrite.RemoveVariable(ctx, c.confD(), vhostExt, name, step); err != nil {
			return err
		}
	}
	return nil
}

// 5. Check rewrites folder.
func (c *Converter) checkRewrites(ctx context.Context) error {
	step := c.newStep("Check rewrites folder",
		"In directory `conf.d/rewrites`, remove any file named `base_rewrite.rules` and "+
			"`xforwarded_forcessl_rewrite.rules` and remove Include statements in the virtual host files "+
			"referring to them. If `conf.d/rewrites` now contains a single file, it should be renamed to "+
			"`rewrite.rules` and the Include statements referring to it adapted. If the folder contains "+
			"multiple, virtual host specific files, their contents should be copied to the Include "+
			"statements referring to them.")
	confD := c.confD()
	rewritesDir := filepath.Join(confD, "rewrites")

	for _, name := range []string{"base_rewrite.rules", "xforwarded_forcessl_rewrite.rules"} {
		path := filepath.Join(rewritesDir, name)
		if !fsutil.IsFile(path) {
			continue
		}
		if err := rewrite.RemoveInclude(ctx, confD, conf.VhostInclude, vhostExt, name, step); err != nil {
			return err
		}
		if err := files.Delete(ctx, path, step); err != nil {
			return err
		}
	}

	ruleFiles, err := files.Glob(rewritesDir, "**/*.rules")
	if err != nil {
		return err
	}
	switch {
	case len(ruleFiles) == 1:
		oldName := filepath.Base(ruleFiles[0])
		if oldName != "rewrite.rules" {
			renamed := filepath.Join(filepath.Dir(ruleFiles[0]), "rewrite.rules")
			if err := files.Rename(ctx, ruleFiles[0], renamed, step); err != nil {
				return err
			}
			if err := rewrite.ReplaceIncludeFile(ctx, confD, vhostExt, conf.VhostInclude,
				oldName, "rewrite.rules", step); err != nil {
				return err
			}
		}
	case len(ruleFiles) > 1:
		availableVhosts, err := files.Glob(filepath.Join(confD, availableVhostsDir), "**/*."+vhostExt)
		if err != nil {
			return err
		}
		if len(availableVhosts) > 1 {
			// vhost-specific rule files are inlined into their vhosts
			for _, path := range ruleFiles {
				content, err := files.Content(path, true)
				if err != nil {
					return err
				}
				if err := rewrite.InlineInclude(ctx, confD, vhostExt, conf.VhostInclude,
					filepath.Base(path), content, step); err != nil {
					return err
				}
				if err := files.Delete(ctx, path, step); err != nil {
					return err
				}
			}
		} else if len(availableVhosts) == 1 {
			// a single vhost: consolidate the rule files it includes
			included, err := rewrite.IncludedRuleNames(availableVhosts[0], files.Names(ruleFiles), conf.VhostInclude)
			if err != nil {
				return err
			}
			used := keepUsedRuleFiles(ctx, ruleFiles, included, step)
			if err := files.Consolidate(ctx, used, filepath.Join(rewritesDir, "rewrite.rules"), step); err != nil {
				return err
			}
			if err := rewrite.ReplaceIncludes(ctx, confD, vhostExt, conf.VhostInclude,
				files.Names(used), conf.VhostInclude.Statement("conf.d/rewrites/rewrite.rules"), step); err != nil {
				return err
			}
		}
	}
	return nil
}

// 6. Check variables folder.
func (c *Converter) checkVariables(ctx context.Context) error {
	step := c.newStep("Check variables folder",
		"In directory `conf.d/variables`, remove any file named `ams_default.vars` and remove Include "+
			"statements in the virtual host files referring to them. Consolidate variable definitions "+
			"from all remaining vars files into a single file named `custom.vars` and adapt the Include "+
			"statements referring to them in the virtual host files.")
	confD := c.confD()
	varsDir := filepath.Join(confD, "variables")

	amsDefault := filepath.Join(varsDir, "ams_default.vars")
	if fsutil.IsFile(amsDefault) {
		if err := rewrite.RemoveInclude(ctx, confD, conf.VhostInclude, vhostExt, "ams_default.vars", step); err != nil {
			return err
		}
		if err := files.Delete(ctx, amsDefault, step); err != nil {
			return err
		}
	}

	varFiles, err := files.KeepOnlyMatching(ctx, varsDir, "*.vars", step)
	if err != nil {
		return err
	}

	defined := []string{}
	if len(varFiles) > 0 {
		custom := filepath.Join(varsDir, "custom.vars")
		defined, err = files.ConsolidateVariables(ctx, varFiles, custom, step)
		if err != nil {
			return err
		}
		for _, path := range varFiles {
			if path == custom {
				continue
			}
			if err := rewrite.ReplaceIncludeFile(ctx, confD, vhostExt, conf.VhostInclude,
				filepath.Base(path), "custom.vars", step); err != nil {
				return err
			}
			if err := files.Delete(ctx, path, step); err != nil {
				return err
			}
		}
	}

	// the SDK's global.vars defines the platform variables; count them as
	// defined before flagging anything
	globalVars := filepath.Join(c.sdkSrc, confDDir, "variables", "global.vars")
	defined = append(defined, declaredVariables(globalVars)...)
	if _, err := rewrite.CheckUndefinedVariables(ctx, confD, defined, step); err != nil {
		return err
	}

	return c.copyFromSDK(ctx, filepath.Join(confDDir, "variables", "global.vars"), varsDir, step)
}

// 7. Remove whitelists.
func (c *Converter) removeWhitelists(ctx context.Context) error {
	step := c.newStep("Remove whitelists",
		"Remove the folder `conf.d/whitelists` and remove Include statements in the virtual host files "+
			"referring to some file in that subfolder.")
	confD := c.confD()
	whitelistsDir := filepath.Join(confD, "whitelists")

	whitelistFiles, err := files.Glob(whitelistsDir, "**/*.*")
	if err != nil {
		return err
	}
	for _, path := range whitelistFiles {
		if err := rewrite.RemoveInclude(ctx, confD, conf.VhostInclude, vhostExt,
			filepath.Base(path), step); err != nil {
			return err
		}
	}
	return files.DeleteFolder(ctx, whitelistsDir, step)
}
