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

package converter

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/dispatcherconv/pkg/conf"
	"github.com/walteh/dispatcherconv/pkg/files"
	"github.com/walteh/dispatcherconv/pkg/fsutil"
	"github.com/walteh/dispatcherconv/pkg/ledger"
	"github.com/walteh/dispatcherconv/pkg/rewrite"
)

// ruleFolder describes one conf.dispatcher.d subfolder whose rule files feed
// a farm section. The merge and default-copy policies below are the same for
// every folder; only the names differ.
type ruleFolder struct {
	dir          string // absolute path of the folder
	section      string // farm section the folder's files are included from
	singleSuffix string // suffix qualifying a lone file for the rename branch
	inlineSuffix string // suffix qualifying files for inlining into farms
	mergedName   string // canonical file name after rename or consolidation
	mergedRef    string // quoted include reference to the canonical file
	defaultName  string // SDK default file name
	defaultRef   string // quoted include reference to the SDK default file
	amsPrefix    string // prefix of legacy absolute-path include statements
}

func (c *Converter) availableFarmFiles() []string {
	matches, err := files.Glob(filepath.Join(c.confDispatcherD(), availableFarmsDir), "**/*."+farmExt)
	if err != nil {
		return nil
	}
	return matches
}

// farmFileName maps a legacy farm file name onto the *.farm pattern:
// customerX_farm.any becomes customerX.farm.
func farmFileName(name string) string {
	if !strings.HasSuffix(name, "."+anyExt) {
		return name
	}
	name = strings.ReplaceAll(name, "_farm", "")
	return strings.TrimSuffix(name, "."+anyExt) + "." + farmExt
}

// mergeRuleFolder applies the shared rule-file policy to a folder: a lone
// file with the qualifying suffix is renamed to the canonical name, while
// multiple files are either inlined into their farms (several farms) or
// consolidated into one canonical file (a single farm).
func (c *Converter) mergeRuleFolder(ctx context.Context, ruleFiles []string, folder ruleFolder, step *ledger.Step) error {
	dispatcherD := c.confDispatcherD()
	switch {
	case len(ruleFiles) == 1 && strings.HasSuffix(ruleFiles[0], folder.singleSuffix):
		oldName := filepath.Base(ruleFiles[0])
		if oldName == folder.mergedName {
			return nil
		}
		renamed := filepath.Join(filepath.Dir(ruleFiles[0]), folder.mergedName)
		if err := files.Rename(ctx, ruleFiles[0], renamed, step); err != nil {
			return err
		}
		return rewrite.ReplaceIncludeRule(ctx, dispatcherD, farmExt, conf.FarmInclude,
			oldName, folder.mergedRef, step)

	case len(ruleFiles) > 1:
		farms := c.availableFarmFiles()
		if len(farms) > 1 {
			// farm-specific rule files are inlined where they are included
			for _, path := range ruleFiles {
				if !strings.HasSuffix(path, folder.inlineSuffix) {
					continue
				}
				content, err := files.Content(path, true)
				if err != nil {
					return err
				}
				if err := rewrite.InlineInclude(ctx, dispatcherD, farmExt, conf.FarmInclude,
					filepath.Base(path), content, step); err != nil {
					return err
				}
				if err := files.Delete(ctx, path, step); err != nil {
					return err
				}
			}
			return nil
		}
		if len(farms) == 1 {
			// a single farm: consolidate the rule files it includes
			included, err := rewrite.IncludedRuleNames(farms[0], files.Names(ruleFiles), conf.FarmInclude)
			if err != nil {
				return err
			}
			used := keepUsedRuleFiles(ctx, ruleFiles, included, step)
			if len(used) == 0 {
				return nil
			}
			if err := files.Consolidate(ctx, used, filepath.Join(folder.dir, folder.mergedName), step); err != nil {
				return err
			}
			return rewrite.ReplaceIncludesInSection(ctx, dispatcherD, farmExt, conf.FarmInclude,
				folder.section, files.Names(used), conf.FarmInclude.Statement(folder.mergedRef), step)
		}
	}
	return nil
}

// copyFolderDefaults copies the SDK's default file for a folder and rewrites
// the legacy absolute-path include statements in the farm files. When the
// folder ended up without a canonical merged file, the SDK's stock version of
// that file is copied too and the includes point at it instead.
func (c *Converter) copyFolderDefaults(ctx context.Context, folder ruleFolder, step *ledger.Step) error {
	sdkFolder := filepath.Base(folder.dir)
	if err := c.copyFromSDK(ctx, filepath.Join(confDispatcherDir, sdkFolder, folder.defaultName),
		folder.dir, step); err != nil {
		return err
	}
	dispatcherD := c.confDispatcherD()
	if fsutil.IsFile(filepath.Join(folder.dir, folder.mergedName)) {
		return rewrite.ReplaceIncludePatternInSection(ctx, dispatcherD, farmExt, folder.section,
			folder.amsPrefix, conf.FarmInclude.Statement(folder.defaultRef), step)
	}
	if err := c.copyFromSDK(ctx, filepath.Join(confDispatcherDir, sdkFolder, folder.mergedName),
		folder.dir, step); err != nil {
		return err
	}
	return rewrite.ReplaceIncludePatternInSection(ctx, dispatcherD, farmExt, folder.section,
		folder.amsPrefix, conf.FarmInclude.Statement(folder.mergedRef), step)
}

// 8. Get rid of all non-publish farms.
func (c *Converter) removeNonPublishFarms(ctx context.Context) error {
	step := c.newStep("Get rid of all non-publish farms",
		"Remove any farm file in `conf.dispatcher.d/enabled_farms` that has `author`, `unhealthy`, "+
			"`health`, `lc` or `flush` in its name. All farm files in `conf.dispatcher.d/available_farms` "+
			"that are not linked to can be removed as well.")
	enabled := filepath.Join(c.confDispatcherD(), enabledFarmsDir)
	available := filepath.Join(c.confDispatcherD(), availableFarmsDir)

	for _, keyword := range c.settings.NonPublishKeywords {
		if err := files.DeleteContaining(ctx, enabled, keyword, step); err != nil {
			return err
		}
		if err := files.DeleteContaining(ctx, available, keyword, step); err != nil {
			return err
		}
	}
	if fsutil.IsDir(enabled) && fsutil.IsDir(available) {
		return files.DiffByName(ctx, enabled, available, step)
	}
	return nil
}

// 9. Rename farm files.
func (c *Converter) renameFarmFiles(ctx context.Context) error {
	step := c.newStep("Rename farm files",
		"All farms in `conf.dispatcher.d/enabled_farms` and `conf.dispatcher.d/available_farms` must be "+
			"renamed to match the pattern `*.farm`, so e.g. a farm file called `customerX_farm.any` "+
			"should be renamed `customerX.farm`.")
	enabled := filepath.Join(c.confDispatcherD(), enabledFarmsDir)
	available := filepath.Join(c.confDispatcherD(), availableFarmsDir)

	// enabled_farms goes first: symlinks into available_farms are still
	// valid at that point and get renamed along with the regular files
	for _, dir := range []string{enabled, available} {
		matches, err := files.Glob(dir, "**/*."+anyExt)
		if err != nil {
			return err
		}
		for _, path := range matches {
			newName := farmFileName(filepath.Base(path))
			if newName == filepath.Base(path) {
				continue
			}
			if err := files.Rename(ctx, path, filepath.Join(filepath.Dir(path), newName), step); err != nil {
				return err
			}
		}
	}

	logger := zerolog.Ctx(ctx)
	farmLinks, err := files.Glob(enabled, "**/*."+farmExt)
	if err != nil {
		return err
	}
	for _, path := range farmLinks {
		if !isSymlinkFile(path) {
			logger.Info().Str("path", path).Msg("found non-symlink enabled_farm file")
			step.Record(ledger.ActionWarning, path, "Found non-symlink enabled_farm file.")
		}
	}
	return c.retargetFarmLinks(ctx, enabled, step)
}

// retargetFarmLinks points the links in enabled_farms at the renamed
// available_farms files. Both real symlinks and text symlinks are handled.
func (c *Converter) retargetFarmLinks(ctx context.Context, enabled string, step *ledger.Step) error {
	entries, err := os.ReadDir(enabled)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Errorf("reading enabled_farms: %w", err)
	}
	logger := zerolog.Ctx(ctx)
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), "."+farmExt) {
			continue
		}
		path := filepath.Join(enabled, entry.Name())

		if entry.Type()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return errors.Errorf("reading link %s: %w", path, err)
			}
			newTarget := filepath.Join(filepath.Dir(target), farmFileName(filepath.Base(target)))
			if newTarget == target {
				continue
			}
			if err := os.Remove(path); err != nil {
				return errors.Errorf("replacing link %s: %w", path, err)
			}
			if err := os.Symlink(newTarget, path); err != nil {
				return errors.Errorf("replacing link %s: %w", path, err)
			}
			logger.Info().Str("path", path).Str("from", target).Str("to", newTarget).Msg("renamed symlink target")
			step.Record(ledger.ActionRenamed, path, "Renamed symlink target "+target+" to "+newTarget)
			continue
		}

		lines, err := files.Content(path, false)
		if err != nil || len(lines) != 2 || !strings.HasPrefix(lines[1], "../") {
			continue
		}
		target := lines[1]
		newTarget := filepath.Join(filepath.Dir(target), farmFileName(filepath.Base(target)))
		if newTarget == target {
			continue
		}
		if err := fsutil.WriteFileAtomic(path, []byte(newTarget+"\n")); err != nil {
			return errors.Errorf("rewriting link file %s: %w", path, err)
		}
		logger.Info().Str("path", path).Str("from", target).Str("to", newTarget).Msg("renamed symlink target")
		step.Record(ledger.ActionRenamed, path, "Renamed symlink target "+target+" to "+newTarget)
	}
	return nil
}

// 10. Check cache folder.
func (c *Converter) checkCache(ctx context.Context) error {
	step := c.newStep("Check cache",
		"In directory `conf.dispatcher.d/cache`, remove any file prefixed `ams_`. If the folder is now "+
			"empty, copy the file `conf.dispatcher.d/cache/rules.any` from the standard dispatcher "+
			"configuration to this folder and adapt the `$include` statements in the farm files. If the "+
			"folder contains a single file with suffix `_cache.any`, rename it to `rules.any`; multiple "+
			"farm specific files are inlined or consolidated instead. Remove any file with the suffix "+
			"`_invalidate_allowed.any`, copy `conf.dispatcher.d/cache/default_invalidate.any` from the "+
			"standard dispatcher configuration and replace the contents of every `cache/allowedClients` "+
			"section with `$include \"../cache/default_invalidate.any\"`.")
	dispatcherD := c.confDispatcherD()
	cacheDir := filepath.Join(dispatcherD, "cache")

	amsFiles, err := files.Glob(cacheDir, "**/*ams_*."+anyExt)
	if err != nil {
		return err
	}
	cacheFiles, err := files.Glob(cacheDir, "**/*."+anyExt)
	if err != nil {
		return err
	}
	for _, path := range amsFiles {
		// with only ams_ files present the whole /rules section gets
		// replaced below, so the includes only need fixing up when other
		// cache files remain
		if len(cacheFiles) > len(amsFiles) {
			if err := rewrite.ReplaceIncludeRule(ctx, dispatcherD, farmExt, conf.FarmInclude,
				filepath.Base(path), `"../cache/default_rules.any"`, step); err != nil {
				return err
			}
		}
		if err := files.Delete(ctx, path, step); err != nil {
			return err
		}
	}

	ruleFiles, err := files.Glob(cacheDir, "**/*."+anyExt)
	if err != nil {
		return err
	}
	if err := c.copyFromSDK(ctx, filepath.Join(confDispatcherDir, "cache", "default_rules.any"),
		cacheDir, step); err != nil {
		return err
	}
	if len(ruleFiles) == 0 {
		if err := c.copyFromSDK(ctx, filepath.Join(confDispatcherDir, "cache", "rules.any"),
			cacheDir, step); err != nil {
			return err
		}
		if err := rewrite.ReplaceSectionContent(ctx, dispatcherD, farmExt, rulesSection,
			conf.FarmInclude.Statement(`"../cache/rules.any"`), step); err != nil {
			return err
		}
	} else {
		if err := c.mergeRuleFolder(ctx, ruleFiles, ruleFolder{
			dir:          cacheDir,
			section:      rulesSection,
			singleSuffix: "_cache.any",
			inlineSuffix: "_cache.any",
			mergedName:   "rules.any",
			mergedRef:    `"../cache/rules.any"`,
		}, step); err != nil {
			return err
		}
	}

	invalidateFiles, err := files.Glob(cacheDir, "**/*_invalidate_allowed."+anyExt)
	if err != nil {
		return err
	}
	for _, path := range invalidateFiles {
		if err := files.Delete(ctx, path, step); err != nil {
			return err
		}
	}
	if err := c.copyFromSDK(ctx, filepath.Join(confDispatcherDir, "cache", "default_invalidate.any"),
		cacheDir, step); err != nil {
		return err
	}
	return rewrite.ReplaceSectionContent(ctx, dispatcherD, farmExt, allowedClientsSection,
		conf.FarmInclude.Statement(`"../cache/default_invalidate.any"`), step)
}

// 11. Check clientheaders folder.
func (c *Converter) checkClientHeaders(ctx context.Context) error {
	step := c.newStep("Check client headers",
		"In directory `conf.dispatcher.d/clientheaders`, remove any file prefixed `ams_`. If the folder "+
			"now contains a single file with suffix `_clientheaders.any`, it should be renamed to "+
			"`clientheaders.any` and the `$include` statements referring to it adapted; multiple farm "+
			"specific files are inlined or consolidated instead. Copy the file "+
			"`conf.dispatcher.d/clientheaders/default_clientheaders.any` from the standard dispatcher "+
			"configuration and replace legacy clientheader include statements with "+
			"`$include \"../clientheaders/default_clientheaders.any\"`.")
	dir := filepath.Join(c.confDispatcherD(), "clientheaders")
	folder := ruleFolder{
		dir:          dir,
		section:      clientHeadersSection,
		singleSuffix: "_clientheaders.any",
		inlineSuffix: "_clientheaders.any",
		mergedName:   "clientheaders.any",
		mergedRef:    `"../clientheaders/clientheaders.any"`,
		defaultName:  "default_clientheaders.any",
		defaultRef:   `"../clientheaders/default_clientheaders.any"`,
		amsPrefix:    `$include "/etc/httpd/conf.dispatcher.d/clientheaders/ams_`,
	}
	if err := c.cleanAndMergeFolder(ctx, folder, step); err != nil {
		return err
	}
	return c.copyFolderDefaults(ctx, folder, step)
}

// 12. Check filters folder.
func (c *Converter) checkFilters(ctx context.Context) error {
	step := c.newStep("Check filter",
		"In directory `conf.dispatcher.d/filters`, remove any file prefixed `ams_`. If the folder now "+
			"contains a single file with suffix `_filters.any`, it should be renamed to `filters.any` "+
			"and the `$include` statements referring to it adapted; multiple farm specific files are "+
			"inlined or consolidated instead. Copy the file "+
			"`conf.dispatcher.d/filters/default_filters.any` from the standard dispatcher configuration "+
			"and replace legacy filter include statements with `$include \"../filters/default_filters.any\"`.")
	dir := filepath.Join(c.confDispatcherD(), "filters")
	folder := ruleFolder{
		dir:          dir,
		section:      filtersSection,
		singleSuffix: "_filters.any",
		inlineSuffix: "_filters.any",
		mergedName:   "filters.any",
		mergedRef:    `"../filters/filters.any"`,
		defaultName:  "default_filters.any",
		defaultRef:   `"../filters/default_filters.any"`,
		amsPrefix:    `$include "/etc/httpd/conf.dispatcher.d/filters/ams`,
	}
	if err := c.cleanAndMergeFolder(ctx, folder, step); err != nil {
		return err
	}
	return c.copyFolderDefaults(ctx, folder, step)
}

// cleanAndMergeFolder removes ams_ rule files from a folder, keeps only the
// *.any files and applies the shared merge policy to what remains.
func (c *Converter) cleanAndMergeFolder(ctx context.Context, folder ruleFolder, step *ledger.Step) error {
	amsFiles, err := files.Glob(folder.dir, "**/*ams_*."+anyExt)
	if err != nil {
		return err
	}
	for _, path := range amsFiles {
		if err := files.Delete(ctx, path, step); err != nil {
			return err
		}
	}
	ruleFiles, err := files.KeepOnlyMatching(ctx, folder.dir, "*."+anyExt, step)
	if err != nil {
		return err
	}
	return c.mergeRuleFolder(ctx, ruleFiles, folder, step)
}

// 13. Check renders folder.
func (c *Converter) checkRenders(ctx context.Context) error {
	step := c.newStep("Check renders",
		"Remove all files in the directory `conf.dispatcher.d/renders`. Copy the file "+
			"`conf.dispatcher.d/renders/default_renders.any` from the standard dispatcher configuration "+
			"to that location. In each farm file, remove any contents in the renders section and replace "+
			"it with: `$include \"../renders/default_renders.any\"`.")
	dispatcherD := c.confDispatcherD()
	rendersDir := filepath.Join(dispatcherD, "renders")

	renderFiles, err := files.Glob(rendersDir, "**/*."+anyExt)
	if err != nil {
		return err
	}
	for _, path := range renderFiles {
		if err := files.Delete(ctx, path, step); err != nil {
			return err
		}
	}
	if err := c.copyFromSDK(ctx, filepath.Join(confDispatcherDir, "renders", "default_renders.any"),
		rendersDir, step); err != nil {
		return err
	}
	return rewrite.ReplaceSectionContent(ctx, dispatcherD, farmExt, rendersSection,
		conf.FarmInclude.Statement(`"../renders/default_renders.any"`), step)
}

// 14. Check virtualhosts folder.
func (c *Converter) checkVirtualHosts(ctx context.Context) error {
	step := c.newStep("Check VirtualHosts",
		"Rename the directory `conf.dispatcher.d/vhosts` to `conf.dispatcher.d/virtualhosts` and remove "+
			"any file prefixed `ams_`. If the folder now contains a single file it should be renamed to "+
			"`virtualhosts.any` and the `$include` statements referring to it adapted; multiple farm "+
			"specific files are inlined or consolidated instead. Copy the file "+
			"`conf.dispatcher.d/virtualhosts/default_virtualhosts.any` from the standard dispatcher "+
			"configuration and replace legacy vhost include statements with "+
			"`$include \"../virtualhosts/default_virtualhosts.any\"`.")
	dispatcherD := c.confDispatcherD()
	oldDir := filepath.Join(dispatcherD, "vhosts")
	dir := filepath.Join(dispatcherD, "virtualhosts")

	if fsutil.IsDir(oldDir) {
		if err := files.RenameFolder(ctx, oldDir, dir, step); err != nil {
			return err
		}
	}
	if err := files.DeleteContaining(ctx, dir, "ams_", step); err != nil {
		return err
	}
	ruleFiles, err := files.KeepOnlyMatching(ctx, dir, "*."+anyExt, step)
	if err != nil {
		return err
	}
	folder := ruleFolder{
		dir:          dir,
		section:      virtualhostsSection,
		singleSuffix: "vhosts.any",
		inlineSuffix: "_vhosts.any",
		mergedName:   "virtualhosts.any",
		mergedRef:    `"../virtualhosts/virtualhosts.any"`,
		defaultName:  "default_virtualhosts.any",
		defaultRef:   `"../virtualhosts/default_virtualhosts.any"`,
		amsPrefix:    `$include "/etc/httpd/conf.dispatcher.d/vhosts/ams_`,
	}
	if err := c.mergeRuleFolder(ctx, ruleFiles, folder, step); err != nil {
		return err
	}
	if err := c.copyFolderDefaults(ctx, folder, step); err != nil {
		return err
	}
	return rewrite.RemoveVariablesInSection(ctx, dispatcherD, farmExt, virtualhostsSection, step)
}

// 15. Replace variables in farm files.
func (c *Converter) replaceFarmVariables(ctx context.Context) error {
	step := c.newStep("Replace variables in farm files",
		"Rename `PUBLISH_DOCROOT` to `DOCROOT` in all farm files.")
	return rewrite.ReplaceVariable(ctx, c.confDispatcherD(), farmExt, "PUBLISH_DOCROOT", "DOCROOT", step)
}

// 16. Report and remove usage of non-whitelisted directives.
func (c *Converter) removeNonWhitelistedDirectives(ctx context.Context) error {
	step := c.newStep("Remove usage of non-whitelisted directives",
		"Checking for usage of non-whitelisted directives and remove them.")
	whitelist := conf.WhitelistSet(append(slices.Clone(conf.DefaultWhitelist), c.settings.ExtraWhitelist...))
	_, err := rewrite.RemoveNonWhitelistedDirectives(ctx,
		filepath.Join(c.confD(), availableVhostsDir), whitelist, step)
	return err
}
