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

// Package config holds the conversion settings and their file loader.
// Settings files may be JSON, YAML or HCL; the format is picked by file
// extension and unknown fields are rejected in all three.
package config

import (
	"path/filepath"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/dispatcherconv/pkg/fsutil"
)

// defaultNonPublishKeywords marks vhost and farm files that serve a purpose
// other than publish traffic. Files whose name contains one of these are
// dropped during conversion.
var defaultNonPublishKeywords = []string{"author", "unhealthy", "health", "lc", "flush"}

// ⚙️ Settings is the full configuration of a conversion run.
type Settings struct {
	// SDKSrc is the dispatcher SDK's src directory, the source of the
	// default rule files copied into the converted configuration.
	SDKSrc string `json:"sdk_src" yaml:"sdk_src" hcl:"sdk_src"`

	// ConfigDir is the customer dispatcher configuration to convert,
	// typically the directory holding conf.d and conf.dispatcher.d.
	ConfigDir string `json:"cfg" yaml:"cfg" hcl:"cfg"`

	// TargetDir receives the converted configuration and the report.
	TargetDir string `json:"target,omitempty" yaml:"target,omitempty" hcl:"target,optional"`

	// ReportPath overrides the location of the markdown summary report.
	ReportPath string `json:"report,omitempty" yaml:"report,omitempty" hcl:"report,optional"`

	// NonPublishKeywords replaces the default set of file name keywords
	// identifying non-publish vhosts and farms.
	NonPublishKeywords []string `json:"non_publish_keywords,omitempty" yaml:"non_publish_keywords,omitempty" hcl:"non_publish_keywords,optional"`

	// ExtraWhitelist extends the permitted Apache directive list, for
	// configurations relying on additionally installed modules.
	ExtraWhitelist []string `json:"extra_whitelist,omitempty" yaml:"extra_whitelist,omitempty" hcl:"extra_whitelist,optional"`
}

// 🏭 Default returns settings with every optional field at its default.
func Default() *Settings {
	s := &Settings{TargetDir: "target"}
	s.ApplyDefaults()
	return s
}

// ApplyDefaults fills every empty optional field with its default value.
func (s *Settings) ApplyDefaults() {
	if s.TargetDir == "" {
		s.TargetDir = "target"
	}
	if s.ReportPath == "" {
		s.ReportPath = filepath.Join(s.TargetDir, "conversion-report.md")
	}
	if len(s.NonPublishKeywords) == 0 {
		s.NonPublishKeywords = defaultNonPublishKeywords
	}
}

// Validate checks that both source trees exist before any work starts.
func (s *Settings) Validate() error {
	if s.SDKSrc == "" {
		return errors.New("sdk_src is required")
	}
	if !fsutil.IsDir(s.SDKSrc) {
		return errors.Errorf("sdk src directory does not exist: %s", s.SDKSrc)
	}
	if s.ConfigDir == "" {
		return errors.New("cfg is required")
	}
	if !fsutil.IsDir(s.ConfigDir) {
		return errors.Errorf("dispatcher config directory does not exist: %s", s.ConfigDir)
	}
	return nil
}
