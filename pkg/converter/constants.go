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

// Well-known names inside a dispatcher configuration tree.
const (
	confDir           = "conf"
	confDDir          = "conf.d"
	confModulesDDir   = "conf.modules.d"
	confDispatcherDir = "conf.dispatcher.d"

	enabledVhostsDir   = "enabled_vhosts"
	availableVhostsDir = "available_vhosts"
	enabledFarmsDir    = "enabled_farms"
	availableFarmsDir  = "available_farms"

	vhostExt = "vhost"
	farmExt  = "farm"
	anyExt   = "any"
	confExt  = "conf"
)

// Farm file section headers the conversion rewrites.
const (
	rendersSection        = "/renders"
	virtualhostsSection   = "/virtualhosts"
	allowedClientsSection = "/allowedClients"
	clientHeadersSection  = "/clientheader"
	rulesSection          = "/rules"
	filtersSection        = "/filter"
)
