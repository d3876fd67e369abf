/*
 * Copyright (c) Marco Tusa 2021 - present
 *                     GNU GENERAL PUBLIC LICENSE
 *                        Version 3, 29 June 2007
 *
 *  Copyright (C) 2007 Free Software Foundation, Inc. <https://fsf.org/>
 *  Everyone is permitted to copy and distribute verbatim copies
 *  of this license document, but changing it is not allowed.
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package Global

import (
	"io/ioutil"
	"reflect"
	"testing"
)

// ****************  TESTS **********************************

/* Tests for the configuration [start] */
func TestConfiguration_fillDefaults(t *testing.T) {
	config := Configuration{}
	config.fillDefaults()

	if config.Mariadb.User != "root" || config.Mariadb.Port != 3306 {
		t.Errorf(" fillDefaults() mariadb = %v@%v, want root@3306", config.Mariadb.User, config.Mariadb.Port)
	}
	if config.Osc.Method != "percona" || config.Osc.CommandTimeOut != 86400 || !config.Osc.PerReplica {
		t.Errorf(" fillDefaults() osc = %v/%v/%v, want percona/86400/true",
			config.Osc.Method, config.Osc.CommandTimeOut, config.Osc.PerReplica)
	}
	if !reflect.DeepEqual(config.Osc.SuccessCodes, []int{0}) || !reflect.DeepEqual(config.Osc.TransientCodes, []int{75}) {
		t.Errorf(" fillDefaults() codes = %v/%v, want [0]/[75]", config.Osc.SuccessCodes, config.Osc.TransientCodes)
	}
	if config.Execution.Backend != "local" || config.Execution.RunnerPath != "/usr/bin/cumin" {
		t.Errorf(" fillDefaults() execution = %v/%v, want local//usr/bin/cumin",
			config.Execution.Backend, config.Execution.RunnerPath)
	}
	if !reflect.DeepEqual(config.Execution.RunnerArgs, []string{"--force", "-o", "txt"}) {
		t.Errorf(" fillDefaults() runner args = %v, want [--force -o txt]", config.Execution.RunnerArgs)
	}
	if config.Global.LogLevel != "info" || config.Global.LockFileTimeout != 86400 {
		t.Errorf(" fillDefaults() global = %v/%v, want info/86400", config.Global.LogLevel, config.Global.LockFileTimeout)
	}
}

func TestConfiguration_SanityCheck(t *testing.T) {
	//the inventory file only has to exist, SanityCheck does not parse it
	inventoryPath := t.TempDir() + Separator + "inventory.yaml"
	if err := ioutil.WriteFile(inventoryPath, []byte(testInventoryYaml), 0644); err != nil {
		t.Errorf(" cannot write the inventory fixture: %v", err)
		return
	}

	var tests = []sanityRule{}
	tests = rulesTestSanityCheck(inventoryPath)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := tt.config
			if got := config.SanityCheck(); got != tt.want {
				t.Errorf(" %s SanityCheck() = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestConfiguration_SanityCheckMutations(t *testing.T) {
	inventoryPath := t.TempDir() + Separator + "inventory.yaml"
	if err := ioutil.WriteFile(inventoryPath, []byte(testInventoryYaml), 0644); err != nil {
		t.Errorf(" cannot write the inventory fixture: %v", err)
		return
	}

	//the debug flag wins over the configured level
	config := testConfigurationFactory(inventoryPath)
	config.Global.Debug = true
	if got := config.SanityCheck(); got != true {
		t.Errorf(" SanityCheck() = %v, want true", got)
	}
	if config.Global.LogLevel != "debug" {
		t.Errorf(" SanityCheck() log level = %v, want debug when Debug is on", config.Global.LogLevel)
	}

	//an emptied out SuccessCodes would make every run a failure
	config = testConfigurationFactory(inventoryPath)
	config.Osc.SuccessCodes = []int{}
	if got := config.SanityCheck(); got != true {
		t.Errorf(" SanityCheck() = %v, want true", got)
	}
	if !reflect.DeepEqual(config.Osc.SuccessCodes, []int{0}) {
		t.Errorf(" SanityCheck() success codes = %v, want the [0] reset", config.Osc.SuccessCodes)
	}
}

func TestGetConfig(t *testing.T) {
	path := t.TempDir() + Separator + "config.toml"
	if err := ioutil.WriteFile(path, []byte(testConfigToml), 0644); err != nil {
		t.Errorf(" cannot write the config fixture: %v", err)
		return
	}

	config := GetConfig(path)
	if config.Mariadb.User != "osc" || config.Mariadb.Password != "secret" || config.Mariadb.Section != "s1" {
		t.Errorf(" GetConfig() mariadb = %v/%v/%v, want osc/secret/s1",
			config.Mariadb.User, config.Mariadb.Password, config.Mariadb.Section)
	}
	if config.Osc.Method != "ddl" || config.Osc.CommandTimeOut != 3600 {
		t.Errorf(" GetConfig() osc = %v/%v, want ddl/3600", config.Osc.Method, config.Osc.CommandTimeOut)
	}
	if config.Execution.Backend != "fleet" || config.Global.LogLevel != "warning" {
		t.Errorf(" GetConfig() = %v/%v, want fleet/warning", config.Execution.Backend, config.Global.LogLevel)
	}
	//what the file does not mention keeps its default
	if config.Mariadb.Port != 3306 || config.Execution.RunnerPath != "/usr/bin/cumin" {
		t.Errorf(" GetConfig() defaults = %v/%v, want 3306//usr/bin/cumin",
			config.Mariadb.Port, config.Execution.RunnerPath)
	}
}

func TestGetConfig_EnvironmentOverrides(t *testing.T) {
	path := t.TempDir() + Separator + "config.toml"
	if err := ioutil.WriteFile(path, []byte(testConfigToml), 0644); err != nil {
		t.Errorf(" cannot write the config fixture: %v", err)
		return
	}
	t.Setenv("MARIADB_OSC_PASSWORD", "from_env")

	config := GetConfig(path)
	if config.Mariadb.Password != "from_env" {
		t.Errorf(" GetConfig() password = %v, want the environment override", config.Mariadb.Password)
	}
	//the file value stays where no override exists
	if config.Mariadb.User != "osc" {
		t.Errorf(" GetConfig() user = %v, want osc", config.Mariadb.User)
	}
}

/* Tests for the configuration [end] */
