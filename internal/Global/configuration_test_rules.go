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

/*
This section contains all the rules for the tests by tested method
*/

type sanityRule struct {
	name   string
	config Configuration
	want   bool
}

//a config file with just the keys an operator would override
const testConfigToml = `
[mariadbcluster]
user = "osc"
password = "secret"
section = "s1"
inventoryfile = "/etc/mariadb_osc_handler/inventory.yaml"

[osc]
method = "ddl"
commandtimeout = 3600

[execution]
backend = "fleet"

[Global]
loglevel = "warning"
`

//defaults plus the two fields that have no sane default
func testConfigurationFactory(inventoryPath string) Configuration {
	config := Configuration{}
	config.fillDefaults()
	config.Mariadb.InventoryFile = inventoryPath
	config.Mariadb.Section = "s1"
	return config
}

func rulesTestSanityCheck(inventoryPath string) []sanityRule {
	noSection := testConfigurationFactory(inventoryPath)
	noSection.Mariadb.Section = ""

	noInventory := testConfigurationFactory(inventoryPath)
	noInventory.Mariadb.InventoryFile = ""

	ghostInventory := testConfigurationFactory(inventoryPath)
	ghostInventory.Mariadb.InventoryFile = inventoryPath + ".not_there"

	overlappingCodes := testConfigurationFactory(inventoryPath)
	overlappingCodes.Osc.TransientCodes = []int{0, 75}

	perconaNoTool := testConfigurationFactory(inventoryPath)
	perconaNoTool.Osc.ToolPath = ""

	ddlNoClient := testConfigurationFactory(inventoryPath)
	ddlNoClient.Osc.Method = "ddl"
	ddlNoClient.Osc.ClientPath = ""

	unknownMethod := testConfigurationFactory(inventoryPath)
	unknownMethod.Osc.Method = "gh-ost"

	unknownBackend := testConfigurationFactory(inventoryPath)
	unknownBackend.Execution.Backend = "teleport"

	unknownLevel := testConfigurationFactory(inventoryPath)
	unknownLevel.Global.LogLevel = "chatty"

	badPort := testConfigurationFactory(inventoryPath)
	badPort.Mariadb.Port = 70000

	myRules := []sanityRule{
		{"Defaults with inventory and section", testConfigurationFactory(inventoryPath), true},
		{"Missing section", noSection, false},
		{"Missing inventory file", noInventory, false},
		{"Unreachable inventory file", ghostInventory, false},
		{"Exit code both success and transient", overlappingCodes, false},
		{"Percona method without tool", perconaNoTool, false},
		{"Ddl method without client", ddlNoClient, false},
		{"Unknown method", unknownMethod, false},
		{"Unknown execution backend", unknownBackend, false},
		{"Unknown log level", unknownLevel, false},
		{"Port out of range", badPort, false},
	}
	return myRules
}
