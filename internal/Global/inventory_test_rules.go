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

type inventoryRule struct {
	name    string
	yaml    string
	wantErr bool
}

type dnsRule struct {
	name string
	host InventoryHost
	want string
}

//the canonical fleet, db1003 has no port and relies on the default
const testInventoryYaml = `
sections:
  - name: s1
    hosts:
      - host: db1001.example.org
        port: 3306
        role: master
      - host: db1002.example.org
        port: 3306
        role: replica
      - host: db1003.example.org
        role: replica
  - name: s2
    hosts:
      - host: db2001.example.org
        port: 3306
        role: master
`

const testInventoryYamlTwoMasters = `
sections:
  - name: s1
    hosts:
      - host: db1001.example.org
        port: 3306
        role: master
      - host: db1002.example.org
        port: 3306
        role: master
`

const testInventoryYamlNoMaster = `
sections:
  - name: s1
    hosts:
      - host: db1002.example.org
        port: 3306
        role: replica
`

const testInventoryYamlDuplicatedHost = `
sections:
  - name: s1
    hosts:
      - host: db1001.example.org
        port: 3306
        role: master
      - host: db1001.example.org
        port: 3306
        role: replica
`

const testInventoryYamlUnknownRole = `
sections:
  - name: s1
    hosts:
      - host: db1001.example.org
        port: 3306
        role: master
      - host: db1002.example.org
        port: 3306
        role: arbiter
`

const testInventoryYamlBadPort = `
sections:
  - name: s1
    hosts:
      - host: db1001.example.org
        port: 99999
        role: master
`

const testInventoryYamlNoSections = `
sections: []
`

const testInventoryYamlBroken = `
sections: [
`

func rulesTestLoadInventory() []inventoryRule {
	myRules := []inventoryRule{
		{"Valid inventory", testInventoryYaml, false},
		{"Two masters in one section", testInventoryYamlTwoMasters, true},
		{"Section without master", testInventoryYamlNoMaster, true},
		{"Host declared twice", testInventoryYamlDuplicatedHost, true},
		{"Unknown role", testInventoryYamlUnknownRole, true},
		{"Port out of range", testInventoryYamlBadPort, true},
		{"No sections at all", testInventoryYamlNoSections, true},
		{"Broken yaml", testInventoryYamlBroken, true},
	}
	return myRules
}

func rulesTestInventoryHostDns() []dnsRule {
	myRules := []dnsRule{
		{"Hostname with port", InventoryHost{Host: "db1001.example.org", Port: 3306, Role: "master"}, "db1001.example.org:3306"},
		{"Plain address", InventoryHost{Host: "192.168.4.55", Port: 3307, Role: "replica"}, "192.168.4.55:3307"},
		{"Ipv6 address gets brackets", InventoryHost{Host: "2001:db8::55", Port: 3306, Role: "replica"}, "[2001:db8::55]:3306"},
	}
	return myRules
}
