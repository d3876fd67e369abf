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

package DataObjects

import (
	"database/sql"
	"time"

	global "mariadb_osc_handler/internal/Global"
)

/*
This section contains all the rules for the tests by tested method
*/

type lagParseRule struct {
	name           string
	rawValue       sql.NullString
	wantValid      bool
	wantSeconds    float64
	wantParseError bool
}

type lagHealthRule struct {
	name    string
	seconds float64
	valid   bool
	maxLag  float64
	want    bool
}

type buildNodesRule struct {
	name         string
	section      global.InventorySection
	want         bool
	wantMaster   string
	wantReplicas []string
}

func testSampleTime() time.Time {
	return time.Date(2021, time.April, 28, 12, 0, 0, 0, time.UTC)
}

func rulesTestParseSecondsBehindMaster() []lagParseRule {
	myRules := []lagParseRule{
		{"NULL lag is invalid not zero", sql.NullString{}, false, 0, false},
		{"Zero lag", sql.NullString{String: "0", Valid: true}, true, 0, false},
		{"Plain lag", sql.NullString{String: "12", Valid: true}, true, 12, false},
		{"Fractional lag", sql.NullString{String: "12.5", Valid: true}, true, 12.5, false},
		{"Padded lag", sql.NullString{String: " 3 ", Valid: true}, true, 3, false},
		{"Garbage lag", sql.NullString{String: "NULLish", Valid: true}, false, 0, true},
	}
	return myRules
}

func rulesTestLagSampleIsHealthy() []lagHealthRule {
	myRules := []lagHealthRule{
		{"Under the threshold", 2, true, 10, true},
		{"Exactly on the threshold", 10, true, 10, true},
		{"Over the threshold", 11, true, 10, false},
		{"Invalid sample never healthy", 0, false, 10, false},
		{"Invalid sample never healthy whatever the threshold", 0, false, 100000, false},
	}
	return myRules
}

func testInventoryHostFactory(host string, port int, role string) global.InventoryHost {
	return global.InventoryHost{Host: host, Port: port, Role: role}
}

//the canonical section, db1003 relies on the configured default port
func testInventorySectionFactory() global.InventorySection {
	section := global.InventorySection{
		Name: "s1",
		Hosts: []global.InventoryHost{
			testInventoryHostFactory("db1001.example.org", 3306, RoleMaster),
			testInventoryHostFactory("db1002.example.org", 3306, RoleReplica),
			testInventoryHostFactory("db1003.example.org", 0, RoleReplica),
		},
	}
	return section
}

func testTopologyImplFactory() *TopologyImpl {
	topology := new(TopologyImpl)
	topology.SectionName = "s1"
	topology.User = "osc"
	topology.Password = "password"
	topology.DefaultPort = 3306
	topology.ConnectTimeOut = 1
	topology.CheckTimeout = 2000
	return topology
}

func rulesTestBuildNodes() []buildNodesRule {
	masterOnly := global.InventorySection{
		Name:  "s2",
		Hosts: []global.InventoryHost{testInventoryHostFactory("db2001.example.org", 3306, RoleMaster)},
	}
	noMaster := global.InventorySection{
		Name:  "s3",
		Hosts: []global.InventoryHost{testInventoryHostFactory("db3001.example.org", 3306, RoleReplica)},
	}
	unknownRole := global.InventorySection{
		Name: "s4",
		Hosts: []global.InventoryHost{
			testInventoryHostFactory("db4001.example.org", 3306, RoleMaster),
			testInventoryHostFactory("db4002.example.org", 3306, "arbiter"),
		},
	}

	myRules := []buildNodesRule{
		{"Full section", testInventorySectionFactory(), true, testMasterDns,
			[]string{testReplica1Dns, testReplica2Dns}},
		{"Master alone", masterOnly, true, "db2001.example.org:3306", []string{}},
		{"Section without master", noMaster, false, "", nil},
		{"Unknown role", unknownRole, false, "", nil},
	}
	return myRules
}
