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

/* Tests for inventory loading [start] */
func TestLoadInventory(t *testing.T) {
	var tests = []inventoryRule{}
	tests = rulesTestLoadInventory()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := t.TempDir() + Separator + "inventory.yaml"
			if err := ioutil.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Errorf(" %s cannot write the inventory fixture: %v", tt.name, err)
				return
			}

			_, err := LoadInventory(path)
			if (err != nil) != tt.wantErr {
				t.Errorf(" %s LoadInventory() error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestLoadInventory_MissingFile(t *testing.T) {
	if _, err := LoadInventory(t.TempDir() + Separator + "not_there.yaml"); err == nil {
		t.Errorf(" LoadInventory() on a missing file = nil, want an error")
	}
}

func TestInventory_Accessors(t *testing.T) {
	path := t.TempDir() + Separator + "inventory.yaml"
	if err := ioutil.WriteFile(path, []byte(testInventoryYaml), 0644); err != nil {
		t.Errorf(" cannot write the inventory fixture: %v", err)
		return
	}
	inventory, err := LoadInventory(path)
	if err != nil {
		t.Errorf(" LoadInventory() error = %v, want nil", err)
		return
	}

	section, found := inventory.GetSection("s1")
	if !found || section.Name != "s1" || len(section.Hosts) != 3 {
		t.Errorf(" GetSection(s1) = %v found=%v, want the full section", section.Name, found)
	}
	if _, found := inventory.GetSection("s9"); found {
		t.Errorf(" GetSection(s9) found = true, want false")
	}

	master, found := section.MasterHost()
	if !found || master.Host != "db1001.example.org" {
		t.Errorf(" MasterHost() = %v found=%v, want db1001.example.org", master.Host, found)
	}

	//replicas keep the file order, that is the order schema changes walk them
	replicas := section.ReplicaHosts()
	gotHosts := make([]string, 0, len(replicas))
	for _, replica := range replicas {
		gotHosts = append(gotHosts, replica.Host)
	}
	if !reflect.DeepEqual(gotHosts, []string{"db1002.example.org", "db1003.example.org"}) {
		t.Errorf(" ReplicaHosts() = %v, want [db1002.example.org db1003.example.org]", gotHosts)
	}
}

func TestInventoryHost_Dns(t *testing.T) {
	var tests = []dnsRule{}
	tests = rulesTestInventoryHostDns()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.host.Dns(); got != tt.want {
				t.Errorf(" %s Dns() = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

/* Tests for inventory loading [end] */
