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
	"fmt"
	"io/ioutil"
	"net"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

/*
The inventory file is the source of truth for the fleet layout.
One section per replica set, exactly one master each, replicas listed
in the order schema changes must walk them.

sections:
  - name: s1
    hosts:
      - host: db1001.example.org
        port: 3306
        role: master
      - host: db1002.example.org
        port: 3306
        role: replica
*/

type Inventory struct {
	Sections []InventorySection `yaml:"sections" validate:"required,min=1,dive"`
}

type InventorySection struct {
	Name  string          `yaml:"name" validate:"required"`
	Hosts []InventoryHost `yaml:"hosts" validate:"required,min=1,dive"`
}

type InventoryHost struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Role string `yaml:"role" validate:"required,oneof=master replica"`
}

//Node identity used as key everywhere
func (host InventoryHost) Dns() string {
	return net.JoinHostPort(host.Host, strconv.Itoa(host.Port))
}

func LoadInventory(path string) (*Inventory, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read inventory file %s: %v", path, err)
	}

	inventory := new(Inventory)
	if err := yaml.Unmarshal(data, inventory); err != nil {
		return nil, fmt.Errorf("cannot parse inventory file %s: %v", path, err)
	}

	if err := validate.Struct(inventory); err != nil {
		for _, fieldError := range err.(validator.ValidationErrors) {
			return nil, fmt.Errorf("invalid inventory %s: field %s failed rule '%s'", path, fieldError.Namespace(), fieldError.Tag())
		}
	}

	for _, section := range inventory.Sections {
		if err := section.check(); err != nil {
			return nil, err
		}
	}

	return inventory, nil
}

//a section must have exactly one master and no duplicated endpoints
func (section InventorySection) check() error {
	masters := 0
	seen := make(map[string]bool)
	for _, host := range section.Hosts {
		if host.Role == "master" {
			masters++
		}
		if seen[host.Dns()] {
			return fmt.Errorf("invalid inventory section %s: host %s declared more than once", section.Name, host.Dns())
		}
		seen[host.Dns()] = true
	}
	if masters != 1 {
		return fmt.Errorf("invalid inventory section %s: found %d masters, need exactly 1", section.Name, masters)
	}
	return nil
}

func (inventory *Inventory) GetSection(name string) (InventorySection, bool) {
	for _, section := range inventory.Sections {
		if section.Name == name {
			return section, true
		}
	}
	return InventorySection{}, false
}

func (section InventorySection) MasterHost() (InventoryHost, bool) {
	for _, host := range section.Hosts {
		if host.Role == "master" {
			return host, true
		}
	}
	return InventoryHost{}, false
}

func (section InventorySection) ReplicaHosts() []InventoryHost {
	replicas := make([]InventoryHost, 0, len(section.Hosts))
	for _, host := range section.Hosts {
		if host.Role == "replica" {
			replicas = append(replicas, host)
		}
	}
	return replicas
}
