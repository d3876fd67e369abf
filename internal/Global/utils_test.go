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
	"reflect"
	"testing"
	"time"
)

// ****************  TESTS **********************************

/* Tests for the conversion helpers [start] */
func TestFromStringToMAp(t *testing.T) {
	var tests = []mapRule{}
	tests = rulesTestFromStringToMAp()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromStringToMAp(tt.value, tt.separator); !reflect.DeepEqual(got, tt.want) {
				t.Errorf(" %s FromStringToMAp() = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestToInt(t *testing.T) {
	var tests = []toIntRule{}
	tests = rulesTestToInt()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToInt(tt.value); got != tt.want {
				t.Errorf(" %s ToInt() = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestToBool(t *testing.T) {
	var tests = []toBoolRule{}
	tests = rulesTestToBool()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToBool(tt.value, tt.trueString); got != tt.want {
				t.Errorf(" %s ToBool() = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestBool2int(t *testing.T) {
	if Bool2int(true) != 1 || Bool2int(false) != 0 {
		t.Errorf(" Bool2int() = %v/%v, want 1/0", Bool2int(true), Bool2int(false))
	}
}

func TestContainsInt(t *testing.T) {
	var tests = []containsRule{}
	tests = rulesTestContainsInt()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsInt(tt.list, tt.value); got != tt.want {
				t.Errorf(" %s ContainsInt() = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestCheckIfPathExists(t *testing.T) {
	path := t.TempDir()
	if !CheckIfPathExists(path) {
		t.Errorf(" CheckIfPathExists() = false on %v, want true", path)
	}
	if CheckIfPathExists(path + Separator + "not_there") {
		t.Errorf(" CheckIfPathExists() = true on a missing path, want false")
	}
}

/* Tests for the conversion helpers [end] */

/* Tests for MyWaitGroup [start] */
func TestMyWaitGroup_Counter(t *testing.T) {
	wg := new(MyWaitGroup)
	wg.IncreaseCounter()
	wg.IncreaseCounter()
	if got := wg.ReportCounter(); got != 2 {
		t.Errorf(" ReportCounter() = %v, want 2", got)
	}
	wg.DecreaseCounter()
	if got := wg.ReportCounter(); got != 1 {
		t.Errorf(" ReportCounter() = %v, want 1", got)
	}
	wg.DecreaseCounter()
	wg.DecreaseCounter()
	if got := wg.ReportCounter(); got != 0 {
		t.Errorf(" ReportCounter() = %v, want 0, never below", got)
	}
}

func TestMyWaitGroup_WaitTimeout(t *testing.T) {
	wg := new(MyWaitGroup)
	if got := wg.WaitTimeout(time.Second); got != false {
		t.Errorf(" WaitTimeout() with nothing pending = %v, want false", got)
	}

	wg.Add(1)
	if got := wg.WaitTimeout(10 * time.Millisecond); got != true {
		t.Errorf(" WaitTimeout() with one worker stuck = %v, want true", got)
	}
	wg.Done()
}

/* Tests for MyWaitGroup [end] */
