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

type mapRule struct {
	name      string
	value     string
	separator string
	want      map[string]string
}

type toIntRule struct {
	name  string
	value string
	want  int
}

type toBoolRule struct {
	name       string
	value      string
	trueString string
	want       bool
}

type containsRule struct {
	name  string
	list  []int
	value int
	want  bool
}

func rulesTestFromStringToMAp() []mapRule {
	myRules := []mapRule{
		{"Plain list", "wait_timeout=10000;lock_wait_timeout=60", ";",
			map[string]string{"wait_timeout": "10000", "lock_wait_timeout": "60"}},
		{"Single pair", "wait_timeout=10000", ";",
			map[string]string{"wait_timeout": "10000"}},
		{"Padded entries", " wait_timeout = 10000 ; lock_wait_timeout = 60 ", ";",
			map[string]string{"wait_timeout": "10000", "lock_wait_timeout": "60"}},
		{"Entry without value dropped", "wait_timeout=;lock_wait_timeout=60", ";",
			map[string]string{"lock_wait_timeout": "60"}},
		{"Entry without equal dropped", "wait_timeout;lock_wait_timeout=60", ";",
			map[string]string{"lock_wait_timeout": "60"}},
		{"Empty string", "", ";", map[string]string{}},
	}
	return myRules
}

func rulesTestToInt() []toIntRule {
	myRules := []toIntRule{
		{"Plain number", "42", 42},
		{"Zero", "0", 0},
		{"Empty string", "", 0},
		{"Garbage", "NULL", -1},
	}
	return myRules
}

func rulesTestToBool() []toBoolRule {
	myRules := []toBoolRule{
		{"Matching word", "on", "on", true},
		{"Case does not matter", "ON", "on", true},
		{"Different word", "off", "on", false},
		{"Empty never true", "", "", false},
	}
	return myRules
}

func rulesTestContainsInt() []containsRule {
	myRules := []containsRule{
		{"Single match", []int{0}, 0, true},
		{"Match in a longer list", []int{0, 75, 255}, 75, true},
		{"No match", []int{0}, 1, false},
		{"Empty list", []int{}, 0, false},
		{"Nil list", nil, 0, false},
	}
	return myRules
}
